// Package classify sends candidate terminal output to an Ollama model
// and turns the reply into a narration verdict.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/colonyops/narrator/internal/core/narrate"
)

const systemPrompt = `You are a terminal watcher for an AI coding agent. You receive raw terminal output and must detect when the agent is asking the user to take action.

SPEAK when the agent is:
- Asking a question that needs the user's answer
- Requesting permission to run a command, edit a file, or execute a tool
- Showing a Yes/No or Allow/Deny prompt
- Asking the user to choose between options
- Reporting an error that blocks progress and needs user intervention
- Giving a summary of what it did or what happened
- Saying it is done and waiting for the next instruction

SKIP only these:
- Raw code blocks, file contents, diffs
- Directory listings, file paths
- Progress indicators, spinners, status updates
- Terminal noise, command echoes, tool execution logs

When you SPEAK, prefix your response:
- [Q] if the agent is asking a question, requesting permission, or needs the user to act
- [S] if the agent is giving a summary or status update

Be brief but include key details. When there are choices or options listed, always read them out. When the agent gives a summary of completed work, read it out. Always start with [Q] or [S] -- never omit the prefix.

If the output is ONLY code, diffs, file contents, or terminal noise, respond with exactly: SKIP

Output ONLY the prefixed text to be spoken, or SKIP. Nothing else.`

const (
	// maxInputChars bounds what is sent to the model; slow inference on
	// huge captures would stall the watcher loop.
	maxInputChars = 3000
	// maxNarrationChars bounds what gets spoken.
	maxNarrationChars = 500
)

var prefixRE = regexp.MustCompile(`(?i)^\[([QS])\]\s*`)

// Verdict is a non-suppress classification result.
type Verdict struct {
	Text    string
	Urgency narrate.Urgency
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Classifier filters terminal output through an Ollama model.
type Classifier struct {
	baseURL string
	model   string
	http    *http.Client
}

// New creates a Classifier for the given Ollama base URL and model.
func New(baseURL, model string, client *http.Client) *Classifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &Classifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    client,
	}
}

// Classify returns a verdict for the candidate text, or nil when it
// should be suppressed. Transport failures return a nil verdict along
// with the error; the caller logs and moves on.
func (c *Classifier) Classify(ctx context.Context, text string) (*Verdict, error) {
	if len(text) > maxInputChars {
		text = text[:maxInputChars] + "\n... (truncated)"
	}

	reqBody, _ := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: systemPrompt + "\n\nTerminal output:\n" + text,
		Stream: false,
		Options: generateOptions{
			Temperature: 0.3,
			NumPredict:  256,
		},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("ollama generate status %s", resp.Status)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := strings.TrimSpace(out.Response)
	if result == "" || strings.EqualFold(result, "SKIP") {
		return nil, nil
	}

	// Missing tag defaults to the lower urgency.
	urgency := narrate.UrgencyStatus
	if m := prefixRE.FindStringSubmatch(result); m != nil {
		if strings.EqualFold(m[1], "Q") {
			urgency = narrate.UrgencyQuestion
		}
		result = result[len(m[0]):]
	}

	return &Verdict{Text: truncateAtWord(result, maxNarrationChars), Urgency: urgency}, nil
}

// Ping checks that the Ollama server is reachable.
func (c *Classifier) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama status %d", resp.StatusCode)
	}
	return nil
}

// HasModel reports whether the configured model (or a tag variant of it)
// is present on the server.
func (c *Classifier) HasModel(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("ollama status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}

	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false, err
	}

	base := strings.SplitN(c.model, ":", 2)[0]
	for _, m := range parsed.Models {
		if m.Name == c.model || m.Name == c.model+":latest" || strings.HasPrefix(m.Name, base) {
			return true, nil
		}
	}
	return false, nil
}

// truncateAtWord shortens s to at most n characters without splitting
// inside a word, backing off to the previous whitespace boundary.
func truncateAtWord(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
