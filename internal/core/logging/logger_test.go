package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = orig })

	logger := Component("queue")
	logger.Info().Msg("started")

	assert.Contains(t, buf.String(), `"cmp":"queue"`)
	assert.Contains(t, buf.String(), `"started"`)
}
