package eventbus

// WakeDetectedPayload is emitted when the wake phrase crosses its
// detection threshold outside the cooldown window.
type WakeDetectedPayload struct {
	Phrase string
	Score  float64
}

// SpeechDetectedPayload is emitted when sustained user speech is detected
// while barge-in monitoring is enabled.
type SpeechDetectedPayload struct {
	Confidence float64
}

// QuestionSpokenPayload is emitted after a question narration finishes
// (naturally or via interrupt).
type QuestionSpokenPayload struct {
	Text string
}

// NarrationDroppedPayload is emitted when the queue evicts a stale
// pending narration on overflow.
type NarrationDroppedPayload struct {
	Text string
}

// VoiceTranscribedPayload is emitted when a voice capture yields text.
type VoiceTranscribedPayload struct {
	Text string
}
