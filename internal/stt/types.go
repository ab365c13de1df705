package stt

// TranscriptEvent is one recognition result for the current session
type TranscriptEvent struct {
	// Text is the transcribed text
	Text string

	// IsFinal indicates the service will not revise this fragment
	IsFinal bool

	// Confidence is the confidence score (0.0 to 1.0) if available
	Confidence float64

	// Start is the offset of the fragment from stream start, in seconds
	Start float64

	// Duration is the length of the fragment in seconds
	Duration float64
}
