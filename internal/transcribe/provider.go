package transcribe

import "context"

// Provider is the capability interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string) (*RawTranscript, error)
	Name() string  // "whisper"
	Model() string // model identifier for logs
}

// RawTranscript is a provider's output in whichever shape the backend
// supports. Which fields are populated selects the alignment mode:
// words + segments, segments only, or bare text.
type RawTranscript struct {
	Text     string
	Language string
	Duration float64      // audio duration in seconds, 0 if unknown
	Segments []RawSegment // nil if the provider emits no segment timestamps
	Words    []RawWord    // nil if the provider emits no word timestamps
}

// RawSegment is a provider-defined span of transcript text.
type RawSegment struct {
	Start float64
	End   float64
	Text  string
}

// RawWord is a timestamped word token from the provider.
type RawWord struct {
	Word  string
	Start float64
	End   float64
}
