// Package stt provides speech-to-text functionality.
package stt

import (
	"context"
	"errors"
	"io"
)

// Provider is the interface for speech-to-text services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Transcribe converts a complete recording to text.
	Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error)

	// NewLiveStream opens a streaming session fed with raw PCM16 audio.
	NewLiveStream(ctx context.Context, opts TranscribeOptions) (LiveStream, error)
}

// LiveStream is a real-time transcription session.
type LiveStream interface {
	// SendAudio forwards a PCM chunk.
	SendAudio(data []byte) error
	// Finalize asks the service to flush pending audio into final results.
	Finalize() error
	// Deltas emits transcript updates. It is closed when the session ends.
	Deltas() <-chan TranscriptDelta
	// Err reports why the session ended, if it failed.
	Err() error
	// Close ends the session gracefully.
	Close() error
}

// TranscribeOptions configures transcription.
type TranscribeOptions struct {
	Model      string // Provider-specific model (default: "nova-2")
	Language   string // BCP-47 language code (default: "en-US" live, "en" prerecorded)
	Format     string // Audio container hint: wav, webm, ogg, mp3, pcm
	SampleRate int    // Sample rate in Hz for raw PCM
}

// Transcript is the result of transcription.
type Transcript struct {
	Text       string  // Full transcribed text
	Confidence float64 // Confidence of the chosen alternative
	Duration   float64 // Audio duration in seconds
}

// TranscriptDelta is a streaming transcript update.
type TranscriptDelta struct {
	Text        string // Transcript of the current segment
	IsFinal     bool   // True once the segment text will not change
	SpeechFinal bool   // True when the speaker paused at the end of the segment
}

// ErrStreamClosed is returned when writing to a closed live stream.
var ErrStreamClosed = errors.New("stt: stream closed")
