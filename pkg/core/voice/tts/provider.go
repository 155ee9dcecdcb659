// Package tts provides text-to-speech functionality.
package tts

import (
	"context"
	"errors"
	"sync"
)

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to a complete audio clip.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)

	// SynthesizeStream converts text to streaming audio.
	SynthesizeStream(ctx context.Context, text string, opts SynthesizeOptions) (*SynthesisStream, error)

	// ListVoices returns the voices available to the account.
	ListVoices(ctx context.Context) ([]Voice, error)
}

// ErrEmptyText is returned when there is nothing to speak.
var ErrEmptyText = errors.New("tts: text is empty")

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice  string // Voice identifier; empty uses the provider default
	Model  string // Provider model identifier
	Format string // Output format, e.g. "mp3_44100_128"
}

// Synthesis is the result of synthesis.
type Synthesis struct {
	Audio  []byte // Audio data
	Format string // Audio container/codec, e.g. "mp3"
}

// Voice describes a selectable voice.
type Voice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// SynthesisStream provides streaming audio output.
type SynthesisStream struct {
	chunks    chan []byte
	errMu     sync.Mutex
	err       error
	done      chan struct{}
	closeOnce sync.Once
}

// NewSynthesisStream creates a new synthesis stream.
func NewSynthesisStream() *SynthesisStream {
	return &SynthesisStream{
		chunks: make(chan []byte, 32),
		done:   make(chan struct{}),
	}
}

// Chunks returns the channel of audio chunks. It is closed once the
// producer finishes.
func (s *SynthesisStream) Chunks() <-chan []byte {
	return s.chunks
}

// Err returns any error that occurred. Call it after Chunks is drained.
func (s *SynthesisStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close stops the producer. Safe to call more than once.
func (s *SynthesisStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// Done is closed when the consumer calls Close.
func (s *SynthesisStream) Done() <-chan struct{} {
	return s.done
}

// SetError sets the stream error.
func (s *SynthesisStream) SetError(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

// Send sends a chunk to the stream. Returns false if stream is closed.
func (s *SynthesisStream) Send(chunk []byte) bool {
	select {
	case s.chunks <- chunk:
		return true
	case <-s.done:
		return false
	}
}

// FinishSending closes the chunks channel to signal completion.
func (s *SynthesisStream) FinishSending() {
	close(s.chunks)
}

// Collect drains a stream into one buffer.
func Collect(s *SynthesisStream) ([]byte, error) {
	defer s.Close()
	var out []byte
	for chunk := range s.Chunks() {
		out = append(out, chunk...)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
