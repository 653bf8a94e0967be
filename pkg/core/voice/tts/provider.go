// Package tts provides streaming text-to-speech synthesis.
package tts

import (
	"context"
	"sync"
)

// Provider is the interface for streaming text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts one sentence of text into a stream of audio
	// chunks. Chunks arrive lazily as the service produces them.
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisStream, error)
}

// SynthesisRequest describes one unit of text to speak.
type SynthesisRequest struct {
	// Text is the sentence to synthesize.
	Text string
	// Voice selects the service voice; empty uses the provider default.
	Voice string
}

// SynthesisStream is a lazy, finite sequence of synthesized audio chunks.
// A mid-stream failure truncates the sequence: the chunk channel closes
// early and Err reports the cause. Consumers that only range over Chunks
// observe a shorter turn, never an error.
type SynthesisStream struct {
	chunks chan []byte
	done   chan struct{}

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

// NewSynthesisStream creates a new synthesis stream.
func NewSynthesisStream() *SynthesisStream {
	return &SynthesisStream{
		chunks: make(chan []byte, 100),
		done:   make(chan struct{}),
	}
}

// Chunks returns the channel of audio chunks. It is closed when the turn
// completes or the stream is truncated; check Err to tell the two apart.
func (s *SynthesisStream) Chunks() <-chan []byte {
	return s.chunks
}

// Err reports the failure that truncated the stream, if any. It is
// meaningful once Chunks has been closed.
func (s *SynthesisStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close abandons the stream early. Safe to call more than once.
func (s *SynthesisStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}

// SetError records the failure that ended the stream.
func (s *SynthesisStream) SetError(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

// Send delivers one chunk. Returns false once the consumer closed the stream.
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
