package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aura-voice/aura-relay/pkg/core/providers/gemini"
	"github.com/aura-voice/aura-relay/pkg/core/voice/tts"
	"github.com/aura-voice/aura-relay/pkg/gateway/live/channel"
	"github.com/aura-voice/aura-relay/pkg/gateway/live/protocol"
	"github.com/aura-voice/aura-relay/pkg/gateway/metrics"
)

const (
	// DefaultSystemPrompt seeds every fresh conversation history as a
	// synthetic user turn.
	DefaultSystemPrompt = `You are "Aura," a friendly and helpful AI voice assistant. Keep your responses concise, natural, and to the point, as if you were speaking in a real conversation. Do not use markdown or formatting.`

	// DefaultSystemAck is the scripted model reply paired with the system
	// prompt, so the model sees one completed exchange.
	DefaultSystemAck = "Okay, I'm ready to help."

	// DefaultErrorMessage is the client-facing text sent when a cycle fails.
	DefaultErrorMessage = "The AI is busy, please try again."

	// DefaultIdleTimeout bounds how long a session waits for the next prompt.
	DefaultIdleTimeout = time.Hour
)

// errClientGone signals that the client went away mid-cycle. The run loop
// treats it as a normal end of session, not a failure.
var errClientGone = errors.New("client disconnected")

// State is the control-loop phase a session is in.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingUpstream State = "awaiting_upstream"
	StateStreaming        State = "streaming"
	StateSynthesizing     State = "synthesizing"
	StateClosed           State = "closed"
)

// TextStream is one in-flight model response: a lazy sequence of text
// deltas ending with io.EOF.
type TextStream interface {
	Next() (string, error)
	Close() error
}

// Upstream produces a streamed model reply for the running history.
type Upstream interface {
	StreamTurn(ctx context.Context, history []gemini.Turn) (TextStream, error)
}

// UpstreamAdapter bridges a concrete gemini provider to the Upstream
// interface the session consumes.
type UpstreamAdapter struct {
	Provider *gemini.Provider
}

func (a UpstreamAdapter) StreamTurn(ctx context.Context, history []gemini.Turn) (TextStream, error) {
	if a.Provider == nil {
		return nil, fmt.Errorf("gemini provider is nil")
	}
	return a.Provider.StreamTurn(ctx, history)
}

// Synth turns one sentence into a finite stream of audio chunks.
type Synth interface {
	Synthesize(ctx context.Context, req tts.SynthesisRequest) (*tts.SynthesisStream, error)
}

// Channel is the duplex client transport the session drives. Sends after
// the peer disconnects must fail fast with channel.ErrClosed rather than
// block.
type Channel interface {
	Send(msg protocol.Outbound) error
	SendAudio(chunk []byte) error
	Receive(timeout time.Duration) (string, error)
	IsConnected() bool
	Close() error
}

type Config struct {
	Voice        string
	IdleTimeout  time.Duration
	SystemPrompt string
	SystemAck    string
	ErrorMessage string
}

type Dependencies struct {
	Channel   Channel
	Upstream  Upstream
	Synth     Synth
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	SessionID string
	Config    Config
	Now       func() time.Time
}

// Session owns one client connection for its whole lifetime: it reads
// prompts, drives the upstream model, segments the streamed reply into
// sentences, and interleaves text and synthesized audio back to the
// client. Sessions share no state with each other.
type Session struct {
	channel  Channel
	upstream Upstream
	synth    Synth
	logger   *slog.Logger
	metrics  *metrics.Metrics
	id       string
	cfg      Config
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	history *historyLog
	state   atomic.Value // State
}

func New(deps Dependencies) (*Session, error) {
	if deps.Channel == nil {
		return nil, fmt.Errorf("channel is required")
	}
	if deps.Upstream == nil {
		return nil, fmt.Errorf("upstream provider is required")
	}
	if deps.Synth == nil {
		return nil, fmt.Errorf("synthesis provider is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}
	if deps.Config.Voice == "" {
		deps.Config.Voice = tts.DefaultVoice
	}
	if deps.Config.IdleTimeout <= 0 {
		deps.Config.IdleTimeout = DefaultIdleTimeout
	}
	if deps.Config.SystemPrompt == "" {
		deps.Config.SystemPrompt = DefaultSystemPrompt
	}
	if deps.Config.SystemAck == "" {
		deps.Config.SystemAck = DefaultSystemAck
	}
	if deps.Config.ErrorMessage == "" {
		deps.Config.ErrorMessage = DefaultErrorMessage
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		channel:  deps.Channel,
		upstream: deps.Upstream,
		synth:    deps.Synth,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		id:       deps.SessionID,
		cfg:      deps.Config,
		now:      deps.Now,
		ctx:      ctx,
		cancel:   cancel,
		history:  newHistoryLog(deps.Config.SystemPrompt, deps.Config.SystemAck),
	}
	s.state.Store(StateIdle)
	return s, nil
}

// Run drives the session until the client disconnects, the idle timeout
// expires, ctx is canceled, or the upstream stream breaks irrecoverably.
// It returns nil for all normal ends of session.
func (s *Session) Run(ctx context.Context) error {
	defer s.cancel()
	defer s.setState(StateClosed)

	if ctx == nil {
		ctx = context.Background()
	}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-stop:
		}
	}()

	s.logger.Info("session started", "session_id", s.id)
	defer s.logger.Info("session finished", "session_id", s.id)

	for {
		s.setState(StateIdle)
		prompt, err := s.channel.Receive(s.cfg.IdleTimeout)
		if err != nil {
			switch {
			case errors.Is(err, channel.ErrTimeout):
				s.logger.Info("session idle timeout reached", "session_id", s.id)
			case errors.Is(err, channel.ErrClosed):
				s.logger.Info("client disconnected", "session_id", s.id)
			default:
				s.logger.Warn("receive failed", "session_id", s.id, "error", err)
			}
			return nil
		}
		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			continue
		}
		if err := s.runCycle(prompt); err != nil {
			if errors.Is(err, errClientGone) {
				s.logger.Info("client disconnected mid-response", "session_id", s.id)
				return nil
			}
			return err
		}
	}
}

// Close tears the session down from outside the run loop. It cancels
// in-flight upstream and synthesis work and closes the delivery channel,
// which unblocks a pending Receive. Safe to call more than once.
func (s *Session) Close() error {
	s.cancel()
	return s.channel.Close()
}

// State reports the current control-loop phase.
func (s *Session) State() State {
	st, _ := s.state.Load().(State)
	return st
}

func (s *Session) setState(st State) {
	s.state.Store(st)
}

// runCycle processes one user prompt through to the end of the model's
// response. A nil return means the session keeps going, whether or not
// the cycle itself succeeded. errClientGone means the client went away.
// Any other error is a broken upstream stream, which ends the session.
func (s *Session) runCycle(prompt string) error {
	start := s.now()
	s.history.appendUser(prompt)

	s.setState(StateAwaitingUpstream)
	stream, err := s.upstream.StreamTurn(s.ctx, s.history.snapshot())
	if err != nil {
		// Retries are exhausted by the provider. The user turn stays in
		// history unanswered and the session returns to idle.
		s.logger.Warn("upstream request failed", "session_id", s.id, "error", err)
		s.metrics.ObserveTurn(metrics.OutcomeError, s.now().Sub(start))
		_ = s.channel.Send(protocol.ErrorMessage(s.cfg.ErrorMessage))
		return nil
	}
	defer stream.Close()

	s.setState(StateStreaming)
	if err := s.channel.Send(protocol.StartOfResponse()); err != nil {
		return errClientGone
	}

	var full strings.Builder
	var seg SentenceSegmenter
	for {
		if !s.channel.IsConnected() {
			s.history.appendModel(full.String())
			s.metrics.ObserveTurn(metrics.OutcomeDisconnected, s.now().Sub(start))
			return errClientGone
		}
		delta, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.metrics.ObserveTurn(metrics.OutcomeError, s.now().Sub(start))
			return fmt.Errorf("upstream stream: %w", err)
		}
		full.WriteString(delta)
		for _, sentence := range seg.Feed(delta) {
			if !s.deliverSentence(sentence) {
				s.history.appendModel(full.String())
				s.metrics.ObserveTurn(metrics.OutcomeDisconnected, s.now().Sub(start))
				return errClientGone
			}
			s.setState(StateStreaming)
		}
	}
	if tail, ok := seg.Flush(); ok {
		if !s.deliverSentence(tail) {
			s.history.appendModel(full.String())
			s.metrics.ObserveTurn(metrics.OutcomeDisconnected, s.now().Sub(start))
			return errClientGone
		}
	}

	s.history.appendModel(full.String())
	if err := s.channel.Send(protocol.EndOfResponse()); err != nil {
		s.metrics.ObserveTurn(metrics.OutcomeDisconnected, s.now().Sub(start))
		return errClientGone
	}
	s.metrics.ObserveTurn(metrics.OutcomeOK, s.now().Sub(start))
	return nil
}

// deliverSentence sends one sentence as a text chunk, then drives its
// synthesis and sends every audio chunk before returning, preserving
// strict per-sentence ordering on the wire. A false return means the
// client is gone. Synthesis failures only cost this sentence its audio.
func (s *Session) deliverSentence(sentence string) bool {
	if err := s.channel.Send(protocol.TextChunk(sentence)); err != nil {
		return false
	}

	s.setState(StateSynthesizing)
	stream, err := s.synth.Synthesize(s.ctx, tts.SynthesisRequest{Text: sentence, Voice: s.cfg.Voice})
	if err != nil {
		s.logger.Warn("synthesis unavailable", "session_id", s.id, "error", err)
		return true
	}
	defer stream.Close()

	for chunk := range stream.Chunks() {
		if err := s.channel.SendAudio(chunk); err != nil {
			return false
		}
		s.metrics.AudioChunks.Inc()
	}
	if err := stream.Err(); err != nil {
		s.logger.Warn("synthesis truncated", "session_id", s.id, "error", err)
	}
	return true
}
