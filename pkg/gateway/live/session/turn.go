package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/anay-go/anay/pkg/gateway/apierror"
	"github.com/anay-go/anay/pkg/gateway/live/protocol"
)

const ttsAudioFormat = "mp3"

type activeTurn struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// turnInput is either committed text or a complete recording to transcribe.
type turnInput struct {
	text   string
	audio  []byte
	format string
}

func (s *LiveSession) nextTurnID() string {
	n := s.turnCounter.Add(1)
	return fmt.Sprintf("t_%d", n)
}

func (s *LiveSession) newTurnContext() (context.Context, context.CancelFunc) {
	if s.cfg.TurnTimeout > 0 {
		return context.WithTimeout(s.ctx, s.cfg.TurnTimeout)
	}
	return context.WithCancel(s.ctx)
}

// startTurn interrupts any in-flight turn and runs in as the next one.
func (s *LiveSession) startTurn(in turnInput) string {
	s.interruptTurn()
	if s.ctx.Err() != nil {
		return ""
	}

	ctx, cancel := s.newTurnContext()
	t := &activeTurn{id: s.nextTurnID(), cancel: cancel, done: make(chan struct{})}

	s.turnMu.Lock()
	s.turn = t
	s.turnMu.Unlock()

	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		defer close(t.done)
		defer cancel()
		s.runTurn(ctx, t.id, in)
		s.turnMu.Lock()
		if s.turn == t {
			s.turn = nil
		}
		s.turnMu.Unlock()
	}()
	return t.id
}

// interruptTurn cancels the in-flight turn, drops its queued audio and waits
// for it to stop. It reports whether a turn was running.
func (s *LiveSession) interruptTurn() bool {
	s.turnMu.Lock()
	t := s.turn
	s.turn = nil
	s.turnMu.Unlock()
	if t == nil {
		return false
	}

	s.markTurnCanceled(t.id)
	t.cancel()
	select {
	case <-t.done:
	case <-s.ctx.Done():
	}
	return true
}

func (s *LiveSession) isCurrentTurn(turnID string) bool {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	return s.turn != nil && s.turn.id == turnID
}

func (s *LiveSession) currentVoice() string {
	s.voiceMu.Lock()
	defer s.voiceMu.Unlock()
	return s.voiceID
}

func (s *LiveSession) runTurn(ctx context.Context, turnID string, in turnInput) {
	_ = s.sendStatus(protocol.StateThinking)

	text := in.text
	if in.audio != nil {
		transcript, err := s.assistant.Transcribe(ctx, bytes.NewReader(in.audio), in.format)
		if err != nil {
			s.failTurn(ctx, turnID, err)
			return
		}
		text = strings.TrimSpace(transcript.Text)
		if text == "" {
			_ = s.sendWarning("empty_transcript", "no speech detected")
			_ = s.sendStatus(protocol.StateIdle)
			return
		}
		_ = s.sendTurnJSON(turnID, protocol.ServerTranscript{Type: "transcript", Text: text, IsFinal: true})
	}

	reply, err := s.assistant.Respond(ctx, s.sessionKey, text)
	if err != nil {
		s.failTurn(ctx, turnID, err)
		return
	}
	s.metrics.RecordTurn(string(reply.Source))

	if err := s.sendTurnJSON(turnID, protocol.ServerResponse{
		Type:    "response",
		TurnID:  turnID,
		Text:    reply.Text,
		Source:  string(reply.Source),
		Command: reply.Command,
		Error:   reply.Error,
	}); err != nil {
		s.logger.Warn("live response dropped", "session_id", s.sessionID, "turn_id", turnID, "error", err)
	}

	if s.speak.Load() && strings.TrimSpace(reply.Text) != "" {
		s.speakReply(ctx, turnID, reply.Text)
	}
	if s.isCurrentTurn(turnID) {
		_ = s.sendStatus(protocol.StateIdle)
	}
}

// failTurn reports a turn failure unless the turn was interrupted.
func (s *LiveSession) failTurn(ctx context.Context, turnID string, err error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}
	apiErr, _ := apierror.FromError(err, s.requestID)
	if apiErr.Provider != "" {
		s.metrics.RecordProviderError(apiErr.Provider, string(apiErr.Type))
	}
	s.logger.Warn("live turn failed", "session_id", s.sessionID, "turn_id", turnID, "error", err)
	_ = s.sendTurnJSON(turnID, protocol.ServerError{Type: "error", Code: string(apiErr.Type), Message: apiErr.Message})
	_ = s.sendStatus(protocol.StateIdle)
}

func (s *LiveSession) speakReply(ctx context.Context, turnID, text string) {
	stream, err := s.assistant.Speak(ctx, text, s.currentVoice())
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("live tts failed", "session_id", s.sessionID, "turn_id", turnID, "error", err)
			_ = s.sendWarning("tts_error", "speech synthesis failed")
		}
		return
	}
	if stream == nil {
		return
	}
	defer stream.Close()

	_ = s.sendStatus(protocol.StateSpeaking)
	if err := s.sendTurnJSON(turnID, protocol.ServerAudioStart{Type: "audio_start", TurnID: turnID, Format: ttsAudioFormat}); err != nil {
		return
	}

	interrupted := func() {
		s.markTurnCanceled(turnID)
		_ = s.sendJSONPriority(protocol.ServerAudioEnd{Type: "audio_end", TurnID: turnID, Interrupted: true})
	}

	var seq int64
	chunks := stream.Chunks()
	for {
		select {
		case <-ctx.Done():
			interrupted()
			return
		case chunk, ok := <-chunks:
			if !ok {
				if err := stream.Err(); err != nil && ctx.Err() == nil {
					s.logger.Warn("live tts stream failed", "session_id", s.sessionID, "turn_id", turnID, "error", err)
					_ = s.sendWarning("tts_error", "speech synthesis interrupted")
				}
				_ = s.sendTurnJSON(turnID, protocol.ServerAudioEnd{Type: "audio_end", TurnID: turnID})
				return
			}
			if len(chunk) == 0 {
				continue
			}
			seq++
			err := s.sendTurnJSON(turnID, protocol.ServerAudioChunk{
				Type:    "audio_chunk",
				TurnID:  turnID,
				Seq:     seq,
				DataB64: base64.StdEncoding.EncodeToString(chunk),
			})
			if errors.Is(err, errBackpressure) {
				interrupted()
				_ = s.sendWarning("backpressure", "client is not reading audio fast enough")
				return
			}
			s.metrics.RecordLiveAudio("out", len(chunk))
		}
	}
}
