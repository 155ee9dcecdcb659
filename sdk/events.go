package anay

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/anay-go/anay/pkg/assistant/sysmon"
	"github.com/anay-go/anay/pkg/gateway/live/protocol"
)

// Event is one item from Session.Events.
type Event interface {
	eventType() string
}

type ReadyEvent struct{ Ready protocol.ServerReady }

func (e ReadyEvent) eventType() string { return "ready" }

type StatusEvent struct{ State string }

func (e StatusEvent) eventType() string { return "status" }

// TranscriptEvent carries the utterance heard so far. IsFinal marks the
// text the server committed as a turn.
type TranscriptEvent struct {
	Text    string
	IsFinal bool
}

func (e TranscriptEvent) eventType() string { return "transcript" }

type AmplitudeEvent struct{ Value float64 }

func (e AmplitudeEvent) eventType() string { return "amplitude" }

type ResponseEvent struct{ Response protocol.ServerResponse }

func (e ResponseEvent) eventType() string { return "response" }

type AudioStartEvent struct {
	TurnID string
	Format string
}

func (e AudioStartEvent) eventType() string { return "audio_start" }

// AudioChunkEvent carries decoded reply audio.
type AudioChunkEvent struct {
	TurnID string
	Seq    int64
	Data   []byte
}

func (e AudioChunkEvent) eventType() string { return "audio_chunk" }

type AudioEndEvent struct {
	TurnID      string
	Interrupted bool
}

func (e AudioEndEvent) eventType() string { return "audio_end" }

type SystemInfoEvent struct{ Info sysmon.Info }

func (e SystemInfoEvent) eventType() string { return "system_info" }

type AckEvent struct{ Op string }

func (e AckEvent) eventType() string { return "ack" }

type WarningEvent struct{ Warning protocol.ServerWarning }

func (e WarningEvent) eventType() string { return "warning" }

type ErrorEvent struct{ Error protocol.ServerError }

func (e ErrorEvent) eventType() string { return "error" }

type PongEvent struct{}

func (e PongEvent) eventType() string { return "pong" }

// DisconnectedEvent reports a dropped connection. Final is set when the
// session gave up reconnecting; Events closes right after.
type DisconnectedEvent struct {
	Err   error
	Final bool
}

func (e DisconnectedEvent) eventType() string { return "disconnected" }

// ReconnectedEvent reports a successful redial. The server's ready frame
// follows as a ReadyEvent.
type ReconnectedEvent struct {
	Attempts  int
	SessionID string
}

func (e ReconnectedEvent) eventType() string { return "reconnected" }

type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) eventType() string { return e.Type }

// decodeEvent parses one server text frame.
func decodeEvent(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch envelope.Type {
	case "ready":
		var msg protocol.ServerReady
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode ready: %w", err)
		}
		return ReadyEvent{Ready: msg}, nil
	case "status":
		var msg protocol.ServerStatus
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode status: %w", err)
		}
		return StatusEvent{State: msg.State}, nil
	case "transcript":
		var msg protocol.ServerTranscript
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode transcript: %w", err)
		}
		return TranscriptEvent{Text: msg.Text, IsFinal: msg.IsFinal}, nil
	case "amplitude":
		var msg protocol.ServerAmplitude
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode amplitude: %w", err)
		}
		return AmplitudeEvent{Value: msg.Value}, nil
	case "response":
		var msg protocol.ServerResponse
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return ResponseEvent{Response: msg}, nil
	case "audio_start":
		var msg protocol.ServerAudioStart
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode audio_start: %w", err)
		}
		return AudioStartEvent{TurnID: msg.TurnID, Format: msg.Format}, nil
	case "audio_chunk":
		var msg protocol.ServerAudioChunk
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode audio_chunk: %w", err)
		}
		audio, err := base64.StdEncoding.DecodeString(msg.DataB64)
		if err != nil {
			return nil, fmt.Errorf("decode audio_chunk data: %w", err)
		}
		return AudioChunkEvent{TurnID: msg.TurnID, Seq: msg.Seq, Data: audio}, nil
	case "audio_end":
		var msg protocol.ServerAudioEnd
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode audio_end: %w", err)
		}
		return AudioEndEvent{TurnID: msg.TurnID, Interrupted: msg.Interrupted}, nil
	case "system_info":
		var msg protocol.ServerSystemInfo
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode system_info: %w", err)
		}
		return SystemInfoEvent{Info: msg.Info}, nil
	case "ack":
		var msg protocol.ServerAck
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode ack: %w", err)
		}
		return AckEvent{Op: msg.Op}, nil
	case "warning":
		var msg protocol.ServerWarning
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode warning: %w", err)
		}
		return WarningEvent{Warning: msg}, nil
	case "error":
		var msg protocol.ServerError
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode error: %w", err)
		}
		return ErrorEvent{Error: msg}, nil
	case "pong":
		return PongEvent{}, nil
	default:
		return UnknownEvent{Type: envelope.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

func encodeBase64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }
