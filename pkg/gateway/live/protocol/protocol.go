// Package protocol defines the JSON frames exchanged on the /v1/ws live socket.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anay-go/anay/pkg/assistant/intent"
	"github.com/anay-go/anay/pkg/assistant/sysmon"
)

const ProtocolVersion1 = "1"

// Control operations accepted in a control frame.
const (
	OpClearHistory = "clear_history"
	OpCancel       = "cancel"
	OpSystemInfo   = "system_info"
	OpPing         = "ping"
)

// Session states reported in status frames.
const (
	StateIdle      = "idle"
	StateListening = "listening"
	StateThinking  = "thinking"
	StateSpeaking  = "speaking"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// ClientText submits a typed user turn.
type ClientText struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

// ClientAudioChunk carries PCM16 16 kHz mono microphone audio.
type ClientAudioChunk struct {
	Type    string `json:"type"`
	Seq     int64  `json:"seq"`
	DataB64 string `json:"data_b64"`
}

// Decode returns the raw PCM bytes of the chunk.
func (m ClientAudioChunk) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(m.DataB64)
}

// ClientAudioEnd marks the end of the current spoken utterance.
type ClientAudioEnd struct {
	Type string `json:"type"`
}

// ClientAudioBlob carries a complete recording in a container format.
type ClientAudioBlob struct {
	Type    string `json:"type"`
	Format  string `json:"format,omitempty"`
	DataB64 string `json:"data_b64"`
}

func (m ClientAudioBlob) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(m.DataB64)
}

type ClientControl struct {
	Type string `json:"type"`
	Op   string `json:"op"`
}

// ClientSettings updates per-session preferences. Nil or empty fields keep
// their current value.
type ClientSettings struct {
	Type    string `json:"type"`
	Speak   *bool  `json:"speak,omitempty"`
	VoiceID string `json:"voice_id,omitempty"`
}

// DecodeClientMessage parses one text frame into its typed message.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "text":
		var msg ClientText
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid text frame", "")
		}
		msg.Text = strings.TrimSpace(msg.Text)
		if msg.Text == "" {
			return nil, badRequest("text.text is required", "text")
		}
		return msg, nil
	case "audio_chunk":
		var msg ClientAudioChunk
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio_chunk", "")
		}
		if strings.TrimSpace(msg.DataB64) == "" {
			return nil, badRequest("audio_chunk.data_b64 is required", "data_b64")
		}
		return msg, nil
	case "audio_end":
		return ClientAudioEnd{Type: typ}, nil
	case "audio_blob":
		var msg ClientAudioBlob
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio_blob", "")
		}
		if strings.TrimSpace(msg.DataB64) == "" {
			return nil, badRequest("audio_blob.data_b64 is required", "data_b64")
		}
		msg.Format = strings.ToLower(strings.TrimSpace(msg.Format))
		return msg, nil
	case "control":
		var msg ClientControl
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid control", "")
		}
		op := strings.TrimSpace(msg.Op)
		if op == "" {
			return nil, badRequest("control.op is required", "op")
		}
		switch op {
		case OpClearHistory, OpCancel, OpSystemInfo, OpPing:
		default:
			return nil, unsupported("unsupported control operation", "op")
		}
		msg.Op = op
		return msg, nil
	case "settings":
		var msg ClientSettings
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid settings", "")
		}
		msg.VoiceID = strings.TrimSpace(msg.VoiceID)
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

// ServerReady is the first frame of every session.
type ServerReady struct {
	Type            string `json:"type"`
	SessionID       string `json:"session_id"`
	ProtocolVersion string `json:"protocol_version"`
	Speak           bool   `json:"speak"`
	STT             bool   `json:"stt"`
	LLM             bool   `json:"llm"`
	TTS             bool   `json:"tts"`
}

type ServerStatus struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

type ServerTranscript struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// ServerAmplitude reports the RMS level of the last audio chunk in [0,1].
type ServerAmplitude struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

type ServerResponse struct {
	Type    string          `json:"type"`
	TurnID  string          `json:"turn_id"`
	Text    string          `json:"text"`
	Source  string          `json:"source"`
	Command *intent.Command `json:"command,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type ServerAudioStart struct {
	Type   string `json:"type"`
	TurnID string `json:"turn_id"`
	Format string `json:"format"`
}

type ServerAudioChunk struct {
	Type    string `json:"type"`
	TurnID  string `json:"turn_id"`
	Seq     int64  `json:"seq"`
	DataB64 string `json:"data_b64"`
}

type ServerAudioEnd struct {
	Type        string `json:"type"`
	TurnID      string `json:"turn_id"`
	Interrupted bool   `json:"interrupted,omitempty"`
}

type ServerSystemInfo struct {
	Type string `json:"type"`
	sysmon.Info
}

// ServerAck confirms a control or settings frame that has no other reply.
type ServerAck struct {
	Type string `json:"type"`
	Op   string `json:"op"`
}

type ServerWarning struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Close   bool   `json:"close,omitempty"`
}

type ServerPong struct {
	Type string `json:"type"`
}
