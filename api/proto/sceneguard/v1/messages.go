package sceneguardv1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/sceneguard/internal/model"
	"github.com/ppiankov/sceneguard/internal/scene"
)

// CheckRequest is the body of a Check call.
type CheckRequest struct {
	SessionID string      `json:"session_id,omitempty"`
	Scene     scene.Scene `json:"scene"`
	Text      string      `json:"text"`
}

// CheckResponse is the reply to a Check call.
type CheckResponse struct {
	SessionID string            `json:"session_id"`
	Result    model.GuardResult `json:"result"`
}

// StreamRequest is one client message on a Stream call. The first carries
// Scene; later ones carry Fragment or Finish.
type StreamRequest struct {
	SessionID string       `json:"session_id,omitempty"`
	Scene     *scene.Scene `json:"scene,omitempty"`
	Fragment  *string      `json:"fragment,omitempty"`
	Finish    bool         `json:"finish,omitempty"`
}

// StreamReply answers one StreamRequest. Result is set on finish and once
// the guard has stopped.
type StreamReply struct {
	SessionID string                `json:"session_id"`
	Fragment  *model.FragmentResult `json:"fragment,omitempty"`
	Result    *model.GuardResult    `json:"result,omitempty"`
}

// Encode converts a message to a Struct through its JSON form.
func Encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return structpb.NewStruct(m)
}

// Decode fills v from a Struct.
func Decode(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
