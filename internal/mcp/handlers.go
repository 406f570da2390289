package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/sceneguard/internal/guard"
	"github.com/ppiankov/sceneguard/internal/model"
	"github.com/ppiankov/sceneguard/internal/policy"
	"github.com/ppiankov/sceneguard/internal/scene"
	"github.com/ppiankov/sceneguard/internal/tracer"
)

// CheckInput defines parameters for the sceneguard_check tool.
type CheckInput struct {
	SceneID          string   `json:"scene_id,omitempty" jsonschema:"scene identifier for audit records"`
	TargetLength     int      `json:"target_length,omitempty" jsonschema:"target length of the scene in characters"`
	EndCondition     string   `json:"end_condition,omitempty" jsonschema:"closing beat the scene must stop at"`
	EndConditionType string   `json:"end_condition_type,omitempty" jsonschema:"dialogue, action or narration"`
	Characters       []string `json:"characters,omitempty" jsonschema:"characters authorized to appear"`
	Roster           []string `json:"roster,omitempty" jsonschema:"all known character identifiers of the project"`
	Strict           *bool    `json:"strict,omitempty" jsonschema:"override the policy mode"`
	Text             string   `json:"text" jsonschema:"scene text to check"`
}

// CheckOutput contains the guard verdict.
type CheckOutput struct {
	SessionID string            `json:"session_id"`
	Result    model.GuardResult `json:"result"`
}

// ThresholdsInput defines parameters for the sceneguard_thresholds tool.
type ThresholdsInput struct {
	TargetLength int `json:"target_length,omitempty" jsonschema:"target length to compute the length cap for"`
}

// ThresholdsOutput describes the active policy.
type ThresholdsOutput struct {
	Strict     bool              `json:"strict"`
	EndMarker  string            `json:"end_marker"`
	Thresholds policy.Thresholds `json:"thresholds"`
	LengthCap  int               `json:"length_cap"`
	PolicyHash string            `json:"policy_hash"`
}

func (s *Server) handleCheck(ctx context.Context, req *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, CheckOutput, error) {
	sc := &scene.Scene{
		ID:               input.SceneID,
		TargetLength:     input.TargetLength,
		EndCondition:     input.EndCondition,
		EndConditionType: input.EndConditionType,
		Characters:       input.Characters,
		Roster:           input.Roster,
		Strict:           input.Strict,
	}
	if err := sc.Prepare(); err != nil {
		return nil, CheckOutput{}, err
	}

	opts := append([]guard.Option{guard.WithConfig(s.policyCfg)}, sc.Options()...)
	result, err := guard.CheckComplete(scene.NormalizeText(input.Text), sc.Constraints(), opts...)
	if err != nil {
		return nil, CheckOutput{}, err
	}

	sessionID := tracer.NewSessionID()
	s.complete(sessionID, sc.Label(), result)

	out := CheckOutput{SessionID: sessionID, Result: result}
	if result.WasTerminated && result.HasCritical() {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleThresholds(ctx context.Context, req *mcpsdk.CallToolRequest, input ThresholdsInput) (*mcpsdk.CallToolResult, ThresholdsOutput, error) {
	return nil, ThresholdsOutput{
		Strict:     s.policyCfg.Strict,
		EndMarker:  s.policyCfg.EndMarker,
		Thresholds: s.policyCfg.Thresholds,
		LengthCap:  s.policyCfg.Thresholds.LengthCap(input.TargetLength),
		PolicyHash: s.policyHash,
	}, nil
}
