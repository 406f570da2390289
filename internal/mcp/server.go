// Package mcp exposes the guard as MCP tools for planning agents.
package mcp

import (
	"context"
	"fmt"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ppiankov/sceneguard/internal/alert"
	"github.com/ppiankov/sceneguard/internal/audit"
	"github.com/ppiankov/sceneguard/internal/logging"
	"github.com/ppiankov/sceneguard/internal/model"
	"github.com/ppiankov/sceneguard/internal/policy"
	"github.com/ppiankov/sceneguard/internal/profile"
	"github.com/ppiankov/sceneguard/internal/tracer"
)

// Config holds MCP server configuration.
type Config struct {
	PolicyPath   string
	ProfileName  string
	AuditLogPath string
	Logger       *zap.Logger
}

// Server wraps the MCP SDK server with the scene guard.
type Server struct {
	mcpServer  *mcpsdk.Server
	policyCfg  *policy.PolicyConfig
	policyHash string
	dispatcher *alert.Dispatcher
	auditLog   *audit.Log
	logger     *zap.Logger

	mu     sync.Mutex
	checks []map[string]any
}

// New creates an MCP server with loaded policy and tools.
func New(cfg Config) (*Server, error) {
	policyCfg, policyHash, err := policy.LoadConfigWithHash(cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy config: %w", err)
	}

	if cfg.ProfileName != "" {
		prof, err := profile.Load(cfg.ProfileName)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile %q: %w", cfg.ProfileName, err)
		}
		policyCfg, err = profile.ApplyToPolicy(prof, policyCfg)
		if err != nil {
			return nil, err
		}
	}

	var auditLog *audit.Log
	if cfg.AuditLogPath != "" {
		auditLog, err = audit.Open(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	s := &Server{
		policyCfg:  policyCfg,
		policyHash: policyHash,
		dispatcher: alert.NewDispatcher(policyCfg.Alerts),
		auditLog:   auditLog,
		logger:     logging.OrNop(cfg.Logger).Named("mcp"),
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "sceneguard",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close closes the audit log if configured.
func (s *Server) Close() error {
	if s.auditLog != nil {
		return s.auditLog.Close()
	}
	return nil
}

// TraceSummary lists the checks served so far.
func (s *Server) TraceSummary() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	checks := make([]map[string]any, len(s.checks))
	copy(checks, s.checks)
	return map[string]any{
		"policy_hash": s.policyHash,
		"checks":      checks,
	}
}

func (s *Server) complete(sessionID, label string, result model.GuardResult) {
	if s.auditLog != nil {
		if err := s.auditLog.RecordResult(sessionID, label, s.policyHash, result); err != nil {
			s.logger.Error("audit write failed", zap.String("session", sessionID), zap.Error(err))
		}
	}
	s.dispatcher.DispatchResult(sessionID, label, s.policyHash, result)

	s.mu.Lock()
	s.checks = append(s.checks, map[string]any{
		"session_id":  sessionID,
		"scene":       label,
		"terminated":  result.WasTerminated,
		"reason":      result.TerminationReason,
		"violations":  len(result.Violations),
		"recorded_at": tracer.UTCNowISO(),
	})
	s.mu.Unlock()

	s.logger.Info("check complete",
		zap.String("session", sessionID),
		zap.String("scene", label),
		zap.Bool("terminated", result.WasTerminated))
}

// registerTools adds the sceneguard tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "sceneguard_check",
		Description: "Check finished scene text against its constraints. Returns the truncated content, termination reason and violations.",
	}, s.handleCheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "sceneguard_thresholds",
		Description: "Show the active detector thresholds, mode and end marker, plus the length cap for a target length.",
	}, s.handleThresholds)
}
