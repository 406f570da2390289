// Package server exposes the guard over gRPC.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	pb "github.com/ppiankov/sceneguard/api/proto/sceneguard/v1"
	"github.com/ppiankov/sceneguard/internal/alert"
	"github.com/ppiankov/sceneguard/internal/audit"
	"github.com/ppiankov/sceneguard/internal/guard"
	"github.com/ppiankov/sceneguard/internal/logging"
	"github.com/ppiankov/sceneguard/internal/model"
	"github.com/ppiankov/sceneguard/internal/policy"
	"github.com/ppiankov/sceneguard/internal/profile"
	"github.com/ppiankov/sceneguard/internal/reload"
	"github.com/ppiankov/sceneguard/internal/scene"
	"github.com/ppiankov/sceneguard/internal/tracer"
)

// Config holds gRPC server configuration.
type Config struct {
	Port         int
	PolicyPath   string
	ProfileName  string
	AuditLogPath string
	Logger       *zap.Logger
}

// Server implements the SceneGuard gRPC service.
type Server struct {
	mu         sync.RWMutex
	policyCfg  *policy.PolicyConfig
	policyHash string
	dispatcher *alert.Dispatcher
	auditLog   *audit.Log
	sessions   sync.Map // session_id -> *tracer.SessionTrace
	cfg        Config
	logger     *zap.Logger

	grpcServer *grpc.Server
}

// New creates a gRPC server with loaded policy.
func New(cfg Config) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		logger:     logging.OrNop(cfg.Logger).Named("server"),
		grpcServer: grpc.NewServer(),
	}
	if err := s.ReloadPolicy(); err != nil {
		return nil, err
	}

	if cfg.AuditLogPath != "" {
		auditLog, err := audit.Open(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		s.auditLog = auditLog
	}

	pb.RegisterSceneGuardServer(s.grpcServer, s)
	return s, nil
}

// Serve starts the gRPC server on the configured port. Blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}
	return s.ServeOn(lis)
}

// ServeOn starts the gRPC server on the given listener.
func (s *Server) ServeOn(lis net.Listener) error {
	s.logger.Info("grpc server listening", zap.String("addr", lis.Addr().String()))
	return s.grpcServer.Serve(lis)
}

// Watch reloads the policy whenever its file changes, until ctx is done.
func (s *Server) Watch(ctx context.Context) error {
	r, err := reload.New([]string{s.cfg.PolicyPath}, s.ReloadPolicy, s.logger)
	if err != nil {
		return err
	}
	return r.Run(ctx)
}

// GracefulStop gracefully shuts down the gRPC server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// Close cleans up resources.
func (s *Server) Close() error {
	if s.auditLog != nil {
		return s.auditLog.Close()
	}
	return nil
}

// ReloadPolicy atomically swaps the policy config.
// Called by the hot-reloader on file change.
func (s *Server) ReloadPolicy() error {
	policyCfg, policyHash, err := policy.LoadConfigWithHash(s.cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("failed to reload policy config: %w", err)
	}

	if s.cfg.ProfileName != "" {
		prof, err := profile.Load(s.cfg.ProfileName)
		if err != nil {
			return fmt.Errorf("failed to reload profile %q: %w", s.cfg.ProfileName, err)
		}
		policyCfg, err = profile.ApplyToPolicy(prof, policyCfg)
		if err != nil {
			return fmt.Errorf("failed to apply profile %q: %w", s.cfg.ProfileName, err)
		}
	}

	s.mu.Lock()
	s.policyCfg = policyCfg
	s.policyHash = policyHash
	s.dispatcher = alert.NewDispatcher(policyCfg.Alerts)
	s.mu.Unlock()
	return nil
}

// Trace returns the trace of an open stream session, or nil.
func (s *Server) Trace(sessionID string) map[string]any {
	v, ok := s.sessions.Load(sessionID)
	if !ok {
		return nil
	}
	return v.(*tracer.SessionTrace).ToJSON()
}

// Check implements the Check RPC.
func (s *Server) Check(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.CheckRequest
	if err := pb.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := req.Scene.Prepare(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = tracer.NewSessionID()
	}

	policyCfg, policyHash, _ := s.snapshot()
	result, err := guard.CheckComplete(req.Text, req.Scene.Constraints(), s.options(policyCfg, &req.Scene)...)
	if err != nil {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	s.complete(sessionID, req.Scene.Label(), policyHash, result)

	return pb.Encode(pb.CheckResponse{SessionID: sessionID, Result: result})
}

// Stream implements the Stream RPC. One stream is one guard session.
func (s *Server) Stream(stream pb.SceneGuard_StreamServer) error {
	first, err := stream.Recv()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}

	var open pb.StreamRequest
	if err := pb.Decode(first, &open); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if open.Scene == nil {
		return status.Error(codes.InvalidArgument, "first message must carry a scene")
	}
	if err := open.Scene.Prepare(); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	policyCfg, policyHash, _ := s.snapshot()
	g, err := guard.New(open.Scene.Constraints(), s.options(policyCfg, open.Scene)...)
	if err != nil {
		return status.Error(codes.FailedPrecondition, err.Error())
	}

	sessionID := open.SessionID
	if sessionID == "" {
		sessionID = tracer.NewSessionID()
	}
	label := open.Scene.Label()
	trace := tracer.NewSessionTrace(sessionID, label)
	s.sessions.Store(sessionID, trace)
	defer func() {
		s.sessions.Delete(sessionID)
		s.complete(sessionID, label, policyHash, g.Result())
	}()

	if err := send(stream, pb.StreamReply{SessionID: sessionID}); err != nil {
		return err
	}

	for {
		in, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		var req pb.StreamRequest
		if err := pb.Decode(in, &req); err != nil {
			return status.Error(codes.InvalidArgument, err.Error())
		}

		var res model.FragmentResult
		switch {
		case req.Finish:
			res = g.Finish()
		case req.Fragment != nil:
			res = g.ProcessFragment(*req.Fragment)
			trace.Observe(*req.Fragment, res)
		default:
			return status.Error(codes.InvalidArgument, "message must carry a fragment or finish")
		}

		reply := pb.StreamReply{SessionID: sessionID, Fragment: &res}
		if req.Finish || g.Terminated() {
			result := g.Result()
			reply.Result = &result
		}
		if err := send(stream, reply); err != nil {
			return err
		}
	}
}

func send(stream pb.SceneGuard_StreamServer, reply pb.StreamReply) error {
	out, err := pb.Encode(reply)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.Send(out)
}

func (s *Server) snapshot() (*policy.PolicyConfig, string, *alert.Dispatcher) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policyCfg, s.policyHash, s.dispatcher
}

func (s *Server) options(cfg *policy.PolicyConfig, sc *scene.Scene) []guard.Option {
	return append([]guard.Option{guard.WithConfig(cfg)}, sc.Options()...)
}

func (s *Server) complete(sessionID, label, policyHash string, result model.GuardResult) {
	if s.auditLog != nil {
		if err := s.auditLog.RecordResult(sessionID, label, policyHash, result); err != nil {
			s.logger.Error("audit write failed", zap.String("session", sessionID), zap.Error(err))
		}
	}
	_, _, d := s.snapshot()
	d.DispatchResult(sessionID, label, policyHash, result)

	s.logger.Info("session complete",
		zap.String("session", sessionID),
		zap.String("scene", label),
		zap.Bool("terminated", result.WasTerminated),
		zap.String("reason", result.TerminationReason),
		zap.Int("violations", len(result.Violations)))
}
