// Package client talks to a sceneguard gRPC server.
package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	pb "github.com/ppiankov/sceneguard/api/proto/sceneguard/v1"
	"github.com/ppiankov/sceneguard/internal/model"
	"github.com/ppiankov/sceneguard/internal/scene"
)

// Client connects to a sceneguard gRPC server.
type Client struct {
	conn   *grpc.ClientConn
	client pb.SceneGuardClient
}

// New creates a gRPC client connected to the given address.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to guard server: %w", err)
	}
	return &Client{
		conn:   conn,
		client: pb.NewSceneGuardClient(conn),
	}, nil
}

// Check guards finished text against sc on the server.
func (c *Client) Check(ctx context.Context, sc *scene.Scene, text string) (model.GuardResult, string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	in, err := pb.Encode(pb.CheckRequest{Scene: *sc, Text: text})
	if err != nil {
		return model.GuardResult{}, "", err
	}
	out, err := c.client.Check(ctx, in)
	if err != nil {
		return model.GuardResult{}, "", fmt.Errorf("check: %w", err)
	}
	var resp pb.CheckResponse
	if err := pb.Decode(out, &resp); err != nil {
		return model.GuardResult{}, "", err
	}
	return resp.Result, resp.SessionID, nil
}

// Session is one remote guard session over a Stream call.
type Session struct {
	ID     string
	stream pb.SceneGuard_StreamClient
	cancel context.CancelFunc
	result *model.GuardResult
}

// Open starts a remote guard session for sc.
func (c *Client) Open(ctx context.Context, sc *scene.Scene) (*Session, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.client.Stream(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	s := &Session{stream: stream, cancel: cancel}
	reply, err := s.roundTrip(pb.StreamRequest{Scene: sc})
	if err != nil {
		cancel()
		return nil, err
	}
	s.ID = reply.SessionID
	return s, nil
}

// ProcessFragment sends one fragment. Fail-closed: on any RPC error the
// returned result says stop.
func (s *Session) ProcessFragment(fragment string) (model.FragmentResult, error) {
	reply, err := s.roundTrip(pb.StreamRequest{Fragment: &fragment})
	if err != nil {
		return model.FragmentResult{}, err
	}
	if reply.Fragment == nil {
		return model.FragmentResult{}, fmt.Errorf("reply without fragment result")
	}
	return *reply.Fragment, nil
}

// Finish settles the session and returns its result.
func (s *Session) Finish() (model.FragmentResult, model.GuardResult, error) {
	reply, err := s.roundTrip(pb.StreamRequest{Finish: true})
	if err != nil {
		return model.FragmentResult{}, model.GuardResult{}, err
	}
	var frag model.FragmentResult
	if reply.Fragment != nil {
		frag = *reply.Fragment
	}
	var result model.GuardResult
	if reply.Result != nil {
		result = *reply.Result
	}
	return frag, result, nil
}

// Result returns the last result the server sent, if any.
func (s *Session) Result() (model.GuardResult, bool) {
	if s.result == nil {
		return model.GuardResult{}, false
	}
	return *s.result, true
}

// Close ends the session; the server records it.
func (s *Session) Close() error {
	err := s.stream.CloseSend()
	// drain so the server sees a clean close before the context goes
	for {
		if _, rerr := s.stream.Recv(); rerr != nil {
			break
		}
	}
	s.cancel()
	return err
}

func (s *Session) roundTrip(req pb.StreamRequest) (pb.StreamReply, error) {
	in, err := pb.Encode(req)
	if err != nil {
		return pb.StreamReply{}, err
	}
	if err := s.stream.Send(in); err != nil {
		return pb.StreamReply{}, fmt.Errorf("send: %w", err)
	}
	out, err := s.stream.Recv()
	if err != nil {
		return pb.StreamReply{}, fmt.Errorf("recv: %w", err)
	}
	var reply pb.StreamReply
	if err := pb.Decode(out, &reply); err != nil {
		return pb.StreamReply{}, err
	}
	if reply.Result != nil {
		s.result = reply.Result
	}
	return reply, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
