// Package sceneguardv1 holds the SceneGuard gRPC service definition and
// its message shapes. Messages travel as google.protobuf.Struct.
package sceneguardv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName                      = "sceneguard.v1.SceneGuard"
	SceneGuard_Check_FullMethodName  = "/sceneguard.v1.SceneGuard/Check"
	SceneGuard_Stream_FullMethodName = "/sceneguard.v1.SceneGuard/Stream"
)

// SceneGuard_StreamServer is the server side of a Stream call.
type SceneGuard_StreamServer = grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]

// SceneGuard_StreamClient is the client side of a Stream call.
type SceneGuard_StreamClient = grpc.BidiStreamingClient[structpb.Struct, structpb.Struct]

// SceneGuardServer is the server API for the SceneGuard service.
type SceneGuardServer interface {
	Check(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stream(SceneGuard_StreamServer) error
}

// RegisterSceneGuardServer registers srv on s.
func RegisterSceneGuardServer(s grpc.ServiceRegistrar, srv SceneGuardServer) {
	s.RegisterService(&SceneGuard_ServiceDesc, srv)
}

func _SceneGuard_Check_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SceneGuardServer).Check(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SceneGuard_Check_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SceneGuardServer).Check(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _SceneGuard_Stream_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(SceneGuardServer).Stream(&grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// SceneGuard_ServiceDesc is the grpc.ServiceDesc for the SceneGuard service.
var SceneGuard_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SceneGuardServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Check",
			Handler:    _SceneGuard_Check_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       _SceneGuard_Stream_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "sceneguard/v1/sceneguard.proto",
}

// SceneGuardClient is the client API for the SceneGuard service.
type SceneGuardClient interface {
	Check(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Stream(ctx context.Context, opts ...grpc.CallOption) (SceneGuard_StreamClient, error)
}

type sceneGuardClient struct {
	cc grpc.ClientConnInterface
}

// NewSceneGuardClient wraps a connection.
func NewSceneGuardClient(cc grpc.ClientConnInterface) SceneGuardClient {
	return &sceneGuardClient{cc}
}

func (c *sceneGuardClient) Check(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SceneGuard_Check_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sceneGuardClient) Stream(ctx context.Context, opts ...grpc.CallOption) (SceneGuard_StreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &SceneGuard_ServiceDesc.Streams[0], SceneGuard_Stream_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}, nil
}
