// Package wire hand-authors the gRPC service binding the replication
// transport rides on (§4.4/§6): a ServiceDesc plus a gob-based
// encoding.Codec, in place of protoc-generated descriptor bytes.
//
// A genuine protobuf-go v2 service requires an exact serialized
// FileDescriptorProto that only `protoc` can produce reliably; without
// running it we instead register a codec under grpc's default codec name
// ("proto") so every Marshal/Unmarshal call in this process goes through
// gob on our own plain structs. grpc.Server/ClientConn, their connection
// pooling, and their deadline propagation are all genuinely exercised —
// only the wire encoding differs from the upstream project's. See
// DESIGN.md for the full rationale.
package wire

import (
	"bytes"
	"context"
	"encoding/gob"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"blograft/pkg/consensus"
)

// ServiceName is the gRPC service's fully-qualified name.
const ServiceName = "blograft.raft.RaftService"

// GobCodec implements encoding.Codec by gob-encoding whatever concrete
// struct it is handed. Registering it under "proto" makes it the codec
// grpc reaches for whenever a call doesn't name a content-subtype, which
// is every call this package makes.
type GobCodec struct{}

func (GobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobCodec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (GobCodec) Name() string { return "proto" }

func init() {
	encoding.RegisterCodec(GobCodec{})
}

// RaftServiceServer is what the server side of the ServiceDesc below
// dispatches to; pkg/transport's server adapter implements it by wrapping
// a *consensus.Node.
type RaftServiceServer interface {
	RequestVote(ctx context.Context, args *consensus.RequestVoteArgs) (*consensus.RequestVoteReply, error)
	AppendEntries(ctx context.Context, args *consensus.AppendEntriesArgs) (*consensus.AppendEntriesReply, error)
	Ping(ctx context.Context, args *consensus.PingArgs) (*consensus.PingReply, error)
	GetLeaderInfo(ctx context.Context, args *consensus.GetLeaderInfoArgs) (*consensus.GetLeaderInfoReply, error)
}

func requestVoteHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(consensus.RequestVoteArgs)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftServiceServer).RequestVote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/RequestVote"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RaftServiceServer).RequestVote(ctx, req.(*consensus.RequestVoteArgs))
	})
}

func appendEntriesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(consensus.AppendEntriesArgs)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftServiceServer).AppendEntries(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/AppendEntries"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RaftServiceServer).AppendEntries(ctx, req.(*consensus.AppendEntriesArgs))
	})
}

func pingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(consensus.PingArgs)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftServiceServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Ping"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RaftServiceServer).Ping(ctx, req.(*consensus.PingArgs))
	})
}

func getLeaderInfoHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(consensus.GetLeaderInfoArgs)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftServiceServer).GetLeaderInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetLeaderInfo"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RaftServiceServer).GetLeaderInfo(ctx, req.(*consensus.GetLeaderInfoArgs))
	})
}

// ServiceDesc is registered with a *grpc.Server via RegisterRaftServiceServer.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RaftServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RequestVote", Handler: requestVoteHandler},
		{MethodName: "AppendEntries", Handler: appendEntriesHandler},
		{MethodName: "Ping", Handler: pingHandler},
		{MethodName: "GetLeaderInfo", Handler: getLeaderInfoHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "blograft/raft.proto",
}

// RegisterRaftServiceServer registers srv's implementation on s.
func RegisterRaftServiceServer(s *grpc.Server, srv RaftServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// RaftServiceClient is the client-side stub used by pkg/transport.
type RaftServiceClient struct {
	cc *grpc.ClientConn
}

// NewRaftServiceClient wraps an established connection.
func NewRaftServiceClient(cc *grpc.ClientConn) RaftServiceClient {
	return RaftServiceClient{cc: cc}
}

func (c RaftServiceClient) RequestVote(ctx context.Context, in *consensus.RequestVoteArgs) (*consensus.RequestVoteReply, error) {
	out := new(consensus.RequestVoteReply)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/RequestVote", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c RaftServiceClient) AppendEntries(ctx context.Context, in *consensus.AppendEntriesArgs) (*consensus.AppendEntriesReply, error) {
	out := new(consensus.AppendEntriesReply)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/AppendEntries", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c RaftServiceClient) Ping(ctx context.Context, in *consensus.PingArgs) (*consensus.PingReply, error) {
	out := new(consensus.PingReply)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Ping", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c RaftServiceClient) GetLeaderInfo(ctx context.Context, in *consensus.GetLeaderInfoArgs) (*consensus.GetLeaderInfoReply, error) {
	out := new(consensus.GetLeaderInfoReply)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/GetLeaderInfo", in, out); err != nil {
		return nil, err
	}
	return out, nil
}
