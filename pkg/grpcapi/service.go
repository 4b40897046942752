package grpcapi

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const serviceName = "aelc.v1.Dialplan"

// codecName is the content subtype the dialplan service is spoken in.
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// DialplanServer is the dialplan management service. Service implements
// it in process; Client implements it over a connection.
type DialplanServer interface {
	Status(context.Context, *StatusRequest) (*StatusReply, error)
	Load(context.Context, *LoadRequest) (*LoadReply, error)
	Check(context.Context, *CheckRequest) (*LoadReply, error)
	Reload(context.Context, *ReloadRequest) (*ReloadReply, error)
	Unload(context.Context, *UnloadRequest) (*UnloadReply, error)
	Rollback(context.Context, *RollbackRequest) (*HistoryItem, error)
	History(context.Context, *HistoryRequest) (*HistoryReply, error)
	Show(context.Context, *ShowRequest) (*ShowReply, error)
	Diagnostics(context.Context, *DiagnosticsRequest) (*DiagnosticsReply, error)
	Logs(context.Context, *LogsRequest) (*LogsReply, error)
	Apps(context.Context, *AppsRequest) (*AppsReply, error)
}

func unary[Req, Resp any](name string, call func(DialplanServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DialplanServer), ctx, req.(*Req))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + name}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*DialplanServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Status", DialplanServer.Status),
		unary("Load", DialplanServer.Load),
		unary("Check", DialplanServer.Check),
		unary("Reload", DialplanServer.Reload),
		unary("Unload", DialplanServer.Unload),
		unary("Rollback", DialplanServer.Rollback),
		unary("History", DialplanServer.History),
		unary("Show", DialplanServer.Show),
		unary("Diagnostics", DialplanServer.Diagnostics),
		unary("Logs", DialplanServer.Logs),
		unary("Apps", DialplanServer.Apps),
	},
	Metadata: "aelc/v1/dialplan",
}

// RegisterDialplanServer registers srv on s.
func RegisterDialplanServer(s grpc.ServiceRegistrar, srv DialplanServer) {
	s.RegisterService(&serviceDesc, srv)
}
