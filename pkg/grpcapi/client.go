package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Client calls a remote dialplan service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for the daemon at addr. No connection is made
// until the first call.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)))
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// Healthy reports whether the daemon's last reload was clean.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	// The health service speaks protobuf.
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx,
		&healthpb.HealthCheckRequest{Service: serviceName}, grpc.CallContentSubtype("proto"))
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

func invoke[Req, Resp any](ctx context.Context, c *Client, method string, in *Req) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Status(ctx context.Context, in *StatusRequest) (*StatusReply, error) {
	return invoke[StatusRequest, StatusReply](ctx, c, "Status", in)
}

func (c *Client) Load(ctx context.Context, in *LoadRequest) (*LoadReply, error) {
	return invoke[LoadRequest, LoadReply](ctx, c, "Load", in)
}

func (c *Client) Check(ctx context.Context, in *CheckRequest) (*LoadReply, error) {
	return invoke[CheckRequest, LoadReply](ctx, c, "Check", in)
}

func (c *Client) Reload(ctx context.Context, in *ReloadRequest) (*ReloadReply, error) {
	return invoke[ReloadRequest, ReloadReply](ctx, c, "Reload", in)
}

func (c *Client) Unload(ctx context.Context, in *UnloadRequest) (*UnloadReply, error) {
	return invoke[UnloadRequest, UnloadReply](ctx, c, "Unload", in)
}

func (c *Client) Rollback(ctx context.Context, in *RollbackRequest) (*HistoryItem, error) {
	return invoke[RollbackRequest, HistoryItem](ctx, c, "Rollback", in)
}

func (c *Client) History(ctx context.Context, in *HistoryRequest) (*HistoryReply, error) {
	return invoke[HistoryRequest, HistoryReply](ctx, c, "History", in)
}

func (c *Client) Show(ctx context.Context, in *ShowRequest) (*ShowReply, error) {
	return invoke[ShowRequest, ShowReply](ctx, c, "Show", in)
}

func (c *Client) Diagnostics(ctx context.Context, in *DiagnosticsRequest) (*DiagnosticsReply, error) {
	return invoke[DiagnosticsRequest, DiagnosticsReply](ctx, c, "Diagnostics", in)
}

func (c *Client) Logs(ctx context.Context, in *LogsRequest) (*LogsReply, error) {
	return invoke[LogsRequest, LogsReply](ctx, c, "Logs", in)
}

func (c *Client) Apps(ctx context.Context, in *AppsRequest) (*AppsReply, error) {
	return invoke[AppsRequest, AppsReply](ctx, c, "Apps", in)
}
