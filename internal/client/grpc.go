package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/callsheet/internal/api"
	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/presence"
)

// GRPCClient implements Client using the gRPC transport.
type GRPCClient struct {
	conn  *grpc.ClientConn
	token string
}

var _ Client = (*GRPCClient)(nil)

// NewGRPCClient connects to the given gRPC address and returns a client.
// Extra dial options are appended after the insecure transport default.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, token: token}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) Claim(ctx context.Context, user string) (*model.Claim, error) {
	var claim model.Claim
	if err := c.call(ctx, api.MethodClaim, api.ClaimRequest{User: user}, &claim); err != nil {
		return nil, err
	}
	return &claim, nil
}

func (c *GRPCClient) Submit(ctx context.Context, pos int, outcome model.Outcome, user string, p model.Payload) error {
	req := api.SubmitRequest{Position: pos, User: user, Outcome: string(outcome), Note: p.Note, ContactID: p.ContactID}
	return c.call(ctx, api.MethodSubmit, req, &api.SubmitResponse{})
}

func (c *GRPCClient) Release(ctx context.Context, pos int, user string) error {
	return c.call(ctx, api.MethodRelease, api.ReleaseRequest{Position: pos, User: user}, &api.Empty{})
}

func (c *GRPCClient) Snapshot(ctx context.Context) (*model.Table, error) {
	var tbl model.Table
	if err := c.call(ctx, api.MethodSnapshot, api.Empty{}, &tbl); err != nil {
		return nil, err
	}
	return &tbl, nil
}

func (c *GRPCClient) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	if err := c.call(ctx, api.MethodStats, api.Empty{}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *GRPCClient) Sheets(ctx context.Context) ([]model.SheetInfo, error) {
	var resp api.SheetsResponse
	if err := c.call(ctx, api.MethodSheets, api.Empty{}, &resp); err != nil {
		return nil, err
	}
	return resp.Sheets, nil
}

func (c *GRPCClient) Roster(ctx context.Context, stale time.Duration) ([]presence.Entry, error) {
	req := api.RosterRequest{}
	if stale > 0 {
		req.Stale = stale.String()
	}
	var resp api.RosterResponse
	if err := c.call(ctx, api.MethodRoster, req, &resp); err != nil {
		return nil, err
	}
	return resp.Callers, nil
}

func (c *GRPCClient) Journal(ctx context.Context, f model.EventFilter) ([]*model.Event, error) {
	req := api.JournalRequest{Actor: f.Actor, Kind: string(f.Kind), Limit: f.Limit}
	var resp api.JournalResponse
	if err := c.call(ctx, api.MethodJournal, req, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// Health returns the service health status.
func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	var resp api.HealthResponse
	if err := c.call(ctx, api.MethodHealth, api.Empty{}, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// call sends req as a Struct and decodes the Struct reply into resp.
func (c *GRPCClient) call(ctx context.Context, method string, req, resp any) error {
	in, err := api.ToStruct(req)
	if err != nil {
		return err
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, api.FullMethod(method), in, out); err != nil {
		return fromStatus(err)
	}
	return api.FromStruct(out, resp)
}

// fromStatus converts a gRPC status error into an *APIError with the
// matching HTTP status, so both transports fail the same way.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	ae := &APIError{StatusCode: httpStatusFor(st.Code()), Message: st.Message()}
	for _, d := range st.Details() {
		if s, ok := d.(*structpb.Struct); ok {
			var body api.ErrorBody
			if api.FromStruct(s, &body) == nil {
				ae.Contended = body.Contended
			}
		}
	}
	return ae
}

func httpStatusFor(code codes.Code) int {
	switch code {
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.Unavailable:
		return http.StatusBadGateway
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Canceled:
		return 499
	}
	return http.StatusInternalServerError
}
