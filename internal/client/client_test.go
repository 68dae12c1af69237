package client

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/alfredjeanlab/callsheet/internal/dispatch"
	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/presence"
	"github.com/alfredjeanlab/callsheet/internal/server"
	"github.com/alfredjeanlab/callsheet/internal/sheet/memsheet"
)

func leadRow(account, processed, assignee string) []string {
	r := make([]string, 18)
	r[0] = account
	r[1] = processed
	r[16] = assignee
	return r
}

// backend is a real server over an in-memory sheet.
type backend struct {
	sheet *memsheet.Sheet
	srv   *server.CallSheetServer
}

func newBackend(t *testing.T, leads ...[]string) *backend {
	t.Helper()
	rows := append([][]string{make([]string, 18)}, leads...)
	sh := memsheet.New(rows)
	tracker := presence.New()
	engine, err := dispatch.New(sh, model.SimpleColumns(), dispatch.Options{
		SettleDelay: -1,
		Observers:   []dispatch.Observer{tracker},
	})
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}
	return &backend{sheet: sh, srv: server.New(engine, nil, tracker, nil)}
}

// httpClient serves b over httptest with serverToken and returns a client
// presenting clientToken.
func (b *backend) httpClient(t *testing.T, serverToken, clientToken string) Client {
	t.Helper()
	ts := httptest.NewServer(b.srv.NewHTTPHandler(serverToken))
	t.Cleanup(ts.Close)
	return NewHTTPClient(ts.URL, clientToken)
}

// grpcClient is httpClient over an in-memory gRPC listener.
func (b *backend) grpcClient(t *testing.T, serverToken, clientToken string) Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := server.NewGRPCServer(b.srv, serverToken)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", clientToken,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatalf("NewGRPCClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

var transports = []struct {
	name string
	dial func(b *backend, t *testing.T, serverToken, clientToken string) Client
}{
	{"http", (*backend).httpClient},
	{"grpc", (*backend).grpcClient},
}

func TestClient_Shift(t *testing.T) {
	for _, tr := range transports {
		t.Run(tr.name, func(t *testing.T) {
			b := newBackend(t, leadRow("a1", "1", "Caller_02"), leadRow("a2", "", ""), leadRow("a3", "", ""))
			c := tr.dial(b, t, "secret", "secret")
			ctx := context.Background()

			if status, err := c.Health(ctx); err != nil || status != "ok" {
				t.Fatalf("Health = %q, %v", status, err)
			}

			claim, err := c.Claim(ctx, "Caller_01")
			if err != nil {
				t.Fatalf("Claim: %v", err)
			}
			if claim.Ticket.Position != 2 || claim.Resumed {
				t.Fatalf("claim = %+v", claim)
			}

			// Walking away keeps the row; the next claim resumes it.
			if err := c.Release(ctx, 2, "Caller_01"); err != nil {
				t.Fatalf("Release: %v", err)
			}
			again, err := c.Claim(ctx, "Caller_01")
			if err != nil || again.Ticket.Position != 2 || !again.Resumed {
				t.Fatalf("resume = %+v, %v", again, err)
			}

			if err := c.Submit(ctx, 2, model.OutcomePass, "Caller_01", model.Payload{ContactID: "501"}); err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if got := b.sheet.Get(2, 4); got != "501" {
				t.Errorf("contact id cell = %q", got)
			}

			st, err := c.Stats(ctx)
			if err != nil || st.Processed != 2 || st.Passed != 1 {
				t.Fatalf("Stats = %+v, %v", st, err)
			}
			tbl, err := c.Snapshot(ctx)
			if err != nil || tbl.Len() != 4 {
				t.Fatalf("Snapshot = %v, %v", tbl, err)
			}
			roster, err := c.Roster(ctx, 0)
			if err != nil || len(roster) != 1 || roster[0].Caller != "Caller_01" || roster[0].Passed != 1 {
				t.Fatalf("Roster = %+v, %v", roster, err)
			}
			events, err := c.Journal(ctx, model.EventFilter{})
			if err != nil || len(events) != 0 {
				t.Fatalf("Journal without a store = %v, %v", events, err)
			}
			sheets, err := c.Sheets(ctx)
			if err != nil || len(sheets) != 0 {
				t.Fatalf("Sheets = %v, %v", sheets, err)
			}
		})
	}
}

func TestClient_ErrorsMapToSentinels(t *testing.T) {
	for _, tr := range transports {
		t.Run(tr.name, func(t *testing.T) {
			b := newBackend(t, leadRow("a1", "", "Caller_02"))
			c := tr.dial(b, t, "", "")
			ctx := context.Background()

			if _, err := c.Claim(ctx, "Caller_01"); !errors.Is(err, dispatch.ErrNoTickets) {
				t.Errorf("Claim: expected ErrNoTickets, got %v", err)
			}
			if err := c.Submit(ctx, 1, model.Outcome("LATER"), "Caller_02", model.Payload{}); !errors.Is(err, dispatch.ErrInvalidOutcome) {
				t.Errorf("Submit: expected ErrInvalidOutcome, got %v", err)
			}
			if err := c.Submit(ctx, 0, model.OutcomeFail, "Caller_02", model.Payload{}); !errors.Is(err, dispatch.ErrInvalidArgument) {
				t.Errorf("Submit header: expected ErrInvalidArgument, got %v", err)
			}
			if err := c.Release(ctx, 1, "Caller_01"); !errors.Is(err, dispatch.ErrNotHeld) {
				t.Errorf("Release: expected ErrNotHeld, got %v", err)
			}

			b.sheet.FailFetch(errors.New("vendor down"))
			if _, err := c.Snapshot(ctx); !Upstream(err) {
				t.Errorf("Snapshot: expected upstream error, got %v", err)
			}
		})
	}
}

func TestClient_ContendedAcrossTransports(t *testing.T) {
	for _, tr := range transports {
		t.Run(tr.name, func(t *testing.T) {
			b := newBackend(t, leadRow("a1", "", ""))
			b.sheet.AfterWrite(func(s *memsheet.Sheet, pos, col int, _ string) {
				s.Set(pos, col, "Caller_02")
			})
			c := tr.dial(b, t, "", "")

			_, err := c.Claim(context.Background(), "Caller_01")
			if !errors.Is(err, dispatch.ErrNoTickets) {
				t.Fatalf("expected ErrNoTickets, got %v", err)
			}
			got := dispatch.Contended(err)
			if len(got) != 1 || got[0].Position != 1 || got[0].Winner != "Caller_02" {
				t.Fatalf("contended = %+v", got)
			}
		})
	}
}

func TestClient_Unauthenticated(t *testing.T) {
	for _, tr := range transports {
		t.Run(tr.name, func(t *testing.T) {
			b := newBackend(t, leadRow("a1", "", ""))
			c := tr.dial(b, t, "secret", "")
			if _, err := c.Health(context.Background()); err != nil {
				t.Fatalf("Health is exempt: %v", err)
			}
			_, err := c.Stats(context.Background())
			var ae *APIError
			if !errors.As(err, &ae) || ae.StatusCode != 401 {
				t.Fatalf("expected 401, got %v", err)
			}
		})
	}
}
