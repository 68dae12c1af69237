package server

import (
	"context"
	"time"

	"github.com/alfredjeanlab/callsheet/internal/api"
	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/presence"
	"github.com/alfredjeanlab/callsheet/internal/store"
)

// Dispatcher is the claim/submit surface the transports expose.
// *dispatch.Engine implements it.
type Dispatcher interface {
	Claim(ctx context.Context, user string) (*model.Claim, error)
	Submit(ctx context.Context, pos int, outcome model.Outcome, user string, p model.Payload) error
	Release(ctx context.Context, pos int, user string) error
	Snapshot(ctx context.Context) (*model.Table, error)
	Stats(ctx context.Context) (*model.Stats, error)
	Sheets(ctx context.Context) ([]model.SheetInfo, error)
}

// CallSheetServer serves the dispatch engine over HTTP and gRPC.
type CallSheetServer struct {
	engine   Dispatcher
	journal  store.Store
	Presence *presence.Tracker
	hub      *EventHub
	started  time.Time
}

// New returns a server over engine. journal backs the journal endpoints;
// nil disables them (empty results). presence and hub may be nil.
func New(engine Dispatcher, journal store.Store, tracker *presence.Tracker, hub *EventHub) *CallSheetServer {
	if journal == nil {
		journal = store.Discard{}
	}
	return &CallSheetServer{
		engine:   engine,
		journal:  journal,
		Presence: tracker,
		hub:      hub,
		started:  time.Now(),
	}
}

func (s *CallSheetServer) claim(ctx context.Context, req api.ClaimRequest) (*model.Claim, error) {
	return s.engine.Claim(ctx, req.User)
}

func (s *CallSheetServer) submit(ctx context.Context, req api.SubmitRequest) (*api.SubmitResponse, error) {
	err := s.engine.Submit(ctx, req.Position, model.ParseOutcome(req.Outcome), req.User, model.Payload{
		Note:      req.Note,
		ContactID: req.ContactID,
	})
	if err != nil {
		return nil, err
	}
	return &api.SubmitResponse{OK: true}, nil
}

func (s *CallSheetServer) release(ctx context.Context, req api.ReleaseRequest) (*api.Empty, error) {
	if err := s.engine.Release(ctx, req.Position, req.User); err != nil {
		return nil, err
	}
	return &api.Empty{}, nil
}

func (s *CallSheetServer) sheets(ctx context.Context) (*api.SheetsResponse, error) {
	list, err := s.engine.Sheets(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.SheetInfo{}
	}
	return &api.SheetsResponse{Sheets: list}, nil
}

func (s *CallSheetServer) roster(req api.RosterRequest) ([]presence.Entry, error) {
	if s.Presence == nil {
		return []presence.Entry{}, nil
	}
	var stale time.Duration
	if req.Stale != "" {
		d, err := time.ParseDuration(req.Stale)
		if err != nil || d < 0 {
			return nil, inputError("invalid stale duration " + req.Stale)
		}
		stale = d
	}
	return s.Presence.Roster(stale), nil
}

func (s *CallSheetServer) journalEvents(ctx context.Context, req api.JournalRequest) (*api.JournalResponse, error) {
	if req.Limit < 0 {
		return nil, inputError("limit must not be negative")
	}
	evts, err := s.journal.ListEvents(ctx, model.EventFilter{
		Actor: req.Actor,
		Kind:  model.EventKind(req.Kind),
		Limit: req.Limit,
	})
	if err != nil {
		return nil, err
	}
	if evts == nil {
		evts = []*model.Event{}
	}
	return &api.JournalResponse{Events: evts}, nil
}

func (s *CallSheetServer) health() *api.HealthResponse {
	return &api.HealthResponse{Status: "ok", UptimeSecs: time.Since(s.started).Seconds()}
}
