// Package api holds the request and response shapes shared by the HTTP and
// gRPC transports, and the google.protobuf.Struct codec the gRPC service
// uses to carry them.
package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/presence"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "callsheet.v1.CallSheet"

// gRPC method names.
const (
	MethodClaim    = "Claim"
	MethodSubmit   = "Submit"
	MethodRelease  = "Release"
	MethodSnapshot = "Snapshot"
	MethodStats    = "Stats"
	MethodSheets   = "Sheets"
	MethodRoster   = "Roster"
	MethodJournal  = "Journal"
	MethodHealth   = "Health"
)

// FullMethod returns the gRPC path of a method, e.g. "/callsheet.v1.CallSheet/Claim".
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// ClaimRequest asks for the caller's next ticket.
type ClaimRequest struct {
	User string `json:"user"`
}

// SubmitRequest records an outcome. Position is taken from the URL over HTTP.
type SubmitRequest struct {
	Position  int    `json:"position,omitempty"`
	User      string `json:"user"`
	Outcome   string `json:"outcome"`
	Note      string `json:"note,omitempty"`
	ContactID string `json:"contact_id,omitempty"`
}

// ReleaseRequest abandons a held ticket. Position is taken from the URL over HTTP.
type ReleaseRequest struct {
	Position int    `json:"position,omitempty"`
	User     string `json:"user"`
}

// SubmitResponse acknowledges a submission.
type SubmitResponse struct {
	OK bool `json:"ok"`
}

// Empty is an empty message.
type Empty struct{}

// SheetsResponse lists the document's sheets.
type SheetsResponse struct {
	Sheets []model.SheetInfo `json:"sheets"`
}

// RosterRequest filters the roster; Stale is a Go duration ("10m").
type RosterRequest struct {
	Stale string `json:"stale,omitempty"`
}

// RosterResponse lists tracked callers, most recently active first.
type RosterResponse struct {
	Callers []presence.Entry `json:"callers"`
}

// JournalRequest filters the journal.
type JournalRequest struct {
	Actor string `json:"actor,omitempty"`
	Kind  string `json:"kind,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// JournalResponse carries journal entries, newest first.
type JournalResponse struct {
	Events []*model.Event `json:"events"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status     string  `json:"status"`
	UptimeSecs float64 `json:"uptime_secs,omitempty"`
}

// ErrorBody is the JSON error envelope. Contended is set when a claim came
// back empty after losing races.
type ErrorBody struct {
	Error     string           `json:"error"`
	Contended []model.RaceLost `json:"contended,omitempty"`
}

// ToStruct converts a JSON-serializable value to a protobuf Struct. v must
// encode as a JSON object.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("convert %T to struct: %w", v, err)
	}
	return st, nil
}

// FromStruct decodes a protobuf Struct into v.
func FromStruct(st *structpb.Struct, v any) error {
	if st == nil {
		st = &structpb.Struct{}
	}
	data, err := protojson.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
