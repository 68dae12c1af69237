package memsheet

import (
	"context"
	"errors"
	"testing"

	"github.com/alfredjeanlab/callsheet/internal/sheet"
)

func TestSheet_WriteGrowsRows(t *testing.T) {
	s := New([][]string{{"h"}})
	ctx := context.Background()

	if err := s.WriteCell(ctx, 2, 3, "x"); err != nil {
		t.Fatalf("WriteCell: %v", err)
	}
	v, ok, err := s.ReadCell(ctx, 2, 3)
	if err != nil || !ok || v != "x" {
		t.Fatalf("ReadCell = %q, %v, %v", v, ok, err)
	}
	if _, ok, _ := s.ReadCell(ctx, 2, 0); ok {
		t.Error("expected empty cell to be absent")
	}
	if len(s.Writes()) != 1 {
		t.Errorf("expected 1 recorded write, got %d", len(s.Writes()))
	}
}

func TestSheet_DeferredWrites(t *testing.T) {
	s := New([][]string{{"h"}, {"a"}})
	s.DeferWrites(true)
	ctx := context.Background()

	if err := s.WriteCell(ctx, 1, 0, "b"); err != nil {
		t.Fatalf("WriteCell: %v", err)
	}
	if got := s.Get(1, 0); got != "a" {
		t.Fatalf("deferred write visible early: %q", got)
	}
	s.Flush()
	if got := s.Get(1, 0); got != "b" {
		t.Fatalf("after Flush got %q, want b", got)
	}
}

func TestSheet_FailureInjection(t *testing.T) {
	s := New([][]string{{"h"}})
	ctx := context.Background()
	boom := errors.New("boom")

	s.FailFetch(boom)
	if _, err := s.FetchAll(ctx); !errors.Is(err, boom) {
		t.Fatalf("FetchAll err = %v", err)
	}
	s.FailFetch(nil)
	if _, err := s.FetchAll(ctx); err != nil {
		t.Fatalf("FetchAll after clear: %v", err)
	}

	s.FailWrite(Cell{1, 1}, boom)
	err := s.WriteCell(ctx, 1, 1, "x")
	var te *sheet.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if len(s.Writes()) != 0 {
		t.Error("failed write should not be recorded")
	}

	s.FailRead(Cell{0, 0}, boom)
	if _, _, err := s.ReadCell(ctx, 0, 0); !errors.Is(err, boom) {
		t.Fatalf("ReadCell err = %v", err)
	}
}

func TestSheet_AfterWriteHook(t *testing.T) {
	s := New([][]string{{"h"}, {"", ""}})
	s.AfterWrite(func(s *Sheet, pos, col int, value string) {
		s.Set(pos, col, "rival")
	})
	if err := s.WriteCell(context.Background(), 1, 1, "me"); err != nil {
		t.Fatalf("WriteCell: %v", err)
	}
	if got := s.Get(1, 1); got != "rival" {
		t.Fatalf("expected hook to overwrite, got %q", got)
	}
}

func TestSheet_FetchReturnsCopy(t *testing.T) {
	s := New([][]string{{"h"}, {"a"}})
	rows, _ := s.FetchAll(context.Background())
	rows[1][0] = "mutated"
	if s.Get(1, 0) != "a" {
		t.Fatal("FetchAll leaked internal storage")
	}
}
