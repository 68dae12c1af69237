package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/callsheet/internal/events"
	"github.com/alfredjeanlab/callsheet/internal/model"
)

// Hook runs Command for events of kind On ("" or "*" for every kind).
// Outcome, when set, further limits submitted events to that outcome.
type Hook struct {
	On      string `toml:"on" yaml:"on"`
	Outcome string `toml:"outcome,omitempty" yaml:"outcome,omitempty"`
	Command string `toml:"command" yaml:"command"`
	Timeout string `toml:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type hooksFile struct {
	Hooks []Hook `toml:"hook" yaml:"hook"`
}

// LoadFile reads [[hook]] tables from a .toml file, or a "hook:" list from
// .yaml/.yml.
//
//	[[hook]]
//	on = "submitted"
//	outcome = "PASS"
//	command = "notify-send \"$CALLSHEET_ACTOR passed row $CALLSHEET_POSITION\""
func LoadFile(path string) ([]Hook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hooks: %w", err)
	}
	var f hooksFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &f)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("hooks %s: unsupported extension", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse hooks %s: %w", path, err)
	}
	for i, h := range f.Hooks {
		if strings.TrimSpace(h.Command) == "" {
			return nil, fmt.Errorf("hooks %s: hook %d has no command", path, i)
		}
		if _, err := h.timeout(); err != nil {
			return nil, fmt.Errorf("hooks %s: hook %d: %w", path, i, err)
		}
	}
	return f.Hooks, nil
}

func (h Hook) timeout() (time.Duration, error) {
	if h.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(h.Timeout)
	if err != nil {
		return 0, fmt.Errorf("bad timeout %q: %w", h.Timeout, err)
	}
	return d, nil
}

func (h Hook) matches(ev model.Event) bool {
	if h.On != "" && h.On != "*" && model.EventKind(h.On) != ev.Kind {
		return false
	}
	return h.Outcome == "" || model.ParseOutcome(h.Outcome) == ev.Outcome
}

// Env returns the variables a hook command sees for ev.
func Env(ev model.Event) map[string]string {
	return map[string]string{
		"CALLSHEET_EVENT_ID":   ev.ID,
		"CALLSHEET_EVENT_KIND": string(ev.Kind),
		"CALLSHEET_SHEET":      ev.Sheet,
		"CALLSHEET_POSITION":   strconv.Itoa(ev.Position),
		"CALLSHEET_ACTOR":      ev.Actor,
		"CALLSHEET_OUTCOME":    string(ev.Outcome),
		"CALLSHEET_WINNER":     ev.Winner,
		"CALLSHEET_DETAIL":     ev.Detail,
	}
}

// Handler runs the configured hooks for each lead event.
type Handler struct {
	hooks  []Hook
	logger *slog.Logger
}

// NewHandler creates a handler for hooks.
func NewHandler(hooks []Hook, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{hooks: hooks, logger: logger}
}

// Handle runs every hook matching ev, in file order, and returns their
// results. A failing hook is logged and does not stop the rest.
func (h *Handler) Handle(ctx context.Context, ev model.Event) []Result {
	var results []Result
	env := Env(ev)
	for _, hook := range h.hooks {
		if !hook.matches(ev) {
			continue
		}
		timeout, _ := hook.timeout()
		res := Execute(ctx, hook.Command, timeout, env)
		if res.Err != nil {
			h.logger.Warn("hooks: command failed",
				"kind", ev.Kind, "position", ev.Position, "command", hook.Command,
				"timed_out", res.TimedOut, "err", res.Err, "output", res.Output)
		} else {
			h.logger.Debug("hooks: command ran",
				"kind", ev.Kind, "position", ev.Position, "command", hook.Command, "duration", res.Duration)
		}
		results = append(results, res)
	}
	return results
}

// Observe runs matching hooks in the background so the claim or submit
// that produced ev is never held up by a slow command.
func (h *Handler) Observe(ev model.Event) {
	if len(h.hooks) == 0 {
		return
	}
	go h.Handle(context.Background(), ev)
}

// StartSubscriber listens for lead events on the bus and runs matching
// hooks. It blocks until ctx is cancelled or the subscription closes.
func (h *Handler) StartSubscriber(ctx context.Context, sub events.Subscriber) error {
	ch, cancel, err := sub.Subscribe(events.TopicAll)
	if err != nil {
		return fmt.Errorf("hooks: subscribe: %w", err)
	}
	defer cancel()

	h.logger.Info("hooks: subscriber started", "hooks", len(h.hooks))

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hooks: subscriber stopping")
			return nil
		case raw, ok := <-ch:
			if !ok {
				h.logger.Info("hooks: subscription channel closed")
				return nil
			}

			var ev model.Event
			if err := json.Unmarshal(raw, &ev); err != nil {
				h.logger.Warn("hooks: bad event payload", "err", err)
				continue
			}
			h.Handle(ctx, ev)
		}
	}
}
