package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/callsheet/internal/client"
	"github.com/alfredjeanlab/callsheet/internal/events"
	"github.com/alfredjeanlab/callsheet/internal/model"
)

// watchFilter selects which events are printed.
type watchFilter struct {
	topics []string
	actor  string
}

func (f watchFilter) wantsActor(e *model.Event) bool {
	return f.actor == "" || e.Actor == f.actor
}

func natsURLFor(cmd *cobra.Command) string {
	if u, _ := cmd.Flags().GetString("nats-url"); u != "" {
		return u
	}
	if u := os.Getenv("CALLSHEET_NATS_URL"); u != "" {
		return u
	}
	return activeSession().NATSURL
}

// emitEvent prints one raw event payload.
func emitEvent(w io.Writer, raw []byte, f watchFilter) {
	var ev model.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return
	}
	if !f.wantsActor(&ev) {
		return
	}
	if jsonOutput {
		fmt.Fprintln(w, string(raw))
		return
	}
	printEventLine(w, &ev)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow claims, races and outcomes as they happen",
	Long: `Watch prints lead events live. It reads the NATS bus when a NATS URL is
known (--nats-url, CALLSHEET_NATS_URL or cs login --nats-url), otherwise the
service's HTTP event stream.`,
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, _ := cmd.Flags().GetStringSlice("kind")
		actor, _ := cmd.Flags().GetString("actor")
		if mine, _ := cmd.Flags().GetBool("mine"); mine {
			if err := requireUser(); err != nil {
				return err
			}
			actor = user
		}
		f := watchFilter{actor: actor}
		for _, k := range kinds {
			f.topics = append(f.topics, events.TopicFor(model.EventKind(strings.TrimSpace(k))))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if u := natsURLFor(cmd); u != "" {
			return watchNATS(ctx, cmd.OutOrStdout(), u, f)
		}
		return watchSSE(ctx, cmd.OutOrStdout(), client.NewHTTPClient(httpURL, authToken), f)
	},
}

// watchNATS subscribes to each topic (or every lead topic) and prints
// events until ctx is done.
func watchNATS(ctx context.Context, w io.Writer, natsURL string, f watchFilter) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	topics := f.topics
	if len(topics) == 0 {
		topics = []string{events.TopicAll}
	}

	merged := make(chan []byte)
	var wg sync.WaitGroup
	for _, topic := range topics {
		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		defer cancel()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for raw := range ch {
				select {
				case merged <- raw:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-merged:
			if !ok {
				return nil
			}
			emitEvent(w, raw, f)
		}
	}
}

// watchSSE reads the service's event stream. Topic and actor filtering
// happen on the server.
func watchSSE(ctx context.Context, w io.Writer, c *client.HTTPClient, f watchFilter) error {
	body, err := c.Stream(ctx, f.topics, f.actor)
	if err != nil {
		return fmt.Errorf("opening event stream: %w", err)
	}
	defer body.Close()

	err = readSSE(body, func(data []byte) { emitEvent(w, data, f) })
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readSSE calls fn with the data of each event in r. Comment lines
// (keepalives) are skipped.
func readSSE(r io.Reader, fn func(data []byte)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				fn([]byte(strings.Join(data, "\n")))
				data = data[:0]
			}
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return scanner.Err()
}

func init() {
	watchCmd.Flags().StringSlice("kind", nil, "event kinds to show (claimed, resumed, race_lost, submitted, released, write_failed)")
	watchCmd.Flags().String("actor", "", "only events by this caller")
	watchCmd.Flags().Bool("mine", false, "only your own events")
	watchCmd.Flags().String("nats-url", "", "read events from NATS instead of the HTTP stream")
}
