package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/alfredjeanlab/feedpulse/internal/client"
	"github.com/alfredjeanlab/feedpulse/internal/events"
	"github.com/alfredjeanlab/feedpulse/internal/model"
	"github.com/alfredjeanlab/feedpulse/internal/notify"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <project>",
	Short: "Stream a project's events as they are published",
	Long: `Stream a project's events as they are published.

The server first replays the project's history, then sends live events until
the stream is interrupted or the server disconnects the subscriber. With
--nats the events are read from the NATS mirror instead and filtered here;
the mirror carries no history.`,
	GroupID: "events",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, _ := cmd.Flags().GetStringSlice("kinds")
		actors, _ := cmd.Flags().GetStringSlice("actors")
		where, _ := cmd.Flags().GetStringArray("where")
		subscriberID, _ := cmd.Flags().GetString("subscriber")
		natsURL, _ := cmd.Flags().GetString("nats")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		if cmd.Flags().Changed("nats") {
			if natsURL == "" {
				natsURL = activeRemoteNATSURL()
			}
			if natsURL == "" {
				return fmt.Errorf("no NATS URL; pass --nats or add one to the active remote")
			}
			spec := notify.FilterSpec{Kinds: toKinds(kinds), Actors: actors, Where: where}
			return watchNATS(ctx, out, natsURL, args[0], spec)
		}

		err := notifyClient.Stream(ctx, args[0], &client.StreamOptions{
			SubscriberID: subscriberID,
			Kinds:        kinds,
			Actors:       actors,
			Where:        where,
		}, func(se client.StreamEvent) error {
			if se.Disconnect != "" {
				return fmt.Errorf("disconnected by server: %s", se.Disconnect)
			}
			return printStreamEvent(out, se.Event)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func toKinds(ss []string) []model.Kind {
	kinds := make([]model.Kind, 0, len(ss))
	for _, s := range ss {
		kinds = append(kinds, model.Kind(s))
	}
	return kinds
}

func printStreamEvent(w io.Writer, ev model.Event) error {
	if jsonOutput {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	_, err := fmt.Fprintln(w, formatEventLine(ev))
	return err
}

// watchNATS prints mirrored events for projectID that pass spec.
func watchNATS(ctx context.Context, w io.Writer, natsURL, projectID string, spec notify.FilterSpec) error {
	filter, err := spec.Build()
	if err != nil {
		return err
	}

	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected; events published meanwhile were missed")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(events.AllEvents)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			var ev model.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				log.Printf("nats: skipping malformed event: %v", err)
				continue
			}
			if ev.ProjectID != projectID || (filter != nil && !filter.Match(ev)) {
				continue
			}
			if err := printStreamEvent(w, ev); err != nil {
				return err
			}
		}
	}
}

func init() {
	watchCmd.Flags().StringSlice("kinds", nil, "only these kinds; supports wildcards such as comment.*")
	watchCmd.Flags().StringSlice("actors", nil, "only events from these actors")
	watchCmd.Flags().StringArray("where", nil, "payload condition path=value (repeatable)")
	watchCmd.Flags().String("subscriber", "", "subscriber id to reuse (replaces an older connection)")
	watchCmd.Flags().String("nats", "", "read from the NATS mirror instead of the server stream (empty = active remote's NATS URL)")
}
