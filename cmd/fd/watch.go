package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/forms/internal/client"
	"github.com/alfredjeanlab/forms/internal/events"
	"github.com/alfredjeanlab/forms/internal/model"
	"github.com/alfredjeanlab/forms/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream form and submission events",
	GroupID: "system",
	Long: `Stream form and submission events.

Events come from NATS when FORMS_NATS_URL (or the active remote's nats_url)
is set, and from the server's /v1/events/stream endpoint otherwise. Topics
accept NATS-style wildcards such as forms.form.* or forms.>.`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringArray("topic")
		since, _ := cmd.Flags().GetUint64("since")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		emit := func(topic string, data []byte) {
			if jsonOutput {
				fmt.Fprintln(out, string(data))
				return
			}
			fmt.Fprintln(out, describeEvent(topic, data, time.Now()))
		}

		if natsURL := watchNATSURL(); natsURL != "" {
			return watchNATS(ctx, natsURL, topics, emit)
		}
		c := client.NewHTTPClient(httpURL, token)
		err := c.StreamEvents(ctx, topics, since, func(e client.Event) error {
			emit(e.Topic, e.Data)
			return nil
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func watchNATSURL() string {
	if s := os.Getenv("FORMS_NATS_URL"); s != "" {
		return s
	}
	return activeRemoteNATSURL()
}

// watchNATS connects to NATS and streams the given topics.
func watchNATS(ctx context.Context, natsURL string, topics []string, emit func(string, []byte)) error {
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
	return streamSubscriber(ctx, sub, topics, emit)
}

// streamSubscriber fans every topic's deliveries into emit until ctx is done.
func streamSubscriber(ctx context.Context, sub events.Subscriber, topics []string, emit func(string, []byte)) error {
	if len(topics) == 0 {
		topics = []string{events.TopicAll}
	}

	merged := make(chan events.Message)
	for _, topic := range topics {
		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		defer cancel()
		go func() {
			for msg := range ch {
				select {
				case merged <- msg:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-merged:
			emit(msg.Topic, msg.Data)
		}
	}
}

// eventPayload is the union of the event bodies in package events.
type eventPayload struct {
	Form            *model.FormSchema  `json:"form"`
	PreviousVersion int                `json:"previous_version"`
	FormID          string             `json:"form_id"`
	Policy          model.DeletePolicy `json:"policy"`
	Submission      *model.Submission  `json:"submission"`
}

// describeEvent renders one event as a single human-readable line.
func describeEvent(topic string, data []byte, at time.Time) string {
	var p eventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Sprintf("%s %s %s", ui.RenderMuted(at.Format("15:04:05")), topic, string(data))
	}

	var detail string
	switch {
	case p.Submission != nil:
		detail = fmt.Sprintf("%s on %s (v%d): %s", p.Submission.ID, p.Submission.FormID,
			p.Submission.FormVersion, summarizeValues(p.Submission.Values, 60))
	case p.Form != nil && p.PreviousVersion > 0:
		detail = fmt.Sprintf("%s %q v%d -> v%d", p.Form.ID, p.Form.Title, p.PreviousVersion, p.Form.Version)
	case p.Form != nil:
		detail = fmt.Sprintf("%s %q (%d fields)", p.Form.ID, p.Form.Title, len(p.Form.Fields))
	case p.FormID != "":
		detail = fmt.Sprintf("%s (%s)", p.FormID, p.Policy)
	default:
		detail = string(data)
	}
	return fmt.Sprintf("%s %s %s", ui.RenderMuted(at.Format("15:04:05")), ui.RenderAccent(topic), detail)
}

func init() {
	watchCmd.Flags().StringArray("topic", nil, "topic pattern to watch (repeatable, default forms.>)")
	watchCmd.Flags().Uint64("since", 0, "resume the HTTP stream after this event id")
}
