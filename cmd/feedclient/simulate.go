package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"playground-transcript-feed/internal/models"
	"playground-transcript-feed/internal/service/transcription/mock"
)

func newSimulateCommand(opts *clientOptions) *cobra.Command {
	var (
		interval time.Duration
		greeting string
		agents   int
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Join a room with a local participant and scripted agents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c := newAPIClient(opts.server)
			out := cmd.OutOrStdout()
			now := time.Now().UnixMilli()

			roster := []models.Participant{{
				Identity: "me",
				IsLocal:  true,
				JoinedAt: now,
				Publications: []models.Publication{
					{TrackSID: "TR_me_cam", Source: models.SourceCamera},
					{TrackSID: "TR_me_mic", Source: models.SourceMicrophone},
				},
			}}
			for i := 1; i <= agents; i++ {
				roster = append(roster, models.Participant{
					Identity:     fmt.Sprintf("agent-%d", i),
					JoinedAt:     now + int64(i),
					Publications: []models.Publication{{TrackSID: fmt.Sprintf("TR_agent_%d", i), Source: models.SourceMicrophone}},
				})
			}

			if err := c.ingest(ctx, opts.room, models.IngestEvent{EventType: models.EventRoster, Participants: roster}); err != nil {
				return err
			}
			fmt.Fprintf(out, "room %s: roster with %d participants\n", opts.room, len(roster))

			if greeting != "" {
				if err := c.do(ctx, http.MethodPost, roomPath(opts.room, "chat"), map[string]string{"message": greeting}, nil); err != nil {
					return err
				}
				fmt.Fprintf(out, "room %s: sent %q\n", opts.room, greeting)
			}

			errs := make(chan error, agents)
			for _, p := range roster[1:] {
				sim := mock.New(p.Identity, p.Publications[0].TrackSID)
				go func() {
					errs <- sim.Play(ctx, opts.room, interval, func(seg models.TranscriptSegment) error {
						return c.ingest(ctx, opts.room, models.IngestEvent{EventType: models.EventSegment, Segment: &seg})
					})
				}()
			}
			for range agents {
				if err := <-errs; err != nil && ctx.Err() == nil {
					return err
				}
			}
			fmt.Fprintf(out, "room %s: simulation finished\n", opts.room)
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 300*time.Millisecond, "Delay between segment events")
	cmd.Flags().StringVar(&greeting, "greeting", "Hello from the playground", "Chat message sent before the agents talk (empty to skip)")
	cmd.Flags().IntVar(&agents, "agents", 1, "Number of scripted agents")
	return cmd
}

func (c *apiClient) ingest(ctx context.Context, room string, ev models.IngestEvent) error {
	ev.RoomID = room
	ev.Timestamp = time.Now().UnixMilli()
	return c.do(ctx, http.MethodPost, roomPath(room, "events"), ev, nil)
}
