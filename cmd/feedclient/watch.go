package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"playground-transcript-feed/internal/models"
)

func newWatchCommand(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream a room's merged feed to the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			wsURL := "ws" + strings.TrimPrefix(opts.server, "http") + roomPath(opts.room, "ws")

			conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
			if err != nil {
				return fmt.Errorf("connect %s: %w", wsURL, err)
			}
			defer conn.Close()

			go func() {
				<-ctx.Done()
				_ = conn.Close()
			}()

			for {
				var ev models.FeedEvent
				if err := conn.ReadJSON(&ev); err != nil {
					if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						return nil
					}
					return err
				}
				render(cmd.OutOrStdout(), ev)
			}
		},
	}
}

func render(w io.Writer, ev models.FeedEvent) {
	fmt.Fprintf(w, "--- %s (%d messages)\n", ev.RoomID, len(ev.Messages))
	for _, m := range ev.Messages {
		marker := " "
		if m.IsSelf {
			marker = ">"
		}
		fmt.Fprintf(w, "%s [%s] %-8s %s\n", marker, m.Kind, m.Name+":", m.Message)
	}
}
