// Command feedclient drives a running transcript feed service: it can
// simulate a room with a talking agent, send chat, and watch the feed.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type clientOptions struct {
	server string
	room   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &clientOptions{}

	root := &cobra.Command{
		Use:          "feedclient",
		Short:        "Exercise the playground transcript feed service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:8080", "Feed service base URL")
	root.PersistentFlags().StringVar(&opts.room, "room", "playground-"+time.Now().Format("150405"), "Room id")

	root.AddCommand(
		newSimulateCommand(opts),
		newSendCommand(opts),
		newWatchCommand(opts),
	)
	return root
}

func newSendCommand(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send MESSAGE",
		Short: "Send a chat message as the local participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAPIClient(opts.server)
			var out map[string]any
			if err := c.do(cmd.Context(), http.MethodPost, roomPath(opts.room, "chat"), map[string]string{"message": args[0]}, &out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %v at %v\n", out["id"], out["timestamp"])
			return nil
		},
	}
}

func roomPath(room, suffix string) string {
	return "/v1/rooms/" + url.PathEscape(room) + "/" + suffix
}

type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{base: base, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusAccepted {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
