// Package eventscmder provides the events command for following the live
// lifecycle event feed of a running API server.
package eventscmder

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/solacelabs/solace/pkg/config"
	"github.com/solacelabs/solace/pkg/sse"
)

type eventsCommander struct {
	listen    string
	url       string
	configDir string
}

const eventsLongDesc string = `Follow the live person lifecycle feed of a running API server.

Each enrollment, confirmation, deletion, saved memory, and routine update
is printed as it happens. The stream runs until interrupted.

Examples:
  solace events
  solace events --url http://solace.local:8420/events`

const eventsShortDesc string = "Follow the live lifecycle event feed"

var eventsFlags = config.FlagSet{
	config.FlagAPIListen: {
		Name: "listen", Shorthand: "l", ViperKey: "api.listen",
		Description: "Address the API server listens on",
	},
}

var eventsFlagKeys = []string{
	config.FlagAPIListen,
}

func NewEventsCmd() *cobra.Command {
	cmder := &eventsCommander{}

	cmd := &cobra.Command{
		Use:   "events",
		Short: eventsShortDesc,
		Long:  eventsLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, eventsFlags, eventsFlagKeys)

			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}

			return cmder.run(cfg)
		},
	}

	config.AddStringFlag(cmd, eventsFlags, config.FlagAPIListen, &cmder.listen)
	cmd.Flags().StringVar(&cmder.url, "url", "", "Full feed URL (default derived from the listen address)")

	return cmd
}

func (c *eventsCommander) run(cfg *config.Config) error {
	url := c.url
	if url == "" {
		url = feedURL(cfg.API.Listen)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building feed request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feed returned %s", resp.Status)
	}

	fmt.Fprintf(os.Stderr, "following %s\n", url)

	reader := sse.NewReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading feed: %w", err)
		}
		if ev == nil {
			// Server closed the stream.
			return nil
		}
		fmt.Printf("%s\t%s\n", ev.Type, ev.Data)
	}
}

// feedURL derives the /events URL from a listen address. A bare ":8420"
// points at localhost.
func feedURL(listen string) string {
	host := listen
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "http://" + host + "/events"
}
