package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"anihub/pkg/models"
)

const reconnectDelay = time.Second

func (a *app) watchCmd() *cobra.Command {
	var (
		gateway string
		count   int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow display-language changes broadcast by the gateway",
		Long: `Connects to the gateway's /ws/settings socket and prints every language
event as JSON, reconnecting when the connection drops.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wsURL, err := settingsSocketURL(gateway)
			if err != nil {
				return err
			}
			return a.watch(cmd.Context(), wsURL, count)
		},
	}
	cmd.Flags().StringVar(&gateway, "gateway", "http://localhost:8080", "gateway base URL")
	cmd.Flags().IntVar(&count, "count", 0, "exit after this many events (0 = forever)")
	return cmd
}

// settingsSocketURL turns http(s)://host into ws(s)://host/ws/settings.
func settingsSocketURL(gateway string) (string, error) {
	u, err := url.Parse(strings.TrimRight(gateway, "/"))
	if err != nil {
		return "", fmt.Errorf("gateway url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("gateway url: unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws/settings"
	return u.String(), nil
}

func (a *app) watch(ctx context.Context, wsURL string, count int) error {
	seen := 0
	for {
		n, err := a.follow(ctx, wsURL, count-seen)
		seen += n
		if count > 0 && seen >= count {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		a.logger.Warn("settings socket disconnected", zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// follow prints events from one connection until it fails or limit events
// were printed (limit <= 0 means no limit).
func (a *app) follow(ctx context.Context, wsURL string, limit int) (int, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer ws.Close()

	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stop()

	a.logger.Info("connected", zap.String("url", wsURL))
	printed := 0
	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			return printed, err
		}

		var ev models.LanguageEvent
		if err := json.Unmarshal(payload, &ev); err != nil || ev.Language == "" {
			// not a language event; print raw
			fmt.Fprintln(a.out, strings.TrimSpace(string(payload)))
			continue
		}
		b, _ := json.MarshalIndent(ev, "", "  ")
		fmt.Fprintln(a.out, string(b))

		printed++
		if limit > 0 && printed >= limit {
			return printed, nil
		}
	}
}
