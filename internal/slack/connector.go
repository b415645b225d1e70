package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/synapse-ai/synapse/internal/ingest"
)

// Connector adapts the Slack client to the ingest pipeline. Each channel
// becomes one document whose content is the formatted transcript of its
// recent history. The rate limiter is shared across syncs.
type Connector struct {
	baseURL string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewConnector creates a Connector. A nil logger falls back to
// slog.Default.
func NewConnector(logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		baseURL: apiBase,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:  logger,
	}
}

// ListResources turns every readable channel into a transcript document.
// Channels the bot cannot join are skipped, as is any channel whose
// history fails to load, so one locked channel does not abort the sync.
// Document ids are "slack-<channel id>" so re-syncs replace in place.
func (c *Connector) ListResources(ctx context.Context, credential string) ([]ingest.RawDocument, error) {
	client, err := NewClient(credential, c.limiter, c.logger)
	if err != nil {
		return nil, err
	}
	client.baseURL = c.baseURL

	channels, err := client.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing slack channels: %w", err)
	}

	var docs []ingest.RawDocument
	for _, channel := range channels {
		if channel.ID == "" || channel.Name == "" {
			continue
		}

		if !channel.IsMember {
			if err := client.Join(ctx, channel.ID); err != nil {
				c.logger.Debug("cannot join channel, skipping",
					"channel", channel.Name, "error", err)
				continue
			}
		}

		messages, err := client.History(ctx, channel.ID)
		if err != nil {
			c.logger.Warn("skipping channel",
				"channel", channel.Name, "error", err)
			continue
		}

		content := Transcript(messages, channel.Name)
		docs = append(docs, ingest.RawDocument{
			ID:      "slack-" + channel.ID,
			Title:   "#" + channel.Name,
			Content: content,
			Metadata: map[string]string{
				"channelId":    channel.ID,
				"channelName":  channel.Name,
				"messageCount": strconv.Itoa(len(messages)),
			},
		})
	}
	return docs, nil
}

// WorkspaceName looks up the workspace name for a token, used to name a
// newly connected source.
func (c *Connector) WorkspaceName(ctx context.Context, credential string) (string, error) {
	client, err := NewClient(credential, c.limiter, c.logger)
	if err != nil {
		return "", err
	}
	client.baseURL = c.baseURL

	team, err := client.TeamInfo(ctx)
	if err != nil {
		return "", err
	}
	return team.Name, nil
}

// Transcript formats messages as one line per message, oldest first is not
// guaranteed; the order mirrors the API response. Messages without text
// are dropped.
func Transcript(messages []Message, channelName string) string {
	var lines []string
	for _, m := range messages {
		if m.Text == "" {
			continue
		}
		user := m.User
		if user == "" {
			user = "unknown"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", channelName, user, m.Text))
	}
	return strings.Join(lines, "\n")
}
