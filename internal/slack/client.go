// Package slack syncs channel transcripts from a Slack workspace through
// the Slack Web API.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	apiBase = "https://slack.com/api"

	// Slack's Web API tier for history methods allows about one request
	// per second.
	requestsPerSecond = 1

	channelListLimit    = 100
	channelHistoryLimit = 200
)

// Channel is a Slack conversation as returned by conversations.list.
type Channel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsMember bool   `json:"is_member"`
}

// Message is one entry of a channel's history.
type Message struct {
	Text string `json:"text"`
	User string `json:"user"`
	Ts   string `json:"ts"`
}

// Team identifies the workspace a token belongs to.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client is a minimal Slack Web API client for one bot token.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a client for the given bot token. limiter may be
// shared between clients; nil creates a private one at the API default
// pace. A nil logger falls back to slog.Default.
func NewClient(token string, limiter *rate.Limiter, logger *slog.Logger) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("slack token is required")
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		token:      token,
		baseURL:    apiBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// ListChannels returns the public and private channels visible to the
// token.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	var resp struct {
		apiEnvelope
		Channels []Channel `json:"channels"`
	}
	err := c.call(ctx, "conversations.list", url.Values{
		"types": {"public_channel,private_channel"},
		"limit": {fmt.Sprint(channelListLimit)},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	return resp.Channels, nil
}

// History returns the latest messages of a channel, newest first.
func (c *Client) History(ctx context.Context, channelID string) ([]Message, error) {
	var resp struct {
		apiEnvelope
		Messages []Message `json:"messages"`
	}
	err := c.call(ctx, "conversations.history", url.Values{
		"channel": {channelID},
		"limit":   {fmt.Sprint(channelHistoryLimit)},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetching history of %s: %w", channelID, err)
	}
	return resp.Messages, nil
}

// Join adds the bot to a channel so history becomes readable. Fails for
// private channels the bot was not invited to.
func (c *Client) Join(ctx context.Context, channelID string) error {
	var resp apiEnvelope
	if err := c.call(ctx, "conversations.join", url.Values{"channel": {channelID}}, &resp); err != nil {
		return fmt.Errorf("joining channel %s: %w", channelID, err)
	}
	return nil
}

// TeamInfo returns the workspace the token belongs to.
func (c *Client) TeamInfo(ctx context.Context) (*Team, error) {
	var resp struct {
		apiEnvelope
		Team Team `json:"team"`
	}
	if err := c.call(ctx, "team.info", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching team info: %w", err)
	}
	return &resp.Team, nil
}

// apiEnvelope is the common part of every Slack API response. Slack
// reports failures with ok:false and HTTP 200.
type apiEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (e apiEnvelope) err() error {
	if e.OK {
		return nil
	}
	return fmt.Errorf("slack API error: %s", e.Error)
}

type enveloped interface {
	err() error
}

func (c *Client) call(ctx context.Context, method string, params url.Values, result enveloped) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	var body io.Reader
	if params != nil {
		body = strings.NewReader(params.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack API error (status %d): %s", resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response: %w", err)
	}
	return result.err()
}
