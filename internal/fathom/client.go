package fathom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// APIBase is the base URL for the Fathom external API.
	APIBase = "https://api.fathom.ai/external/v1"

	// requestsPerSecond keeps us under the documented API rate limit.
	requestsPerSecond = 10
)

// Client is a lightweight Fathom API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New creates a new Fathom API client.
//
// Parameters:
//   - apiKey: Fathom API key
//   - logger: Structured logger (required)
//
// Returns:
//   - *Client: Initialized client
//   - error: If apiKey is empty or logger is nil
func New(apiKey string, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("fathom API key is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Client{
		apiKey:     apiKey,
		baseURL:    APIBase,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:     logger,
	}, nil
}

// SetBaseURL overrides the API base URL. Used by tests.
func (c *Client) SetBaseURL(base string) { c.baseURL = base }

// ListMeetings retrieves a single page of meetings. cursor is the
// pagination cursor from a previous response (empty for the first page).
func (c *Client) ListMeetings(ctx context.Context, cursor string, opts ListOptions) ([]Meeting, string, error) {
	params := url.Values{}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if opts.IncludeTranscript {
		params.Set("include_transcript", "true")
	}
	if opts.IncludeSummary {
		params.Set("include_summary", "true")
	}
	if opts.CreatedAfter != "" {
		params.Set("created_after", opts.CreatedAfter)
	}
	if opts.CreatedBefore != "" {
		params.Set("created_before", opts.CreatedBefore)
	}
	for _, email := range opts.RecordedBy {
		params.Add("recorded_by[]", email)
	}
	for _, team := range opts.Teams {
		params.Add("teams[]", team)
	}
	for _, domain := range opts.InviteeDomains {
		params.Add("calendar_invitees_domains[]", domain)
	}
	if opts.InviteeDomainsType != "" {
		params.Set("calendar_invitees_domains_type", opts.InviteeDomainsType)
	}

	endpoint := c.baseURL + "/meetings"
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var resp meetingsResponse
	if err := c.makeRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, "", fmt.Errorf("list meetings failed: %w", err)
	}

	return resp.Items, resp.NextCursor, nil
}

// AllMeetings retrieves every meeting matching opts, following the
// pagination cursor until exhausted.
func (c *Client) AllMeetings(ctx context.Context, opts ListOptions) ([]Meeting, error) {
	var all []Meeting
	cursor := ""

	for {
		items, next, err := c.ListMeetings(ctx, cursor, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)

		if next == "" {
			break
		}
		cursor = next
	}

	c.logger.Debug("fetched meetings from fathom", "count", len(all))
	return all, nil
}

// Transcript retrieves the transcript entries for a recording.
func (c *Client) Transcript(ctx context.Context, recordingID int64) ([]Entry, error) {
	endpoint := fmt.Sprintf("%s/recordings/%d/transcript", c.baseURL, recordingID)

	var resp transcriptResponse
	if err := c.makeRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("get transcript failed: %w", err)
	}

	return resp.Transcript, nil
}

// Summary retrieves the AI summary for a recording. Returns nil when no
// summary has been generated.
func (c *Client) Summary(ctx context.Context, recordingID int64) (*Summary, error) {
	endpoint := fmt.Sprintf("%s/recordings/%d/summary", c.baseURL, recordingID)

	var resp summaryResponse
	if err := c.makeRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("get summary failed: %w", err)
	}

	return resp.Summary, nil
}

// Teams retrieves all teams visible to the API key.
func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	var resp teamsResponse
	if err := c.makeRequest(ctx, http.MethodGet, c.baseURL+"/teams", nil, &resp); err != nil {
		return nil, fmt.Errorf("list teams failed: %w", err)
	}

	return resp.Items, nil
}

// TeamMembers retrieves the members of a team.
func (c *Client) TeamMembers(ctx context.Context, teamID string) ([]TeamMember, error) {
	endpoint := fmt.Sprintf("%s/teams/%s/members", c.baseURL, url.PathEscape(teamID))

	var resp teamMembersResponse
	if err := c.makeRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("list team members failed: %w", err)
	}

	return resp.Items, nil
}

// CreateWebhook registers a webhook for meeting notifications. The API
// requires at least one include flag so the payload carries something.
func (c *Client) CreateWebhook(ctx context.Context, opts WebhookOptions) (*Webhook, error) {
	if opts.DestinationURL == "" {
		return nil, fmt.Errorf("webhook destination URL is required")
	}
	if !opts.IncludeTranscript && !opts.IncludeSummary && !opts.IncludeActionItems && !opts.IncludeCRMMatches {
		return nil, fmt.Errorf("at least one webhook include option is required")
	}

	payload := map[string]any{
		"destination_url":      opts.DestinationURL,
		"triggered_for":        opts.TriggeredFor,
		"include_transcript":   opts.IncludeTranscript,
		"include_summary":      opts.IncludeSummary,
		"include_action_items": opts.IncludeActionItems,
		"include_crm_matches":  opts.IncludeCRMMatches,
	}

	var webhook Webhook
	if err := c.makeRequest(ctx, http.MethodPost, c.baseURL+"/webhooks", payload, &webhook); err != nil {
		return nil, fmt.Errorf("create webhook failed: %w", err)
	}

	return &webhook, nil
}

// DeleteWebhook removes a registered webhook.
func (c *Client) DeleteWebhook(ctx context.Context, webhookID string) error {
	endpoint := fmt.Sprintf("%s/webhooks/%s", c.baseURL, url.PathEscape(webhookID))
	if err := c.makeRequest(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("delete webhook failed: %w", err)
	}
	return nil
}

// makeRequest performs an authenticated request, encoding payload as
// the JSON body when present and decoding the JSON response into result.
func (c *Client) makeRequest(ctx context.Context, method, endpoint string, payload, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fathom API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
