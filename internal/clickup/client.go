// Package clickup copies the order pipeline (tasks, comments,
// attachments) from ClickUp into the warehouse.
package clickup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// APIBase is the base URL for the ClickUp v2 API.
const APIBase = "https://api.clickup.com/api/v2"

// requestsPerMinute keeps us under ClickUp's 100 req/min token limit.
const requestsPerMinute = 90

// Client is a lightweight ClickUp API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a ClickUp API client.
func NewClient(apiKey string, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("clickup API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    APIBase,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerMinute)/60, 1),
		logger:     logger,
	}, nil
}

// SetBaseURL overrides the API base URL. Used by tests.
func (c *Client) SetBaseURL(base string) { c.baseURL = base }

// User is a ClickUp user reference.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TaskStatus is the workflow status of a task.
type TaskStatus struct {
	Status string `json:"status"`
	Type   string `json:"type"`
}

// Attachment is a file attached to a task.
type Attachment struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Extension string `json:"extension"`
	Mimetype  string `json:"mimetype"`
	Size      int64  `json:"size"`
	URL       string `json:"url"`
	Date      string `json:"date"`
}

// Task is one ClickUp task. Timestamps are millisecond strings.
type Task struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Status      TaskStatus   `json:"status"`
	DateCreated string       `json:"date_created"`
	DateUpdated string       `json:"date_updated"`
	DateDone    string       `json:"date_done"`
	Creator     User         `json:"creator"`
	Assignees   []User       `json:"assignees"`
	TextContent string       `json:"text_content"`
	URL         string       `json:"url"`
	Attachments []Attachment `json:"attachments"`
}

// Comment is one task comment.
type Comment struct {
	ID          string `json:"id"`
	CommentText string `json:"comment_text"`
	User        User   `json:"user"`
	Date        string `json:"date"`
}

type tasksResponse struct {
	Tasks []Task `json:"tasks"`
}

type commentsResponse struct {
	Comments []Comment `json:"comments"`
}

// ListTasks retrieves every task on a list, closed tasks and subtasks
// included, following page numbers until a page comes back empty.
func (c *Client) ListTasks(ctx context.Context, listID string) ([]Task, error) {
	var all []Task
	for page := 0; ; page++ {
		endpoint := fmt.Sprintf("%s/list/%s/task?include_closed=true&subtasks=true&page=%d",
			c.baseURL, listID, page)

		var resp tasksResponse
		if err := c.makeRequest(ctx, endpoint, &resp); err != nil {
			return nil, fmt.Errorf("listing tasks (page %d): %w", page, err)
		}
		if len(resp.Tasks) == 0 {
			break
		}
		all = append(all, resp.Tasks...)
	}

	c.logger.Debug("fetched clickup tasks", "count", len(all))
	return all, nil
}

// TaskComments retrieves all comments on a task.
func (c *Client) TaskComments(ctx context.Context, taskID string) ([]Comment, error) {
	var resp commentsResponse
	endpoint := fmt.Sprintf("%s/task/%s/comment", c.baseURL, taskID)
	if err := c.makeRequest(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("fetching comments for %s: %w", taskID, err)
	}
	return resp.Comments, nil
}

// TaskAttachments retrieves a task's attachments; the list endpoint
// leaves them out, only the single-task endpoint carries them.
func (c *Client) TaskAttachments(ctx context.Context, taskID string) ([]Attachment, error) {
	var task Task
	endpoint := fmt.Sprintf("%s/task/%s", c.baseURL, taskID)
	if err := c.makeRequest(ctx, endpoint, &task); err != nil {
		return nil, fmt.Errorf("fetching task %s: %w", taskID, err)
	}
	return task.Attachments, nil
}

func (c *Client) makeRequest(ctx context.Context, endpoint string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
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
		return fmt.Errorf("clickup API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

// MillisTime converts a millisecond epoch string to a time. Empty or
// malformed values yield nil.
func MillisTime(ms string) *time.Time {
	if ms == "" {
		return nil
	}
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(n).UTC()
	return &t
}
