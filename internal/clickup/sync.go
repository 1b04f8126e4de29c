package clickup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fatgrid/insights/internal/warehouse"
)

var (
	orderColumns = []string{
		"task_id", "name", "order_number", "order_type", "domain",
		"amount_usd", "customer_email", "status", "status_type",
		"date_created", "date_updated", "date_done",
		"creator_id", "creator_name", "creator_email",
		"assignee_names", "assignee_emails", "description", "url",
		"attachment_count", "synced_at",
	}
	commentColumns = []string{
		"comment_id", "task_id", "comment_text",
		"user_id", "user_name", "user_email", "date_posted", "synced_at",
	}
	attachmentColumns = []string{
		"attachment_id", "task_id", "title", "extension", "mimetype",
		"size_bytes", "url", "date_added", "synced_at",
	}
)

// Stats summarizes one orders sync.
type Stats struct {
	New     int
	Updated int
	Total   int
}

// Syncer copies the orders list from ClickUp into the warehouse.
// Re-synced tasks are skipped when their date_updated has not moved.
type Syncer struct {
	client    *Client
	listID    string
	warehouse *warehouse.Warehouse
	logger    *slog.Logger
}

// NewSyncer creates a Syncer for the given orders list.
func NewSyncer(client *Client, listID string, wh *warehouse.Warehouse, logger *slog.Logger) (*Syncer, error) {
	if client == nil {
		return nil, fmt.Errorf("clickup client is required")
	}
	if listID == "" {
		return nil, fmt.Errorf("orders list ID is required")
	}
	if wh == nil {
		return nil, fmt.Errorf("warehouse is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{client: client, listID: listID, warehouse: wh, logger: logger}, nil
}

// Sync upserts orders with their comments and attachments. With full,
// every task is rewritten regardless of its date_updated.
func (s *Syncer) Sync(ctx context.Context, full bool) (Stats, error) {
	existing := map[string]time.Time{}
	if !full {
		var err error
		existing, err = s.existingTasks(ctx)
		if err != nil {
			return Stats{}, err
		}
	}

	s.logger.Info("fetching orders from clickup", "list_id", s.listID)
	tasks, err := s.client.ListTasks(ctx, s.listID)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(tasks)}
	now := time.Now().UTC()

	for _, task := range tasks {
		updated := MillisTime(task.DateUpdated)

		if prev, known := existing[task.ID]; known {
			if updated != nil && !prev.Before(*updated) {
				continue
			}
			stats.Updated++
		} else {
			stats.New++
		}

		if err := s.upsertOrder(ctx, task, updated, now); err != nil {
			return stats, fmt.Errorf("upserting task %s: %w", task.ID, err)
		}
		if err := s.syncComments(ctx, task.ID, now); err != nil {
			return stats, err
		}
		if err := s.syncAttachments(ctx, task.ID, now); err != nil {
			return stats, err
		}
	}

	s.logger.Info("clickup sync complete",
		"new", stats.New, "updated", stats.Updated, "total", stats.Total)
	return stats, nil
}

func (s *Syncer) existingTasks(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.warehouse.Pool.Query(ctx,
		`SELECT task_id, date_updated FROM clickup_orders WHERE date_updated IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("loading existing orders: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var updated time.Time
		if err := rows.Scan(&id, &updated); err != nil {
			return nil, fmt.Errorf("scanning existing order: %w", err)
		}
		existing[id] = updated
	}
	return existing, rows.Err()
}

func (s *Syncer) upsertOrder(ctx context.Context, task Task, updated *time.Time, now time.Time) error {
	parsed := ParseTaskName(task.Name)

	assigneeNames := make([]string, len(task.Assignees))
	assigneeEmails := make([]string, len(task.Assignees))
	for i, a := range task.Assignees {
		assigneeNames[i] = a.Username
		assigneeEmails[i] = a.Email
	}

	query := warehouse.UpsertSQL("clickup_orders", orderColumns, []string{"task_id"})
	_, err := s.warehouse.Pool.Exec(ctx, query,
		task.ID,
		task.Name,
		parsed.OrderNumber,
		nullable(parsed.OrderType),
		nullable(parsed.Domain),
		parsed.AmountUSD,
		nullable(parsed.CustomerEmail),
		task.Status.Status,
		task.Status.Type,
		MillisTime(task.DateCreated),
		updated,
		MillisTime(task.DateDone),
		task.Creator.ID,
		task.Creator.Username,
		task.Creator.Email,
		strings.Join(assigneeNames, ", "),
		strings.Join(assigneeEmails, ", "),
		task.TextContent,
		task.URL,
		len(task.Attachments),
		now,
	)
	return err
}

func (s *Syncer) syncComments(ctx context.Context, taskID string, now time.Time) error {
	comments, err := s.client.TaskComments(ctx, taskID)
	if err != nil {
		return err
	}

	query := warehouse.UpsertSQL("clickup_order_comments", commentColumns, []string{"comment_id"})
	for _, c := range comments {
		_, err := s.warehouse.Pool.Exec(ctx, query,
			c.ID, taskID, c.CommentText,
			c.User.ID, c.User.Username, c.User.Email,
			MillisTime(c.Date), now)
		if err != nil {
			return fmt.Errorf("upserting comment %s: %w", c.ID, err)
		}
	}
	return nil
}

func (s *Syncer) syncAttachments(ctx context.Context, taskID string, now time.Time) error {
	attachments, err := s.client.TaskAttachments(ctx, taskID)
	if err != nil {
		return err
	}

	query := warehouse.UpsertSQL("clickup_order_attachments", attachmentColumns, []string{"attachment_id"})
	for _, a := range attachments {
		_, err := s.warehouse.Pool.Exec(ctx, query,
			a.ID, taskID, a.Title, a.Extension, a.Mimetype,
			a.Size, a.URL, MillisTime(a.Date), now)
		if err != nil {
			return fmt.Errorf("upserting attachment %s: %w", a.ID, err)
		}
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
