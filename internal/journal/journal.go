// Package journal records every outbound webhook delivery in SQLite so the
// request that was sent, and the response that came back, can be inspected later.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/postserve/internal/webhook"
)

// ErrNotFound is returned when no delivery has the requested id.
var ErrNotFound = errors.New("delivery not found")

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Status is the outcome of one delivery.
type Status string

const (
	// StatusDelivered means the target answered, whatever the HTTP status.
	StatusDelivered Status = "delivered"
	// StatusFailed means the HTTP call itself failed.
	StatusFailed Status = "failed"
	// StatusAborted means the transformer chain failed and nothing was sent.
	StatusAborted Status = "aborted"
)

// Delivery is one journal row.
type Delivery struct {
	ID           string
	ServeEventID string
	Stub         string
	Request      webhook.Request
	Status       Status
	Response     *webhook.LoggedResponse
	Error        string
	CreatedAt    time.Time
	CompletedAt  time.Time
}

// ResponseView returns the received response for inspection; ok is false when
// nothing was received.
func (d *Delivery) ResponseView() (webhook.ResponseView, bool) {
	if d.Response == nil {
		return webhook.ResponseView{}, false
	}
	return webhook.NewResponseView(*d.Response), true
}

// Store is the SQLite-backed journal.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts d, assigning an id when empty, and returns the id.
func (s *Store) Record(ctx context.Context, d Delivery) (string, error) {
	if d.ServeEventID == "" {
		return "", fmt.Errorf("serve event id is empty")
	}
	if d.Status == "" {
		return "", fmt.Errorf("status is empty")
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.CompletedAt.IsZero() {
		d.CompletedAt = now
	}

	reqHeaders, err := json.Marshal(d.Request.Header())
	if err != nil {
		return "", fmt.Errorf("encode request headers: %w", err)
	}
	var reqBody any
	if body, ok := d.Request.Body(); ok {
		reqBody = body
	}

	var respStatus, respHeaders, respBody any
	if d.Response != nil {
		respStatus = d.Response.Status
		h, err := json.Marshal(d.Response.Header)
		if err != nil {
			return "", fmt.Errorf("encode response headers: %w", err)
		}
		respHeaders = string(h)
		if d.Response.Body != nil {
			respBody = string(d.Response.Body)
		}
	}

	var lastError any
	if d.Error != "" {
		lastError = d.Error
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO webhook_delivery(
  id, serve_event_id, stub, method, url, request_headers, request_body, status,
  response_status, response_headers, response_body, last_error, created_at, completed_at
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, d.ID, d.ServeEventID, d.Stub, string(d.Request.Method()), d.Request.URL(), string(reqHeaders), reqBody, string(d.Status),
		respStatus, respHeaders, respBody, lastError,
		d.CreatedAt.UTC().Format(timeLayout), d.CompletedAt.UTC().Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("insert delivery: %w", err)
	}
	return d.ID, nil
}

const selectColumns = `
  id, serve_event_id, stub, method, url, request_headers, request_body, status,
  response_status, response_headers, response_body, last_error, created_at, completed_at`

// Get returns the delivery with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Delivery, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+selectColumns+` FROM webhook_delivery WHERE id = ?;`, id)
	d, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery %s: %w", id, err)
	}
	return d, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	ServeEventID string
	Limit        int
}

// List returns deliveries newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]*Delivery, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `SELECT` + selectColumns + ` FROM webhook_delivery`
	args := []any{}
	if f.ServeEventID != "" {
		query += ` WHERE serve_event_id = ?`
		args = append(args, f.ServeEventID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?;`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var out []*Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Prune deletes deliveries completed before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM webhook_delivery WHERE completed_at < ?;`,
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune deliveries: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row scanner) (*Delivery, error) {
	var (
		d                                  Delivery
		method, url, reqHeaders, status    string
		createdAt, completedAt             string
		reqBody, respHeaders, respBody, le sql.NullString
		respStatus                         sql.NullInt64
	)
	if err := row.Scan(&d.ID, &d.ServeEventID, &d.Stub, &method, &url, &reqHeaders, &reqBody, &status,
		&respStatus, &respHeaders, &respBody, &le, &createdAt, &completedAt); err != nil {
		return nil, err
	}

	var header webhook.Header
	if err := json.Unmarshal([]byte(reqHeaders), &header); err != nil {
		return nil, fmt.Errorf("decode request headers: %w", err)
	}
	req := webhook.NewRequest(webhook.Method(method), url)
	for _, name := range header.Names() {
		req = req.WithHeaderValues(name, header.Values(name)...)
	}
	if reqBody.Valid {
		req = req.WithBody(reqBody.String)
	}
	d.Request = req
	d.Status = Status(status)
	d.Error = le.String

	if respStatus.Valid {
		resp := &webhook.LoggedResponse{Status: int(respStatus.Int64)}
		if respHeaders.Valid {
			if err := json.Unmarshal([]byte(respHeaders.String), &resp.Header); err != nil {
				return nil, fmt.Errorf("decode response headers: %w", err)
			}
		}
		if respBody.Valid {
			resp.Body = []byte(respBody.String)
		}
		d.Response = resp
	}

	var err error
	if d.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if d.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}
	return &d, nil
}
