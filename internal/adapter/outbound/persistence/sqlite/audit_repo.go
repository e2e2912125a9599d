package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/v-yash/jarvis/internal/domain/model"
	"github.com/v-yash/jarvis/internal/domain/port/outbound"
)

const (
	defaultPageSize = 20
	maxPageSize     = 500
)

// AuditRepo implements outbound.AuditRepository using SQLite.
type AuditRepo struct {
	db *sql.DB
}

var _ outbound.AuditRepository = (*AuditRepo)(nil)

// NewAuditRepo creates a new AuditRepo backed by the given store.
func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{db: store.DB}
}

// Create inserts a command audit row.
func (r *AuditRepo) Create(ctx context.Context, a model.CommandAudit) error {
	meta, err := marshalStringMap(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling audit metadata: %w", err)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	const q = `INSERT INTO command_audits
		(id, job_id, user_id, user_email, channel_id, verb, resource_type, resource_name,
		 namespace, command, outcome, error_kind, message, duration_ms, metadata, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`

	_, err = r.db.ExecContext(ctx, q,
		a.ID, a.JobID, a.UserID, a.UserEmail, a.ChannelID,
		string(a.Verb), string(a.ResourceType), a.ResourceName,
		a.Namespace, a.Command, string(a.Outcome), a.ErrorKind, a.Message,
		a.Duration.Milliseconds(), meta, a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting command audit: %w", err)
	}
	return nil
}

// List returns a page of audits ordered by creation time.
func (r *AuditRepo) List(ctx context.Context, filter outbound.AuditFilter, page outbound.PageRequest) (outbound.PageResult[model.CommandAudit], error) {
	where, args := buildAuditWhere(filter)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM command_audits"+where, args...).Scan(&total); err != nil {
		return outbound.PageResult[model.CommandAudit]{}, fmt.Errorf("counting command audits: %w", err)
	}

	dir := "ASC"
	if page.Desc {
		dir = "DESC"
	}
	size := page.Size
	switch {
	case size <= 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	offset := page.Page * size
	if offset < 0 {
		offset = 0
	}

	dataQ := fmt.Sprintf(`SELECT id, job_id, user_id, user_email, channel_id, verb, resource_type, resource_name,
		namespace, command, outcome, error_kind, message, duration_ms, metadata, created_at
		FROM command_audits%s ORDER BY created_at %s, id %s LIMIT ? OFFSET ?`, where, dir, dir)

	rows, err := r.db.QueryContext(ctx, dataQ, append(args, size, offset)...)
	if err != nil {
		return outbound.PageResult[model.CommandAudit]{}, fmt.Errorf("listing command audits: %w", err)
	}
	defer rows.Close()

	var items []model.CommandAudit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return outbound.PageResult[model.CommandAudit]{}, fmt.Errorf("scanning command audit: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return outbound.PageResult[model.CommandAudit]{}, fmt.Errorf("iterating command audits: %w", err)
	}

	return outbound.PageResult[model.CommandAudit]{
		Items:      items,
		TotalCount: total,
		Page:       page.Page,
		Size:       size,
	}, nil
}

// --- helpers ---

type auditScanner interface {
	Scan(dest ...any) error
}

func scanAudit(s auditScanner) (model.CommandAudit, error) {
	var a model.CommandAudit
	var verb, resourceType, outcome, metaJSON string
	var durationMS int64

	err := s.Scan(
		&a.ID, &a.JobID, &a.UserID, &a.UserEmail, &a.ChannelID,
		&verb, &resourceType, &a.ResourceName,
		&a.Namespace, &a.Command, &outcome, &a.ErrorKind, &a.Message,
		&durationMS, &metaJSON, &a.CreatedAt,
	)
	if err != nil {
		return model.CommandAudit{}, err
	}
	a.Verb = model.Verb(verb)
	a.ResourceType = model.ResourceType(resourceType)
	a.Outcome = model.AuditOutcome(outcome)
	a.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal([]byte(metaJSON), &a.Metadata); err != nil {
		a.Metadata = make(map[string]string)
	}
	return a, nil
}

func buildAuditWhere(f outbound.AuditFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Verb != "" {
		clauses = append(clauses, "verb = ?")
		args = append(args, f.Verb)
	}
	if f.Namespace != "" {
		clauses = append(clauses, "namespace = ?")
		args = append(args, f.Namespace)
	}
	if f.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, f.Outcome)
	}
	if f.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if f.Until != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, f.Until.UTC())
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
