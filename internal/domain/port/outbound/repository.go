package outbound

import (
	"context"
	"time"

	"github.com/v-yash/jarvis/internal/domain/model"
)

type PageRequest struct {
	Page int
	Size int
	Desc bool
}

type PageResult[T any] struct {
	Items      []T
	TotalCount int64
	Page       int
	Size       int
}

type AuditFilter struct {
	UserID    string
	Verb      string
	Namespace string
	Outcome   string
	Since     *time.Time
	Until     *time.Time
}

type AuditRepository interface {
	Create(ctx context.Context, audit model.CommandAudit) error
	List(ctx context.Context, filter AuditFilter, page PageRequest) (PageResult[model.CommandAudit], error)
}
