// Package db pkg/db/interfaces.go
package db

import (
	"context"
	"time"

	"github.com/carverauto/siteradar/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/carverauto/siteradar/pkg/db Service

// Service represents all state store operations.
type Service interface {
	// Connection operations.

	Ping(ctx context.Context) error
	Close() error

	// Meta operations. GetMeta returns ErrNotFound before the first reconciliation.

	GetMeta(ctx context.Context) (*models.Meta, error)
	CreateMeta(ctx context.Context, meta *models.Meta) error
	UpdateMeta(ctx context.Context, meta *models.Meta) error

	// Issue operations.

	ListIssues(ctx context.Context) ([]models.Issue, error)
	CreateIssue(ctx context.Context, issue *models.Issue) error
	DeleteIssue(ctx context.Context, id int64) error

	// Event operations. Events are append-only.

	CreateEvent(ctx context.Context, event *models.Event) error
	ListEvents(ctx context.Context, limit int) ([]models.Event, error)
	ListEventsBefore(ctx context.Context, before time.Time, limit int) ([]models.Event, error)
}
