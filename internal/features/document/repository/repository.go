package repository

import (
	"context"
	"encoding/json"
	"errors"

	"budget-bubble-backend/internal/features/document/models"
)

var (
	ErrNotFound              = errors.New("document not found")
	ErrUnsupportedArrayField = errors.New("field does not support array operations")
	ErrClosed                = errors.New("document store closed")
)

// DocumentStore is the remote per-user document service.
//
// Set is a merge-write: fields not named in the patch are left untouched.
// UpdateArray applies an atomic set union or difference to one array field.
// Subscribe delivers the current state once, right away, and then a full
// snapshot after every change. Snapshots for one subscription are delivered
// sequentially, never concurrently.
type DocumentStore interface {
	Get(ctx context.Context, id string) (*models.Document, error)
	Set(ctx context.Context, id string, fields models.Fields) error
	UpdateArray(ctx context.Context, id, field string, op models.ArrayOp, value json.RawMessage) error
	Subscribe(ctx context.Context, id string, fn models.SnapshotFunc) (models.CancelFunc, error)
}

// Loader reads the latest state of a document, returning a non-existing
// document rather than ErrNotFound.
type Loader func(ctx context.Context) (*models.Document, error)

// LoadOrAbsent adapts a Get-style call to a Loader.
func LoadOrAbsent(id string, get func(ctx context.Context, id string) (*models.Document, error)) Loader {
	return func(ctx context.Context) (*models.Document, error) {
		doc, err := get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return &models.Document{ID: id, Fields: models.Fields{}}, nil
		}
		return doc, err
	}
}
