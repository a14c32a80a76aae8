package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "budget-bubble-backend/internal/common/errors"
	"budget-bubble-backend/internal/features/document/models"
	"budget-bubble-backend/internal/features/document/repository"
)

var ErrEmptyID = errors.New("document id is empty")

// Gateway translates store-level intents into document service calls. It
// holds no state of its own.
type Gateway struct {
	store repository.DocumentStore
}

func NewGateway(store repository.DocumentStore) *Gateway {
	return &Gateway{store: store}
}

// Get returns the document, or repository.ErrNotFound when it is absent.
func (g *Gateway) Get(ctx context.Context, id string) (*models.Document, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	doc, err := g.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, apperrors.NewDocumentStoreError("get", err).WithUserID(id)
	}
	return doc, nil
}

// Merge writes only the fields in patch.
func (g *Gateway) Merge(ctx context.Context, id string, patch map[string]any) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(patch) == 0 {
		return nil
	}
	fields, err := models.EncodeFields(patch)
	if err != nil {
		return err
	}
	if err := g.store.Set(ctx, id, fields); err != nil {
		return apperrors.NewDocumentStoreError("merge", err).WithUserID(id)
	}
	return nil
}

// AddToSet atomically unions value into an array field.
func (g *Gateway) AddToSet(ctx context.Context, id, field string, value any) error {
	return g.updateArray(ctx, id, field, models.ArrayUnion, value)
}

// RemoveFromSet atomically removes value from an array field.
func (g *Gateway) RemoveFromSet(ctx context.Context, id, field string, value any) error {
	return g.updateArray(ctx, id, field, models.ArrayDifference, value)
}

func (g *Gateway) Subscribe(ctx context.Context, id string, fn models.SnapshotFunc) (models.CancelFunc, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	cancel, err := g.store.Subscribe(ctx, id, fn)
	if err != nil {
		return nil, apperrors.NewSubscriptionError(id, err)
	}
	return cancel, nil
}

func (g *Gateway) updateArray(ctx context.Context, id, field string, op models.ArrayOp, value any) error {
	if id == "" {
		return ErrEmptyID
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s value: %w", field, err)
	}
	if err := g.store.UpdateArray(ctx, id, field, op, raw); err != nil {
		return apperrors.NewDocumentStoreError(string(op), err).
			WithUserID(id).
			WithDetail("field", field)
	}
	return nil
}
