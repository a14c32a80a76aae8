package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"budget-bubble-backend/internal/features/document/models"
	"budget-bubble-backend/internal/features/document/repository"
)

// Store is an in-process DocumentStore. It backs the memory backend for
// local development and is the reference fake in tests.
type Store struct {
	mu   sync.Mutex
	docs map[string]models.Fields
	hub  *repository.Hub
}

func New() *Store {
	return &Store{
		docs: make(map[string]models.Fields),
		hub:  repository.NewHub(),
	}
}

var _ repository.DocumentStore = (*Store)(nil)

func (s *Store) Get(_ context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, ok := s.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &models.Document{ID: id, Fields: fields.Clone(), Exists: true}, nil
}

func (s *Store) Set(_ context.Context, id string, fields models.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.docLocked(id)
	for k, v := range fields {
		doc[k] = append(json.RawMessage(nil), v...)
	}
	s.notifyLocked(id)
	return nil
}

func (s *Store) UpdateArray(_ context.Context, id, field string, op models.ArrayOp, value json.RawMessage) error {
	want, err := compact(value)
	if err != nil {
		return fmt.Errorf("invalid array value: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.docLocked(id)
	var items []json.RawMessage
	if raw, ok := doc[field]; ok {
		// a non-array value is replaced, as the remote service does
		_ = json.Unmarshal(raw, &items)
	}

	next := make([]json.RawMessage, 0, len(items)+1)
	found := false
	for _, item := range items {
		c, err := compact(item)
		if err != nil {
			continue
		}
		if bytes.Equal(c, want) {
			found = true
			if op == models.ArrayDifference {
				continue
			}
		}
		next = append(next, c)
	}

	switch op {
	case models.ArrayUnion:
		if !found {
			next = append(next, want)
		}
	case models.ArrayDifference:
	default:
		return fmt.Errorf("unknown array op %q", op)
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return err
	}
	doc[field] = raw
	s.notifyLocked(id)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, id string, fn models.SnapshotFunc) (models.CancelFunc, error) {
	return s.hub.Attach(ctx, id, repository.LoadOrAbsent(id, s.Get), fn, nil)
}

// Subscribers reports how many live subscriptions a document has.
func (s *Store) Subscribers(id string) int {
	return s.hub.Count(id)
}

// Close stops all subscriptions.
func (s *Store) Close() {
	s.hub.Close()
}

func (s *Store) docLocked(id string) models.Fields {
	doc, ok := s.docs[id]
	if !ok {
		doc = make(models.Fields)
		s.docs[id] = doc
	}
	return doc
}

func (s *Store) notifyLocked(id string) {
	s.hub.Notify(id)
}

func compact(raw json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
