package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"budget-bubble-backend/internal/common/logger"
	"budget-bubble-backend/internal/features/document/models"
	"budget-bubble-backend/internal/features/document/repository"

	"github.com/redis/go-redis/v9"
)

// DefaultSetFields are the document fields kept as redis sorted sets so they
// can take atomic union and difference updates.
var DefaultSetFields = []string{"friendIds"}

// unionScript appends a member scored one past the current last member, so
// set fields read back in insertion order.
var unionScript = redis.NewScript(`
if not redis.call('ZSCORE', KEYS[1], ARGV[1]) then
	local last = redis.call('ZRANGE', KEYS[1], -1, -1, 'WITHSCORES')
	local score = 0
	if #last > 0 then
		score = tonumber(last[2]) + 1
	end
	redis.call('ZADD', KEYS[1], score, ARGV[1])
end
redis.call('PUBLISH', KEYS[2], ARGV[2])
return 1
`)

// Store keeps each document as a hash of JSON-encoded fields under
// "<prefix>:<id>", with set fields as sorted sets under
// "<prefix>:<id>:set:<field>" scored by insertion order.
// Every write publishes the document id on "<prefix>:changes".
type Store struct {
	client    redis.UniversalClient
	prefix    string
	setFields map[string]bool
	hub       *repository.Hub

	mu      sync.Mutex
	pubsub  *redis.PubSub
	started bool
	done    chan struct{}
}

func NewStore(client redis.UniversalClient, prefix string, setFields ...string) *Store {
	if len(setFields) == 0 {
		setFields = DefaultSetFields
	}
	sf := make(map[string]bool, len(setFields))
	for _, f := range setFields {
		sf[f] = true
	}
	return &Store{
		client:    client,
		prefix:    prefix,
		setFields: sf,
		hub:       repository.NewHub(),
	}
}

var _ repository.DocumentStore = (*Store)(nil)

func (s *Store) docKey(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

func (s *Store) setKey(id, field string) string {
	return fmt.Sprintf("%s:%s:set:%s", s.prefix, id, field)
}

func (s *Store) changesChannel() string {
	return s.prefix + ":changes"
}

// Start subscribes to the change channel. Subscribe fails until Start has
// returned successfully.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	pubsub := s.client.Subscribe(ctx, s.changesChannel())
	// wait for the subscription confirmation so no publish is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", s.changesChannel(), err)
	}

	s.pubsub = pubsub
	s.started = true
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		for msg := range pubsub.ChannelWithSubscriptions() {
			switch m := msg.(type) {
			case *redis.Message:
				s.hub.Notify(m.Payload)
			case *redis.Subscription:
				// go-redis resubscribed after a reconnect; changes published
				// while the connection was down were lost
				if m.Kind == "subscribe" {
					logger.Warn().Str("channel", m.Channel).Msg("Redis document listener resubscribed")
					s.hub.NotifyAll()
				}
			}
		}
	}()

	logger.Info().Str("channel", s.changesChannel()).Msg("Redis document listener started")
	return nil
}

// Close stops the listener and every subscription.
func (s *Store) Close() error {
	s.hub.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	err := s.pubsub.Close()
	<-s.done
	s.started = false
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*models.Document, error) {
	keys := []string{s.docKey(id)}
	fieldNames := make([]string, 0, len(s.setFields))
	for f := range s.setFields {
		fieldNames = append(fieldNames, f)
		keys = append(keys, s.setKey(id, f))
	}

	pipe := s.client.Pipeline()
	exists := pipe.Exists(ctx, keys...)
	hash := pipe.HGetAll(ctx, s.docKey(id))
	members := make(map[string]*redis.StringSliceCmd, len(fieldNames))
	for _, f := range fieldNames {
		members[f] = pipe.ZRange(ctx, s.setKey(id, f), 0, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}

	if exists.Val() == 0 {
		return nil, repository.ErrNotFound
	}

	fields := make(models.Fields, len(hash.Val())+len(fieldNames))
	for k, v := range hash.Val() {
		if s.setFields[k] {
			continue
		}
		fields[k] = json.RawMessage(v)
	}
	for f, cmd := range members {
		vals := cmd.Val()
		items := make([]json.RawMessage, 0, len(vals))
		for _, v := range vals {
			items = append(items, json.RawMessage(v))
		}
		raw, err := json.Marshal(items)
		if err != nil {
			return nil, fmt.Errorf("encode set field %s: %w", f, err)
		}
		fields[f] = raw
	}

	return &models.Document{ID: id, Fields: fields, Exists: true}, nil
}

func (s *Store) Set(ctx context.Context, id string, fields models.Fields) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		values := make([]interface{}, 0, len(fields)*2)
		for _, k := range fields.Keys() {
			v := fields[k]
			if !s.setFields[k] {
				values = append(values, k, string(v))
				continue
			}

			pipe.Del(ctx, s.setKey(id, k))
			var items []json.RawMessage
			if err := json.Unmarshal(v, &items); err != nil {
				// non-array value clears the set
				continue
			}
			members, err := compactAll(items)
			if err != nil {
				return fmt.Errorf("field %s: %w", k, err)
			}
			if len(members) > 0 {
				pipe.ZAdd(ctx, s.setKey(id, k), members...)
			}
		}
		if len(values) > 0 {
			pipe.HSet(ctx, s.docKey(id), values...)
		}
		pipe.Publish(ctx, s.changesChannel(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set document %s: %w", id, err)
	}
	return nil
}

func (s *Store) UpdateArray(ctx context.Context, id, field string, op models.ArrayOp, value json.RawMessage) error {
	if !s.setFields[field] {
		return fmt.Errorf("%s: %w", field, repository.ErrUnsupportedArrayField)
	}
	member, err := compact(value)
	if err != nil {
		return fmt.Errorf("invalid array value: %w", err)
	}

	switch op {
	case models.ArrayUnion:
		err = unionScript.Run(ctx, s.client, []string{s.setKey(id, field), s.changesChannel()}, member, id).Err()
	case models.ArrayDifference:
		_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, s.setKey(id, field), member)
			pipe.Publish(ctx, s.changesChannel(), id)
			return nil
		})
	default:
		return fmt.Errorf("unknown array op %q", op)
	}
	if err != nil {
		return fmt.Errorf("update %s.%s: %w", id, field, err)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, id string, fn models.SnapshotFunc) (models.CancelFunc, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil, errors.New("redis document store not started")
	}

	return s.hub.Attach(ctx, id, repository.LoadOrAbsent(id, s.Get), fn, func(err error) {
		logger.Warn().Err(err).Str("document_id", id).Msg("Failed to reload subscribed document")
	})
}

// compact normalizes a JSON value so equal values map to one set member.
func compact(raw json.RawMessage) (string, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	enc, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(enc), nil
}

// compactAll scores items by position, keeping the first of any duplicates.
func compactAll(items []json.RawMessage) ([]redis.Z, error) {
	out := make([]redis.Z, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		m, err := compact(item)
		if err != nil {
			return nil, err
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, redis.Z{Score: float64(len(out)), Member: m})
	}
	return out, nil
}
