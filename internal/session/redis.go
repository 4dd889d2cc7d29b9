package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RedisStore keeps uploads as JSON values with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	tracer trace.Tracer
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps client. Keys are "<prefix>upload:<id>".
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		tracer: otel.Tracer("outreach.internal.session"),
	}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("session: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session: ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + "upload:" + id
}

func (s *RedisStore) Save(ctx context.Context, upload Upload) error {
	ctx, span := s.tracer.Start(ctx, "session.save")
	defer span.End()
	span.SetAttributes(
		attribute.String("outreach.upload_id", upload.ID),
		attribute.Int("outreach.contacts", len(upload.Contacts)),
	)

	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(upload)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal upload: %w", err)
	}
	if err := s.client.Set(ctx, s.key(upload.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist upload: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (Upload, error) {
	ctx, span := s.tracer.Start(ctx, "session.load")
	defer span.End()
	span.SetAttributes(attribute.String("outreach.upload_id", id))

	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Upload{}, ErrNotFound
		}
		span.RecordError(err)
		return Upload{}, fmt.Errorf("session: failed to load upload: %w", err)
	}

	var upload Upload
	if err := json.Unmarshal(data, &upload); err != nil {
		span.RecordError(err)
		return Upload{}, fmt.Errorf("session: failed to decode upload: %w", err)
	}
	return upload, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("session: failed to delete upload: %w", err)
	}
	return nil
}
