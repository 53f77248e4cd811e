package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Ahmed123sa/whatsapp-auto/config"
	"github.com/Ahmed123sa/whatsapp-auto/contexthelper"
	"github.com/Ahmed123sa/whatsapp-auto/model"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidRecord = errors.New("invalid record")
)

// Storage is an append-only log of provisioned groups. Implementations serialize
// writes so concurrent appends never corrupt the stored collection.
type Storage interface {
	AppendRecord(ctx context.Context, record model.GroupRecord) error
	ListRecords(ctx context.Context) ([]model.GroupRecord, error)
	GetRecord(ctx context.Context, groupID string) (*model.GroupRecord, error)
	Close() error
}

// New returns the storage selected by cfg.Driver.
func New(cfg config.Storage) (Storage, error) {
	switch cfg.Driver {
	case config.StorageFile:
		return NewFileStorage(cfg.File)
	case config.StorageRedis:
		return NewRedisStorage(cfg.RedisServer, cfg.RedisKey)
	case config.StorageSQLite:
		return NewSQLStorage(cfg.SQLiteDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func validate(record model.GroupRecord) error {
	if strings.TrimSpace(record.GroupID) == "" {
		return fmt.Errorf("%w: group id is empty", ErrInvalidRecord)
	}
	return nil
}

func findRecord(records []model.GroupRecord, groupID string) (*model.GroupRecord, error) {
	for i := range records {
		if records[i].GroupID == groupID {
			return &records[i], nil
		}
	}
	return nil, ErrNotFound
}

var _ Storage = (*RedisStorage)(nil)

// RedisStorage keeps records as JSON entries of one redis list.
type RedisStorage struct {
	cfg    config.RedisServer
	key    string
	client *redis.Client
}

// NewRedisStorage returns a new storage that use redis
func NewRedisStorage(cfg config.RedisServer, key string) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.User,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	status := client.Ping(context.Background())
	if status.Err() != nil {
		return nil, fmt.Errorf("fail to ping redis %s, err: %w", cfg.Addr, status.Err())
	}
	return &RedisStorage{
		cfg:    cfg,
		key:    key,
		client: client,
	}, nil
}

// AppendRecord pushes a record to the tail of the list. RPUSH is atomic, so
// concurrent appends are serialized by redis.
func (s *RedisStorage) AppendRecord(ctx context.Context, record model.GroupRecord) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	if err := validate(record); err != nil {
		return err
	}
	buf, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("fail to marshal record, err: %w", err)
	}
	if status := s.client.RPush(ctx, s.key, string(buf)); status.Err() != nil {
		return fmt.Errorf("fail to append record %s, err: %w", record.GroupID, status.Err())
	}
	return nil
}

// ListRecords returns all records in append order.
func (s *RedisStorage) ListRecords(ctx context.Context) ([]model.GroupRecord, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	result, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("fail to list records %s, err: %w", s.key, err)
	}
	records := make([]model.GroupRecord, 0, len(result))
	for _, item := range result {
		var record model.GroupRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			return nil, fmt.Errorf("fail to unmarshal record, err: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *RedisStorage) GetRecord(ctx context.Context, groupID string) (*model.GroupRecord, error) {
	records, err := s.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	return findRecord(records, groupID)
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}
