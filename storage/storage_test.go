package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ahmed123sa/whatsapp-auto/config"
	"github.com/Ahmed123sa/whatsapp-auto/model"
)

func sampleRecord(id string) model.GroupRecord {
	return model.GroupRecord{
		GroupID:       id,
		GroupLabel:    "Acme " + id,
		Participants:  model.NewParticipantSet("201012345678@c.us", "20100000000@c.us", []string{"201098765432@c.us"}),
		ClientContact: "0100000000",
		CreatedAt:     time.Date(2026, 10, 15, 9, 30, 0, 123, time.UTC),
	}
}

// exerciseStorage runs the behaviour every Storage shares.
func exerciseStorage(t *testing.T, s Storage) {
	ctx := context.Background()

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	first, second := sampleRecord("1@g.us"), sampleRecord("2@g.us")
	require.NoError(t, s.AppendRecord(ctx, first))
	require.NoError(t, s.AppendRecord(ctx, second))

	records, err = s.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "1@g.us", records[0].GroupID)
	assert.Equal(t, "2@g.us", records[1].GroupID)
	assert.Equal(t, first.Participants, records[0].Participants)
	assert.True(t, first.CreatedAt.Equal(records[0].CreatedAt))

	got, err := s.GetRecord(ctx, "2@g.us")
	require.NoError(t, err)
	assert.Equal(t, "Acme 2@g.us", got.GroupLabel)

	_, err = s.GetRecord(ctx, "missing@g.us")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.AppendRecord(ctx, model.GroupRecord{GroupLabel: "no id"})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.AppendRecord(cancelled, sampleRecord("3@g.us")), context.Canceled)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.AppendRecord(ctx, sampleRecord(fmt.Sprintf("c%d@g.us", i))))
		}(i)
	}
	wg.Wait()
	records, err = s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 22)
}

func TestFileStorage(t *testing.T) {
	s, err := NewFileStorage(filepath.Join(t.TempDir(), "data", "groups.json"))
	require.NoError(t, err)
	defer s.Close()
	exerciseStorage(t, s)
}

func TestFileStorage_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.json")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o600))
	s, err := NewFileStorage(path)
	require.NoError(t, err)

	records, err := s.ListRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))
	_, err = s.ListRecords(context.Background())
	assert.ErrorContains(t, err, "fail to decode")
	assert.Error(t, s.AppendRecord(context.Background(), sampleRecord("1@g.us")))
}

func TestSQLStorage(t *testing.T) {
	s, err := NewSQLStorage(":memory:")
	require.NoError(t, err)
	defer s.Close()
	exerciseStorage(t, s)
}

func TestSQLStorage_DuplicateGroup(t *testing.T) {
	s, err := NewSQLStorage(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.AppendRecord(ctx, sampleRecord("1@g.us")))
	assert.Error(t, s.AppendRecord(ctx, sampleRecord("1@g.us")))
}

func TestRedisStorage(t *testing.T) {
	addr := os.Getenv("PROVISIONER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PROVISIONER_TEST_REDIS_ADDR not set")
	}
	key := "provisioner:test:" + uuid.NewString()
	s, err := NewRedisStorage(config.RedisServer{Addr: addr}, key)
	require.NoError(t, err)
	defer func() {
		s.client.Del(context.Background(), key)
		_ = s.Close()
	}()
	exerciseStorage(t, s)
}

func TestNew(t *testing.T) {
	s, err := New(config.Storage{Driver: config.StorageFile, File: filepath.Join(t.TempDir(), "g.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStorage{}, s)

	s, err = New(config.Storage{Driver: config.StorageSQLite, SQLiteDSN: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &SQLStorage{}, s)
	require.NoError(t, s.Close())

	_, err = New(config.Storage{Driver: "mysql"})
	assert.Error(t, err)
}
