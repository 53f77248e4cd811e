package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Ahmed123sa/whatsapp-auto/contexthelper"
	"github.com/Ahmed123sa/whatsapp-auto/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS group_records (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    group_id       TEXT    NOT NULL UNIQUE,
    group_name     TEXT    NOT NULL,
    client_contact TEXT    NOT NULL,
    participants   TEXT    NOT NULL,
    created_at     INTEGER NOT NULL
);
`

var _ Storage = (*SQLStorage)(nil)

// SQLStorage keeps records in a sqlite table, ordered by insertion.
type SQLStorage struct {
	dsn string
	db  *sql.DB
}

// NewSQLStorage returns a new storage that use sqlite
func NewSQLStorage(dsn string) (*SQLStorage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("fail to open sqlite %s, err: %w", dsn, err)
	}
	// sqlite allows one writer; a single connection keeps appends in order.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("fail to ping sqlite, err: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("fail to create schema, err: %w", err)
	}
	return &SQLStorage{
		dsn: dsn,
		db:  db,
	}, nil
}

func (d *SQLStorage) AppendRecord(ctx context.Context, record model.GroupRecord) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	if err := validate(record); err != nil {
		return err
	}
	participants, err := json.Marshal(record.Participants)
	if err != nil {
		return fmt.Errorf("fail to marshal participants, err: %w", err)
	}
	_, err = d.db.ExecContext(ctx,
		"INSERT INTO group_records (group_id, group_name, client_contact, participants, created_at) VALUES (?, ?, ?, ?, ?)",
		record.GroupID, record.GroupLabel, record.ClientContact, string(participants), record.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("fail to insert record %s, err: %w", record.GroupID, err)
	}
	return nil
}

func (d *SQLStorage) ListRecords(ctx context.Context) ([]model.GroupRecord, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	rows, err := d.db.QueryContext(ctx, "SELECT group_id, group_name, client_contact, participants, created_at FROM group_records ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("fail to query records, err: %w", err)
	}
	defer func(rows *sql.Rows) {
		err := rows.Close()
		if err != nil {
			fmt.Println("fail to close rows", err)
		}
	}(rows)
	records := []model.GroupRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fail to iterate records, err: %w", err)
	}
	return records, nil
}

func (d *SQLStorage) GetRecord(ctx context.Context, groupID string) (*model.GroupRecord, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	row := d.db.QueryRowContext(ctx, "SELECT group_id, group_name, client_contact, participants, created_at FROM group_records WHERE group_id = ?", groupID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return record, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*model.GroupRecord, error) {
	var (
		record       model.GroupRecord
		participants string
		createdAt    int64
	)
	if err := row.Scan(&record.GroupID, &record.GroupLabel, &record.ClientContact, &participants, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("fail to scan record, err: %w", err)
	}
	if err := json.Unmarshal([]byte(participants), &record.Participants); err != nil {
		return nil, fmt.Errorf("fail to unmarshal participants of %s, err: %w", record.GroupID, err)
	}
	record.CreatedAt = time.Unix(0, createdAt).UTC()
	return &record, nil
}

// Close closes the connection to the database.
func (d *SQLStorage) Close() error {
	return d.db.Close()
}
