package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/metadata"
)

const recordsTable = "records"

var (
	recordColumns = []string{"path", "rel_path", "base_dir", "title", "creation_date", "confidence_index", "data", "updated_at"}
	// title, creation_date and confidence_index are derived from data
	readColumns = []string{"path", "rel_path", "base_dir", "data", "updated_at"}
)

// StoredRecord is a record with the location of its document.
type StoredRecord struct {
	Path      string
	Rel       string
	BaseDir   string
	Record    *metadata.Record
	UpdatedAt time.Time
}

type RecordRepository interface {
	Upsert(ctx context.Context, rec StoredRecord) error
	Get(ctx context.Context, path string) (*StoredRecord, error)
	List(ctx context.Context) ([]*StoredRecord, error)
	ListIncomplete(ctx context.Context, threshold int) ([]*StoredRecord, error)
	Count(ctx context.Context) (int, error)
}

var _ RecordRepository = (*Store)(nil)

// Upsert inserts rec or replaces the stored version for the same path.
func (s *Store) Upsert(ctx context.Context, rec StoredRecord) error {
	if rec.Path == "" || rec.Record == nil {
		return common.NewAppError("INVALID_RECORD", "path and record are required", common.ErrInvalidInput)
	}
	data, err := json.Marshal(rec.Record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	query, args := s.builder().Insert(recordsTable).
		Columns(recordColumns...).
		Values(rec.Path, rec.Rel, rec.BaseDir, rec.Record.Title, rec.Record.CreationDateString(),
			rec.Record.ConfidenceIndex(), string(data), updated.Unix()).
		OnConflict(entsql.ConflictColumns("path"), entsql.ResolveWithNewValues()).
		Query()
	if _, err := s.drv.DB().ExecContext(ctx, query, args...); err != nil {
		s.logger.Error("db.record.upsert_failed", "path", rec.Path, "error", err)
		return fmt.Errorf("%w: upsert %s: %v", common.ErrDatabase, rec.Path, err)
	}
	return nil
}

// Get returns the stored record for path, or ErrNotFound.
func (s *Store) Get(ctx context.Context, path string) (*StoredRecord, error) {
	sel := s.builder().Select(readColumns...).From(s.builder().Table(recordsTable))
	rows, err := s.query(ctx, sel.Where(entsql.EQ("path", path)).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, path)
	}
	return rows[0], nil
}

// List returns every stored record ordered by path.
func (s *Store) List(ctx context.Context) ([]*StoredRecord, error) {
	sel := s.builder().Select(readColumns...).From(s.builder().Table(recordsTable))
	return s.query(ctx, sel.OrderBy("path"))
}

// ListIncomplete returns the records whose confidence index is below threshold.
func (s *Store) ListIncomplete(ctx context.Context, threshold int) ([]*StoredRecord, error) {
	sel := s.builder().Select(readColumns...).From(s.builder().Table(recordsTable))
	return s.query(ctx, sel.Where(entsql.LT("confidence_index", float64(threshold))).OrderBy("path"))
}

func (s *Store) Count(ctx context.Context) (int, error) {
	query, args := s.builder().Select().Count().From(s.builder().Table(recordsTable)).Query()
	var n int
	if err := s.drv.DB().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %v", common.ErrDatabase, err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, sel *entsql.Selector) ([]*StoredRecord, error) {
	query, args := sel.Query()
	rows, err := s.drv.DB().QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("db.record.query_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*StoredRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (*StoredRecord, error) {
	var (
		r       StoredRecord
		data    []byte
		updated int64
	)
	if err := rows.Scan(&r.Path, &r.Rel, &r.BaseDir, &data, &updated); err != nil {
		return nil, fmt.Errorf("%w: scan: %v", common.ErrDatabase, err)
	}
	rec := metadata.New()
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, errors.Join(common.ErrDatabase, fmt.Errorf("decode record %s: %w", r.Path, err))
	}
	r.Record = rec
	r.UpdatedAt = time.Unix(updated, 0)
	return &r, nil
}
