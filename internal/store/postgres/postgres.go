package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/aamamaludin23/electronkasir/internal/domain"
	"github.com/aamamaludin23/electronkasir/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	seq        BIGSERIAL,
	body       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS records_collection_seq_idx ON records (collection, seq);
`

// Store keeps each record as a JSONB document keyed by collection and id.
// Apply runs a patch inside one serializable transaction.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Items() store.Repository[domain.Item] {
	return repository[domain.Item]{db: s.db, collection: store.CollectionItems}
}

func (s *Store) Customers() store.Repository[domain.Customer] {
	return repository[domain.Customer]{db: s.db, collection: store.CollectionCustomers}
}

func (s *Store) Transactions() store.Repository[domain.Transaction] {
	return repository[domain.Transaction]{db: s.db, collection: store.CollectionTransactions}
}

func (s *Store) DebtPayments() store.Repository[domain.DebtPayment] {
	return repository[domain.DebtPayment]{db: s.db, collection: store.CollectionDebtPayments}
}

func (s *Store) Shifts() store.Repository[domain.Shift] {
	return repository[domain.Shift]{db: s.db, collection: store.CollectionShifts}
}

func (s *Store) Users() store.Repository[domain.UserAccount] {
	return repository[domain.UserAccount]{db: s.db, collection: store.CollectionUsers}
}

func (s *Store) AuditLogs() store.Repository[domain.AuditLog] {
	return repository[domain.AuditLog]{db: s.db, collection: store.CollectionAuditLogs}
}

func (s *Store) Apply(ctx context.Context, patch store.Patch) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, write := range patch.Writes() {
		if write.Delete {
			if err := deleteRecord(ctx, tx, write.Collection, write.ID); err != nil {
				return err
			}
			continue
		}
		if err := upsertRecord(ctx, tx, write.Collection, write.ID, write.Record); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return fmt.Errorf("%w: concurrent update, retry", store.ErrInvalidTransaction)
		}
		return err
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertRecord(ctx context.Context, db execer, collection string, id string, record any) error {
	if id == "" {
		return store.ErrInvalidTransaction
	}
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO records (collection, id, body, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, id)
		DO UPDATE SET body = EXCLUDED.body, updated_at = now()
	`, collection, id, body)
	return err
}

func deleteRecord(ctx context.Context, db execer, collection string, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM records WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("delete %s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

type repository[T store.Record] struct {
	db         *sql.DB
	collection string
}

func (r repository[T]) List(ctx context.Context) ([]T, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT body
		FROM records
		WHERE collection = $1
		ORDER BY seq
	`, r.collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]T, 0, 64)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var record T
		if err := json.Unmarshal(body, &record); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.collection, err)
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r repository[T]) Get(ctx context.Context, id string) (T, error) {
	var record T
	var body []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT body
		FROM records
		WHERE collection = $1 AND id = $2
	`, r.collection, id).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return record, store.ErrNotFound
		}
		return record, err
	}
	if err := json.Unmarshal(body, &record); err != nil {
		return record, fmt.Errorf("decode %s/%s: %w", r.collection, id, err)
	}
	return record, nil
}

func (r repository[T]) Save(ctx context.Context, record T) error {
	return upsertRecord(ctx, r.db, r.collection, record.RecordID(), record)
}

func (r repository[T]) Delete(ctx context.Context, id string) error {
	return deleteRecord(ctx, r.db, r.collection, id)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}
