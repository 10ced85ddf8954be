package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SQLStore keeps sessions in the sessions and session_values tables created
// by the database migrations.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) Get(ctx context.Context, sid, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT v.value
         FROM session_values v
         JOIN sessions s ON s.id = v.session_id
         WHERE s.id = ? AND v.key = ? AND s.expires_at > ?`,
		sid, key, s.now().Unix(),
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (s *SQLStore) Put(ctx context.Context, sid string, values map[string]string, expiresAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.now().Unix()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, expires_at) VALUES (?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET expires_at = excluded.expires_at`,
		sid, now, expiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO session_values (session_id, key, value, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for k, v := range values {
		if _, err := stmt.ExecContext(ctx, sid, k, v, now); err != nil {
			return fmt.Errorf("writing %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Delete(ctx context.Context, sid string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM session_values WHERE session_id = ?", sid); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sid); err != nil {
		return err
	}
	return tx.Commit()
}

// CleanExpired removes expired sessions and returns how many were dropped.
func (s *SQLStore) CleanExpired(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := s.now().Unix()
	_, err = tx.ExecContext(ctx,
		"DELETE FROM session_values WHERE session_id IN (SELECT id FROM sessions WHERE expires_at <= ?)", now)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

// Cleaner is implemented by stores that need expired rows swept.
type Cleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

// RunCleanup sweeps expired sessions every interval until ctx is done.
func RunCleanup(ctx context.Context, c Cleaner, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.CleanExpired(ctx)
			if err != nil {
				logger.Error("cleaning expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("cleaned expired sessions", "count", n)
			}
		}
	}
}
