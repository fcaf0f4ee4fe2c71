package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Warning struct {
	GuildID   string
	UserID    string
	CaseID    int
	Reason    string
	Moderator string
	CreatedAt time.Time
}

func (s *Store) ListWarnings(ctx context.Context, guildID, userID string) ([]Warning, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT guild_id, user_id, case_id, reason, moderator, created_at
		FROM warnings
		WHERE guild_id = ? AND user_id = ?
		ORDER BY id ASC
	`), guildID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var warnings []Warning
	for rows.Next() {
		var w Warning
		var created int64
		if err := rows.Scan(&w.GuildID, &w.UserID, &w.CaseID, &w.Reason, &w.Moderator, &created); err != nil {
			return nil, err
		}
		w.CreatedAt = unixOrZero(created)
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

// AppendWarning inserts the record and returns the member's warning count after the insert.
func (s *Store) AppendWarning(ctx context.Context, w Warning) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO warnings (guild_id, user_id, case_id, reason, moderator, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), w.GuildID, w.UserID, w.CaseID, w.Reason, w.Moderator, w.CreatedAt.Unix())
	if err != nil {
		return 0, err
	}

	var count int
	row := tx.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*) FROM warnings WHERE guild_id = ? AND user_id = ?
	`), w.GuildID, w.UserID)
	if err = row.Scan(&count); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ClearWarnings(ctx context.Context, guildID, userID string) (int, error) {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM warnings WHERE guild_id = ? AND user_id = ?`), guildID, userID)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// DeleteWarning removes the oldest record carrying caseID. It reports false when none matched.
func (s *Store) DeleteWarning(ctx context.Context, guildID, userID string, caseID int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var id int64
	row := tx.QueryRowContext(ctx, s.rebind(`
		SELECT id FROM warnings
		WHERE guild_id = ? AND user_id = ? AND case_id = ?
		ORDER BY id ASC LIMIT 1
	`), guildID, userID, caseID)
	scanErr := row.Scan(&id)
	if errors.Is(scanErr, sql.ErrNoRows) {
		_ = tx.Rollback()
		return false, nil
	}
	if scanErr != nil {
		err = scanErr
		return false, err
	}

	if _, err = tx.ExecContext(ctx, s.rebind(`DELETE FROM warnings WHERE id = ?`), id); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// HasWarnings reports whether the guild already holds imported or recorded warnings.
func (s *Store) HasWarnings(ctx context.Context, guildID string) (bool, error) {
	var count int
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM warnings WHERE guild_id = ?`), guildID)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
