package storage

import (
	"context"
	"time"
)

type ModAction struct {
	ID          string
	GuildID     string
	Action      string
	TargetID    string
	ModeratorID string
	Reason      string
	Details     string
	CreatedAt   time.Time
}

func (s *Store) AddModAction(ctx context.Context, entry ModAction) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO mod_actions (id, guild_id, action, target_id, moderator_id, reason, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), entry.ID, entry.GuildID, entry.Action, entry.TargetID, entry.ModeratorID, entry.Reason, entry.Details, entry.CreatedAt.Unix())
	return err
}

func (s *Store) ListModActions(ctx context.Context, guildID string, since time.Time) ([]ModAction, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, guild_id, action, target_id, moderator_id, reason, details, created_at
		FROM mod_actions
		WHERE guild_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`), guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ModAction
	for rows.Next() {
		var entry ModAction
		var created int64
		if err := rows.Scan(&entry.ID, &entry.GuildID, &entry.Action, &entry.TargetID, &entry.ModeratorID, &entry.Reason, &entry.Details, &created); err != nil {
			return nil, err
		}
		entry.CreatedAt = time.Unix(created, 0)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) CleanupModActions(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM mod_actions WHERE created_at < ?`), cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
