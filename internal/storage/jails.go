package storage

import (
	"context"
	"time"
)

type JailRecord struct {
	GuildID   string
	UserID    string
	ChannelID string
	RoleID    string
	Reason    string
	ReleaseAt time.Time
}

func (s *Store) SaveJail(ctx context.Context, record JailRecord) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO jails (guild_id, user_id, channel_id, role_id, reason, release_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			channel_id = excluded.channel_id,
			role_id = excluded.role_id,
			reason = excluded.reason,
			release_at = excluded.release_at
	`), record.GuildID, record.UserID, record.ChannelID, record.RoleID, record.Reason, record.ReleaseAt.Unix())
	return err
}

func (s *Store) DeleteJail(ctx context.Context, guildID, userID string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM jails WHERE guild_id = ? AND user_id = ?`), guildID, userID)
	return err
}

func (s *Store) ListJails(ctx context.Context) ([]JailRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, user_id, channel_id, role_id, reason, release_at
		FROM jails ORDER BY release_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []JailRecord
	for rows.Next() {
		var record JailRecord
		var release int64
		if err := rows.Scan(&record.GuildID, &record.UserID, &record.ChannelID, &record.RoleID, &record.Reason, &release); err != nil {
			return nil, err
		}
		record.ReleaseAt = time.Unix(release, 0)
		records = append(records, record)
	}
	return records, rows.Err()
}
