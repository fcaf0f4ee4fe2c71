package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type AFKStatus struct {
	UserID string
	Reason string
	Since  time.Time
}

type ReviveSettings struct {
	GuildID      string
	RoleID       string
	ChannelID    string
	Enabled      bool
	IntervalText string
}

func (s *Store) SetAFK(ctx context.Context, status AFKStatus) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO afk (user_id, reason, since) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET reason = excluded.reason, since = excluded.since
	`), status.UserID, status.Reason, status.Since.Unix())
	return err
}

func (s *Store) GetAFK(ctx context.Context, userID string) (AFKStatus, bool, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT user_id, reason, since FROM afk WHERE user_id = ?`), userID)
	var status AFKStatus
	var since int64
	if err := row.Scan(&status.UserID, &status.Reason, &since); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AFKStatus{}, false, nil
		}
		return AFKStatus{}, false, err
	}
	status.Since = time.Unix(since, 0)
	return status, true, nil
}

func (s *Store) DeleteAFK(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM afk WHERE user_id = ?`), userID)
	return err
}

func (s *Store) SetTimezone(ctx context.Context, userID, zone string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO timezones (user_id, zone) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET zone = excluded.zone
	`), userID, zone)
	return err
}

func (s *Store) GetTimezone(ctx context.Context, userID string) (string, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT zone FROM timezones WHERE user_id = ?`), userID)
	var zone string
	if err := row.Scan(&zone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return zone, nil
}

func (s *Store) GetReviveSettings(ctx context.Context, guildID string) (ReviveSettings, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT role_id, channel_id, enabled, interval_text FROM revive_settings WHERE guild_id = ?
	`), guildID)
	settings := ReviveSettings{GuildID: guildID}
	var enabled int
	if err := row.Scan(&settings.RoleID, &settings.ChannelID, &enabled, &settings.IntervalText); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return settings, nil
		}
		return ReviveSettings{}, err
	}
	settings.Enabled = enabled == 1
	return settings, nil
}

func (s *Store) UpsertReviveSettings(ctx context.Context, settings ReviveSettings) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO revive_settings (guild_id, role_id, channel_id, enabled, interval_text)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			role_id = excluded.role_id,
			channel_id = excluded.channel_id,
			enabled = excluded.enabled,
			interval_text = excluded.interval_text
	`), settings.GuildID, settings.RoleID, settings.ChannelID, boolToInt(settings.Enabled), settings.IntervalText)
	return err
}

func (s *Store) ListEnabledRevive(ctx context.Context) ([]ReviveSettings, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, role_id, channel_id, interval_text FROM revive_settings WHERE enabled = 1
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReviveSettings
	for rows.Next() {
		settings := ReviveSettings{Enabled: true}
		if err := rows.Scan(&settings.GuildID, &settings.RoleID, &settings.ChannelID, &settings.IntervalText); err != nil {
			return nil, err
		}
		out = append(out, settings)
	}
	return out, rows.Err()
}
