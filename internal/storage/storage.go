package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Store struct {
	db     *sql.DB
	driver string
}

type GuildSettings struct {
	GuildID      string
	LogChannel   string
	JailChannel  string
	JailRole     string
	PurgeChannel string
	AppealLink   string
}

func New(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverPostgres:
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		return &Store{db: db, driver: DriverPostgres}, nil
	case DriverSQLite, "":
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		return &Store{db: db, driver: DriverSQLite}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Migrate() error {
	dir := path.Join("migrations", s.driver)
	entries, err := migrations.ReadDir(dir)
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join(dir, file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func (s *Store) GetGuildSettings(ctx context.Context, guildID string, defaults GuildSettings) (GuildSettings, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT log_channel, jail_channel, jail_role, purge_channel, appeal_link
		FROM guild_settings WHERE guild_id = ?`), guildID)

	result := defaults
	result.GuildID = guildID

	var stored GuildSettings
	err := row.Scan(
		&stored.LogChannel,
		&stored.JailChannel,
		&stored.JailRole,
		&stored.PurgeChannel,
		&stored.AppealLink,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return GuildSettings{}, err
	}
	if stored.LogChannel != "" {
		result.LogChannel = stored.LogChannel
	}
	result.JailChannel = stored.JailChannel
	result.JailRole = stored.JailRole
	result.PurgeChannel = stored.PurgeChannel
	result.AppealLink = stored.AppealLink
	return result, nil
}

func (s *Store) UpsertGuildSettings(ctx context.Context, settings GuildSettings) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO guild_settings (
			guild_id, log_channel, jail_channel, jail_role, purge_channel, appeal_link
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			log_channel = excluded.log_channel,
			jail_channel = excluded.jail_channel,
			jail_role = excluded.jail_role,
			purge_channel = excluded.purge_channel,
			appeal_link = excluded.appeal_link
	`),
		settings.GuildID,
		settings.LogChannel,
		settings.JailChannel,
		settings.JailRole,
		settings.PurgeChannel,
		settings.AppealLink,
	)
	return err
}

func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unixOrZero(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.Unix(value, 0)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
