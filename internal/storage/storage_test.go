package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestUpsertGuildSettings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	settings := GuildSettings{
		GuildID:      "g1",
		LogChannel:   "c1",
		JailChannel:  "jc",
		JailRole:     "jr",
		PurgeChannel: "pc",
	}
	if err := store.UpsertGuildSettings(ctx, settings); err != nil {
		t.Fatalf("upsert guild settings: %v", err)
	}

	settings.LogChannel = "c2"
	if err := store.UpsertGuildSettings(ctx, settings); err != nil {
		t.Fatalf("update guild settings: %v", err)
	}

	got, err := store.GetGuildSettings(ctx, "g1", GuildSettings{})
	if err != nil {
		t.Fatalf("get guild settings: %v", err)
	}
	if got.LogChannel != "c2" {
		t.Fatalf("expected channel c2, got %q", got.LogChannel)
	}
	if got.JailRole != "jr" || got.JailChannel != "jc" {
		t.Fatalf("unexpected jail settings: %+v", got)
	}
}

func TestGuildSettingsDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetGuildSettings(ctx, "g2", GuildSettings{LogChannel: "default"})
	if err != nil {
		t.Fatalf("get guild settings: %v", err)
	}
	if got.GuildID != "g2" || got.LogChannel != "default" {
		t.Fatalf("expected defaults, got %+v", got)
	}

	if err := store.UpsertGuildSettings(ctx, GuildSettings{GuildID: "g2", JailRole: "r"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err = store.GetGuildSettings(ctx, "g2", GuildSettings{LogChannel: "default"})
	if err != nil {
		t.Fatalf("get guild settings: %v", err)
	}
	if got.LogChannel != "default" {
		t.Fatalf("expected empty log channel to fall back, got %q", got.LogChannel)
	}
}

func TestWarningsLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	for i, caseID := range []int{1111, 2222, 3333} {
		count, err := store.AppendWarning(ctx, Warning{GuildID: "g1", UserID: "u1", CaseID: caseID, Reason: "r", Moderator: "mod", CreatedAt: now})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if count != i+1 {
			t.Fatalf("expected count %d, got %d", i+1, count)
		}
	}
	if _, err := store.AppendWarning(ctx, Warning{GuildID: "g2", UserID: "u1", CaseID: 4444, Reason: "r", Moderator: "mod", CreatedAt: now}); err != nil {
		t.Fatalf("append other guild: %v", err)
	}

	removed, err := store.DeleteWarning(ctx, "g1", "u1", 9999)
	if err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if removed {
		t.Fatalf("expected missing case to report false")
	}

	removed, err = store.DeleteWarning(ctx, "g1", "u1", 2222)
	if err != nil || !removed {
		t.Fatalf("expected delete, got %v %v", removed, err)
	}

	list, err := store.ListWarnings(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].CaseID != 1111 || list[1].CaseID != 3333 {
		t.Fatalf("unexpected list: %+v", list)
	}
	if !list[0].CreatedAt.Equal(now) {
		t.Fatalf("expected created_at %v, got %v", now, list[0].CreatedAt)
	}

	cleared, err := store.ClearWarnings(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared != 2 {
		t.Fatalf("expected 2 cleared, got %d", cleared)
	}
	other, _ := store.ListWarnings(ctx, "g2", "u1")
	if len(other) != 1 {
		t.Fatalf("expected other guild untouched, got %d", len(other))
	}
}

func TestJailRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	release := time.Unix(1700000600, 0)

	if err := store.SaveJail(ctx, JailRecord{GuildID: "g1", UserID: "u1", RoleID: "jr", ReleaseAt: release}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveJail(ctx, JailRecord{GuildID: "g1", UserID: "u1", RoleID: "jr", Reason: "again", ReleaseAt: release.Add(time.Minute)}); err != nil {
		t.Fatalf("resave: %v", err)
	}
	records, err := store.ListJails(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Reason != "again" {
		t.Fatalf("unexpected records: %+v", records)
	}
	if err := store.DeleteJail(ctx, "g1", "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	records, _ = store.ListJails(ctx)
	if len(records) != 0 {
		t.Fatalf("expected empty, got %d", len(records))
	}
}

func TestReviveSettings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetReviveSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Enabled || got.GuildID != "g1" {
		t.Fatalf("unexpected default: %+v", got)
	}
	if err := store.UpsertReviveSettings(ctx, ReviveSettings{GuildID: "g1", RoleID: "r", ChannelID: "c", Enabled: true, IntervalText: "1h"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	enabled, err := store.ListEnabledRevive(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(enabled) != 1 || enabled[0].IntervalText != "1h" {
		t.Fatalf("unexpected enabled list: %+v", enabled)
	}
}

func TestImportLegacy(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("warnings.json", `{"g1": {"u1": [{"case_id": 1234, "reason": "spam", "moderator": "mod#0001", "time": "2024-05-01T10:00:00.123456"}]}}`)
	write("afk.json", `{"u2": {"reason": "lunch", "time": "2024-05-01T10:00:00"}}`)
	write("timezones.json", `not json`)

	report, err := store.ImportLegacy(ctx, dir)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Warnings != 1 || report.AFK != 1 || report.Timezones != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	report, err = store.ImportLegacy(ctx, dir)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if report.Warnings != 0 || report.AFK != 0 {
		t.Fatalf("expected idempotent import, got %+v", report)
	}

	list, _ := store.ListWarnings(ctx, "g1", "u1")
	if len(list) != 1 || list[0].CaseID != 1234 {
		t.Fatalf("unexpected warnings: %+v", list)
	}
	if list[0].CreatedAt.Year() != 2024 {
		t.Fatalf("expected legacy timestamp, got %v", list[0].CreatedAt)
	}
}

func TestRebindPostgres(t *testing.T) {
	store := &Store{driver: DriverPostgres}
	got := store.rebind("SELECT * FROM t WHERE a = ? AND b = ?")
	if got != "SELECT * FROM t WHERE a = $1 AND b = $2" {
		t.Fatalf("unexpected rebind: %s", got)
	}
}
