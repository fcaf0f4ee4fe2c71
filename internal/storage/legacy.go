package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

type LegacyReport struct {
	Warnings  int
	AFK       int
	Timezones int
}

type legacyWarning struct {
	CaseID    int    `json:"case_id"`
	Reason    string `json:"reason"`
	Moderator string `json:"moderator"`
	Time      string `json:"time"`
}

type legacyAFK struct {
	Reason string `json:"reason"`
	Time   string `json:"time"`
}

var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ImportLegacy loads the flat JSON files written by the previous bot. Guilds that already hold
// warnings and members that already have a row are skipped.
func (s *Store) ImportLegacy(ctx context.Context, dir string) (LegacyReport, error) {
	var report LegacyReport
	if dir == "" {
		return report, nil
	}

	var warnings map[string]map[string][]legacyWarning
	if err := readLegacyFile(filepath.Join(dir, "warnings.json"), &warnings); err != nil {
		return report, err
	}
	for guildID, members := range warnings {
		exists, err := s.HasWarnings(ctx, guildID)
		if err != nil {
			return report, err
		}
		if exists {
			continue
		}
		for userID, list := range members {
			for _, item := range list {
				_, err := s.AppendWarning(ctx, Warning{
					GuildID:   guildID,
					UserID:    userID,
					CaseID:    item.CaseID,
					Reason:    item.Reason,
					Moderator: item.Moderator,
					CreatedAt: parseLegacyTime(item.Time),
				})
				if err != nil {
					return report, err
				}
				report.Warnings++
			}
		}
	}

	var afk map[string]legacyAFK
	if err := readLegacyFile(filepath.Join(dir, "afk.json"), &afk); err != nil {
		return report, err
	}
	for userID, item := range afk {
		_, found, err := s.GetAFK(ctx, userID)
		if err != nil {
			return report, err
		}
		if found {
			continue
		}
		if err := s.SetAFK(ctx, AFKStatus{UserID: userID, Reason: item.Reason, Since: parseLegacyTime(item.Time)}); err != nil {
			return report, err
		}
		report.AFK++
	}

	var zones map[string]string
	if err := readLegacyFile(filepath.Join(dir, "timezones.json"), &zones); err != nil {
		return report, err
	}
	for userID, zone := range zones {
		current, err := s.GetTimezone(ctx, userID)
		if err != nil {
			return report, err
		}
		if current != "" || strings.TrimSpace(zone) == "" {
			continue
		}
		if err := s.SetTimezone(ctx, userID, zone); err != nil {
			return report, err
		}
		report.Timezones++
	}

	return report, nil
}

func readLegacyFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	// unreadable files count as empty
	_ = json.Unmarshal(data, out)
	return nil
}

func parseLegacyTime(value string) time.Time {
	for _, layout := range legacyTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return parsed
		}
	}
	return time.Now()
}
