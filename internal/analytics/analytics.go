package analytics

import (
	"context"
	"sort"
	"time"

	"warden/internal/storage"
)

type Store interface {
	ListModActions(ctx context.Context, guildID string, since time.Time) ([]storage.ModAction, error)
}

type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

type Report struct {
	GuildID      string         `json:"guild_id"`
	Since        time.Time      `json:"since"`
	Total        int            `json:"total"`
	ByAction     map[string]int `json:"by_action"`
	ByModerator  map[string]int `json:"by_moderator"`
	TopModerator string         `json:"top_moderator,omitempty"`
}

// Actions returns the report's action names ordered by count, then name.
func (r Report) Actions() []string {
	names := make([]string, 0, len(r.ByAction))
	for name := range r.ByAction {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if r.ByAction[names[i]] != r.ByAction[names[j]] {
			return r.ByAction[names[i]] > r.ByAction[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	actions, err := s.store.ListModActions(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		GuildID:     guildID,
		Since:       since,
		ByAction:    make(map[string]int),
		ByModerator: make(map[string]int),
	}
	for _, action := range actions {
		report.Total++
		report.ByAction[action.Action]++
		if action.ModeratorID != "" {
			report.ByModerator[action.ModeratorID]++
		}
	}
	best := 0
	for id, n := range report.ByModerator {
		if n > best || (n == best && id < report.TopModerator) {
			best, report.TopModerator = n, id
		}
	}
	return report, nil
}
