// Package settings holds per-guild moderation configuration: log channel,
// jail channel and role, purge log channel and appeal link.
package settings

import (
	"context"

	"go.uber.org/zap"

	"warden/internal/storage"
	"warden/internal/utils"
)

type Store interface {
	GetGuildSettings(ctx context.Context, guildID string, defaults storage.GuildSettings) (storage.GuildSettings, error)
	UpsertGuildSettings(ctx context.Context, settings storage.GuildSettings) error
}

type Service struct {
	store      Store
	logger     *zap.Logger
	locks      *utils.KeyedMutex
	logChannel string
}

// New returns a service falling back to defaultLogChannel for guilds that
// never ran logset.
func New(store Store, logger *zap.Logger, defaultLogChannel string) *Service {
	return &Service{
		store:      store,
		logger:     logger,
		locks:      utils.NewKeyedMutex(),
		logChannel: defaultLogChannel,
	}
}

func (s *Service) Get(ctx context.Context, guildID string) storage.GuildSettings {
	defaults := storage.GuildSettings{GuildID: guildID, LogChannel: s.logChannel}
	settings, err := s.store.GetGuildSettings(ctx, guildID, defaults)
	if err != nil {
		s.logger.Warn("guild settings fallback", zap.String("guild_id", guildID), zap.Error(err))
		return defaults
	}
	return settings
}

// Update applies fn to the guild's stored settings under the guild lock.
func (s *Service) Update(ctx context.Context, guildID string, fn func(*storage.GuildSettings)) (storage.GuildSettings, error) {
	unlock := s.locks.Lock(guildID)
	defer unlock()

	current, err := s.store.GetGuildSettings(ctx, guildID, storage.GuildSettings{GuildID: guildID})
	if err != nil {
		return storage.GuildSettings{}, err
	}
	fn(&current)
	current.GuildID = guildID
	if err := s.store.UpsertGuildSettings(ctx, current); err != nil {
		return storage.GuildSettings{}, err
	}
	return current, nil
}
