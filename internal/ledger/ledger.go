// Package ledger is the per-guild warning record store.
package ledger

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"warden/internal/clock"
	"warden/internal/storage"
	"warden/internal/utils"
)

var ErrCaseNotFound = errors.New("case not found")

const (
	minCaseID = 1000
	maxCaseID = 9999
	// attempts before accepting a duplicate case id
	caseAttempts = 20
)

type Store interface {
	ListWarnings(ctx context.Context, guildID, userID string) ([]storage.Warning, error)
	AppendWarning(ctx context.Context, w storage.Warning) (int, error)
	ClearWarnings(ctx context.Context, guildID, userID string) (int, error)
	DeleteWarning(ctx context.Context, guildID, userID string, caseID int) (bool, error)
}

type Entry struct {
	CaseID int
	Count  int
}

// Ledger serializes mutations per guild so overlapping commands never lose
// each other's records.
type Ledger struct {
	store Store
	locks *utils.KeyedMutex
	clock clock.Clock

	randMu sync.Mutex
	rand   *rand.Rand
}

func New(store Store) *Ledger {
	return &Ledger{
		store: store,
		locks: utils.NewKeyedMutex(),
		clock: clock.Real(),
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (l *Ledger) WithClock(c clock.Clock) {
	l.clock = c
}

func (l *Ledger) WithSeed(seed int64) {
	l.randMu.Lock()
	defer l.randMu.Unlock()
	l.rand = rand.New(rand.NewSource(seed))
}

// Add appends a warning with a fresh 4-digit case id and returns it with the
// member's running total.
func (l *Ledger) Add(ctx context.Context, guildID, userID, reason, moderator string) (Entry, error) {
	unlock := l.locks.Lock(guildID)
	defer unlock()

	existing, err := l.store.ListWarnings(ctx, guildID, userID)
	if err != nil {
		return Entry{}, err
	}
	taken := make(map[int]struct{}, len(existing))
	for _, w := range existing {
		taken[w.CaseID] = struct{}{}
	}

	caseID := l.nextCaseID()
	for i := 1; i < caseAttempts; i++ {
		if _, dup := taken[caseID]; !dup {
			break
		}
		caseID = l.nextCaseID()
	}

	count, err := l.store.AppendWarning(ctx, storage.Warning{
		GuildID:   guildID,
		UserID:    userID,
		CaseID:    caseID,
		Reason:    reason,
		Moderator: moderator,
		CreatedAt: l.clock.Now(),
	})
	if err != nil {
		return Entry{}, err
	}
	return Entry{CaseID: caseID, Count: count}, nil
}

func (l *Ledger) List(ctx context.Context, guildID, userID string) ([]storage.Warning, error) {
	return l.store.ListWarnings(ctx, guildID, userID)
}

func (l *Ledger) ClearAll(ctx context.Context, guildID, userID string) (int, error) {
	unlock := l.locks.Lock(guildID)
	defer unlock()
	return l.store.ClearWarnings(ctx, guildID, userID)
}

// ClearOne removes a single case. It returns ErrCaseNotFound and leaves the
// list untouched when caseID is unknown.
func (l *Ledger) ClearOne(ctx context.Context, guildID, userID string, caseID int) error {
	unlock := l.locks.Lock(guildID)
	defer unlock()
	removed, err := l.store.DeleteWarning(ctx, guildID, userID, caseID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrCaseNotFound
	}
	return nil
}

func (l *Ledger) nextCaseID() int {
	l.randMu.Lock()
	defer l.randMu.Unlock()
	return minCaseID + l.rand.Intn(maxCaseID-minCaseID+1)
}
