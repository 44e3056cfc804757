// Package counter keeps the small diagnostic tallies of the site: feedback
// votes keyed by client address and stats-page views keyed by user.
package counter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/config"
)

// Vote codes.
const (
	VoteGood = 1
	VoteBad  = 2
	VoteOK   = 3
	VoteSide = 4
)

// Store records votes and views.
type Store interface {
	// Vote stores the first vote of a key unconditionally; later votes only
	// replace it with VoteGood or VoteBad.
	Vote(ctx context.Context, key string, code int) error
	Votes(ctx context.Context) (map[string]int, error)
	// View starts a "name;millis;1" entry for a new user and appends "+1"
	// for each further view.
	View(ctx context.Context, uid, name string, at time.Time) error
	Views(ctx context.Context) (map[string]string, error)
}

// Module provides the counter store to the Fx graph.
var Module = fx.Provide(NewStore)

// NewStore initialises the configured counter store (memory or redis).
func NewStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Counters.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return newRedisStore(lc, cfg.Cache.Redis, logger), nil
	default:
		return nil, fmt.Errorf("unsupported counter driver: %s", cfg.Counters.Driver)
	}
}

// Tally is the per-code vote summary.
type Tally struct {
	Good, Bad, OK, Side, Hack int
}

// Summarize counts votes by code. Codes outside 1..4 are counted as Hack.
func Summarize(votes map[string]int) Tally {
	var t Tally
	for _, code := range votes {
		switch code {
		case VoteGood:
			t.Good++
		case VoteBad:
			t.Bad++
		case VoteOK:
			t.OK++
		case VoteSide:
			t.Side++
		default:
			t.Hack++
		}
	}
	return t
}

func (t Tally) String() string {
	return fmt.Sprintf("Good: %d Bad: %d OK: %d Side: %d HACK: %d", t.Good, t.Bad, t.OK, t.Side, t.Hack)
}

// FormatVotes renders votes as "[key=code, ...]" sorted by key.
func FormatVotes(votes map[string]int) string {
	keys := make([]string, 0, len(votes))
	for k := range votes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, votes[k]))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// FormatViews renders view entries as "[entry, ...]" sorted by user.
func FormatViews(views map[string]string) string {
	keys := make([]string, 0, len(views))
	for k := range views {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, views[k])
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func firstView(name string, at time.Time) string {
	return fmt.Sprintf("%s;%d;1", name, at.UnixMilli())
}

func replacesVote(code int) bool {
	return code == VoteGood || code == VoteBad
}

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	votes map[string]int
	views map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		votes: make(map[string]int),
		views: make(map[string]string),
	}
}

func (m *MemoryStore) Vote(_ context.Context, key string, code int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.votes[key]; ok && !replacesVote(code) {
		return nil
	}
	m.votes[key] = code
	return nil
}

func (m *MemoryStore) Votes(context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int, len(m.votes))
	for k, v := range m.votes {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) View(_ context.Context, uid, name string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.views[uid]; ok {
		m.views[uid] = entry + "+1"
		return nil
	}
	m.views[uid] = firstView(name, at)
	return nil
}

func (m *MemoryStore) Views(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.views))
	for k, v := range m.views {
		out[k] = v
	}
	return out, nil
}
