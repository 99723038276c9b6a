// Package memory implements ports.StatsStore in process memory. It is used
// when no database is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/core/ports"
)

const homepageCacheSize = 100

// Store is an in-memory implementation of StatsStore
type Store struct {
	mu           sync.RWMutex
	participants map[string]domain.Participant
	stats        domain.GlobalStats
	homepage     domain.Homepage
	now          func() time.Time
}

var _ ports.StatsStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		participants: make(map[string]domain.Participant),
		homepage: domain.Homepage{
			TopGivers:    []domain.HomepageEntry{},
			TopReceivers: []domain.HomepageEntry{},
		},
		now: time.Now,
	}
}

func (s *Store) AddParticipant(ctx context.Context, p *domain.Participant) error {
	if p == nil || p.Username == "" {
		return fmt.Errorf("participant username is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[p.Username] = *p
	return nil
}

func (s *Store) UpdateGlobalStats(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats domain.GlobalStats
	for _, p := range s.participants {
		if !p.Claimed {
			continue
		}
		stats.NParticipants++
		stats.TransferVolume += p.Giving
	}
	stats.UpdatedAt = s.now().UTC()
	s.stats = stats
	return nil
}

func (s *Store) UpdateHomepageQueries(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.homepage = domain.Homepage{
		TopGivers:    s.top(func(p domain.Participant) int64 { return p.Giving }),
		TopReceivers: s.top(func(p domain.Participant) int64 { return p.Receiving }),
		UpdatedAt:    s.now().UTC(),
	}
	return nil
}

// top must be called with the lock held.
func (s *Store) top(amount func(domain.Participant) int64) []domain.HomepageEntry {
	entries := []domain.HomepageEntry{}
	for _, p := range s.participants {
		if p.Claimed && amount(p) > 0 {
			entries = append(entries, domain.HomepageEntry{Username: p.Username, Amount: amount(p)})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Amount != entries[j].Amount {
			return entries[i].Amount > entries[j].Amount
		}
		return entries[i].Username < entries[j].Username
	})
	if len(entries) > homepageCacheSize {
		entries = entries[:homepageCacheSize]
	}
	return entries
}

// SelfCheck verifies the cached top lists reference known participants.
func (s *Store) SelfCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.participants {
		if p.Giving < 0 || p.Receiving < 0 {
			return fmt.Errorf("self-check: participant %s has a negative amount", p.Username)
		}
	}
	for _, list := range [][]domain.HomepageEntry{s.homepage.TopGivers, s.homepage.TopReceivers} {
		for _, e := range list {
			if _, ok := s.participants[e.Username]; !ok {
				return fmt.Errorf("self-check: homepage lists unknown participant %s", e.Username)
			}
		}
	}
	return nil
}

func (s *Store) GlobalStats(ctx context.Context) (*domain.GlobalStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := s.stats
	return &stats, nil
}

func (s *Store) Homepage(ctx context.Context, limit int) (*domain.Homepage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > homepageCacheSize {
		limit = homepageCacheSize
	}
	hp := &domain.Homepage{
		TopGivers:    head(s.homepage.TopGivers, limit),
		TopReceivers: head(s.homepage.TopReceivers, limit),
		UpdatedAt:    s.homepage.UpdatedAt,
	}
	return hp, nil
}

// head returns a copy of the first n entries.
func head(entries []domain.HomepageEntry, n int) []domain.HomepageEntry {
	if len(entries) < n {
		n = len(entries)
	}
	out := make([]domain.HomepageEntry, n)
	copy(out, entries[:n])
	return out
}

// RemoveParticipant deletes a participant without touching the caches.
func (s *Store) RemoveParticipant(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants, username)
}

func (s *Store) Close() error {
	return nil
}
