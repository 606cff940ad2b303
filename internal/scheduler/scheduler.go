// Package scheduler drives the periodic fetch→diff→notify cycle.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"statusbot/internal/filter"
	"statusbot/internal/model"
	"statusbot/internal/status"
	"statusbot/internal/storage"
)

// Update is one notification batch delivered to a destination, already
// filtered by that destination's rules.
type Update struct {
	Added       []model.Issue
	Removed     []model.Issue
	UpdatedTime string
}

// Sender delivers an update to a destination channel.
type Sender interface {
	SendUpdate(channelID string, u Update) error
}

// PresenceUpdater reflects overall service health on the bot account.
type PresenceUpdater interface {
	UpdatePresence(issueCount int) error
}

// Fetcher produces status snapshots, from cache or the network.
type Fetcher interface {
	Fetch(ctx context.Context, force bool) (*status.Snapshot, error)
	SetCacheAge(d time.Duration)
}

// Scheduler polls the status endpoint and notifies destinations about
// changes. It owns the "last known issue set" across ticks; ticks run
// strictly one at a time.
type Scheduler struct {
	store    storage.Storage
	fetcher  Fetcher
	sender   Sender
	presence PresenceUpdater
	log      *slog.Logger

	lastKnown status.IssueSet
	seeded    bool
}

// New creates a Scheduler.
func New(store storage.Storage, f Fetcher, sender Sender, presence PresenceUpdater, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		fetcher:  f,
		sender:   sender,
		presence: presence,
		log:      log,
	}
}

// Run blocks until ctx is cancelled. It waits for the host readiness
// signal, seeds the baseline with one fetch, then polls. The interval
// is re-read from settings before arming each tick, so changes take
// effect on the next tick without restarting the loop.
func (s *Scheduler) Run(ctx context.Context, ready <-chan struct{}) {
	select {
	case <-ctx.Done():
		return
	case <-ready:
	}

	s.seed(ctx)

	for {
		timer := time.NewTimer(s.interval(ctx))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.tick(ctx)
		}
	}
}

// seed performs the first fetch and records the baseline without
// notifying anyone: issues that already existed at startup are not
// news. When the seed fetch fails, the first successful tick seeds
// instead.
func (s *Scheduler) seed(ctx context.Context) {
	s.applyCacheAge(ctx)

	snap, err := s.fetcher.Fetch(ctx, false)
	if err != nil {
		s.log.Warn("seed fetch failed", "error", err)
		return
	}
	s.lastKnown = snap.Issues()
	s.seeded = true
	s.log.Info("seeded status baseline", "issues", len(s.lastKnown))
}

func (s *Scheduler) tick(ctx context.Context) {
	s.applyCacheAge(ctx)

	snap, err := s.fetcher.Fetch(ctx, false)
	if err != nil {
		s.log.Warn("status fetch failed", "error", err)
		return
	}

	current := snap.Issues()
	if !s.seeded {
		s.lastKnown = current
		s.seeded = true
		s.log.Info("seeded status baseline", "issues", len(current))
		return
	}

	delta := status.Diff(s.lastKnown, current)
	if !delta.Empty() {
		s.log.Info("status changed", "added", len(delta.Added), "removed", len(delta.Removed))
		s.notifyAll(ctx, delta, snap)
		s.updatePresence(ctx, len(current))
	}
	s.lastKnown = current
}

// notifyAll fans the delta out to every destination concurrently. Each
// destination gets its own error boundary: one failed send is logged
// and never delays or cancels delivery to the others.
func (s *Scheduler) notifyAll(ctx context.Context, delta status.Delta, snap *status.Snapshot) {
	dests, err := s.store.ListAllDestinations(ctx)
	if err != nil {
		s.log.Error("list destinations", "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, dest := range dests {
		rules, err := s.store.ListFilters(ctx, dest.ID)
		if err != nil {
			s.log.Error("list filters", "destination_id", dest.ID, "error", err)
			continue
		}

		added := filter.FilterIssues(delta.Added, rules, s.log)
		removed := filter.FilterIssues(delta.Removed, rules, s.log)
		if len(added) == 0 && len(removed) == 0 {
			continue
		}

		u := Update{
			Added:       added.Sorted(),
			Removed:     removed.Sorted(),
			UpdatedTime: snap.UpdatedTime(),
		}
		wg.Add(1)
		go func(dest model.Destination) {
			defer wg.Done()
			if err := s.sender.SendUpdate(dest.ChannelID, u); err != nil {
				s.log.Error("send update", "channel_id", dest.ChannelID, "error", err)
			}
		}(dest)
	}
	wg.Wait()
}

func (s *Scheduler) updatePresence(ctx context.Context, issueCount int) {
	enabled, err := storage.BoolSetting(ctx, s.store, model.SettingUpdatePresence, false)
	if err != nil {
		s.log.Error("read presence setting", "error", err)
		return
	}
	if !enabled || s.presence == nil {
		return
	}
	if err := s.presence.UpdatePresence(issueCount); err != nil {
		s.log.Error("update presence", "error", err)
	}
}

func (s *Scheduler) interval(ctx context.Context) time.Duration {
	secs, err := storage.IntSetting(ctx, s.store, model.SettingCheckInterval, model.DefaultCheckInterval)
	if err != nil || secs < model.MinIntervalSeconds {
		if err != nil {
			s.log.Error("read check interval", "error", err)
		}
		secs = model.DefaultCheckInterval
	}
	return time.Duration(secs) * time.Second
}

func (s *Scheduler) applyCacheAge(ctx context.Context) {
	secs, err := storage.IntSetting(ctx, s.store, model.SettingCacheAge, model.DefaultCacheAge)
	if err != nil {
		s.log.Error("read cache age", "error", err)
		return
	}
	s.fetcher.SetCacheAge(time.Duration(secs) * time.Second)
}
