// Package realtime adapts the row store and its change stream to the gateway
// envelope. It owns the registry of named change subscriptions.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/brojonat/caesarbot/service/db"
	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/metrics"
	"github.com/brojonat/caesarbot/service/nats"
	"github.com/jackc/pgx/v5"
)

// Tables with change streams.
const (
	TableUserStats       = "user_stats"
	TableMissionProgress = "mission_progress"
	TableWalletSnapshots = "wallet_snapshots"
)

// DefaultLeaderboardLimit is used when GetLeaderboard is called without a limit.
const DefaultLeaderboardLimit = 100

// Store is the row-store surface used by the Service.
type Store interface {
	GetUserStats(ctx context.Context, wallet string) (*db.UserStats, error)
	UpsertUserStats(ctx context.Context, params db.UpsertUserStatsParams) (*db.UserStats, bool, error)
	ListTopUserStats(ctx context.Context, limit int32) ([]*db.UserStats, error)
	ListMissionProgress(ctx context.Context, wallet string) ([]*db.MissionProgress, error)
	UpsertMissionProgress(ctx context.Context, params db.UpsertMissionProgressParams) (*db.MissionProgress, bool, error)
}

// LeaderboardEntry is a stats row with its 1-based position.
type LeaderboardEntry struct {
	Rank int `json:"rank"`
	*db.UserStats
}

// Handle is a live named subscription.
type Handle struct {
	Name   string
	Filter Filter

	svc *Service
	sub nats.Subscription
}

// Unsubscribe removes this handle if it is still the live one for its name.
func (h *Handle) Unsubscribe() error {
	return h.svc.unsubscribeHandle(h)
}

// Service serves user stats and mission rows and manages change
// subscriptions. It is safe for concurrent use.
type Service struct {
	store    Store
	bus      nats.Bus
	provider *gateway.Provider
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewService creates a Service. If metrics is nil, no metrics will be recorded.
func NewService(store Store, bus nats.Bus, m *metrics.Metrics, logger *slog.Logger) *Service {
	provider := gateway.NewProvider("realtime", m, logger)
	return &Service{
		store:    store,
		bus:      bus,
		provider: provider,
		metrics:  m,
		logger:   provider.Logger(),
		now:      time.Now,
		handles:  make(map[string]*Handle),
	}
}

// GetUserStats returns the wallet's stats. A wallet with no row yields a
// successful envelope with nil data.
func (s *Service) GetUserStats(ctx context.Context, wallet string) gateway.Envelope[*db.UserStats] {
	return gateway.Invoke(ctx, s.provider, "get_user_stats", func(ctx context.Context) (*db.UserStats, error) {
		stats, err := s.store.GetUserStats(ctx, wallet)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return stats, err
	})
}

// UpsertUserStats merges params into the wallet's row, stamping last_activity
// with the call time, and publishes the resulting change event.
func (s *Service) UpsertUserStats(ctx context.Context, params db.UpsertUserStatsParams) gateway.Envelope[*db.UserStats] {
	return gateway.Invoke(ctx, s.provider, "upsert_user_stats", func(ctx context.Context) (*db.UserStats, error) {
		if err := gateway.Validate(params); err != nil {
			return nil, err
		}
		params.LastActivity = s.now()

		stats, inserted, err := s.store.UpsertUserStats(ctx, params)
		if err != nil {
			return nil, err
		}
		s.publish(ctx, TableUserStats, inserted, stats.WalletAddress, stats)
		return stats, nil
	})
}

// GetLeaderboard returns the top rows by xp. Rank is position + 1 in the
// store's order; ties are not broken.
func (s *Service) GetLeaderboard(ctx context.Context, limit int) gateway.Envelope[[]LeaderboardEntry] {
	return gateway.Invoke(ctx, s.provider, "get_leaderboard", func(ctx context.Context) ([]LeaderboardEntry, error) {
		if limit <= 0 {
			limit = DefaultLeaderboardLimit
		}
		rows, err := s.store.ListTopUserStats(ctx, int32(limit))
		if err != nil {
			return nil, err
		}
		entries := make([]LeaderboardEntry, len(rows))
		for i, row := range rows {
			entries[i] = LeaderboardEntry{Rank: i + 1, UserStats: row}
		}
		return entries, nil
	})
}

// GetMissionProgress returns every mission row for the wallet.
func (s *Service) GetMissionProgress(ctx context.Context, wallet string) gateway.Envelope[[]*db.MissionProgress] {
	return gateway.Invoke(ctx, s.provider, "get_mission_progress", func(ctx context.Context) ([]*db.MissionProgress, error) {
		rows, err := s.store.ListMissionProgress(ctx, wallet)
		if err != nil {
			return nil, err
		}
		if rows == nil {
			rows = []*db.MissionProgress{}
		}
		return rows, nil
	})
}

// UpsertMissionProgress writes one mission row and publishes the change.
func (s *Service) UpsertMissionProgress(ctx context.Context, params db.UpsertMissionProgressParams) gateway.Envelope[*db.MissionProgress] {
	return gateway.Invoke(ctx, s.provider, "upsert_mission_progress", func(ctx context.Context) (*db.MissionProgress, error) {
		if err := gateway.Validate(params); err != nil {
			return nil, err
		}
		row, inserted, err := s.store.UpsertMissionProgress(ctx, params)
		if err != nil {
			return nil, err
		}
		s.publish(ctx, TableMissionProgress, inserted, row.WalletAddress, row)
		return row, nil
	})
}

// GetMissions would return the mission catalog, which has no backing data.
func (s *Service) GetMissions(ctx context.Context) gateway.Envelope[[]any] {
	return gateway.NotImplemented[[]any]("get_missions")
}

// PublishSnapshot publishes a wallet snapshot to the wallet_snapshots stream.
func (s *Service) PublishSnapshot(ctx context.Context, wallet string, snapshot any) error {
	event, err := nats.NewChangeEvent(TableWalletSnapshots, nats.ChangeInsert, wallet, snapshot)
	if err != nil {
		return fmt.Errorf("failed to build snapshot event: %w", err)
	}
	return s.bus.PublishChange(ctx, event)
}

// publish emits a change event. A failed publish is logged; the write it
// describes has already committed.
func (s *Service) publish(ctx context.Context, table string, inserted bool, wallet string, record any) {
	changeType := nats.ChangeUpdate
	if inserted {
		changeType = nats.ChangeInsert
	}
	event, err := nats.NewChangeEvent(table, changeType, wallet, record)
	if err == nil {
		err = s.bus.PublishChange(ctx, event)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to publish change event",
			"table", table,
			"wallet", wallet,
			"error", err,
		)
	}
}

// Subscribe registers callback under name for events passing filter. An
// existing handle with the same name is torn down first, so at most one handle
// per name is live. If that teardown fails the old handle is kept and the new
// subscription is not made.
func (s *Service) Subscribe(name string, filter Filter, callback func(*nats.ChangeEvent)) (*Handle, error) {
	if name == "" {
		return nil, errors.New("subscription name is required")
	}
	if callback == nil {
		return nil, errors.New("subscription callback is required")
	}
	m, err := compileFilter(filter)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.handles[name]; ok {
		if err := s.removeLocked(old); err != nil {
			return nil, fmt.Errorf("failed to replace subscription: %w", err)
		}
	}

	table := filter.Table
	sub, err := s.bus.SubscribeChanges(filter.subject(), func(event *nats.ChangeEvent) {
		if !m.match(event) {
			s.recordEvent(table, "filtered")
			return
		}
		s.recordEvent(table, "delivered")
		callback(event)
	})
	if err != nil {
		return nil, err
	}

	h := &Handle{Name: name, Filter: filter, svc: s, sub: sub}
	s.handles[name] = h
	if s.metrics != nil {
		s.metrics.RecordSubscriptionChange(table, 1)
	}
	s.logger.Debug("subscribed", "channel", name, "table", table)
	return h, nil
}

// Unsubscribe tears down the handle registered under name, if any.
func (s *Service) Unsubscribe(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[name]
	if !ok {
		return nil
	}
	return s.removeLocked(h)
}

// UnsubscribeAll tears down every handle.
func (s *Service) UnsubscribeAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, h := range s.handles {
		if err := s.removeLocked(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Channels returns the names of the live handles, sorted.
func (s *Service) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.handles))
	for name := range s.handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Service) unsubscribeHandle(h *Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handles[h.Name] != h {
		return nil
	}
	return s.removeLocked(h)
}

// removeLocked unsubscribes h and drops it from the registry. A handle whose
// unsubscribe fails may still be receiving events, so it stays registered.
func (s *Service) removeLocked(h *Handle) error {
	if err := h.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe %s: %w", h.Name, err)
	}
	delete(s.handles, h.Name)
	if s.metrics != nil {
		s.metrics.RecordSubscriptionChange(h.Filter.Table, -1)
	}
	return nil
}

func (s *Service) recordEvent(table, result string) {
	if s.metrics != nil {
		s.metrics.RecordChangeEvent(table, result)
	}
}
