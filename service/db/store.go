package db

import (
	"context"
	"errors"
	"time"

	"github.com/brojonat/caesarbot/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store provides the row-store operations behind the realtime adapter.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If metrics is nil, no metrics will be recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UserStats is a wallet's aggregate activity row.
type UserStats struct {
	WalletAddress     string          `json:"wallet_address"`
	TotalTrades       int64           `json:"total_trades"`
	TotalVolume       decimal.Decimal `json:"total_volume"`
	TotalPnL          decimal.Decimal `json:"total_pnl"`
	TokensLaunched    int64           `json:"tokens_launched"`
	MissionsCompleted int64           `json:"missions_completed"`
	XP                int64           `json:"xp"`
	RankTier          string          `json:"rank_tier"`
	LastActivity      time.Time       `json:"last_activity"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// UpsertUserStatsParams holds the fields to write. Nil fields keep their
// stored value (or the column default on insert).
type UpsertUserStatsParams struct {
	WalletAddress     string           `json:"-" validate:"required,solana_pubkey"`
	TotalTrades       *int64           `json:"total_trades,omitempty" validate:"omitempty,min=0"`
	TotalVolume       *decimal.Decimal `json:"total_volume,omitempty"`
	TotalPnL          *decimal.Decimal `json:"total_pnl,omitempty"`
	TokensLaunched    *int64           `json:"tokens_launched,omitempty" validate:"omitempty,min=0"`
	MissionsCompleted *int64           `json:"missions_completed,omitempty" validate:"omitempty,min=0"`
	XP                *int64           `json:"xp,omitempty" validate:"omitempty,min=0"`
	RankTier          *string          `json:"rank_tier,omitempty" validate:"omitempty,max=32"`
	LastActivity      time.Time        `json:"-"`
}

// MissionProgress is a wallet's progress on one mission.
type MissionProgress struct {
	WalletAddress string    `json:"wallet_address"`
	MissionID     string    `json:"mission_id"`
	Progress      int64     `json:"progress"`
	Target        int64     `json:"target"`
	Completed     bool      `json:"completed"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UpsertMissionProgressParams sets a mission's progress. Completed is derived
// from progress >= target.
type UpsertMissionProgressParams struct {
	WalletAddress string `json:"-" validate:"required,solana_pubkey"`
	MissionID     string `json:"mission_id" validate:"required,max=64"`
	Progress      int64  `json:"progress" validate:"min=0"`
	Target        int64  `json:"target" validate:"gt=0"`
}

const userStatsColumns = `wallet_address, total_trades, total_volume, total_pnl, tokens_launched,
	missions_completed, xp, rank_tier, last_activity, created_at, updated_at`

// GetUserStats returns the stats row for wallet. A missing row is reported as
// pgx.ErrNoRows.
func (s *Store) GetUserStats(ctx context.Context, wallet string) (*UserStats, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `SELECT `+userStatsColumns+` FROM user_stats WHERE wallet_address = $1`, wallet)
	stats, err := scanUserStats(row)
	s.record("select", "user_stats", start, err)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// UpsertUserStats inserts or merges a stats row and reports whether the row
// was newly inserted.
func (s *Store) UpsertUserStats(ctx context.Context, params UpsertUserStatsParams) (*UserStats, bool, error) {
	const query = `
		INSERT INTO user_stats (
			wallet_address, total_trades, total_volume, total_pnl, tokens_launched,
			missions_completed, xp, rank_tier, last_activity
		) VALUES (
			$1, COALESCE($2::bigint, 0), COALESCE($3::numeric, 0), COALESCE($4::numeric, 0),
			COALESCE($5::bigint, 0), COALESCE($6::bigint, 0), COALESCE($7::bigint, 0),
			COALESCE($8::text, 'bronze'), $9
		)
		ON CONFLICT (wallet_address) DO UPDATE SET
			total_trades       = COALESCE($2::bigint, user_stats.total_trades),
			total_volume       = COALESCE($3::numeric, user_stats.total_volume),
			total_pnl          = COALESCE($4::numeric, user_stats.total_pnl),
			tokens_launched    = COALESCE($5::bigint, user_stats.tokens_launched),
			missions_completed = COALESCE($6::bigint, user_stats.missions_completed),
			xp                 = COALESCE($7::bigint, user_stats.xp),
			rank_tier          = COALESCE($8::text, user_stats.rank_tier),
			last_activity      = $9,
			updated_at         = now()
		RETURNING ` + userStatsColumns + `, (xmax = 0) AS inserted`

	lastActivity := params.LastActivity
	if lastActivity.IsZero() {
		lastActivity = time.Now()
	}

	start := time.Now()
	row := s.pool.QueryRow(ctx, query,
		params.WalletAddress,
		params.TotalTrades,
		params.TotalVolume,
		params.TotalPnL,
		params.TokensLaunched,
		params.MissionsCompleted,
		params.XP,
		params.RankTier,
		lastActivity,
	)

	var u UserStats
	var inserted bool
	err := row.Scan(
		&u.WalletAddress, &u.TotalTrades, &u.TotalVolume, &u.TotalPnL, &u.TokensLaunched,
		&u.MissionsCompleted, &u.XP, &u.RankTier, &u.LastActivity, &u.CreatedAt, &u.UpdatedAt,
		&inserted,
	)
	s.record("upsert", "user_stats", start, err)
	if err != nil {
		return nil, false, err
	}
	return &u, inserted, nil
}

// ListTopUserStats returns up to limit rows ordered by xp descending. Ties keep
// whatever order Postgres returns.
func (s *Store) ListTopUserStats(ctx context.Context, limit int32) ([]*UserStats, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, `SELECT `+userStatsColumns+` FROM user_stats ORDER BY xp DESC LIMIT $1`, limit)
	if err != nil {
		s.record("list", "user_stats", start, err)
		return nil, err
	}
	defer rows.Close()

	var out []*UserStats
	for rows.Next() {
		u, err := scanUserStats(rows)
		if err != nil {
			s.record("list", "user_stats", start, err)
			return nil, err
		}
		out = append(out, u)
	}
	err = rows.Err()
	s.record("list", "user_stats", start, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListMissionProgress returns all mission rows for wallet ordered by mission id.
func (s *Store) ListMissionProgress(ctx context.Context, wallet string) ([]*MissionProgress, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, `
		SELECT wallet_address, mission_id, progress, target, completed, updated_at
		FROM mission_progress
		WHERE wallet_address = $1
		ORDER BY mission_id`, wallet)
	if err != nil {
		s.record("list", "mission_progress", start, err)
		return nil, err
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*MissionProgress, error) {
		var m MissionProgress
		err := row.Scan(&m.WalletAddress, &m.MissionID, &m.Progress, &m.Target, &m.Completed, &m.UpdatedAt)
		return &m, err
	})
	s.record("list", "mission_progress", start, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertMissionProgress writes a mission row, marking it completed once
// progress reaches target.
func (s *Store) UpsertMissionProgress(ctx context.Context, params UpsertMissionProgressParams) (*MissionProgress, bool, error) {
	const query = `
		INSERT INTO mission_progress (wallet_address, mission_id, progress, target, completed)
		VALUES ($1, $2, $3::bigint, $4::bigint, $3::bigint >= $4::bigint)
		ON CONFLICT (wallet_address, mission_id) DO UPDATE SET
			progress   = EXCLUDED.progress,
			target     = EXCLUDED.target,
			completed  = EXCLUDED.completed,
			updated_at = now()
		RETURNING wallet_address, mission_id, progress, target, completed, updated_at, (xmax = 0) AS inserted`

	start := time.Now()
	var m MissionProgress
	var inserted bool
	err := s.pool.QueryRow(ctx, query, params.WalletAddress, params.MissionID, params.Progress, params.Target).
		Scan(&m.WalletAddress, &m.MissionID, &m.Progress, &m.Target, &m.Completed, &m.UpdatedAt, &inserted)
	s.record("upsert", "mission_progress", start, err)
	if err != nil {
		return nil, false, err
	}
	return &m, inserted, nil
}

func scanUserStats(row pgx.Row) (*UserStats, error) {
	var u UserStats
	err := row.Scan(
		&u.WalletAddress, &u.TotalTrades, &u.TotalVolume, &u.TotalPnL, &u.TokensLaunched,
		&u.MissionsCompleted, &u.XP, &u.RankTier, &u.LastActivity, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) record(op, table string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
	}
	s.metrics.RecordDBQuery(op, table, time.Since(start).Seconds(), err)
}
