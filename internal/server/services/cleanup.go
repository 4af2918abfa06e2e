package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/newsplatform/sessiond/internal/common"
	"github.com/newsplatform/sessiond/internal/logging"
	"github.com/newsplatform/sessiond/internal/server/config"
	"github.com/newsplatform/sessiond/internal/server/repositories/repomanager"
)

// CleanupService keeps the token store healthy over time. It deletes rows
// whose expiry fell behind the retention window and reconciles duplicate
// token values down to a single surviving row.
type CleanupService struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	retention time.Duration
	batchSize int
	logger    logging.Logger
	now       func() time.Time
}

func NewCleanupService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *CleanupService {
	return &CleanupService{
		db:        db,
		repos:     m,
		retention: cfg.RetentionPeriod,
		batchSize: cfg.SweepBatchSize,
		logger:    logger.With("component", "cleanup"),
		now:       time.Now,
	}
}

// SweepExpired deletes access and refresh token rows whose expiry predates
// the retention cutoff, revoked and active alike. Deletion runs in bounded
// batches so a large backlog never turns into one long statement; the sweep
// checks ctx between batches and stops cleanly when cancelled, reporting
// what it already deleted.
func (s *CleanupService) SweepExpired(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)
	var total int64

	n, err := s.sweepBatches(ctx, cutoff, s.repos.AccessTokens(s.db).DeleteOlderThan)
	total += n
	if err != nil {
		return int(total), err
	}

	n, err = s.sweepBatches(ctx, cutoff, s.repos.RefreshTokens(s.db).DeleteOlderThan)
	total += n
	if err != nil {
		return int(total), err
	}

	if total > 0 {
		s.logger.Info(ctx, "swept expired tokens", "deleted", total, "cutoff", cutoff)
	}
	return int(total), nil
}

func (s *CleanupService) sweepBatches(ctx context.Context, cutoff time.Time,
	deleteBatch func(ctx context.Context, cutoff time.Time, limit int) (int64, error)) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := deleteBatch(ctx, cutoff, s.batchSize)
		if err != nil {
			return total, fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
		total += n
		if n < int64(s.batchSize) {
			return total, nil
		}
	}
}

// ReconcileAll scans both tables for token values held by more than one row
// and collapses each group to its newest valid row, deleting the whole group
// when no row is valid. Returns the number of rows deleted.
func (s *CleanupService) ReconcileAll(ctx context.Context) (int, error) {
	var total int

	values, err := s.repos.AccessTokens(s.db).DuplicateValues(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	for _, v := range values {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.reconcileAccess(ctx, v)
		total += n
		if err != nil {
			return total, err
		}
	}

	values, err = s.repos.RefreshTokens(s.db).DuplicateValues(ctx)
	if err != nil {
		return total, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	for _, v := range values {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.reconcileRefresh(ctx, v)
		total += n
		if err != nil {
			return total, err
		}
	}

	if total > 0 {
		s.logger.Info(ctx, "reconciled duplicate tokens", "deleted", total)
	}
	return total, nil
}

// ReconcileAccessValue collapses duplicate access token rows sharing value.
func (s *CleanupService) ReconcileAccessValue(ctx context.Context, value string) error {
	_, err := s.reconcileAccess(ctx, value)
	return err
}

// ReconcileRefreshValue collapses duplicate refresh token rows sharing value.
func (s *CleanupService) ReconcileRefreshValue(ctx context.Context, value string) error {
	_, err := s.reconcileRefresh(ctx, value)
	return err
}

func (s *CleanupService) reconcileAccess(ctx context.Context, value string) (int, error) {
	repo := s.repos.AccessTokens(s.db)
	tokens, err := repo.FindAllByValue(ctx, value)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	if len(tokens) < 2 {
		return 0, nil
	}

	// Rows arrive newest first; the survivor is the newest valid row. A group
	// with no valid row is deleted whole.
	now := s.now()
	keep := -1
	for i, t := range tokens {
		if t.IsValid(now) {
			keep = i
			break
		}
	}

	var drop []string
	for i, t := range tokens {
		if i != keep {
			drop = append(drop, t.ID)
		}
	}
	if err := repo.DeleteByIDs(ctx, drop); err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	s.logger.Warn(ctx, "removed duplicate access token rows", "deleted", len(drop))
	return len(drop), nil
}

func (s *CleanupService) reconcileRefresh(ctx context.Context, value string) (int, error) {
	repo := s.repos.RefreshTokens(s.db)
	tokens, err := repo.FindAllByValue(ctx, value)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	if len(tokens) < 2 {
		return 0, nil
	}

	now := s.now()
	keep := -1
	for i, t := range tokens {
		if t.IsValid(now) {
			keep = i
			break
		}
	}

	var drop []string
	for i, t := range tokens {
		if i != keep {
			drop = append(drop, t.ID)
		}
	}
	if err := repo.DeleteByIDs(ctx, drop); err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	s.logger.Warn(ctx, "removed duplicate refresh token rows", "deleted", len(drop))
	return len(drop), nil
}
