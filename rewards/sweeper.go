package rewards

import (
	"context"
	"time"

	"github.com/warp/studio-engine/generic"
)

// =============================================================================
// EXPIRY SWEEPER
// =============================================================================

// SweepResult summarizes one sweep.
type SweepResult struct {
	StartedAt       time.Time
	Accounts        int // accounts that had newly expired entries
	EntriesExcluded int
	Duration        time.Duration
}

// Sweep stamps every expired, not yet excluded entry and re-derives the
// affected accounts. Running it again over the same state excludes nothing
// and leaves totals and tiers unchanged. A failure part way leaves every
// finished account consistent; the next run picks up the rest.
func (s *Service) Sweep(ctx context.Context) (*SweepResult, error) {
	now := s.clock.Now()
	result := &SweepResult{StartedAt: now}

	ids, err := s.ledger.AccountsWithExpired(ctx, now)
	if err != nil {
		return nil, generic.Storage("list accounts with expired entries", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		n, err := s.sweepAccount(ctx, id, now)
		if err != nil {
			s.logger.Debug().Err(err).Str("account_id", string(id)).Msg("sweep account failed")
			return result, err
		}
		if n > 0 {
			result.Accounts++
			result.EntriesExcluded += n
		}
	}

	result.Duration = s.clock.Now().Sub(now)
	s.logger.Debug().
		Int("accounts", result.Accounts).
		Int("entries", result.EntriesExcluded).
		Msg("expiry sweep finished")
	return result, nil
}

// sweepAccount excludes one account's expired entries. The configuration
// is read under the account lock, as for postings.
func (s *Service) sweepAccount(ctx context.Context, id generic.AccountID, now time.Time) (int, error) {
	unlock, err := s.locker.Lock(ctx, generic.AccountLockKey(id))
	if err != nil {
		return 0, err
	}
	defer unlock()

	cfg, err := s.Config(ctx)
	if err != nil {
		return 0, err
	}

	var (
		excluded int
		account  *generic.Account
	)
	err = s.ledger.WithTx(ctx, func(tx generic.LedgerStore) error {
		entries, err := tx.LoadEntries(ctx, id)
		if err != nil {
			return generic.Storage("load entries", err)
		}
		expired := generic.ExpiredPending(entries, now)
		if len(expired) == 0 {
			return nil
		}
		if err := tx.MarkExcluded(ctx, id, expired, now); err != nil {
			return generic.Storage("mark excluded", err)
		}
		excluded = len(expired)
		account, err = s.recompute(ctx, tx, id, cfg, now)
		return err
	})
	if err != nil {
		return 0, err
	}
	_, err = s.settle(ctx, account)
	return excluded, err
}
