/*
service.go - Loyalty ledger service: posting, re-classification, config updates

PURPOSE:
  Owns every write to accounts and the reward configuration. There is one
  reclassify step and exactly three triggers call it:

  TRIGGER           TOTAL                         TIER
  PostEntry         re-derived from all entries   reclassified
  Sweep             re-derived from all entries   reclassified
  UpdateConfig      stored total kept             reclassified under new config

ATOMICITY:
  Each account update takes the account lock and runs in one ledger
  transaction: append (or mark excluded), reload every entry, fold,
  classify, save. The fold always starts from a fresh read, so a concurrent
  posting is never lost and a sweep racing a cancellation sees the fee
  entry if it was committed first.

CONFIGURATION:
  Account writes read the configuration while holding the account lock,
  then settle: if a newer version was stored meanwhile, the account is
  reclassified under it before the lock is released. Reclassification
  never moves an account back to an older version. Updates go through an
  optimistic version check.

REVERSALS:
  Reverse posts the negative of a reference's net points together with a
  marker reference. An accrual for a reference that already has a marker
  posts nothing, so a cancellation that overtakes its own accrual still
  leaves the account with no points from it.

SEE ALSO:
  - sweeper.go: Expiry sweep
  - generic/ledger.go: Entry, Account, RunningTotal
*/
package rewards

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/studio-engine/generic"
)

const configLockKey = "rewards:config"

// RecentEntries is how many entries a Summary carries.
const RecentEntries = 5

// Service is the ledger front door.
type Service struct {
	ledger  generic.TxLedgerStore
	configs generic.ConfigStore
	locker  generic.Locker
	clock   generic.Clock
	logger  zerolog.Logger
}

// NewService creates a ledger service. A nil locker means an in-process
// KeyedMutex; a nil clock means the system clock.
func NewService(ledger generic.TxLedgerStore, configs generic.ConfigStore, locker generic.Locker, clock generic.Clock, logger zerolog.Logger) *Service {
	if locker == nil {
		locker = generic.NewKeyedMutex()
	}
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Service{ledger: ledger, configs: configs, locker: locker, clock: clock, logger: logger}
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config returns the current configuration, DefaultConfig when none is stored.
func (s *Service) Config(ctx context.Context) (Config, error) {
	rec, err := s.configs.GetRewardConfig(ctx)
	if err != nil {
		return Config{}, generic.Storage("get reward config", err)
	}
	if rec == nil {
		return DefaultConfig(), nil
	}
	cfg, err := DecodeConfig(rec.ConfigJSON)
	if err != nil {
		return Config{}, generic.Storage("decode reward config", err)
	}
	cfg.Version = rec.Version
	cfg.UpdatedAt = rec.UpdatedAt
	cfg.UpdatedBy = rec.UpdatedBy
	return cfg, nil
}

// Seed stores cfg as version 1 if nothing is stored yet.
// It reports whether cfg was written.
func (s *Service) Seed(ctx context.Context, cfg Config) (bool, error) {
	if err := cfg.Validate(); err != nil {
		return false, err
	}
	unlock, err := s.locker.Lock(ctx, configLockKey)
	if err != nil {
		return false, err
	}
	defer unlock()

	rec, err := s.configs.GetRewardConfig(ctx)
	if err != nil {
		return false, generic.Storage("get reward config", err)
	}
	if rec != nil {
		return false, nil
	}
	cfg.Version = 1
	cfg.UpdatedAt = s.clock.Now()
	return true, s.saveConfig(ctx, cfg)
}

// ConfigUpdate is the outcome of UpdateConfig.
type ConfigUpdate struct {
	Config       Config
	Reclassified int
}

// UpdateConfig merges patch into the current configuration, stores it under
// the next version and re-classifies every account. Admin only.
func (s *Service) UpdateConfig(ctx context.Context, patch ConfigPatch, actor generic.Actor) (*ConfigUpdate, error) {
	if !actor.IsAdmin() {
		return nil, generic.ErrUnauthorized
	}

	unlock, err := s.locker.Lock(ctx, configLockKey)
	if err != nil {
		return nil, err
	}
	current, err := s.Config(ctx)
	if err != nil {
		unlock()
		return nil, err
	}
	next, err := patch.Apply(current)
	if err != nil {
		unlock()
		return nil, err
	}
	next.Version = current.Version + 1
	next.UpdatedAt = s.clock.Now()
	next.UpdatedBy = actor.ID
	if err := s.saveConfig(ctx, next); err != nil {
		unlock()
		return nil, err
	}
	unlock()

	n, err := s.ReclassifyAll(ctx, next)
	if err != nil {
		return nil, err
	}
	return &ConfigUpdate{Config: next, Reclassified: n}, nil
}

func (s *Service) saveConfig(ctx context.Context, cfg Config) error {
	body, err := EncodeConfig(cfg)
	if err != nil {
		return fmt.Errorf("encode reward config: %w", err)
	}
	return generic.Storage("save reward config", s.configs.SaveRewardConfig(ctx, generic.ConfigRecord{
		Version:    cfg.Version,
		ConfigJSON: body,
		UpdatedAt:  cfg.UpdatedAt,
		UpdatedBy:  cfg.UpdatedBy,
	}))
}

// =============================================================================
// POSTING
// =============================================================================

// PostInput is one ledger posting. Amount is signed; negative amounts are
// adjustments (e.g. a fee penalty) and are clamped by the fold.
type PostInput struct {
	AccountID   generic.AccountID
	Amount      int64
	Category    generic.EntryCategory
	Description string
	ReferenceID string
}

// PostEntry appends an entry and re-derives the account in one atomic
// scope. The account is created on first posting.
func (s *Service) PostEntry(ctx context.Context, in PostInput) (*generic.Entry, *generic.Account, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}
	return s.post(ctx, in.AccountID, func([]generic.Entry, Config) (*PostInput, error) {
		return &in, nil
	})
}

func (in PostInput) validate() error {
	if in.AccountID == "" {
		return fmt.Errorf("%w: account id is required", generic.ErrInvalidInput)
	}
	if !in.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", generic.ErrInvalidInput, in.Category)
	}
	return nil
}

// post runs build and appends what it returns, all under the account lock
// and in one ledger transaction. build sees the stored entries and the
// configuration current at lock time; a nil input appends nothing.
func (s *Service) post(ctx context.Context, id generic.AccountID, build func([]generic.Entry, Config) (*PostInput, error)) (*generic.Entry, *generic.Account, error) {
	unlock, err := s.locker.Lock(ctx, generic.AccountLockKey(id))
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	var (
		entry   *generic.Entry
		account *generic.Account
	)
	err = s.ledger.WithTx(ctx, func(tx generic.LedgerStore) error {
		entries, err := tx.LoadEntries(ctx, id)
		if err != nil {
			return generic.Storage("load entries", err)
		}
		in, err := build(entries, cfg)
		if err != nil || in == nil {
			return err
		}
		entry = &generic.Entry{
			ID:          generic.NewEntryID(),
			AccountID:   id,
			Amount:      in.Amount,
			Category:    in.Category,
			Description: in.Description,
			ReferenceID: in.ReferenceID,
			CreatedAt:   now,
			ExpiresAt:   cfg.ExpiresAt(now),
		}
		if err := tx.AppendEntry(ctx, *entry); err != nil {
			return generic.Storage("append entry", err)
		}
		account, err = s.recompute(ctx, tx, id, cfg, now)
		return err
	})
	if err != nil || entry == nil {
		return nil, nil, err
	}

	account, err = s.settle(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	return entry, account, nil
}

// AccrueInput is a domain event worth points at the configured rate.
type AccrueInput struct {
	AccountID   generic.AccountID
	Category    generic.EntryCategory
	Spend       generic.Money // used by per-unit categories
	Description string
	ReferenceID string
}

// Accrue converts the event to points with PointsFor and posts them.
// Zero points, or a reference that was already reversed, post nothing and
// return a nil entry.
func (s *Service) Accrue(ctx context.Context, in AccrueInput) (*generic.Entry, error) {
	if err := (PostInput{AccountID: in.AccountID, Category: in.Category}).validate(); err != nil {
		return nil, err
	}
	desc := in.Description
	if desc == "" {
		desc = fmt.Sprintf("%s points", strings.ToLower(string(in.Category)))
	}
	entry, _, err := s.post(ctx, in.AccountID, func(entries []generic.Entry, cfg Config) (*PostInput, error) {
		if in.ReferenceID != "" && reversed(entries, in.ReferenceID) {
			return nil, nil
		}
		points, err := PointsFor(in.Category, in.Spend, cfg)
		if err != nil || points == 0 {
			return nil, err
		}
		return &PostInput{
			AccountID:   in.AccountID,
			Amount:      points,
			Category:    in.Category,
			Description: desc,
			ReferenceID: in.ReferenceID,
		}, nil
	})
	return entry, err
}

// ReverseInput takes back the points posted under one reference.
type ReverseInput struct {
	AccountID   generic.AccountID
	ReferenceID string
	Category    generic.EntryCategory
	Description string
}

// ReversalReference is the reference a reversal of ref is posted under.
func ReversalReference(ref string) string { return ref + "#reversal" }

func reversed(entries []generic.Entry, ref string) bool {
	marker := ReversalReference(ref)
	for _, e := range entries {
		if e.ReferenceID == marker {
			return true
		}
	}
	return false
}

// Reverse posts the negative of the points still counted for the reference.
// The reversal is posted even when nothing has accrued yet, so a later
// Accrue for the same reference is dropped. Reversing twice posts nothing
// the second time and returns a nil entry.
func (s *Service) Reverse(ctx context.Context, in ReverseInput) (*generic.Entry, error) {
	if in.ReferenceID == "" {
		return nil, fmt.Errorf("%w: reference id is required", generic.ErrInvalidInput)
	}
	if err := (PostInput{AccountID: in.AccountID, Category: in.Category}).validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	entry, _, err := s.post(ctx, in.AccountID, func(entries []generic.Entry, _ Config) (*PostInput, error) {
		if reversed(entries, in.ReferenceID) {
			return nil, nil
		}
		var net int64
		for _, e := range entries {
			if e.ReferenceID == in.ReferenceID && e.Included(now) {
				net += e.Amount
			}
		}
		if net < 0 {
			net = 0
		}
		return &PostInput{
			AccountID:   in.AccountID,
			Amount:      -net,
			Category:    in.Category,
			Description: in.Description,
			ReferenceID: ReversalReference(in.ReferenceID),
		}, nil
	})
	return entry, err
}

// =============================================================================
// RE-CLASSIFICATION
// =============================================================================

// reclassify sets the tier for the account's current total under cfg.
// It is the only place a tier is assigned.
func reclassify(a *generic.Account, cfg Config, now time.Time) {
	a.Tier = ClassifyTier(a.Total, cfg).Name
	a.ConfigVersion = cfg.Version
	a.UpdatedAt = now
}

// recompute re-derives the total from a fresh read of every entry, then
// reclassifies and saves. Callers hold the account lock and a transaction.
func (s *Service) recompute(ctx context.Context, tx generic.LedgerStore, id generic.AccountID, cfg Config, now time.Time) (*generic.Account, error) {
	entries, err := tx.LoadEntries(ctx, id)
	if err != nil {
		return nil, generic.Storage("load entries", err)
	}
	account := generic.Account{ID: id, Total: generic.RunningTotal(entries, now)}
	reclassify(&account, cfg, now)
	if err := tx.SaveAccount(ctx, account); err != nil {
		return nil, generic.Storage("save account", err)
	}
	return &account, nil
}

// ReclassifyAll re-reads every account and reclassifies its stored total
// under cfg. History is not recomputed. Accounts already classified under a
// newer version are left alone. Returns the number of accounts seen.
func (s *Service) ReclassifyAll(ctx context.Context, cfg Config) (int, error) {
	ids, err := s.ledger.ListAccounts(ctx)
	if err != nil {
		return 0, generic.Storage("list accounts", err)
	}
	for _, id := range ids {
		if err := s.reclassifyOne(ctx, id, cfg); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (s *Service) reclassifyOne(ctx context.Context, id generic.AccountID, cfg Config) error {
	unlock, err := s.locker.Lock(ctx, generic.AccountLockKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	_, err = s.reclassifyLocked(ctx, id, cfg)
	return err
}

// reclassifyLocked reclassifies one stored account under cfg unless it is
// already on a newer version. Callers hold the account lock.
func (s *Service) reclassifyLocked(ctx context.Context, id generic.AccountID, cfg Config) (*generic.Account, error) {
	var account *generic.Account
	err := s.ledger.WithTx(ctx, func(tx generic.LedgerStore) error {
		var err error
		account, err = tx.GetAccount(ctx, id)
		if err != nil {
			return generic.Storage("get account", err)
		}
		if account == nil || account.ConfigVersion > cfg.Version {
			return nil
		}
		reclassify(account, cfg, s.clock.Now())
		return generic.Storage("save account", tx.SaveAccount(ctx, *account))
	})
	return account, err
}

// settle brings an account just written under the account lock up to the
// configuration stored now. A version saved after this read is picked up by
// that update's own ReclassifyAll, which waits for the lock.
func (s *Service) settle(ctx context.Context, account *generic.Account) (*generic.Account, error) {
	for account != nil {
		cfg, err := s.Config(ctx)
		if err != nil {
			return nil, err
		}
		if cfg.Version <= account.ConfigVersion {
			return account, nil
		}
		if account, err = s.reclassifyLocked(ctx, account.ID, cfg); err != nil {
			return nil, err
		}
	}
	return account, nil
}

// =============================================================================
// READS
// =============================================================================

// GetAccount returns the stored account summary.
func (s *Service) GetAccount(ctx context.Context, id generic.AccountID) (*generic.Account, error) {
	account, err := s.ledger.GetAccount(ctx, id)
	if err != nil {
		return nil, generic.Storage("get account", err)
	}
	if account == nil {
		return nil, &generic.NotFoundError{What: "account", ID: string(id)}
	}
	return account, nil
}

// Summary is the rewards view of one account.
type Summary struct {
	Account  generic.Account
	Discount decimal.Decimal
	Recent   []generic.Entry // newest first
	NextTier *NextTierInfo
}

// Summary returns points, tier, discount, the latest entries and the next tier.
func (s *Service) Summary(ctx context.Context, id generic.AccountID) (*Summary, error) {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.History(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(entries) > RecentEntries {
		entries = entries[:RecentEntries]
	}
	return &Summary{
		Account:  *account,
		Discount: DiscountFor(account.Tier, cfg),
		Recent:   entries,
		NextTier: NextTier(account.Tier, account.Total, cfg),
	}, nil
}

// History returns every entry of the account, newest first.
func (s *Service) History(ctx context.Context, id generic.AccountID) ([]generic.Entry, error) {
	entries, err := s.ledger.LoadEntries(ctx, id)
	if err != nil {
		return nil, generic.Storage("load entries", err)
	}
	// Stores return entries in posting order.
	slices.Reverse(entries)
	return entries, nil
}
