package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/warp/studio-engine/generic"
)

// =============================================================================
// LEDGER STORE (generic.TxLedgerStore interface)
// =============================================================================

// LedgerStore exposes Store as a generic.TxLedgerStore. Both views share one
// database and one lock.
type LedgerStore struct {
	*Store
}

// Ledger returns the ledger view of the store.
func (s *Store) Ledger() *LedgerStore {
	return &LedgerStore{Store: s}
}

// WithTx executes fn within a ledger transaction.
func (l *LedgerStore) WithTx(ctx context.Context, fn func(generic.LedgerStore) error) error {
	return l.withTx(ctx, func(ts *txStore) error { return fn(ts) })
}

// AppendEntry adds an entry to the ledger.
func (s *Store) AppendEntry(ctx context.Context, e generic.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEntry(ctx, s.db, e)
}

// LoadEntries returns all entries of an account in creation order.
func (s *Store) LoadEntries(ctx context.Context, accountID generic.AccountID) ([]generic.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadEntries(ctx, s.db, accountID)
}

func (s *Store) MarkExcluded(ctx context.Context, accountID generic.AccountID, ids []generic.EntryID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markExcluded(ctx, s.db, accountID, ids, at)
}

func (s *Store) GetAccount(ctx context.Context, id generic.AccountID) (*generic.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, id)
}

func (s *Store) SaveAccount(ctx context.Context, a generic.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAccount(ctx, s.db, a)
}

func (s *Store) ListAccounts(ctx context.Context) ([]generic.AccountID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAccounts(ctx, s.db)
}

func (s *Store) AccountsWithExpired(ctx context.Context, now time.Time) ([]generic.AccountID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return accountsWithExpired(ctx, s.db, now)
}

func appendEntry(ctx context.Context, q querier, e generic.Entry) error {
	query := `
		INSERT INTO ledger_entries
		(id, account_id, amount, category, description, reference_id, created_at, expires_at, excluded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		e.ID, e.AccountID, e.Amount, e.Category,
		nullString(e.Description), nullString(e.ReferenceID),
		formatTime(e.CreatedAt), nullTime(e.ExpiresAt), nullTime(e.ExcludedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("ledger entry %s already exists: %w", e.ID, err)
		}
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

func loadEntries(ctx context.Context, q querier, accountID generic.AccountID) ([]generic.Entry, error) {
	query := `
		SELECT id, account_id, amount, category, description, reference_id, created_at, expires_at, excluded_at
		FROM ledger_entries
		WHERE account_id = ?
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := q.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []generic.Entry
	for rows.Next() {
		var (
			e                                generic.Entry
			desc, ref, expiresAt, excludedAt sql.NullString
			createdAt                        string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &e.Category, &desc, &ref, &createdAt, &expiresAt, &excludedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Description = desc.String
		e.ReferenceID = ref.String
		e.CreatedAt = parseTime(createdAt)
		e.ExpiresAt = parseNullTime(expiresAt)
		e.ExcludedAt = parseNullTime(excludedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func markExcluded(ctx context.Context, q querier, accountID generic.AccountID, ids []generic.EntryID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := []any{formatTime(at), accountID}
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE ledger_entries SET excluded_at = ?
		WHERE account_id = ? AND excluded_at IS NULL AND id IN (` + placeholders + `)`
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark entries excluded: %w", err)
	}
	return nil
}

func getAccount(ctx context.Context, q querier, id generic.AccountID) (*generic.Account, error) {
	var (
		a         generic.Account
		updatedAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, total, tier, config_version, updated_at FROM accounts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Total, &a.Tier, &a.ConfigVersion, &updatedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

func saveAccount(ctx context.Context, q querier, a generic.Account) error {
	query := `
		INSERT INTO accounts (id, total, tier, config_version, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total = excluded.total,
			tier = excluded.tier,
			config_version = excluded.config_version,
			updated_at = excluded.updated_at
	`
	if _, err := q.ExecContext(ctx, query, a.ID, a.Total, a.Tier, a.ConfigVersion, formatTime(a.UpdatedAt)); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func listAccounts(ctx context.Context, q querier) ([]generic.AccountID, error) {
	return queryAccountIDs(ctx, q, `SELECT id FROM accounts ORDER BY id`)
}

func accountsWithExpired(ctx context.Context, q querier, now time.Time) ([]generic.AccountID, error) {
	query := `
		SELECT DISTINCT account_id FROM ledger_entries
		WHERE excluded_at IS NULL AND expires_at IS NOT NULL AND expires_at <= ?
		ORDER BY account_id
	`
	return queryAccountIDs(ctx, q, query, formatTime(now))
}

func queryAccountIDs(ctx context.Context, q querier, query string, args ...any) ([]generic.AccountID, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var ids []generic.AccountID
	for rows.Next() {
		var id generic.AccountID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// REWARD CONFIG STORE (generic.ConfigStore interface)
// =============================================================================

func (s *Store) GetRewardConfig(ctx context.Context) (*generic.ConfigRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rec       generic.ConfigRecord
		updatedAt string
		updatedBy sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, config_json, updated_at, updated_by FROM reward_config WHERE id = 1`,
	).Scan(&rec.Version, &rec.ConfigJSON, &updatedAt, &updatedBy)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reward config: %w", err)
	}
	rec.UpdatedAt = parseTime(updatedAt)
	rec.UpdatedBy = generic.AccountID(updatedBy.String)
	return &rec, nil
}

// SaveRewardConfig writes the row if the stored version is rec.Version-1.
func (s *Store) SaveRewardConfig(ctx context.Context, rec generic.ConfigRecord) error {
	return s.withTx(ctx, func(ts *txStore) error {
		var current int
		err := ts.tx.QueryRowContext(ctx, `SELECT version FROM reward_config WHERE id = 1`).Scan(&current)
		if err != nil && !isNoRows(err) {
			return fmt.Errorf("failed to read reward config version: %w", err)
		}
		if rec.Version != current+1 {
			return generic.ErrConcurrentModification
		}

		query := `
			INSERT INTO reward_config (id, version, config_json, updated_at, updated_by)
			VALUES (1, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				version = excluded.version,
				config_json = excluded.config_json,
				updated_at = excluded.updated_at,
				updated_by = excluded.updated_by
		`
		_, err = ts.tx.ExecContext(ctx, query, rec.Version, rec.ConfigJSON, formatTime(rec.UpdatedAt), nullString(string(rec.UpdatedBy)))
		if err != nil {
			return fmt.Errorf("failed to save reward config: %w", err)
		}
		return nil
	})
}

var (
	_ generic.TxBookingStore = (*Store)(nil)
	_ generic.TxLedgerStore  = (*LedgerStore)(nil)
	_ generic.ConfigStore    = (*Store)(nil)
)
