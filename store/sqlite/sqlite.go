/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces using SQLite. In production, the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  generic.TxBookingStore: Resources and reservations
  generic.TxLedgerStore:  Accounts and ledger entries (via Ledger())
  generic.ConfigStore:    The single reward configuration row

APPEND-ONLY ENFORCEMENT:
  The ledger_entries table is guarded by triggers:
  - DELETE is rejected
  - UPDATE is rejected for every column except excluded_at
  The expiry sweeper only ever stamps excluded_at.

KEY TABLES:
  resources:       Rooms and items with rate and active flag
  reservations:    Every booking/rental ever admitted (never deleted)
  ledger_entries:  Immutable loyalty ledger
  accounts:        Derived total + tier per requester
  reward_config:   Exactly one row, versioned

INDEXES:
  - idx_reservations_resource_status: Admission control (hot path)
  - idx_reservations_requester: "My reservations"
  - idx_entries_account: Balance fold
  - idx_entries_pending_expiry: Sweeper candidate scan

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction and hands fn a view bound to the *sql.Tx, so nothing
  inside a transaction goes back through the locking methods.

TIMESTAMPS:
  Stored as fixed-width UTC text (nanosecond precision) so string order
  equals time order.

USAGE:
  store, err := sqlite.New("./data/studio.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := booking.NewEngine(store, nil, nil)
  ledger := rewards.NewService(store.Ledger(), store, nil, nil, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool with versioned migrations.

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/studio-engine/generic"
)

// tsLayout is fixed width so lexical order matches time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		rate TEXT NOT NULL,
		capacity INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Reservations are never deleted; cancelled/completed rows stay for history
	CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		resource_id TEXT NOT NULL REFERENCES resources(id),
		kind TEXT NOT NULL,
		requester_id TEXT NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		units INTEGER NOT NULL,
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		price TEXT NOT NULL,
		cancellation_fee TEXT,
		notes TEXT,
		cancel_reason TEXT,
		cancelled_by TEXT,
		cancelled_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reservations_resource_status
		ON reservations(resource_id, status);
	CREATE INDEX IF NOT EXISTS idx_reservations_requester
		ON reservations(requester_id, created_at);

	-- Ledger entries (append-only)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		account_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		category TEXT NOT NULL,
		description TEXT,
		reference_id TEXT,
		created_at TEXT NOT NULL,
		expires_at TEXT,
		excluded_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_entries_account
		ON ledger_entries(account_id, created_at, seq);
	CREATE INDEX IF NOT EXISTS idx_entries_pending_expiry
		ON ledger_entries(expires_at) WHERE excluded_at IS NULL AND expires_at IS NOT NULL;

	CREATE TRIGGER IF NOT EXISTS ledger_entries_no_delete
		BEFORE DELETE ON ledger_entries
		BEGIN
			SELECT RAISE(ABORT, 'ledger entries are append-only');
		END;

	CREATE TRIGGER IF NOT EXISTS ledger_entries_immutable
		BEFORE UPDATE OF id, account_id, amount, category, description, reference_id, created_at, expires_at
		ON ledger_entries
		BEGIN
			SELECT RAISE(ABORT, 'ledger entries are append-only');
		END;

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		total INTEGER NOT NULL,
		tier TEXT NOT NULL,
		config_version INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Exactly one reward configuration
	CREATE TABLE IF NOT EXISTS reward_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL,
		config_json TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		updated_by TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RESOURCES
// =============================================================================

func (s *Store) SaveResource(ctx context.Context, r generic.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveResource(ctx, s.db, r)
}

func (s *Store) GetResource(ctx context.Context, id generic.ResourceID) (*generic.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getResource(ctx, s.db, id)
}

func (s *Store) ListResources(ctx context.Context) ([]generic.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listResources(ctx, s.db)
}

func saveResource(ctx context.Context, q querier, r generic.Resource) error {
	query := `
		INSERT INTO resources (id, kind, name, rate, capacity, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			rate = excluded.rate,
			capacity = excluded.capacity,
			active = excluded.active,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query,
		r.ID, r.Kind.KindID(), r.Name, r.Rate.Value.String(), r.Capacity, r.Active,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save resource: %w", err)
	}
	return nil
}

const resourceColumns = `id, kind, name, rate, capacity, active, created_at, updated_at`

func getResource(ctx context.Context, q querier, id generic.ResourceID) (*generic.Resource, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query resource: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	r, err := scanResource(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func listResources(ctx context.Context, q querier) ([]generic.Resource, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+resourceColumns+` FROM resources ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()

	var result []generic.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanResource(rows *sql.Rows) (generic.Resource, error) {
	var (
		r                    generic.Resource
		kindID, rate         string
		createdAt, updatedAt string
	)
	if err := rows.Scan(&r.ID, &kindID, &r.Name, &rate, &r.Capacity, &r.Active, &createdAt, &updatedAt); err != nil {
		return r, fmt.Errorf("failed to scan resource: %w", err)
	}

	// Convert string to ResourceKind via registry
	r.Kind = generic.LookupKind(kindID)
	if r.Kind == nil {
		return r, fmt.Errorf("resource %s has unregistered kind %q", r.ID, kindID)
	}
	r.Rate = generic.MustParseMoney(rate)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// =============================================================================
// RESERVATIONS
// =============================================================================

func (s *Store) SaveReservation(ctx context.Context, r generic.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveReservation(ctx, s.db, r)
}

func (s *Store) GetReservation(ctx context.Context, id generic.ReservationID) (*generic.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getReservation(ctx, s.db, id)
}

func (s *Store) ListActiveReservations(ctx context.Context, resourceID generic.ResourceID) ([]generic.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listActiveReservations(ctx, s.db, resourceID)
}

func (s *Store) ListReservations(ctx context.Context, filter generic.ReservationFilter) ([]generic.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listReservations(ctx, s.db, filter)
}

func saveReservation(ctx context.Context, q querier, r generic.Reservation) error {
	query := `
		INSERT INTO reservations
		(id, resource_id, kind, requester_id, start_at, end_at, units, status, payment_status,
		 price, cancellation_fee, notes, cancel_reason, cancelled_by, cancelled_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			payment_status = excluded.payment_status,
			cancellation_fee = excluded.cancellation_fee,
			notes = excluded.notes,
			cancel_reason = excluded.cancel_reason,
			cancelled_by = excluded.cancelled_by,
			cancelled_at = excluded.cancelled_at,
			updated_at = excluded.updated_at
	`

	var fee sql.NullString
	if r.CancellationFee != nil {
		fee = sql.NullString{String: r.CancellationFee.Value.String(), Valid: true}
	}

	_, err := q.ExecContext(ctx, query,
		r.ID, r.ResourceID, r.Kind, r.RequesterID,
		formatTime(r.Period.Start.Time), formatTime(r.Period.End.Time), r.Units,
		r.Status, r.PaymentStatus, r.Price.Value.String(), fee,
		nullString(r.Notes), nullString(r.CancelReason), nullString(string(r.CancelledBy)),
		nullTime(r.CancelledAt), formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save reservation: %w", err)
	}
	return nil
}

const reservationColumns = `id, resource_id, kind, requester_id, start_at, end_at, units, status,
	payment_status, price, cancellation_fee, notes, cancel_reason, cancelled_by, cancelled_at,
	created_at, updated_at`

func getReservation(ctx context.Context, q querier, id generic.ReservationID) (*generic.Reservation, error) {
	list, err := queryReservations(ctx, q, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func listActiveReservations(ctx context.Context, q querier, resourceID generic.ResourceID) ([]generic.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE resource_id = ? AND status IN (?, ?)
		ORDER BY start_at ASC`
	return queryReservations(ctx, q, query, resourceID, generic.StatusPending, generic.StatusConfirmed)
}

func listReservations(ctx context.Context, q querier, f generic.ReservationFilter) ([]generic.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if f.ResourceID != "" {
		where, args = append(where, "resource_id = ?"), append(args, f.ResourceID)
	}
	if f.RequesterID != "" {
		where, args = append(where, "requester_id = ?"), append(args, f.RequesterID)
	}
	if f.Kind != "" {
		where, args = append(where, "kind = ?"), append(args, f.Kind)
	}
	if f.Status != "" {
		where, args = append(where, "status = ?"), append(args, f.Status)
	}
	if f.PaymentStatus != "" {
		where, args = append(where, "payment_status = ?"), append(args, f.PaymentStatus)
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	return queryReservations(ctx, q, query, args...)
}

func queryReservations(ctx context.Context, q querier, query string, args ...any) ([]generic.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	var result []generic.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanReservation(rows *sql.Rows) (generic.Reservation, error) {
	var (
		r                                   generic.Reservation
		startAt, endAt, price               string
		createdAt, updatedAt                string
		fee, notes, reason, by, cancelledAt sql.NullString
	)
	err := rows.Scan(
		&r.ID, &r.ResourceID, &r.Kind, &r.RequesterID, &startAt, &endAt, &r.Units, &r.Status,
		&r.PaymentStatus, &price, &fee, &notes, &reason, &by, &cancelledAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan reservation: %w", err)
	}

	kind := generic.LookupKind(r.Kind)
	if kind == nil {
		return r, fmt.Errorf("reservation %s has unregistered kind %q", r.ID, r.Kind)
	}
	g := kind.Rule().Granularity
	r.Period = generic.Period{
		Start: generic.At(parseTime(startAt), g),
		End:   generic.At(parseTime(endAt), g),
	}
	r.Price = generic.MustParseMoney(price)
	if fee.Valid {
		m := generic.MustParseMoney(fee.String)
		r.CancellationFee = &m
	}
	r.Notes = notes.String
	r.CancelReason = reason.String
	r.CancelledBy = generic.AccountID(by.String)
	r.CancelledAt = parseNullTime(cancelledAt)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxBookingStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.BookingStore) error) error {
	return s.withTx(ctx, func(ts *txStore) error { return fn(ts) })
}

func (s *Store) withTx(ctx context.Context, fn func(*txStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore reads and writes through the open *sql.Tx only.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveResource(ctx context.Context, r generic.Resource) error {
	return saveResource(ctx, ts.tx, r)
}

func (ts *txStore) GetResource(ctx context.Context, id generic.ResourceID) (*generic.Resource, error) {
	return getResource(ctx, ts.tx, id)
}

func (ts *txStore) ListResources(ctx context.Context) ([]generic.Resource, error) {
	return listResources(ctx, ts.tx)
}

func (ts *txStore) SaveReservation(ctx context.Context, r generic.Reservation) error {
	return saveReservation(ctx, ts.tx, r)
}

func (ts *txStore) GetReservation(ctx context.Context, id generic.ReservationID) (*generic.Reservation, error) {
	return getReservation(ctx, ts.tx, id)
}

func (ts *txStore) ListActiveReservations(ctx context.Context, resourceID generic.ResourceID) ([]generic.Reservation, error) {
	return listActiveReservations(ctx, ts.tx, resourceID)
}

func (ts *txStore) ListReservations(ctx context.Context, filter generic.ReservationFilter) ([]generic.Reservation, error) {
	return listReservations(ctx, ts.tx, filter)
}

func (ts *txStore) AppendEntry(ctx context.Context, e generic.Entry) error {
	return appendEntry(ctx, ts.tx, e)
}

func (ts *txStore) LoadEntries(ctx context.Context, accountID generic.AccountID) ([]generic.Entry, error) {
	return loadEntries(ctx, ts.tx, accountID)
}

func (ts *txStore) MarkExcluded(ctx context.Context, accountID generic.AccountID, ids []generic.EntryID, at time.Time) error {
	return markExcluded(ctx, ts.tx, accountID, ids, at)
}

func (ts *txStore) GetAccount(ctx context.Context, id generic.AccountID) (*generic.Account, error) {
	return getAccount(ctx, ts.tx, id)
}

func (ts *txStore) SaveAccount(ctx context.Context, a generic.Account) error {
	return saveAccount(ctx, ts.tx, a)
}

func (ts *txStore) ListAccounts(ctx context.Context) ([]generic.AccountID, error) {
	return listAccounts(ctx, ts.tx)
}

func (ts *txStore) AccountsWithExpired(ctx context.Context, now time.Time) ([]generic.AccountID, error) {
	return accountsWithExpired(ctx, ts.tx, now)
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data. Use with caution - for development/demo only.
// The ledger triggers are dropped and recreated around the wipe.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmts := []string{
		"DROP TRIGGER IF EXISTS ledger_entries_no_delete",
		"DROP TRIGGER IF EXISTS ledger_entries_immutable",
		"DELETE FROM ledger_entries",
		"DELETE FROM accounts",
		"DELETE FROM reservations",
		"DELETE FROM resources",
		"DELETE FROM reward_config",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return s.migrate()
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
