/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.TxStore (ledger entries) and generic.PartyDirectory
  (labor, debtors, vendors, orders, sales) using SQLite. In production the
  same statements run on PostgreSQL with only dialect differences.

KEY TABLES:
  parties: Live counterparty records (name, phone, role, monthly salary)
  entries: Ledger entries with the party snapshot and derived balance

INDEXES:
  - idx_entries_kind_party_date: Monthly advance sums (hot path)
  - idx_entries_date:            Date range reports
  - idx_entries_principal:       Amount ranking
  - idx_entries_active:          Soft-delete filtering
  - idx_entries_expected_return: Overdue receivables

MONEY:
  Amounts are stored as decimal TEXT and parsed back into generic.Money.
  Sums are computed in Go, never with SQL SUM over floats.

CONCURRENCY:
  The pool is limited to one connection, so SQLite sees a single writer.
  Updates are additionally conditional on the version column:
    UPDATE entries SET ... WHERE id = ? AND version = ?
  Zero rows affected means another writer got there first and
  generic.ErrConcurrentModification is returned.

USAGE:
  store, err := sqlite.New("./data/shop.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  advances := generic.NewLedger(store, store, rules)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/shop-ledger/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
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
	db.SetMaxOpenConns(1)

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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Parties (labor, debtors, vendors, orders, sales)
	CREATE TABLE IF NOT EXISTS parties (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		phone TEXT,
		role TEXT,
		monthly_salary TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_parties_kind
		ON parties(kind, is_active);

	-- Ledger entries
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		party_id TEXT NOT NULL REFERENCES parties(id) ON DELETE RESTRICT,
		payee_kind TEXT,
		snapshot_name TEXT NOT NULL,
		snapshot_phone TEXT,
		snapshot_role TEXT,
		principal TEXT NOT NULL,
		counter TEXT NOT NULL,
		balance TEXT NOT NULL,
		transaction_date TEXT NOT NULL,
		expected_return_date TEXT,
		description TEXT,
		receipt_path TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		created_by TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_entries_kind_party_date
		ON entries(kind, party_id, transaction_date);
	CREATE INDEX IF NOT EXISTS idx_entries_date
		ON entries(transaction_date);
	CREATE INDEX IF NOT EXISTS idx_entries_principal
		ON entries(kind, CAST(principal AS REAL) DESC);
	CREATE INDEX IF NOT EXISTS idx_entries_active
		ON entries(is_active);
	CREATE INDEX IF NOT EXISTS idx_entries_expected_return
		ON entries(expected_return_date) WHERE expected_return_date IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ENTRY STORE (generic.Store interface)
// =============================================================================

const entryColumns = `id, kind, party_id, payee_kind, snapshot_name, snapshot_phone, snapshot_role,
	principal, counter, balance, transaction_date, expected_return_date, description, receipt_path,
	is_active, version, created_at, updated_at, created_by`

func (s *Store) Insert(ctx context.Context, e generic.Entry) error {
	return insertEntry(ctx, s.db, e)
}

func (s *Store) Get(ctx context.Context, id generic.EntryID) (*generic.Entry, error) {
	return getEntry(ctx, s.db, id)
}

func (s *Store) Update(ctx context.Context, e generic.Entry, prevVersion int64) error {
	return updateEntry(ctx, s.db, e, prevVersion)
}

func (s *Store) Delete(ctx context.Context, id generic.EntryID) error {
	return deleteEntry(ctx, s.db, id)
}

func (s *Store) List(ctx context.Context, f generic.Filter) ([]generic.Entry, error) {
	return listEntries(ctx, s.db, f)
}

func insertEntry(ctx context.Context, db querier, e generic.Entry) error {
	query := `INSERT INTO entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var expected any
	if e.ExpectedReturnDate != nil {
		expected = e.ExpectedReturnDate.String()
	}

	_, err := db.ExecContext(ctx, query,
		e.ID,
		e.Kind,
		e.PartyID,
		nullString(string(e.Payee.Kind)),
		e.Snapshot.Name,
		e.Snapshot.Phone,
		e.Snapshot.Role,
		e.Principal.String(),
		e.Counter.String(),
		e.Balance.String(),
		e.TransactionDate.String(),
		expected,
		e.Description,
		e.ReceiptPath,
		e.IsActive,
		e.Version,
		formatTime(e.CreatedAt),
		formatTime(e.UpdatedAt),
		nullString(e.CreatedBy),
	)
	if IsForeignKeyError(err) {
		// The party row vanished between the snapshot and the insert.
		return &generic.ReferenceError{PartyID: e.PartyID, Reason: "not found"}
	}
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func getEntry(ctx context.Context, db querier, id generic.EntryID) (*generic.Entry, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query entry: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, generic.ErrEntryNotFound
	}
	e, err := scanEntry(rows)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func updateEntry(ctx context.Context, db querier, e generic.Entry, prevVersion int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE entries
		SET principal = ?, counter = ?, balance = ?, is_active = ?, updated_at = ?, version = ?
		WHERE id = ? AND version = ?`,
		e.Principal.String(), e.Counter.String(), e.Balance.String(),
		e.IsActive, formatTime(e.UpdatedAt), e.Version,
		e.ID, prevVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE id = ?`, e.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return generic.ErrEntryNotFound
		}
		return generic.ErrConcurrentModification
	}
	return nil
}

func deleteEntry(ctx context.Context, db querier, id generic.EntryID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrEntryNotFound
	}
	return nil
}

func listEntries(ctx context.Context, db querier, f generic.Filter) ([]generic.Entry, error) {
	where, args := filterClause(f)
	query := `SELECT ` + entryColumns + ` FROM entries` + where + ` ORDER BY transaction_date ASC, id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []generic.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// filterClause translates a generic.Filter into a WHERE clause. It mirrors
// generic.Filter.Matches.
func filterClause(f generic.Filter) (string, []any) {
	var conds []string
	var args []any

	if !f.IncludeInactive {
		conds = append(conds, "is_active = TRUE")
	}
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.PartyID != "" {
		conds = append(conds, "party_id = ?")
		args = append(args, f.PartyID)
	}
	if f.From != nil {
		conds = append(conds, "transaction_date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		conds = append(conds, "transaction_date <= ?")
		args = append(args, f.To.String())
	}
	switch f.Status {
	case generic.StatusOutstanding:
		conds = append(conds, "CAST(balance AS REAL) > 0")
	case generic.StatusSettled:
		conds = append(conds, "CAST(balance AS REAL) <= 0")
	}
	if f.OverdueAsOf != nil {
		conds = append(conds,
			"kind = ?",
			"expected_return_date IS NOT NULL",
			"expected_return_date < ?",
			"CAST(balance AS REAL) > 0",
		)
		args = append(args, generic.KindReceivable, f.OverdueAsOf.String())
		if f.IncludeInactive {
			// Overdue only ever considers live receivables.
			conds = append(conds, "is_active = TRUE")
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanEntry(rows *sql.Rows) (generic.Entry, error) {
	var (
		e                  generic.Entry
		payeeKind          sql.NullString
		phone, role        sql.NullString
		principal, counter string
		balance            string
		txDate             string
		expected           sql.NullString
		description        sql.NullString
		receipt            sql.NullString
		createdAt          string
		updatedAt          string
		createdBy          sql.NullString
	)

	err := rows.Scan(
		&e.ID, &e.Kind, &e.PartyID, &payeeKind, &e.Snapshot.Name, &phone, &role,
		&principal, &counter, &balance, &txDate, &expected, &description, &receipt,
		&e.IsActive, &e.Version, &createdAt, &updatedAt, &createdBy,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan entry: %w", err)
	}

	if payeeKind.Valid && payeeKind.String != "" {
		e.Payee = generic.Payee{Kind: generic.PayeeKind(payeeKind.String), ID: e.PartyID}
	}
	e.Snapshot.Phone = phone.String
	e.Snapshot.Role = role.String
	if e.Principal, err = generic.ParseMoney(principal); err != nil {
		return e, fmt.Errorf("entry %s: bad principal %q: %w", e.ID, principal, err)
	}
	if e.Counter, err = generic.ParseMoney(counter); err != nil {
		return e, fmt.Errorf("entry %s: bad counter %q: %w", e.ID, counter, err)
	}
	if e.Balance, err = generic.ParseMoney(balance); err != nil {
		return e, fmt.Errorf("entry %s: bad balance %q: %w", e.ID, balance, err)
	}
	if e.TransactionDate, err = generic.ParseDate(txDate); err != nil {
		return e, fmt.Errorf("entry %s: bad transaction_date %q: %w", e.ID, txDate, err)
	}
	if expected.Valid && expected.String != "" {
		d, err := generic.ParseDate(expected.String)
		if err != nil {
			return e, fmt.Errorf("entry %s: bad expected_return_date %q: %w", e.ID, expected.String, err)
		}
		e.ExpectedReturnDate = &d
	}
	e.Description = description.String
	e.ReceiptPath = receipt.String
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	e.CreatedBy = createdBy.String
	return e, nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
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

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Insert(ctx context.Context, e generic.Entry) error {
	return insertEntry(ctx, ts.tx, e)
}

func (ts *txStore) Get(ctx context.Context, id generic.EntryID) (*generic.Entry, error) {
	return getEntry(ctx, ts.tx, id)
}

func (ts *txStore) Update(ctx context.Context, e generic.Entry, prevVersion int64) error {
	return updateEntry(ctx, ts.tx, e, prevVersion)
}

func (ts *txStore) Delete(ctx context.Context, id generic.EntryID) error {
	return deleteEntry(ctx, ts.tx, id)
}

func (ts *txStore) List(ctx context.Context, f generic.Filter) ([]generic.Entry, error) {
	return listEntries(ctx, ts.tx, f)
}

// =============================================================================
// PARTY STORE (generic.PartyDirectory interface)
// =============================================================================

const partyColumns = `id, kind, name, phone, role, monthly_salary, is_active`

// SaveParty inserts or updates a party. Existing ledger snapshots are not touched.
func (s *Store) SaveParty(ctx context.Context, p generic.Party) error {
	query := `
		INSERT INTO parties (id, kind, name, phone, role, monthly_salary, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			phone = excluded.phone,
			role = excluded.role,
			monthly_salary = excluded.monthly_salary,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	var salary any
	if p.MonthlySalary != nil {
		salary = p.MonthlySalary.String()
	}

	now := formatTime(time.Now().UTC())
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Kind, p.Name, p.Phone, p.Role, salary, p.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save party: %w", err)
	}
	return nil
}

// Resolve implements generic.PartyDirectory.
func (s *Store) Resolve(ctx context.Context, id generic.PartyID) (*generic.Party, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+partyColumns+` FROM parties WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query party: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, generic.ErrPartyNotFound
	}
	p, err := scanParty(rows)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListParties returns parties of a kind ("" for all), active ones only unless
// includeInactive is set.
func (s *Store) ListParties(ctx context.Context, kind generic.PartyKind, includeInactive bool) ([]generic.Party, error) {
	query := `SELECT ` + partyColumns + ` FROM parties WHERE (? = '' OR kind = ?)`
	if !includeInactive {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY name, id`

	rows, err := s.db.QueryContext(ctx, query, kind, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query parties: %w", err)
	}
	defer rows.Close()

	var parties []generic.Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		parties = append(parties, p)
	}
	return parties, rows.Err()
}

// SetPartyActive soft-deletes or restores a party.
func (s *Store) SetPartyActive(ctx context.Context, id generic.PartyID, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE parties SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update party: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrPartyNotFound
	}
	return nil
}

func scanParty(rows *sql.Rows) (generic.Party, error) {
	var (
		p      generic.Party
		phone  sql.NullString
		role   sql.NullString
		salary sql.NullString
	)
	if err := rows.Scan(&p.ID, &p.Kind, &p.Name, &phone, &role, &salary, &p.IsActive); err != nil {
		return p, fmt.Errorf("failed to scan party: %w", err)
	}
	p.Phone = phone.String
	p.Role = role.String
	if salary.Valid && salary.String != "" {
		m, err := generic.ParseMoney(salary.String)
		if err != nil {
			return p, fmt.Errorf("party %s: bad monthly_salary %q: %w", p.ID, salary.String, err)
		}
		p.MonthlySalary = &m
	}
	return p, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// IsForeignKeyError reports whether err is a SQLite foreign key violation,
// e.g. deleting a party that entries still reference.
func IsForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

var _ generic.TxStore = (*Store)(nil)
var _ generic.PartyDirectory = (*Store)(nil)

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data (for testing/demo). Entries go first because they
// reference parties.
func (s *Store) Reset(ctx context.Context) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, table := range []string{"entries", "parties"} {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}
