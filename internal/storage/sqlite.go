// Package storage provides the persistent ledger store backends. The SQLite
// backend lives here; the Postgres backend is in the postgres subpackage.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"hucha/internal/core"
	"hucha/internal/ledger"
)

// SQLiteStore backs the ledger with a single SQLite file. Amounts are stored
// as two-digit decimal strings; SQLite's single-writer locking serializes
// the per-operation transactions.
type SQLiteStore struct {
	db *sql.DB
}

var _ ledger.Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Tx(ctx context.Context, fn func(ledger.StoreTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	st := &sqliteTx{tx: tx}
	if err := fn(st); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

var _ ledger.StoreTx = (*sqliteTx)(nil)

// mapErr translates driver errors into the core taxonomy.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return core.ErrNotFound
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return core.ErrConflict
	}
	return err
}

func (t *sqliteTx) CreateUser(ctx context.Context, u *core.User) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO users (name, email, api_token, created_at) VALUES (?, ?, ?, ?)`,
		u.Name, u.Email, u.APIToken, u.CreatedAt)
	if err != nil {
		return mapErr(err)
	}
	u.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) UserByToken(ctx context.Context, token string) (*core.User, error) {
	var u core.User
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, name, email, api_token, created_at FROM users WHERE api_token = ?`,
		token).Scan(&u.ID, &u.Name, &u.Email, &u.APIToken, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (t *sqliteTx) CreateAccount(ctx context.Context, a *core.Account) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO accounts (owner_id, name, balance) VALUES (?, ?, ?)`,
		a.OwnerID, a.Name, a.Balance.StringFixed(2))
	if err != nil {
		return mapErr(err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) AccountByID(ctx context.Context, ownerID, id int64) (*core.Account, error) {
	var a core.Account
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, owner_id, name, balance FROM accounts WHERE id = ? AND owner_id = ?`,
		id, ownerID).Scan(&a.ID, &a.OwnerID, &a.Name, &a.Balance)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (t *sqliteTx) ListAccounts(ctx context.Context, ownerID int64) ([]core.Account, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, owner_id, name, balance FROM accounts WHERE owner_id = ? ORDER BY id`,
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Balance); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *sqliteTx) UpdateAccountBalance(ctx context.Context, ownerID, id int64, balance decimal.Decimal) error {
	return t.execOne(ctx,
		`UPDATE accounts SET balance = ? WHERE id = ? AND owner_id = ?`,
		balance.StringFixed(2), id, ownerID)
}

func (t *sqliteTx) DeleteAccount(ctx context.Context, ownerID, id int64) error {
	return t.execOne(ctx,
		`DELETE FROM accounts WHERE id = ? AND owner_id = ?`, id, ownerID)
}

func (t *sqliteTx) CountMovementsByAccount(ctx context.Context, ownerID, accountID int64) (int64, error) {
	var n int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM movements WHERE owner_id = ? AND account_id = ?`,
		ownerID, accountID).Scan(&n)
	return n, err
}

func (t *sqliteTx) CreateCategory(ctx context.Context, c *core.Category) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO categories (owner_id, name, kind) VALUES (?, ?, ?)`,
		c.OwnerID, c.Name, string(c.Kind))
	if err != nil {
		return mapErr(err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) CategoryByID(ctx context.Context, ownerID, id int64) (*core.Category, error) {
	var c core.Category
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, owner_id, name, kind FROM categories WHERE id = ? AND owner_id = ?`,
		id, ownerID).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Kind)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (t *sqliteTx) ListCategories(ctx context.Context, ownerID int64) ([]core.Category, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, owner_id, name, kind FROM categories WHERE owner_id = ? ORDER BY id`,
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Kind); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *sqliteTx) FindOrCreateCategory(ctx context.Context, ownerID int64, name string, kind core.Kind) (*core.Category, error) {
	var c core.Category
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, owner_id, name, kind FROM categories WHERE owner_id = ? AND name = ? COLLATE NOCASE`,
		ownerID, name).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Kind)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	c = core.Category{OwnerID: ownerID, Name: name, Kind: kind}
	if err := t.CreateCategory(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *sqliteTx) DeleteCategory(ctx context.Context, ownerID, id int64) error {
	return t.execOne(ctx,
		`DELETE FROM categories WHERE id = ? AND owner_id = ?`, id, ownerID)
}

func (t *sqliteTx) CountMovementsByCategory(ctx context.Context, ownerID, categoryID int64) (int64, error) {
	var n int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM movements WHERE owner_id = ? AND category_id = ?`,
		ownerID, categoryID).Scan(&n)
	return n, err
}

func (t *sqliteTx) CreateMovement(ctx context.Context, m *core.Movement) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO movements (owner_id, account_id, category_id, kind, amount, occurred_at, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.OwnerID, m.AccountID, m.CategoryID, string(m.Kind), m.Amount.StringFixed(2), m.OccurredAt, m.Description)
	if err != nil {
		return mapErr(err)
	}
	m.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) MovementByID(ctx context.Context, ownerID, id int64) (*core.Movement, error) {
	var m core.Movement
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, owner_id, account_id, category_id, kind, amount, occurred_at, description
		 FROM movements WHERE id = ? AND owner_id = ?`,
		id, ownerID).Scan(&m.ID, &m.OwnerID, &m.AccountID, &m.CategoryID, &m.Kind, &m.Amount, &m.OccurredAt, &m.Description)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (t *sqliteTx) ListMovements(ctx context.Context, ownerID int64) ([]core.MovementView, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT m.id, m.owner_id, m.account_id, m.category_id, m.kind, m.amount, m.occurred_at, m.description,
		        a.name, c.name
		 FROM movements m
		 JOIN accounts a ON a.id = m.account_id
		 JOIN categories c ON c.id = m.category_id
		 WHERE m.owner_id = ?
		 ORDER BY m.occurred_at DESC, m.id DESC`,
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.MovementView
	for rows.Next() {
		var v core.MovementView
		if err := rows.Scan(&v.ID, &v.OwnerID, &v.AccountID, &v.CategoryID, &v.Kind, &v.Amount,
			&v.OccurredAt, &v.Description, &v.AccountName, &v.CategoryName); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (t *sqliteTx) UpdateMovement(ctx context.Context, m *core.Movement) error {
	return t.execOne(ctx,
		`UPDATE movements
		 SET account_id = ?, category_id = ?, kind = ?, amount = ?, occurred_at = ?, description = ?
		 WHERE id = ? AND owner_id = ?`,
		m.AccountID, m.CategoryID, string(m.Kind), m.Amount.StringFixed(2), m.OccurredAt, m.Description,
		m.ID, m.OwnerID)
}

func (t *sqliteTx) DeleteMovement(ctx context.Context, ownerID, id int64) error {
	return t.execOne(ctx,
		`DELETE FROM movements WHERE id = ? AND owner_id = ?`, id, ownerID)
}

func (t *sqliteTx) CreateGoal(ctx context.Context, g *core.Goal) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO goals (owner_id, name, target, current, start_date, end_date, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.OwnerID, g.Name, g.Target.StringFixed(2), g.Current.StringFixed(2), g.StartDate, g.EndDate, g.Active)
	if err != nil {
		return mapErr(err)
	}
	g.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) GoalByID(ctx context.Context, ownerID, id int64) (*core.Goal, error) {
	var g core.Goal
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, owner_id, name, target, current, start_date, end_date, active
		 FROM goals WHERE id = ? AND owner_id = ?`,
		id, ownerID).Scan(&g.ID, &g.OwnerID, &g.Name, &g.Target, &g.Current, &g.StartDate, &g.EndDate, &g.Active)
	if err != nil {
		return nil, mapErr(err)
	}
	return &g, nil
}

func (t *sqliteTx) ListGoals(ctx context.Context, ownerID int64) ([]core.Goal, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, owner_id, name, target, current, start_date, end_date, active
		 FROM goals WHERE owner_id = ? ORDER BY id`,
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var g core.Goal
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.Name, &g.Target, &g.Current, &g.StartDate, &g.EndDate, &g.Active); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (t *sqliteTx) UpdateGoalCurrent(ctx context.Context, ownerID, id int64, current decimal.Decimal) error {
	return t.execOne(ctx,
		`UPDATE goals SET current = ? WHERE id = ? AND owner_id = ?`,
		current.StringFixed(2), id, ownerID)
}

func (t *sqliteTx) DeleteGoal(ctx context.Context, ownerID, id int64) error {
	return t.execOne(ctx,
		`DELETE FROM goals WHERE id = ? AND owner_id = ?`, id, ownerID)
}

func (t *sqliteTx) CreateContribution(ctx context.Context, c *core.GoalContribution) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO goal_contributions (goal_id, movement_id, amount, created_at) VALUES (?, ?, ?, ?)`,
		c.GoalID, c.MovementID, c.Amount.StringFixed(2), c.CreatedAt)
	if err != nil {
		return mapErr(err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) ContributionByMovement(ctx context.Context, movementID int64) (*core.GoalContribution, error) {
	var c core.GoalContribution
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, goal_id, movement_id, amount, created_at FROM goal_contributions WHERE movement_id = ?`,
		movementID).Scan(&c.ID, &c.GoalID, &c.MovementID, &c.Amount, &c.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (t *sqliteTx) ContributionsByGoal(ctx context.Context, goalID int64) ([]core.GoalContribution, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, goal_id, movement_id, amount, created_at FROM goal_contributions WHERE goal_id = ? ORDER BY id`,
		goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.GoalContribution
	for rows.Next() {
		var c core.GoalContribution
		if err := rows.Scan(&c.ID, &c.GoalID, &c.MovementID, &c.Amount, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *sqliteTx) UpdateContributionAmount(ctx context.Context, id int64, amount decimal.Decimal) error {
	return t.execOne(ctx,
		`UPDATE goal_contributions SET amount = ? WHERE id = ?`,
		amount.StringFixed(2), id)
}

func (t *sqliteTx) DeleteContribution(ctx context.Context, id int64) error {
	return t.execOne(ctx,
		`DELETE FROM goal_contributions WHERE id = ?`, id)
}

func (t *sqliteTx) Summary(ctx context.Context, ownerID int64) (core.Summary, error) {
	var summary core.Summary
	err := t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN kind = 'income' THEN amount ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount ELSE 0 END), 0)
		 FROM movements WHERE owner_id = ?`,
		ownerID).Scan(&summary.TotalIncome, &summary.TotalExpense)
	if err != nil {
		return core.Summary{}, err
	}
	err = t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(balance), 0) FROM accounts WHERE owner_id = ?`,
		ownerID).Scan(&summary.TotalBalance)
	if err != nil {
		return core.Summary{}, err
	}
	return summary, nil
}

// execOne runs a statement that must affect exactly one row; zero rows means
// the target was absent or owned by someone else.
func (t *sqliteTx) execOne(ctx context.Context, query string, args ...any) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
