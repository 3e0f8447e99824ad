// Package postgres backs the ledger with PostgreSQL through a pgx pool.
// Amounts live in NUMERIC columns and cross the wire as fixed two-digit
// strings so no float rounding ever touches them.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"hucha/internal/core"
	"hucha/internal/ledger"
)

//go:embed schema.sql
var schema string

type Store struct {
	pool *pgxpool.Pool
}

var _ ledger.Store = (*Store)(nil)

func NewStore(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Statements go one at a time since the extended protocol does not
	// accept multi-statement strings.
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Tx(ctx context.Context, fn func(ledger.StoreTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	st := &pgTx{tx: tx}
	if err := fn(st); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

var _ ledger.StoreTx = (*pgTx)(nil)

// mapErr translates pgx errors into the core taxonomy. 23505 is the unique
// violation class.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return core.ErrConflict
	}
	return err
}

func (t *pgTx) CreateUser(ctx context.Context, u *core.User) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO users (name, email, api_token, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		u.Name, u.Email, u.APIToken, u.CreatedAt).Scan(&u.ID)
	return mapErr(err)
}

func (t *pgTx) UserByToken(ctx context.Context, token string) (*core.User, error) {
	var u core.User
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, email, api_token, created_at FROM users WHERE api_token = $1`,
		token).Scan(&u.ID, &u.Name, &u.Email, &u.APIToken, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (t *pgTx) CreateAccount(ctx context.Context, a *core.Account) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO accounts (owner_id, name, balance) VALUES ($1, $2, $3) RETURNING id`,
		a.OwnerID, a.Name, a.Balance.StringFixed(2)).Scan(&a.ID)
	return mapErr(err)
}

func (t *pgTx) AccountByID(ctx context.Context, ownerID, id int64) (*core.Account, error) {
	var a core.Account
	err := t.tx.QueryRow(ctx,
		`SELECT id, owner_id, name, balance::text FROM accounts WHERE id = $1 AND owner_id = $2`,
		id, ownerID).Scan(&a.ID, &a.OwnerID, &a.Name, &a.Balance)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (t *pgTx) ListAccounts(ctx context.Context, ownerID int64) ([]core.Account, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, owner_id, name, balance::text FROM accounts WHERE owner_id = $1 ORDER BY id`,
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

func (t *pgTx) UpdateAccountBalance(ctx context.Context, ownerID, id int64, balance decimal.Decimal) error {
	return t.execOne(ctx,
		`UPDATE accounts SET balance = $1 WHERE id = $2 AND owner_id = $3`,
		balance.StringFixed(2), id, ownerID)
}

func (t *pgTx) DeleteAccount(ctx context.Context, ownerID, id int64) error {
	return t.execOne(ctx,
		`DELETE FROM accounts WHERE id = $1 AND owner_id = $2`, id, ownerID)
}

func (t *pgTx) CountMovementsByAccount(ctx context.Context, ownerID, accountID int64) (int64, error) {
	var n int64
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM movements WHERE owner_id = $1 AND account_id = $2`,
		ownerID, accountID).Scan(&n)
	return n, err
}

func (t *pgTx) CreateCategory(ctx context.Context, c *core.Category) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO categories (owner_id, name, kind) VALUES ($1, $2, $3) RETURNING id`,
		c.OwnerID, c.Name, string(c.Kind)).Scan(&c.ID)
	return mapErr(err)
}

func (t *pgTx) CategoryByID(ctx context.Context, ownerID, id int64) (*core.Category, error) {
	var c core.Category
	err := t.tx.QueryRow(ctx,
		`SELECT id, owner_id, name, kind FROM categories WHERE id = $1 AND owner_id = $2`,
		id, ownerID).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Kind)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (t *pgTx) ListCategories(ctx context.Context, ownerID int64) ([]core.Category, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, owner_id, name, kind FROM categories WHERE owner_id = $1 ORDER BY id`,
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

func (t *pgTx) FindOrCreateCategory(ctx context.Context, ownerID int64, name string, kind core.Kind) (*core.Category, error) {
	var c core.Category
	err := t.tx.QueryRow(ctx,
		`SELECT id, owner_id, name, kind FROM categories WHERE owner_id = $1 AND lower(name) = lower($2)`,
		ownerID, name).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Kind)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	c = core.Category{OwnerID: ownerID, Name: name, Kind: kind}
	if err := t.CreateCategory(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *pgTx) DeleteCategory(ctx context.Context, ownerID, id int64) error {
	return t.execOne(ctx,
		`DELETE FROM categories WHERE id = $1 AND owner_id = $2`, id, ownerID)
}

func (t *pgTx) CountMovementsByCategory(ctx context.Context, ownerID, categoryID int64) (int64, error) {
	var n int64
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM movements WHERE owner_id = $1 AND category_id = $2`,
		ownerID, categoryID).Scan(&n)
	return n, err
}

func (t *pgTx) CreateMovement(ctx context.Context, m *core.Movement) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO movements (owner_id, account_id, category_id, kind, amount, occurred_at, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		m.OwnerID, m.AccountID, m.CategoryID, string(m.Kind), m.Amount.StringFixed(2), m.OccurredAt, m.Description).Scan(&m.ID)
	return mapErr(err)
}

func (t *pgTx) MovementByID(ctx context.Context, ownerID, id int64) (*core.Movement, error) {
	var m core.Movement
	err := t.tx.QueryRow(ctx,
		`SELECT id, owner_id, account_id, category_id, kind, amount::text, occurred_at, description
		 FROM movements WHERE id = $1 AND owner_id = $2`,
		id, ownerID).Scan(&m.ID, &m.OwnerID, &m.AccountID, &m.CategoryID, &m.Kind, &m.Amount, &m.OccurredAt, &m.Description)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (t *pgTx) ListMovements(ctx context.Context, ownerID int64) ([]core.MovementView, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT m.id, m.owner_id, m.account_id, m.category_id, m.kind, m.amount::text, m.occurred_at, m.description,
		        a.name, c.name
		 FROM movements m
		 JOIN accounts a ON a.id = m.account_id
		 JOIN categories c ON c.id = m.category_id
		 WHERE m.owner_id = $1
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

func (t *pgTx) UpdateMovement(ctx context.Context, m *core.Movement) error {
	return t.execOne(ctx,
		`UPDATE movements
		 SET account_id = $1, category_id = $2, kind = $3, amount = $4, occurred_at = $5, description = $6
		 WHERE id = $7 AND owner_id = $8`,
		m.AccountID, m.CategoryID, string(m.Kind), m.Amount.StringFixed(2), m.OccurredAt, m.Description,
		m.ID, m.OwnerID)
}

func (t *pgTx) DeleteMovement(ctx context.Context, ownerID, id int64) error {
	return t.execOne(ctx,
		`DELETE FROM movements WHERE id = $1 AND owner_id = $2`, id, ownerID)
}

func (t *pgTx) CreateGoal(ctx context.Context, g *core.Goal) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO goals (owner_id, name, target, current, start_date, end_date, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		g.OwnerID, g.Name, g.Target.StringFixed(2), g.Current.StringFixed(2), g.StartDate, g.EndDate, g.Active).Scan(&g.ID)
	return mapErr(err)
}

func (t *pgTx) GoalByID(ctx context.Context, ownerID, id int64) (*core.Goal, error) {
	var g core.Goal
	err := t.tx.QueryRow(ctx,
		`SELECT id, owner_id, name, target::text, current::text, start_date, end_date, active
		 FROM goals WHERE id = $1 AND owner_id = $2`,
		id, ownerID).Scan(&g.ID, &g.OwnerID, &g.Name, &g.Target, &g.Current, &g.StartDate, &g.EndDate, &g.Active)
	if err != nil {
		return nil, mapErr(err)
	}
	return &g, nil
}

func (t *pgTx) ListGoals(ctx context.Context, ownerID int64) ([]core.Goal, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, owner_id, name, target::text, current::text, start_date, end_date, active
		 FROM goals WHERE owner_id = $1 ORDER BY id`,
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

func (t *pgTx) UpdateGoalCurrent(ctx context.Context, ownerID, id int64, current decimal.Decimal) error {
	return t.execOne(ctx,
		`UPDATE goals SET current = $1 WHERE id = $2 AND owner_id = $3`,
		current.StringFixed(2), id, ownerID)
}

func (t *pgTx) DeleteGoal(ctx context.Context, ownerID, id int64) error {
	return t.execOne(ctx,
		`DELETE FROM goals WHERE id = $1 AND owner_id = $2`, id, ownerID)
}

func (t *pgTx) CreateContribution(ctx context.Context, c *core.GoalContribution) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO goal_contributions (goal_id, movement_id, amount, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		c.GoalID, c.MovementID, c.Amount.StringFixed(2), c.CreatedAt).Scan(&c.ID)
	return mapErr(err)
}

func (t *pgTx) ContributionByMovement(ctx context.Context, movementID int64) (*core.GoalContribution, error) {
	var c core.GoalContribution
	err := t.tx.QueryRow(ctx,
		`SELECT id, goal_id, movement_id, amount::text, created_at FROM goal_contributions WHERE movement_id = $1`,
		movementID).Scan(&c.ID, &c.GoalID, &c.MovementID, &c.Amount, &c.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (t *pgTx) ContributionsByGoal(ctx context.Context, goalID int64) ([]core.GoalContribution, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, goal_id, movement_id, amount::text, created_at FROM goal_contributions WHERE goal_id = $1 ORDER BY id`,
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

func (t *pgTx) UpdateContributionAmount(ctx context.Context, id int64, amount decimal.Decimal) error {
	return t.execOne(ctx,
		`UPDATE goal_contributions SET amount = $1 WHERE id = $2`,
		amount.StringFixed(2), id)
}

func (t *pgTx) DeleteContribution(ctx context.Context, id int64) error {
	return t.execOne(ctx,
		`DELETE FROM goal_contributions WHERE id = $1`, id)
}

func (t *pgTx) Summary(ctx context.Context, ownerID int64) (core.Summary, error) {
	var summary core.Summary
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount) FILTER (WHERE kind = 'income'), 0)::text,
		        COALESCE(SUM(amount) FILTER (WHERE kind = 'expense'), 0)::text
		 FROM movements WHERE owner_id = $1`,
		ownerID).Scan(&summary.TotalIncome, &summary.TotalExpense)
	if err != nil {
		return core.Summary{}, err
	}
	err = t.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(balance), 0)::text FROM accounts WHERE owner_id = $1`,
		ownerID).Scan(&summary.TotalBalance)
	if err != nil {
		return core.Summary{}, err
	}
	return summary, nil
}

func (t *pgTx) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
