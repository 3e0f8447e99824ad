package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"hucha/internal/core"
	"hucha/internal/events"
)

// Ports for outbound adapters.
type (
	// Store opens one transaction per lifecycle operation. Every mutation a
	// ledger operation performs runs inside a single Tx callback; the store
	// commits when the callback returns nil and rolls back otherwise.
	Store interface {
		Tx(ctx context.Context, fn func(StoreTx) error) error
	}

	// StoreTx is the transactional surface the ledger services operate on.
	// Lookups are always filtered by owner: a row belonging to another owner
	// reports core.ErrNotFound, never a permission error.
	StoreTx interface {
		CreateUser(ctx context.Context, u *core.User) error
		UserByToken(ctx context.Context, token string) (*core.User, error)

		CreateAccount(ctx context.Context, a *core.Account) error
		AccountByID(ctx context.Context, ownerID, id int64) (*core.Account, error)
		ListAccounts(ctx context.Context, ownerID int64) ([]core.Account, error)
		UpdateAccountBalance(ctx context.Context, ownerID, id int64, balance decimal.Decimal) error
		DeleteAccount(ctx context.Context, ownerID, id int64) error
		CountMovementsByAccount(ctx context.Context, ownerID, accountID int64) (int64, error)

		CreateCategory(ctx context.Context, c *core.Category) error
		CategoryByID(ctx context.Context, ownerID, id int64) (*core.Category, error)
		ListCategories(ctx context.Context, ownerID int64) ([]core.Category, error)
		// FindOrCreateCategory resolves the owner's category by name,
		// creating it with the given kind when absent. Idempotent; backed by
		// a unique (owner, name) constraint.
		FindOrCreateCategory(ctx context.Context, ownerID int64, name string, kind core.Kind) (*core.Category, error)
		DeleteCategory(ctx context.Context, ownerID, id int64) error
		CountMovementsByCategory(ctx context.Context, ownerID, categoryID int64) (int64, error)

		CreateMovement(ctx context.Context, m *core.Movement) error
		MovementByID(ctx context.Context, ownerID, id int64) (*core.Movement, error)
		ListMovements(ctx context.Context, ownerID int64) ([]core.MovementView, error)
		UpdateMovement(ctx context.Context, m *core.Movement) error
		DeleteMovement(ctx context.Context, ownerID, id int64) error

		CreateGoal(ctx context.Context, g *core.Goal) error
		GoalByID(ctx context.Context, ownerID, id int64) (*core.Goal, error)
		ListGoals(ctx context.Context, ownerID int64) ([]core.Goal, error)
		UpdateGoalCurrent(ctx context.Context, ownerID, id int64, current decimal.Decimal) error
		DeleteGoal(ctx context.Context, ownerID, id int64) error

		CreateContribution(ctx context.Context, c *core.GoalContribution) error
		ContributionByMovement(ctx context.Context, movementID int64) (*core.GoalContribution, error)
		ContributionsByGoal(ctx context.Context, goalID int64) ([]core.GoalContribution, error)
		UpdateContributionAmount(ctx context.Context, id int64, amount decimal.Decimal) error
		DeleteContribution(ctx context.Context, id int64) error

		Summary(ctx context.Context, ownerID int64) (core.Summary, error)
	}

	// Publisher emits ledger events after a transaction commits. Publishing
	// is best-effort: failures are logged, never surfaced to the caller.
	Publisher interface {
		Publish(ctx context.Context, ev events.Event) error
	}
)
