package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"hucha/internal/core"
	"hucha/internal/ledger"
	"hucha/internal/storage/memory"
)

const owner int64 = 1

func newService(t *testing.T) (*ledger.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return ledger.NewService(store, nil), store
}

func amt(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad amount %q: %v", s, err)
	}
	return d
}

func accountBalance(t *testing.T, store *memory.Store, id int64) decimal.Decimal {
	t.Helper()
	var balance decimal.Decimal
	err := store.Tx(context.Background(), func(tx ledger.StoreTx) error {
		a, err := tx.AccountByID(context.Background(), owner, id)
		if err != nil {
			return err
		}
		balance = a.Balance
		return nil
	})
	if err != nil {
		t.Fatalf("load account %d: %v", id, err)
	}
	return balance
}

func goalCurrent(t *testing.T, store *memory.Store, id int64) decimal.Decimal {
	t.Helper()
	var current decimal.Decimal
	err := store.Tx(context.Background(), func(tx ledger.StoreTx) error {
		g, err := tx.GoalByID(context.Background(), owner, id)
		if err != nil {
			return err
		}
		current = g.Current
		return nil
	})
	if err != nil {
		t.Fatalf("load goal %d: %v", id, err)
	}
	return current
}

func mustEqual(t *testing.T, got, want decimal.Decimal, what string) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("%s: expected %s, got %s", what, want.StringFixed(2), got.StringFixed(2))
	}
}

// seed opens an account with the given balance and a goal with target 500.
func seed(t *testing.T, svc *ledger.Service, balance string) (accountID, goalID, categoryID int64) {
	t.Helper()
	ctx := context.Background()
	account, err := svc.CreateAccount(ctx, owner, "Checking", amt(t, balance))
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	goal, err := svc.CreateGoal(ctx, owner, ledger.GoalInput{
		Name:   "Vacation",
		Target: amt(t, "500.00"),
	})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	category, err := svc.CreateCategory(ctx, owner, "Groceries", core.KindExpense)
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	return account.ID, goal.ID, category.ID
}

func TestContributeSuccess(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	accountID, goalID, _ := seed(t, svc, "100.00")

	res, err := svc.Contribute(ctx, owner, goalID, accountID, amt(t, "40.00"))
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}

	mustEqual(t, accountBalance(t, store, accountID), amt(t, "60.00"), "account balance")
	mustEqual(t, goalCurrent(t, store, goalID), amt(t, "40.00"), "goal total")

	if res.Movement.Kind != core.KindExpense {
		t.Fatalf("expected expense movement, got %s", res.Movement.Kind)
	}
	mustEqual(t, res.Movement.Amount, amt(t, "40.00"), "movement amount")
	mustEqual(t, res.Contribution.Amount, amt(t, "40.00"), "contribution amount")

	// Exactly one contribution links the movement to the goal.
	err = store.Tx(ctx, func(tx ledger.StoreTx) error {
		link, err := tx.ContributionByMovement(ctx, res.Movement.ID)
		if err != nil {
			return err
		}
		if link.GoalID != goalID {
			t.Fatalf("contribution linked to goal %d, expected %d", link.GoalID, goalID)
		}
		all, err := tx.ContributionsByGoal(ctx, goalID)
		if err != nil {
			return err
		}
		if len(all) != 1 {
			t.Fatalf("expected 1 contribution, got %d", len(all))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("inspect contributions: %v", err)
	}
}

func TestContributeInsufficientFunds(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	accountID, goalID, _ := seed(t, svc, "10.00")

	before, err := svc.ListMovements(ctx, owner)
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}

	_, err = svc.Contribute(ctx, owner, goalID, accountID, amt(t, "40.00"))
	if !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// Nothing moved.
	mustEqual(t, accountBalance(t, store, accountID), amt(t, "10.00"), "account balance")
	mustEqual(t, goalCurrent(t, store, goalID), decimal.Zero, "goal total")
	after, err := svc.ListMovements(ctx, owner)
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("expected %d movements, got %d", len(before), len(after))
	}
}

func TestContributePreconditionOrder(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	accountID, goalID, _ := seed(t, svc, "100.00")

	t.Run("missing goal wins over bad amount", func(t *testing.T) {
		_, err := svc.Contribute(ctx, owner, goalID+999, accountID, decimal.Zero)
		if !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("missing account wins over bad amount", func(t *testing.T) {
		_, err := svc.Contribute(ctx, owner, goalID, accountID+999, decimal.Zero)
		if !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := svc.Contribute(ctx, owner, goalID, accountID, decimal.Zero)
		if !errors.Is(err, core.ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("cross-owner goal reads as not found", func(t *testing.T) {
		_, err := svc.Contribute(ctx, owner+1, goalID, accountID, amt(t, "1.00"))
		if !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDeleteLinkedMovement(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	accountID, goalID, _ := seed(t, svc, "100.00")

	res, err := svc.Contribute(ctx, owner, goalID, accountID, amt(t, "40.00"))
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}

	if err := svc.DeleteMovement(ctx, owner, res.Movement.ID); err != nil {
		t.Fatalf("delete movement: %v", err)
	}

	mustEqual(t, accountBalance(t, store, accountID), amt(t, "100.00"), "account balance")
	mustEqual(t, goalCurrent(t, store, goalID), decimal.Zero, "goal total")

	err = store.Tx(ctx, func(tx ledger.StoreTx) error {
		_, err := tx.ContributionByMovement(ctx, res.Movement.ID)
		return err
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected contribution gone, got %v", err)
	}
}

func TestKindFlipRejected(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	accountID, goalID, _ := seed(t, svc, "100.00")

	res, err := svc.Contribute(ctx, owner, goalID, accountID, amt(t, "40.00"))
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}

	_, err = svc.UpdateMovement(ctx, owner, res.Movement.ID, ledger.MovementInput{
		AccountID:  res.Movement.AccountID,
		CategoryID: res.Movement.CategoryID,
		Kind:       core.KindIncome,
		Amount:     res.Movement.Amount,
	})
	if !errors.Is(err, core.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}

	// State unchanged.
	mustEqual(t, accountBalance(t, store, accountID), amt(t, "60.00"), "account balance")
	mustEqual(t, goalCurrent(t, store, goalID), amt(t, "40.00"), "goal total")
}

func TestUpdateLinkedAmount(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	accountID, goalID, _ := seed(t, svc, "100.00")

	res, err := svc.Contribute(ctx, owner, goalID, accountID, amt(t, "40.00"))
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}

	_, err = svc.UpdateMovement(ctx, owner, res.Movement.ID, ledger.MovementInput{
		AccountID:  res.Movement.AccountID,
		CategoryID: res.Movement.CategoryID,
		Kind:       core.KindExpense,
		Amount:     amt(t, "25.00"),
	})
	if err != nil {
		t.Fatalf("update movement: %v", err)
	}

	mustEqual(t, accountBalance(t, store, accountID), amt(t, "75.00"), "account balance")
	mustEqual(t, goalCurrent(t, store, goalID), amt(t, "25.00"), "goal total")
}

func TestUpdateIdempotence(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	accountID, goalID, _ := seed(t, svc, "100.00")

	res, err := svc.Contribute(ctx, owner, goalID, accountID, amt(t, "40.00"))
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}

	_, err = svc.UpdateMovement(ctx, owner, res.Movement.ID, ledger.MovementInput{
		AccountID:   res.Movement.AccountID,
		CategoryID:  res.Movement.CategoryID,
		Kind:        res.Movement.Kind,
		Amount:      res.Movement.Amount,
		Description: res.Movement.Description,
	})
	if err != nil {
		t.Fatalf("update movement: %v", err)
	}

	mustEqual(t, accountBalance(t, store, accountID), amt(t, "60.00"), "account balance")
	mustEqual(t, goalCurrent(t, store, goalID), amt(t, "40.00"), "goal total")
}

func TestMovementRoundTrip(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	accountID, _, categoryID := seed(t, svc, "100.00")

	view, err := svc.CreateMovement(ctx, owner, ledger.MovementInput{
		AccountID:   accountID,
		CategoryID:  categoryID,
		Kind:        core.KindExpense,
		Amount:      amt(t, "12.34"),
		Description: "groceries",
	})
	if err != nil {
		t.Fatalf("create movement: %v", err)
	}
	mustEqual(t, accountBalance(t, store, accountID), amt(t, "87.66"), "balance after create")

	if err := svc.DeleteMovement(ctx, owner, view.ID); err != nil {
		t.Fatalf("delete movement: %v", err)
	}
	mustEqual(t, accountBalance(t, store, accountID), amt(t, "100.00"), "balance after round trip")
}

// The replay invariant: after any sequence of lifecycle operations the
// balance equals the signed sum of the currently-active movements.
func TestBalanceReplayInvariant(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	accountID, goalID, categoryID := seed(t, svc, "100.00")

	income, err := svc.CreateMovement(ctx, owner, ledger.MovementInput{
		AccountID:  accountID,
		CategoryID: categoryID,
		Kind:       core.KindIncome,
		Amount:     amt(t, "55.50"),
	})
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	expense, err := svc.CreateMovement(ctx, owner, ledger.MovementInput{
		AccountID:  accountID,
		CategoryID: categoryID,
		Kind:       core.KindExpense,
		Amount:     amt(t, "20.00"),
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if _, err := svc.Contribute(ctx, owner, goalID, accountID, amt(t, "40.00")); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if _, err := svc.UpdateMovement(ctx, owner, expense.ID, ledger.MovementInput{
		AccountID:  accountID,
		CategoryID: categoryID,
		Kind:       core.KindExpense,
		Amount:     amt(t, "35.00"),
	}); err != nil {
		t.Fatalf("update expense: %v", err)
	}
	if err := svc.DeleteMovement(ctx, owner, income.ID); err != nil {
		t.Fatalf("delete income: %v", err)
	}

	movements, err := svc.ListMovements(ctx, owner)
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	replayed := decimal.Zero
	for _, m := range movements {
		if m.AccountID != accountID {
			continue
		}
		replayed = replayed.Add(core.Signed(m.Kind, m.Amount))
	}
	mustEqual(t, accountBalance(t, store, accountID), replayed, "replayed balance")
}

func TestGoalTotalClampLogsAndFloors(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	accountID, goalID, _ := seed(t, svc, "100.00")

	res, err := svc.Contribute(ctx, owner, goalID, accountID, amt(t, "40.00"))
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}

	// Simulate an upstream inconsistency: the stored total is below the
	// contribution about to be reversed.
	err = store.Tx(ctx, func(tx ledger.StoreTx) error {
		return tx.UpdateGoalCurrent(ctx, owner, goalID, amt(t, "5.00"))
	})
	if err != nil {
		t.Fatalf("force goal total: %v", err)
	}

	if err := svc.DeleteMovement(ctx, owner, res.Movement.ID); err != nil {
		t.Fatalf("delete movement: %v", err)
	}
	mustEqual(t, goalCurrent(t, store, goalID), decimal.Zero, "clamped goal total")
}

func TestDeleteGoalCascades(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	accountID, goalID, _ := seed(t, svc, "100.00")

	res, err := svc.Contribute(ctx, owner, goalID, accountID, amt(t, "40.00"))
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}

	if err := svc.DeleteGoal(ctx, owner, goalID); err != nil {
		t.Fatalf("delete goal: %v", err)
	}

	// Contribution is gone, the funding movement survives, the account
	// balance keeps reflecting the spent money.
	err = store.Tx(ctx, func(tx ledger.StoreTx) error {
		if _, err := tx.ContributionByMovement(ctx, res.Movement.ID); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected contribution gone, got %v", err)
		}
		if _, err := tx.MovementByID(ctx, owner, res.Movement.ID); err != nil {
			t.Fatalf("expected movement to survive: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	mustEqual(t, accountBalance(t, store, accountID), amt(t, "60.00"), "account balance")
}

func TestMirrorCategoryReused(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	accountID, goalID, _ := seed(t, svc, "100.00")

	if _, err := svc.Contribute(ctx, owner, goalID, accountID, amt(t, "10.00")); err != nil {
		t.Fatalf("first contribute: %v", err)
	}
	if _, err := svc.Contribute(ctx, owner, goalID, accountID, amt(t, "15.00")); err != nil {
		t.Fatalf("second contribute: %v", err)
	}

	categories, err := svc.ListCategories(ctx, owner)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	var mirrors int
	for _, c := range categories {
		if c.Name == "Goal: Vacation" {
			mirrors++
			if c.Kind != core.KindExpense {
				t.Fatalf("mirror category kind %s, expected expense", c.Kind)
			}
		}
	}
	if mirrors != 1 {
		t.Fatalf("expected exactly one mirror category, got %d", mirrors)
	}
}

func TestCrossOwnerMovementReadsAsNotFound(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	accountID, _, categoryID := seed(t, svc, "100.00")

	view, err := svc.CreateMovement(ctx, owner, ledger.MovementInput{
		AccountID:  accountID,
		CategoryID: categoryID,
		Kind:       core.KindExpense,
		Amount:     amt(t, "5.00"),
	})
	if err != nil {
		t.Fatalf("create movement: %v", err)
	}

	if err := svc.DeleteMovement(ctx, owner+1, view.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.UpdateMovement(ctx, owner+1, view.ID, ledger.MovementInput{
		AccountID:  accountID,
		CategoryID: categoryID,
		Kind:       core.KindExpense,
		Amount:     amt(t, "5.00"),
	}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpeningBalanceBooksMovement(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, owner, "Savings", amt(t, "250.00"))
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	mustEqual(t, account.Balance, amt(t, "250.00"), "opening balance")

	movements, err := svc.ListMovements(ctx, owner)
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected 1 opening movement, got %d", len(movements))
	}
	m := movements[0]
	if m.Kind != core.KindIncome || m.CategoryName != "Adjustments" {
		t.Fatalf("unexpected opening movement: kind=%s category=%s", m.Kind, m.CategoryName)
	}
	mustEqual(t, m.Amount, amt(t, "250.00"), "opening movement amount")
}

func TestDeleteAccountBlockedByMovements(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	accountID, _, _ := seed(t, svc, "100.00")

	if err := svc.DeleteAccount(ctx, owner, accountID); !errors.Is(err, core.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}

	empty, err := svc.CreateAccount(ctx, owner, "Empty", decimal.Zero)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := svc.DeleteAccount(ctx, owner, empty.ID); err != nil {
		t.Fatalf("delete empty account: %v", err)
	}
}

func TestDeleteCategoryBlockedByMovements(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	accountID, _, categoryID := seed(t, svc, "100.00")

	if _, err := svc.CreateMovement(ctx, owner, ledger.MovementInput{
		AccountID:  accountID,
		CategoryID: categoryID,
		Kind:       core.KindExpense,
		Amount:     amt(t, "5.00"),
	}); err != nil {
		t.Fatalf("create movement: %v", err)
	}

	if err := svc.DeleteCategory(ctx, owner, categoryID); !errors.Is(err, core.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	accountID, _, categoryID := seed(t, svc, "100.00")

	if _, err := svc.CreateMovement(ctx, owner, ledger.MovementInput{
		AccountID:  accountID,
		CategoryID: categoryID,
		Kind:       core.KindExpense,
		Amount:     amt(t, "30.00"),
	}); err != nil {
		t.Fatalf("create movement: %v", err)
	}

	summary, err := svc.Summary(ctx, owner)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	mustEqual(t, summary.TotalIncome, amt(t, "100.00"), "total income")
	mustEqual(t, summary.TotalExpense, amt(t, "30.00"), "total expense")
	mustEqual(t, summary.TotalBalance, amt(t, "70.00"), "total balance")
}
