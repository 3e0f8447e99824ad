package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"hucha/internal/core"
	"hucha/internal/events"
)

// mirrorCategoryPrefix derives the expense category that keeps goal funding
// visible in normal movement listings. The name is deterministic per goal so
// repeat contributions reuse one category.
const mirrorCategoryPrefix = "Goal: "

// GoalInput carries the caller-supplied fields for creating a goal.
type GoalInput struct {
	Name      string
	Target    decimal.Decimal
	StartDate time.Time
	EndDate   time.Time
}

// ContributionResult bundles everything a contribution touches.
type ContributionResult struct {
	Goal         core.Goal
	Movement     core.MovementView
	Contribution core.GoalContribution
}

// CreateGoal registers a savings goal. The current amount starts at zero and
// the end date defaults to one year after the start.
func (s *Service) CreateGoal(ctx context.Context, ownerID int64, in GoalInput) (*core.Goal, error) {
	goal := core.Goal{
		OwnerID:   ownerID,
		Name:      in.Name,
		Target:    in.Target,
		Current:   decimal.Zero,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Active:    true,
	}
	if goal.StartDate.IsZero() {
		goal.StartDate = time.Now()
	}
	if goal.EndDate.IsZero() {
		goal.EndDate = goal.StartDate.Add(core.DefaultGoalDuration)
	}
	if err := goal.Validate(); err != nil {
		return nil, err
	}

	err := s.store.Tx(ctx, func(tx StoreTx) error {
		return tx.CreateGoal(ctx, &goal)
	})
	if err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}

	slog.InfoContext(ctx, "Goal created",
		"goal_id", goal.ID,
		"target", core.FormatAmount(goal.Target))
	return &goal, nil
}

// ListGoals returns the owner's goals. Progress is derived by the caller via
// Goal.Progress, never read from storage.
func (s *Service) ListGoals(ctx context.Context, ownerID int64) ([]core.Goal, error) {
	var goals []core.Goal
	err := s.store.Tx(ctx, func(tx StoreTx) error {
		var err error
		goals, err = tx.ListGoals(ctx, ownerID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

// Contribute funds a goal from an account. Atomically it resolves the
// goal's mirror expense category, books an expense movement on the source
// account, decrements the balance, increments the goal total, and records
// the contribution linking movement and goal.
//
// Preconditions are checked in order, first failure wins: goal ownership,
// account ownership, positive amount, sufficient balance.
func (s *Service) Contribute(ctx context.Context, ownerID, goalID, accountID int64, amount decimal.Decimal) (*ContributionResult, error) {
	var (
		result  ContributionResult
		reached bool
	)
	err := s.store.Tx(ctx, func(tx StoreTx) error {
		goal, err := tx.GoalByID(ctx, ownerID, goalID)
		if err != nil {
			return fmt.Errorf("load goal: %w", err)
		}
		account, err := tx.AccountByID(ctx, ownerID, accountID)
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		if !amount.IsPositive() {
			return core.ErrInvalidAmount
		}
		if account.Balance.LessThan(amount) {
			return core.ErrInsufficientFunds
		}

		category, err := tx.FindOrCreateCategory(ctx, ownerID, mirrorCategoryPrefix+goal.Name, core.KindExpense)
		if err != nil {
			return fmt.Errorf("resolve mirror category: %w", err)
		}

		mov := core.Movement{
			OwnerID:     ownerID,
			AccountID:   account.ID,
			CategoryID:  category.ID,
			Kind:        core.KindExpense,
			Amount:      amount,
			OccurredAt:  time.Now(),
			Description: fmt.Sprintf("Contribution to goal %q", goal.Name),
		}
		if err := tx.CreateMovement(ctx, &mov); err != nil {
			return fmt.Errorf("create movement: %w", err)
		}

		balance := applyBalance(account.Balance, mov.Kind, mov.Amount)
		if err := tx.UpdateAccountBalance(ctx, ownerID, account.ID, balance); err != nil {
			return fmt.Errorf("apply balance: %w", err)
		}

		before := goal.Current
		goal.Current = goal.Current.Add(amount)
		if err := tx.UpdateGoalCurrent(ctx, ownerID, goal.ID, goal.Current); err != nil {
			return fmt.Errorf("increment goal total: %w", err)
		}
		reached = before.LessThan(goal.Target) && !goal.Current.LessThan(goal.Target)

		contribution := core.GoalContribution{
			GoalID:     goal.ID,
			MovementID: mov.ID,
			Amount:     amount,
			CreatedAt:  mov.OccurredAt,
		}
		if err := tx.CreateContribution(ctx, &contribution); err != nil {
			return fmt.Errorf("create contribution: %w", err)
		}

		result = ContributionResult{
			Goal: *goal,
			Movement: core.MovementView{
				Movement:     mov,
				AccountName:  account.Name,
				CategoryName: category.Name,
			},
			Contribution: contribution,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Goal funded",
		"goal_id", result.Goal.ID,
		"account_id", accountID,
		"amount", core.FormatAmount(amount),
		"current", core.FormatAmount(result.Goal.Current))

	ev := events.New(events.GoalContributed, ownerID)
	ev.GoalID = result.Goal.ID
	ev.GoalName = result.Goal.Name
	ev.MovementID = result.Movement.ID
	ev.AccountID = accountID
	ev.AccountName = result.Movement.AccountName
	ev.Amount = core.FormatAmount(amount)
	s.publish(ctx, ev)

	if reached {
		rev := events.New(events.GoalReached, ownerID)
		rev.GoalID = result.Goal.ID
		rev.GoalName = result.Goal.Name
		rev.Amount = core.FormatAmount(result.Goal.Current)
		s.publish(ctx, rev)
	}

	return &result, nil
}

// DeleteGoal removes a goal and its contribution records. The movements that
// funded the goal stay in the ledger as plain expense movements, so account
// balances are untouched.
func (s *Service) DeleteGoal(ctx context.Context, ownerID, id int64) error {
	var deleted core.Goal
	err := s.store.Tx(ctx, func(tx StoreTx) error {
		goal, err := tx.GoalByID(ctx, ownerID, id)
		if err != nil {
			return fmt.Errorf("load goal: %w", err)
		}

		contributions, err := tx.ContributionsByGoal(ctx, goal.ID)
		if err != nil {
			return fmt.Errorf("list contributions: %w", err)
		}
		for _, c := range contributions {
			if err := tx.DeleteContribution(ctx, c.ID); err != nil {
				return fmt.Errorf("delete contribution: %w", err)
			}
		}

		if err := tx.DeleteGoal(ctx, ownerID, goal.ID); err != nil {
			return fmt.Errorf("delete goal: %w", err)
		}
		deleted = *goal
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Goal deleted",
		"goal_id", deleted.ID,
		"name", deleted.Name)

	ev := events.New(events.GoalDeleted, ownerID)
	ev.GoalID = deleted.ID
	ev.GoalName = deleted.Name
	s.publish(ctx, ev)

	return nil
}
