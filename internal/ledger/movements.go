package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"hucha/internal/core"
	"hucha/internal/events"
)

// MovementInput carries the caller-supplied fields for creating or updating
// a movement. Amount must already be a positive two-digit decimal.
type MovementInput struct {
	AccountID   int64
	CategoryID  int64
	Kind        core.Kind
	Amount      decimal.Decimal
	OccurredAt  time.Time
	Description string
}

// CreateMovement books a movement and applies its effect to the account
// balance in one transaction. The returned view carries the account and
// category display names resolved at read time.
func (s *Service) CreateMovement(ctx context.Context, ownerID int64, in MovementInput) (*core.MovementView, error) {
	mov := core.Movement{
		OwnerID:     ownerID,
		AccountID:   in.AccountID,
		CategoryID:  in.CategoryID,
		Kind:        in.Kind,
		Amount:      in.Amount,
		OccurredAt:  in.OccurredAt,
		Description: in.Description,
	}
	if mov.OccurredAt.IsZero() {
		mov.OccurredAt = time.Now()
	}
	if err := mov.Validate(); err != nil {
		return nil, err
	}

	var view *core.MovementView
	err := s.store.Tx(ctx, func(tx StoreTx) error {
		account, err := tx.AccountByID(ctx, ownerID, in.AccountID)
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		category, err := tx.CategoryByID(ctx, ownerID, in.CategoryID)
		if err != nil {
			return fmt.Errorf("load category: %w", err)
		}

		if err := tx.CreateMovement(ctx, &mov); err != nil {
			return fmt.Errorf("create movement: %w", err)
		}

		balance := applyBalance(account.Balance, mov.Kind, mov.Amount)
		if err := tx.UpdateAccountBalance(ctx, ownerID, account.ID, balance); err != nil {
			return fmt.Errorf("apply balance: %w", err)
		}

		view = &core.MovementView{
			Movement:     mov,
			AccountName:  account.Name,
			CategoryName: category.Name,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Movement created",
		"movement_id", view.ID,
		"account_id", view.AccountID,
		"kind", view.Kind,
		"amount", core.FormatAmount(view.Amount))

	ev := events.New(events.MovementCreated, ownerID)
	ev.MovementID = view.ID
	ev.AccountID = view.AccountID
	ev.AccountName = view.AccountName
	ev.CategoryName = view.CategoryName
	ev.Kind = string(view.Kind)
	ev.Amount = core.FormatAmount(view.Amount)
	ev.Description = view.Description
	ev.OccurredAt = view.OccurredAt
	s.publish(ctx, ev)

	return view, nil
}

// UpdateMovement replaces a movement's fields, reversing the old balance
// effect and applying the new one even when only the amount changed. A
// movement linked to a goal contribution cannot flip its kind, and the
// linked goal's total is adjusted by the amount delta.
func (s *Service) UpdateMovement(ctx context.Context, ownerID, id int64, in MovementInput) (*core.MovementView, error) {
	var view *core.MovementView
	err := s.store.Tx(ctx, func(tx StoreTx) error {
		old, err := tx.MovementByID(ctx, ownerID, id)
		if err != nil {
			return fmt.Errorf("load movement: %w", err)
		}

		link, err := tx.ContributionByMovement(ctx, id)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("load contribution link: %w", err)
		}
		if link != nil && in.Kind != old.Kind {
			// Flipping direction would corrupt the goal's running total.
			return core.ErrInvalidOperation
		}

		oldAccount, err := tx.AccountByID(ctx, ownerID, old.AccountID)
		if err != nil {
			return fmt.Errorf("load old account: %w", err)
		}
		reversed := reverseBalance(oldAccount.Balance, old.Kind, old.Amount)
		if err := tx.UpdateAccountBalance(ctx, ownerID, oldAccount.ID, reversed); err != nil {
			return fmt.Errorf("reverse balance: %w", err)
		}

		mov := *old
		mov.AccountID = in.AccountID
		mov.CategoryID = in.CategoryID
		mov.Kind = in.Kind
		mov.Amount = in.Amount
		mov.Description = in.Description
		if !in.OccurredAt.IsZero() {
			mov.OccurredAt = in.OccurredAt
		}
		if err := mov.Validate(); err != nil {
			return err
		}

		// Re-read after the reversal so a same-account update sees the
		// intermediate balance.
		newAccount, err := tx.AccountByID(ctx, ownerID, in.AccountID)
		if err != nil {
			return fmt.Errorf("load new account: %w", err)
		}
		category, err := tx.CategoryByID(ctx, ownerID, in.CategoryID)
		if err != nil {
			return fmt.Errorf("load category: %w", err)
		}

		if err := tx.UpdateMovement(ctx, &mov); err != nil {
			return fmt.Errorf("update movement: %w", err)
		}

		balance := applyBalance(newAccount.Balance, mov.Kind, mov.Amount)
		if err := tx.UpdateAccountBalance(ctx, ownerID, newAccount.ID, balance); err != nil {
			return fmt.Errorf("apply balance: %w", err)
		}

		if link != nil {
			goal, err := tx.GoalByID(ctx, ownerID, link.GoalID)
			if err != nil {
				return fmt.Errorf("load goal: %w", err)
			}
			delta := mov.Amount.Sub(link.Amount)
			current := s.clampGoalCurrent(ctx, goal.ID, goal.Current.Add(delta))
			if err := tx.UpdateGoalCurrent(ctx, ownerID, goal.ID, current); err != nil {
				return fmt.Errorf("adjust goal total: %w", err)
			}
			if err := tx.UpdateContributionAmount(ctx, link.ID, mov.Amount); err != nil {
				return fmt.Errorf("adjust contribution: %w", err)
			}
		}

		view = &core.MovementView{
			Movement:     mov,
			AccountName:  newAccount.Name,
			CategoryName: category.Name,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Movement updated",
		"movement_id", view.ID,
		"account_id", view.AccountID,
		"kind", view.Kind,
		"amount", core.FormatAmount(view.Amount))

	ev := events.New(events.MovementUpdated, ownerID)
	ev.MovementID = view.ID
	ev.AccountID = view.AccountID
	ev.AccountName = view.AccountName
	ev.CategoryName = view.CategoryName
	ev.Kind = string(view.Kind)
	ev.Amount = core.FormatAmount(view.Amount)
	ev.Description = view.Description
	ev.OccurredAt = view.OccurredAt
	s.publish(ctx, ev)

	return view, nil
}

// DeleteMovement removes a movement, reverses its balance effect, and when
// the movement funds a goal, unwinds the contribution first.
func (s *Service) DeleteMovement(ctx context.Context, ownerID, id int64) error {
	var deleted core.Movement
	err := s.store.Tx(ctx, func(tx StoreTx) error {
		mov, err := tx.MovementByID(ctx, ownerID, id)
		if err != nil {
			return fmt.Errorf("load movement: %w", err)
		}

		link, err := tx.ContributionByMovement(ctx, id)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("load contribution link: %w", err)
		}
		if link != nil {
			goal, err := tx.GoalByID(ctx, ownerID, link.GoalID)
			if err != nil {
				return fmt.Errorf("load goal: %w", err)
			}
			current := s.clampGoalCurrent(ctx, goal.ID, goal.Current.Sub(link.Amount))
			if err := tx.UpdateGoalCurrent(ctx, ownerID, goal.ID, current); err != nil {
				return fmt.Errorf("unwind goal total: %w", err)
			}
			if err := tx.DeleteContribution(ctx, link.ID); err != nil {
				return fmt.Errorf("delete contribution: %w", err)
			}
		}

		account, err := tx.AccountByID(ctx, ownerID, mov.AccountID)
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		balance := reverseBalance(account.Balance, mov.Kind, mov.Amount)
		if err := tx.UpdateAccountBalance(ctx, ownerID, account.ID, balance); err != nil {
			return fmt.Errorf("reverse balance: %w", err)
		}

		if err := tx.DeleteMovement(ctx, ownerID, id); err != nil {
			return fmt.Errorf("delete movement: %w", err)
		}
		deleted = *mov
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Movement deleted",
		"movement_id", deleted.ID,
		"account_id", deleted.AccountID,
		"amount", core.FormatAmount(deleted.Amount))

	ev := events.New(events.MovementDeleted, ownerID)
	ev.MovementID = deleted.ID
	ev.AccountID = deleted.AccountID
	ev.Kind = string(deleted.Kind)
	ev.Amount = core.FormatAmount(deleted.Amount)
	ev.Description = deleted.Description
	s.publish(ctx, ev)

	return nil
}

// ListMovements returns the owner's movements newest first, with display
// names attached.
func (s *Service) ListMovements(ctx context.Context, ownerID int64) ([]core.MovementView, error) {
	var views []core.MovementView
	err := s.store.Tx(ctx, func(tx StoreTx) error {
		var err error
		views, err = tx.ListMovements(ctx, ownerID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return views, nil
}

// clampGoalCurrent floors a goal total at zero. The clamp masks an upstream
// inconsistency (for example a double reversal), so it logs when it fires.
func (s *Service) clampGoalCurrent(ctx context.Context, goalID int64, current decimal.Decimal) decimal.Decimal {
	if current.IsNegative() {
		slog.WarnContext(ctx, "Goal total clamped at zero",
			"goal_id", goalID,
			"would_be", core.FormatAmount(current))
		return decimal.Zero
	}
	return current
}
