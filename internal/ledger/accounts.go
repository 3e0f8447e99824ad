package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"hucha/internal/core"
)

// adjustmentCategoryName is the income category that books opening balances,
// created lazily per owner.
const adjustmentCategoryName = "Adjustments"

// maxOpeningBalance bounds user-supplied opening balances.
var maxOpeningBalance = decimal.New(999_999_999, 0)

// CreateAccount opens an account. A non-zero opening balance is booked as an
// income movement against the owner's adjustment category, so the balance
// stays reconstructible by replaying movements.
func (s *Service) CreateAccount(ctx context.Context, ownerID int64, name string, openingBalance decimal.Decimal) (*core.Account, error) {
	account := core.Account{
		OwnerID: ownerID,
		Name:    name,
		Balance: decimal.Zero,
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	if openingBalance.IsNegative() || openingBalance.GreaterThan(maxOpeningBalance) {
		return nil, core.ErrInvalidAmount
	}

	err := s.store.Tx(ctx, func(tx StoreTx) error {
		if err := tx.CreateAccount(ctx, &account); err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		if openingBalance.IsZero() {
			return nil
		}

		category, err := tx.FindOrCreateCategory(ctx, ownerID, adjustmentCategoryName, core.KindIncome)
		if err != nil {
			return fmt.Errorf("resolve adjustment category: %w", err)
		}
		mov := core.Movement{
			OwnerID:     ownerID,
			AccountID:   account.ID,
			CategoryID:  category.ID,
			Kind:        core.KindIncome,
			Amount:      openingBalance,
			OccurredAt:  time.Now(),
			Description: "Opening balance",
		}
		if err := tx.CreateMovement(ctx, &mov); err != nil {
			return fmt.Errorf("book opening balance: %w", err)
		}
		account.Balance = applyBalance(account.Balance, mov.Kind, mov.Amount)
		if err := tx.UpdateAccountBalance(ctx, ownerID, account.ID, account.Balance); err != nil {
			return fmt.Errorf("apply opening balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Account created",
		"account_id", account.ID,
		"opening_balance", core.FormatAmount(account.Balance))
	return &account, nil
}

func (s *Service) ListAccounts(ctx context.Context, ownerID int64) ([]core.Account, error) {
	var accounts []core.Account
	err := s.store.Tx(ctx, func(tx StoreTx) error {
		var err error
		accounts, err = tx.ListAccounts(ctx, ownerID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// DeleteAccount refuses to delete an account that movements still reference.
func (s *Service) DeleteAccount(ctx context.Context, ownerID, id int64) error {
	return s.store.Tx(ctx, func(tx StoreTx) error {
		if _, err := tx.AccountByID(ctx, ownerID, id); err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		n, err := tx.CountMovementsByAccount(ctx, ownerID, id)
		if err != nil {
			return fmt.Errorf("count movements: %w", err)
		}
		if n > 0 {
			return core.ErrInvalidOperation
		}
		if err := tx.DeleteAccount(ctx, ownerID, id); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return nil
	})
}

// Summary aggregates the owner's ledger for the dashboard.
func (s *Service) Summary(ctx context.Context, ownerID int64) (core.Summary, error) {
	var summary core.Summary
	err := s.store.Tx(ctx, func(tx StoreTx) error {
		var err error
		summary, err = tx.Summary(ctx, ownerID)
		return err
	})
	if err != nil {
		return core.Summary{}, fmt.Errorf("summary: %w", err)
	}
	return summary, nil
}
