package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// DefaultGoalDuration is applied when a goal is created without an end date.
const DefaultGoalDuration = 365 * 24 * time.Hour

type (
	// Kind is the direction of a movement or category. Amounts are always
	// stored positive; the kind carries the sign.
	Kind string

	User struct {
		ID        int64
		Name      string
		Email     string
		APIToken  string
		CreatedAt time.Time
	}

	Account struct {
		ID      int64
		OwnerID int64
		Name    string
		Balance decimal.Decimal
	}

	Category struct {
		ID      int64
		OwnerID int64
		Name    string
		Kind    Kind
	}

	Movement struct {
		ID          int64
		OwnerID     int64
		AccountID   int64
		CategoryID  int64
		Kind        Kind
		Amount      decimal.Decimal
		OccurredAt  time.Time
		Description string
	}

	// MovementView is a Movement enriched with display names resolved at
	// read time. The names are never persisted on the movement row.
	MovementView struct {
		Movement
		AccountName  string
		CategoryName string
	}

	Goal struct {
		ID        int64
		OwnerID   int64
		Name      string
		Target    decimal.Decimal
		Current   decimal.Decimal
		StartDate time.Time
		EndDate   time.Time
		Active    bool
	}

	// GoalContribution links exactly one movement to a goal with the amount
	// allocated to it.
	GoalContribution struct {
		ID         int64
		GoalID     int64
		MovementID int64
		Amount     decimal.Decimal
		CreatedAt  time.Time
	}

	// Summary aggregates an owner's ledger for the dashboard.
	Summary struct {
		TotalIncome  decimal.Decimal
		TotalExpense decimal.Decimal
		TotalBalance decimal.Decimal
	}
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrConflict          = errors.New("conflict")

	ErrInvalidKind = errors.New("invalid kind")
	ErrEmptyName   = errors.New("empty name")
)

// ParseKind normalizes a kind string. Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(KindIncome):
		return KindIncome, nil
	case string(KindExpense):
		return KindExpense, nil
	}
	return "", ErrInvalidKind
}

func (k Kind) Validate() error {
	if k != KindIncome && k != KindExpense {
		return ErrInvalidKind
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return c.Kind.Validate()
}

func (m Movement) Validate() error {
	if err := m.Kind.Validate(); err != nil {
		return err
	}
	if !m.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if len(m.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if len(g.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if !g.Target.IsPositive() {
		return ErrInvalidAmount
	}
	if !g.EndDate.IsZero() && g.EndDate.Before(g.StartDate) {
		return errors.New("end date must be after start date")
	}
	return nil
}

// Progress reports how far the goal has come toward its target, as a ratio.
// A zero target reports zero progress. Derived on read, never stored.
func (g Goal) Progress() float64 {
	if !g.Target.IsPositive() {
		return 0
	}
	ratio, _ := g.Current.Div(g.Target).Float64()
	return ratio
}
