package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"income", KindIncome, true},
		{"Income", KindIncome, true},
		{"EXPENSE", KindExpense, true},
		{" expense ", KindExpense, true},
		{"transfer", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseKind(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMovementValidate(t *testing.T) {
	good := Movement{
		Kind:        KindExpense,
		Amount:      decimal.RequireFromString("10.00"),
		OccurredAt:  time.Now(),
		Description: "groceries",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Movement{
		{Kind: "transfer", Amount: decimal.RequireFromString("1.00")},
		{Kind: KindIncome, Amount: decimal.Zero},
		{Kind: KindIncome, Amount: decimal.RequireFromString("-1.00")},
	}
	for i, m := range bads {
		if err := m.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestGoalValidate(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	good := Goal{
		Name:      "vacation",
		Target:    decimal.RequireFromString("500.00"),
		StartDate: start,
		EndDate:   start.AddDate(1, 0, 0),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Goal{
		{Name: "", Target: decimal.RequireFromString("1.00")},
		{Name: "g", Target: decimal.Zero},
		{Name: "g", Target: decimal.RequireFromString("1.00"), StartDate: start, EndDate: start.AddDate(0, 0, -1)},
	}
	for i, g := range bads {
		if err := g.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestGoalProgress(t *testing.T) {
	g := Goal{
		Target:  decimal.RequireFromString("200.00"),
		Current: decimal.RequireFromString("50.00"),
	}
	if got := g.Progress(); got != 0.25 {
		t.Fatalf("expected 0.25, got %v", got)
	}

	zero := Goal{Target: decimal.Zero, Current: decimal.RequireFromString("10.00")}
	if got := zero.Progress(); got != 0 {
		t.Fatalf("zero target expected 0 progress, got %v", got)
	}
}
