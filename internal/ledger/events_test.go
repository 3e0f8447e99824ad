package ledger_test

import (
	"context"
	"sync"
	"testing"

	"hucha/internal/events"
	"hucha/internal/ledger"
	"hucha/internal/storage/memory"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) byType(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func TestContributionEvents(t *testing.T) {
	pub := &capturePublisher{}
	svc := ledger.NewService(memory.New(), pub)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, owner, "Checking", amt(t, "1000.00"))
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	goal, err := svc.CreateGoal(ctx, owner, ledger.GoalInput{
		Name:   "Bike",
		Target: amt(t, "300.00"),
	})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}

	if _, err := svc.Contribute(ctx, owner, goal.ID, account.ID, amt(t, "100.00")); err != nil {
		t.Fatalf("first contribute: %v", err)
	}
	if got := pub.byType(events.GoalReached); len(got) != 0 {
		t.Fatalf("goal not reached yet, got %d reached events", len(got))
	}

	if _, err := svc.Contribute(ctx, owner, goal.ID, account.ID, amt(t, "200.00")); err != nil {
		t.Fatalf("second contribute: %v", err)
	}

	contributed := pub.byType(events.GoalContributed)
	if len(contributed) != 2 {
		t.Fatalf("expected 2 contributed events, got %d", len(contributed))
	}
	if contributed[0].GoalName != "Bike" || contributed[0].Amount != "100.00" {
		t.Fatalf("unexpected event payload: %+v", contributed[0])
	}

	reached := pub.byType(events.GoalReached)
	if len(reached) != 1 {
		t.Fatalf("expected 1 reached event, got %d", len(reached))
	}
	if reached[0].Amount != "300.00" {
		t.Fatalf("reached event amount %s, expected 300.00", reached[0].Amount)
	}
}

func TestMovementEventsCarryNames(t *testing.T) {
	pub := &capturePublisher{}
	svc := ledger.NewService(memory.New(), pub)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, owner, "Checking", amt(t, "50.00"))
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	category, err := svc.CreateCategory(ctx, owner, "Rent", "expense")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	if _, err := svc.CreateMovement(ctx, owner, ledger.MovementInput{
		AccountID:   account.ID,
		CategoryID:  category.ID,
		Kind:        "expense",
		Amount:      amt(t, "25.00"),
		Description: "august rent",
	}); err != nil {
		t.Fatalf("create movement: %v", err)
	}

	created := pub.byType(events.MovementCreated)
	if len(created) != 1 {
		t.Fatalf("expected 1 created event, got %d", len(created))
	}
	ev := created[0]
	if ev.AccountName != "Checking" || ev.CategoryName != "Rent" || ev.Amount != "25.00" {
		t.Fatalf("unexpected event payload: %+v", ev)
	}
}
