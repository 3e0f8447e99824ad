// Command hucha-seed fills the configured backend with demo data: one user,
// a couple of accounts, a category set, a month of movements, and a goal
// with a few contributions. The user's API token is printed so the seeded
// ledger is immediately usable against the API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/bxcodec/faker/v3"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"hucha/internal/config"
	"hucha/internal/core"
	"hucha/internal/ledger"
	"hucha/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	numMovements := flag.Int("movements", 30, "number of movements to generate")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store, cleanup, err := storage.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize storage backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if cleanup != nil {
		defer func() { _ = cleanup() }()
	}

	svc := ledger.NewService(store, nil)

	if err := seed(ctx, svc, *numMovements); err != nil {
		logger.Error("Seeding failed", "error", err)
		os.Exit(1)
	}
}

func seed(ctx context.Context, svc *ledger.Service, numMovements int) error {
	user, err := svc.Register(ctx, faker.Name(), faker.Email())
	if err != nil {
		return fmt.Errorf("register user: %w", err)
	}

	checking, err := svc.CreateAccount(ctx, user.ID, "Checking", decimal.New(2_000, 0))
	if err != nil {
		return fmt.Errorf("create checking account: %w", err)
	}
	savings, err := svc.CreateAccount(ctx, user.ID, "Savings", decimal.New(5_000, 0))
	if err != nil {
		return fmt.Errorf("create savings account: %w", err)
	}

	type seedCategory struct {
		name string
		kind core.Kind
	}
	seedCategories := []seedCategory{
		{"Salary", core.KindIncome},
		{"Groceries", core.KindExpense},
		{"Rent", core.KindExpense},
		{"Transport", core.KindExpense},
		{"Eating out", core.KindExpense},
	}

	var categories []*core.Category
	for _, sc := range seedCategories {
		category, err := svc.CreateCategory(ctx, user.ID, sc.name, sc.kind)
		if err != nil {
			return fmt.Errorf("create category %s: %w", sc.name, err)
		}
		categories = append(categories, category)
	}

	accounts := []*core.Account{checking, savings}
	for i := 0; i < numMovements; i++ {
		category := categories[rand.Intn(len(categories))]
		account := accounts[rand.Intn(len(accounts))]

		// Cents-precision amounts between 1.00 and 200.99
		amount := decimal.New(int64(rand.Intn(20_000)+100), -2)

		_, err := svc.CreateMovement(ctx, user.ID, ledger.MovementInput{
			AccountID:   account.ID,
			CategoryID:  category.ID,
			Kind:        category.Kind,
			Amount:      amount,
			OccurredAt:  time.Now().AddDate(0, 0, -rand.Intn(30)),
			Description: faker.Sentence(),
		})
		if err != nil {
			return fmt.Errorf("create movement: %w", err)
		}
	}

	goal, err := svc.CreateGoal(ctx, user.ID, ledger.GoalInput{
		Name:   "Emergency fund",
		Target: decimal.New(1_000, 0),
	})
	if err != nil {
		return fmt.Errorf("create goal: %w", err)
	}

	for i := 0; i < 3; i++ {
		amount := decimal.New(int64(rand.Intn(10_000)+1_000), -2)
		if _, err := svc.Contribute(ctx, user.ID, goal.ID, savings.ID, amount); err != nil {
			return fmt.Errorf("contribute to goal: %w", err)
		}
	}

	slog.InfoContext(ctx, "Seed complete",
		"user_id", user.ID,
		"email", user.Email,
		"movements", numMovements)
	fmt.Printf("API token: %s\n", user.APIToken)
	return nil
}
