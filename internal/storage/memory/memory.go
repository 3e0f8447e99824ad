// Package memory provides an in-process implementation of the ledger store,
// used by tests and as a throwaway local backend. Transactions are simulated
// by snapshotting state and restoring it when the callback fails, so the
// all-or-nothing semantics match the SQL backends.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"hucha/internal/core"
	"hucha/internal/ledger"
)

type Store struct {
	mu     sync.Mutex
	nextID int64

	users         map[int64]core.User
	accounts      map[int64]core.Account
	categories    map[int64]core.Category
	movements     map[int64]core.Movement
	goals         map[int64]core.Goal
	contributions map[int64]core.GoalContribution
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:         make(map[int64]core.User),
		accounts:      make(map[int64]core.Account),
		categories:    make(map[int64]core.Category),
		movements:     make(map[int64]core.Movement),
		goals:         make(map[int64]core.Goal),
		contributions: make(map[int64]core.GoalContribution),
	}
}

func (s *Store) Tx(ctx context.Context, fn func(ledger.StoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn((*tx)(s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	nextID        int64
	users         map[int64]core.User
	accounts      map[int64]core.Account
	categories    map[int64]core.Category
	movements     map[int64]core.Movement
	goals         map[int64]core.Goal
	contributions map[int64]core.GoalContribution
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		nextID:        s.nextID,
		users:         copyMap(s.users),
		accounts:      copyMap(s.accounts),
		categories:    copyMap(s.categories),
		movements:     copyMap(s.movements),
		goals:         copyMap(s.goals),
		contributions: copyMap(s.contributions),
	}
}

func (s *Store) restore(snap snapshot) {
	s.nextID = snap.nextID
	s.users = snap.users
	s.accounts = snap.accounts
	s.categories = snap.categories
	s.movements = snap.movements
	s.goals = snap.goals
	s.contributions = snap.contributions
}

func copyMap[V any](in map[int64]V) map[int64]V {
	out := make(map[int64]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// tx exposes the store's maps through the transactional interface. The
// store's mutex is held for the whole transaction.
type tx Store

var _ ledger.StoreTx = (*tx)(nil)

func (t *tx) id() int64 {
	t.nextID++
	return t.nextID
}

func (t *tx) CreateUser(_ context.Context, u *core.User) error {
	for _, existing := range t.users {
		if existing.Email == u.Email {
			return core.ErrConflict
		}
	}
	u.ID = t.id()
	t.users[u.ID] = *u
	return nil
}

func (t *tx) UserByToken(_ context.Context, token string) (*core.User, error) {
	for _, u := range t.users {
		if u.APIToken == token {
			out := u
			return &out, nil
		}
	}
	return nil, core.ErrNotFound
}

func (t *tx) CreateAccount(_ context.Context, a *core.Account) error {
	a.ID = t.id()
	t.accounts[a.ID] = *a
	return nil
}

func (t *tx) AccountByID(_ context.Context, ownerID, id int64) (*core.Account, error) {
	a, ok := t.accounts[id]
	if !ok || a.OwnerID != ownerID {
		return nil, core.ErrNotFound
	}
	out := a
	return &out, nil
}

func (t *tx) ListAccounts(_ context.Context, ownerID int64) ([]core.Account, error) {
	var out []core.Account
	for _, a := range t.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) UpdateAccountBalance(_ context.Context, ownerID, id int64, balance decimal.Decimal) error {
	a, ok := t.accounts[id]
	if !ok || a.OwnerID != ownerID {
		return core.ErrNotFound
	}
	a.Balance = balance
	t.accounts[id] = a
	return nil
}

func (t *tx) DeleteAccount(_ context.Context, ownerID, id int64) error {
	a, ok := t.accounts[id]
	if !ok || a.OwnerID != ownerID {
		return core.ErrNotFound
	}
	delete(t.accounts, id)
	return nil
}

func (t *tx) CountMovementsByAccount(_ context.Context, ownerID, accountID int64) (int64, error) {
	var n int64
	for _, m := range t.movements {
		if m.OwnerID == ownerID && m.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (t *tx) CreateCategory(_ context.Context, c *core.Category) error {
	for _, existing := range t.categories {
		if existing.OwnerID == c.OwnerID && strings.EqualFold(existing.Name, c.Name) {
			return core.ErrConflict
		}
	}
	c.ID = t.id()
	t.categories[c.ID] = *c
	return nil
}

func (t *tx) CategoryByID(_ context.Context, ownerID, id int64) (*core.Category, error) {
	c, ok := t.categories[id]
	if !ok || c.OwnerID != ownerID {
		return nil, core.ErrNotFound
	}
	out := c
	return &out, nil
}

func (t *tx) ListCategories(_ context.Context, ownerID int64) ([]core.Category, error) {
	var out []core.Category
	for _, c := range t.categories {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) FindOrCreateCategory(ctx context.Context, ownerID int64, name string, kind core.Kind) (*core.Category, error) {
	for _, c := range t.categories {
		if c.OwnerID == ownerID && strings.EqualFold(c.Name, name) {
			out := c
			return &out, nil
		}
	}
	c := core.Category{OwnerID: ownerID, Name: name, Kind: kind}
	if err := t.CreateCategory(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *tx) DeleteCategory(_ context.Context, ownerID, id int64) error {
	c, ok := t.categories[id]
	if !ok || c.OwnerID != ownerID {
		return core.ErrNotFound
	}
	delete(t.categories, id)
	return nil
}

func (t *tx) CountMovementsByCategory(_ context.Context, ownerID, categoryID int64) (int64, error) {
	var n int64
	for _, m := range t.movements {
		if m.OwnerID == ownerID && m.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (t *tx) CreateMovement(_ context.Context, m *core.Movement) error {
	m.ID = t.id()
	t.movements[m.ID] = *m
	return nil
}

func (t *tx) MovementByID(_ context.Context, ownerID, id int64) (*core.Movement, error) {
	m, ok := t.movements[id]
	if !ok || m.OwnerID != ownerID {
		return nil, core.ErrNotFound
	}
	out := m
	return &out, nil
}

func (t *tx) ListMovements(_ context.Context, ownerID int64) ([]core.MovementView, error) {
	var out []core.MovementView
	for _, m := range t.movements {
		if m.OwnerID != ownerID {
			continue
		}
		view := core.MovementView{Movement: m}
		if a, ok := t.accounts[m.AccountID]; ok {
			view.AccountName = a.Name
		}
		if c, ok := t.categories[m.CategoryID]; ok {
			view.CategoryName = c.Name
		}
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (t *tx) UpdateMovement(_ context.Context, m *core.Movement) error {
	existing, ok := t.movements[m.ID]
	if !ok || existing.OwnerID != m.OwnerID {
		return core.ErrNotFound
	}
	t.movements[m.ID] = *m
	return nil
}

func (t *tx) DeleteMovement(_ context.Context, ownerID, id int64) error {
	m, ok := t.movements[id]
	if !ok || m.OwnerID != ownerID {
		return core.ErrNotFound
	}
	delete(t.movements, id)
	return nil
}

func (t *tx) CreateGoal(_ context.Context, g *core.Goal) error {
	g.ID = t.id()
	t.goals[g.ID] = *g
	return nil
}

func (t *tx) GoalByID(_ context.Context, ownerID, id int64) (*core.Goal, error) {
	g, ok := t.goals[id]
	if !ok || g.OwnerID != ownerID {
		return nil, core.ErrNotFound
	}
	out := g
	return &out, nil
}

func (t *tx) ListGoals(_ context.Context, ownerID int64) ([]core.Goal, error) {
	var out []core.Goal
	for _, g := range t.goals {
		if g.OwnerID == ownerID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) UpdateGoalCurrent(_ context.Context, ownerID, id int64, current decimal.Decimal) error {
	g, ok := t.goals[id]
	if !ok || g.OwnerID != ownerID {
		return core.ErrNotFound
	}
	g.Current = current
	t.goals[id] = g
	return nil
}

func (t *tx) DeleteGoal(_ context.Context, ownerID, id int64) error {
	g, ok := t.goals[id]
	if !ok || g.OwnerID != ownerID {
		return core.ErrNotFound
	}
	delete(t.goals, id)
	return nil
}

func (t *tx) CreateContribution(_ context.Context, c *core.GoalContribution) error {
	c.ID = t.id()
	t.contributions[c.ID] = *c
	return nil
}

func (t *tx) ContributionByMovement(_ context.Context, movementID int64) (*core.GoalContribution, error) {
	for _, c := range t.contributions {
		if c.MovementID == movementID {
			out := c
			return &out, nil
		}
	}
	return nil, core.ErrNotFound
}

func (t *tx) ContributionsByGoal(_ context.Context, goalID int64) ([]core.GoalContribution, error) {
	var out []core.GoalContribution
	for _, c := range t.contributions {
		if c.GoalID == goalID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) UpdateContributionAmount(_ context.Context, id int64, amount decimal.Decimal) error {
	c, ok := t.contributions[id]
	if !ok {
		return core.ErrNotFound
	}
	c.Amount = amount
	t.contributions[id] = c
	return nil
}

func (t *tx) DeleteContribution(_ context.Context, id int64) error {
	if _, ok := t.contributions[id]; !ok {
		return core.ErrNotFound
	}
	delete(t.contributions, id)
	return nil
}

func (t *tx) Summary(_ context.Context, ownerID int64) (core.Summary, error) {
	summary := core.Summary{
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		TotalBalance: decimal.Zero,
	}
	for _, m := range t.movements {
		if m.OwnerID != ownerID {
			continue
		}
		switch m.Kind {
		case core.KindIncome:
			summary.TotalIncome = summary.TotalIncome.Add(m.Amount)
		case core.KindExpense:
			summary.TotalExpense = summary.TotalExpense.Add(m.Amount)
		}
	}
	for _, a := range t.accounts {
		if a.OwnerID == ownerID {
			summary.TotalBalance = summary.TotalBalance.Add(a.Balance)
		}
	}
	return summary, nil
}
