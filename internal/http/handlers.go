package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"hucha/internal/core"
	"hucha/internal/ledger"
)

type userResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	APIToken  string    `json:"api_token"`
	CreatedAt time.Time `json:"created_at"`
}

type accountResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Balance string `json:"balance"`
}

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type movementResponse struct {
	ID           int64     `json:"id"`
	AccountID    int64     `json:"account_id"`
	AccountName  string    `json:"account_name"`
	CategoryID   int64     `json:"category_id"`
	CategoryName string    `json:"category_name"`
	Kind         string    `json:"kind"`
	Amount       string    `json:"amount"`
	OccurredAt   time.Time `json:"occurred_at"`
	Description  string    `json:"description,omitempty"`
}

type goalResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Target    string    `json:"target"`
	Current   string    `json:"current"`
	Progress  float64   `json:"progress"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Active    bool      `json:"active"`
}

type contributionResponse struct {
	Goal     goalResponse     `json:"goal"`
	Movement movementResponse `json:"movement"`
	Reached  bool             `json:"reached"`
}

type summaryResponse struct {
	TotalIncome  string `json:"total_income"`
	TotalExpense string `json:"total_expense"`
	TotalBalance string `json:"total_balance"`
}

func toAccountResponse(a core.Account) accountResponse {
	return accountResponse{ID: a.ID, Name: a.Name, Balance: core.FormatAmount(a.Balance)}
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Kind: string(c.Kind)}
}

func toMovementResponse(v core.MovementView) movementResponse {
	return movementResponse{
		ID:           v.ID,
		AccountID:    v.AccountID,
		AccountName:  v.AccountName,
		CategoryID:   v.CategoryID,
		CategoryName: v.CategoryName,
		Kind:         string(v.Kind),
		Amount:       core.FormatAmount(v.Amount),
		OccurredAt:   v.OccurredAt,
		Description:  v.Description,
	}
}

func toGoalResponse(g core.Goal) goalResponse {
	return goalResponse{
		ID:        g.ID,
		Name:      g.Name,
		Target:    core.FormatAmount(g.Target),
		Current:   core.FormatAmount(g.Current),
		Progress:  g.Progress(),
		StartDate: g.StartDate,
		EndDate:   g.EndDate,
		Active:    g.Active,
	}
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}

	user, err := s.svc.Register(r.Context(), sanitizeInput(req.Name), sanitizeInput(req.Email))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		APIToken:  user.APIToken,
		CreatedAt: user.CreatedAt,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, owner *core.User) {
	writeJSON(w, http.StatusOK, userResponse{
		ID:        owner.ID,
		Name:      owner.Name,
		Email:     owner.Email,
		APIToken:  owner.APIToken,
		CreatedAt: owner.CreatedAt,
	})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request, owner *core.User) {
	accounts, err := s.svc.ListAccounts(r.Context(), owner.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request, owner *core.User) {
	var req struct {
		Name           string `json:"name"`
		OpeningBalance string `json:"opening_balance"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}

	opening := decimal.Zero
	if req.OpeningBalance != "" {
		var err error
		opening, err = core.ParseAmount(req.OpeningBalance)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	account, err := s.svc.CreateAccount(r.Context(), owner.ID, sanitizeInput(req.Name), opening)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(*account))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request, owner *core.User) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.svc.DeleteAccount(r.Context(), owner.ID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, owner *core.User) {
	categories, err := s.svc.ListCategories(r.Context(), owner.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, owner *core.User) {
	var req struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}

	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		writeError(w, r, err)
		return
	}

	category, err := s.svc.CreateCategory(r.Context(), owner.ID, sanitizeInput(req.Name), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(*category))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, owner *core.User) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.svc.DeleteCategory(r.Context(), owner.ID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type movementRequest struct {
	AccountID   int64  `json:"account_id"`
	CategoryID  int64  `json:"category_id"`
	Kind        string `json:"kind"`
	Amount      string `json:"amount"`
	OccurredAt  string `json:"occurred_at"`
	Description string `json:"description"`
}

func (req movementRequest) toInput() (ledger.MovementInput, error) {
	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		return ledger.MovementInput{}, err
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return ledger.MovementInput{}, err
	}

	in := ledger.MovementInput{
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Kind:        kind,
		Amount:      amount,
		Description: sanitizeInput(req.Description),
	}
	if req.OccurredAt != "" {
		occurred, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			return ledger.MovementInput{}, errInvalidDate
		}
		in.OccurredAt = occurred
	}
	return in, nil
}

var errInvalidDate = errors.New("invalid occurred_at, want RFC3339")

func (s *Server) handleListMovements(w http.ResponseWriter, r *http.Request, owner *core.User) {
	movements, err := s.svc.ListMovements(r.Context(), owner.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, toMovementResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateMovement(w http.ResponseWriter, r *http.Request, owner *core.User) {
	var req movementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}

	in, err := req.toInput()
	if errors.Is(err, errInvalidDate) {
		writeBadRequest(w, err.Error())
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := s.svc.CreateMovement(r.Context(), owner.ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementResponse(*view))
}

func (s *Server) handleUpdateMovement(w http.ResponseWriter, r *http.Request, owner *core.User) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var req movementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}

	in, err := req.toInput()
	if errors.Is(err, errInvalidDate) {
		writeBadRequest(w, err.Error())
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := s.svc.UpdateMovement(r.Context(), owner.ID, id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMovementResponse(*view))
}

func (s *Server) handleDeleteMovement(w http.ResponseWriter, r *http.Request, owner *core.User) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.svc.DeleteMovement(r.Context(), owner.ID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request, owner *core.User) {
	goals, err := s.svc.ListGoals(r.Context(), owner.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]goalResponse, 0, len(goals))
	for _, g := range goals {
		out = append(out, toGoalResponse(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request, owner *core.User) {
	var req struct {
		Name      string `json:"name"`
		Target    string `json:"target"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}

	target, err := core.ParseAmount(req.Target)
	if err != nil {
		writeError(w, r, err)
		return
	}

	in := ledger.GoalInput{Name: sanitizeInput(req.Name), Target: target}
	if req.StartDate != "" {
		start, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			writeBadRequest(w, "invalid start_date, want YYYY-MM-DD")
			return
		}
		in.StartDate = start
	}
	if req.EndDate != "" {
		end, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			writeBadRequest(w, "invalid end_date, want YYYY-MM-DD")
			return
		}
		in.EndDate = end
	}

	goal, err := s.svc.CreateGoal(r.Context(), owner.ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalResponse(*goal))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request, owner *core.User) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.svc.DeleteGoal(r.Context(), owner.ID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request, owner *core.User) {
	goalID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var req struct {
		AccountID int64  `json:"account_id"`
		Amount    string `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.svc.Contribute(r.Context(), owner.ID, goalID, req.AccountID, amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, contributionResponse{
		Goal:     toGoalResponse(result.Goal),
		Movement: toMovementResponse(result.Movement),
		Reached:  !result.Goal.Current.LessThan(result.Goal.Target),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, owner *core.User) {
	summary, err := s.svc.Summary(r.Context(), owner.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		TotalIncome:  core.FormatAmount(summary.TotalIncome),
		TotalExpense: core.FormatAmount(summary.TotalExpense),
		TotalBalance: core.FormatAmount(summary.TotalBalance),
	})
}
