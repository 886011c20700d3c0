// Package devserver is an in-memory implementation of the remote Splitwiser
// REST API. It backs the end-to-end tests and `splitwiser devserver` for
// local use.
package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitwiser-client/internal/auth"
	"github.com/mmynk/splitwiser-client/internal/middleware"
)

const (
	minGroupNameLen = 3
	maxDescLen      = 100
	maxRequestBody  = 1 << 20
)

// Server serves the REST API.
type Server struct {
	store         *Store
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	logger        *slog.Logger
}

// New creates a server. A nil logger uses slog.Default().
func New(store *Store, authenticator auth.Authenticator, jwtManager *auth.JWTManager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:         store,
		authenticator: authenticator,
		jwtManager:    jwtManager,
		logger:        logger,
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/register", s.register)
	r.Post("/token", s.token)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(s.jwtManager))

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", s.listGroups)
			r.Post("/", s.createGroup)
			r.Get("/{groupID}", s.getGroup)
			r.Get("/{groupID}/expenses", s.listExpenses)
			r.Post("/{groupID}/expenses", s.addExpense)
		})
	})
	return r
}

type userResponse struct {
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type groupRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type groupResponse struct {
	GroupID      string   `json:"group_id"`
	Name         string   `json:"name"`
	Members      []string `json:"members"`
	CreatorEmail string   `json:"creator_email"`
	CreatedAt    string   `json:"created_at"`
}

type expenseRequest struct {
	Description  string           `json:"description"`
	Amount       *decimal.Decimal `json:"amount"`
	Payer        string           `json:"payer"`
	Participants []string         `json:"participants"`
}

type expenseResponse struct {
	ExpenseID    string      `json:"expense_id"`
	Description  string      `json:"description"`
	Amount       json.Number `json:"amount"`
	Payer        string      `json:"payer"`
	Participants []string    `json:"participants"`
	CreatedAt    string      `json:"created_at"`
}

func newGroupResponse(g *Group) groupResponse {
	return groupResponse{
		GroupID:      g.ID,
		Name:         g.Name,
		Members:      g.Members,
		CreatorEmail: g.CreatorEmail,
		CreatedAt:    g.CreatedAt.Format(timeFormat),
	}
}

func newExpenseResponse(e Expense) expenseResponse {
	return expenseResponse{
		ExpenseID:    e.ID,
		Description:  e.Description,
		Amount:       json.Number(e.Amount.String()),
		Payer:        e.Payer,
		Participants: e.Participants,
		CreatedAt:    e.CreatedAt.Format(timeFormat),
	}
}

const timeFormat = "2006-01-02T15:04:05.000000Z07:00"

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	email, password, ok := credentialsForm(w, r)
	if !ok {
		return
	}
	s.logger.Info("Register request", "email", email)

	user, err := s.authenticator.Register(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailExists) {
			writeDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}
		s.logger.Error("Registration failed", "email", email, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.logger.Info("User registered successfully", "email", user.Email)
	writeJSON(w, http.StatusOK, userResponse{Email: user.Email})
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	email, password, ok := credentialsForm(w, r)
	if !ok {
		return
	}

	user, err := s.authenticator.Authenticate(r.Context(), email, password)
	if err != nil {
		s.logger.Warn("Login failed", "email", email, "error", err)
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	token, err := s.jwtManager.Generate(user.Email)
	if err != nil {
		s.logger.Error("Failed to generate token", "email", user.Email, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.logger.Info("User logged in successfully", "email", user.Email)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	subject := middleware.GetSubject(r.Context())

	groups, err := s.store.ListGroups(r.Context(), subject)
	if err != nil {
		s.logger.Error("ListGroups failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := make([]groupResponse, len(groups))
	for i, g := range groups {
		resp[i] = newGroupResponse(g)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if utf8.RuneCountInString(name) < minGroupNameLen {
		writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("Group name must be at least %d characters.", minGroupNameLen))
		return
	}
	members := uniqueStrings(req.Members)
	if len(members) == 0 {
		writeDetail(w, http.StatusUnprocessableEntity, "A group needs at least one member.")
		return
	}

	group := &Group{Name: name, Members: members}
	if err := s.store.CreateGroup(r.Context(), middleware.GetSubject(r.Context()), group); err != nil {
		s.logger.Error("CreateGroup failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.logger.Info("Group created", "group_id", group.ID, "members_count", len(group.Members))
	writeJSON(w, http.StatusCreated, newGroupResponse(group))
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	group, ok := s.ownedGroup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newGroupResponse(group))
}

func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	group, ok := s.ownedGroup(w, r)
	if !ok {
		return
	}
	resp := make([]expenseResponse, len(group.Expenses))
	for i, e := range group.Expenses {
		resp[i] = newExpenseResponse(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) addExpense(w http.ResponseWriter, r *http.Request) {
	group, ok := s.ownedGroup(w, r)
	if !ok {
		return
	}

	var req expenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	switch {
	case req.Description == "" || len(req.Description) > maxDescLen:
		writeDetail(w, http.StatusUnprocessableEntity, "Description must be between 1 and 100 characters.")
		return
	case req.Amount == nil || !req.Amount.IsPositive():
		writeDetail(w, http.StatusUnprocessableEntity, "Amount must be greater than zero.")
		return
	}
	participants := uniqueStrings(req.Participants)
	if len(participants) == 0 {
		writeDetail(w, http.StatusUnprocessableEntity, "An expense needs at least one participant.")
		return
	}
	if !group.hasMember(req.Payer) {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Payer '%s' is not a member of this group.", req.Payer))
		return
	}
	for _, p := range participants {
		if !group.hasMember(p) {
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Participant '%s' is not a member of this group.", p))
			return
		}
	}

	expense := &Expense{
		Description:  req.Description,
		Amount:       *req.Amount,
		Payer:        req.Payer,
		Participants: participants,
	}
	if err := s.store.AddExpense(r.Context(), group.ID, expense); err != nil {
		s.logger.Error("AddExpense failed", "group_id", group.ID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.logger.Info("Expense added", "group_id", group.ID, "expense_id", expense.ID, "amount", expense.Amount.String())
	writeJSON(w, http.StatusCreated, newExpenseResponse(*expense))
}

// ownedGroup loads the URL's group. Only its creator may access it.
func (s *Server) ownedGroup(w http.ResponseWriter, r *http.Request) (*Group, bool) {
	id := chi.URLParam(r, "groupID")
	group, err := s.store.GetGroup(r.Context(), id)
	if errors.Is(err, ErrGroupNotFound) {
		writeDetail(w, http.StatusNotFound, "Group not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("GetGroup failed", "group_id", id, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	if group.CreatorEmail != middleware.GetSubject(r.Context()) {
		writeDetail(w, http.StatusForbidden, "You do not have permission to view this group.")
		return nil, false
	}
	return group, true
}

func credentialsForm(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid form body")
		return "", "", false
	}
	email := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "username and password are required")
		return "", "", false
	}
	return email, password, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// uniqueStrings drops duplicates, keeping first occurrences in order.
func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
