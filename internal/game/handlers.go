package game

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/moneypool/payout-engine/internal/model"
)

const (
	defaultPayoutLimit = 50
	maxPayoutLimit     = 500
)

// --- Request types ---

// CreateAccountRequest is the JSON body for POST /api/v1/accounts.
type CreateAccountRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// PositionRequest is the JSON body for POST /play-position-game.
type PositionRequest struct {
	AccountID string          `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
}

// FruitRequest is the JSON body for POST /play-fruit-slot.
type FruitRequest struct {
	AccountID string          `json:"accountId"`
	Stake     decimal.Decimal `json:"stake"`
}

// LuckyRequest is the JSON body for POST /play-lucky-3.
type LuckyRequest struct {
	AccountID string          `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
	Numbers   []int           `json:"numbers"`
}

// Routes mounts every handler on r.
func (s *Service) Routes(r chi.Router) {
	r.Post("/play-position-game", s.HandlePlayPosition)
	r.Post("/play-fruit-slot", s.HandlePlayFruit)
	r.Post("/play-lucky-3", s.HandlePlayLucky)

	r.Route("/api/v1", func(r chi.Router) {
		if s.wsHub != nil {
			r.Get("/ws", s.wsHub.HandleWS)
		}

		r.Post("/accounts", s.HandleCreateAccount)
		r.Get("/accounts/{accountID}", s.HandleGetAccount)

		r.Get("/pools", s.HandleListPools)
		r.Get("/pools/{game}", s.HandleGetPool)
		r.Get("/pools/{game}/payouts", s.HandleListPayouts)
	})
}

// --- HTTP Handlers ---

// HandleCreateAccount handles POST /api/v1/accounts
func (s *Service) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	acc, err := s.CreateAccount(r.Context(), req.Username, req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

// HandleGetAccount handles GET /api/v1/accounts/{accountID}
func (s *Service) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := s.GetAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// HandleListPools handles GET /api/v1/pools
func (s *Service) HandleListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.Pools(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pools)
}

// HandleGetPool handles GET /api/v1/pools/{game}
func (s *Service) HandleGetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := s.Pool(r.Context(), model.Game(chi.URLParam(r, "game")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// HandleListPayouts handles GET /api/v1/pools/{game}/payouts?limit=
// Returns the pool's payout log, newest first.
func (s *Service) HandleListPayouts(w http.ResponseWriter, r *http.Request) {
	limit := defaultPayoutLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxPayoutLimit)
	}

	entries, err := s.Payouts(r.Context(), model.Game(chi.URLParam(r, "game")), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandlePlayPosition handles POST /play-position-game
func (s *Service) HandlePlayPosition(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body: amount must be a number", http.StatusBadRequest)
		return
	}

	res, err := s.PlayPosition(r.Context(), req.AccountID, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandlePlayFruit handles POST /play-fruit-slot
func (s *Service) HandlePlayFruit(w http.ResponseWriter, r *http.Request) {
	var req FruitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body: stake must be a number", http.StatusBadRequest)
		return
	}

	res, err := s.PlayFruit(r.Context(), req.AccountID, req.Stake)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandlePlayLucky handles POST /play-lucky-3
func (s *Service) HandlePlayLucky(w http.ResponseWriter, r *http.Request) {
	var req LuckyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.PlayLucky(r.Context(), req.AccountID, req.Amount, req.Numbers)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeServiceError maps err onto a status and hides internal detail on 5xx.
func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "err", err)
		msg = http.StatusText(status)
	}
	writeError(w, msg, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
