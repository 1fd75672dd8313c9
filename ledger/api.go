package ledger

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jonanatree/payledger/ledger/models"
)

// API is the HTTP surface of the ledger service.
type API struct {
	ledger *Service
}

func NewAPI(ledger *Service) *API {
	return &API{
		ledger: ledger,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Post("/register", a.register)
	r.Post("/login", a.login)

	r.Route("/cards", func(r chi.Router) {
		r.Post("/", a.addCard)
		r.Put("/{id}/freeze", a.freezeCard)
		// the collection read is keyed by user id, mirroring the
		// public API shape
		r.Get("/{id}", a.listCards)
	})

	r.Post("/payments", a.createPayment)
	r.Get("/transactions/{userID}", a.listTransactions)
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	req := models.RegisterUser{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user, err := a.ledger.RegisterUser(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "user registered",
		"id":      user.ID,
	})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	req := models.Login{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user, err := a.ledger.Login(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "login successful",
		"user": map[string]any{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
		},
	})
}

func (a *API) addCard(w http.ResponseWriter, r *http.Request) {
	req := models.AddCard{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	card, err := a.ledger.AddCard(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "card added",
		"id":      card.ID,
		"balance": card.Balance,
	})
}

func (a *API) freezeCard(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "id")

	if err := a.ledger.FreezeCard(r.Context(), cardID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "card frozen",
		"is_frozen": true,
	})
}

func (a *API) listCards(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	cards, err := a.ledger.ListCards(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cards)
}

func (a *API) createPayment(w http.ResponseWriter, r *http.Request) {
	req := models.CreatePayment{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	payment, err := a.ledger.ProcessPayment(r.Context(), req)
	if err != nil {
		// An unknown or frozen card is a client error here, not a 404:
		// the card number comes from the request body.
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusBadRequest, errors.New("card not valid"))
			return
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "payment processed",
		"payment_id": payment.ID,
	})
}

// listTransactions returns the user's history. The optional ?date=
// filter is a YYYY-MM-DD calendar day compared in UTC, the same clock
// payments are recorded with.
func (a *API) listTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	date := r.URL.Query().Get("date")

	transactions, err := a.ledger.ListTransactions(r.Context(), userID, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": transactions,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// writeDomainError translates domain errors to status codes. Everything
// unknown is a 500; domain errors never crash the process.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrFrozenCard),
		errors.Is(err, ErrInsufficientBalance):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
