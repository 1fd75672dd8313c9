package ledger_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonanatree/payledger/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (chi.Router, *recordingNotifier) {
	t.Helper()

	repo := ledger.NewRepository()
	svc, _, notifier := newTestService(repo)

	router := chi.NewRouter()
	ledger.NewAPI(svc).AppendRoutes(router)
	return router, notifier
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerUser(t *testing.T, router chi.Router, name, email string) string {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/register", map[string]string{
		"name": name, "email": email, "password": "s3cret",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func addCard(t *testing.T, router chi.Router, userID, number string, balance float64) string {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/cards", map[string]any{
		"user_id": userID, "card_number": number, "balance": balance,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ID
}

func TestRegisterAndLogin(t *testing.T) {
	router, _ := newTestRouter(t)

	userID := registerUser(t, router, "Bob", "bob@example.com")

	t.Run("missing fields", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/register", map[string]string{"name": "NoEmail"})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate email", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/register", map[string]string{
			"name": "Bob2", "email": "bob@example.com", "password": "other",
		})
		require.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("login ok", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/login", map[string]string{
			"email": "bob@example.com", "password": "s3cret",
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			User struct {
				ID    string `json:"id"`
				Name  string `json:"name"`
				Email string `json:"email"`
			} `json:"user"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, userID, resp.User.ID)
		require.Equal(t, "Bob", resp.User.Name)
		require.Equal(t, "bob@example.com", resp.User.Email)
	})

	t.Run("bad credentials", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/login", map[string]string{
			"email": "bob@example.com", "password": "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestCardLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)
	userID := registerUser(t, router, "Alice", "alice@example.com")

	t.Run("add card", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/cards", map[string]any{
			"user_id": userID, "card_number": "4111111111111111", "balance": 50.0,
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			ID      string          `json:"id"`
			Balance decimal.Decimal `json:"balance"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.ID)
		require.True(t, decimal.NewFromFloat(50.0).Equal(resp.Balance))
	})

	t.Run("rejects short number", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/cards", map[string]any{
			"user_id": userID, "card_number": "411111111111111",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects non-numeric number", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/cards", map[string]any{
			"user_id": userID, "card_number": "411111111111111a",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("freeze is idempotent", func(t *testing.T) {
		cardID := addCard(t, router, userID, "4222222222222222", 0)

		for i := 0; i < 2; i++ {
			w := doJSON(t, router, http.MethodPut, "/cards/"+cardID+"/freeze", nil)
			require.Equal(t, http.StatusOK, w.Code)

			var resp struct {
				IsFrozen bool `json:"is_frozen"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.True(t, resp.IsFrozen)
		}
	})

	t.Run("freeze unknown card", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPut, "/cards/nope/freeze", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list cards", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/cards/"+userID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var cards []struct {
			CardNumber string `json:"card_number"`
			IsFrozen   bool   `json:"is_frozen"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cards))
		require.Len(t, cards, 2)
	})
}

func TestPaymentFlow(t *testing.T) {
	router, notifier := newTestRouter(t)
	userID := registerUser(t, router, "Carol", "carol@example.com")
	addCard(t, router, userID, "4111111111111111", 100.0)

	w := doJSON(t, router, http.MethodPost, "/payments", map[string]any{
		"user_id": userID, "amount": 40.0, "card_number": "4111111111111111",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var payResp struct {
		PaymentID string `json:"payment_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payResp))
	require.NotEmpty(t, payResp.PaymentID)

	// balance 100.00 - 40.00 = 60.00
	w = doJSON(t, router, http.MethodGet, "/cards/"+userID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cards []struct {
		Balance decimal.Decimal `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cards))
	require.Len(t, cards, 1)
	require.True(t, decimal.NewFromFloat(60.0).Equal(cards[0].Balance), "balance = %s", cards[0].Balance)

	// one history entry with the amount and masked card number
	w = doJSON(t, router, http.MethodGet, "/transactions/"+userID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var histResp struct {
		Transactions []struct {
			Amount  decimal.Decimal `json:"amount"`
			Details string          `json:"details"`
		} `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &histResp))
	require.Len(t, histResp.Transactions, 1)
	require.True(t, decimal.NewFromFloat(40.0).Equal(histResp.Transactions[0].Amount))
	require.Contains(t, histResp.Transactions[0].Details, "1111")
	require.NotContains(t, histResp.Transactions[0].Details, "4111111111111111")

	// notification fired after commit, keyed by user topic
	select {
	case <-notifier.fired:
	case <-time.After(time.Second):
		t.Fatal("notification was not attempted")
	}
	sent := notifier.all()
	require.Len(t, sent, 1)
	require.Equal(t, "user_"+userID, sent[0].Topic)
}

func TestPaymentRejections(t *testing.T) {
	router, _ := newTestRouter(t)
	userID := registerUser(t, router, "Dave", "dave@example.com")
	cardID := addCard(t, router, userID, "4111111111111111", 30.0)

	assertBalance := func(t *testing.T, want float64) {
		w := doJSON(t, router, http.MethodGet, "/cards/"+userID, nil)
		var cards []struct {
			Balance decimal.Decimal `json:"balance"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cards))
		require.Len(t, cards, 1)
		require.True(t, decimal.NewFromFloat(want).Equal(cards[0].Balance), "balance = %s", cards[0].Balance)
	}

	t.Run("non-positive amount", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/payments", map[string]any{
			"user_id": userID, "amount": 0, "card_number": "4111111111111111",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assertBalance(t, 30.0)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/payments", map[string]any{
			"user_id": userID, "amount": 30.01, "card_number": "4111111111111111",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assertBalance(t, 30.0)
	})

	t.Run("unknown card", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/payments", map[string]any{
			"user_id": userID, "amount": 1, "card_number": "4999999999999999",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("someone else's card", func(t *testing.T) {
		otherID := registerUser(t, router, "Eve", "eve@example.com")
		w := doJSON(t, router, http.MethodPost, "/payments", map[string]any{
			"user_id": otherID, "amount": 1, "card_number": "4111111111111111",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assertBalance(t, 30.0)
	})

	t.Run("frozen card", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPut, "/cards/"+cardID+"/freeze", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, router, http.MethodPost, "/payments", map[string]any{
			"user_id": userID, "amount": 1, "card_number": "4111111111111111",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assertBalance(t, 30.0)
	})
}

func TestTransactionsEmptyHistory(t *testing.T) {
	router, _ := newTestRouter(t)
	userID := registerUser(t, router, "Frank", "frank@example.com")

	w := doJSON(t, router, http.MethodGet, "/transactions/"+userID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"transactions":[]}`, w.Body.String())
}

func TestTransactionsBadDateFilter(t *testing.T) {
	router, _ := newTestRouter(t)
	userID := registerUser(t, router, "Grace", "grace@example.com")

	w := doJSON(t, router, http.MethodGet, "/transactions/"+userID+"?date=15-03-2024", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
