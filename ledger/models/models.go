package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// API responses carry money as plain JSON numbers, not quoted strings.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// User is the local account record. Credentials never live here; the
// external identity provider owns them and we keep only its uid.
type User struct {
	ID         string          `json:"id"`
	ExternalID string          `json:"-"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	// Balance is a legacy field kept for schema compatibility; card
	// balances are the authoritative monetary values.
	Balance decimal.Decimal `json:"-"`
}

type Card struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Number     string          `json:"card_number"`
	IsFrozen   bool            `json:"is_frozen"`
	Balance    decimal.Decimal `json:"balance"`
}

// Payment is a single debit event against a card. The card number is a
// denormalized copy, not a foreign key.
type Payment struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	CardNumber string          `json:"card_number"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Transaction is the ledger entry accompanying a payment, one-to-one.
type Transaction struct {
	ID        string    `json:"id"`
	PaymentID string    `json:"payment_id"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// TransactionView is what the history endpoint returns: the transaction
// joined with its payment's amount.
type TransactionView struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Details   string          `json:"details"`
	Timestamp time.Time       `json:"timestamp"`
}

type RegisterUser struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Login struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AddCard struct {
	UserID     string          `json:"user_id"`
	CardNumber string          `json:"card_number"`
	Balance    decimal.Decimal `json:"balance"`
}

type CreatePayment struct {
	UserID     string          `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	CardNumber string          `json:"card_number"`
}
