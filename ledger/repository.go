package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jonanatree/payledger/internal/dates"
	"github.com/jonanatree/payledger/ledger/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Repository is the account store. It has two backends: Postgres for
// runtime and an in-memory one for tests. Balance never going negative
// and payment+transaction being written in one atomic unit are enforced
// here, not trusted to callers.
type Repository struct {
	Users        []*models.User
	Cards        []*models.Card
	Payments     []*models.Payment
	Transactions []*models.Transaction

	mu sync.RWMutex
	db *sql.DB
}

func NewRepository() *Repository {
	return &Repository{
		Users:        make([]*models.User, 0),
		Cards:        make([]*models.Card, 0),
		Payments:     make([]*models.Payment, 0),
		Transactions: make([]*models.Transaction, 0),
	}
}

// NewPGRepository constructs a db-backed repository.
func NewPGRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, u := range r.Users {
			if u.Email == user.Email || u.ExternalID == user.ExternalID {
				return fmt.Errorf("email or external id exists: %w", ErrConflict)
			}
		}
		r.Users = append(r.Users, user)
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO users(user_id, external_uid, name, email, balance)
        VALUES ($1,$2,$3,$4,$5)
    `, user.ID, user.ExternalID, user.Name, user.Email, user.Balance)
	if isUniqueViolation(err) {
		return fmt.Errorf("email or external id exists: %w", ErrConflict)
	}
	return err
}

func (r *Repository) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		for _, u := range r.Users {
			if u.ExternalID == externalID {
				return u, nil
			}
		}
		return nil, ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT user_id, external_uid, name, email, balance FROM users WHERE external_uid=$1`, externalID)
	var u models.User
	if err := row.Scan(&u.ID, &u.ExternalID, &u.Name, &u.Email, &u.Balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) CreateCard(ctx context.Context, card *models.Card) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.Cards = append(r.Cards, card)
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO cards(card_id, user_id, card_number, is_frozen, balance)
        VALUES ($1,$2,$3,$4,$5)
    `, card.ID, card.UserID, card.Number, card.IsFrozen, card.Balance)
	return err
}

// FreezeCard sets the frozen flag. Freezing an already-frozen card is a
// no-op success.
func (r *Repository) FreezeCard(ctx context.Context, cardID string) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, c := range r.Cards {
			if c.ID == cardID {
				c.IsFrozen = true
				return nil
			}
		}
		return ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `UPDATE cards SET is_frozen = true WHERE card_id=$1`, cardID)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListCards(ctx context.Context, userID string) ([]*models.Card, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		cards := make([]*models.Card, 0)
		for _, c := range r.Cards {
			if c.UserID == userID {
				cards = append(cards, c)
			}
		}
		return cards, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT card_id, user_id, card_number, is_frozen, balance FROM cards WHERE user_id=$1 ORDER BY card_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cards := make([]*models.Card, 0)
	for rows.Next() {
		var c models.Card
		if err := rows.Scan(&c.ID, &c.UserID, &c.Number, &c.IsFrozen, &c.Balance); err != nil {
			return nil, err
		}
		cards = append(cards, &c)
	}
	return cards, rows.Err()
}

// ExecutePayment debits the card and records the prepared payment and
// transaction as one atomic unit. The balance check and the debit are
// serialized per card: a row lock in the db backend, the repository
// mutex in the memory backend. Two concurrent payments can therefore
// never both pass the check and overdraw the card.
func (r *Repository) ExecutePayment(ctx context.Context, payment *models.Payment, transaction *models.Transaction) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()

		var card *models.Card
		for _, c := range r.Cards {
			if c.Number == payment.CardNumber && c.UserID == payment.UserID {
				card = c
				break
			}
		}
		if card == nil {
			return ErrNotFound
		}
		if card.IsFrozen {
			return ErrFrozenCard
		}
		if card.Balance.LessThan(payment.Amount) {
			return ErrInsufficientBalance
		}
		card.Balance = card.Balance.Sub(payment.Amount)
		r.Payments = append(r.Payments, payment)
		r.Transactions = append(r.Transactions, transaction)
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `set local statement_timeout = '3s'`); err != nil {
		return err
	}

	var cardID string
	var frozen bool
	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx, `
        SELECT card_id, is_frozen, balance FROM cards
         WHERE card_number=$1 AND user_id=$2 FOR UPDATE
    `, payment.CardNumber, payment.UserID).Scan(&cardID, &frozen, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if frozen {
		return ErrFrozenCard
	}
	if balance.LessThan(payment.Amount) {
		return ErrInsufficientBalance
	}

	// The WHERE clause re-checks the balance so the store rejects an
	// overdraw even if this method is ever called with stale state.
	res, err := tx.ExecContext(ctx, `
        UPDATE cards SET balance = balance - $2 WHERE card_id=$1 AND balance >= $2
    `, cardID, payment.Amount)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO payments(payment_id, user_id, amount, card_number, created_at)
        VALUES ($1,$2,$3,$4,$5)
    `, payment.ID, payment.UserID, payment.Amount, payment.CardNumber, payment.Timestamp); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO transactions(tx_id, payment_id, details, created_at)
        VALUES ($1,$2,$3,$4)
    `, transaction.ID, transaction.PaymentID, transaction.Details, transaction.Timestamp); err != nil {
		return err
	}

	return tx.Commit()
}

// ListTransactions joins transactions to their payments for the given
// user. When day is non-nil only transactions whose timestamp falls on
// that UTC calendar day are returned, ordered timestamp then id
// ascending.
func (r *Repository) ListTransactions(ctx context.Context, userID string, day *time.Time) ([]*models.TransactionView, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()

		paymentsByID := make(map[string]*models.Payment, len(r.Payments))
		for _, p := range r.Payments {
			paymentsByID[p.ID] = p
		}

		views := make([]*models.TransactionView, 0)
		for _, t := range r.Transactions {
			p, ok := paymentsByID[t.PaymentID]
			if !ok || p.UserID != userID {
				continue
			}
			if day != nil && !dates.SameDay(t.Timestamp, *day) {
				continue
			}
			views = append(views, &models.TransactionView{
				ID:        t.ID,
				Amount:    p.Amount,
				Details:   t.Details,
				Timestamp: t.Timestamp,
			})
		}
		sort.Slice(views, func(i, j int) bool {
			if views[i].Timestamp.Equal(views[j].Timestamp) {
				return views[i].ID < views[j].ID
			}
			return views[i].Timestamp.Before(views[j].Timestamp)
		})
		return views, nil
	}

	query := `
        SELECT t.tx_id, p.amount, t.details, t.created_at
          FROM transactions t
          JOIN payments p ON p.payment_id = t.payment_id
         WHERE p.user_id = $1`
	args := []any{userID}
	if day != nil {
		from, to := dates.DayBounds(*day)
		query += ` AND t.created_at >= $2 AND t.created_at < $3`
		args = append(args, from, to)
	}
	query += ` ORDER BY t.created_at ASC, t.tx_id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	views := make([]*models.TransactionView, 0)
	for rows.Next() {
		var v models.TransactionView
		if err := rows.Scan(&v.ID, &v.Amount, &v.Details, &v.Timestamp); err != nil {
			return nil, err
		}
		views = append(views, &v)
	}
	return views, rows.Err()
}

// Ping returns store readiness.
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return true
	}
	return false
}
