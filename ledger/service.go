package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonanatree/payledger/internal/cardnum"
	"github.com/jonanatree/payledger/internal/dates"
	"github.com/jonanatree/payledger/ledger/models"
	"golang.org/x/exp/slog"
)

// IdentityProvider is the external service that owns credentials. We
// forward email/password as-is and keep only the returned uid.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (string, error)
	SignIn(ctx context.Context, email, password string) (string, error)
}

// Notifier delivers best-effort push notifications keyed by topic.
type Notifier interface {
	NotifyTopic(ctx context.Context, topic, title, body string) error
}

type Service struct {
	repo     *Repository
	identity IdentityProvider
	notifier Notifier
	logger   *slog.Logger
}

func NewService(repo *Repository, identity IdentityProvider, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		identity: identity,
		notifier: notifier,
		logger:   logger,
	}
}

// RegisterUser creates the user at the identity provider and then
// locally. The provider cannot tell us whether a failure means the
// email is taken, so any signup failure maps to ErrConflict, matching
// the duplicate-email case.
func (s *Service) RegisterUser(ctx context.Context, req models.RegisterUser) (*models.User, error) {
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("name, email and password are required: %w", ErrInvalidInput)
	}

	externalID, err := s.identity.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		s.logger.Info("identity signup failed", "err", err)
		return nil, fmt.Errorf("registering with identity provider: %w", ErrConflict)
	}

	user := &models.User{
		ID:         uuid.New().String(),
		ExternalID: externalID,
		Name:       req.Name,
		Email:      req.Email,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// Login verifies credentials at the identity provider and resolves the
// local user by the provider uid.
func (s *Service) Login(ctx context.Context, req models.Login) (*models.User, error) {
	if req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("email and password are required: %w", ErrInvalidInput)
	}

	externalID, err := s.identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, fmt.Errorf("signing in: %w", ErrInvalidCredentials)
	}

	user, err := s.repo.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return user, nil
}

func (s *Service) AddCard(ctx context.Context, req models.AddCard) (*models.Card, error) {
	if req.UserID == "" || !cardnum.Valid(req.CardNumber) {
		return nil, fmt.Errorf("user_id and a 16-digit card_number are required: %w", ErrInvalidInput)
	}
	if req.Balance.IsNegative() {
		return nil, fmt.Errorf("balance must not be negative: %w", ErrInvalidInput)
	}

	card := &models.Card{
		ID:      uuid.New().String(),
		UserID:  req.UserID,
		Number:  cardnum.Normalize(req.CardNumber),
		Balance: req.Balance,
	}
	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("creating card: %w", err)
	}
	return card, nil
}

func (s *Service) FreezeCard(ctx context.Context, cardID string) error {
	if err := s.repo.FreezeCard(ctx, cardID); err != nil {
		return fmt.Errorf("freezing card: %w", err)
	}
	return nil
}

func (s *Service) ListCards(ctx context.Context, userID string) ([]*models.Card, error) {
	cards, err := s.repo.ListCards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	return cards, nil
}

// ProcessPayment validates the request, debits the card and records the
// payment and its transaction atomically, then fires a best-effort push
// notification. A notification failure never fails the payment.
func (s *Service) ProcessPayment(ctx context.Context, req models.CreatePayment) (*models.Payment, error) {
	if req.UserID == "" || req.CardNumber == "" {
		return nil, fmt.Errorf("user_id and card_number are required: %w", ErrInvalidInput)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be > 0: %w", ErrInvalidInput)
	}

	now := time.Now().UTC()
	payment := &models.Payment{
		ID:         uuid.New().String(),
		UserID:     req.UserID,
		Amount:     req.Amount,
		CardNumber: cardnum.Normalize(req.CardNumber),
		Timestamp:  now,
	}
	transaction := &models.Transaction{
		ID:        uuid.New().String(),
		PaymentID: payment.ID,
		Details:   fmt.Sprintf("Payment of %s with card %s", req.Amount.StringFixed(2), cardnum.LastN(payment.CardNumber, 4)),
		Timestamp: now,
	}

	if err := s.repo.ExecutePayment(ctx, payment, transaction); err != nil {
		return nil, fmt.Errorf("executing payment: %w", err)
	}

	// Post-commit, outside the atomic unit. The goroutine gets its own
	// context so a finished request doesn't cancel the send.
	go s.notifyPayment(payment)

	return payment, nil
}

func (s *Service) notifyPayment(payment *models.Payment) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	topic := "user_" + payment.UserID
	body := fmt.Sprintf("You made a payment of $%s.", payment.Amount.StringFixed(2))
	if err := s.notifier.NotifyTopic(ctx, topic, "Payment processed", body); err != nil {
		s.logger.Info("payment notification failed", "payment_id", payment.ID, "err", err)
	}
}

// ListTransactions returns the user's history, optionally restricted to
// one UTC calendar day. dateFilter is YYYY-MM-DD or empty.
func (s *Service) ListTransactions(ctx context.Context, userID, dateFilter string) ([]*models.TransactionView, error) {
	var day *time.Time
	if dateFilter != "" {
		d, err := parseDateFilter(dateFilter)
		if err != nil {
			return nil, err
		}
		day = d
	}

	transactions, err := s.repo.ListTransactions(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return transactions, nil
}

func parseDateFilter(s string) (*time.Time, error) {
	day, err := dates.ParseDay(s)
	if err != nil {
		return nil, fmt.Errorf("date must be YYYY-MM-DD: %w", ErrInvalidInput)
	}
	return &day, nil
}
