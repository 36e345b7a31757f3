package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmcdole/lector/internal/adapter"
	"github.com/mmcdole/lector/internal/domain"
)

// accountBackend is the slice of the backend the session needs
type accountBackend interface {
	SyncUser(ctx context.Context, user domain.User) (domain.Plan, error)
	CreateSubscription(ctx context.Context, planID string) (*domain.Subscription, error)
	VerifySubscription(ctx context.Context, confirmation domain.PaymentConfirmation) error
}

// SessionService manages the signed-in user and their plan
type SessionService struct {
	backend accountBackend
	logger  *slog.Logger

	mu   sync.RWMutex
	user domain.User

	clearUser  func() error
	clearCache func() error
}

// NewSessionService creates a new SessionService for user. The plan starts
// as free until Sync reports otherwise.
func NewSessionService(backend accountBackend, user domain.User, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	if user.Plan == "" {
		user.Plan = domain.PlanFree
	}
	return &SessionService{
		backend:    backend,
		logger:     logger,
		user:       user,
		clearUser:  adapter.ClearUserConfig,
		clearCache: adapter.ClearCache,
	}
}

// User returns the current user
func (s *SessionService) User() domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Plan returns the current user's plan
func (s *SessionService) Plan() domain.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Plan
}

// Sync registers the user with the backend and refreshes the plan.
// On failure the previous plan is kept.
func (s *SessionService) Sync(ctx context.Context) (domain.Plan, error) {
	user := s.User()
	if !user.SignedIn() {
		return user.Plan, domain.ErrNotSignedIn
	}

	plan, err := s.backend.SyncUser(ctx, user)
	if err != nil {
		s.logger.Warn("user sync failed", "error", err, "userID", user.ID)
		return user.Plan, err
	}

	s.mu.Lock()
	s.user.Plan = plan
	s.mu.Unlock()

	s.logger.Info("user synced", "userID", user.ID, "plan", plan)
	return plan, nil
}

// Require returns nil when the current user may use feature
func (s *SessionService) Require(feature domain.Feature) error {
	user := s.User()
	if !user.SignedIn() {
		return domain.ErrNotSignedIn
	}
	if !user.Plan.Allows(feature) {
		return fmt.Errorf("%w: %s", domain.ErrFeatureLocked, feature)
	}
	return nil
}

// StartUpgrade creates a subscription for a payment-provider plan ID
func (s *SessionService) StartUpgrade(ctx context.Context, planID string) (*domain.Subscription, error) {
	if !s.User().SignedIn() {
		return nil, domain.ErrNotSignedIn
	}
	sub, err := s.backend.CreateSubscription(ctx, planID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("subscription created", "subscriptionID", sub.ID, "planID", planID)
	return sub, nil
}

// ConfirmUpgrade verifies a completed payment and switches the plan
func (s *SessionService) ConfirmUpgrade(ctx context.Context, confirmation domain.PaymentConfirmation) (domain.Plan, error) {
	user := s.User()
	if !user.SignedIn() {
		return user.Plan, domain.ErrNotSignedIn
	}
	confirmation.UserID = user.ID

	if err := s.backend.VerifySubscription(ctx, confirmation); err != nil {
		return user.Plan, err
	}

	plan := domain.PlanForName(confirmation.PlanName)
	s.mu.Lock()
	s.user.Plan = plan
	s.mu.Unlock()

	s.logger.Info("subscription verified", "userID", user.ID, "plan", plan)
	return plan, nil
}

// Logout clears the stored identity and cached data
func (s *SessionService) Logout() error {
	if err := s.clearUser(); err != nil {
		return err
	}
	if err := s.clearCache(); err != nil {
		return err
	}

	s.mu.Lock()
	s.user = domain.User{Plan: domain.PlanFree}
	s.mu.Unlock()
	return nil
}
