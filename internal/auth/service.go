// internal/auth/service.go
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"collectsync-service/internal/domain/notification"
	"collectsync-service/internal/domain/staff"
	"collectsync-service/internal/events"
	"collectsync-service/internal/notify"
	"collectsync-service/internal/pkg/xerrors"
	"collectsync-service/internal/session"
	"collectsync-service/internal/store"
)

// LoginResult is what the UI gets back from a login attempt.
type LoginResult struct {
	OTPRequired bool           `json:"otp_required"`
	Token       string         `json:"token,omitempty"`
	ExpiresAt   time.Time      `json:"expires_at,omitempty"`
	Staff       *staff.Account `json:"staff,omitempty"`
}

// Service authenticates staff against the locally mirrored roster, so login
// works offline once the first sync landed. Wrong PIN/OTP comes back as an
// invalid-credential result, never retried internally.
type Service struct {
	store   *store.Store
	creds   *session.Store
	tokens  *TokenManager
	otp     OTPStore
	limiter RateLimiter
	fanout  *notify.Fanout
	bus     *events.Bus
	clock   clockwork.Clock
	logger  *zap.Logger

	otpRequired bool
}

func NewService(localStore *store.Store, creds *session.Store, tokens *TokenManager, otp OTPStore, limiter RateLimiter, fanout *notify.Fanout, bus *events.Bus, clock clockwork.Clock, otpRequired bool, logger *zap.Logger) *Service {
	return &Service{
		store:       localStore,
		creds:       creds,
		tokens:      tokens,
		otp:         otp,
		limiter:     limiter,
		fanout:      fanout,
		bus:         bus,
		clock:       clock,
		otpRequired: otpRequired,
		logger:      logger,
	}
}

// Login checks the PIN and either establishes the session or, with 2FA
// enabled, issues an OTP through the notification channel.
func (s *Service) Login(ctx context.Context, staffID, pin string) (LoginResult, error) {
	allowed, err := s.limiter.Allow(ctx, staffID)
	if err != nil {
		s.logger.Warn("rate limiter degraded", zap.Error(err))
	}
	if !allowed {
		return LoginResult{}, xerrors.ErrRateLimited
	}

	account, err := s.findAccount(staffID)
	if err != nil {
		return LoginResult{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PINHash), []byte(pin)) != nil {
		return LoginResult{}, xerrors.ErrInvalidCredential
	}
	if !account.IsActive() {
		return LoginResult{}, xerrors.ErrInactiveAccount
	}

	if s.otpRequired {
		code, err := GenerateOTP()
		if err != nil {
			return LoginResult{}, xerrors.Wrap(err, "failed to generate code")
		}
		if err := s.otp.Save(ctx, account.ID, code, OTPTTL); err != nil {
			return LoginResult{}, xerrors.Wrap(err, "failed to store code")
		}

		expires := s.clock.Now().UTC().Add(OTPTTL)
		if _, err := s.fanout.Add(ctx, notification.Record{
			Title:     "Login code",
			Body:      code,
			Audience:  account.ID,
			ExpiresAt: &expires,
		}); err != nil {
			return LoginResult{}, xerrors.Wrap(err, "failed to deliver code")
		}
		return LoginResult{OTPRequired: true}, nil
	}

	return s.establish(account)
}

// VerifyOTP consumes a pending login code and establishes the session.
func (s *Service) VerifyOTP(ctx context.Context, staffID, code string) (LoginResult, error) {
	ok, err := s.otp.Consume(ctx, staffID, code)
	if err != nil {
		return LoginResult{}, xerrors.Wrap(err, "failed to check code")
	}
	if !ok {
		return LoginResult{}, xerrors.ErrInvalidOTP
	}

	account, err := s.findAccount(staffID)
	if err != nil {
		return LoginResult{}, err
	}
	if !account.IsActive() {
		return LoginResult{}, xerrors.ErrInactiveAccount
	}
	return s.establish(account)
}

// Logout clears the credentials and announces the transition.
func (s *Service) Logout(ctx context.Context) {
	creds, ok := s.creds.Current()
	if !ok {
		return
	}
	s.creds.Clear()
	s.bus.Publish(events.Event{
		Topic:   events.TopicSession,
		Payload: events.SessionEnded{StaffID: creds.Staff.ID, Reason: "logout"},
	})
}

// ValidateToken parses a device token and confirms the account is still a
// live, active member of the roster mirror.
func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	claims, err := s.tokens.Parse(tokenStr)
	if err != nil {
		return nil, xerrors.ErrSessionExpired
	}

	account, err := s.findAccount(claims.StaffID)
	if err != nil {
		return nil, xerrors.ErrSessionExpired
	}
	if !account.IsActive() {
		return nil, xerrors.ErrSessionExpired
	}
	return claims, nil
}

// HashPIN hashes a 4-digit PIN for storage on the staff record.
func HashPIN(pin string) (string, error) {
	if len(pin) != 4 {
		return "", xerrors.ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) establish(account staff.Account) (LoginResult, error) {
	sessionID := uuid.NewString()
	token, expiresAt, err := s.tokens.Generate(account, sessionID)
	if err != nil {
		return LoginResult{}, xerrors.Wrap(err, "failed to issue token")
	}

	if err := s.creds.Set(session.Credentials{
		SessionID: sessionID,
		Role:      account.Role,
		Staff:     account,
		IssuedAt:  s.clock.Now().UTC(),
	}); err != nil {
		return LoginResult{}, xerrors.Wrap(err, "failed to persist session")
	}

	s.bus.Publish(events.Event{
		Topic:   events.TopicSession,
		Payload: events.SessionStarted{StaffID: account.ID, Role: string(account.Role)},
	})
	return LoginResult{Token: token, ExpiresAt: expiresAt, Staff: &account}, nil
}

func (s *Service) findAccount(staffID string) (staff.Account, error) {
	doc, ok := s.store.GetDocument(store.CollectionStaff, staffID)
	if !ok {
		return staff.Account{}, xerrors.ErrInvalidCredential
	}
	var account staff.Account
	if err := doc.Decode(&account); err != nil {
		return staff.Account{}, xerrors.Wrap(err, "corrupt staff record")
	}
	return account, nil
}
