package auth

import (
	"context"
	"testing"
	"time"

	"collectsync-service/internal/domain/staff"
	"collectsync-service/internal/events"
	"collectsync-service/internal/notify"
	"collectsync-service/internal/pkg/xerrors"
	"collectsync-service/internal/session"
	"collectsync-service/internal/store"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type authFixture struct {
	service *Service
	creds   *session.Store
	local   *store.Store
	fanout  *notify.Fanout
	bus     *events.Bus
}

func newAuthFixture(t *testing.T, otpRequired bool) *authFixture {
	t.Helper()
	bus := events.NewBus()
	local := store.New(store.NewMemorySubstrate(), bus, zap.NewNop())
	creds := session.NewStore(store.NewMemorySubstrate(), zap.NewNop())
	fc := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	fanout := notify.NewFanout(local, bus, fc, zap.NewNop())
	tokens := NewTokenManager("test-secret", time.Hour)

	svc := NewService(local, creds, tokens, NewMemoryOTPStore(), NewMemoryRateLimiter(5, time.Minute),
		fanout, bus, fc, otpRequired, zap.NewNop())
	return &authFixture{service: svc, creds: creds, local: local, fanout: fanout, bus: bus}
}

func (f *authFixture) seedStaff(t *testing.T, account staff.Account, pin string) staff.Account {
	t.Helper()
	hash, err := HashPIN(pin)
	if err != nil {
		t.Fatalf("HashPIN: %v", err)
	}
	account.PINHash = hash
	doc, err := store.NewDocument(account.ID, account)
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	if err := f.local.Put(store.CollectionStaff, doc); err != nil {
		t.Fatalf("Put staff: %v", err)
	}
	return account
}

func TestLoginEstablishesSession(t *testing.T) {
	f := newAuthFixture(t, false)
	f.seedStaff(t, staff.Account{ID: "s1", Name: "Ravi", Role: staff.RoleAgent, Status: staff.StatusActive}, "1234")

	var started []events.SessionStarted
	f.bus.Subscribe(events.TopicSession, func(ev events.Event) {
		if p, ok := ev.Payload.(events.SessionStarted); ok {
			started = append(started, p)
		}
	})

	result, err := f.service.Login(context.Background(), "s1", "1234")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.OTPRequired {
		t.Fatal("OTP must not be required in this configuration")
	}
	if result.Token == "" {
		t.Fatal("expected a device token")
	}

	creds, ok := f.creds.Current()
	if !ok || creds.Staff.ID != "s1" {
		t.Fatalf("expected persisted credentials for s1, got %+v", creds)
	}
	if len(started) != 1 || started[0].StaffID != "s1" {
		t.Fatalf("expected SessionStarted for s1, got %+v", started)
	}
}

func TestLoginRejectsWrongPIN(t *testing.T) {
	f := newAuthFixture(t, false)
	f.seedStaff(t, staff.Account{ID: "s1", Status: staff.StatusActive}, "1234")

	_, err := f.service.Login(context.Background(), "s1", "9999")
	if !xerrors.Is(err, xerrors.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if _, ok := f.creds.Current(); ok {
		t.Fatal("failed login must not establish a session")
	}
}

func TestLoginRejectsUnknownAccount(t *testing.T) {
	f := newAuthFixture(t, false)

	_, err := f.service.Login(context.Background(), "ghost", "1234")
	if !xerrors.Is(err, xerrors.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	f := newAuthFixture(t, false)
	f.seedStaff(t, staff.Account{ID: "s1", Status: staff.StatusInactive}, "1234")

	_, err := f.service.Login(context.Background(), "s1", "1234")
	if !xerrors.Is(err, xerrors.ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount, got %v", err)
	}
}

func TestLoginRateLimited(t *testing.T) {
	f := newAuthFixture(t, false)
	f.seedStaff(t, staff.Account{ID: "s1", Status: staff.StatusActive}, "1234")

	for i := 0; i < 5; i++ {
		if _, err := f.service.Login(context.Background(), "s1", "0000"); !xerrors.Is(err, xerrors.ErrInvalidCredential) {
			t.Fatalf("attempt %d: expected ErrInvalidCredential, got %v", i, err)
		}
	}
	_, err := f.service.Login(context.Background(), "s1", "1234")
	if !xerrors.Is(err, xerrors.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on the sixth attempt, got %v", err)
	}
}

func TestOTPDeliveredThroughNotifications(t *testing.T) {
	f := newAuthFixture(t, true)
	f.seedStaff(t, staff.Account{ID: "s1", Status: staff.StatusActive}, "1234")

	result, err := f.service.Login(context.Background(), "s1", "1234")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !result.OTPRequired {
		t.Fatal("expected OTP step")
	}
	if result.Token != "" {
		t.Fatal("no token before the OTP is verified")
	}

	// The code travels as a notification addressed to the account.
	recs := f.fanout.List("s1")
	if len(recs) != 1 {
		t.Fatalf("expected 1 OTP notification, got %d", len(recs))
	}
	code := recs[0].Body
	if len(code) != 6 {
		t.Fatalf("expected a 6-digit code, got %q", code)
	}
	if recs[0].Audience != "s1" {
		t.Fatalf("OTP must be addressed to the account, got audience %q", recs[0].Audience)
	}
	if recs[0].ExpiresAt == nil {
		t.Fatal("OTP notification must carry an expiry for the purge job")
	}
	// Broadcast listing must not leak the code to other accounts.
	if leaked := f.fanout.List("s2"); len(leaked) != 0 {
		t.Fatalf("OTP leaked to another account: %+v", leaked)
	}

	verified, err := f.service.VerifyOTP(context.Background(), "s1", code)
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if verified.Token == "" {
		t.Fatal("expected a device token after OTP verification")
	}

	// Codes are single use.
	if _, err := f.service.VerifyOTP(context.Background(), "s1", code); !xerrors.Is(err, xerrors.ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP on reuse, got %v", err)
	}
}

func TestVerifyOTPRejectsWrongCode(t *testing.T) {
	f := newAuthFixture(t, true)
	f.seedStaff(t, staff.Account{ID: "s1", Status: staff.StatusActive}, "1234")

	if _, err := f.service.Login(context.Background(), "s1", "1234"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	_, err := f.service.VerifyOTP(context.Background(), "s1", "000000")
	if !xerrors.Is(err, xerrors.ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP, got %v", err)
	}
}

func TestLogoutAnnouncesTransition(t *testing.T) {
	f := newAuthFixture(t, false)
	f.seedStaff(t, staff.Account{ID: "s1", Status: staff.StatusActive}, "1234")

	var ended []events.SessionEnded
	f.bus.Subscribe(events.TopicSession, func(ev events.Event) {
		if p, ok := ev.Payload.(events.SessionEnded); ok {
			ended = append(ended, p)
		}
	})

	if _, err := f.service.Login(context.Background(), "s1", "1234"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	f.service.Logout(context.Background())

	if _, ok := f.creds.Current(); ok {
		t.Fatal("expected cleared credentials after logout")
	}
	if len(ended) != 1 || ended[0].Reason != "logout" {
		t.Fatalf("expected one SessionEnded with reason logout, got %+v", ended)
	}

	// Logging out twice is harmless.
	f.service.Logout(context.Background())
	if len(ended) != 1 {
		t.Fatalf("repeated logout must be a no-op, got %+v", ended)
	}
}

func TestValidateTokenTracksRosterState(t *testing.T) {
	f := newAuthFixture(t, false)
	account := f.seedStaff(t, staff.Account{ID: "s1", Role: staff.RoleAgent, Status: staff.StatusActive}, "1234")

	result, err := f.service.Login(context.Background(), "s1", "1234")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := f.service.ValidateToken(result.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.StaffID != "s1" || claims.Role != staff.RoleAgent {
		t.Fatalf("unexpected claims %+v", claims)
	}

	// Deactivating the account invalidates every outstanding token.
	account.Status = staff.StatusInactive
	doc, err := store.NewDocument(account.ID, account)
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	if err := f.local.Put(store.CollectionStaff, doc); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := f.service.ValidateToken(result.Token); !xerrors.Is(err, xerrors.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired for deactivated account, got %v", err)
	}

	if _, err := f.service.ValidateToken("not-a-token"); !xerrors.Is(err, xerrors.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired for garbage token, got %v", err)
	}
}

func TestHashPINRequiresFourDigits(t *testing.T) {
	if _, err := HashPIN("123"); !xerrors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short PIN, got %v", err)
	}
	if _, err := HashPIN("12345"); !xerrors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for long PIN, got %v", err)
	}
	hash, err := HashPIN("1234")
	if err != nil {
		t.Fatalf("HashPIN: %v", err)
	}
	if hash == "" || hash == "1234" {
		t.Fatal("expected a bcrypt hash")
	}
}
