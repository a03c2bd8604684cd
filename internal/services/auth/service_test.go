package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	pgrepo "github.com/campusmatch/backend/internal/repo/postgres"
	redrepo "github.com/campusmatch/backend/internal/repo/redis"
	authsvc "github.com/campusmatch/backend/internal/services/auth"
	"github.com/campusmatch/backend/internal/services/notify"
)

type stubUserStore struct {
	byEmail map[string]pgrepo.UserRecord
	byID    map[int64]pgrepo.UserRecord
	nextID  int64
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{
		byEmail: map[string]pgrepo.UserRecord{},
		byID:    map[int64]pgrepo.UserRecord{},
		nextID:  1,
	}
}

func (s *stubUserStore) Create(_ context.Context, email, passwordHash, university string) (pgrepo.UserRecord, error) {
	if _, ok := s.byEmail[email]; ok {
		return pgrepo.UserRecord{}, pgrepo.ErrEmailTaken
	}
	user := pgrepo.UserRecord{
		ID:           s.nextID,
		Email:        email,
		PasswordHash: passwordHash,
		University:   university,
	}
	s.nextID++
	s.byEmail[email] = user
	s.byID[user.ID] = user
	return user, nil
}

func (s *stubUserStore) GetByEmail(_ context.Context, email string) (pgrepo.UserRecord, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return pgrepo.UserRecord{}, pgrepo.ErrUserNotFound
	}
	return user, nil
}

func (s *stubUserStore) GetByID(_ context.Context, userID int64) (pgrepo.UserRecord, error) {
	user, ok := s.byID[userID]
	if !ok {
		return pgrepo.UserRecord{}, pgrepo.ErrUserNotFound
	}
	return user, nil
}

func (s *stubUserStore) MarkVerified(_ context.Context, userID int64) error {
	user, ok := s.byID[userID]
	if !ok {
		return pgrepo.ErrUserNotFound
	}
	user.EmailVerified = true
	s.byID[userID] = user
	s.byEmail[user.Email] = user
	return nil
}

// recordingBridge captures verification codes the way a mailer worker
// would receive them.
type recordingBridge struct {
	notify.NopBridge
	codes []notify.VerificationRequestedEvent
}

func (b *recordingBridge) VerificationRequested(_ context.Context, ev notify.VerificationRequestedEvent) {
	b.codes = append(b.codes, ev)
}

type stubProfileBootstrap struct {
	created []int64
}

func (s *stubProfileBootstrap) CreateEmpty(_ context.Context, userID int64) error {
	s.created = append(s.created, userID)
	return nil
}

func TestRegisterAndLogin(t *testing.T) {
	f := newAuthServiceForTest(t)
	svc := f.svc

	ctx := context.Background()
	res, err := svc.Register(ctx, "Anna@Student.BSU.BY", "correct-horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.Me.University != "student.bsu.by" {
		t.Fatalf("unexpected university: %s", res.Me.University)
	}
	if len(f.bootstrap.created) != 1 || f.bootstrap.created[0] != res.Me.ID {
		t.Fatalf("profile was not bootstrapped: %v", f.bootstrap.created)
	}

	if _, err := svc.ValidateAccessToken(ctx, res.AccessToken); err != nil {
		t.Fatalf("validate access token: %v", err)
	}

	loginRes, err := svc.Login(ctx, "anna@student.bsu.by", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loginRes.Me.ID != res.Me.ID {
		t.Fatalf("login resolved different user: %d vs %d", loginRes.Me.ID, res.Me.ID)
	}

	if _, err := svc.Login(ctx, "anna@student.bsu.by", "wrong-password"); !errors.Is(err, authsvc.ErrBadCredentials) {
		t.Fatalf("expected bad credentials, got %v", err)
	}
}

func TestVerifyEmailMarksUserVerified(t *testing.T) {
	f := newAuthServiceForTest(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, "verify@student.bsu.by", "correct-horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(f.bridge.codes) != 1 {
		t.Fatalf("registration must dispatch one verification code, got %d", len(f.bridge.codes))
	}
	ev := f.bridge.codes[0]
	if ev.UserID != res.Me.ID || ev.Email != "verify@student.bsu.by" || ev.Code == "" {
		t.Fatalf("bad verification event: %+v", ev)
	}

	if err := f.svc.VerifyEmail(ctx, ev.Code); err != nil {
		t.Fatalf("verify: %v", err)
	}
	user, err := f.users.GetByID(ctx, res.Me.ID)
	if err != nil || !user.EmailVerified {
		t.Fatalf("user should be verified after the code is used: %+v err=%v", user, err)
	}

	if err := f.svc.VerifyEmail(ctx, ev.Code); !errors.Is(err, authsvc.ErrVerificationNotFound) {
		t.Fatalf("a code must burn on first use, got %v", err)
	}
}

func TestVerifyEmailRejectsUnknownCode(t *testing.T) {
	f := newAuthServiceForTest(t)

	if err := f.svc.VerifyEmail(context.Background(), "no-such-code"); !errors.Is(err, authsvc.ErrVerificationNotFound) {
		t.Fatalf("expected ErrVerificationNotFound, got %v", err)
	}
}

func TestRequestEmailVerificationReissuesCode(t *testing.T) {
	f := newAuthServiceForTest(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, "resend@student.bsu.by", "correct-horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := f.svc.RequestEmailVerification(ctx, res.Me.ID); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if len(f.bridge.codes) != 2 {
		t.Fatalf("expected a second code, got %d events", len(f.bridge.codes))
	}
	if err := f.svc.VerifyEmail(ctx, f.bridge.codes[1].Code); err != nil {
		t.Fatalf("verify with reissued code: %v", err)
	}

	// Verified accounts are left alone.
	if err := f.svc.RequestEmailVerification(ctx, res.Me.ID); err != nil {
		t.Fatalf("resend after verify: %v", err)
	}
	if len(f.bridge.codes) != 2 {
		t.Fatalf("verified account must not receive codes, got %d events", len(f.bridge.codes))
	}
}

func TestRegisterRejectsForeignDomain(t *testing.T) {
	svc := newAuthServiceForTest(t).svc

	if _, err := svc.Register(context.Background(), "someone@gmail.com", "long-enough"); !errors.Is(err, authsvc.ErrEmailNotAllowed) {
		t.Fatalf("expected ErrEmailNotAllowed, got %v", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newAuthServiceForTest(t).svc

	if _, err := svc.Register(context.Background(), "a@student.bsu.by", "short"); !errors.Is(err, authsvc.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := newAuthServiceForTest(t).svc

	ctx := context.Background()
	if _, err := svc.Register(ctx, "dup@student.bsu.by", "correct-horse"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, "dup@student.bsu.by", "correct-horse"); !errors.Is(err, authsvc.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	svc := newAuthServiceForTest(t).svc

	ctx := context.Background()
	loginRes, err := svc.Register(ctx, "rotate@student.bsu.by", "correct-horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	refreshRes, err := svc.Refresh(ctx, loginRes.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshRes.RefreshToken == loginRes.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	if _, err := svc.Refresh(ctx, loginRes.RefreshToken); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("old refresh token should be unauthorized, got err=%v", err)
	}

	if _, err := svc.ValidateAccessToken(ctx, refreshRes.AccessToken); err != nil {
		t.Fatalf("new access token validation failed: %v", err)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	svc := newAuthServiceForTest(t).svc

	ctx := context.Background()
	loginRes, err := svc.Register(ctx, "logout@student.bsu.by", "correct-horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	claims, err := svc.ValidateAccessToken(ctx, loginRes.AccessToken)
	if err != nil {
		t.Fatalf("validate access token before logout: %v", err)
	}

	if err := svc.Logout(ctx, claims.SID); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := svc.ValidateAccessToken(ctx, loginRes.AccessToken); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("access token should be unauthorized after logout, got err=%v", err)
	}
}

type authFixture struct {
	svc       *authsvc.Service
	users     *stubUserStore
	bootstrap *stubProfileBootstrap
	bridge    *recordingBridge
}

func newAuthServiceForTest(t *testing.T) *authFixture {
	t.Helper()

	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mini.Close()
	})

	users := newStubUserStore()
	bootstrap := &stubProfileBootstrap{}
	bridge := &recordingBridge{}
	svc := authsvc.NewService(authsvc.Dependencies{
		JWT:            authsvc.NewJWTManager("test-secret", 15*time.Minute),
		Sessions:       redrepo.NewSessionRepo(client),
		Users:          users,
		Profiles:       bootstrap,
		Verifications:  redrepo.NewVerificationRepo(client),
		Bridge:         bridge,
		AllowedDomains: []string{"student.bsu.by"},
		RefreshTTL:     45 * 24 * time.Hour,
	})

	return &authFixture{svc: svc, users: users, bootstrap: bootstrap, bridge: bridge}
}
