package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Cognio-so/agt-tester/database"
	"github.com/Cognio-so/agt-tester/internal/apperr"
	"github.com/Cognio-so/agt-tester/internal/keycodec"
	"github.com/Cognio-so/agt-tester/internal/tokens"
	"github.com/Cognio-so/agt-tester/model"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testKey = "0123456789abcdef0123456789abcdef"

type sentMail struct {
	kind string
	to   string
	arg  string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) record(kind, to, arg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: kind, to: to, arg: arg})
	return m.err
}

func (m *fakeMailer) SendVerificationEmail(email, code string) error {
	return m.record("verification", email, code)
}

func (m *fakeMailer) SendWelcomeEmail(email, name string) error {
	return m.record("welcome", email, name)
}

func (m *fakeMailer) SendResetPasswordEmail(email, resetURL string) error {
	return m.record("reset", email, resetURL)
}

func (m *fakeMailer) SendPasswordResetSuccessEmail(email string) error {
	return m.record("reset-success", email, "")
}

func (m *fakeMailer) last(kind string) (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i], true
		}
	}
	return sentMail{}, false
}

type fakeStorage struct {
	uploads   []string
	deleted   []string
	uploadErr error
	deleteErr error
}

func (s *fakeStorage) Upload(_ context.Context, _ []byte, filename, _, prefix string) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	key := prefix + "/" + filename
	s.uploads = append(s.uploads, key)
	return s.PublicURL() + "/" + key, nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return s.deleteErr
}

func (s *fakeStorage) PublicURL() string { return "https://cdn.example.com" }

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ *model.User) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

type fixture struct {
	svc     *Service
	store   *database.MemoryStore
	mailer  *fakeMailer
	storage *fakeStorage
	events  *recordingPublisher
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	codec, err := keycodec.New([]byte(testKey))
	require.NoError(t, err)
	issuer, err := tokens.NewIssuer(tokens.Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	f := &fixture{
		store:   database.NewMemoryStore(),
		mailer:  &fakeMailer{},
		storage: &fakeStorage{},
		events:  &recordingPublisher{},
		now:     time.Now().UTC().Truncate(time.Second),
	}
	f.svc = NewService(Options{
		Store:       f.store,
		Mailer:      f.mailer,
		Storage:     f.storage,
		Codec:       codec,
		Tokens:      issuer,
		Events:      f.events,
		BcryptCost:  bcrypt.MinCost,
		FrontendURL: "http://app.test/",
	})
	f.svc.now = func() time.Time { return f.now }
	return f
}

// addUser stores a verified user with password "secret1"
func (f *fixture) addUser(t *testing.T, name, email string, role model.Role) *model.User {
	t.Helper()
	hash, err := HashPassword("secret1", bcrypt.MinCost)
	require.NoError(t, err)

	u := model.NewUser(name, email)
	u.PasswordHash = hash
	u.Role = role
	u.IsVerified = true
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) accessToken(t *testing.T, u *model.User) string {
	t.Helper()
	token, err := f.svc.tokens.IssueAccessToken(u.Key)
	require.NoError(t, err)
	return token
}

// newApp mirrors the production error handler closely enough for status
// and message assertions
func newApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status, msg := fiber.StatusInternalServerError, "Server error"
			var appErr *apperr.Error
			if errors.As(err, &appErr) {
				status, msg = appErr.Status, appErr.Message
			}
			return c.Status(status).JSON(fiber.Map{"success": false, "message": msg})
		},
	})
}

func requireAppErr(t *testing.T, err error, status int, msg string) {
	t.Helper()
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, status, appErr.Status)
	require.Equal(t, msg, appErr.Message)
}
