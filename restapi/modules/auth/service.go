// Package auth implements account registration, sign-in, sessions and
// profile management behind the /api/auth routes.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Cognio-so/agt-tester/database"
	"github.com/Cognio-so/agt-tester/events/modules/accounts"
	"github.com/Cognio-so/agt-tester/internal/keycodec"
	"github.com/Cognio-so/agt-tester/internal/tokens"
	"github.com/Cognio-so/agt-tester/model"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ObjectStorage stores uploaded files
type ObjectStorage interface {
	Upload(ctx context.Context, data []byte, filename, contentType, prefix string) (string, error)
	Delete(ctx context.Context, key string) error
	PublicURL() string
}

// Service implements the account operations behind the auth routes.
type Service struct {
	store       database.Store
	mailer      Mailer
	storage     ObjectStorage
	codec       *keycodec.Codec
	tokens      *tokens.Issuer
	events      accounts.Publisher
	logger      *zap.Logger
	bcryptCost  int
	frontendURL string
	now         func() time.Time
}

// Options collects the collaborators of a Service. Storage may be nil when
// uploads are not configured. Events and Logger default to no-ops and a nil
// Mailer logs messages instead of sending them.
type Options struct {
	Store       database.Store
	Mailer      Mailer
	Storage     ObjectStorage
	Codec       *keycodec.Codec
	Tokens      *tokens.Issuer
	Events      accounts.Publisher
	Logger      *zap.Logger
	BcryptCost  int
	FrontendURL string
}

// NewService builds a Service from opts
func NewService(opts Options) *Service {
	s := &Service{
		store:       opts.Store,
		mailer:      opts.Mailer,
		storage:     opts.Storage,
		codec:       opts.Codec,
		tokens:      opts.Tokens,
		events:      opts.Events,
		logger:      opts.Logger,
		bcryptCost:  opts.BcryptCost,
		frontendURL: strings.TrimRight(opts.FrontendURL, "/"),
		now:         func() time.Time { return time.Now().UTC() },
	}
	if s.events == nil {
		s.events = accounts.Noop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.mailer == nil {
		s.mailer = NewSMTPMailer(EmailConfig{}, s.logger)
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	if s.frontendURL == "" {
		s.frontendURL = "http://localhost:5173"
	}
	return s
}

// Store returns the persistence layer the service writes to
func (s *Service) Store() database.Store { return s.store }

// Tokens returns the token issuer
func (s *Service) Tokens() *tokens.Issuer { return s.tokens }

// Logger returns the service logger
func (s *Service) Logger() *zap.Logger { return s.logger }

// FrontendURL returns the browser application base URL
func (s *Service) FrontendURL() string { return s.frontendURL }

// Publish emits an account event; failures are logged only.
func (s *Service) Publish(ctx context.Context, eventType string, u *model.User) {
	if err := s.events.Publish(ctx, eventType, u); err != nil {
		s.logger.Warn("Failed to publish account event",
			zap.String("event", eventType), zap.String("user_id", u.Key), zap.Error(err))
	}
}

// logMailError records an email failure without failing the request
func (s *Service) logMailError(kind, email string, err error) {
	if err != nil {
		s.logger.Error("Failed to send email", zap.String("kind", kind), zap.String("to", email), zap.Error(err))
	}
}

func (s *Service) loadUser(ctx context.Context, id string) (*model.User, error) {
	u, err := s.store.FindUserByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, internal("Server error", err)
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
