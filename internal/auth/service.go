package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-zones/internal/cache"
	"github.com/kjstillabower/weather-zones/internal/models"
	"github.com/kjstillabower/weather-zones/internal/session"
	"github.com/kjstillabower/weather-zones/internal/ui"
	"github.com/kjstillabower/weather-zones/internal/zones"
)

// Service drives the authentication flows: it is the only writer of session
// credentials besides the gateway's unauthorized hook.
type Service struct {
	api      zones.API
	sessions *session.Store
	cache    *cache.Engine
	notifier *ui.Notifier
	logger   *zap.Logger
}

// NewService wires a Service.
func NewService(api zones.API, sessions *session.Store, engine *cache.Engine, notifier *ui.Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		api:      api,
		sessions: sessions,
		cache:    engine,
		notifier: notifier,
		logger:   logger,
	}
}

// Login authenticates by username or email and stores the credentials.
func (s *Service) Login(ctx context.Context, login, password string) (*models.User, error) {
	raw, err := s.api.Post(ctx, "/api/auth/login", models.LoginRequest{Login: login, Password: password})
	if err != nil {
		return nil, err
	}
	return s.storeCredentials(raw)
}

// Register creates an account and stores the returned credentials, so a
// fresh registration is immediately logged in.
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	raw, err := s.api.Post(ctx, "/api/auth/register", models.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, err
	}
	return s.storeCredentials(raw)
}

func (s *Service) storeCredentials(raw json.RawMessage) (*models.User, error) {
	var resp models.AuthResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	user := resp.User
	if err := s.sessions.SetCredentials(&user, resp.AccessToken); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout tells the server, then destroys the local session either way: a
// failed logout call never keeps the user logged in. Cached owner-scoped
// data is invalidated and pending toasts are cleared.
func (s *Service) Logout(ctx context.Context) error {
	if _, err := s.api.Post(ctx, "/api/auth/logout", nil); err != nil {
		s.logger.Debug("logout call failed, clearing session anyway", zap.Error(err))
	}
	s.cache.Invalidate(zones.CachePrefix)
	s.notifier.Clear()
	return s.sessions.Clear()
}

// Bootstrap backfills the user identity after a restart: a restored token
// makes the session authenticated with a nil user until this fetch lands.
// Failures are tolerated; an expired token clears itself through the
// gateway's unauthorized hook.
func (s *Service) Bootstrap(ctx context.Context) {
	sess := s.sessions.Session()
	if !sess.Authenticated || sess.User != nil {
		return
	}

	raw, err := s.api.Get(ctx, "/api/auth/me", nil)
	if err != nil {
		s.logger.Warn("identity refresh failed", zap.Error(err))
		return
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		s.logger.Warn("identity refresh unparseable", zap.Error(err))
		return
	}
	if err := s.sessions.SetUser(&user); err != nil {
		s.logger.Warn("identity persist failed", zap.Error(err))
	}
}
