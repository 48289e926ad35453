package session

import (
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-zones/internal/models"
)

// Session is a point-in-time view of the current identity. Authenticated is
// true exactly when Token is non-empty; User may be nil for an authenticated
// session right after a restart, until the identity is refetched.
type Session struct {
	User          *models.User
	Token         string
	Authenticated bool
}

// Store is the sole source of truth for the current identity. It restores
// token and user from durable storage on construction, persists every
// mutation, and notifies subscribers after each change. Safe for concurrent
// use.
type Store struct {
	mu      sync.RWMutex
	user    *models.User
	token   string
	storage Storage
	logger  *zap.Logger

	subMu  sync.Mutex
	subs   map[int]func(Session)
	nextID int
}

// NewStore builds a Store backed by the given durable storage. A stored
// token makes the session authenticated immediately; the stored user, when
// present, is restored alongside it. Corrupted durable entries are dropped
// rather than propagated.
func NewStore(storage Storage, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		storage: storage,
		logger:  logger,
		subs:    make(map[int]func(Session)),
	}

	if raw, ok, err := storage.Get(TokenKey); err == nil && ok {
		s.token = string(raw)
	} else if err != nil {
		logger.Warn("session restore: token unreadable", zap.Error(err))
	}

	if s.token != "" {
		if raw, ok, err := storage.Get(UserKey); err == nil && ok {
			var u models.User
			if err := json.Unmarshal(raw, &u); err != nil {
				logger.Warn("session restore: stored user unparseable", zap.Error(err))
			} else {
				s.user = &u
			}
		}
	}

	return s
}

// Session returns the current identity snapshot.
func (s *Store) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Session {
	var u *models.User
	if s.user != nil {
		copied := *s.user
		u = &copied
	}
	return Session{User: u, Token: s.token, Authenticated: s.token != ""}
}

// Token returns the current bearer token, or "" when unauthenticated.
// Satisfies the gateway's TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetCredentials stores a new identity after login or registration. Token
// and user are persisted together before subscribers are notified.
func (s *Store) SetCredentials(user *models.User, token string) error {
	if token == "" {
		return errors.New("session: empty token")
	}

	s.mu.Lock()
	s.user = user
	s.token = token
	if err := s.storage.Set(TokenKey, []byte(token)); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.persistUserLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// SetUser updates just the identity, used when backfilling the user after a
// restart. The token is left untouched.
func (s *Store) SetUser(user *models.User) error {
	s.mu.Lock()
	s.user = user
	if err := s.persistUserLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

func (s *Store) persistUserLocked() error {
	if s.user == nil {
		return s.storage.Delete(UserKey)
	}
	raw, err := json.Marshal(s.user)
	if err != nil {
		return err
	}
	return s.storage.Set(UserKey, raw)
}

// Clear destroys the session on logout or an authoritative unauthorized
// signal. Both durable entries are removed; a failure removing one does not
// stop removal of the other.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.user = nil
	s.token = ""
	tokenErr := s.storage.Delete(TokenKey)
	userErr := s.storage.Delete(UserKey)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	if tokenErr != nil {
		return tokenErr
	}
	return userErr
}

// Subscribe registers a callback invoked with the new snapshot after every
// mutation. The returned cancel removes the subscription.
func (s *Store) Subscribe(fn func(Session)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(snap Session) {
	s.subMu.Lock()
	fns := make([]func(Session), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
