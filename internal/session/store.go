// Package session holds the explicit login session shared by the listing and
// enquiry components. It replaces any ambient token storage: callers receive the
// Store by reference and drive its Login/Logout lifecycle.
package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"land-marketplace/internal/common/errors"
	apihttp "land-marketplace/internal/common/http"
	"land-marketplace/internal/common/logger"
	"land-marketplace/internal/common/metrics"
	"land-marketplace/internal/common/validation"
	"land-marketplace/internal/models"
)

const (
	loginPath          = "/login/login"
	signupPath         = "/user/create"
	changePasswordPath = "/login/change-password"
	profilePath        = "/user/get"
)

// Snapshot is a read-only view of the session for display.
type Snapshot struct {
	Authenticated bool
	Admin         bool
	User          *models.User
}

// Store holds the current token and user profile. It is safe for concurrent use
// and implements apihttp.TokenSource.
type Store struct {
	mu          sync.RWMutex
	api         *apihttp.Client
	authed      *apihttp.Client
	persistence Persistence
	logger      logger.Logger
	session     *models.Session
	now         func() time.Time
}

func NewStore(api *apihttp.Client, persistence Persistence, log logger.Logger) *Store {
	if persistence == nil {
		persistence = NewMemoryPersistence()
	}
	s := &Store{
		api:         api,
		persistence: persistence,
		logger:      log.WithFields(map[string]interface{}{"component": "session"}),
		now:         time.Now,
	}
	s.authed = api.WithTokenSource(s)
	return s
}

// Client returns an API client that authenticates with this session's token.
func (s *Store) Client() *apihttp.Client {
	return s.authed
}

// Login exchanges credentials for a token. On success the session is active even if
// persisting it fails; that failure is returned as SESSION_PERSISTENCE_FAILED.
func (s *Store) Login(ctx context.Context, identifier, password string) error {
	identifier = strings.TrimSpace(identifier)
	payload := map[string]interface{}{"identifier": identifier, "password": password}
	if err := validation.Check(validation.LoginSchema, payload); err != nil {
		metrics.SessionEventsTotal.WithLabelValues("login", metrics.OutcomeInvalid).Inc()
		return err
	}

	var body json.RawMessage
	if err := s.api.Post(ctx, loginPath, payload, false, &body); err != nil {
		metrics.SessionEventsTotal.WithLabelValues("login", metrics.OutcomeFailed).Inc()
		s.logger.Warn("login failed", map[string]interface{}{"identifier": identifier, "error": err.Error()})
		return err
	}

	var token string
	if err := apihttp.Decode(body, "token", &token); err != nil {
		metrics.SessionEventsTotal.WithLabelValues("login", metrics.OutcomeFailed).Inc()
		return err
	}
	if token == "" {
		metrics.SessionEventsTotal.WithLabelValues("login", metrics.OutcomeFailed).Inc()
		return errors.NewUnexpectedShapeError("token", "empty token")
	}

	var user *models.User
	if raw, err := apihttp.Unwrap(body, "user"); err == nil {
		var u models.User
		if err := json.Unmarshal(raw, &u); err != nil {
			metrics.SessionEventsTotal.WithLabelValues("login", metrics.OutcomeFailed).Inc()
			return errors.NewUnexpectedShapeError("user", err.Error())
		}
		user = &u
	}

	sess := &models.Session{Token: token, User: user, LoggedInAt: s.now().UTC()}
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	metrics.SessionEventsTotal.WithLabelValues("login", metrics.OutcomeSuccess).Inc()
	s.logger.Info("logged in", map[string]interface{}{
		"identifier": identifier,
		"admin":      user.IsAdmin(),
	})

	if err := s.persistence.Save(ctx, sess); err != nil {
		s.logger.Error("failed to persist session", map[string]interface{}{"error": err.Error()})
		return errors.NewSessionPersistenceError("save", err)
	}
	return nil
}

// Logout clears the session. Calling it while logged out is a no-op apart from
// clearing persistence again.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	wasAuthenticated := s.session.IsAuthenticated()
	s.session = nil
	s.mu.Unlock()

	if err := s.persistence.Clear(ctx); err != nil {
		metrics.SessionEventsTotal.WithLabelValues("logout", metrics.OutcomeFailed).Inc()
		s.logger.Error("failed to clear persisted session", map[string]interface{}{"error": err.Error()})
		return errors.NewSessionPersistenceError("clear", err)
	}

	if wasAuthenticated {
		metrics.SessionEventsTotal.WithLabelValues("logout", metrics.OutcomeSuccess).Inc()
		s.logger.Info("logged out", nil)
	}
	return nil
}

// Restore loads a persisted session, if any. A failed load leaves the store
// logged out.
func (s *Store) Restore(ctx context.Context) error {
	sess, err := s.persistence.Load(ctx)
	if err != nil {
		metrics.SessionEventsTotal.WithLabelValues("restore", metrics.OutcomeFailed).Inc()
		s.logger.Warn("failed to restore session", map[string]interface{}{"error": err.Error()})
		return errors.NewSessionPersistenceError("load", err)
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	if sess.IsAuthenticated() {
		metrics.SessionEventsTotal.WithLabelValues("restore", metrics.OutcomeSuccess).Inc()
		s.logger.Debug("session restored", map[string]interface{}{"loggedInAt": sess.LoggedInAt})
	}
	return nil
}

// Signup registers a new account. It does not log the user in.
func (s *Store) Signup(ctx context.Context, req models.SignupRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	doc := map[string]interface{}{
		"username":  req.Username,
		"full_name": req.FullName,
		"email":     req.Email,
		"phone":     req.Phone,
		"password":  req.Password,
	}
	if err := validation.Check(validation.SignupSchema, doc); err != nil {
		return err
	}
	if err := s.api.Post(ctx, signupPath, req, false, nil); err != nil {
		s.logger.Warn("signup failed", map[string]interface{}{"username": req.Username, "error": err.Error()})
		return err
	}
	s.logger.Info("account created", map[string]interface{}{"username": req.Username})
	return nil
}

// ChangePassword updates the logged-in user's password.
func (s *Store) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	user := s.User()
	if !s.IsAuthenticated() {
		return errors.NewAuthenticationRequiredError("change password requires a session")
	}
	if oldPassword == "" || len(newPassword) < 6 {
		return errors.NewValidationError("Password must be at least 6 characters", map[string]string{
			"new_password": "Password must be at least 6 characters",
		})
	}

	username := ""
	if user != nil {
		username = user.Username
		if username == "" {
			username = user.Email
		}
	}
	payload := map[string]string{
		"username":     username,
		"old_password": oldPassword,
		"new_password": newPassword,
	}
	return s.authed.Post(ctx, changePasswordPath, payload, true, nil)
}

// RefreshProfile reloads the user profile from the server and persists it.
func (s *Store) RefreshProfile(ctx context.Context) error {
	var body json.RawMessage
	if err := s.authed.Get(ctx, profilePath, nil, true, &body); err != nil {
		return err
	}
	var user models.User
	if err := apihttp.Decode(body, "user", &user); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.session.IsAuthenticated() {
		s.mu.Unlock()
		return errors.NewAuthenticationRequiredError("session ended during refresh")
	}
	updated := copySession(s.session)
	updated.User = &user
	s.session = updated
	s.mu.Unlock()

	if err := s.persistence.Save(ctx, updated); err != nil {
		return errors.NewSessionPersistenceError("save", err)
	}
	return nil
}

// Token implements apihttp.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.Token
}

// User returns a copy of the current profile, or nil.
func (s *Store) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil || s.session.User == nil {
		return nil
	}
	u := *s.session.User
	return &u
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.IsAuthenticated()
}

func (s *Store) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.IsAuthenticated() && s.session.User.IsAdmin()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{Authenticated: s.session.IsAuthenticated()}
	if snap.Authenticated && s.session.User != nil {
		u := *s.session.User
		snap.User = &u
		snap.Admin = u.IsAdmin()
	}
	return snap
}
