package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/resource-api/internal/logging"
	"github.com/iliyamo/resource-api/internal/metrics"
	"github.com/iliyamo/resource-api/internal/model"
	"github.com/iliyamo/resource-api/internal/queue"
	"github.com/iliyamo/resource-api/internal/repository"
	"github.com/iliyamo/resource-api/internal/schema"
	"github.com/iliyamo/resource-api/internal/utils"
)

// SessionStore persists Session Records.  *repository.SessionRepo
// implements it.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	GetByToken(ctx context.Context, token string) (*model.Session, error)
	Touch(ctx context.Context, token string, at time.Time) error
	Deactivate(ctx context.Context, token string, at time.Time) error
	ListByUser(ctx context.Context, userID uint64, limit int) ([]model.Session, error)
}

// SessionCache is an optional read-through cache of sessions.
// *cache.SessionCache implements it.
type SessionCache interface {
	Get(ctx context.Context, token string) (*model.Session, bool, error)
	Fill(ctx context.Context, s *model.Session) error
	Revoke(ctx context.Context, token string) error
}

// AuthConfig carries the settings and optional collaborators of the auth
// service.  Cache, Events and Metrics may be nil.
type AuthConfig struct {
	Secret  string
	TTL     time.Duration
	Timeout time.Duration
	Cache   SessionCache
	Events  Publisher
	Metrics *metrics.Metrics
}

// SessionListLimit caps the audit trail returned by Sessions.
const SessionListLimit = 100

// AuthService issues, checks and revokes bearer tokens.  A token is valid
// only while its signature and expiry hold AND its session row is active.
type AuthService struct {
	users    *Controller
	sessions SessionStore
	cache    SessionCache
	events   Publisher
	metrics  *metrics.Metrics
	secret   string
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time
}

func NewAuthService(users *Controller, sessions SessionStore, cfg AuthConfig) *AuthService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		cache:    cfg.Cache,
		events:   cfg.Events,
		metrics:  cfg.Metrics,
		secret:   cfg.Secret,
		ttl:      cfg.TTL,
		timeout:  cfg.Timeout,
		now:      time.Now,
	}
}

// RegisterInput is the sign-up payload.  LoginKey is an email address or
// a phone number.
type RegisterInput struct {
	Name     string
	LoginKey string
	Password string
	Role     string
	Group    string
}

// LoginInput is the credential pair presented at login.
type LoginInput struct {
	LoginKey string
	Password string
}

// Client describes the caller of a login, recorded on the session row.
type Client struct {
	IP        string
	UserAgent string
}

// Widths of the sessions ip and user_agent columns.
const (
	maxClientIP        = 64
	maxClientUserAgent = 512
)

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      schema.Record `json:"user"`
}

// loginField picks the users column a login key is stored in.
func loginField(key string) string {
	if strings.Contains(key, "@") {
		return "email"
	}
	return "phone"
}

func (a *AuthService) observe(op string, err error) {
	a.metrics.Auth(op, resultOf(err))
}

// Register creates a user through the users controller, so validation,
// hashing and uniqueness behave exactly as on the admin endpoints.
func (a *AuthService) Register(ctx context.Context, in RegisterInput) (rec schema.Record, err error) {
	defer func() { a.observe("register", err) }()

	in.Name = strings.TrimSpace(in.Name)
	in.LoginKey = strings.TrimSpace(in.LoginKey)
	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.LoginKey == "" {
		missing = append(missing, "loginKey")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, validationError("missing "+strings.Join(missing, ", "), missing...)
	}

	body := map[string]any{
		"name":                  in.Name,
		loginField(in.LoginKey): in.LoginKey,
		schema.PasswordField:    in.Password,
	}
	if in.Role != "" {
		body["role"] = in.Role
	}
	if in.Group != "" {
		body["group_name"] = in.Group
	}
	rec, err = a.users.Create(ctx, body)
	if err != nil {
		return nil, err
	}
	id, _ := rec[schema.IDField].(int64)
	emit(ctx, a.events, queue.AuditEvent{Type: queue.UserRegistered, UserID: uint64(id), UserName: in.Name}, a.now())
	return rec, nil
}

// Login verifies the credentials, mints a token and opens its session.
// No token is returned unless the session row was written.
func (a *AuthService) Login(ctx context.Context, in LoginInput, client Client) (res LoginResult, err error) {
	defer func() { a.observe("login", err) }()
	log := logging.FromContext(ctx)

	in.LoginKey = strings.TrimSpace(in.LoginKey)
	if in.LoginKey == "" || in.Password == "" {
		return LoginResult{}, validationError("loginKey and password are required", "loginKey", "password")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	user, err := a.users.store.FindBy(ctx, loginField(in.LoginKey), in.LoginKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Info("login_failed", "reason", "unknown_login")
		}
		return LoginResult{}, translate(ctx, "auth.login", err, "user not found")
	}
	hash, _ := user[schema.PasswordField].(string)
	if !utils.VerifyPassword(hash, in.Password) {
		log.Info("login_failed", "reason", "bad_password")
		return LoginResult{}, unauthorized("invalid credentials")
	}

	id, _ := user[schema.IDField].(int64)
	name, _ := user["name"].(string)
	role, _ := user["role"].(string)
	tok, err := utils.NewSessionToken(a.secret, uint64(id), in.LoginKey, name, role, a.ttl, a.now())
	if err != nil {
		return LoginResult{}, internalError(ctx, "auth.login", err)
	}
	sess := &model.Session{
		UserID:    uint64(id),
		UserName:  name,
		Token:     tok.Token,
		SessionID: tok.SessionID,
		IssuedAt:  tok.IssuedAt,
		ExpiresAt: tok.ExpiresAt,
		IP:        clip(client.IP, maxClientIP),
		UserAgent: clip(client.UserAgent, maxClientUserAgent),
	}
	if err := a.sessions.Create(ctx, sess); err != nil {
		log.Error("session_create_failed", "user_id", id, "error", err)
		return LoginResult{}, &Error{Kind: KindInternal, Message: "internal error", Err: err}
	}

	emit(ctx, a.events, queue.AuditEvent{
		Type: queue.SessionOpened, UserID: sess.UserID, UserName: name,
		SessionID: sess.SessionID, IP: client.IP, UserAgent: client.UserAgent,
	}, a.now())
	return LoginResult{Token: tok.Token, ExpiresAt: tok.ExpiresAt, User: strip(user)}, nil
}

// verify applies both gates to a token whose session row is s.
func (a *AuthService) verify(token string, s *model.Session) (*utils.Claims, error) {
	if s == nil || s.Status != model.SessionActive {
		return nil, unauthorized("session is not active")
	}
	claims, err := utils.ParseToken(a.secret, token)
	if err != nil {
		return nil, unauthorized("invalid token")
	}
	if !s.Active(a.now()) {
		return nil, unauthorized("session expired")
	}
	return claims, nil
}

func (a *AuthService) loadSession(ctx context.Context, op, token string) (*model.Session, error) {
	s, err := a.sessions.GetByToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, unauthorized("session is not active")
	}
	if err != nil {
		return nil, internalError(ctx, op, err)
	}
	return s, nil
}

// Check validates token against the session store and records the check.
func (a *AuthService) Check(ctx context.Context, token string) (claims *utils.Claims, err error) {
	defer func() { a.observe("check", err) }()
	if token == "" {
		return nil, unauthorized("missing token")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	s, err := a.loadSession(ctx, "auth.check", token)
	if err != nil {
		return nil, err
	}
	if claims, err = a.verify(token, s); err != nil {
		return nil, err
	}
	if err := a.sessions.Touch(ctx, token, a.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrSessionNotActive) {
			return nil, unauthorized("session is not active")
		}
		return nil, internalError(ctx, "auth.check", err)
	}
	return claims, nil
}

// Authenticate is Check without the audit write.  It is what the bearer
// guard calls on every protected request, so it reads through the cache.
func (a *AuthService) Authenticate(ctx context.Context, token string) (claims *utils.Claims, err error) {
	defer func() { a.observe("authenticate", err) }()
	if token == "" {
		return nil, unauthorized("missing token")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	var s *model.Session
	if a.cache != nil {
		cached, ok, cerr := a.cache.Get(ctx, token)
		if cerr != nil {
			logging.FromContext(ctx).Warn("session_cache_failed", "op", "get", "error", cerr)
		} else if ok {
			s = cached
		}
	}
	if s == nil {
		if s, err = a.loadSession(ctx, "auth.authenticate", token); err != nil {
			return nil, err
		}
		if a.cache != nil && s.Status == model.SessionActive {
			if cerr := a.cache.Fill(ctx, s); cerr != nil {
				logging.FromContext(ctx).Warn("session_cache_failed", "op", "fill", "error", cerr)
			}
		}
	}
	return a.verify(token, s)
}

// Logoff deactivates the session of token.  The signature is not checked:
// holding the token is enough to end its session.  The cache is tombstoned
// first so that a failure half way leaves the token rejected, not accepted.
func (a *AuthService) Logoff(ctx context.Context, token string) (err error) {
	defer func() { a.observe("logoff", err) }()
	if token == "" {
		return unauthorized("missing token")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if a.cache != nil {
		if cerr := a.cache.Revoke(ctx, token); cerr != nil {
			logging.FromContext(ctx).Warn("session_cache_failed", "op", "revoke", "error", cerr)
		}
	}
	now := a.now().UTC()
	if err := a.sessions.Deactivate(ctx, token, now); err != nil {
		if errors.Is(err, repository.ErrSessionNotActive) {
			return unauthorized("session is not active")
		}
		return internalError(ctx, "auth.logoff", err)
	}

	ev := queue.AuditEvent{Type: queue.SessionClosed}
	if c, perr := utils.PeekClaims(token); perr == nil {
		uid, _ := c.UserID()
		ev.UserID, ev.UserName, ev.SessionID = uid, c.Name, c.ID
	}
	emit(ctx, a.events, ev, now)
	return nil
}

// Sessions returns the session audit trail of a user, newest first.
func (a *AuthService) Sessions(ctx context.Context, userID uint64) (list []model.Session, err error) {
	defer func() { a.observe("sessions", err) }()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	list, err = a.sessions.ListByUser(ctx, userID, SessionListLimit)
	if err != nil {
		return nil, internalError(ctx, "auth.sessions", err)
	}
	return list, nil
}
