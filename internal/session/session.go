// Package session resolves the acting user of a request.
//
// Identity comes from an HS256 token carried in the session cookie or an
// Authorization bearer header. The resolved user is kept in the cache so that
// state changes made during a request (the room code) survive into the next
// one without a database read.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/cache"
	"github.com/Additional-Code/pincer/internal/config"
	"github.com/Additional-Code/pincer/internal/entity"
	userrepo "github.com/Additional-Code/pincer/internal/repository/user"
)

const contextKey = "pincer.user"

// Module provides the session manager to Fx.
var Module = fx.Provide(NewManager)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid session token")

// Claims is the payload of a session token.
type Claims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

// UserLoader resolves users by identifier.
type UserLoader interface {
	GetByUID(ctx context.Context, uid string) (*entity.User, error)
}

// Manager issues and verifies session tokens and tracks session users.
type Manager struct {
	secret   []byte
	cookie   string
	ttl      time.Duration
	users    UserLoader
	store    cache.Store
	networks []netip.Prefix
	now      func() time.Time
	logger   *zap.Logger
}

// Params defines dependencies for constructing Manager.
type Params struct {
	fx.In

	Config config.Config
	Users  *userrepo.Repository
	Cache  cache.Store
	Logger *zap.Logger
}

// NewManager wires a Manager from configuration.
func NewManager(p Params) (*Manager, error) {
	return New(p.Config, p.Users, p.Cache, p.Logger)
}

// New builds a Manager with an explicit user loader.
func New(cfg config.Config, users UserLoader, store cache.Store, logger *zap.Logger) (*Manager, error) {
	networks := make([]netip.Prefix, 0, len(cfg.Pincer.InternalNetworks))
	for _, raw := range cfg.Pincer.InternalNetworks {
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("parse internal network %q: %w", raw, err)
		}
		networks = append(networks, prefix)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		secret:   []byte(cfg.Session.Secret),
		cookie:   cfg.Session.CookieName,
		ttl:      cfg.Session.TTL,
		users:    users,
		store:    store,
		networks: networks,
		now:      time.Now,
		logger:   logger,
	}, nil
}

// Issue signs a session token for uid.
func (m *Manager) Issue(uid string) (string, error) {
	now := m.now()
	claims := Claims{
		UID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse verifies a session token.
func (m *Manager) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid || claims.UID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Middleware attaches the session user, when there is one, to the request.
// Requests without a valid token proceed anonymously.
func (m *Manager) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := m.tokenFrom(c.Request())
			if token == "" {
				return next(c)
			}
			claims, err := m.Parse(token)
			if err != nil {
				m.logger.Debug("ignoring invalid session token", zap.Error(err))
				return next(c)
			}
			user, err := m.load(c.Request().Context(), claims.UID)
			if err != nil {
				m.logger.Warn("session user unavailable", zap.String("uid", claims.UID), zap.Error(err))
				return next(c)
			}
			WithUser(c, user)
			return next(c)
		}
	}
}

// Save stores the user as the current session state.
func (m *Manager) Save(ctx context.Context, user *entity.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	return cache.SetJSON(ctx, m.store, sessionKey(user.UID), user, m.ttl)
}

// InInternalNetwork reports whether the client address is inside one of the
// configured internal networks.
func (m *Manager) InInternalNetwork(c echo.Context) bool {
	if len(m.networks) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(c.RealIP())
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range m.networks {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func (m *Manager) load(ctx context.Context, uid string) (*entity.User, error) {
	var user entity.User
	err := cache.GetJSON(ctx, m.store, sessionKey(uid), &user)
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		m.logger.Warn("session cache read failed", zap.String("uid", uid), zap.Error(err))
	}

	loaded, err := m.users.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if err := m.Save(ctx, loaded); err != nil {
		m.logger.Warn("session cache write failed", zap.String("uid", uid), zap.Error(err))
	}
	return loaded, nil
}

func (m *Manager) tokenFrom(r *http.Request) string {
	if auth := r.Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if cookie, err := r.Cookie(m.cookie); err == nil {
		return cookie.Value
	}
	return ""
}

func sessionKey(uid string) string {
	return "sessions:" + uid
}

// WithUser marks user as the acting user of the request.
func WithUser(c echo.Context, user *entity.User) {
	c.Set(contextKey, user)
}

// UserFrom returns the acting user of the request, if any.
func UserFrom(c echo.Context) (*entity.User, bool) {
	user, ok := c.Get(contextKey).(*entity.User)
	return user, ok && user != nil
}
