package session

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/CVFox/internal/pkg/cache"
	"github.com/ManuelReschke/CVFox/internal/pkg/env"
	"github.com/ManuelReschke/CVFox/internal/pkg/usercontext"
)

var (
	sessionStore *session.Store
	// lifetime is the absolute session lifetime counted from login; the
	// store's own expiration is the idle timeout.
	lifetime = 12 * time.Hour
	now      = time.Now
)

// AccountSession is what the rest of the application gets to see of a
// session: who it belongs to and how long it lives.
type AccountSession struct {
	ID        string
	AccountID uint
	Email     string
	Username  string
	IsAdmin   bool
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewSessionStore creates the Redis backed session store.
func NewSessionStore(absolute, idle time.Duration) *session.Store {
	// Get Redis client configuration from existing cache setup
	cacheClient := cache.GetClient()
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	// Sessions live in database 1, markers and counters in the cache DB.
	storage := redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: env.GetEnvInt("SESSION_DB", 1),
		Reset:    false,
	})

	return Use(session.Config{
		Storage:        storage,
		CookieHTTPOnly: true,
		CookieSecure:   !env.IsDev(),
		CookieSameSite: "Lax",
		Expiration:     idle,
		KeyLookup:      "cookie:session_id",
	}, absolute)
}

// Use installs a session store built from cfg. Tests call it with the
// default in-memory storage.
func Use(cfg session.Config, absolute time.Duration) *session.Store {
	if absolute > 0 {
		lifetime = absolute
	}
	sessionStore = session.New(cfg)
	return sessionStore
}

func GetSessionStore() *session.Store {
	return sessionStore
}

// Login rotates the session id and binds the new session to the account.
func Login(c *fiber.Ctx, accountID uint, email, username string, isAdmin bool) (*AccountSession, error) {
	if sessionStore == nil {
		return nil, fmt.Errorf("session store not initialized")
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %v", err)
	}
	if err := sess.Regenerate(); err != nil {
		return nil, fmt.Errorf("failed to regenerate session: %v", err)
	}

	issued := now()
	sess.Set(usercontext.KeyUserID, accountID)
	sess.Set(usercontext.KeyEmail, email)
	sess.Set(usercontext.KeyUsername, username)
	sess.Set(usercontext.KeyIsAdmin, isAdmin)
	sess.Set(usercontext.KeyIssuedAt, issued.Unix())
	if err := sess.Save(); err != nil {
		return nil, fmt.Errorf("failed to save session: %v", err)
	}

	return &AccountSession{
		ID:        sess.ID(),
		AccountID: accountID,
		Email:     email,
		Username:  username,
		IsAdmin:   isAdmin,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(lifetime),
	}, nil
}

// Logout destroys the current session.
func Logout(c *fiber.Ctx) error {
	if sessionStore == nil {
		return nil
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return err
	}
	return sess.Destroy()
}

// GetAccountSession resolves the request's session cookie to an account
// session. It returns nil for anonymous requests and for sessions past their
// absolute lifetime, which are destroyed on the way.
func GetAccountSession(c *fiber.Ctx) *AccountSession {
	if sessionStore == nil {
		return nil
	}
	sess, err := sessionStore.Get(c)
	if err != nil || sess.Fresh() {
		return nil
	}

	accountID, ok := sess.Get(usercontext.KeyUserID).(uint)
	if !ok || accountID == 0 {
		return nil
	}
	issuedUnix, _ := sess.Get(usercontext.KeyIssuedAt).(int64)
	issued := time.Unix(issuedUnix, 0)
	expires := issued.Add(lifetime)
	if issuedUnix == 0 || !now().Before(expires) {
		_ = sess.Destroy()
		return nil
	}

	email, _ := sess.Get(usercontext.KeyEmail).(string)
	username, _ := sess.Get(usercontext.KeyUsername).(string)
	isAdmin, _ := sess.Get(usercontext.KeyIsAdmin).(bool)

	return &AccountSession{
		ID:        sess.ID(),
		AccountID: accountID,
		Email:     email,
		Username:  username,
		IsAdmin:   isAdmin,
		IssuedAt:  issued,
		ExpiresAt: expires,
	}
}

// SessionActive reports whether the store still holds a session id. Idle
// expiry is enforced by the storage TTL.
func SessionActive(id string) bool {
	if sessionStore == nil || sessionStore.Storage == nil || id == "" {
		return false
	}
	raw, err := sessionStore.Storage.Get(id)
	return err == nil && len(raw) > 0
}
