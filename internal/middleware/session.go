package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"carlot/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionCookie carries the session token for the rendered pages.
	SessionCookie = "session"

	// Fiber locals populated by LoadSession.
	LocalUserID   = "userID"
	LocalUsername = "username"
	LocalSession  = "session"

	tokenIssuer   = "carlot-api"
	tokenAudience = "carlot-client"
)

// ErrInvalidSession is returned for tokens that fail verification or were revoked.
var ErrInvalidSession = errors.New("invalid session")

// Session is the verified identity behind a request.
type Session struct {
	UserID    uint
	Username  string
	JTI       string
	ExpiresAt time.Time
}

// SessionManager issues, verifies and revokes signed session tokens.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	rdb    *redis.Client
	now    func() time.Time
}

// NewSessionManager creates a SessionManager. rdb may be nil, in which case revocation is a no-op.
func NewSessionManager(secret string, ttl time.Duration, rdb *redis.Client) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		rdb:    rdb,
		now:    time.Now,
	}
}

// Issue signs a new session token for the user.
func (m *SessionManager) Issue(userID uint, username string) (string, *Session, error) {
	if len(m.secret) == 0 {
		return "", nil, fmt.Errorf("session secret not configured")
	}

	now := m.now()
	sess := &Session{
		UserID:    userID,
		Username:  username,
		JTI:       uuid.NewString(),
		ExpiresAt: now.Add(m.ttl),
	}
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      tokenIssuer,
		"aud":      tokenAudience,
		"exp":      sess.ExpiresAt.Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      sess.JTI,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, err
	}
	return token, sess, nil
}

// Parse verifies a token and checks the revocation list.
func (m *SessionManager) Parse(ctx context.Context, tokenString string) (*Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidSession
	}

	sub, _ := claims["sub"].(string)
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, ErrInvalidSession
	}

	sess := &Session{UserID: uint(userID)}
	sess.Username, _ = claims["username"].(string)
	sess.JTI, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		sess.ExpiresAt = exp.Time
	}

	if sess.JTI != "" && m.rdb != nil {
		revoked, err := m.rdb.Exists(ctx, blacklistKey(sess.JTI)).Result()
		if err == nil && revoked > 0 {
			return nil, ErrInvalidSession
		}
	}

	return sess, nil
}

// Revoke blacklists the session until it would have expired anyway.
func (m *SessionManager) Revoke(ctx context.Context, sess *Session) error {
	if sess == nil || sess.JTI == "" || m.rdb == nil {
		return nil
	}
	ttl := sess.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	return m.rdb.Set(ctx, blacklistKey(sess.JTI), "1", ttl).Err()
}

// TTL is the lifetime of issued sessions.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

func blacklistKey(jti string) string {
	return "blacklist:" + jti
}

// LoadSession resolves the session from the Authorization header or the session cookie.
// It never rejects a request; use SessionRequired or PageSessionRequired for that.
func (m *SessionManager) LoadSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" {
			tokenString = c.Cookies(SessionCookie)
		}
		if tokenString == "" {
			return c.Next()
		}

		sess, err := m.Parse(c.UserContext(), tokenString)
		if err != nil {
			return c.Next()
		}

		c.Locals(LocalUserID, sess.UserID)
		c.Locals(LocalUsername, sess.Username)
		c.Locals(LocalSession, sess)
		c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, sess.UserID))
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get(fiber.HeaderAuthorization), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// UserID returns the session user id, or 0 when the request is anonymous.
func UserID(c *fiber.Ctx) uint {
	uid, _ := c.Locals(LocalUserID).(uint)
	return uid
}

// Username returns the session username, or "" when the request is anonymous.
func Username(c *fiber.Ctx) string {
	name, _ := c.Locals(LocalUsername).(string)
	return name
}

// CurrentSession returns the verified session, or nil.
func CurrentSession(c *fiber.Ctx) *Session {
	sess, _ := c.Locals(LocalSession).(*Session)
	return sess
}

// SessionRequired rejects anonymous API requests with 401.
func SessionRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserID(c) == 0 {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("You must be logged in"))
		}
		return c.Next()
	}
}

// PageSessionRequired redirects anonymous page requests to the error page.
func PageSessionRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserID(c) == 0 {
			return c.Redirect(ErrorPageURL("You must be logged in"), fiber.StatusFound)
		}
		return c.Next()
	}
}

// ErrorPageURL builds the redirect target for a failed page action.
func ErrorPageURL(message string) string {
	return "/error?error=" + url.QueryEscape(message)
}
