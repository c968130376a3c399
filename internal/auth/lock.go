package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/victornm/learnxp/internal/errors"
)

const (
	UnlockCookie = "learnxp_unlock"
	unlockTTL    = 30 * 24 * time.Hour
)

var lockBypass = []string{"/unlock", "/healthz", "/metrics"}

type LockConfig struct {
	Enabled bool
	// SecretHash is the bcrypt hash of the shared site secret.
	SecretHash string
	Tokens     *Tokens
}

// Lock keeps the whole site behind a shared secret while it is enabled.
type Lock struct {
	enabled bool
	hash    []byte
	tokens  *Tokens
}

func NewLock(c LockConfig) *Lock {
	return &Lock{
		enabled: c.Enabled,
		hash:    []byte(c.SecretHash),
		tokens:  c.Tokens,
	}
}

// Check reports whether secret matches the configured hash.
func (l *Lock) Check(secret string) bool {
	if len(l.hash) == 0 || secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(l.hash, []byte(secret)) == nil
}

// Middleware rejects requests without a valid unlock cookie with 423 Locked.
func (l *Lock) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.enabled || bypassed(c.Request.URL.Path) {
			c.Next()
			return
		}

		if v, err := c.Cookie(UnlockCookie); err == nil && l.tokens.verifyUnlock(v) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusLocked, gin.H{
			"code":    "Locked",
			"message": "this site is locked, POST the secret to /unlock",
		})
	}
}

type unlockRequest struct {
	Secret string `json:"secret" form:"secret" binding:"required"`
}

// Unlock exchanges the shared secret for the unlock cookie.
func (l *Lock) Unlock(c *gin.Context) {
	var req unlockRequest
	if err := c.ShouldBind(&req); err != nil {
		e := errors.InvalidArgument("secret is required")
		c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
		return
	}

	if !l.Check(req.Secret) {
		e := errors.Unauthenticated("wrong secret")
		c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
		return
	}

	tok, err := l.tokens.signUnlock(unlockTTL)
	if err != nil {
		slog.ErrorContext(c, "auth: sign unlock token failed", "error", err)
		e := errors.Internal(err)
		c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(UnlockCookie, tok, int(unlockTTL.Seconds()), "/", "", c.Request.TLS != nil, true)
	c.Status(http.StatusNoContent)
}

func bypassed(path string) bool {
	for _, p := range lockBypass {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
