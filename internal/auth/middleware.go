package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/victornm/learnxp/internal/errors"
)

const identityKey = "auth.identity"

// Optional attaches the caller's identity when a valid bearer token is
// present. Anonymous and invalid requests continue without one.
func (t *Tokens) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := t.fromHeader(c.GetHeader("Authorization")); ok {
			c.Set(identityKey, id)
		}
		c.Next()
	}
}

// Required rejects the request unless it carries a valid bearer token.
func (t *Tokens) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := t.fromHeader(c.GetHeader("Authorization"))
		if !ok {
			e := errors.Unauthenticated("a valid bearer token is required")
			c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

func (t *Tokens) fromHeader(h string) (Identity, bool) {
	tok, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return Identity{}, false
	}

	id, err := t.Verify(strings.TrimSpace(tok))
	if err != nil {
		return Identity{}, false
	}
	return id, true
}

// FromContext returns the identity set by Optional or Required.
func FromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}

	id, ok := v.(Identity)
	return id, ok
}
