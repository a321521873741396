package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ginClaimsKey is the gin.Context key under which allowed requests also
// expose their claims, for handlers that prefer c.Get over the request
// context.
const ginClaimsKey = "keycloak.claims"

// GinMiddleware authenticates gin requests with policy. Allowed requests
// get claims in both c.Request's context and the gin context; denials abort
// the chain with 401 or 403.
//
//	router := gin.New()
//	private := router.Group("/private", auth.GinMiddleware(policy))
func GinMiddleware(policy *Policy, opts ...MiddlewareOption) gin.HandlerFunc {
	m := newMiddleware(policy, opts)
	return func(c *gin.Context) {
		values := c.Request.Header.Values(HeaderAuthorization)
		header := ""
		if len(values) > 0 {
			header = values[0]
		}
		info := RequestInfo{Method: c.Request.Method, Path: c.Request.URL.Path}

		d, skip := m.decide(c.Request.Context(), info, header, len(values) > 0)
		switch {
		case skip, d.Kind == DecisionPassThrough:
			c.Next()
		case d.Kind == DecisionAllow:
			c.Request = c.Request.WithContext(ContextWithClaims(c.Request.Context(), d.Claims))
			c.Set(ginClaimsKey, d.Claims)
			c.Next()
		default:
			if d.Status() == http.StatusUnauthorized {
				c.Header("WWW-Authenticate", `Bearer realm="keycloak"`)
			}
			// Same bytes and headers as http.Error in HTTPMiddleware.
			c.Header("X-Content-Type-Options", "nosniff")
			c.String(d.Status(), "%s\n", d.Body())
			c.Abort()
		}
	}
}

// GinClaims returns the claims stored by GinMiddleware.
func GinClaims(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(ginClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
