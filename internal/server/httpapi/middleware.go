package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/gin-gonic/gin"
)

const (
	tokenCookie = common.AccessTokenCookieName
	actorKey    = "actorID"
)

var errMissingToken = errors.New("missing token")

// bearerToken returns the access token from the Authorization header or,
// failing that, from the token cookie.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader(common.AuthorizationHeaderName); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	token, err := c.Cookie(tokenCookie)
	if err != nil {
		return ""
	}
	return token
}

func (s *HTTPServer) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			s.abort(c, &common.Error{Kind: common.ErrorUnauthorized, Err: errMissingToken})
			return
		}
		actorID, err := s.svc.Users.Authenticate(c.Request.Context(), token)
		if err != nil {
			s.abort(c, err)
			return
		}
		c.Set(actorKey, actorID)
		c.Next()
	}
}

func actorID(c *gin.Context) string {
	return c.GetString(actorKey)
}

// observe counts and logs every request by route template and status.
func (s *HTTPServer) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.metrics.Request(route, strconv.Itoa(status))

		args := []any{"method", c.Request.Method, "route", route, "status", status, "duration", time.Since(started)}
		if status >= http.StatusInternalServerError {
			s.logger.Error(c.Request.Context(), "request failed", args...)
			return
		}
		s.logger.Debug(c.Request.Context(), "request", args...)
	}
}
