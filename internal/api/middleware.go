package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v9"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fittrack/internal/metrics"
	"alcyxob/fittrack/internal/service"
)

// Constants for context keys
const (
	ContextUserIDKey    = "userID"
	ContextSessionIDKey = "sessionID"

	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
)

// SessionVerifier resolves an access token to its caller.
type SessionVerifier interface {
	GetSession(ctx context.Context, accessToken string) (*service.Identity, error)
}

// AuthMiddleware accepts "Authorization: Bearer <token>" or the access_token cookie.
func AuthMiddleware(verifier SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := accessTokenFrom(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}

		identity, err := verifier.GetSession(c.Request.Context(), tokenString)
		if err != nil {
			respondError(c, err)
			return
		}

		// Set user information in the context for downstream handlers
		c.Set(ContextUserIDKey, identity.UserID.Hex())
		c.Set(ContextSessionIDKey, identity.SessionID)
		c.Next()
	}
}

func accessTokenFrom(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		// Expecting "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if cookie, err := c.Cookie(accessTokenCookie); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// Helper function to get User ID from context (used by handlers)
func getUserIDFromContext(c *gin.Context) (primitive.ObjectID, error) {
	idRaw, exists := c.Get(ContextUserIDKey)
	if !exists {
		return primitive.NilObjectID, errors.New("user ID not found in context")
	}
	idStr, ok := idRaw.(string)
	if !ok {
		return primitive.NilObjectID, errors.New("invalid user ID type in context")
	}
	return primitive.ObjectIDFromHex(idStr)
}

func getIdentityFromContext(c *gin.Context) (service.Identity, error) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return service.Identity{}, err
	}
	return service.Identity{UserID: userID, SessionID: c.GetString(ContextSessionIDKey)}, nil
}

type RequestRateLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// RateLimit caps requests per client IP on one route group.
func RateLimit(rateLimiter RequestRateLimiter, routerName string, allowedPerMin int) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := rateLimiter.Allow(
			c.Request.Context(),
			routerName+"|"+c.ClientIP(),
			redis_rate.PerMinute(allowedPerMin),
		)
		if err != nil {
			log.Errorf("rate limit %s: %s", routerName, err)
			abortWithError(c, http.StatusInternalServerError, "rate limit internal error")
			return
		}

		if res.Allowed > 0 {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds()+0.5)))
		abortWithError(c, http.StatusTooManyRequests, fmt.Sprintf("retry after %f seconds", res.RetryAfter.Seconds()))
	}
}

func PanicRecovery(metricsManager *metrics.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("http: panic serving %s: %v\n%s", c.Request.URL.Path, r, debug.Stack())
				if metricsManager != nil {
					metricsManager.CounterHandleRequestPanic.Inc()
				}
				abortWithError(c, http.StatusInternalServerError, "internal server error")
			}
		}()

		// handler call
		c.Next()
	}
}

func LogRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		begin := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(begin).String(),
			"ua":       c.Request.UserAgent(),
		}).Debug("request")
	}
}

func RequestMetrics(metricsManager *metrics.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		metricsManager.GaugeRequests.Inc()
		defer func(begin time.Time) {
			metricsManager.GaugeRequests.Dec()
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			metricsManager.HistRequestDuration.WithLabelValues(route).Observe(time.Since(begin).Seconds())
			metricsManager.CounterRequests.With(
				prometheus.Labels{
					"method": c.Request.Method,
					"status": strconv.Itoa(c.Writer.Status()),
				},
			).Inc()
		}(time.Now())

		// handler call
		c.Next()
	}
}
