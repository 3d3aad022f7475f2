package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/formdesk/internal/ratelimit"
	"github.com/yoockh/formdesk/internal/utils"
)

// RateLimit counts every request against the client address before routing.
// A limiter backend error lets the request through.
func RateLimit(lim ratelimit.Limiter, l *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		res, err := lim.Allow(c.Request.Context(), ip)
		if err != nil {
			l.WithError(err).WithField("ip", ip).Warn("rate limiter unavailable, request allowed")
			c.Next()
			return
		}

		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfter(res.ResetAt)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apiError{
				Code:    utils.CodeTooManyRequests,
				Message: "demasiadas solicitudes, intenta de nuevo en un minuto",
			})
			return
		}

		c.Next()
	}
}

func retryAfter(resetAt time.Time) int {
	secs := int(math.Ceil(time.Until(resetAt).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
