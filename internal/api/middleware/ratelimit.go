package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vecollab/backend/internal/api/handler/v1/response"
)

const maxLimiters = 10000

// RateLimiter keeps one token bucket per principal, or per client ip for anonymous requests.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= maxLimiters {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = l
	}

	return l
}

// Limit must run after VerifyJWT to limit by principal.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := "ip:" + ctx.ClientIP()
		if p, ok := Principal(ctx); ok {
			key = "user:" + p.Username
		}

		if !rl.limiter(key).Allow() {
			ctx.Header("Retry-After", "1")
			response.RenderErr(ctx, response.ErrTooManyRequests())
			return
		}
		ctx.Next()
	}
}
