package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"detectx-service/internal/models"
)

// RateLimitMiddleware limits requests per client IP with a sliding window
type RateLimitMiddleware struct {
	logger      *zap.Logger
	visitors    map[string]*Visitor
	mutex       sync.Mutex
	limit       int
	window      time.Duration
	blockWindow time.Duration
	done        chan struct{}
	stopOnce    sync.Once
}

// Visitor represents a client with its request history
type Visitor struct {
	Requests     []time.Time
	BlockedUntil time.Time
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(logger *zap.Logger, limit int, window, blockWindow time.Duration) *RateLimitMiddleware {
	r := &RateLimitMiddleware{
		logger:      logger,
		visitors:    make(map[string]*Visitor),
		limit:       limit,
		window:      window,
		blockWindow: blockWindow,
		done:        make(chan struct{}),
	}

	go r.cleanupOldEntries(time.Hour)

	return r
}

// RateLimit limits requests based on IP address
func (r *RateLimitMiddleware) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.allow(c.ClientIP(), time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error: "Rate limit exceeded, please try again later",
			})
			return
		}
		c.Next()
	}
}

func (r *RateLimitMiddleware) allow(ip string, now time.Time) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	visitor, exists := r.visitors[ip]
	if exists && now.Before(visitor.BlockedUntil) {
		return false
	}
	if !exists {
		visitor = &Visitor{}
		r.visitors[ip] = visitor
	}

	visitor.Requests = pruneBefore(visitor.Requests, now.Add(-r.window))

	if len(visitor.Requests) >= r.limit {
		visitor.BlockedUntil = now.Add(r.blockWindow)
		r.logger.Warn("Rate limit exceeded", zap.String("ip", ip))
		return false
	}

	visitor.Requests = append(visitor.Requests, now)
	return true
}

func pruneBefore(requests []time.Time, cutoff time.Time) []time.Time {
	kept := requests[:0]
	for _, t := range requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Stop ends the cleanup goroutine
func (r *RateLimitMiddleware) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

// cleanupOldEntries periodically drops idle, unblocked visitors
func (r *RateLimitMiddleware) cleanupOldEntries(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
		}

		r.mutex.Lock()
		now := time.Now()
		for ip, visitor := range r.visitors {
			visitor.Requests = pruneBefore(visitor.Requests, now.Add(-r.window))
			if len(visitor.Requests) == 0 && !now.Before(visitor.BlockedUntil) {
				delete(r.visitors, ip)
			}
		}
		r.mutex.Unlock()
	}
}
