package middleware

import (
	"net/http"
	"sync"
	"time"

	"factumovil/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ventana counts requests of one IP within a fixed window.
type ventana struct {
	count     int
	windowEnd time.Time
}

type limitador struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*ventana
}

func (l *limitador) permitir(ip string, now time.Time) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.entries[ip]
	if !ok || now.After(v.windowEnd) {
		v = &ventana{windowEnd: now.Add(l.window)}
		l.entries[ip] = v
	}
	v.count++
	return v.count <= l.limit, v.windowEnd
}

func (l *limitador) purgar(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for ip, v := range l.entries {
		if now.After(v.windowEnd) {
			delete(l.entries, ip)
			n++
		}
	}
	return n
}

// RateLimiter allows limit requests per window and IP. Expired entries are
// purged every 5 minutes.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	l := &limitador{limit: limit, window: window, entries: make(map[string]*ventana)}
	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for now := range ticker.C {
			if n := l.purgar(now); n > 0 {
				log.Debug().Int("entries_purged", n).Msg("rate limiter purged")
			}
		}
	}()

	return func(c *gin.Context) {
		ok, windowEnd := l.permitir(c.ClientIP(), time.Now())
		if !ok {
			c.Header("Retry-After", windowEnd.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiadas solicitudes. Intente nuevamente en un momento."))
			return
		}
		c.Next()
	}
}

const purgeInterval = 5 * time.Minute
