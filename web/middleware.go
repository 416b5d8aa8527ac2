package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/felixge/httpsnoop"
	"golang.org/x/time/rate"

	"github.com/panyam/adaptiva/config"
)

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		level := slog.LevelInfo
		if m.Code >= 500 {
			level = slog.LevelError
		} else if r.URL.Path == "/healthz" {
			level = slog.LevelDebug
		}
		slog.Log(r.Context(), level, "Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"bytes", m.Written,
			"duration", m.Duration)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

const (
	sessionSuggestDay   = "suggest_day"
	sessionSuggestCount = "suggest_count"

	// idleTTL is how long a client entry may sit unused before a sweep may
	// drop it. A burst bucket idle this long has refilled completely.
	idleTTL = time.Minute
)

var (
	errBurstLimited   = fmt.Errorf("%w: too many suggestions this minute", errRateLimited)
	errDailyExhausted = fmt.Errorf("%w: daily suggestion quota used up", errRateLimited)
	errGlobalLimited  = fmt.Errorf("%w: service-wide daily suggestion limit reached", errRateLimited)
)

// SuggestLimiter guards the suggestion endpoint. It applies a per-IP burst
// limit, a daily quota counted as the larger of the per-IP and per-session
// usage, and a daily cap across all clients. Negative limits disable a
// check; a zero daily or global limit rejects every request.
type SuggestLimiter struct {
	BurstPerMinute int
	DailyLimit     int
	GlobalLimit    int
	Session        *scs.SessionManager

	mu        sync.Mutex
	clients   map[string]*clientUsage
	day       string
	global    int
	lastSweep time.Time
	now       func() time.Time
}

type clientUsage struct {
	burst    *rate.Limiter
	day      string
	count    int
	lastSeen time.Time
}

func NewSuggestLimiter(session *scs.SessionManager, limits config.RateLimitConfig) *SuggestLimiter {
	return &SuggestLimiter{
		BurstPerMinute: limits.BurstPerMinute,
		DailyLimit:     limits.AnonymousDailyLimit,
		GlobalLimit:    limits.GlobalDailyLimit,
		Session:        session,
		clients:        map[string]*clientUsage{},
		now:            time.Now,
	}
}

// Wrap rejects requests over any limit with 429 before calling next.
// Requests rejected by the burst check spend no daily quota.
func (l *SuggestLimiter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := l.now()
		today := now.UTC().Format(time.DateOnly)

		sessionUsed := 0
		if l.Session != nil && l.Session.GetString(ctx, sessionSuggestDay) == today {
			sessionUsed = l.Session.GetInt(ctx, sessionSuggestCount)
		}

		used, err := l.admit(clientIP(r), today, now, sessionUsed)
		if l.DailyLimit >= 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.DailyLimit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, l.DailyLimit-used)))
		}
		if err != nil {
			if errors.Is(err, errBurstLimited) {
				w.Header().Set("Retry-After", "60")
			}
			writeError(w, r, err)
			return
		}
		if l.Session != nil {
			l.Session.Put(ctx, sessionSuggestDay, today)
			l.Session.Put(ctx, sessionSuggestCount, sessionUsed+1)
		}
		next(w, r)
	}
}

// admit checks every limit for ip and records the request when all pass.
// It returns the client's daily usage including this request if admitted.
func (l *SuggestLimiter) admit(ip, today string, now time.Time, sessionUsed int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(now, today)
	if l.day != today {
		l.day, l.global = today, 0
	}

	u, ok := l.clients[ip]
	if !ok {
		u = &clientUsage{}
		if l.BurstPerMinute > 0 {
			u.burst = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.BurstPerMinute)), l.BurstPerMinute)
		}
		l.clients[ip] = u
	}
	u.lastSeen = now
	if u.day != today {
		u.day, u.count = today, 0
	}

	used := max(u.count, sessionUsed)
	if u.burst != nil && !u.burst.AllowN(now, 1) {
		return used, errBurstLimited
	}
	if l.DailyLimit >= 0 && used >= l.DailyLimit {
		return used, errDailyExhausted
	}
	if l.GlobalLimit >= 0 && l.global >= l.GlobalLimit {
		return used, errGlobalLimited
	}
	u.count++
	l.global++
	return max(u.count, sessionUsed+1), nil
}

// sweep drops client entries idle for idleTTL unless they still count
// toward today's quota. Runs at most once per idleTTL.
func (l *SuggestLimiter) sweep(now time.Time, today string) {
	if now.Sub(l.lastSweep) < idleTTL {
		return
	}
	l.lastSweep = now
	for ip, u := range l.clients {
		if now.Sub(u.lastSeen) < idleTTL {
			continue
		}
		if l.DailyLimit >= 0 && u.day == today && u.count > 0 {
			continue
		}
		delete(l.clients, ip)
	}
}
