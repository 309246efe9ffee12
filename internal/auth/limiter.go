package auth

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter holds a per-IP token bucket and the last time it was used.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter throttles sign-in attempts per client IP.
type Limiter struct {
	// Trusted are the reverse proxies whose forwarding headers are believed.
	Trusted []netip.Prefix

	mu       sync.Mutex
	limiters map[string]*ipLimiter
	r        rate.Limit
	b        int
	now      func() time.Time
}

// NewLimiter allows perSecond attempts per IP with bursts of burst.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return &Limiter{
		limiters: make(map[string]*ipLimiter),
		r:        rate.Limit(perSecond),
		b:        burst,
		now:      time.Now,
	}
}

func (l *Limiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	il, ok := l.limiters[ip]
	if !ok {
		il = &ipLimiter{limiter: rate.NewLimiter(l.r, l.b)}
		l.limiters[ip] = il
	}
	il.lastSeen = l.now()
	return il.limiter
}

// Allow takes a token for ip. When none is available it returns false and
// the number of whole seconds to wait.
func (l *Limiter) Allow(ip string) (bool, int) {
	res := l.get(ip).ReserveN(l.now(), 1)
	if d := res.DelayFrom(l.now()); d > 0 {
		res.CancelAt(l.now())
		retry := int(math.Ceil(d.Seconds()))
		if retry < 1 {
			retry = 1
		}
		return false, retry
	}
	return true, 0
}

// Sweep forgets IPs idle for longer than idle and returns how many it removed.
func (l *Limiter) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for ip, il := range l.limiters {
		if l.now().Sub(il.lastSeen) > idle {
			delete(l.limiters, ip)
			n++
		}
	}
	return n
}

// ParseProxies parses trusted proxy addresses given as CIDRs or bare IPs.
func ParseProxies(list []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(list))
	for _, raw := range list {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

func (l *Limiter) trusted(ip string) bool {
	a, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range l.Trusted {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// ClientIP returns the address the limiter keys on. Proxy headers are only
// honored when the connection comes from a trusted proxy; X-Forwarded-For is
// read right to left and the first untrusted hop wins.
func (l *Limiter) ClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if !l.trusted(peer) {
		return peer
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !l.trusted(hop) {
				return hop
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return peer
}
