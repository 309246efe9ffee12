package scan

import (
	"sync"
	"time"

	"plating/internal/metrics"
)

// Deps are shared by every workflow the registry creates.
type Deps struct {
	Lots     func(kind string) LotBackend
	Location *time.Location
	Now      func() time.Time
	Metrics  *metrics.Metrics
	// OnChange receives each workflow's view after an action.
	OnChange func(owner Owner, v View)
}

type regKey struct {
	token string
	kind  string
}

type entry struct {
	wf       *Workflow
	lastUsed time.Time
}

// Registry keeps one workflow per console session and lot kind.
type Registry struct {
	deps Deps

	mu    sync.Mutex
	flows map[regKey]*entry
}

func NewRegistry(d Deps) *Registry {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Registry{deps: d, flows: make(map[regKey]*entry)}
}

// Get returns the session's workflow for p, creating it on first use.
func (r *Registry) Get(token string, p Profile, owner Owner) *Workflow {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := regKey{token, p.Kind}
	if e, ok := r.flows[k]; ok {
		e.lastUsed = r.deps.Now()
		return e.wf
	}
	var onChange func(View)
	if r.deps.OnChange != nil {
		onChange = func(v View) { r.deps.OnChange(owner, v) }
	}
	wf := New(Config{
		Profile:  p,
		Owner:    owner,
		API:      r.deps.Lots(p.Kind),
		Location: r.deps.Location,
		Now:      r.deps.Now,
		Metrics:  r.deps.Metrics,
		OnChange: onChange,
	})
	r.flows[k] = &entry{wf: wf, lastUsed: r.deps.Now()}
	return wf
}

// Drop forgets every workflow of a session, as on logout.
func (r *Registry) Drop(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.flows {
		if k.token == token {
			delete(r.flows, k)
		}
	}
}

// Sweep drops workflows unused for longer than idle and returns how many went.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.deps.Now().Add(-idle)
	n := 0
	for k, e := range r.flows {
		if e.lastUsed.Before(cutoff) {
			delete(r.flows, k)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}
