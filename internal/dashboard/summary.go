package dashboard

import (
	"strings"
	"sync"
	"time"
)

// VendorSummary is one vendor's movement within the base filter.
type VendorSummary struct {
	Vendor       string  `json:"vendor"`
	TotalIssue   int     `json:"totalIssue"`
	TotalReceive int     `json:"totalReceive"`
	Balance      int     `json:"balance"`
	ReceiveRate  float64 `json:"receiveRate"`
	OverReceive  int     `json:"overReceive"`
	Color        string  `json:"color"`
}

// VendorKey normalizes a vendor name for grouping.
func VendorKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Rate returns the receive rate in percent, capped at 100. A vendor with
// nothing issued has rate 0.
func Rate(issued, received int) float64 {
	if issued <= 0 {
		return 0
	}
	r := received
	if r > issued {
		r = issued
	}
	if r < 0 {
		r = 0
	}
	return float64(r) / float64(issued) * 100
}

// Summarize totals box counts per vendor. Vendors are listed in the order
// they first appear on the issue side; receive-only vendors are not listed.
func Summarize(issue, receive []LotView, pal *Palette) []VendorSummary {
	idx := map[string]int{}
	out := []VendorSummary{}
	for _, r := range issue {
		k := VendorKey(r.VendorName)
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			name := strings.TrimSpace(r.VendorName)
			if name == "" {
				name = "-"
			}
			out = append(out, VendorSummary{Vendor: name, Color: pal.Color(k)})
		}
		out[i].TotalIssue += r.BoxCount
	}
	for _, r := range receive {
		if i, ok := idx[VendorKey(r.VendorName)]; ok {
			out[i].TotalReceive += r.BoxCount
		}
	}
	for i := range out {
		s := &out[i]
		s.Balance = s.TotalIssue - s.TotalReceive
		s.ReceiveRate = Rate(s.TotalIssue, s.TotalReceive)
		if over := s.TotalReceive - s.TotalIssue; over > 0 {
			s.OverReceive = over
		}
	}
	return out
}

// palette is the fixed accent color cycle.
var palette = []string{
	"#2563eb", "#16a34a", "#f59e0b", "#dc2626", "#7c3aed",
	"#0891b2", "#db2777", "#65a30d", "#ea580c", "#475569",
}

// Palette assigns each vendor a color on first encounter and keeps it.
type Palette struct {
	mu     sync.Mutex
	colors map[string]string
}

func NewPalette() *Palette {
	return &Palette{colors: map[string]string{}}
}

// Color returns the vendor's color. Safe on a nil Palette, which yields "".
func (p *Palette) Color(key string) string {
	if p == nil {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.colors[key]; ok {
		return c
	}
	c := palette[len(p.colors)%len(palette)]
	p.colors[key] = c
	return c
}

type paletteEntry struct {
	p        *Palette
	lastUsed time.Time
}

// Palettes keeps one Palette per console session.
type Palettes struct {
	mu  sync.Mutex
	m   map[string]*paletteEntry
	now func() time.Time
}

func NewPalettes() *Palettes {
	return &Palettes{m: map[string]*paletteEntry{}, now: time.Now}
}

func (ps *Palettes) For(token string) *Palette {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	e, ok := ps.m[token]
	if !ok {
		e = &paletteEntry{p: NewPalette()}
		ps.m[token] = e
	}
	e.lastUsed = ps.now()
	return e.p
}

func (ps *Palettes) Drop(token string) {
	ps.mu.Lock()
	delete(ps.m, token)
	ps.mu.Unlock()
}

// Sweep forgets palettes unused for longer than idle, such as those of
// sessions that expired without a logout. It returns how many were removed.
func (ps *Palettes) Sweep(idle time.Duration) int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	n := 0
	for tok, e := range ps.m {
		if ps.now().Sub(e.lastUsed) > idle {
			delete(ps.m, tok)
			n++
		}
	}
	return n
}
