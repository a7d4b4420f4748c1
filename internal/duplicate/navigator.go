package duplicate

import "sync"

// Location is a navigation target, usually the edit view of a record.
type Location struct {
	Resource string `json:"resource"`
	ID       int64  `json:"id"`
	Route    string `json:"route"`
	URL      string `json:"url"`
}

// Navigator moves the hosting surface between views.
type Navigator interface {
	Reload()
	Visit(Location)
}

type NopNavigator struct{}

func (NopNavigator) Reload()        {}
func (NopNavigator) Visit(Location) {}

type EffectKind int

const (
	EffectReload EffectKind = iota + 1
	EffectVisit
)

type Effect struct {
	Kind     EffectKind
	Location Location
}

// Recorder queues navigation effects so the owner can apply them on its own
// loop. Workflow callbacks may fire from a background goroutine.
type Recorder struct {
	mu      sync.Mutex
	effects []Effect
}

func (r *Recorder) Reload() {
	r.mu.Lock()
	r.effects = append(r.effects, Effect{Kind: EffectReload})
	r.mu.Unlock()
}

func (r *Recorder) Visit(loc Location) {
	r.mu.Lock()
	r.effects = append(r.effects, Effect{Kind: EffectVisit, Location: loc})
	r.mu.Unlock()
}

// Drain returns and clears the queued effects.
func (r *Recorder) Drain() []Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.effects
	r.effects = nil
	return out
}
