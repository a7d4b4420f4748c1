package web

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"atelier/internal/store"

	"go.uber.org/zap"
)

// resourceKey names what a stream is watching: the dashboard or one resource.
type resourceKey struct {
	kind string
	id   string
}

func (k resourceKey) String() string {
	kind := strings.TrimSpace(k.kind)
	id := strings.TrimSpace(k.id)
	if id == "" {
		return kind
	}
	return kind + ":" + id
}

var dashboardKey = resourceKey{kind: "dashboard"}

func listKey(resource string) resourceKey { return resourceKey{kind: "resource", id: resource} }

type resourceHub struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func newResourceHub() *resourceHub {
	return &resourceHub{subs: map[chan struct{}]struct{}{}}
}

func (h *resourceHub) subscribe() (ch chan struct{}, cancel func()) {
	ch = make(chan struct{}, 8)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}
}

func (h *resourceHub) broadcast() {
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()
}

// resourceBroadcaster polls the workspace database and wakes the streams of
// every resource touched by new events. Writes from the CLI or TUI show up
// in open browser tabs this way.
type resourceBroadcaster struct {
	st  store.Store
	log *zap.Logger

	mu      sync.Mutex
	hubs    map[string]*resourceHub
	fp      string
	seen    map[string]struct{}
	seenLRU []string

	interval time.Duration
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newResourceBroadcaster(st store.Store, log *zap.Logger) *resourceBroadcaster {
	return &resourceBroadcaster{
		st:       st,
		log:      log,
		hubs:     map[string]*resourceHub{},
		seen:     map[string]struct{}{},
		interval: time.Second,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Stop ends watchLoop and waits for it to return.
func (b *resourceBroadcaster) Stop() {
	if b == nil {
		return
	}
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	<-b.doneCh
}

func (b *resourceBroadcaster) hubFor(key resourceKey) *resourceHub {
	k := key.String()
	if k == "" {
		k = dashboardKey.String()
	}
	b.mu.Lock()
	h := b.hubs[k]
	if h == nil {
		h = newResourceHub()
		b.hubs[k] = h
	}
	b.mu.Unlock()
	return h
}

func (b *resourceBroadcaster) fingerprint() string {
	t := b.st.ModTime()
	if t == 0 {
		return ""
	}
	return strconv.FormatInt(t, 10)
}

func (b *resourceBroadcaster) currentFingerprint() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fp
}

func (b *resourceBroadcaster) setFingerprint(fp string) {
	b.mu.Lock()
	b.fp = fp
	b.mu.Unlock()
}

func (b *resourceBroadcaster) noteSeen(eventID string) bool {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.seen[eventID]; ok {
		return false
	}
	b.seen[eventID] = struct{}{}
	b.seenLRU = append(b.seenLRU, eventID)
	const capEvents = 1000
	if len(b.seenLRU) > capEvents {
		evict := b.seenLRU[:len(b.seenLRU)-capEvents]
		b.seenLRU = b.seenLRU[len(b.seenLRU)-capEvents:]
		for _, id := range evict {
			delete(b.seen, id)
		}
	}
	return true
}

// primeSeen marks the current event tail as already delivered.
func (b *resourceBroadcaster) primeSeen() {
	evs, err := b.st.ListEvents(context.Background(), store.EventFilter{Limit: 200})
	if err != nil {
		return
	}
	for _, ev := range evs {
		b.noteSeen(ev.ID)
	}
}

func (b *resourceBroadcaster) watchLoop() {
	defer close(b.doneCh)
	lastFP := ""
	t := time.NewTicker(b.interval)
	defer t.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-t.C:
		}

		fp := strings.TrimSpace(b.fingerprint())
		if fp == "" {
			continue
		}
		if lastFP == "" {
			lastFP = fp
			b.setFingerprint(fp)
			b.primeSeen()
			continue
		}
		if fp == lastFP {
			continue
		}
		lastFP = fp
		b.setFingerprint(fp)
		b.dispatchNew()
	}
}

// dispatchNew broadcasts to the hubs of resources with unseen events.
func (b *resourceBroadcaster) dispatchNew() {
	evs, err := b.st.ListEvents(context.Background(), store.EventFilter{Limit: 200})
	if err != nil {
		b.log.Warn("read events", zap.Error(err))
		return
	}
	changed := map[resourceKey]struct{}{}
	for _, ev := range evs {
		if !b.noteSeen(ev.ID) {
			continue
		}
		if res := strings.TrimSpace(ev.Resource); res != "" {
			changed[listKey(res)] = struct{}{}
		}
		changed[dashboardKey] = struct{}{}
	}
	for k := range changed {
		b.hubFor(k).broadcast()
	}
}
