package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/starfederation/datastar-go/datastar"
	"go.uber.org/zap"
)

const keepAliveInterval = 25 * time.Second

// serveDatastarElementsStream keeps an SSE connection open and re-renders
// selector whenever the hub for key fires.
func (s *Server) serveDatastarElementsStream(w http.ResponseWriter, r *http.Request, key resourceKey, selector string, mode datastar.ElementPatchMode, render func() (string, error)) {
	sse := datastar.NewSSE(w, r)

	bc := s.bc
	_ = sse.MarshalAndPatchSignals(map[string]any{"wsVersion": strings.TrimSpace(bc.currentFingerprint())})

	h := bc.hubFor(key)
	ch, cancel := h.subscribe()
	defer cancel()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-sse.Context().Done():
			return
		case <-bc.stopCh:
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case <-ch:
			html, err := render()
			if err != nil {
				s.log.Warn("stream render failed", zap.Stringer("key", key), zap.Error(err))
				_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
				continue
			}
			if strings.TrimSpace(html) == "" {
				continue
			}
			_ = sse.PatchElements(html, datastar.WithSelector(selector), datastar.WithMode(mode))
			_ = sse.MarshalAndPatchSignals(map[string]any{"wsVersion": strings.TrimSpace(bc.currentFingerprint())})
		}
	}
}
