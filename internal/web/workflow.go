package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"atelier/internal/duplicate"
	"atelier/internal/model"

	"github.com/moogar0880/problems"
	"github.com/starfederation/datastar-go/datastar"
	"go.uber.org/zap"
)

const workflowIdleTTL = time.Hour

// modalVM is the input of one modal renderer.
type modalVM struct {
	Open       bool
	Title      string
	Singular   string
	InProgress bool

	ConfirmURL string
	CancelURL  string
	EditURL    string
	UndoURL    string
}

type modalsVM struct {
	Resource    string
	Singular    string
	WorkflowURL string
	State       string
	Flash       string
	Errors      model.FieldErrors

	Confirm  modalVM
	Creating modalVM
	Success  modalVM
	Undo     modalVM
}

// workflowEntry is one browser session's duplicate workflow for a resource.
type workflowEntry struct {
	resource model.Resource
	ctrl     *duplicate.Controller
	nav      *duplicate.Recorder

	mu       sync.Mutex
	flash    string
	errs     model.FieldErrors
	lastUsed time.Time
}

func (e *workflowEntry) setFlash(msg string, errs model.FieldErrors) {
	e.mu.Lock()
	e.flash = msg
	e.errs = errs
	e.mu.Unlock()
}

func (e *workflowEntry) touch() {
	e.mu.Lock()
	e.flash = ""
	e.errs = nil
	e.lastUsed = time.Now()
	e.mu.Unlock()
}

func (e *workflowEntry) modals(workflowURL string) modalsVM {
	snap := e.ctrl.Snapshot()
	act := func(a string) string { return workflowURL + "&action=" + a }
	base := modalVM{Title: snap.Title(), Singular: e.resource.Singular()}

	vm := modalsVM{
		Resource:    e.resource.Name,
		Singular:    e.resource.Singular(),
		WorkflowURL: workflowURL,
		State:       snap.State.String(),
	}
	e.mu.Lock()
	vm.Flash = e.flash
	vm.Errors = e.errs
	e.mu.Unlock()

	vm.Confirm = base
	vm.Confirm.Open = snap.Open(duplicate.ModalConfirm)
	vm.Confirm.ConfirmURL = act("confirm")
	vm.Confirm.CancelURL = act("cancel")

	vm.Creating = base
	vm.Creating.Open = snap.Open(duplicate.ModalCreating)
	vm.Creating.InProgress = true

	vm.Success = base
	vm.Success.Open = snap.Open(duplicate.ModalSuccess)
	vm.Success.EditURL = act("edit")
	vm.Success.CancelURL = act("close")
	vm.Success.UndoURL = act("undo")

	vm.Undo = base
	vm.Undo.Open = snap.Open(duplicate.ModalUndo)
	vm.Undo.InProgress = snap.UndoInProgress()
	vm.Undo.ConfirmURL = act("undo-confirm")
	vm.Undo.CancelURL = act("undo-cancel")
	return vm
}

type workflowRegistry struct {
	srv *Server

	mu      sync.Mutex
	entries map[string]*workflowEntry
}

func newWorkflowRegistry(srv *Server) *workflowRegistry {
	return &workflowRegistry{srv: srv, entries: map[string]*workflowEntry{}}
}

func workflowKey(sid, resource string) string { return sid + "|" + resource }

func (g *workflowRegistry) peek(sid, resource string) *workflowEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.entries[workflowKey(sid, resource)]
}

func (g *workflowRegistry) get(sid string, res model.Resource) (*workflowEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked()

	k := workflowKey(sid, res.Name)
	if e := g.entries[k]; e != nil {
		return e, nil
	}

	cfg := g.srv.cfgSnapshot()
	log := g.srv.log.With(zap.String("session", sid))
	e := &workflowEntry{resource: res, nav: &duplicate.Recorder{}, lastUsed: time.Now()}
	dcfg, err := duplicate.NewConfig(res.Name,
		duplicate.WithNavigator(e.nav),
		duplicate.WithLogger(log),
		duplicate.WithTimeout(cfg.DuplicateTimeout),
		duplicate.WithOnError(func(errs model.FieldErrors) {
			log.Info("duplicate failed", zap.String("resource", res.Name), zap.Any("errors", map[string]string(errs)))
			e.setFlash(fmt.Sprintf("Could not duplicate this %s.", res.Singular()), errs)
		}),
		duplicate.WithOnUndoError(func(err error) {
			log.Warn("undo delete failed", zap.String("resource", res.Name), zap.Error(err))
			e.setFlash("Undo failed. The copy may still exist.", nil)
		}),
	)
	if err != nil {
		return nil, err
	}
	e.ctrl = duplicate.New(dcfg, duplicate.StoreBackend{Store: g.srv.store(), ActorID: g.srv.actorID()})
	g.entries[k] = e
	return e, nil
}

// drop discards a session's workflow, as when the user leaves for the edit view.
func (g *workflowRegistry) drop(sid, resource string) {
	g.mu.Lock()
	e := g.entries[workflowKey(sid, resource)]
	delete(g.entries, workflowKey(sid, resource))
	g.mu.Unlock()
	if e != nil {
		e.ctrl.Reset()
	}
}

func (g *workflowRegistry) sweepLocked() {
	cutoff := time.Now().Add(-workflowIdleTTL)
	for k, e := range g.entries {
		e.mu.Lock()
		stale := e.lastUsed.Before(cutoff)
		e.mu.Unlock()
		if stale {
			e.ctrl.Reset()
			delete(g.entries, k)
		}
	}
}

func (g *workflowRegistry) resetAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k, e := range g.entries {
		e.ctrl.Reset()
		delete(g.entries, k)
	}
}

// handleWorkflow drives the session's duplicate workflow for res and answers
// with Datastar patches for the modals (and the table when it changed).
func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request, res model.Resource) {
	sid, err := s.sessionID(w, r)
	if err != nil {
		internalError(w, r, err)
		return
	}
	e, err := s.workflows.get(sid, res)
	if err != nil {
		internalError(w, r, err)
		return
	}

	q := r.URL.Query()
	action := strings.ToLower(strings.TrimSpace(q.Get("action")))
	query := strings.TrimSpace(q.Get("q"))
	page := parsePage(r)
	wfURL := workflowURL(res.Name, query, page)

	// The remote calls outlive this request; the next page load picks up the result.
	callCtx := context.WithoutCancel(r.Context())
	ctrl := e.ctrl
	e.touch()

	var done <-chan struct{}
	switch action {
	case "request":
		id, perr := strconv.ParseInt(strings.TrimSpace(q.Get("id")), 10, 64)
		if perr != nil || id <= 0 {
			badRequest(w, r, "invalid record id")
			return
		}
		rec, gerr := s.store().GetRecord(r.Context(), res.Name, id)
		if gerr != nil {
			handleStoreError(w, r, gerr)
			return
		}
		err = ctrl.RequestDuplicate(duplicate.Request{ID: rec.ID, Title: rec.Title, Resource: res.Name})
	case "cancel":
		err = ctrl.CancelDuplicate()
	case "confirm":
		done, err = ctrl.ConfirmDuplicate(callCtx)
	case "edit":
		_, err = ctrl.EditDuplicatedRecord()
	case "close":
		err = ctrl.CloseSuccess()
	case "undo":
		err = ctrl.SetUndoRequested(true)
	case "undo-cancel":
		err = ctrl.CancelUndo()
	case "undo-confirm":
		done, err = ctrl.ConfirmUndoDelete(callCtx)
	case "reset":
		ctrl.Reset()
	default:
		badRequest(w, r, fmt.Sprintf("unknown workflow action %q", action))
		return
	}
	if err != nil {
		if errors.Is(err, duplicate.ErrInvalidTransition) {
			problem := problems.NewStatusProblem(http.StatusConflict).
				WithInstance(r.URL.Path).
				WithType("invalid_transition").
				WithDetail(err.Error())

			writeProblem(w, http.StatusConflict, problem)
			return
		}
		badRequest(w, r, err.Error())
		return
	}

	sse := datastar.NewSSE(w, r)
	s.patchWorkflow(sse, e, res, query, page, wfURL)
	if action == "edit" {
		s.workflows.drop(sid, res.Name)
		return
	}
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-sse.Context().Done():
		return
	}
	s.patchWorkflow(sse, e, res, query, page, wfURL)
}

func (s *Server) patchWorkflow(sse *datastar.ServerSentEventGenerator, e *workflowEntry, res model.Resource, query string, page int, wfURL string) {
	html, err := s.renderTemplate("duplicate_modals", e.modals(wfURL))
	if err != nil {
		s.log.Error("render modals", zap.Error(err))
		_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
		return
	}
	_ = sse.PatchElements(html, datastar.WithSelector("#duplicate-modals"), datastar.WithMode(datastar.ElementPatchModeOuter))

	for _, eff := range e.nav.Drain() {
		switch eff.Kind {
		case duplicate.EffectReload:
			table, err := s.renderRecordsTable(res, query, page)
			if err != nil {
				s.log.Warn("render records", zap.Error(err))
				continue
			}
			_ = sse.PatchElements(table, datastar.WithSelector("#records"), datastar.WithMode(datastar.ElementPatchModeOuter))
		case duplicate.EffectVisit:
			_ = sse.ExecuteScript(fmt.Sprintf(`window.location.assign(%q)`, eff.Location.URL))
		}
	}
}
