package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"atelier/internal/duplicate"
	"atelier/internal/model"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// workflow is the duplicate controller mounted on one resource's records view.
type workflow struct {
	resource string
	ctrl     *duplicate.Controller
	nav      *duplicate.Recorder

	// Callbacks run on the controller's goroutine; Update picks the results up
	// when the matching workflowSettledMsg arrives.
	mu      sync.Mutex
	errs    model.FieldErrors
	undoErr error
}

func (w *workflow) modalOpen() bool {
	return w.ctrl.Snapshot().Modal() != duplicate.ModalNone
}

func (w *workflow) takeFailures() (model.FieldErrors, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	errs, undoErr := w.errs, w.undoErr
	w.errs, w.undoErr = nil, nil
	return errs, undoErr
}

type workflowSettledMsg struct{ resource string }

func waitWorkflow(resource string, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return workflowSettledMsg{resource: resource}
	}
}

func (m appModel) newWorkflow(resource string) (*workflow, error) {
	wf := &workflow{resource: resource, nav: &duplicate.Recorder{}}
	log := m.log.With(zap.String("resource", resource))
	cfg, err := duplicate.NewConfig(resource,
		duplicate.WithNavigator(wf.nav),
		duplicate.WithLogger(m.log),
		duplicate.WithTimeout(m.opts.DuplicateTimeout),
		duplicate.WithOnError(func(errs model.FieldErrors) {
			log.Warn("duplicate failed", zap.Any("errors", map[string]string(errs)))
			wf.mu.Lock()
			wf.errs = errs
			wf.mu.Unlock()
		}),
		duplicate.WithOnUndoError(func(err error) {
			log.Warn("undo delete failed", zap.Error(err))
			wf.mu.Lock()
			wf.undoErr = err
			wf.mu.Unlock()
		}),
	)
	if err != nil {
		return nil, err
	}
	wf.ctrl = duplicate.New(cfg, duplicate.StoreBackend{Store: m.store, ActorID: m.opts.ActorID})
	return wf, nil
}

// activeWorkflow is the open resource's workflow, if one was started.
func (m appModel) activeWorkflow() *workflow {
	if m.view == viewResources || m.resource.Name == "" {
		return nil
	}
	return m.workflows[m.resource.Name]
}

func (m appModel) resetWorkflows() {
	for _, wf := range m.workflows {
		wf.ctrl.Reset()
	}
}

func (m appModel) requestDuplicate(rec model.Record) (tea.Model, tea.Cmd) {
	wf := m.workflows[m.resource.Name]
	if wf == nil {
		var err error
		if wf, err = m.newWorkflow(m.resource.Name); err != nil {
			m.reportErr("duplicate", err)
			return m, nil
		}
		m.workflows[m.resource.Name] = wf
	}
	err := wf.ctrl.RequestDuplicate(duplicate.Request{ID: rec.ID, Title: rec.Title, Resource: m.resource.Name})
	if err != nil {
		m.reportErr("duplicate", err)
		return m, nil
	}
	m.setFlash("", false)
	m.dupConfirmFocus = confirmFocusConfirm
	return m, nil
}

func (m appModel) updateWorkflowKeys(wf *workflow, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := wf.ctrl.Snapshot()
	key := msg.String()
	var (
		done <-chan struct{}
		err  error
	)
	switch snap.State {
	case duplicate.Confirming:
		switch key {
		case "tab", "shift+tab", "left", "right":
			m.dupConfirmFocus = m.dupConfirmFocus.toggle()
		case "esc", "n":
			err = wf.ctrl.CancelDuplicate()
		case "y":
			done, err = wf.ctrl.ConfirmDuplicate(context.Background())
		case "enter":
			if m.dupConfirmFocus == confirmFocusConfirm {
				done, err = wf.ctrl.ConfirmDuplicate(context.Background())
			} else {
				err = wf.ctrl.CancelDuplicate()
			}
		}

	case duplicate.Creating, duplicate.DeletingUndo:
		if key == "ctrl+r" {
			wf.ctrl.Reset()
			m.setFlash("Stopped waiting; the server may still finish the request.", true)
		}

	case duplicate.Success:
		switch key {
		case "tab", "right":
			m.dupSuccessFocus = (m.dupSuccessFocus + 1) % successButtons
		case "shift+tab", "left":
			m.dupSuccessFocus = (m.dupSuccessFocus + successButtons - 1) % successButtons
		case "esc":
			err = wf.ctrl.CloseSuccess()
		case "e":
			m.dupSuccessFocus = successFocusEdit
			return m.workflowSelect(wf)
		case "u":
			m.dupSuccessFocus = successFocusUndo
			return m.workflowSelect(wf)
		case "enter":
			return m.workflowSelect(wf)
		}

	case duplicate.ConfirmingUndo:
		switch key {
		case "tab", "shift+tab", "left", "right":
			m.dupConfirmFocus = m.dupConfirmFocus.toggle()
		case "esc", "n":
			err = wf.ctrl.CancelUndo()
		case "y":
			done, err = wf.ctrl.ConfirmUndoDelete(context.Background())
		case "enter":
			if m.dupConfirmFocus == confirmFocusConfirm {
				done, err = wf.ctrl.ConfirmUndoDelete(context.Background())
			} else {
				err = wf.ctrl.CancelUndo()
			}
		}
	}
	if err != nil {
		m.reportErr("duplicate", err)
		return m, nil
	}
	m.applyEffects(wf)
	if done != nil {
		return m, waitWorkflow(wf.resource, done)
	}
	return m, nil
}

func (m appModel) workflowSelect(wf *workflow) (tea.Model, tea.Cmd) {
	var err error
	switch m.dupSuccessFocus {
	case successFocusEdit:
		if _, err = wf.ctrl.EditDuplicatedRecord(); err == nil {
			m.applyEffects(wf)
			// Navigating away unmounts the workflow.
			wf.ctrl.Reset()
			return m, nil
		}
	case successFocusUndo:
		if err = wf.ctrl.SetUndoRequested(true); err == nil {
			m.dupConfirmFocus = confirmFocusCancel
		}
	default:
		err = wf.ctrl.CloseSuccess()
	}
	if err != nil {
		m.reportErr("duplicate", err)
	}
	return m, nil
}

func (m *appModel) settleWorkflow(msg workflowSettledMsg) {
	wf := m.workflows[msg.resource]
	if wf == nil {
		return
	}
	errs, undoErr := wf.takeFailures()
	switch {
	case len(errs) > 0:
		m.setFlash("Could not duplicate: "+describeFieldErrors(errs), true)
	case undoErr != nil:
		m.setFlash("Undo failed. The copy may still exist.", true)
	}
	snap := wf.ctrl.Snapshot()
	if snap.State == duplicate.Success {
		m.dupSuccessFocus = successFocusClose
	}
	m.applyEffects(wf)
	if snap.State == duplicate.Success && msg.resource == m.resource.Name {
		m.refreshRecords(snap.DuplicatedID)
	}
}

// applyEffects performs the navigation the controller asked for.
func (m *appModel) applyEffects(wf *workflow) {
	for _, eff := range wf.nav.Drain() {
		switch eff.Kind {
		case duplicate.EffectReload:
			if wf.resource == m.resource.Name {
				m.refreshResources()
				m.refreshRecords(0)
				m.lastModTime = m.store.ModTime()
			}
		case duplicate.EffectVisit:
			m.visit(eff.Location)
		}
	}
}

// visit opens the edit form of the record at loc.
func (m *appModel) visit(loc duplicate.Location) {
	res, ok := model.FindResource(loc.Resource)
	if !ok {
		m.setFlash(fmt.Sprintf("unknown resource %q", loc.Resource), true)
		return
	}
	if res.Name != m.resource.Name {
		m.openResource(res)
	}
	rec, err := m.store.GetRecord(context.Background(), res.Name, loc.ID)
	if err != nil {
		m.reportErr("open copy", err)
		return
	}
	m.refreshRecords(rec.ID)
	m.detail = &rec
	m.view = viewDetail
	m.openForm(newRecordForm(res, rec, false))
}

func describeFieldErrors(errs model.FieldErrors) string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, errs[k])
	}
	return strings.Join(msgs, "; ")
}
