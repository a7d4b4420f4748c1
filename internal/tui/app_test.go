package tui

import (
	"context"
	"strings"
	"testing"

	"atelier/internal/duplicate"
	"atelier/internal/model"
	"atelier/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	xansi "github.com/charmbracelet/x/ansi"
)

func newTestModel(t *testing.T, resource string, fields ...map[string]string) (appModel, store.Store) {
	t.Helper()
	dir := t.TempDir()
	s := store.Store{Dir: dir}
	for _, f := range fields {
		if _, err := s.CreateRecord(context.Background(), "act-test", resource, f); err != nil {
			t.Fatalf("create %s: %v", resource, err)
		}
	}
	m := newAppModel(Options{Dir: dir, ActorID: "act-test"})
	m = send(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	for i, it := range m.resourcesList.Items() {
		if it.(resourceItem).res.Name == resource {
			m.resourcesList.Select(i)
		}
	}
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.view != viewRecords || m.resource.Name != resource {
		t.Fatalf("expected %s records view, got view=%v resource=%q", resource, m.view, m.resource.Name)
	}
	return m, s
}

func send(t *testing.T, m appModel, msg tea.Msg) appModel {
	t.Helper()
	mAny, _ := m.Update(msg)
	return mAny.(appModel)
}

// sendAndSettle delivers msg and then runs the returned command (a workflow
// wait) to completion, feeding its message back into the model.
func sendAndSettle(t *testing.T, m appModel, msg tea.Msg) appModel {
	t.Helper()
	mAny, cmd := m.Update(msg)
	m = mAny.(appModel)
	if cmd == nil {
		t.Fatalf("expected a command after %v", msg)
	}
	settled, ok := cmd().(workflowSettledMsg)
	if !ok {
		t.Fatalf("expected workflowSettledMsg")
	}
	return send(t, m, settled)
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func recordTitles(m appModel) []string {
	var out []string
	for _, it := range m.recordsList.Items() {
		out = append(out, it.(recordItem).rec.Title)
	}
	return out
}

func plainView(m appModel) string { return xansi.Strip(m.View()) }

func TestRecordsView_V_ThenCancel_DoesNotDuplicate(t *testing.T) {
	m, _ := newTestModel(t, "tags", map[string]string{"name": "Print", "slug": "print"})

	m = send(t, m, runes("V"))
	wf := m.activeWorkflow()
	if wf == nil || wf.ctrl.State() != duplicate.Confirming {
		t.Fatalf("expected confirming workflow")
	}
	if v := plainView(m); !strings.Contains(v, "Duplicate tag?") || !strings.Contains(v, `"Print"`) {
		t.Fatalf("expected confirm modal, got:\n%s", v)
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if got := wf.ctrl.State(); got != duplicate.Idle {
		t.Fatalf("state after cancel = %v", got)
	}
	if got := len(m.recordsList.Items()); got != 1 {
		t.Fatalf("expected 1 record, got %d", got)
	}
}

func TestRecordsView_DuplicateThenUndo(t *testing.T) {
	m, _ := newTestModel(t, "tags",
		map[string]string{"name": "Print", "slug": "print"},
		map[string]string{"name": "Web", "slug": "web"},
	)

	m = send(t, m, runes("V"))
	m = sendAndSettle(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	wf := m.activeWorkflow()
	snap := wf.ctrl.Snapshot()
	if snap.State != duplicate.Success || snap.DuplicatedID == 0 {
		t.Fatalf("expected success with an id, got %+v", snap)
	}
	if got, want := strings.Join(recordTitles(m), ","), "Print,Print (Copy),Web"; got != want {
		t.Fatalf("titles = %q, want %q", got, want)
	}
	if rec, _ := m.selectedRecord(); rec.ID != snap.DuplicatedID {
		t.Fatalf("expected the copy to be selected, got %d", rec.ID)
	}
	if v := plainView(m); !strings.Contains(v, "Tag duplicated") {
		t.Fatalf("expected success modal, got:\n%s", v)
	}

	m = send(t, m, runes("u"))
	if got := wf.ctrl.State(); got != duplicate.ConfirmingUndo {
		t.Fatalf("state after u = %v", got)
	}
	if v := plainView(m); !strings.Contains(v, "Delete the new tag?") {
		t.Fatalf("expected undo modal, got:\n%s", v)
	}

	m = sendAndSettle(t, m, runes("y"))
	if got := wf.ctrl.State(); got != duplicate.Idle {
		t.Fatalf("state after undo = %v", got)
	}
	if got, want := strings.Join(recordTitles(m), ","), "Print,Web"; got != want {
		t.Fatalf("titles after undo = %q, want %q", got, want)
	}
}

func TestRecordsView_DuplicateFailureShowsFieldErrors(t *testing.T) {
	m, _ := newTestModel(t, "tags", map[string]string{"name": strings.Repeat("n", 58), "slug": "long"})

	m = send(t, m, runes("V"))
	m = sendAndSettle(t, m, runes("y"))

	if got := m.activeWorkflow().ctrl.State(); got != duplicate.Idle {
		t.Fatalf("state after failure = %v", got)
	}
	if !m.flashErr || !strings.Contains(m.flash, "Name must be at most 60 characters") {
		t.Fatalf("unexpected flash %q", m.flash)
	}
	if got := len(m.recordsList.Items()); got != 1 {
		t.Fatalf("expected no copy, got %d records", got)
	}
}

func TestRecordsView_EditCopyOpensFormAndUnmounts(t *testing.T) {
	m, _ := newTestModel(t, "tags", map[string]string{"name": "Print", "slug": "print"})

	m = send(t, m, runes("V"))
	m = sendAndSettle(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	id := m.activeWorkflow().ctrl.Snapshot().DuplicatedID

	m = send(t, m, runes("e"))
	if got := m.activeWorkflow().ctrl.State(); got != duplicate.Idle {
		t.Fatalf("workflow should be reset after edit, got %v", got)
	}
	if m.modal != modalRecordForm || m.form.id != id {
		t.Fatalf("expected edit form for %d, got modal=%v id=%d", id, m.modal, m.form.id)
	}
	if m.view != viewDetail || m.detail == nil || m.detail.Title != "Print (Copy)" {
		t.Fatalf("expected detail of the copy")
	}
}

func TestRenderDuplicateModals_OnePerState(t *testing.T) {
	req := &duplicate.Request{ID: 3, Title: "Print", Resource: "tags"}
	cases := []struct {
		state duplicate.State
		want  string
	}{
		{duplicate.Confirming, "Duplicate tag?"},
		{duplicate.Creating, "Duplicating tag"},
		{duplicate.Success, "Tag duplicated"},
		{duplicate.ConfirmingUndo, "Delete the new tag?"},
		{duplicate.DeletingUndo, "Deleting the copy"},
	}
	for _, tc := range cases {
		snap := duplicate.Snapshot{State: tc.state, Request: req, DuplicatedID: 9}
		got := xansi.Strip(renderDuplicateModals(80, "tag", snap, confirmFocusConfirm, successFocusClose))
		if !strings.Contains(got, tc.want) {
			t.Fatalf("%v: expected %q in:\n%s", tc.state, tc.want, got)
		}
	}
	if got := renderDuplicateModals(80, "tag", duplicate.Snapshot{}, confirmFocusConfirm, 0); got != "" {
		t.Fatalf("idle should render nothing, got %q", got)
	}
}

func TestRecordsView_MoveUpAndDown(t *testing.T) {
	m, _ := newTestModel(t, "tags",
		map[string]string{"name": "A", "slug": "a"},
		map[string]string{"name": "B", "slug": "b"},
		map[string]string{"name": "C", "slug": "c"},
	)
	m.recordsList.Select(2)

	m = send(t, m, runes("K"))
	if got := strings.Join(recordTitles(m), ","); got != "A,C,B" {
		t.Fatalf("after K: %q", got)
	}
	if rec, _ := m.selectedRecord(); rec.Title != "C" {
		t.Fatalf("selection should follow the moved record, got %q", rec.Title)
	}

	m = send(t, m, runes("J"))
	if got := strings.Join(recordTitles(m), ","); got != "A,B,C" {
		t.Fatalf("after J: %q", got)
	}
}

func TestRecordsView_NewRecordForm(t *testing.T) {
	m, s := newTestModel(t, "tags")

	m = send(t, m, runes("n"))
	if m.modal != modalRecordForm {
		t.Fatalf("expected form")
	}
	m = send(t, m, runes("Print"))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	if m.modal != modalRecordForm || m.form.errs["slug"] == "" {
		t.Fatalf("expected slug validation error, got %v", m.form.errs)
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = send(t, m, runes("print"))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.modal != modalNone {
		t.Fatalf("form should close after save, errs=%v", m.form.errs)
	}
	page, err := s.ListRecords(context.Background(), "tags", store.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Records[0].Title != "Print" {
		t.Fatalf("unexpected records %+v", page.Records)
	}
}

func TestRecordsView_EditTitle(t *testing.T) {
	m, s := newTestModel(t, "tags", map[string]string{"name": "Old", "slug": "old"})

	m = send(t, m, runes("e"))
	if len(m.form.inputs) != 1 {
		t.Fatalf("e should edit only the title, got %d inputs", len(m.form.inputs))
	}
	m.form.inputs[0].SetValue("New")
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	rec, _ := m.selectedRecord()
	got, err := s.GetRecord(context.Background(), "tags", rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "New" || got.Field("slug") != "old" {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestRecordsView_DeleteWithConfirm(t *testing.T) {
	m, _ := newTestModel(t, "tags", map[string]string{"name": "Gone", "slug": "gone"})

	m = send(t, m, runes("D"))
	if m.modal != modalConfirmDelete {
		t.Fatalf("expected delete confirm")
	}
	// Focus starts on cancel.
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(m.recordsList.Items()) != 1 {
		t.Fatalf("enter on cancel must not delete")
	}

	m = send(t, m, runes("D"))
	m = send(t, m, runes("y"))
	if len(m.recordsList.Items()) != 0 {
		t.Fatalf("expected record deleted")
	}
}

func TestDetailView_RendersMarkdownAndMoney(t *testing.T) {
	m, _ := newTestModel(t, "business-packages", map[string]string{
		"name":     "Starter",
		"price":    "490000",
		"currency": "USD",
		"features": "- Logo\n- Palette",
	})

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.view != viewDetail {
		t.Fatalf("expected detail view")
	}
	v := plainView(m)
	for _, want := range []string{"Starter", "$4,900.00", "Logo", "Palette"} {
		if !strings.Contains(v, want) {
			t.Fatalf("expected %q in detail view:\n%s", want, v)
		}
	}
}

func TestWorkflowsAreIndependentPerResource(t *testing.T) {
	m, s := newTestModel(t, "tags", map[string]string{"name": "Print", "slug": "print"})
	if _, err := s.CreateRecord(context.Background(), "act-test", "brands", map[string]string{"name": "Acme", "slug": "acme"}); err != nil {
		t.Fatal(err)
	}

	m = send(t, m, runes("V"))
	tags := m.activeWorkflow()

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	brands, _ := model.FindResource("brands")
	m.openResource(brands)
	m = send(t, m, runes("V"))

	if m.activeWorkflow() == tags {
		t.Fatalf("expected a separate workflow per resource")
	}
	if tags.ctrl.State() != duplicate.Idle || m.activeWorkflow().ctrl.State() != duplicate.Confirming {
		t.Fatalf("unexpected states: tags=%v brands=%v", tags.ctrl.State(), m.activeWorkflow().ctrl.State())
	}
}
