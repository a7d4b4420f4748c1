package tui

import (
	"context"
	"strings"
	"time"

	"atelier/internal/model"
	"atelier/internal/store"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

type view int

const (
	viewResources view = iota
	viewRecords
	viewDetail
)

type modalKind int

const (
	modalNone modalKind = iota
	modalRecordForm
	modalConfirmDelete
)

type reloadTickMsg struct{}

const reloadInterval = time.Second

func tickReload() tea.Cmd {
	return tea.Tick(reloadInterval, func(time.Time) tea.Msg { return reloadTickMsg{} })
}

type appModel struct {
	opts  Options
	store store.Store
	log   *zap.Logger

	width  int
	height int

	view view

	resourcesList list.Model
	recordsList   list.Model

	// resource is the one whose records are open.
	resource model.Resource
	detail   *model.Record

	modal        modalKind
	form         recordForm
	confirmFocus confirmModalFocus

	// One workflow per resource, created on first use. The map is shared by
	// model copies so async completions land on the live controller.
	workflows       map[string]*workflow
	dupConfirmFocus confirmModalFocus
	dupSuccessFocus int

	flash    string
	flashErr bool

	lastModTime int64
}

func newAppModel(opts Options) appModel {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if strings.TrimSpace(opts.ActorID) == "" {
		opts.ActorID = "act-tui"
	}
	m := appModel{
		opts:      opts,
		store:     store.Store{Dir: opts.Dir, Logger: opts.Logger},
		log:       opts.Logger,
		view:      viewResources,
		workflows: map[string]*workflow{},
	}
	m.resourcesList = newList("Resources", nil)
	m.recordsList = newList("Records", nil)
	m.refreshResources()
	m.lastModTime = m.store.ModTime()
	return m
}

func (m appModel) Init() tea.Cmd { return tickReload() }

func (m *appModel) setFlash(msg string, isErr bool) {
	m.flash = msg
	m.flashErr = isErr
}

func (m *appModel) reportErr(what string, err error) {
	m.log.Warn(what, zap.Error(err))
	m.setFlash(what+": "+err.Error(), true)
}

func (m *appModel) refreshResources() {
	counts, err := m.store.CountRecords(context.Background())
	if err != nil {
		m.reportErr("count records", err)
	}
	idx := m.resourcesList.Index()
	items := []list.Item{}
	for _, res := range model.Resources() {
		items = append(items, resourceItem{res: res, count: counts[res.Name]})
	}
	m.resourcesList.SetItems(items)
	if idx < len(items) {
		m.resourcesList.Select(idx)
	}
}

// refreshRecords reloads the open resource and keeps the selection on selectID
// when given, otherwise on the current row.
func (m *appModel) refreshRecords(selectID int64) {
	if m.resource.Name == "" {
		return
	}
	if selectID == 0 {
		if it, ok := m.recordsList.SelectedItem().(recordItem); ok {
			selectID = it.rec.ID
		}
	}
	page, err := m.store.ListRecords(context.Background(), m.resource.Name, store.ListOptions{PerPage: 1000})
	if err != nil {
		m.reportErr("list records", err)
		return
	}
	items := make([]list.Item, 0, len(page.Records))
	sel := -1
	for i, rec := range page.Records {
		items = append(items, recordItem{res: m.resource, rec: rec})
		if rec.ID == selectID {
			sel = i
		}
	}
	m.recordsList.SetItems(items)
	if sel >= 0 {
		m.recordsList.Select(sel)
	} else if m.recordsList.Index() >= len(items) && len(items) > 0 {
		m.recordsList.Select(len(items) - 1)
	}
	if m.detail != nil {
		if rec, err := m.store.GetRecord(context.Background(), m.resource.Name, m.detail.ID); err == nil {
			m.detail = &rec
		} else {
			m.detail = nil
			if m.view == viewDetail {
				m.view = viewRecords
			}
		}
	}
}

func (m *appModel) reload() {
	m.refreshResources()
	m.refreshRecords(0)
	m.lastModTime = m.store.ModTime()
}

func (m *appModel) openResource(res model.Resource) {
	m.resource = res
	m.detail = nil
	m.recordsList.Title = res.Label
	m.recordsList.ResetFilter()
	m.recordsList.Select(0)
	m.view = viewRecords
	m.refreshRecords(0)
}

func (m appModel) selectedRecord() (model.Record, bool) {
	it, ok := m.recordsList.SelectedItem().(recordItem)
	if !ok {
		return model.Record{}, false
	}
	return it.rec, true
}

func (m *appModel) resizeLists() {
	h := m.height - 3
	if h < 3 {
		h = 3
	}
	m.resourcesList.SetSize(m.width, h)
	m.recordsList.SetSize(m.width, h)
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLists()
		return m, nil

	case reloadTickMsg:
		// Pick up writes from the CLI or web server running against the same workspace.
		if t := m.store.ModTime(); t != m.lastModTime {
			m.reload()
		}
		return m, tickReload()

	case workflowSettledMsg:
		m.settleWorkflow(msg)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if wf := m.activeWorkflow(); wf != nil && wf.modalOpen() {
			return m.updateWorkflowKeys(wf, msg)
		}
		switch m.modal {
		case modalRecordForm:
			return m.updateForm(msg)
		case modalConfirmDelete:
			return m.updateConfirmDelete(msg)
		}
		switch m.view {
		case viewResources:
			return m.updateResources(msg)
		case viewRecords:
			return m.updateRecords(msg)
		case viewDetail:
			return m.updateDetail(msg)
		}
	}
	return m, nil
}

func (m appModel) updateResources(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.resourcesList.SettingFilter() {
		var cmd tea.Cmd
		m.resourcesList, cmd = m.resourcesList.Update(msg)
		return m, cmd
	}
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "r":
		m.reload()
		return m, nil
	case "enter", "l", "right":
		if it, ok := m.resourcesList.SelectedItem().(resourceItem); ok {
			m.setFlash("", false)
			m.openResource(it.res)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.resourcesList, cmd = m.resourcesList.Update(msg)
	return m, cmd
}

func (m appModel) View() string {
	if m.width == 0 {
		return ""
	}
	if modal := m.modalView(); modal != "" {
		return overlayCenter(m.width, m.height, modal)
	}

	var body string
	switch m.view {
	case viewResources:
		body = m.resourcesList.View()
	case viewRecords:
		body = m.recordsList.View()
	case viewDetail:
		body = m.detailView()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.breadcrumb(), body, m.footer())
}

func (m appModel) modalView() string {
	if wf := m.activeWorkflow(); wf != nil {
		if s := renderDuplicateModals(m.width, m.resource.Singular(), wf.ctrl.Snapshot(), m.dupConfirmFocus, m.dupSuccessFocus); s != "" {
			return s
		}
	}
	switch m.modal {
	case modalRecordForm:
		return m.form.view(m.width)
	case modalConfirmDelete:
		rec, _ := m.selectedRecord()
		body := styleMuted().Width(modalBodyWidth(m.width)).Render(quoted(rec.Title) + " will be deleted.")
		return renderConfirmModal(m.width, "Delete "+m.resource.Singular()+"?", body, "Delete", "Cancel", m.confirmFocus)
	}
	return ""
}

func (m appModel) breadcrumb() string {
	parts := []string{"atelier"}
	if m.view != viewResources {
		parts = append(parts, m.resource.Label)
	}
	if m.view == viewDetail && m.detail != nil {
		parts = append(parts, m.detail.Title)
	}
	return styleHeading().Render(strings.Join(parts, " › "))
}

func (m appModel) footer() string {
	if m.flash != "" {
		if m.flashErr {
			return styleError().Render(m.flash)
		}
		return styleSuccess().Render(m.flash)
	}
	var help string
	switch m.view {
	case viewResources:
		help = "enter: open   /: filter   r: reload   q: quit"
	case viewRecords:
		help = "enter: view   n: new   e: title   E: edit   D: delete   V: duplicate   K/J: move   /: filter   esc: back"
	case viewDetail:
		help = "e: title   E: edit   V: duplicate   esc: back"
	}
	return styleMuted().Render(help)
}
