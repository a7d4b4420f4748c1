package tui

import (
	"context"
	"fmt"
	"strings"

	"atelier/internal/format"
	"atelier/internal/model"
	"atelier/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

func (m appModel) updateRecords(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.recordsList.SettingFilter() {
		var cmd tea.Cmd
		m.recordsList, cmd = m.recordsList.Update(msg)
		return m, cmd
	}
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace", "h", "left":
		if m.recordsList.IsFiltered() {
			m.recordsList.ResetFilter()
			return m, nil
		}
		m.view = viewResources
		m.refreshResources()
		return m, nil
	case "r":
		m.reload()
		return m, nil
	case "enter", "l", "right":
		if rec, ok := m.selectedRecord(); ok {
			m.detail = &rec
			m.view = viewDetail
		}
		return m, nil
	case "n":
		m.setFlash("", false)
		m.openForm(newRecordForm(m.resource, model.Record{}, false))
		return m, nil
	case "e", "E":
		if rec, ok := m.selectedRecord(); ok {
			m.setFlash("", false)
			m.openForm(newRecordForm(m.resource, rec, msg.String() == "e"))
		}
		return m, nil
	case "D":
		if _, ok := m.selectedRecord(); ok {
			m.modal = modalConfirmDelete
			m.confirmFocus = confirmFocusCancel
		}
		return m, nil
	case "K":
		m.moveSelected(-1)
		return m, nil
	case "J":
		m.moveSelected(1)
		return m, nil
	case "V":
		if rec, ok := m.selectedRecord(); ok {
			return m.requestDuplicate(rec)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.recordsList, cmd = m.recordsList.Update(msg)
	return m, cmd
}

// moveSelected swaps the selected record with its neighbour in rank order.
func (m *appModel) moveSelected(delta int) {
	if m.recordsList.IsFiltered() {
		m.setFlash("clear the filter before reordering", true)
		return
	}
	items := m.recordsList.Items()
	i := m.recordsList.Index()
	j := i + delta
	if i < 0 || i >= len(items) || j < 0 || j >= len(items) {
		return
	}
	cur := items[i].(recordItem).rec
	other := items[j].(recordItem).rec
	opts := store.MoveOptions{BeforeID: other.ID}
	if delta > 0 {
		opts = store.MoveOptions{AfterID: other.ID}
	}
	if _, err := m.store.MoveRecord(context.Background(), m.opts.ActorID, m.resource.Name, cur.ID, opts); err != nil {
		m.reportErr("move", err)
		return
	}
	m.log.Debug("record moved", zap.String("resource", m.resource.Name), zap.Int64("id", cur.ID))
	m.refreshRecords(cur.ID)
	m.lastModTime = m.store.ModTime()
}

func (m appModel) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "n":
		m.modal = modalNone
	case "tab", "shift+tab", "left", "right":
		m.confirmFocus = m.confirmFocus.toggle()
	case "y":
		m.confirmFocus = confirmFocusConfirm
		fallthrough
	case "enter":
		m.modal = modalNone
		if m.confirmFocus != confirmFocusConfirm {
			return m, nil
		}
		rec, ok := m.selectedRecord()
		if !ok {
			return m, nil
		}
		if err := m.store.DeleteRecord(context.Background(), m.opts.ActorID, m.resource.Name, rec.ID); err != nil {
			m.reportErr("delete", err)
			return m, nil
		}
		m.setFlash(fmt.Sprintf("Deleted %s", quoted(rec.Title)), false)
		if m.detail != nil && m.detail.ID == rec.ID {
			m.view = viewRecords
		}
		m.reload()
	}
	return m, nil
}

func (m appModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.detail == nil {
		m.view = viewRecords
		return m, nil
	}
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace", "h", "left":
		m.view = viewRecords
		return m, nil
	case "e", "E":
		m.openForm(newRecordForm(m.resource, *m.detail, msg.String() == "e"))
		return m, nil
	case "V":
		return m.requestDuplicate(*m.detail)
	}
	return m, nil
}

func (m appModel) detailView() string {
	if m.detail == nil {
		return ""
	}
	rec := *m.detail
	w := m.width - 2
	lines := []string{}
	for _, f := range m.resource.Fields {
		v := rec.Field(f.Name)
		lines = append(lines, styleHeading().Render(f.Label))
		switch {
		case strings.TrimSpace(v) == "":
			lines = append(lines, styleMuted().Render("(empty)"))
		case f.Kind == model.FieldMarkdown:
			lines = append(lines, renderMarkdown(v, w))
		case f.Kind == model.FieldMoney:
			if cents, err := format.ParseMoney(v); err == nil {
				v = format.Money(cents, rec.Field("currency"))
			}
			lines = append(lines, v)
		default:
			lines = append(lines, v)
		}
		lines = append(lines, "")
	}
	lines = append(lines, styleMuted().Render(fmt.Sprintf("#%d  updated %s", rec.ID, rec.UpdatedAt.Local().Format("2006-01-02 15:04"))))

	h := m.height - 3
	if h > 0 && len(lines) > h {
		lines = lines[:h]
	}
	return strings.Join(lines, "\n")
}
