package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"atelier/internal/model"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// recordForm edits a subset of a resource's fields with one input per field.
type recordForm struct {
	resource model.Resource
	// id is zero for a new record.
	id     int64
	fields []model.FieldDef
	inputs []textinput.Model
	focus  int
	errs   model.FieldErrors
}

func newRecordForm(res model.Resource, rec model.Record, titleOnly bool) recordForm {
	f := recordForm{resource: res, id: rec.ID}
	for _, fd := range res.Fields {
		if titleOnly && fd.Name != res.TitleField {
			continue
		}
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 4000
		in.SetValue(rec.Field(fd.Name))
		switch fd.Kind {
		case model.FieldBool:
			in.Placeholder = "true/false"
		case model.FieldMoney:
			in.Placeholder = "amount in cents"
		case model.FieldColor:
			in.Placeholder = "#rrggbb"
		}
		f.fields = append(f.fields, fd)
		f.inputs = append(f.inputs, in)
	}
	if len(f.inputs) > 0 {
		f.inputs[0].Focus()
	}
	return f
}

func (f *recordForm) setFocus(i int) {
	if len(f.inputs) == 0 {
		return
	}
	i = (i + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Blur()
	f.focus = i
	f.inputs[f.focus].Focus()
}

func (f recordForm) values() map[string]string {
	out := make(map[string]string, len(f.fields))
	for i, fd := range f.fields {
		out[fd.Name] = f.inputs[i].Value()
	}
	return out
}

func (f recordForm) title() string {
	if f.id == 0 {
		return "New " + f.resource.Singular()
	}
	if len(f.fields) == 1 {
		return fmt.Sprintf("Rename %s #%d", f.resource.Singular(), f.id)
	}
	return fmt.Sprintf("Edit %s #%d", f.resource.Singular(), f.id)
}

func (f recordForm) view(width int) string {
	bodyW := modalBodyWidth(width)
	label := lipgloss.NewStyle().Bold(true)
	input := lipgloss.NewStyle().Background(colorInputBg).Width(bodyW)
	lines := []string{}
	for i, fd := range f.fields {
		in := f.inputs[i]
		in.Width = bodyW - 1
		lines = append(lines, label.Render(fd.Label), input.Render(in.View()))
		if msg := f.errs[fd.Name]; msg != "" {
			lines = append(lines, styleError().Render(msg))
		}
	}
	if msg := f.errs["error"]; msg != "" {
		lines = append(lines, styleError().Render(msg))
	}
	lines = append(lines, "", styleMuted().Width(bodyW).Render("tab: next field   enter/ctrl+s: save   esc: cancel"))
	return renderModalBox(width, f.title(), strings.Join(lines, "\n"))
}

func (m *appModel) openForm(f recordForm) {
	m.form = f
	m.modal = modalRecordForm
}

func (m appModel) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.modal = modalNone
		return m, nil
	case "tab", "down":
		m.form.setFocus(m.form.focus + 1)
		return m, nil
	case "shift+tab", "up":
		m.form.setFocus(m.form.focus - 1)
		return m, nil
	case "enter":
		if m.form.focus < len(m.form.inputs)-1 {
			m.form.setFocus(m.form.focus + 1)
			return m, nil
		}
		return m.saveForm()
	case "ctrl+s":
		return m.saveForm()
	}
	if len(m.form.inputs) == 0 {
		return m, nil
	}
	var cmd tea.Cmd
	m.form.inputs[m.form.focus], cmd = m.form.inputs[m.form.focus].Update(msg)
	return m, cmd
}

func (m appModel) saveForm() (tea.Model, tea.Cmd) {
	ctx := context.Background()
	vals := m.form.values()
	var (
		rec model.Record
		err error
	)
	if m.form.id == 0 {
		rec, err = m.store.CreateRecord(ctx, m.opts.ActorID, m.resource.Name, vals)
	} else {
		rec, err = m.store.UpdateRecord(ctx, m.opts.ActorID, m.resource.Name, m.form.id, vals)
	}
	if err != nil {
		var fe model.FieldErrors
		if errors.As(err, &fe) {
			m.form.errs = fe
		} else {
			m.form.errs = model.FieldErrors{"error": err.Error()}
		}
		return m, nil
	}
	m.log.Info("record saved", zap.String("resource", m.resource.Name), zap.Int64("id", rec.ID))
	m.modal = modalNone
	m.setFlash(fmt.Sprintf("Saved %s", quoted(rec.Title)), false)
	if m.detail != nil && m.detail.ID == rec.ID {
		m.detail = &rec
	}
	m.refreshResources()
	m.refreshRecords(rec.ID)
	m.lastModTime = m.store.ModTime()
	return m, nil
}
