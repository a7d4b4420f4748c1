package tui

import (
	"fmt"
	"io"
	"strings"

	"atelier/internal/format"
	"atelier/internal/model"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

type resourceItem struct {
	res   model.Resource
	count int
}

func (i resourceItem) FilterValue() string { return i.res.Label }
func (i resourceItem) Title() string       { return i.res.Label }
func (i resourceItem) Description() string { return fmt.Sprintf("%d records", i.count) }

type recordItem struct {
	res model.Resource
	rec model.Record
}

func (i recordItem) FilterValue() string { return i.rec.Title }
func (i recordItem) Title() string       { return i.rec.Title }
func (i recordItem) Description() string { return recordSummary(i.res, i.rec) }

// recordSummary is the first non-title field worth showing in a list row.
func recordSummary(res model.Resource, rec model.Record) string {
	for _, f := range res.Fields {
		if f.Name == res.TitleField {
			continue
		}
		v := strings.TrimSpace(rec.Field(f.Name))
		if v == "" {
			continue
		}
		switch f.Kind {
		case model.FieldMarkdown:
			v, _, _ = strings.Cut(v, "\n")
		case model.FieldMoney:
			if cents, err := format.ParseMoney(v); err == nil {
				v = format.Money(cents, rec.Field("currency"))
			}
		case model.FieldBool:
			if v != "true" {
				continue
			}
			v = f.Label
		}
		return v
	}
	return ""
}

type compactItemDelegate struct {
	normal   lipgloss.Style
	selected lipgloss.Style
	meta     lipgloss.Style
}

func newCompactItemDelegate() compactItemDelegate {
	return compactItemDelegate{
		normal: lipgloss.NewStyle(),
		selected: lipgloss.NewStyle().
			Foreground(colorSelectedFg).
			Background(colorSelectedBg).
			Bold(true),
		meta: styleMuted(),
	}
}

func (d compactItemDelegate) Height() int                             { return 1 }
func (d compactItemDelegate) Spacing() int                            { return 0 }
func (d compactItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d compactItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	contentW := m.Width()
	if contentW < 4 {
		return
	}
	title, desc := fmt.Sprint(item), ""
	if t, ok := item.(list.DefaultItem); ok {
		title, desc = t.Title(), t.Description()
	}

	line := " " + title
	if desc != "" {
		line += "  " + d.meta.Render(desc)
	}
	lineW := xansi.StringWidth(line)
	if lineW < contentW {
		line += strings.Repeat(" ", contentW-lineW)
	} else if lineW > contentW {
		line = xansi.Cut(line, 0, contentW-1) + "…"
	}

	style := d.normal
	if index == m.Index() {
		style = d.selected
	}
	fmt.Fprint(w, style.Render(line))
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, newCompactItemDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.Styles.Title = styleHeading()
	return l
}
