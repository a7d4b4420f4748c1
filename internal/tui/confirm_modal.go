package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type confirmModalFocus int

const (
	confirmFocusConfirm confirmModalFocus = iota
	confirmFocusCancel
)

func (f confirmModalFocus) toggle() confirmModalFocus {
	if f == confirmFocusConfirm {
		return confirmFocusCancel
	}
	return confirmFocusConfirm
}

func modalWidth(width int) int {
	w := width - 8
	if w > 64 {
		w = 64
	}
	if w < 28 {
		w = 28
	}
	return w
}

// modalBodyWidth is the usable text width inside renderModalBox.
func modalBodyWidth(width int) int { return modalWidth(width) - 4 }

func renderModalBox(width int, title string, content string) string {
	w := modalWidth(width)
	header := lipgloss.NewStyle().
		Width(w-2).
		Padding(0, 1).
		Bold(true).
		Background(colorModalHeaderBg).
		Render(title)
	body := lipgloss.NewStyle().
		Width(w-2).
		Padding(1, 1).
		Background(colorModalSurfaceBg).
		Render(content)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, body))
}

func renderButtons(labels []string, active int) string {
	// No borders: nested borders inside a colored modal leave artifacts on some terminals.
	btnBase := lipgloss.NewStyle().
		Padding(0, 1).
		Foreground(colorSurfaceFg).
		Background(colorControlBg)
	btnActive := btnBase.
		Foreground(colorSelectedFg).
		Background(colorSelectedBg).
		Bold(true)

	out := make([]string, 0, len(labels)*2)
	for i, l := range labels {
		if i > 0 {
			out = append(out, lipgloss.NewStyle().Background(colorControlBg).Render(" "))
		}
		if i == active {
			out = append(out, btnActive.Render(l))
		} else {
			out = append(out, btnBase.Render(l))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, out...)
}

func renderConfirmModal(width int, title string, body string, confirmLabel string, cancelLabel string, focus confirmModalFocus) string {
	active := 0
	if focus == confirmFocusCancel {
		active = 1
	}
	help := styleMuted().Width(modalBodyWidth(width)).Render("tab: focus   enter: select   esc: cancel")
	content := strings.Join([]string{
		body,
		"",
		renderButtons([]string{confirmLabel, cancelLabel}, active),
		"",
		help,
	}, "\n")
	return renderModalBox(width, title, content)
}

// overlayCenter places a modal in the middle of a w x h screen.
func overlayCenter(w, h int, modal string) string {
	return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, modal)
}
