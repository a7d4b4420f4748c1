package tui

import (
	"fmt"
	"strings"

	"atelier/internal/duplicate"
)

// Success modal buttons, in display order.
const (
	successFocusEdit = iota
	successFocusUndo
	successFocusClose
	successButtons
)

func quoted(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "this record"
	}
	return fmt.Sprintf("%q", title)
}

func renderDuplicateConfirmModal(width int, open bool, singular, title string, focus confirmModalFocus) string {
	if !open {
		return ""
	}
	body := styleMuted().Width(modalBodyWidth(width)).Render(
		fmt.Sprintf("A copy of %s will be created right after it.", quoted(title)))
	return renderConfirmModal(width, "Duplicate "+singular+"?", body, "Duplicate", "Cancel", focus)
}

func renderDuplicateCreatingModal(width int, open bool, singular, title string) string {
	if !open {
		return ""
	}
	body := fmt.Sprintf("Duplicating %s…", quoted(title))
	help := styleMuted().Render("ctrl+r: abandon")
	return renderModalBox(width, "Duplicating "+singular, body+"\n\n"+help)
}

func renderDuplicateSuccessModal(width int, open bool, singular string, newID int64, focus int) string {
	if !open {
		return ""
	}
	body := styleSuccess().Render(fmt.Sprintf("Created a copy (#%d).", newID))
	help := styleMuted().Width(modalBodyWidth(width)).Render("tab: focus   enter: select   esc: close")
	content := strings.Join([]string{
		body,
		"",
		renderButtons([]string{"Edit copy", "Undo", "Close"}, focus),
		"",
		help,
	}, "\n")
	return renderModalBox(width, capitalize(singular)+" duplicated", content)
}

func renderDuplicateUndoModal(width int, open bool, singular string, inProgress bool, focus confirmModalFocus) string {
	if !open {
		return ""
	}
	if inProgress {
		return renderModalBox(width, "Undo duplicate", "Deleting the copy…")
	}
	body := styleMuted().Width(modalBodyWidth(width)).Render("The copy will be deleted. This cannot be undone.")
	return renderConfirmModal(width, "Delete the new "+singular+"?", body, "Delete copy", "Keep it", focus)
}

// renderDuplicateModals mounts all four renderers; at most one is non-empty.
func renderDuplicateModals(width int, singular string, snap duplicate.Snapshot, confirmFocus confirmModalFocus, successFocus int) string {
	parts := []string{
		renderDuplicateConfirmModal(width, snap.Open(duplicate.ModalConfirm), singular, snap.Title(), confirmFocus),
		renderDuplicateCreatingModal(width, snap.Open(duplicate.ModalCreating), singular, snap.Title()),
		renderDuplicateSuccessModal(width, snap.Open(duplicate.ModalSuccess), singular, snap.DuplicatedID, successFocus),
		renderDuplicateUndoModal(width, snap.Open(duplicate.ModalUndo), singular, snap.UndoInProgress(), confirmFocus),
	}
	var out string
	for _, p := range parts {
		if p != "" {
			out = p
		}
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
