// Package duplicate implements the duplicate-record workflow: confirm, create,
// then either close, edit the copy, or undo it.
package duplicate

type State int

const (
	Idle State = iota
	Confirming
	Creating
	Success
	ConfirmingUndo
	DeletingUndo
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Confirming:
		return "confirming"
	case Creating:
		return "creating"
	case Success:
		return "success"
	case ConfirmingUndo:
		return "confirming-undo"
	case DeletingUndo:
		return "deleting-undo"
	default:
		return "unknown"
	}
}

// Modal identifies which of the four workflow modals is visible.
type Modal int

const (
	ModalNone Modal = iota
	ModalConfirm
	ModalCreating
	ModalSuccess
	ModalUndo
)

func (m Modal) String() string {
	switch m {
	case ModalConfirm:
		return "confirm"
	case ModalCreating:
		return "creating"
	case ModalSuccess:
		return "success"
	case ModalUndo:
		return "undo"
	default:
		return "none"
	}
}

// Modal returns the single modal shown while s is active.
func (s State) Modal() Modal {
	switch s {
	case Confirming:
		return ModalConfirm
	case Creating:
		return ModalCreating
	case Success:
		return ModalSuccess
	case ConfirmingUndo, DeletingUndo:
		return ModalUndo
	default:
		return ModalNone
	}
}

// Request is the record a user asked to duplicate.
type Request struct {
	ID       int64  `json:"id"`
	Title    string `json:"title,omitempty"`
	Resource string `json:"resource"`
}

// Snapshot is a copy of the controller's state at one point in time.
type Snapshot struct {
	State        State    `json:"state"`
	Request      *Request `json:"request,omitempty"`
	DuplicatedID int64    `json:"duplicatedId,omitempty"`
}

func (s Snapshot) Modal() Modal { return s.State.Modal() }

// Open reports whether modal m is the visible one.
func (s Snapshot) Open(m Modal) bool { return m != ModalNone && s.State.Modal() == m }

// UndoInProgress is true while the undo delete is in flight.
func (s Snapshot) UndoInProgress() bool { return s.State == DeletingUndo }

func (s Snapshot) Title() string {
	if s.Request == nil {
		return ""
	}
	return s.Request.Title
}
