package duplicate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"atelier/internal/model"

	"go.uber.org/zap"
)

var (
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrResourceMismatch  = errors.New("request is for another resource")
)

type transitionError struct {
	op   string
	from State
}

func (e *transitionError) Error() string {
	return fmt.Sprintf("%s: not allowed while %s", e.op, e.from)
}

func (e *transitionError) Unwrap() error { return ErrInvalidTransition }

// Controller owns one duplicate workflow. It is safe for concurrent use;
// remote calls run on their own goroutine and settle back through the lock.
type Controller struct {
	cfg     Config
	backend Backend

	mu     sync.Mutex
	state  State
	req    *Request
	dupID  int64
	gen    uint64
	cancel context.CancelFunc
	seq    uint64

	// notifyMu orders OnChange deliveries; notified is the last seq delivered.
	notifyMu sync.Mutex
	notified uint64
}

func New(cfg Config, backend Backend) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Navigator == nil {
		cfg.Navigator = NopNavigator{}
	}
	if cfg.OnSuccess == nil {
		cfg.OnSuccess = func(int64) {}
	}
	if cfg.OnError == nil {
		logger := cfg.Logger
		cfg.OnError = func(errs model.FieldErrors) {
			logger.Error("duplicate failed", zap.Any("errors", map[string]string(errs)))
		}
	}
	return &Controller{cfg: cfg, backend: backend}
}

func (c *Controller) Config() Config { return c.cfg }

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{State: c.state, DuplicatedID: c.dupID}
	if c.req != nil {
		r := *c.req
		s.Request = &r
	}
	return s
}

// unlockAndNotify releases the lock and reports the new snapshot.
func (c *Controller) unlockAndNotify() Snapshot {
	c.seq++
	seq := c.seq
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.cfg.Logger.Debug("duplicate workflow", zap.Stringer("state", snap.State), zap.Int64("duplicatedId", snap.DuplicatedID))
	c.notify(seq, snap)
	return snap
}

// notify delivers snap unless a newer snapshot was already delivered, so
// OnChange never sees the workflow go backwards.
func (c *Controller) notify(seq uint64, snap Snapshot) {
	if c.cfg.OnChange == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if seq <= c.notified {
		return
	}
	c.notified = seq
	c.cfg.OnChange(snap)
}

func (c *Controller) invalidLocked(op string) error {
	err := &transitionError{op: op, from: c.state}
	c.mu.Unlock()
	return err
}

// RequestDuplicate opens the confirm step for r.
func (c *Controller) RequestDuplicate(r Request) error {
	if r.ID <= 0 {
		return fmt.Errorf("request duplicate: invalid id %d", r.ID)
	}
	r.Resource = strings.TrimSpace(r.Resource)
	switch r.Resource {
	case "":
		r.Resource = c.cfg.Resource
	case c.cfg.Resource:
	default:
		return fmt.Errorf("request duplicate %s #%d on the %s workflow: %w", r.Resource, r.ID, c.cfg.Resource, ErrResourceMismatch)
	}
	c.mu.Lock()
	if c.state != Idle {
		return c.invalidLocked("request duplicate")
	}
	c.state = Confirming
	c.req = &r
	c.unlockAndNotify()
	return nil
}

func (c *Controller) CancelDuplicate() error {
	c.mu.Lock()
	if c.state != Confirming {
		return c.invalidLocked("cancel duplicate")
	}
	c.state = Idle
	c.req = nil
	c.unlockAndNotify()
	return nil
}

// ConfirmDuplicate moves to Creating and issues the remote duplicate. The
// returned channel is closed once the call has settled.
func (c *Controller) ConfirmDuplicate(ctx context.Context) (<-chan struct{}, error) {
	c.mu.Lock()
	if c.state != Confirming {
		return nil, c.invalidLocked("confirm duplicate")
	}
	c.state = Creating
	ep := c.cfg.DuplicateEndpoint(c.req.ID)
	gen, callCtx := c.beginLocked(ctx)
	c.unlockAndNotify()

	done := make(chan struct{})
	go func() {
		defer close(done)
		id, err := c.backend.Duplicate(callCtx, ep)
		if err == nil && id <= 0 {
			err = errors.New("duplicate returned no id")
		}
		c.settleDuplicate(gen, id, err)
	}()
	return done, nil
}

func (c *Controller) settleDuplicate(gen uint64, id int64, err error) {
	c.mu.Lock()
	if gen != c.gen || c.state != Creating {
		c.mu.Unlock()
		c.cfg.Logger.Debug("dropping stale duplicate result", zap.Int64("id", id), zap.Error(err))
		return
	}
	c.endLocked()
	if err != nil {
		c.state = Idle
		c.req = nil
		c.dupID = 0
		c.unlockAndNotify()
		c.cfg.OnError(fieldErrors(err))
		return
	}
	c.state = Success
	c.dupID = id
	c.unlockAndNotify()
	c.cfg.OnSuccess(id)
}

// EditDuplicatedRecord navigates to the edit view of the copy. State is
// left alone; the caller usually tears the workflow down afterwards.
func (c *Controller) EditDuplicatedRecord() (Location, error) {
	c.mu.Lock()
	if c.state != Success {
		return Location{}, c.invalidLocked("edit duplicated record")
	}
	loc := c.cfg.EditLocation(c.dupID)
	c.mu.Unlock()
	c.cfg.Navigator.Visit(loc)
	return loc, nil
}

func (c *Controller) CloseSuccess() error {
	c.mu.Lock()
	if c.state != Success {
		return c.invalidLocked("close success")
	}
	c.state = Idle
	c.req = nil
	c.dupID = 0
	c.unlockAndNotify()
	return nil
}

// SetUndoRequested toggles the undo confirmation on top of Success.
func (c *Controller) SetUndoRequested(on bool) error {
	c.mu.Lock()
	switch {
	case on && c.state == Success:
		c.state = ConfirmingUndo
	case !on && c.state == ConfirmingUndo:
		c.state = Success
	default:
		if on {
			return c.invalidLocked("request undo")
		}
		return c.invalidLocked("cancel undo")
	}
	c.unlockAndNotify()
	return nil
}

func (c *Controller) CancelUndo() error { return c.SetUndoRequested(false) }

// ConfirmUndoDelete deletes the copy. Whatever the outcome the workflow ends
// in Idle; a failed delete is reported to OnUndoError.
func (c *Controller) ConfirmUndoDelete(ctx context.Context) (<-chan struct{}, error) {
	c.mu.Lock()
	if c.state != ConfirmingUndo {
		return nil, c.invalidLocked("confirm undo")
	}
	c.state = DeletingUndo
	ep := c.cfg.Routes.Destroy(c.dupID)
	gen, callCtx := c.beginLocked(ctx)
	c.unlockAndNotify()

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := c.backend.Delete(callCtx, ep)
		c.settleUndo(gen, err)
	}()
	return done, nil
}

func (c *Controller) settleUndo(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen || c.state != DeletingUndo {
		c.mu.Unlock()
		return
	}
	c.endLocked()
	c.state = Idle
	c.req = nil
	c.dupID = 0
	c.unlockAndNotify()
	if err != nil {
		if c.cfg.OnUndoError != nil {
			c.cfg.OnUndoError(err)
		}
		return
	}
	c.cfg.Navigator.Reload()
}

// Reset aborts any in-flight call and returns to Idle. A result that
// arrives afterwards is ignored.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.endLocked()
	c.gen++
	c.state = Idle
	c.req = nil
	c.dupID = 0
	c.unlockAndNotify()
}

func (c *Controller) beginLocked(ctx context.Context) (uint64, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	var callCtx context.Context
	var cancel context.CancelFunc
	if c.cfg.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	c.gen++
	c.cancel = cancel
	return c.gen, callCtx
}

func (c *Controller) endLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
