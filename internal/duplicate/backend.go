package duplicate

import (
	"context"
	"errors"
	"fmt"

	"atelier/internal/model"
	"atelier/internal/store"
)

// Backend performs the remote calls the workflow issues.
type Backend interface {
	// Duplicate copies the record at ep and returns the new id. A rejected
	// copy is reported as model.FieldErrors.
	Duplicate(ctx context.Context, ep Endpoint) (int64, error)
	Delete(ctx context.Context, ep Endpoint) error
}

// StoreBackend runs the workflow against a local workspace store.
type StoreBackend struct {
	Store   store.Store
	ActorID string
}

func (b StoreBackend) Duplicate(ctx context.Context, ep Endpoint) (int64, error) {
	r, err := b.Store.DuplicateRecord(ctx, b.ActorID, ep.Resource, ep.ID)
	if err != nil {
		return 0, err
	}
	return r.ID, nil
}

func (b StoreBackend) Delete(ctx context.Context, ep Endpoint) error {
	return b.Store.DeleteRecord(ctx, b.ActorID, ep.Resource, ep.ID)
}

// fieldErrors turns any backend failure into the mapping handed to OnError.
func fieldErrors(err error) model.FieldErrors {
	var fe model.FieldErrors
	if errors.As(err, &fe) && len(fe) > 0 {
		out := make(model.FieldErrors, len(fe))
		for k, v := range fe {
			out[k] = v
		}
		return out
	}
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "duplicate timed out"
	case errors.Is(err, store.ErrNotFound):
		msg = fmt.Sprintf("record no longer exists: %v", err)
	}
	return model.FieldErrors{"error": msg}
}
