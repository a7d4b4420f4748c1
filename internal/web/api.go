package web

import (
	"net/http"

	"atelier/internal/model"

	"go.uber.org/zap"
)

type createdID struct {
	ID int64 `json:"id"`
}

// handleDuplicate is the JSON endpoint behind "<resource>.duplicate".
// 201 {"data":{"id":N}} on success, a 422 problem with "errors" otherwise.
func (s *Server) handleDuplicate(w http.ResponseWriter, r *http.Request, res model.Resource) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.store().DuplicateRecord(r.Context(), s.actorID(), res.Name, id)
	if err != nil {
		s.log.Info("duplicate rejected", zap.String("resource", res.Name), zap.Int64("id", id), zap.Error(err))
		handleStoreError(w, r, err)
		return
	}
	s.notifyChanged(res.Name)
	writeJSON(w, http.StatusCreated, map[string]any{"data": createdID{ID: rec.ID}})
}

// handleDestroy deletes a record; it is also the undo path of a duplicate.
func (s *Server) handleDestroy(w http.ResponseWriter, r *http.Request, res model.Resource) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store().DeleteRecord(r.Context(), s.actorID(), res.Name, id); err != nil {
		handleStoreError(w, r, err)
		return
	}
	s.notifyChanged(res.Name)
	w.WriteHeader(http.StatusNoContent)
}
