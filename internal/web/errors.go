package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"atelier/internal/model"
	"atelier/internal/store"

	"github.com/moogar0880/problems"
)

const problemContentType = "application/problem+json"

// validationProblem is a 422 problem carrying per-field messages.
type validationProblem struct {
	*problems.Problem
	Errors model.FieldErrors `json:"errors"`
}

func writeProblem(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	problem := problems.NewStatusProblem(http.StatusBadRequest).
		WithInstance(r.URL.Path).
		WithType("bad_request").
		WithDetail(detail)

	writeProblem(w, http.StatusBadRequest, problem)
}

func notFound(w http.ResponseWriter, r *http.Request, detail string) {
	problem := problems.NewStatusProblem(http.StatusNotFound).
		WithInstance(r.URL.Path).
		WithType("not_found").
		WithDetail(detail)

	writeProblem(w, http.StatusNotFound, problem)
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	problem := problems.NewStatusProblem(http.StatusInternalServerError).
		WithInstance(r.URL.Path).
		WithType("internal_error").
		WithError(err)

	writeProblem(w, http.StatusInternalServerError, problem)
}

func unprocessable(w http.ResponseWriter, r *http.Request, fe model.FieldErrors) {
	problem := problems.NewStatusProblem(http.StatusUnprocessableEntity).
		WithInstance(r.URL.Path).
		WithType("validation_error").
		WithDetail(fe.Error())

	writeProblem(w, http.StatusUnprocessableEntity, validationProblem{Problem: problem, Errors: fe})
}

// handleStoreError maps store errors onto problem responses.
func handleStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var fe model.FieldErrors
	switch {
	case errors.As(err, &fe):
		unprocessable(w, r, fe)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrUnknownResource):
		notFound(w, r, err.Error())
	case errors.Is(err, store.ErrNoRankSpace):
		problem := problems.NewStatusProblem(http.StatusConflict).
			WithInstance(r.URL.Path).
			WithType("conflict").
			WithDetail(err.Error())

		writeProblem(w, http.StatusConflict, problem)
	default:
		internalError(w, r, err)
	}
}
