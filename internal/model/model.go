package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldMarkdown FieldKind = "markdown"
	FieldMoney    FieldKind = "money"
	FieldBool     FieldKind = "bool"
	FieldColor    FieldKind = "color"
	FieldURL      FieldKind = "url"
	FieldEmail    FieldKind = "email"
)

// FieldDef describes one editable field of a resource.
type FieldDef struct {
	Name  string    `json:"name"`
	Label string    `json:"label"`
	Kind  FieldKind `json:"kind"`
	// Rules is a go-playground/validator tag (e.g. "required,max=60").
	Rules string `json:"rules,omitempty"`

	// Unique values get a "-copy" suffix (then "-copy-2", ...) when a record is duplicated.
	Unique bool `json:"unique,omitempty"`
	// CopySuffix values get " (Copy)" appended when a record is duplicated.
	CopySuffix bool `json:"copySuffix,omitempty"`
	// ResetOnCopy values are cleared when a record is duplicated.
	ResetOnCopy bool `json:"resetOnCopy,omitempty"`
}

// Resource is a named collection of records (e.g. tags, brands).
type Resource struct {
	Name       string     `json:"name"`
	Label      string     `json:"label"`
	TitleField string     `json:"titleField"`
	Fields     []FieldDef `json:"fields"`
}

func (r Resource) Field(name string) (FieldDef, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// Singular is a best-effort singular label used in UI copy ("Duplicate tag?").
func (r Resource) Singular() string {
	l := strings.ToLower(strings.TrimSpace(r.Label))
	switch {
	case strings.HasSuffix(l, "ies"):
		return strings.TrimSuffix(l, "ies") + "y"
	case strings.HasSuffix(l, "ses"):
		return strings.TrimSuffix(l, "es")
	case strings.HasSuffix(l, "s"):
		return strings.TrimSuffix(l, "s")
	}
	return l
}

type Record struct {
	ID       int64  `json:"id"`
	Resource string `json:"resource"`
	// Title mirrors the resource's title field for listing and search.
	Title  string            `json:"title"`
	Rank   string            `json:"rank"`
	Fields map[string]string `json:"fields"`

	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Field returns a field value ("" when unset).
func (r Record) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// FieldErrors maps a field name to a human-readable validation message.
// It is returned by the store when a write is rejected and is the payload
// handed to the duplicate workflow's error callback.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type Event struct {
	ID       string    `json:"id"`
	TS       time.Time `json:"ts"`
	ActorID  string    `json:"actorId"`
	Type     string    `json:"type"`
	Resource string    `json:"resource"`
	RecordID int64     `json:"recordId"`
	Payload  any       `json:"payload"`
}
