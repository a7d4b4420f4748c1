// Package routes is the single table of named admin routes. The web server
// registers handlers from it and the duplicate workflow resolves its
// endpoints through it, so neither side builds paths by hand.
package routes

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"atelier/internal/model"
)

const Prefix = "/admin"

type Action string

const (
	Index     Action = "index"
	New       Action = "create"
	Store     Action = "store"
	Edit      Action = "edit"
	Update    Action = "update"
	Destroy   Action = "destroy"
	Duplicate Action = "duplicate"
	Move      Action = "move"
)

type Route struct {
	Name     string `json:"name"`
	Method   string `json:"method"`
	Resource string `json:"resource"`
	Action   Action `json:"action"`
	// Path may contain an "{id}" placeholder.
	Path string `json:"path"`
}

// URL fills the {id} placeholder.
func (r Route) URL(id int64) string {
	return strings.ReplaceAll(r.Path, "{id}", strconv.FormatInt(id, 10))
}

func (r Route) HasID() bool { return strings.Contains(r.Path, "{id}") }

var actionTable = []struct {
	action Action
	method string
	suffix string
}{
	{Index, "GET", ""},
	{New, "GET", "/new"},
	{Store, "POST", ""},
	{Edit, "GET", "/{id}/edit"},
	{Update, "POST", "/{id}"},
	{Destroy, "DELETE", "/{id}"},
	{Duplicate, "POST", "/{id}/duplicate"},
	{Move, "POST", "/{id}/move"},
}

func Name(resource string, a Action) string { return resource + "." + string(a) }

// For returns every named route of a resource.
func For(resource string) []Route {
	out := make([]Route, 0, len(actionTable))
	for _, a := range actionTable {
		out = append(out, Route{
			Name:     Name(resource, a.action),
			Method:   a.method,
			Resource: resource,
			Action:   a.action,
			Path:     Prefix + "/" + resource + a.suffix,
		})
	}
	return out
}

// All returns the routes of every catalog resource.
func All() []Route {
	var out []Route
	for _, r := range model.Resources() {
		out = append(out, For(r.Name)...)
	}
	return out
}

// Find looks up a route by name (e.g. "tags.edit").
func Find(name string) (Route, bool) {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return Route{}, false
	}
	if _, ok := model.FindResource(name[:i]); !ok {
		return Route{}, false
	}
	for _, r := range For(name[:i]) {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// URL resolves a named route. id is ignored for routes without an {id}.
func URL(name string, id int64) (string, error) {
	r, ok := Find(name)
	if !ok {
		return "", fmt.Errorf("unknown route %q", name)
	}
	return r.URL(id), nil
}

// ListURL builds the index URL with optional search and page parameters.
func ListURL(resource, query string, page int) string {
	u := Prefix + "/" + resource
	v := url.Values{}
	if strings.TrimSpace(query) != "" {
		v.Set("q", strings.TrimSpace(query))
	}
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}
	if enc := v.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}
