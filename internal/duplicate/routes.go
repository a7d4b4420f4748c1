package duplicate

import (
	"fmt"

	"atelier/internal/model"
	"atelier/internal/routes"
)

// Endpoint is a resolved remote call target.
type Endpoint struct {
	Name     string
	Method   string
	Path     string
	Resource string
	ID       int64
}

// Routes resolves the endpoints the workflow needs for one resource.
type Routes struct {
	Duplicate func(id int64) Endpoint
	Destroy   func(id int64) Endpoint
	Edit      func(id int64) Location
}

func (r Routes) complete() bool {
	return r.Duplicate != nil && r.Destroy != nil && r.Edit != nil
}

// RouteTable maps a resource name to its workflow routes.
type RouteTable map[string]Routes

func (t RouteTable) Lookup(resource string) (Routes, error) {
	r, ok := t[resource]
	if !ok {
		return Routes{}, fmt.Errorf("no workflow routes for resource %q", resource)
	}
	if !r.complete() {
		return Routes{}, fmt.Errorf("incomplete workflow routes for resource %q", resource)
	}
	return r, nil
}

// ConventionalRoutes builds the table for every catalog resource from the
// named admin routes the web server registers.
func ConventionalRoutes() RouteTable {
	t := RouteTable{}
	for _, res := range model.Resources() {
		r, err := conventional(res.Name)
		if err != nil {
			// The catalog and the route table are built from the same list.
			panic(err)
		}
		t[res.Name] = r
	}
	return t
}

func conventional(resource string) (Routes, error) {
	dup, ok := routes.Find(routes.Name(resource, routes.Duplicate))
	if !ok {
		return Routes{}, fmt.Errorf("missing route %s", routes.Name(resource, routes.Duplicate))
	}
	destroy, ok := routes.Find(routes.Name(resource, routes.Destroy))
	if !ok {
		return Routes{}, fmt.Errorf("missing route %s", routes.Name(resource, routes.Destroy))
	}
	edit, ok := routes.Find(routes.Name(resource, routes.Edit))
	if !ok {
		return Routes{}, fmt.Errorf("missing route %s", routes.Name(resource, routes.Edit))
	}
	return Routes{
		Duplicate: endpointFor(dup),
		Destroy:   endpointFor(destroy),
		Edit: func(id int64) Location {
			return Location{Resource: resource, ID: id, Route: edit.Name, URL: edit.URL(id)}
		},
	}, nil
}

func endpointFor(r routes.Route) func(int64) Endpoint {
	return func(id int64) Endpoint {
		return Endpoint{
			Name:     r.Name,
			Method:   r.Method,
			Path:     r.URL(id),
			Resource: r.Resource,
			ID:       id,
		}
	}
}
