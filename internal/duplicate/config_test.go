package duplicate

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"atelier/internal/logging"
	"atelier/internal/model"
	"atelier/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_DerivesRoutesFromResource(t *testing.T) {
	cfg, err := NewConfig("theme-colors")
	require.NoError(t, err)

	ep := cfg.DuplicateEndpoint(4)
	assert.Equal(t, Endpoint{Name: "theme-colors.duplicate", Method: "POST", Path: "/admin/theme-colors/4/duplicate", Resource: "theme-colors", ID: 4}, ep)
	assert.Equal(t, "/admin/theme-colors/12/edit", cfg.EditLocation(12).URL)
	assert.Equal(t, "theme-colors.destroy", cfg.Routes.Destroy(12).Name)
}

func TestNewConfig_UnknownResource(t *testing.T) {
	_, err := NewConfig("widgets")
	assert.Error(t, err)
}

func TestNewConfig_DefaultSuccessReloads(t *testing.T) {
	rec := &Recorder{}
	cfg, err := NewConfig("tags", WithNavigator(rec))
	require.NoError(t, err)

	cfg.OnSuccess(3)
	assert.Equal(t, []Effect{{Kind: EffectReload}}, rec.Drain())
	assert.Empty(t, rec.Drain())
}

func TestNewConfig_DefaultErrorLogs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New("debug", &buf, true)
	require.NoError(t, err)

	cfg, err := NewConfig("tags", WithLogger(logger))
	require.NoError(t, err)
	cfg.OnError(model.FieldErrors{"name": "Name is required"})
	cfg.OnUndoError(errors.New("gone"))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, `"duplicate failed"`)
	assert.Contains(t, out, `"name":"Name is required"`)
	assert.Contains(t, out, `"resource":"tags"`)
	assert.Contains(t, out, `"WARN"`)
}

func TestNewConfig_CustomRouteTable(t *testing.T) {
	table := RouteTable{
		"widgets": {
			Duplicate: func(id int64) Endpoint { return Endpoint{Name: "w.copy", Resource: "widgets", ID: id} },
			Destroy:   func(id int64) Endpoint { return Endpoint{Name: "w.rm", Resource: "widgets", ID: id} },
			Edit:      func(id int64) Location { return Location{Resource: "widgets", ID: id, URL: "/w/edit"} },
		},
		"broken": {},
	}
	cfg, err := NewConfig("widgets", WithRoutes(table))
	require.NoError(t, err)
	assert.Equal(t, "w.copy", cfg.DuplicateEndpoint(1).Name)

	_, err = NewConfig("broken", WithRoutes(table))
	assert.Error(t, err)
}

func TestConventionalRoutes_CoversCatalog(t *testing.T) {
	table := ConventionalRoutes()
	for _, res := range model.Resources() {
		r, err := table.Lookup(res.Name)
		require.NoError(t, err, res.Name)
		assert.Equal(t, res.Name+".duplicate", r.Duplicate(1).Name)
		assert.Equal(t, res.Name+".edit", r.Edit(1).Route)
	}
}

func TestStoreBackend_DuplicateAndUndo(t *testing.T) {
	s := store.Store{Dir: t.TempDir()}
	ctx := context.Background()
	src, err := s.CreateRecord(ctx, "act-test", "tags", map[string]string{"name": "Print", "slug": "print"})
	require.NoError(t, err)

	c, cb := newTestController(t, "tags", StoreBackend{Store: s, ActorID: "act-test"})
	require.NoError(t, c.RequestDuplicate(Request{ID: src.ID, Title: src.Title}))
	assert.Equal(t, "tags", c.Snapshot().Request.Resource)

	done, err := c.ConfirmDuplicate(ctx)
	require.NoError(t, err)
	waitDone(t, done)
	require.Equal(t, Success, c.State())
	dupID := c.Snapshot().DuplicatedID
	copyRec, err := s.GetRecord(ctx, "tags", dupID)
	require.NoError(t, err)
	assert.Equal(t, "Print (Copy)", copyRec.Title)

	require.NoError(t, c.SetUndoRequested(true))
	done, err = c.ConfirmUndoDelete(ctx)
	require.NoError(t, err)
	waitDone(t, done)
	assert.Equal(t, Idle, c.State())
	assert.Empty(t, cb.undoErrs)

	_, err = s.GetRecord(ctx, "tags", dupID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStoreBackend_ValidationFailure(t *testing.T) {
	s := store.Store{Dir: t.TempDir()}
	ctx := context.Background()
	src, err := s.CreateRecord(ctx, "act-test", "theme-colors", map[string]string{"name": "Thirty-eight characters of color name", "hex": "#000000"})
	require.NoError(t, err)

	c, cb := newTestController(t, "theme-colors", StoreBackend{Store: s, ActorID: "act-test"})
	require.NoError(t, c.RequestDuplicate(Request{ID: src.ID, Resource: "theme-colors"}))
	done, err := c.ConfirmDuplicate(ctx)
	require.NoError(t, err)
	waitDone(t, done)

	assert.Equal(t, Idle, c.State())
	require.Len(t, cb.failures, 1)
	assert.Equal(t, model.FieldErrors{"name": "Name must be at most 40 characters"}, cb.failures[0])
}
