package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"atelier/internal/web"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, stdin string, args ...string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

// testWorkspace isolates the user config and returns a fresh workspace dir.
func testWorkspace(t *testing.T) string {
	t.Helper()
	t.Setenv("ATELIER_CONFIG_DIR", t.TempDir())
	return t.TempDir()
}

func mustRun(t *testing.T, args ...string) map[string]any {
	t.Helper()
	stdout, stderr, err := runCLI(t, "", args...)
	require.NoError(t, err, "atelier %v\nstderr:\n%s\nstdout:\n%s", args, stderr, stdout)
	var env map[string]any
	require.NoError(t, json.Unmarshal(stdout, &env), "stdout:\n%s", stdout)
	require.Contains(t, env, "data")
	return env
}

func dataMap(env map[string]any) map[string]any {
	m, _ := env["data"].(map[string]any)
	return m
}

func idOf(env map[string]any) string {
	return fmt.Sprint(int64(dataMap(env)["id"].(float64)))
}

func titles(env map[string]any) []string {
	var out []string
	for _, r := range env["data"].([]any) {
		out = append(out, r.(map[string]any)["title"].(string))
	}
	return out
}

func TestInitSeedAndList(t *testing.T) {
	dir := testWorkspace(t)

	env := mustRun(t, "--dir", dir, "init", "--seed")
	assert.Equal(t, float64(13), dataMap(env)["seeded"])

	// Seeding again is a no-op.
	env = mustRun(t, "--dir", dir, "init", "--seed")
	assert.Equal(t, float64(0), dataMap(env)["seeded"])

	env = mustRun(t, "--dir", dir, "records", "list", "tags")
	assert.Equal(t, []string{"Branding", "Packaging", "Motion"}, titles(env))
	assert.Equal(t, float64(3), env["meta"].(map[string]any)["total"])

	env = mustRun(t, "--dir", dir, "records", "list", "business-packages")
	first := env["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "$4,900.00", first["display"].(map[string]any)["price"])
}

func TestRecordsCreateShowUpdateDelete(t *testing.T) {
	dir := testWorkspace(t)

	created := mustRun(t, "--dir", dir, "records", "create", "tags", "--set", "name=Print", "--set", "slug=print")
	id := idOf(created)

	shown := mustRun(t, "--dir", dir, "records", "show", "tags", id)
	assert.Equal(t, "Print", dataMap(shown)["title"])
	history := shown["meta"].(map[string]any)["history"].([]any)
	require.Len(t, history, 1)
	assert.Equal(t, "record.create", history[0].(map[string]any)["type"])

	updated := mustRun(t, "--dir", dir, "records", "update", "tags", id, "--set", "name=Prints")
	assert.Equal(t, "Prints", dataMap(updated)["title"])

	mustRun(t, "--dir", dir, "records", "delete", "tags", id)
	_, _, err := runCLI(t, "", "--dir", dir, "records", "show", "tags", id)
	assert.ErrorContains(t, err, "not found")
}

func TestRecordsCreate_ValidationErrors(t *testing.T) {
	dir := testWorkspace(t)

	stdout, _, err := runCLI(t, "", "--dir", dir, "records", "create", "tags", "--set", "name=Print")
	require.Error(t, err)
	var env map[string]any
	require.NoError(t, json.Unmarshal(stdout, &env))
	assert.Equal(t, "Slug is required", env["errors"].(map[string]any)["slug"])

	_, _, err = runCLI(t, "", "--dir", dir, "records", "create", "tags", "--set", "colour=red")
	assert.ErrorContains(t, err, `tags has no field "colour"`)

	_, _, err = runCLI(t, "", "--dir", dir, "records", "list", "widgets")
	assert.ErrorContains(t, err, `unknown resource "widgets"`)
}

func TestRecordsMove(t *testing.T) {
	dir := testWorkspace(t)
	a := idOf(mustRun(t, "--dir", dir, "records", "create", "tags", "--set", "name=A", "--set", "slug=a"))
	mustRun(t, "--dir", dir, "records", "create", "tags", "--set", "name=B", "--set", "slug=b")
	c := idOf(mustRun(t, "--dir", dir, "records", "create", "tags", "--set", "name=C", "--set", "slug=c"))

	mustRun(t, "--dir", dir, "records", "move", "tags", c, "--before", a)
	assert.Equal(t, []string{"C", "A", "B"}, titles(mustRun(t, "--dir", dir, "records", "list", "tags")))

	_, _, err := runCLI(t, "", "--dir", dir, "records", "move", "tags", c)
	assert.ErrorContains(t, err, "exactly one of --before or --after")
}

func TestRecordsDuplicate_Yes(t *testing.T) {
	dir := testWorkspace(t)
	src := idOf(mustRun(t, "--dir", dir, "records", "create", "tags", "--set", "name=Print", "--set", "slug=print"))
	mustRun(t, "--dir", dir, "records", "create", "tags", "--set", "name=Web", "--set", "slug=web")

	env := mustRun(t, "--dir", dir, "records", "duplicate", "tags", src, "--yes")
	d := dataMap(env)
	newID := idOf(env)
	assert.NotEqual(t, src, newID)
	assert.Equal(t, false, d["undone"])
	assert.Equal(t, "/admin/tags/"+newID+"/edit", d["edit"].(map[string]any)["url"])

	assert.Equal(t, []string{"Print", "Print (Copy)", "Web"}, titles(mustRun(t, "--dir", dir, "records", "list", "tags")))
}

func TestRecordsDuplicate_Undo(t *testing.T) {
	dir := testWorkspace(t)
	src := idOf(mustRun(t, "--dir", dir, "records", "create", "tags", "--set", "name=Print", "--set", "slug=print"))

	env := mustRun(t, "--dir", dir, "records", "duplicate", "tags", src, "--yes", "--undo")
	assert.Equal(t, true, dataMap(env)["undone"])
	assert.Equal(t, []string{"Print"}, titles(mustRun(t, "--dir", dir, "records", "list", "tags")))

	evs := mustRun(t, "--dir", dir, "events", "list", "--resource", "tags")
	var types []string
	for _, e := range evs["data"].([]any) {
		types = append(types, e.(map[string]any)["type"].(string))
	}
	assert.Equal(t, []string{"record.delete", "record.duplicate", "record.create"}, types)
}

func TestRecordsDuplicate_Prompt(t *testing.T) {
	dir := testWorkspace(t)
	src := idOf(mustRun(t, "--dir", dir, "records", "create", "tags", "--set", "name=Print", "--set", "slug=print"))

	_, stderr, err := runCLI(t, "n\n", "--dir", dir, "records", "duplicate", "tags", src)
	assert.ErrorIs(t, err, errAborted)
	assert.Contains(t, string(stderr), "Duplicate tag #"+src+" Print? [y/N]")
	assert.Equal(t, []string{"Print"}, titles(mustRun(t, "--dir", dir, "records", "list", "tags")))

	// Confirm the duplicate, then decline the undo.
	stdout, _, err := runCLI(t, "y\nn\n", "--dir", dir, "records", "duplicate", "tags", src, "--undo")
	require.NoError(t, err)
	var env map[string]any
	require.NoError(t, json.Unmarshal(stdout, &env))
	assert.Equal(t, false, dataMap(env)["undone"])
	assert.Len(t, titles(mustRun(t, "--dir", dir, "records", "list", "tags")), 2)
}

func TestRecordsDuplicate_PromptReadError(t *testing.T) {
	dir := testWorkspace(t)
	src := idOf(mustRun(t, "--dir", dir, "records", "create", "tags", "--set", "name=Print", "--set", "slug=print"))
	ttyGone := errors.New("tty gone")

	run := func(in io.Reader, args ...string) ([]byte, error) {
		cmd := NewRootCmd()
		var out bytes.Buffer
		cmd.SetIn(in)
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(args)
		return out.Bytes(), cmd.Execute()
	}

	_, err := run(iotest.ErrReader(ttyGone), "--dir", dir, "records", "duplicate", "tags", src)
	require.ErrorIs(t, err, ttyGone)
	assert.NotErrorIs(t, err, errAborted)
	assert.Equal(t, []string{"Print"}, titles(mustRun(t, "--dir", dir, "records", "list", "tags")))

	// The copy exists when the undo prompt fails; its id is still reported.
	stdout, err := run(io.MultiReader(strings.NewReader("y\n"), iotest.ErrReader(ttyGone)), "--dir", dir, "records", "duplicate", "tags", src, "--undo")
	require.ErrorIs(t, err, ttyGone)
	var env map[string]any
	require.NoError(t, json.Unmarshal(stdout, &env))
	assert.Equal(t, false, dataMap(env)["undone"])
	assert.Len(t, titles(mustRun(t, "--dir", dir, "records", "list", "tags")), 2)

	// EOF without a newline still counts as an answer.
	_, err = run(strings.NewReader("y"), "--dir", dir, "records", "duplicate", "tags", src)
	require.NoError(t, err)
}

func TestRecordsDuplicate_ValidationFailure(t *testing.T) {
	dir := testWorkspace(t)
	name := strings.Repeat("c", 37)
	src := idOf(mustRun(t, "--dir", dir, "records", "create", "theme-colors", "--set", "name="+name, "--set", "hex=#123456"))

	stdout, _, err := runCLI(t, "", "--dir", dir, "records", "duplicate", "theme-colors", src, "--yes")
	require.Error(t, err)
	var env map[string]any
	require.NoError(t, json.Unmarshal(stdout, &env))
	assert.Equal(t, "Name must be at most 40 characters", env["errors"].(map[string]any)["name"])
}

func TestRecordsDuplicate_Remote(t *testing.T) {
	dir := testWorkspace(t)
	src := idOf(mustRun(t, "--dir", dir, "records", "create", "tags", "--set", "name=Print", "--set", "slug=print"))

	srv, err := web.NewServer(web.ServerConfig{Addr: "127.0.0.1:0", Dir: dir})
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	env := mustRun(t, "--dir", dir, "records", "duplicate", "tags", src, "--yes", "--undo", "--remote", ts.URL)
	assert.Equal(t, true, dataMap(env)["undone"])

	_, _, err = runCLI(t, "", "--dir", dir, "records", "duplicate", "tags", "999", "--yes", "--remote", ts.URL)
	assert.Error(t, err)
}

func TestResourcesList_YAML(t *testing.T) {
	dir := testWorkspace(t)

	stdout, stderr, err := runCLI(t, "", "--dir", dir, "--format", "yaml", "resources", "list")
	require.NoError(t, err, string(stderr))
	out := string(stdout)
	assert.True(t, strings.HasPrefix(out, "data:\n"), out)
	assert.Contains(t, out, "tags.duplicate:")
	assert.Contains(t, out, "/admin/tags/{id}/duplicate")
}

func TestDocs(t *testing.T) {
	testWorkspace(t)

	env := mustRun(t, "docs")
	assert.Equal(t, []any{"cli", "resources", "workflow"}, dataMap(env)["topics"])

	stdout, _, err := runCLI(t, "", "docs", "workflow", "--raw")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(stdout), "# Duplicating a record"))

	_, _, err = runCLI(t, "", "docs", "nope")
	assert.ErrorContains(t, err, `unknown docs topic: "nope"`)
}
