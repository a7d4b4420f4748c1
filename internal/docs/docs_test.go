package docs

import (
	"strings"
	"testing"
)

func TestTopics(t *testing.T) {
	t.Parallel()

	got := strings.Join(Topics(), ",")
	if got != "cli,resources,workflow" {
		t.Fatalf("Topics() = %q", got)
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	body, ok := Get(" Workflow ")
	if !ok {
		t.Fatalf("expected workflow topic")
	}
	if !strings.HasPrefix(body, "# Duplicating a record") {
		t.Fatalf("unexpected body: %q", body[:40])
	}
	for _, topic := range []string{"", "nope", "../docs", "content/cli"} {
		if _, ok := Get(topic); ok {
			t.Fatalf("Get(%q) should fail", topic)
		}
	}
}
