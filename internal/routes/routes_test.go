package routes

import "testing"

func TestURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		id   int64
		want string
	}{
		{name: "tags.edit", id: 7, want: "/admin/tags/7/edit"},
		{name: "tags.duplicate", id: 3, want: "/admin/tags/3/duplicate"},
		{name: "team-members.destroy", id: 12, want: "/admin/team-members/12"},
		{name: "posts.index", want: "/admin/posts"},
	}
	for _, tt := range tests {
		got, err := URL(tt.name, tt.id)
		if err != nil {
			t.Fatalf("URL(%q): %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("URL(%q, %d) = %q, want %q", tt.name, tt.id, got, tt.want)
		}
	}
}

func TestFind_Unknown(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "tags", "widgets.edit", "tags.explode", ".edit"} {
		if _, ok := Find(name); ok {
			t.Fatalf("expected %q to be unknown", name)
		}
	}
}

func TestFind_Method(t *testing.T) {
	t.Parallel()

	r, ok := Find("brands.destroy")
	if !ok || r.Method != "DELETE" || !r.HasID() {
		t.Fatalf("unexpected route: %#v ok=%v", r, ok)
	}
}

func TestListURL(t *testing.T) {
	t.Parallel()

	if got := ListURL("tags", "", 1); got != "/admin/tags" {
		t.Fatalf("got %q", got)
	}
	if got := ListURL("tags", " print ", 3); got != "/admin/tags?page=3&q=print" {
		t.Fatalf("got %q", got)
	}
}
