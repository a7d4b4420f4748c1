package model

import "testing"

func TestFindResource(t *testing.T) {
	t.Parallel()

	r, ok := FindResource(" Tags ")
	if !ok {
		t.Fatalf("expected tags resource")
	}
	if r.TitleField != "name" {
		t.Fatalf("expected title field name, got %q", r.TitleField)
	}
	if _, ok := r.Field(r.TitleField); !ok {
		t.Fatalf("title field missing from fields")
	}
	if _, ok := FindResource("widgets"); ok {
		t.Fatalf("expected unknown resource")
	}
}

func TestCatalog_TitleFieldsExist(t *testing.T) {
	t.Parallel()

	for _, r := range Resources() {
		if _, ok := r.Field(r.TitleField); !ok {
			t.Fatalf("%s: title field %q not defined", r.Name, r.TitleField)
		}
	}
}

func TestResourceSingular(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"tags":              "tag",
		"team-members":      "team member",
		"business-packages": "business package",
		"brands":            "brand",
	}
	for name, want := range tests {
		r, _ := FindResource(name)
		if got := r.Singular(); got != want {
			t.Fatalf("%s: got %q want %q", name, got, want)
		}
	}
}

func TestFieldErrors_ErrorIsStable(t *testing.T) {
	t.Parallel()

	err := FieldErrors{"slug": "is required", "name": "is too long"}
	want := "validation failed: name: is too long; slug: is required"
	if err.Error() != want {
		t.Fatalf("got %q want %q", err.Error(), want)
	}
}
