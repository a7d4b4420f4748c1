package model

import "strings"

var catalog = []Resource{
	{
		Name:       "brands",
		Label:      "Brands",
		TitleField: "name",
		Fields: []FieldDef{
			{Name: "name", Label: "Name", Kind: FieldText, Rules: "required,max=80", CopySuffix: true},
			{Name: "slug", Label: "Slug", Kind: FieldText, Rules: "required,max=90", Unique: true},
			{Name: "website", Label: "Website", Kind: FieldURL, Rules: "omitempty,url"},
			{Name: "summary", Label: "Summary", Kind: FieldMarkdown, Rules: "max=2000"},
			{Name: "featured", Label: "Featured", Kind: FieldBool, Rules: "omitempty,boolean", ResetOnCopy: true},
		},
	},
	{
		Name:       "team-members",
		Label:      "Team members",
		TitleField: "name",
		Fields: []FieldDef{
			{Name: "name", Label: "Name", Kind: FieldText, Rules: "required,max=80", CopySuffix: true},
			{Name: "role", Label: "Role", Kind: FieldText, Rules: "required,max=80"},
			{Name: "email", Label: "Email", Kind: FieldEmail, Rules: "omitempty,email", ResetOnCopy: true},
			{Name: "bio", Label: "Bio", Kind: FieldMarkdown, Rules: "max=2000"},
		},
	},
	{
		Name:       "tags",
		Label:      "Tags",
		TitleField: "name",
		Fields: []FieldDef{
			{Name: "name", Label: "Name", Kind: FieldText, Rules: "required,max=60", CopySuffix: true},
			{Name: "slug", Label: "Slug", Kind: FieldText, Rules: "required,max=70", Unique: true},
		},
	},
	{
		Name:       "art-packages",
		Label:      "Art packages",
		TitleField: "name",
		Fields: []FieldDef{
			{Name: "name", Label: "Name", Kind: FieldText, Rules: "required,max=80", CopySuffix: true},
			{Name: "price", Label: "Price (cents)", Kind: FieldMoney, Rules: "required,number"},
			{Name: "description", Label: "Description", Kind: FieldMarkdown, Rules: "max=4000"},
		},
	},
	{
		Name:       "testimonials",
		Label:      "Testimonials",
		TitleField: "author",
		Fields: []FieldDef{
			{Name: "author", Label: "Author", Kind: FieldText, Rules: "required,max=80", CopySuffix: true},
			{Name: "company", Label: "Company", Kind: FieldText, Rules: "max=80"},
			{Name: "quote", Label: "Quote", Kind: FieldMarkdown, Rules: "required,max=1000"},
		},
	},
	{
		Name:       "posts",
		Label:      "Posts",
		TitleField: "title",
		Fields: []FieldDef{
			{Name: "title", Label: "Title", Kind: FieldText, Rules: "required,max=120", CopySuffix: true},
			{Name: "slug", Label: "Slug", Kind: FieldText, Rules: "required,max=130", Unique: true},
			{Name: "body", Label: "Body", Kind: FieldMarkdown, Rules: "max=20000"},
			{Name: "published", Label: "Published", Kind: FieldBool, Rules: "omitempty,boolean", ResetOnCopy: true},
		},
	},
	{
		Name:       "business-packages",
		Label:      "Business packages",
		TitleField: "name",
		Fields: []FieldDef{
			{Name: "name", Label: "Name", Kind: FieldText, Rules: "required,max=80", CopySuffix: true},
			{Name: "price", Label: "Price (cents)", Kind: FieldMoney, Rules: "required,number"},
			{Name: "currency", Label: "Currency", Kind: FieldText, Rules: "omitempty,iso4217"},
			{Name: "features", Label: "Features", Kind: FieldMarkdown, Rules: "max=4000"},
		},
	},
	{
		Name:       "theme-colors",
		Label:      "Theme colors",
		TitleField: "name",
		Fields: []FieldDef{
			{Name: "name", Label: "Name", Kind: FieldText, Rules: "required,max=40", CopySuffix: true},
			{Name: "hex", Label: "Hex", Kind: FieldColor, Rules: "required,hexcolor"},
			{Name: "active", Label: "Active", Kind: FieldBool, Rules: "omitempty,boolean", ResetOnCopy: true},
		},
	},
}

// Resources returns the built-in resource catalog in display order.
func Resources() []Resource {
	out := make([]Resource, len(catalog))
	copy(out, catalog)
	return out
}

func FindResource(name string) (Resource, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, r := range catalog {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}
