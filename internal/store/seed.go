package store

import (
	"context"
	"fmt"
)

type seedRow struct {
	resource string
	fields   map[string]string
}

var demoContent = []seedRow{
	{"tags", map[string]string{"name": "Branding", "slug": "branding"}},
	{"tags", map[string]string{"name": "Packaging", "slug": "packaging"}},
	{"tags", map[string]string{"name": "Motion", "slug": "motion"}},
	{"brands", map[string]string{"name": "Northwind Coffee", "slug": "northwind-coffee", "website": "https://northwind.example.com", "featured": "true"}},
	{"brands", map[string]string{"name": "Halcyon Labs", "slug": "halcyon-labs"}},
	{"team-members", map[string]string{"name": "Ada Park", "role": "Creative director", "email": "ada@example.com"}},
	{"team-members", map[string]string{"name": "Tomás Reyes", "role": "Motion designer"}},
	{"art-packages", map[string]string{"name": "Logo refresh", "price": "150000", "description": "Three concepts, two revision rounds."}},
	{"testimonials", map[string]string{"author": "J. Okafor", "company": "Halcyon Labs", "quote": "They nailed the brief on the first pass."}},
	{"posts", map[string]string{"title": "Designing for shelf impact", "slug": "designing-for-shelf-impact", "body": "# Shelf impact\n\nPackaging has **three seconds** to make its case.", "published": "true"}},
	{"business-packages", map[string]string{"name": "Starter", "price": "490000", "currency": "USD", "features": "- Logo\n- Palette\n- Type system"}},
	{"theme-colors", map[string]string{"name": "Ink", "hex": "#1b1f23", "active": "true"}},
	{"theme-colors", map[string]string{"name": "Paper", "hex": "#f6f1e7"}},
}

// Seed inserts demo content. It is meant for fresh workspaces.
func (s Store) Seed(ctx context.Context, actorID string) (int, error) {
	n := 0
	for _, row := range demoContent {
		if _, err := s.CreateRecord(ctx, actorID, row.resource, row.fields); err != nil {
			return n, fmt.Errorf("seed %s: %w", row.resource, err)
		}
		n++
	}
	return n, nil
}
