package domain

import "testing"

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain numeric id", "123", "123"},
		{"leading zeros stripped", "000123", "123"},
		{"all zeros collapse to zero", "0000", "0"},
		{"url with slug", "https://example.com/adv/000123_cozy-flat-centre/", "123"},
		{"url bare id", "https://example.com/adv/123/", "123"},
		{"url without trailing slash", "https://example.com/adv/123", "123"},
		{"digits in earlier segment", "https://example.com/adv/456/details", "456"},
		{"no digits anywhere", "https://example.com/adv/about/", ""},
		{"empty input", "", ""},
		{"id embedded in slug", "987654_luxury-penthouse", "987654"},
		{"query string ignored", "https://example.com/adv/42?utm_source=feed", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeID(tt.input); got != tt.want {
				t.Errorf("NormalizeID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeIDSlugAndBareFormAgree(t *testing.T) {
	slugForm := NormalizeID("https://example.com/adv/000123_title-slug/")
	bareForm := NormalizeID("https://example.com/adv/123/")
	if slugForm != bareForm {
		t.Errorf("slug form gave %q, bare form gave %q, expected identical ids", slugForm, bareForm)
	}
}

func TestFilterKey(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		want     string
	}{
		{
			"without district",
			Criteria{PropertyType: PropertyTypeApartment, PriceMax: 1500},
			"pt-apartment_pmax-1500",
		},
		{
			"with district",
			Criteria{PropertyType: PropertyTypeHouse, PriceMax: 900, District: "Old Town"},
			"pt-house_pmax-900_d-old-town",
		},
		{
			"district with unsafe characters",
			Criteria{PropertyType: PropertyTypeCommercial, PriceMax: 5000, District: "Süd/West!"},
			"pt-commercial_pmax-5000_d-s-d-west",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.criteria.FilterKey(); got != tt.want {
				t.Errorf("FilterKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilterKeyDistinguishesSearches(t *testing.T) {
	a := Criteria{PropertyType: PropertyTypeApartment, PriceMax: 1500}
	b := Criteria{PropertyType: PropertyTypeApartment, PriceMax: 1600}
	if a.FilterKey() == b.FilterKey() {
		t.Errorf("different criteria produced the same filter key %q", a.FilterKey())
	}
}

func TestSnapshotByIDNormalizesAndDeduplicates(t *testing.T) {
	snap := Snapshot{Listings: []Listing{
		{ID: "000123", Title: "first"},
		{ID: "123", Title: "duplicate, must lose"},
		{ID: "", URL: "https://example.com/adv/456_slug/", Title: "from url"},
	}}

	index := snap.ByID()
	if len(index) != 2 {
		t.Fatalf("ByID() returned %d entries, want 2", len(index))
	}
	if index["123"].Title != "first" {
		t.Errorf("duplicate id: got %q, want the first record to win", index["123"].Title)
	}
	if _, ok := index["456"]; !ok {
		t.Errorf("listing with empty ID was not indexed by its URL-derived id")
	}
}

func TestSnapshotIDSet(t *testing.T) {
	snap := Snapshot{Listings: []Listing{{ID: "1"}, {ID: "002"}}}
	ids := snap.IDSet()
	for _, want := range []string{"1", "2"} {
		if _, ok := ids[want]; !ok {
			t.Errorf("IDSet() is missing %q", want)
		}
	}
}
