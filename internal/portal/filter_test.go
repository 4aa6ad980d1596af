package portal

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/totegamma/diamond-portal"
)

var manage = FilterOptions{OwnerScoped: true}

func TestFilterEmptyKeyword(t *testing.T) {
	records := []diamond.CollectionRecord{{ID: "c1", OwnerID: "u1", Name: "anything"}}

	got := FilterRecords(records, "", "u1", manage)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %v", got)
	}
}

func TestFilterExactLink(t *testing.T) {
	records := []diamond.CollectionRecord{
		{ID: "c0", OwnerID: "u1", Name: "unrelated", Link: "https://example.org/other"},
		{ID: "c1", OwnerID: "u1", Name: "target", Link: "https://example.org/c1"},
	}

	got := FilterRecords(records, "HTTPS://Example.org/C1", "u1", manage)
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("expected c1, got %+v", got)
	}

	got = FilterRecords(records, "https://example.org/c1", "u2", manage)
	if len(got) != 0 {
		t.Fatalf("expected no match for another user, got %+v", got)
	}
}

func TestFilterExactLinkReturnsFirstOnly(t *testing.T) {
	records := []diamond.CollectionRecord{
		{ID: "c1", OwnerID: "u1", Link: "https://example.org/x"},
		{ID: "c2", OwnerID: "u1", Link: "https://example.org/x"},
	}

	got := FilterRecords(records, "https://example.org/x", "u1", manage)
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("expected first match only, got %+v", got)
	}
}

func TestFilterLinkQueryIsNotSubstring(t *testing.T) {
	records := []diamond.CollectionRecord{
		{ID: "c1", OwnerID: "u1", Link: "https://example.org/c1/deeper"},
	}

	if got := FilterRecords(records, "https://example.org/c1", "u1", manage); len(got) != 0 {
		t.Fatalf("link queries must match exactly, got %+v", got)
	}
}

func TestFilterSubstringOwnership(t *testing.T) {
	records := []diamond.CollectionRecord{
		{OwnerID: "U", Name: "Foo Bar"},
		{OwnerID: "V", Name: "Foobar"},
	}

	got := FilterRecords(records, "foo", "U", manage)
	if len(got) != 1 || got[0].Name != "Foo Bar" {
		t.Fatalf("expected only the first record, got %+v", got)
	}

	got = FilterRecords(records, "foo", "", FilterOptions{})
	if len(got) != 2 {
		t.Fatalf("search mode must ignore ownership, got %+v", got)
	}
}

func TestFilterOwnerScopedWithoutUser(t *testing.T) {
	records := []diamond.CollectionRecord{
		{ID: "c1", Name: "foo", Link: "https://example.org/c1"},
	}

	if got := FilterRecords(records, "foo", "", manage); len(got) != 0 {
		t.Fatalf("expected nothing without a user, got %+v", got)
	}
	if got := FilterRecords(records, "https://example.org/c1", "", manage); len(got) != 0 {
		t.Fatalf("expected nothing without a user, got %+v", got)
	}
}

func TestFilterSearchesExtraFields(t *testing.T) {
	records := []diamond.CollectionRecord{
		{ID: "c1", OwnerID: "u1", Extra: map[string]any{"institution": "Tokyo Lab", "size": 3}},
	}

	if got := FilterRecords(records, "tokyo", "u1", manage); len(got) != 1 {
		t.Fatalf("expected extra field match, got %+v", got)
	}
	if got := FilterRecords(records, "3", "u1", manage); len(got) != 0 {
		t.Fatalf("non-string extras must not match, got %+v", got)
	}
}

func genRecord() *rapid.Generator[diamond.CollectionRecord] {
	return rapid.Custom(func(t *rapid.T) diamond.CollectionRecord {
		return diamond.CollectionRecord{
			ID:          rapid.StringMatching(`c[0-9]{1,2}`).Draw(t, "id"),
			OwnerID:     rapid.SampledFrom([]string{"u1", "u2", ""}).Draw(t, "owner"),
			Name:        rapid.StringMatching(`[A-Za-z ]{0,10}`).Draw(t, "name"),
			Description: rapid.StringMatching(`[A-Za-z ]{0,10}`).Draw(t, "description"),
			Link:        rapid.SampledFrom([]string{"", "https://a.example/1", "HTTP://B.example/2"}).Draw(t, "link"),
		}
	})
}

func TestFilterProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		records := rapid.SliceOfN(genRecord(), 0, 20).Draw(rt, "records")
		user := rapid.SampledFrom([]string{"u1", "u2"}).Draw(rt, "user")
		scoped := rapid.Bool().Draw(rt, "scoped")
		opts := FilterOptions{OwnerScoped: scoped}

		if got := FilterRecords(records, "", user, opts); len(got) != 0 {
			rt.Fatalf("empty keyword matched %d records", len(got))
		}

		keyword := rapid.OneOf(
			rapid.StringMatching(`[A-Za-z]{1,3}`),
			rapid.SampledFrom([]string{"https://a.example/1", "http://b.example/2"}),
		).Draw(rt, "keyword")

		got := FilterRecords(records, keyword, user, opts)
		if diamond.IsLinkQuery(keyword) && len(got) > 1 {
			rt.Fatalf("link query returned %d records", len(got))
		}

		for _, rec := range got {
			if scoped && rec.OwnerID != user {
				rt.Fatalf("record of %q leaked to %q", rec.OwnerID, user)
			}
			if diamond.IsLinkQuery(keyword) {
				if !strings.EqualFold(rec.Link, keyword) {
					rt.Fatalf("link %q does not equal %q", rec.Link, keyword)
				}
				continue
			}
			found := false
			for _, v := range rec.StringValues() {
				if strings.Contains(strings.ToLower(v), strings.ToLower(keyword)) {
					found = true
				}
			}
			if !found {
				rt.Fatalf("record %+v does not contain %q", rec, keyword)
			}
		}

		// matches keep registry order
		last := -1
		for _, rec := range got {
			idx := -1
			for i := last + 1; i < len(records); i++ {
				if records[i].ID == rec.ID && records[i].Name == rec.Name && records[i].OwnerID == rec.OwnerID {
					idx = i
					break
				}
			}
			if idx < 0 {
				rt.Fatalf("matches out of registry order")
			}
			last = idx
		}
	})
}
