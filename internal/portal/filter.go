package portal

import (
	"strings"

	"github.com/totegamma/diamond-portal"
)

type FilterOptions struct {
	// OwnerScoped restricts matches to records owned by the current user.
	OwnerScoped bool
}

// FilterRecords selects the local records matching keyword.
//
// An empty keyword matches nothing. A keyword starting with http:// or
// https:// is a link query and yields at most the first record whose link
// equals it, ignoring case. Any other keyword yields every record with a
// string field containing it, ignoring case. When owner scoped, only records
// of userID qualify, and without a userID nothing does.
func FilterRecords(records []diamond.CollectionRecord, keyword, userID string, opts FilterOptions) []diamond.CollectionRecord {
	matches := []diamond.CollectionRecord{}
	if keyword == "" {
		return matches
	}
	if opts.OwnerScoped && userID == "" {
		return matches
	}

	owned := func(rec diamond.CollectionRecord) bool {
		return !opts.OwnerScoped || rec.OwnerID == userID
	}

	normalized := diamond.NormalizeKeyword(keyword)

	if diamond.IsLinkQuery(keyword) {
		for _, rec := range records {
			if owned(rec) && strings.EqualFold(rec.Link, normalized) {
				return append(matches, rec)
			}
		}
		return matches
	}

	for _, rec := range records {
		if !owned(rec) {
			continue
		}
		for _, value := range rec.StringValues() {
			if strings.Contains(diamond.NormalizeKeyword(value), normalized) {
				matches = append(matches, rec)
				break
			}
		}
	}
	return matches
}
