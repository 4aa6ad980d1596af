package diamond

const (
	ScopeAll               string = "all"
	ScopeHideNoPermissions string = "hide-no-permissions"
)

// CollectionRecord is a user-created registry entry that points at a remote collection.
type CollectionRecord struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Link        string `json:"link"`

	// Extra holds fields the registry does not model. They are kept so that
	// a record written by a client is read back unchanged.
	Extra map[string]any `json:"-"`

	// absent has bit i set when recordFields[i] was missing from the decoded object.
	absent uint8
}

// Endpoint is a collection as returned by the transfer service endpoint search.
// Registry records are converted to the same shape before they reach a selection callback.
type Endpoint map[string]any

type SearchQuery struct {
	FilterFullText      string `json:"filter_fulltext"`
	FilterOwnerID       string `json:"filter_owner_id,omitempty"`
	FilterScope         string `json:"filter_scope"`
	FilterNonFunctional bool   `json:"filter_non_functional"`
	Limit               int    `json:"limit"`
}

// FileEntry is one item of a collection directory listing.
type FileEntry struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Size         int64   `json:"size"`
	LastModified string  `json:"last_modified,omitempty"`
	Permissions  string  `json:"permissions,omitempty"`
	User         string  `json:"user,omitempty"`
	Group        string  `json:"group,omitempty"`
	LinkTarget   *string `json:"link_target,omitempty"`
}

type User struct {
	Sub               string `json:"sub"`
	Name              string `json:"name,omitempty"`
	Email             string `json:"email,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// SearchResponse is the enveloped result of an endpoint search.
type SearchResponse struct {
	Data []Endpoint `json:"DATA"`
}

// DirectoryListing is the enveloped result of a directory listing.
type DirectoryListing struct {
	Path string      `json:"path,omitempty"`
	Data []FileEntry `json:"DATA"`
}
