package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zeebo/xxh3"

	"github.com/totegamma/diamond-portal"
)

// Snapshot is the full registry as read at one point in time.
type Snapshot struct {
	Records []diamond.CollectionRecord
	Version string
}

// AppendCondition constrains an append. The zero value appends unconditionally.
type AppendCondition struct {
	IfVersion string
	UniqueIDs bool
}

const (
	EventAppend = "append"
	EventDelete = "delete"
)

// RegistryEvent is published after the registry changed.
type RegistryEvent struct {
	Type    string                    `json:"type"`
	Record  *diamond.CollectionRecord `json:"record,omitempty"`
	ID      string                    `json:"id,omitempty"`
	OwnerID string                    `json:"owner_id,omitempty"`
	Version string                    `json:"version,omitempty"`
}

// VersionOf fingerprints a record sequence. Equal sequences always share a version.
func VersionOf(records []diamond.CollectionRecord) string {
	if records == nil {
		records = []diamond.CollectionRecord{}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxh3.Hash(b))
}

// DecodeRecords parses a persisted registry document.
func DecodeRecords(data []byte) ([]diamond.CollectionRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("registry document is not a JSON array")
	}

	var records []diamond.CollectionRecord
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []diamond.CollectionRecord{}
	}
	return records, nil
}

// EncodeRecords renders a registry document with a two space indent.
func EncodeRecords(records []diamond.CollectionRecord) ([]byte, error) {
	if records == nil {
		records = []diamond.CollectionRecord{}
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// CheckAppend evaluates cond against the current registry content.
func CheckAppend(current []diamond.CollectionRecord, rec diamond.CollectionRecord, cond AppendCondition) error {
	if cond.IfVersion != "" && cond.IfVersion != VersionOf(current) {
		return ConflictError{Reason: "registry changed since version " + cond.IfVersion}
	}
	if cond.UniqueIDs {
		for _, existing := range current {
			if existing.ID == rec.ID && existing.OwnerID == rec.OwnerID {
				return ConflictError{Reason: fmt.Sprintf("collection %s already registered by %s", rec.ID, rec.OwnerID)}
			}
		}
	}
	return nil
}

// RemoveRecords drops every record with the given id owned by ownerID.
func RemoveRecords(records []diamond.CollectionRecord, id, ownerID string) ([]diamond.CollectionRecord, int) {
	kept := make([]diamond.CollectionRecord, 0, len(records))
	removed := 0
	for _, rec := range records {
		if rec.ID == id && rec.OwnerID == ownerID {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	return kept, removed
}

// FilterOwned keeps the records owned by ownerID, preserving order.
func FilterOwned(records []diamond.CollectionRecord, ownerID string) []diamond.CollectionRecord {
	owned := make([]diamond.CollectionRecord, 0)
	for _, rec := range records {
		if rec.OwnerID == ownerID {
			owned = append(owned, rec)
		}
	}
	return owned
}
