package diamond

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/totegamma/diamond-portal/internal/utils"
)

var recordFields = []string{"id", "owner_id", "name", "description", "link"}

// MarshalJSON writes the modelled fields first, in a fixed order, followed by
// the extra fields sorted by key. A modelled field the decoded object did not
// carry stays out unless it was set since.
func (r CollectionRecord) MarshalJSON() ([]byte, error) {
	obj := make(utils.OrderedKVMap[any], len(recordFields)+len(r.Extra))
	for i, value := range r.modelled() {
		if value == "" && r.absent&(1<<i) != 0 {
			continue
		}
		obj.Set(recordFields[i], value, int64(i))
	}
	// a modelled key carried with a non-string value lives in Extra and wins
	for k, v := range r.Extra {
		obj.Set(k, v, int64(len(recordFields)))
	}
	return json.Marshal(obj)
}

func (r *CollectionRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return err
	}
	if obj == nil {
		return fmt.Errorf("collection record must be a JSON object")
	}

	*r = CollectionRecord{}
	for i, key := range recordFields {
		raw, ok := obj[key]
		if !ok {
			r.absent |= 1 << i
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		switch key {
		case "id":
			r.ID = s
		case "owner_id":
			r.OwnerID = s
		case "name":
			r.Name = s
		case "description":
			r.Description = s
		case "link":
			r.Link = s
		}
		delete(obj, key)
	}

	if len(obj) > 0 {
		r.Extra = obj
	}
	return nil
}

func (r CollectionRecord) modelled() []string {
	return []string{r.ID, r.OwnerID, r.Name, r.Description, r.Link}
}

// AbsentFields lists the modelled fields the decoded object did not carry.
func (r CollectionRecord) AbsentFields() []string {
	var keys []string
	for i, key := range recordFields {
		if r.absent&(1<<i) != 0 {
			keys = append(keys, key)
		}
	}
	return keys
}

// SetAbsentFields restores what AbsentFields reported. Unknown keys are ignored.
func (r *CollectionRecord) SetAbsentFields(keys []string) {
	r.absent = 0
	for _, key := range keys {
		for i, field := range recordFields {
			if field == key {
				r.absent |= 1 << i
			}
		}
	}
}

// Addressable reports whether the record carries both identifiers that
// ownership scoped queries depend on.
func (r CollectionRecord) Addressable() bool {
	return r.ID != "" && r.OwnerID != ""
}

// StringValues returns every string-valued field of the record, extras included.
func (r CollectionRecord) StringValues() []string {
	values := r.modelled()
	for _, v := range r.Extra {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}
	return values
}

// Endpoint converts the record into the shape selection callbacks receive.
func (r CollectionRecord) Endpoint() Endpoint {
	ep := Endpoint{}
	maps.Copy(ep, r.Extra)
	ep["id"] = r.ID
	ep["owner_id"] = r.OwnerID
	ep["name"] = r.Name
	ep["description"] = r.Description
	ep["link"] = r.Link
	return ep
}

func (e Endpoint) String(key string) string {
	v, ok := e[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (e Endpoint) ID() string { return e.String("id") }

func (e Endpoint) OwnerID() string { return e.String("owner_id") }

// DisplayName prefers display_name and falls back to name.
func (e Endpoint) DisplayName() string {
	if name := e.String("display_name"); name != "" {
		return name
	}
	return e.String("name")
}

func (e Endpoint) DefaultDirectory() string {
	return e.String("default_directory")
}
