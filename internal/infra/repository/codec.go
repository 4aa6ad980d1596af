package repository

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/infra/database/models"
)

func recordToModel(rec diamond.CollectionRecord) (models.Collection, error) {
	extra := "{}"
	if len(rec.Extra) > 0 {
		b, err := json.Marshal(rec.Extra)
		if err != nil {
			return models.Collection{}, err
		}
		extra = string(b)
	}

	return models.Collection{
		ID:          rec.ID,
		OwnerID:     rec.OwnerID,
		Name:        rec.Name,
		Description: rec.Description,
		Link:        rec.Link,
		Extra:       extra,
		Absent:      strings.Join(rec.AbsentFields(), ","),
	}, nil
}

func modelToRecord(m models.Collection) (diamond.CollectionRecord, error) {
	rec := diamond.CollectionRecord{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Name:        m.Name,
		Description: m.Description,
		Link:        m.Link,
	}
	if m.Absent != "" {
		rec.SetAbsentFields(strings.Split(m.Absent, ","))
	}

	if m.Extra != "" && m.Extra != "{}" {
		dec := json.NewDecoder(bytes.NewReader([]byte(m.Extra)))
		dec.UseNumber()
		var extra map[string]any
		if err := dec.Decode(&extra); err != nil {
			return diamond.CollectionRecord{}, err
		}
		if len(extra) > 0 {
			rec.Extra = extra
		}
	}

	return rec, nil
}

func modelsToRecords(rows []models.Collection) ([]diamond.CollectionRecord, error) {
	records := make([]diamond.CollectionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := modelToRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func cloneRecords(records []diamond.CollectionRecord) []diamond.CollectionRecord {
	out := make([]diamond.CollectionRecord, len(records))
	copy(out, records)
	return out
}
