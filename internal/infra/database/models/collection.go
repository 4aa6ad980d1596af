package models

import (
	"time"
)

// Collection is one registry record. Seq keeps insertion order.
type Collection struct {
	Seq         int64     `json:"seq" gorm:"primaryKey;autoIncrement"`
	ID          string    `json:"id" gorm:"type:text;not null;default:'';index"`
	OwnerID     string    `json:"owner_id" gorm:"type:text;not null;default:'';index"`
	Name        string    `json:"name" gorm:"type:text;not null;default:''"`
	Description string    `json:"description" gorm:"type:text;not null;default:''"`
	Link        string    `json:"link" gorm:"type:text;not null;default:''"`
	Extra       string    `json:"extra" gorm:"type:text;not null;default:'{}'"`
	Absent      string    `json:"absent" gorm:"type:text;not null;default:''"`
	CDate       time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

func (Collection) TableName() string {
	return "collections"
}
