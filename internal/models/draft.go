package models

import "time"

// DraftStatus is the lifecycle state of a draft.
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusPublished DraftStatus = "published"
	DraftStatusDeleted   DraftStatus = "deleted"
)

// DraftModel is the persisted, possibly unpublished form of a block document.
type DraftModel struct {
	Base
	UserID           string      `json:"userId"           gorm:"type:char(36);index"`
	Title            string      `json:"title"`
	Description      string      `json:"description"      gorm:"type:text"`
	Blocks           BlockList   `json:"blocks"           gorm:"type:longtext"`
	Status           DraftStatus `json:"status"           gorm:"type:varchar(16);index;default:draft"`
	Locked           bool        `json:"locked"           gorm:"default:false"`
	CoAuthorID       *string     `json:"coAuthorId"       gorm:"type:char(36)"`
	CategoryID       *string     `json:"categoryId"       gorm:"type:char(36);index"`
	Version          int         `json:"version"          gorm:"default:0"`
	PublishedVersion *int        `json:"publishedVersion"`
	PublishedAt      *time.Time  `json:"publishedAt"`

	History []DraftHistoryModel `json:"history,omitempty" gorm:"foreignKey:DraftID"`
}

func (DraftModel) TableName() string { return "drafts" }

// DraftHistoryModel stores a historical snapshot of a draft.
type DraftHistoryModel struct {
	Base
	DraftID     string    `json:"-"           gorm:"type:char(36);index;not null"`
	Version     int       `json:"version"`
	Title       string    `json:"title"`
	Description string    `json:"description" gorm:"type:text"`
	Blocks      BlockList `json:"blocks"      gorm:"type:longtext"`
	SavedAt     time.Time `json:"savedAt"`
}

func (DraftHistoryModel) TableName() string { return "draft_histories" }
