package model

import "time"

type Orientation string

const (
	OrientationVertical   Orientation = "vertical"
	OrientationHorizontal Orientation = "horizontal"
)

type CardRecord struct {
	ID            int64       `db:"id" json:"id"`
	UserID        int64       `db:"user_id" json:"-"`
	ImageURL      string      `db:"image_url" json:"image_url"`
	HTMLFileURL   string      `db:"html_file_url" json:"html_file_url"`
	ThumbnailURL  string      `db:"thumbnail_url" json:"thumbnail_url,omitempty"`
	PromptExcerpt string      `db:"prompt_excerpt" json:"prompt_excerpt"`
	Orientation   Orientation `db:"orientation" json:"orientation"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}
