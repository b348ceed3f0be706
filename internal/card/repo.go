package card

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/cardsum/cardsum_service/internal/model"
)

// History indexes persisted artifacts per user, newest first.
type History interface {
	Insert(ctx context.Context, rec *model.CardRecord) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]model.CardRecord, error)
	Latest(ctx context.Context, userID int64) (model.CardRecord, error)
	GetByID(ctx context.Context, id int64) (model.CardRecord, error)
}

type Repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Insert(ctx context.Context, rec *model.CardRecord) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO card_history (user_id, image_url, html_file_url, thumbnail_url, prompt_excerpt, orientation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW())`,
		rec.UserID, rec.ImageURL, rec.HTMLFileURL, rec.ThumbnailURL, rec.PromptExcerpt, rec.Orientation)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) ListByUser(ctx context.Context, userID int64) ([]model.CardRecord, error) {
	var recs []model.CardRecord
	err := r.db.SelectContext(ctx, &recs, `
		SELECT id, user_id, image_url, html_file_url, thumbnail_url, prompt_excerpt, orientation, created_at
		FROM card_history WHERE user_id=? ORDER BY created_at DESC, id DESC`, userID)
	return recs, err
}

func (r *Repo) Latest(ctx context.Context, userID int64) (model.CardRecord, error) {
	var rec model.CardRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT id, user_id, image_url, html_file_url, thumbnail_url, prompt_excerpt, orientation, created_at
		FROM card_history WHERE user_id=? ORDER BY created_at DESC, id DESC LIMIT 1`, userID)
	return rec, err
}

func (r *Repo) GetByID(ctx context.Context, id int64) (model.CardRecord, error) {
	var rec model.CardRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT id, user_id, image_url, html_file_url, thumbnail_url, prompt_excerpt, orientation, created_at
		FROM card_history WHERE id=?`, id)
	return rec, err
}
