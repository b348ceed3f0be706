package card

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/cardsum/cardsum_service/internal/img"
	"github.com/cardsum/cardsum_service/internal/model"
	"github.com/cardsum/cardsum_service/internal/quota"
	"github.com/cardsum/cardsum_service/internal/storage"
	"github.com/cardsum/cardsum_service/internal/summarize"
	"github.com/cardsum/cardsum_service/internal/telemetry"
	"github.com/cardsum/cardsum_service/internal/ws"
)

// PointLedger is the slice of the quota ledger the pipeline needs.
type PointLedger interface {
	Deduct(ctx context.Context, userID int64, points int) (int, error)
	Add(ctx context.Context, userID int64, points int) error
	Get(ctx context.Context, userID int64) (model.QuotaAccount, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, article, prompt string) (string, error)
}

type RenderClient interface {
	Render(ctx context.Context, html string, width, heightHint int, extraCSS string) ([]byte, error)
}

// Artifact is what a completed (or persist-only-failed) generation hands
// back: the raw bytes plus the history record when the save went through.
type Artifact struct {
	Record          model.CardRecord
	PNG             []byte
	HTML            string
	RemainingPoints int
}

type Service struct {
	ledger  PointLedger
	llm     Summarizer
	render  RenderClient
	store   storage.Store
	history History
	rdb     *redis.Client

	WidthCard, WidthWide int
	HeightHint           int
	ThumbnailMaxW        int
	LatestCacheTTL       time.Duration
}

func NewService(ledger PointLedger, llm Summarizer, render RenderClient, store storage.Store, history History, rdb *redis.Client) *Service {
	return &Service{
		ledger:         ledger,
		llm:            llm,
		render:         render,
		store:          store,
		history:        history,
		rdb:            rdb,
		WidthCard:      720,
		WidthWide:      1280,
		HeightHint:     600,
		ThumbnailMaxW:  360,
		LatestCacheTTL: time.Hour,
	}
}

// card-level CSS overrides layered on top of the render shell
const cardCSS = `
body {
  border-radius: 12px;
}
.prose {
  background: transparent;
}`

// Generate runs the whole pipeline for one request: quota check, deduct,
// summarize, render, persist. Summarize and render failures refund the
// deducted point; a persist failure does not, and still returns the artifact.
func (s *Service) Generate(ctx context.Context, userID int64, article string, summaryType summarize.SummaryType) (*Artifact, error) {
	log := telemetry.L().With().Int64("user_id", userID).Str("type", string(summaryType)).Logger()

	// validated before anything is charged or called
	if strings.TrimSpace(article) == "" {
		return nil, summarize.ErrEmptyInput
	}

	// cheap pre-check so an empty account never reaches a downstream service
	acc, err := s.ledger.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, quota.ErrInsufficientQuota
		}
		return nil, err
	}
	if acc.RemainingPoints <= 0 {
		return nil, quota.ErrInsufficientQuota
	}

	// a concurrent request may have drained the balance between the check
	// and here; the atomic deduct is the authority
	remaining, err := s.ledger.Deduct(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	log.Info().Int("remaining", remaining).Msg("point_deducted")

	ws.BroadcastStage(userID, ws.EventCardSummarizing, nil)
	html, err := s.llm.Summarize(ctx, article, summarize.PromptFor(summaryType))
	if err != nil {
		s.refund(userID, "summarize")
		ws.BroadcastError(userID, err.Error())
		return nil, err
	}
	ws.BroadcastStage(userID, ws.EventCardSummarized, map[string]int{"chars": len(html)})

	orientation := model.Orientation(summaryType.Orientation())
	width := s.WidthCard
	if orientation == model.OrientationHorizontal {
		width = s.WidthWide
	}
	png, err := s.render.Render(ctx, html, width, s.HeightHint, cardCSS)
	if err != nil {
		s.refund(userID, "render")
		ws.BroadcastError(userID, err.Error())
		return nil, err
	}
	ws.BroadcastStage(userID, ws.EventCardRendered, map[string]int{"bytes": len(png)})

	art := &Artifact{PNG: png, HTML: html, RemainingPoints: remaining}
	rec, err := s.persist(ctx, userID, article, orientation, png, html)
	if err != nil {
		// the point stays spent: the expensive work already completed, the
		// card just won't appear in history
		log.Error().Err(err).Msg("persist_failed")
		return art, &PersistError{Cause: err}
	}
	art.Record = rec

	ws.BroadcastStage(userID, ws.EventCardSaved, rec)
	log.Info().Int64("card_id", rec.ID).Str("image_url", rec.ImageURL).Msg("card_generated")
	return art, nil
}

func (s *Service) refund(userID int64, stage string) {
	// compensating action runs on a fresh context so a cancelled request
	// cannot strand the user's point
	log := telemetry.L()
	if err := s.ledger.Add(context.Background(), userID, 1); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Str("stage", stage).Msg("refund_failed")
		return
	}
	log.Info().Int64("user_id", userID).Str("stage", stage).Msg("point_refunded")
}

func (s *Service) persist(ctx context.Context, userID int64, article string, orientation model.Orientation, png []byte, html string) (model.CardRecord, error) {
	base := fmt.Sprintf("%d/%d-%s", userID, time.Now().UnixMilli(), uuid.New().String()[:8])

	var imageURL, htmlURL, thumbURL string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		imageURL, err = s.store.Put(gctx, base+".png", "image/png", png)
		return err
	})
	g.Go(func() error {
		var err error
		htmlURL, err = s.store.Put(gctx, base+".html", "text/html", []byte(html))
		return err
	})
	g.Go(func() error {
		thumb, err := img.Thumbnail(png, s.ThumbnailMaxW)
		if err != nil {
			return err
		}
		thumbURL, err = s.store.Put(gctx, base+"_thumb.png", "image/png", thumb)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.CardRecord{}, err
	}

	rec := model.CardRecord{
		UserID:        userID,
		ImageURL:      imageURL,
		HTMLFileURL:   htmlURL,
		ThumbnailURL:  thumbURL,
		PromptExcerpt: excerpt(article, 200),
		Orientation:   orientation,
		CreatedAt:     time.Now(),
	}
	id, err := s.history.Insert(ctx, &rec)
	if err != nil {
		return model.CardRecord{}, err
	}
	rec.ID = id

	s.cacheLatest(userID, rec)
	return rec, nil
}

func (s *Service) cacheLatest(userID int64, rec model.CardRecord) {
	if s.rdb == nil {
		return
	}
	b, _ := json.Marshal(rec)
	if err := s.rdb.Set(context.Background(), latestKey(userID), b, s.LatestCacheTTL).Err(); err != nil {
		log := telemetry.L()
		log.Warn().Err(err).Int64("user_id", userID).Msg("latest_cache_set_err")
	}
}

// LatestCached returns the most recent record, served from redis when warm.
func (s *Service) LatestCached(ctx context.Context, userID int64) (model.CardRecord, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, latestKey(userID)).Result(); err == nil {
			var rec model.CardRecord
			if json.Unmarshal([]byte(raw), &rec) == nil && rec.ID != 0 {
				return rec, nil
			}
		}
	}
	return s.history.Latest(ctx, userID)
}

func latestKey(userID int64) string {
	return fmt.Sprintf("card:latest:%d", userID)
}

func excerpt(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) > max {
		return string(r[:max])
	}
	return string(r)
}
