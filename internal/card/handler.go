package card

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cardsum/cardsum_service/internal/config"
	"github.com/cardsum/cardsum_service/internal/middleware"
	"github.com/cardsum/cardsum_service/internal/model"
	"github.com/cardsum/cardsum_service/internal/quota"
	"github.com/cardsum/cardsum_service/internal/render"
	"github.com/cardsum/cardsum_service/internal/storage"
	"github.com/cardsum/cardsum_service/internal/summarize"
	"github.com/cardsum/cardsum_service/internal/telemetry"
)

// Generator is the slice of the pipeline service the HTTP layer uses.
type Generator interface {
	Generate(ctx context.Context, userID int64, article string, summaryType summarize.SummaryType) (*Artifact, error)
	LatestCached(ctx context.Context, userID int64) (model.CardRecord, error)
}

type Handler struct {
	cfg     *config.Config
	svc     Generator
	history History
	ledger  PointLedger
	store   storage.Store
}

func NewHandler(cfg *config.Config, svc Generator, history History, ledger PointLedger, store storage.Store) *Handler {
	return &Handler{cfg: cfg, svc: svc, history: history, ledger: ledger, store: store}
}

type generateRequest struct {
	Content     string `json:"content"`
	SummaryType string `json:"summary_type"`
}

func (h *Handler) Generate(c *fiber.Ctx) error {
	userID := mustUserID(c)
	rid, _ := c.Locals(middleware.ReqIDKey).(string)
	log := telemetry.L().With().Str("req_id", rid).Int64("user_id", userID).Logger()

	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	art, err := h.svc.Generate(c.Context(), userID, req.Content, summarize.ParseSummaryType(req.SummaryType))
	if err != nil {
		var pe *PersistError
		if errors.As(err, &pe) && art != nil {
			// the save failed after the card was produced; hand the bytes
			// back anyway so the user is not denied their card
			log.Error().Err(err).Msg("card_save_failed")
			return c.JSON(fiber.Map{
				"error":            "save failed, card not stored in history",
				"html":             art.HTML,
				"image_base64":     base64.StdEncoding.EncodeToString(art.PNG),
				"remaining_points": art.RemainingPoints,
			})
		}
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"card":             art.Record,
		"remaining_points": art.RemainingPoints,
	})
}

func (h *Handler) ListHistory(c *fiber.Ctx) error {
	userID := mustUserID(c)
	recs, err := h.history.ListByUser(c.Context(), userID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "db error"})
	}
	if recs == nil {
		recs = []model.CardRecord{}
	}
	return c.JSON(fiber.Map{"history": recs})
}

func (h *Handler) Latest(c *fiber.Ctx) error {
	userID := mustUserID(c)
	rec, err := h.svc.LatestCached(c.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(404).JSON(fiber.Map{"error": "no cards yet"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "db error"})
	}
	return c.JSON(rec)
}

func (h *Handler) DownloadImage(c *fiber.Ctx) error {
	return h.download(c, func(rec model.CardRecord) (string, string, string) {
		return rec.ImageURL, "image/png", "article-summary-" + string(rec.Orientation) + ".png"
	})
}

func (h *Handler) DownloadHTML(c *fiber.Ctx) error {
	return h.download(c, func(rec model.CardRecord) (string, string, string) {
		return rec.HTMLFileURL, "text/html", "article-summary-" + string(rec.Orientation) + ".html"
	})
}

func (h *Handler) download(c *fiber.Ctx, pick func(model.CardRecord) (urlStr, contentType, filename string)) error {
	userID := mustUserID(c)
	id, _ := strconv.ParseInt(c.Params("id"), 10, 64)

	rec, err := h.history.GetByID(c.Context(), id)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "not found"})
	}
	if rec.UserID != userID {
		return c.Status(403).JSON(fiber.Map{"error": "forbidden"})
	}

	artifactURL, contentType, filename := pick(rec)
	key, err := h.storageKey(artifactURL)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "bad artifact url"})
	}
	data, err := h.store.Read(c.Context(), key)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "artifact missing"})
	}

	c.Set("Content-Type", contentType)
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Send(data)
}

func (h *Handler) GetPoints(c *fiber.Ctx) error {
	userID := mustUserID(c)
	acc, err := h.ledger.Get(c.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(404).JSON(fiber.Map{"error": "no quota account"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "db error"})
	}
	resp := fiber.Map{
		"remaining_points": acc.RemainingPoints,
		"used_points":      acc.UsedPoints,
	}
	if acc.LastUsageTime.Valid {
		resp["last_usage_time"] = acc.LastUsageTime.Time
	}
	return c.JSON(resp)
}

// storageKey maps a stored public URL back to the object key.
func (h *Handler) storageKey(artifactURL string) (string, error) {
	u, err := url.Parse(artifactURL)
	if err != nil {
		return "", err
	}
	key := strings.TrimPrefix(u.Path, h.cfg.StoragePublic)
	return strings.TrimPrefix(key, "/"), nil
}

func respondError(c *fiber.Ctx, err error) error {
	var ue *summarize.UpstreamError
	var re *render.RenderError
	switch {
	case errors.Is(err, summarize.ErrEmptyInput):
		return c.Status(400).JSON(fiber.Map{"error": "article content is empty"})
	case errors.Is(err, quota.ErrInsufficientQuota):
		return c.Status(403).JSON(fiber.Map{"error": "insufficient points"})
	case errors.Is(err, summarize.ErrUpstreamUnavailable):
		return c.Status(503).JSON(fiber.Map{"error": "summarization not configured"})
	case errors.As(err, &ue):
		return c.Status(502).JSON(fiber.Map{"error": ue.Message})
	case errors.Is(err, render.ErrRenderTimeout):
		return c.Status(504).JSON(fiber.Map{"error": "image generation timed out"})
	case errors.As(err, &re):
		return c.Status(502).JSON(fiber.Map{"error": "image generation failed"})
	default:
		return c.Status(500).JSON(fiber.Map{"error": "internal error"})
	}
}

func mustUserID(c *fiber.Ctx) int64 {
	uid, ok := c.Locals("userID").(int64)
	if !ok {
		return 0
	}
	return uid
}
