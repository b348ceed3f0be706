package main

import (
	"flag"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/cardsum/cardsum_service/internal/auth"
	"github.com/cardsum/cardsum_service/internal/cache"
	"github.com/cardsum/cardsum_service/internal/card"
	"github.com/cardsum/cardsum_service/internal/config"
	"github.com/cardsum/cardsum_service/internal/db"
	"github.com/cardsum/cardsum_service/internal/middleware"
	"github.com/cardsum/cardsum_service/internal/quota"
	"github.com/cardsum/cardsum_service/internal/render"
	"github.com/cardsum/cardsum_service/internal/storage"
	"github.com/cardsum/cardsum_service/internal/summarize"
	"github.com/cardsum/cardsum_service/internal/telemetry"
	"github.com/cardsum/cardsum_service/internal/ws"
)

func main() {
	doMigrate := flag.Bool("migrate", false, "run migrations and exit")
	flag.Parse()

	cfg := config.Load()
	sqlxDB := db.MustConnect(cfg.DBDSN)
	rdb := cache.MustConnect(cfg.RedisAddr, cfg.RedisDB)

	tlog := telemetry.Init(telemetry.FromEnv(config.GetEnv))
	tlog.Info().Str("port", cfg.AppPort).Msg("booting cardsum_service")

	if *doMigrate {
		db.MustMigrate(sqlxDB)
		log.Println("migrations done")
		return
	}

	app := fiber.New()

	app.Use(middleware.RateLimiter())
	app.Use(middleware.RequestID())
	app.Use(middleware.Recover())
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.RequestLog())
	app.Use(middleware.SecureHeaders())

	ledger := quota.NewLedger(sqlxDB)
	authReg := auth.NewRegistry(cfg, sqlxDB, rdb, ledger)

	llm := summarize.NewClient(cfg.LLMKey, cfg.LLMModel, cfg.LLMBaseURL,
		cfg.LLMTemperature, cfg.LLMMaxTokens, cfg.LLMRPS, cfg.LLMBurst)
	renderer := render.NewRenderer(cfg.RenderTimeout, cfg.ChromeNoSandbox)
	defer renderer.Close()
	store := storage.NewDisk(cfg.StorageDir, cfg.BaseURL, cfg.StoragePublic)
	history := card.NewRepo(sqlxDB)

	svc := card.NewService(ledger, llm, renderer, store, history, rdb)
	svc.WidthCard = cfg.RenderWidthCard
	svc.WidthWide = cfg.RenderWidthWide
	svc.HeightHint = cfg.RenderHeightHint
	svc.ThumbnailMaxW = cfg.ThumbnailMaxW
	svc.LatestCacheTTL = cfg.LatestCacheTTL

	ch := card.NewHandler(cfg, svc, history, ledger, store)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Static(cfg.StoragePublic, cfg.StorageDir)
	app.Get("/api/v1/auth/google/login", authReg.GoogleLogin)
	app.Get("/api/v1/auth/google/callback", authReg.GoogleCallback)

	protected := app.Group("/api/v1", middleware.AuthSession(authReg))

	protected.Post("/auth/logout", authReg.Logout)
	protected.Get("/me", authReg.Me)

	protected.Post("/cards", ch.Generate)
	protected.Get("/cards", ch.ListHistory)
	protected.Get("/cards/latest", ch.Latest)
	protected.Get("/cards/:id/image", ch.DownloadImage)
	protected.Get("/cards/:id/html", ch.DownloadHTML)
	protected.Get("/points", ch.GetPoints)

	app.Get("/ws", middleware.WSUpgradeMiddleware(), websocket.New(ws.HandleWS))

	log.Fatal(app.Listen(":" + cfg.AppPort))
}
