package handlers

import (
	"context"
	"strings"

	"tfsrentals/internal/concierge"
	"tfsrentals/internal/config"
	"tfsrentals/internal/mailer"
	"tfsrentals/internal/redisx"
	"tfsrentals/internal/repos"
	"tfsrentals/internal/services"
	"tfsrentals/internal/storage"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Infra carries the outside systems the API talks to. Redis and Generator
// may be nil.
type Infra struct {
	Redis     *redis.Client
	Files     storage.FileStore
	Sender    mailer.Sender
	Generator concierge.Generator
	Log       *zap.Logger
}

type Deps struct {
	Auth   *services.AuthService
	Kits   *services.KitService
	Carts  *services.CartService
	Quotes *services.QuoteService
	Emails *services.EmailQueue

	AuthHandler      *AuthHandler
	CatalogHandler   *CatalogHandler
	KitHandler       *KitHandler
	CartHandler      *CartHandler
	QuoteHandler     *QuoteHandler
	ConciergeHandler *ConciergeHandler
	CronHandler      *CronHandler
	AdminHandler     *AdminHandler

	// Health pings the database and Redis.
	Health func(ctx context.Context) error
}

func NewDeps(db *sqlx.DB, cfg config.Config, infra Infra) (*Deps, error) {
	lg := infra.Log
	if lg == nil {
		lg = zap.NewNop()
	}
	renderer, err := mailer.NewRenderer(cfg.SiteName, cfg.SiteURL)
	if err != nil {
		return nil, err
	}
	base := strings.TrimRight(cfg.PublicURL, "/")
	fileURL := func(collection, recordID, filename string) string {
		return base + "/media/" + collection + "/" + recordID + "/" + filename
	}

	catRepo := repos.NewCategoryRepo(db)
	prodRepo := repos.NewProductRepo(db)
	userRepo := repos.NewUserRepo(db)

	authSvc := services.NewAuthService(userRepo)
	catalogSvc := services.NewCatalogService(catRepo, prodRepo, fileURL)
	kitSvc := services.NewKitService(repos.NewKitRepo(db), prodRepo,
		redisx.NewKitCache(infra.Redis, redisx.TTLKit), fileURL, lg.Named("kits"))
	cartSvc := services.NewCartService(repos.NewCartRepo(db), prodRepo, fileURL, lg.Named("cart"))
	emailQ := services.NewEmailQueue(repos.NewEmailQueueRepo(db), infra.Sender,
		redisx.NewLease(infra.Redis, "lease:email-queue", redisx.TTLEmailLease), lg.Named("email"))
	quoteSvc := services.NewQuoteService(repos.NewQuoteRepo(db), cartSvc, emailQ, renderer,
		infra.Files, cfg.AdminEmail, lg.Named("quotes"))

	var cc *concierge.Concierge
	if infra.Generator != nil {
		cc = concierge.New(infra.Generator, lg.Named("concierge"))
	}

	return &Deps{
		Auth:   authSvc,
		Kits:   kitSvc,
		Carts:  cartSvc,
		Quotes: quoteSvc,
		Emails: emailQ,

		AuthHandler:      &AuthHandler{Auth: authSvc},
		CatalogHandler:   &CatalogHandler{Catalog: catalogSvc},
		KitHandler:       &KitHandler{Kits: kitSvc},
		CartHandler:      &CartHandler{Cart: cartSvc},
		QuoteHandler:     &QuoteHandler{Quotes: quoteSvc},
		ConciergeHandler: &ConciergeHandler{Concierge: cc},
		CronHandler:      &CronHandler{Emails: emailQ, Secret: cfg.CronSecret},
		AdminHandler:     &AdminHandler{Quotes: quoteSvc, Emails: emailQ, Users: userRepo},

		Health: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
			return redisx.Ping(ctx, infra.Redis)
		},
	}, nil
}
