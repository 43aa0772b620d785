// Package bootstrap turns a Config into the external clients the server and
// tfsctl share: Redis, file storage, the mail transport and the concierge model.
package bootstrap

import (
	"context"
	"fmt"

	"tfsrentals/internal/concierge"
	"tfsrentals/internal/config"
	"tfsrentals/internal/http/handlers"
	"tfsrentals/internal/mailer"
	"tfsrentals/internal/redisx"
	"tfsrentals/internal/repos"
	"tfsrentals/internal/seed"
	"tfsrentals/internal/storage"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Infra builds the optional integrations. Anything not configured falls back
// to a local implementation: disk storage, logged email, no Redis, no concierge.
func Infra(ctx context.Context, cfg config.Config, lg *zap.Logger) (handlers.Infra, error) {
	in := handlers.Infra{Redis: redisx.New(cfg.RedisAddr), Log: lg}

	if cfg.MinioEndpoint != "" {
		fs, err := storage.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioSecure)
		if err != nil {
			return in, fmt.Errorf("minio: %w", err)
		}
		in.Files = fs
	} else {
		fs, err := storage.NewLocalStore(cfg.MediaDir, cfg.PublicURL)
		if err != nil {
			return in, fmt.Errorf("media dir: %w", err)
		}
		in.Files = fs
	}

	if cfg.EmailMock || cfg.SMTPHost == "" {
		lg.Info("email mock mode, messages are only logged")
		in.Sender = &mailer.LogSender{Log: lg.Named("mail")}
	} else {
		s, err := mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		})
		if err != nil {
			return in, err
		}
		in.Sender = s
	}

	if cfg.GenAIKey != "" {
		g, err := concierge.NewGenAIGenerator(ctx, cfg.GenAIKey, cfg.GenAIModel)
		if err != nil {
			return in, err
		}
		in.Generator = g
	}
	return in, nil
}

// Open connects the database and builds every service and handler.
func Open(ctx context.Context, cfg config.Config, lg *zap.Logger) (*sqlx.DB, *handlers.Deps, error) {
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		return nil, nil, err
	}
	in, err := Infra(ctx, cfg, lg)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	deps, err := handlers.NewDeps(db, cfg, in)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, deps, nil
}

// Seeder writes catalog files through the kit service so cached kits are
// invalidated.
func Seeder(db *sqlx.DB, deps *handlers.Deps) *seed.Seeder {
	return &seed.Seeder{Cats: repos.NewCategoryRepo(db), Prods: repos.NewProductRepo(db), Kits: deps.Kits}
}

// SeedIfEmpty loads the bundled catalog into a fresh database.
func SeedIfEmpty(ctx context.Context, db *sqlx.DB, deps *handlers.Deps) (bool, error) {
	cats, err := repos.NewCategoryRepo(db).List(ctx)
	if err != nil {
		return false, err
	}
	if len(cats) > 0 {
		return false, nil
	}
	cat, err := seed.Default()
	if err != nil {
		return false, err
	}
	_, err = Seeder(db, deps).Apply(ctx, cat)
	return err == nil, err
}
