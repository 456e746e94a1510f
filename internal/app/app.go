package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"attendance/internal/api"
	"attendance/internal/attendance"
	"attendance/internal/auth"
	"attendance/internal/config"
	"attendance/internal/credits"
	"attendance/internal/seed"
	"attendance/internal/store"
	"attendance/internal/users"
)

// App is the wired service shared by the server and the admin CLI.
type App struct {
	Config     config.App
	Log        zerolog.Logger
	DB         *store.DB
	Redis      *store.Redis
	Users      *users.Directory
	Verifier   *auth.CredentialVerifier
	Tokens     *auth.TokenService
	Ledger     credits.Ledger
	Policy     credits.ExhaustionPolicy
	Attendance *attendance.Service
	Seeder     *seed.Seeder
}

// Build opens the configured backends and wires every component. A configured backend
// that cannot be reached is an error.
func Build(ctx context.Context, cfg config.App, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: logger}

	policy, err := credits.ParsePolicy(cfg.CreditsExhaustedPolicy)
	if err != nil {
		return nil, err
	}
	a.Policy = policy

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		SigningKey:   cfg.JWTSigningKey,
		PreviousKeys: cfg.JWTPreviousKeys,
		Issuer:       cfg.JWTIssuer,
		TTL:          cfg.AccessTTL,
	})
	if err != nil {
		return nil, err
	}
	a.Tokens = tokens

	var (
		userRepo users.Repository
		attStore attendance.Store
	)
	switch cfg.StorageBackend {
	case "memory":
		logger.Warn().Msg("using in-memory storage; data is lost on restart")
		userRepo = users.NewMemory()
		attStore = attendance.NewMemoryStore()
	default:
		if cfg.MigrateOnStart {
			if err := store.MigrateUp(cfg.DatabaseURL); err != nil {
				return nil, err
			}
		}
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.DB = db
		userRepo = users.NewPostgres(db.Client)
		attStore = attendance.NewRepository(db.Client)
	}

	switch cfg.LedgerBackend {
	case "memory":
		a.Ledger = credits.NewMemory(cfg.CreditsPerPeriod)
	case "redis":
		rdb, err := store.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = rdb
		a.Ledger = credits.NewRedis(rdb.Client, cfg.CreditsPerPeriod)
	default:
		if a.DB == nil {
			return nil, errors.New("postgres ledger requires postgres storage")
		}
		a.Ledger = credits.NewPostgres(a.DB.Client, cfg.CreditsPerPeriod)
	}

	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	a.Users = users.NewDirectory(userRepo, hasher)
	a.Verifier, err = auth.NewCredentialVerifier(a.Users, hasher)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Attendance = attendance.NewService(attStore, a.Ledger, logger.With().Str("component", "attendance").Logger())
	a.Seeder = seed.NewSeeder(a.Users, a.Attendance, logger.With().Str("component", "seed").Logger())

	logger.Info().
		Str("storage", cfg.StorageBackend).
		Str("ledger", cfg.LedgerBackend).
		Str("policy", string(policy)).
		Int("credits_per_period", cfg.CreditsPerPeriod).
		Msg("application wired")
	return a, nil
}

// Seed applies the configured fixture.
func (a *App) Seed(ctx context.Context) (seed.Result, error) {
	f, err := seed.LoadFixture(a.Config.SeedFile)
	if err != nil {
		return seed.Result{}, err
	}
	res, err := a.Seeder.Apply(ctx, f)
	if err != nil {
		return res, fmt.Errorf("seed: %w", err)
	}
	return res, nil
}

// APIDeps exposes the wired components to the HTTP layer.
func (a *App) APIDeps() api.Deps {
	d := api.Deps{
		Log:                  a.Log,
		Verifier:             a.Verifier,
		Tokens:               a.Tokens,
		Users:                a.Users,
		Ledger:               a.Ledger,
		Policy:               a.Policy,
		Attendance:           a.Attendance,
		Seeder:               a.Seeder,
		SeedFile:             a.Config.SeedFile,
		SeedEndpoint:         a.Config.SeedEndpointEnabled,
		CORSOrigins:          a.Config.CORSOrigins,
		RateLimitPerMin:      a.Config.RateLimitPerMin,
		LoginRateLimitPerMin: a.Config.LoginRateLimitPerMin,
	}
	if a.DB != nil || a.Redis != nil {
		d.DatabaseHealthy = func(ctx context.Context) bool {
			if a.DB != nil && !a.DB.Healthy(ctx) {
				return false
			}
			return a.Redis == nil || a.Redis.Healthy(ctx)
		}
	}
	return d
}

// Close releases the backends.
func (a *App) Close() {
	if err := a.Redis.Close(); err != nil {
		a.Log.Warn().Err(err).Msg("close redis")
	}
	if err := a.DB.Close(); err != nil {
		a.Log.Warn().Err(err).Msg("close postgres")
	}
}
