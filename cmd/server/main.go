package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/taskgate/core"
	"github.com/dmitrymomot/taskgate/modules/auth"
	"github.com/dmitrymomot/taskgate/modules/billing"
	"github.com/dmitrymomot/taskgate/modules/todo"
	"github.com/dmitrymomot/taskgate/pkg/config"
	"github.com/dmitrymomot/taskgate/pkg/email"
	"github.com/dmitrymomot/taskgate/pkg/httpserver"
	"github.com/dmitrymomot/taskgate/pkg/jwt"
	"github.com/dmitrymomot/taskgate/pkg/logger"
	"github.com/dmitrymomot/taskgate/pkg/pg"
	"github.com/dmitrymomot/taskgate/pkg/redis"
)

type appConfig struct {
	Environment string `env:"APP_ENV" envDefault:"development"`

	// AppBaseURL is the single source of truth for every redirect target:
	// verification links, checkout success/cancel pages, and the pricing
	// fallback all derive from it.
	AppBaseURL string `env:"APP_BASE_URL,required"`

	JWTSigningKey  string        `env:"JWT_SIGNING_KEY,required"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	PlansPath      string        `env:"BILLING_PLANS_PATH" envDefault:"config/plans.yaml"`
	StatusCacheTTL time.Duration `env:"BILLING_STATUS_CACHE_TTL" envDefault:"5m"`
	RedisEnabled   bool          `env:"REDIS_ENABLED" envDefault:"false"`
}

func (c appConfig) url(path string) string {
	return strings.TrimRight(c.AppBaseURL, "/") + path
}

// accountDirectory adapts the auth service to the billing module's identity
// lookup. Billing never sees client-supplied emails, only what the identity
// records say about the token's subject.
type accountDirectory struct {
	auth *auth.Service
}

func (d accountDirectory) Email(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := d.auth.User(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

func main() {
	ctx := context.Background()

	var appCfg appConfig
	config.MustLoad(&appCfg)
	var pgCfg pg.Config
	config.MustLoad(&pgCfg)
	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)
	var paddleCfg billing.PaddleConfig
	config.MustLoad(&paddleCfg)
	var emailCfg email.Config
	config.MustLoad(&emailCfg)

	log := logger.New(logger.WithEnvironment(appCfg.Environment, "taskgate"))
	logger.SetAsDefault(log)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		log.Error("failed to connect to postgres", logger.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		log.Error("failed to apply migrations", logger.Error(err))
		os.Exit(1)
	}

	tokens, err := jwt.NewFromString(appCfg.JWTSigningKey)
	if err != nil {
		log.Error("failed to create token service", logger.Error(err))
		os.Exit(1)
	}

	var mailer email.EmailSender
	if emailCfg.PostmarkServerToken != "" {
		mailer, err = email.NewPostmarkClient(emailCfg)
		if err != nil {
			log.Error("failed to create postmark client", logger.Error(err))
			os.Exit(1)
		}
	} else {
		log.Warn("postmark token not set, logging emails instead of sending")
		mailer = email.NewDevSender(log)
	}

	authSvc := auth.NewService(
		auth.NewPGStorage(pool),
		tokens,
		mailer,
		appCfg.url("/verify"),
		auth.WithLogger(log),
		auth.WithSessionTTL(appCfg.SessionTTL),
	)

	catalog, err := billing.LoadCatalog(appCfg.PlansPath)
	if err != nil {
		log.Error("failed to load plan catalog", logger.Error(err))
		os.Exit(1)
	}

	provider, err := billing.NewPaddleProvider(paddleCfg)
	if err != nil {
		log.Error("failed to create billing provider", logger.Error(err))
		os.Exit(1)
	}

	healthchecks := []func(context.Context) error{pg.Healthcheck(pool)}

	var statusCache billing.StatusCache = billing.NoopStatusCache{}
	if appCfg.RedisEnabled {
		var redisCfg redis.Config
		config.MustLoad(&redisCfg)
		redisClient, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			log.Error("failed to connect to redis", logger.Error(err))
			os.Exit(1)
		}
		defer redisClient.Close()
		statusCache = billing.NewRedisStatusCache(redisClient, appCfg.StatusCacheTTL)
		healthchecks = append(healthchecks, redis.Healthcheck(redisClient))
	}

	billingSvc := billing.NewService(
		provider,
		billing.NewPGCustomerStore(pool),
		billing.NewPGSubscriptionStore(pool),
		billing.NewPGEventStore(pool),
		catalog,
		accountDirectory{auth: authSvc},
		billing.URLs{
			Success: appCfg.url("/success"),
			Cancel:  appCfg.url("/cancel"),
			Pricing: appCfg.url("/pricing"),
		},
		billing.WithLogger(log),
		billing.WithStatusCache(statusCache),
	)

	todoSvc := todo.NewService(todo.NewPGStore(pool))

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		for _, check := range healthchecks {
			if err := check(req.Context()); err != nil {
				core.JSONError(w, core.ErrServiceUnavailable)
				return
			}
		}
		core.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Mount("/auth", auth.Router(authSvc, tokens))
	r.Mount("/billing", billing.Router(billingSvc, tokens))
	r.Mount("/todos", todo.Router(todoSvc, tokens, billingSvc))

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	if err := srv.Run(ctx, r); err != nil {
		log.Error("server stopped with error", logger.Error(err))
		os.Exit(1)
	}
}
