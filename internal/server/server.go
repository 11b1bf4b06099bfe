package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/talentmatch/config"
	"github.com/mohammad-safakhou/talentmatch/internal/negotiation"
	"github.com/mohammad-safakhou/talentmatch/internal/orchestration"
	"github.com/mohammad-safakhou/talentmatch/internal/staterepo"
	"github.com/mohammad-safakhou/talentmatch/internal/store"
	"github.com/mohammad-safakhou/talentmatch/internal/tools"
	"github.com/mohammad-safakhou/talentmatch/internal/tools/jdfetch"
	"github.com/mohammad-safakhou/talentmatch/internal/tools/resumesearch"
	"github.com/mohammad-safakhou/talentmatch/provider"
)

const pausedStateTTL = 24 * time.Hour

// Run wires every dependency and serves the API until the process exits.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	if cfg.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	_ = Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0)

	ctx := context.Background()
	st, err := store.New(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, err)
	}

	gw, err := provider.NewGateway(cfg.LLM)
	if err != nil {
		return err
	}

	search, err := resumesearch.New(cfg.Tools.Search.MaxResults)
	if err != nil {
		return err
	}
	// Warm the search index from what is already stored.
	if resumes, err := st.ListResumes(ctx); err == nil {
		for _, r := range resumes {
			if err := search.Add(r); err != nil {
				baseLogger.Printf("indexing resume %s failed: %v", r.ID, err)
			}
		}
	}

	toolset := []tools.Tool{
		search,
		tools.ResumeLookup{Store: st},
		tools.JobLookup{Store: st},
	}
	if cfg.Tools.JDFetch.Enabled {
		toolset = append(toolset, jdfetch.Fetcher{
			Timeout:  cfg.Tools.JDFetch.Timeout,
			MaxChars: cfg.Tools.JDFetch.MaxChars,
		})
	}
	disp := tools.NewDispatcher(log.New(log.Writer(), "[TOOLS] ", log.LstdFlags), toolset...)

	loop := orchestration.NewLoop(gw, disp, orchestration.Options{
		MaxTurns:       cfg.Orchestration.MaxTurns,
		MaxStepRetries: cfg.Orchestration.MaxStepRetries,
		Logger:         log.New(log.Writer(), "[SRC] ", log.LstdFlags),
	})

	api := e.Group("/api")

	rh := &ResumesHandler{Store: st, Search: search}
	rh.Register(api.Group("/resumes"))

	jh := &JobsHandler{Store: st}
	jh.Register(api.Group("/jds"))

	nh := &NegotiationsHandler{
		Resumes: st,
		Jobs:    st,
		Gateway: gw,
		Opts: negotiation.Options{
			MaxRounds:        cfg.Negotiation.MaxRounds,
			MaxPlanningTurns: cfg.Negotiation.MaxPlanningTurns,
			MaxCallRetries:   cfg.LLM.MaxRetries,
			Logger:           log.New(log.Writer(), "[NEG] ", log.LstdFlags),
		},
	}
	nh.Register(api.Group("/negotiations"))

	sh := &SourcingHandler{
		Loop:   loop,
		States: staterepo.New(rdb, pausedStateTTL),
		Logger: log.New(log.Writer(), "[SRC] ", log.LstdFlags),
	}
	sh.Register(api.Group("/sourcing"))

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10010"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
