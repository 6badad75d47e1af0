package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clarencelabs/kingfisher/config"
	"github.com/clarencelabs/kingfisher/internal/cache"
	"github.com/clarencelabs/kingfisher/internal/images"
	"github.com/clarencelabs/kingfisher/internal/lesson"
	"github.com/clarencelabs/kingfisher/internal/llm"
	"github.com/clarencelabs/kingfisher/internal/pipeline"
	"github.com/clarencelabs/kingfisher/internal/planner"
	"github.com/clarencelabs/kingfisher/internal/tools"
)

// Run wires the full service from config and serves until the listener
// fails.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

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

	origins := []string{"http://localhost:3000"}
	if cfg.App.Origin != "" {
		origins = []string{cfg.App.Origin}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	provider := llm.NewOpenAIProvider(cfg.LLM)
	pipe, err := BuildPipeline(cfg, provider)
	if err != nil {
		return err
	}

	h := &ChatHandler{App: cfg.App.Name, Pipeline: pipe, Upstream: provider}
	h.Register(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e.Start(cfg.Server.Address)
}

// BuildPipeline assembles caches, image providers, tools and the planner
// into one pipeline instance.
func BuildPipeline(cfg *config.Config, provider llm.Provider) (*pipeline.Pipeline, error) {
	imageCache, err := imageCache(cfg)
	if err != nil {
		return nil, err
	}
	searchCache, err := searchCache(cfg)
	if err != nil {
		return nil, err
	}

	var chainProviders []images.Provider
	unsplash := images.Unsplash{APIKey: cfg.Images.UnsplashKey}
	for _, name := range cfg.Images.Order() {
		switch name {
		case "unsplash":
			chainProviders = append(chainProviders, unsplash)
		case "pexels":
			chainProviders = append(chainProviders, images.Pexels{APIKey: cfg.Images.PexelsKey})
		case "generate":
			chainProviders = append(chainProviders, images.Generate{})
		default:
			return nil, fmt.Errorf("unknown image provider %q", name)
		}
	}
	chain := images.NewChain(chainProviders, imageCache, cfg.Images.PerQuery)

	geocoder := tools.Geocoder{}
	dispatcher := tools.NewDispatcher(
		[]tools.Tool{
			tools.Search{K: 3, Cache: searchCache},
			tools.Weather{Geocoder: geocoder},
			tools.Marine{Geocoder: geocoder},
		},
		tools.RetryPolicy{
			MaxAttempts: cfg.Tools.MaxAttempts,
			BaseDelay:   cfg.Tools.BaseDelay,
			Factor:      cfg.Tools.BackoffFactor,
		},
		cfg.Tools.Timeout,
	)

	plannerAdapter := planner.NewAdapter(cfg, provider)

	var stepSearch images.Provider
	if cfg.Images.UnsplashKey != "" {
		stepSearch = unsplash
	}
	return pipeline.New(plannerAdapter, chain, stepSearch, dispatcher, provider,
		cfg.App.Place, cfg.Tools.ForecastDays), nil
}

func imageCache(cfg *config.Config) (cache.Cache[[]lesson.ImageRecord], error) {
	if cfg.Cache.Backend == "redis" {
		r := cfg.Cache.Redis
		return cache.NewRedis[[]lesson.ImageRecord](context.Background(), r.Addr, r.Password, r.DB, "images", cfg.Cache.TTL)
	}
	return cache.NewMemory[[]lesson.ImageRecord](cfg.Cache.TTL, cfg.Cache.Capacity), nil
}

func searchCache(cfg *config.Config) (cache.Cache[map[string]interface{}], error) {
	if cfg.Cache.Backend == "redis" {
		r := cfg.Cache.Redis
		return cache.NewRedis[map[string]interface{}](context.Background(), r.Addr, r.Password, r.DB, "search", cfg.Cache.TTL)
	}
	return cache.NewMemory[map[string]interface{}](cfg.Cache.TTL, cfg.Cache.Capacity), nil
}
