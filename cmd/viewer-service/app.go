package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	_ "streamview/docs"
	"streamview/internal/api"
	"streamview/internal/broker"
	"streamview/internal/config"
	"streamview/internal/constants"
	"streamview/internal/logger"
	"streamview/internal/server"
	"streamview/internal/session"
	"streamview/pkg/bootstrap"
	"streamview/pkg/cel"
	"streamview/pkg/circuitbreaker"
	"streamview/pkg/health"
	"streamview/pkg/logging"
	"streamview/pkg/metrics"
	"streamview/pkg/middleware"
	"streamview/pkg/ratelimit"
	"streamview/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	router         *gin.Engine
	server         *server.Server
	drain          *health.DrainChecker
	tracerProvider *tracing.TracerProvider

	// cancels background work owned by the router, such as limiter eviction
	stopRouter context.CancelFunc
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	return &App{
		Base:  bootstrap.NewBase(cfg, log),
		drain: health.NewDrainChecker(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.InitBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	tp, err := tracing.Init(ctx, a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterViewerMetrics()

	if err := a.initRouter(ctx); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = server.New(a.Config.Server, a.router, a.drain, a.Logger)
	return nil
}

func (a *App) initRouter(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(a.Config.Server.CORSAllowOrigins))
	router.Use(middleware.LoggerMiddleware(a.Logger))

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	routerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopRouter = cancel

	var sendMiddleware []gin.HandlerFunc
	if rl := a.Config.Send.RateLimit; rl.Enabled {
		sendMiddleware = append(sendMiddleware, ratelimit.RateLimitMiddleware(routerCtx, ratelimit.RateLimitConfig{
			RPS:             rl.RPS,
			Burst:           rl.Burst,
			CleanupInterval: rl.CleanupInterval,
			MaxAge:          rl.MaxAge,
		}))
		a.Logger.InfowCtx(ctx, "Rate limiting enabled on send", "rps", rl.RPS, "burst", rl.Burst)
	}

	handler := api.NewHandler(
		a.Registry,
		a.sessionOptions(),
		api.StreamSettings{
			DefaultSubscription: a.Config.Stream.DefaultSubscription,
			KeepaliveInterval:   a.Config.Stream.KeepaliveInterval,
		},
		evaluator,
		a.newBreakers(),
		a.Logger,
	)
	handler.RegisterRoutes(router, sendMiddleware...)

	healthRegistry := health.NewCheckerRegistry()

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/ready", func(c *gin.Context) {
		if err := a.drain.Check(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": health.StatusUnhealthy, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": health.StatusOK})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if dir := a.Config.Server.StaticDir; dir != "" {
		router.NoRoute(gin.WrapH(http.FileServer(http.Dir(dir))))
		a.Logger.InfowCtx(ctx, "Serving static UI", "dir", dir)
	}

	a.router = router
	return nil
}

func (a *App) sessionOptions() session.Options {
	opts := session.DefaultOptions()
	b := a.Config.Broker
	if b.ReceiveTimeout > 0 {
		opts.ReceiveTimeout = b.ReceiveTimeout
	}
	if b.RetryBackoff > 0 {
		opts.RetryBackoff = b.RetryBackoff
	}
	if b.ConnectTimeout > 0 {
		opts.ConnectTimeout = b.ConnectTimeout
	}
	if b.AckTimeout > 0 {
		opts.AckTimeout = b.AckTimeout
	}
	return opts
}

// newBreakers returns nil when the breaker is disabled. Requests for unknown
// schemes never reach a broker, so they do not count as failures.
func (a *App) newBreakers() *circuitbreaker.Registry {
	cb := a.Config.Send.CircuitBreaker
	if !cb.Enabled {
		return nil
	}

	tmpl := circuitbreaker.DefaultConfig("")
	if cb.MaxRequests > 0 {
		tmpl.MaxRequests = cb.MaxRequests
	}
	if cb.Interval > 0 {
		tmpl.Interval = cb.Interval
	}
	if cb.Timeout > 0 {
		tmpl.Timeout = cb.Timeout
	}
	if cb.FailureRatio > 0 {
		tmpl.FailureRatio = cb.FailureRatio
	}
	if cb.MinRequests > 0 {
		tmpl.MinRequests = cb.MinRequests
	}
	tmpl.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, broker.ErrUnsupportedScheme)
	}
	tmpl.OnStateChange = func(name string, from, to gobreaker.State) {
		a.Logger.Warnw("Send circuit breaker state changed",
			"service_url", name,
			"from", from.String(),
			"to", to.String(),
		)
	}
	return circuitbreaker.NewRegistry(tmpl)
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.ListenAndServe()
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(context.WithoutCancel(ctx))
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down viewer service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.stopRouter != nil {
			a.stopRouter()
		}

		if a.tracerProvider != nil {
			tracingCtx, cancel := context.WithTimeout(ctx, constants.TracingShutdownTimeout)
			defer cancel()
			if err := a.tracerProvider.Shutdown(tracingCtx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
