package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"MealSignal/internal/middleware"
	"MealSignal/pkg/config"
	xhttp "MealSignal/pkg/http"
	pkgkafka "MealSignal/pkg/kafka"
	applogger "MealSignal/pkg/logger"
)

// Ingest groups the optional biosignal ingest path. Both fields are nil when
// ingest is disabled.
type Ingest struct {
	Consumer *pkgkafka.Consumer
	Pipeline *middleware.IngestPipeline
}

type closer struct {
	name string
	fn   func() error
}

type ticker struct {
	name     string
	interval time.Duration
	fn       func()
}

// App owns the process lifecycle: it starts the HTTP server and the ingest
// path, waits for a signal and tears everything down in order.
type App struct {
	cfg     *config.Config
	log     *applogger.Logger
	http    *xhttp.Server
	ingest  *Ingest
	closers []closer
	tickers []ticker
}

// Option customizes an App.
type Option func(*App)

// WithIngest attaches the Kafka consumer and the batching pipeline.
func WithIngest(in *Ingest) Option {
	return func(a *App) { a.ingest = in }
}

// WithCloser registers a resource closed after the servers stop. Closers run
// in registration order.
func WithCloser(name string, fn func() error) Option {
	return func(a *App) {
		if fn != nil {
			a.closers = append(a.closers, closer{name: name, fn: fn})
		}
	}
}

// WithTicker runs fn every interval while the app is up.
func WithTicker(name string, interval time.Duration, fn func()) Option {
	return func(a *App) {
		if interval > 0 && fn != nil {
			a.tickers = append(a.tickers, ticker{name: name, interval: interval, fn: fn})
		}
	}
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, opts ...Option) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{cfg: cfg, log: l, http: srv}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	bg, cancel := context.WithCancel(context.Background())
	defer cancel()

	if in := a.ingest; in != nil && in.Pipeline != nil {
		in.Pipeline.Start(bg)
		if in.Consumer != nil {
			if err := in.Consumer.Start(bg); err != nil {
				a.log.Error("kafka consumer start", applogger.Error(err))
				in.Pipeline.Stop()
				a.close()
				return err
			}
		}
	}

	var wg sync.WaitGroup
	for _, t := range a.tickers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.tick(bg, t)
		}()
	}

	if err := a.http.Start(); err != nil {
		cancel()
		wg.Wait()
		return a.shutdown(err)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case runErr = <-a.http.Err():
		a.log.Error("http server failed", applogger.Error(runErr))
	}

	cancel()
	wg.Wait()
	return a.shutdown(runErr)
}

func (a *App) tick(ctx context.Context, t ticker) {
	tk := time.NewTicker(t.interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			t.fn()
		}
	}
}

// shutdown stops the HTTP server first so no new work arrives, then drains
// the ingest path and closes infrastructure clients.
func (a *App) shutdown(cause error) error {
	a.log.Info("shutting down")

	timeout := 10 * time.Second
	if a.cfg != nil && a.cfg.Server.ShutdownTimeout > 0 {
		timeout = a.cfg.Server.ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.http.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if in := a.ingest; in != nil {
		if in.Consumer != nil {
			if err := in.Consumer.Stop(ctx); err != nil {
				a.log.Warn("kafka consumer stop error", applogger.Error(err))
			}
		}
		if in.Pipeline != nil {
			in.Pipeline.Stop()
		}
	}

	a.close()
	a.log.Info("shutdown complete")
	return cause
}

func (a *App) close() {
	for _, c := range a.closers {
		if err := c.fn(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}
}
