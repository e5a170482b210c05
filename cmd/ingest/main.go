package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/trandminh/quote-ingest/internal/alerts"
	"github.com/trandminh/quote-ingest/internal/api"
	"github.com/trandminh/quote-ingest/internal/auth"
	"github.com/trandminh/quote-ingest/internal/config"
	"github.com/trandminh/quote-ingest/internal/feed"
	"github.com/trandminh/quote-ingest/internal/observ"
	"github.com/trandminh/quote-ingest/internal/quotes"
	"github.com/trandminh/quote-ingest/internal/sched"
	"github.com/trandminh/quote-ingest/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Secrets come from the environment; .env is optional sugar for local runs.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := observ.Init(cfg.Debug); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer observ.Sync()

	loc, err := time.LoadLocation(cfg.Session.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Session.Timezone, err)
	}

	ctx := context.Background()
	mongoClient, err := store.Connect(ctx, cfg.Mongo.URL)
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()
	db := mongoClient.Database(cfg.Mongo.Database)

	var sink alerts.Sender = alerts.LogSender{}
	if cfg.Alerts.Enabled {
		sink = alerts.NewMailer(alerts.MailerConfig{
			Host:          cfg.Alerts.SMTPHost,
			Port:          cfg.Alerts.SMTPPort,
			Username:      cfg.Alerts.SMTPUser,
			Password:      cfg.Alerts.SMTPPassword,
			From:          cfg.Alerts.From,
			Recipients:    cfg.Alerts.Recipients,
			SubjectPrefix: cfg.Alerts.SubjectPrefix,
		})
	}
	limiter := alerts.NewLimiter(sink)

	creds := auth.NewService(auth.Config{
		AuthURL:    cfg.Auth.AuthURL,
		MeURL:      cfg.Auth.MeURL,
		Username:   cfg.Auth.Username,
		Password:   cfg.Auth.Password,
		Timeout:    time.Duration(cfg.Auth.TimeoutMs) * time.Millisecond,
		ExpirySkew: time.Duration(cfg.Auth.ExpirySkewS) * time.Second,
	}, store.NewCredentials(db))

	cache := quotes.NewCache(time.Duration(cfg.Cache.TTLSeconds) * time.Second)
	router := quotes.NewRouter(store.NewQuotes(db), store.NewSummaries(db), cache)

	manager := feed.NewManager(feed.ManagerConfig{
		BrokerURL:        cfg.Broker.URL,
		Topic:            cfg.Broker.Topic,
		ClientID:         cfg.Broker.ClientID,
		ReconnectFloor:   time.Duration(cfg.Feed.ReconnectFloorMs) * time.Millisecond,
		ReconnectCeiling: time.Duration(cfg.Feed.ReconnectCeilingMs) * time.Millisecond,
		ConnectTimeout:   time.Duration(cfg.Feed.ConnectTimeoutMs) * time.Millisecond,
		Location:         loc,
	}, creds, limiter, router, feed.PahoDialer{})

	watchdog := feed.NewWatchdog(manager, limiter,
		time.Duration(cfg.Feed.WatchdogIntervalSecs)*time.Second,
		time.Duration(cfg.Feed.WatchdogGapSecs)*time.Second)

	scheduler := sched.New(loc)
	sessionOpen := func() { manager.Connect(context.Background()) }
	sessionClose := func() { manager.End() }
	jobs := []struct {
		spec, name string
		job        func()
	}{
		{"0 9 * * 1-5", "session_open_morning", sessionOpen},
		{"30 11 * * 1-5", "session_close_morning", sessionClose},
		{"0 13 * * 1-5", "session_open_afternoon", sessionOpen},
		{"30 15 * * 1-5", "session_close_afternoon", sessionClose},
		{cfg.Cache.SweepCron, "cache_sweep", func() { cache.Sweep() }},
	}
	for _, j := range jobs {
		if err := scheduler.Add(j.spec, j.name, j.job); err != nil {
			return err
		}
	}

	// If the process starts mid-session, connect right away; the watchdog is
	// session-gated internally, so it simply runs for the process lifetime.
	if manager.InSession() {
		manager.Connect(ctx)
	}
	watchdog.Start()
	scheduler.Start()

	server := api.New(store.NewSummaries(db), cache, manager)
	go func() {
		if err := server.Run(cfg.API.Addr); err != nil {
			observ.Error("api_server_stopped", err, nil)
		}
	}()

	observ.Log("ingest_started", map[string]any{
		"broker":   cfg.Broker.URL,
		"topic":    cfg.Broker.Topic,
		"timezone": cfg.Session.Timezone,
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	observ.Log("ingest_stopping", map[string]any{})
	scheduler.Stop()
	watchdog.Stop()
	manager.End()
	return nil
}
