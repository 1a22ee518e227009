package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/legendiguess/pumpdump-trade-bot/domain"
	"github.com/legendiguess/pumpdump-trade-bot/handlers"
	"github.com/legendiguess/pumpdump-trade-bot/services"
	"github.com/legendiguess/pumpdump-trade-bot/storage"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New()

	settingsPath := os.Getenv("SETTINGS_FILE")
	if settingsPath == "" {
		settingsPath = "settings.yaml"
	}
	settings, err := storage.LoadSettings(settingsPath)
	if err != nil {
		logger.Fatalf("Settings: %v", err)
	}

	level, err := log.ParseLevel(settings.LogLevel)
	if err != nil {
		logger.Fatalf("Settings: %v", err)
	}
	logger.SetLevel(level)

	credentials := storage.NewCredentialsStorage(logger)

	dialector, err := storage.Dialector(settings.Database.Driver, credentials.GetDatabaseDSN())
	if err != nil {
		logger.Fatalf("Database: %v", err)
	}
	store, err := storage.New(dialector)
	if err != nil {
		logger.Fatalf("Database: %v", err)
	}
	defer store.Close()

	venueNames := make([]string, 0, len(settings.Venues))
	for _, venue := range settings.Venues {
		venueNames = append(venueNames, venue.Name)
	}
	ordersService := services.NewOrdersService(store, venueNames)
	telegramBot := services.NewTelegramBot(ordersService, credentials, logger)
	metrics := services.NewMemoryMetrics()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return telegramBot.Run(ctx) })

	for _, venue := range settings.Venues {
		startVenue(ctx, group, venue, store, telegramBot, credentials, metrics, logger)
	}

	server := handlers.NewServer(ordersService, metrics, logger)
	group.Go(func() error { return server.ListenAndServe(ctx, settings.HTTPAddr) })

	if err := group.Wait(); err != nil {
		logger.Errorf("Stopped with error: %v", err)
		os.Exit(1)
	}
	logger.Info("Stopped")
}

// startVenue wires one engine per market family: a trade scheduler and an alert scheduler
// over disjoint order subsets, each with its own baselines.
func startVenue(ctx context.Context, group *errgroup.Group, venue storage.VenueSettings, store *storage.Storage, notifier services.Notifier, credentials *storage.Credentials, metrics *services.MemoryMetrics, logger *log.Logger) {
	venueLogger := logger.WithField("venue", venue.Name)
	clock := services.RealClock{}

	httpClient := services.NewHTTPClient(venue.QuoteURL, venue.GatewayURL, credentials)

	var quoteSource services.QuoteSource = httpClient
	if venue.WebsocketURL != "" {
		websocketClient := services.NewWebsocketClient(venue.WebsocketURL, venueLogger)
		priceFeed := services.NewPriceFeed(httpClient, websocketClient, venue.PriceMaxAge, clock, venueLogger)
		group.Go(func() error { return websocketClient.Run(ctx) })
		group.Go(func() error { return priceFeed.Consume(ctx, websocketClient.GetEventChannel()) })
		quoteSource = priceFeed
	}

	var tradeExecutor services.TradeExecutor = httpClient
	if venue.DryRun {
		venueLogger.Warn("Dry run: trades are filled by the paper executor")
		tradeExecutor = services.NewPaperExecutor(decimal.NewFromFloat(venue.PaperMaxFill))
	}

	executor := services.NewRetryingExecutor(tradeExecutor, notifier, services.ExecutorConfig{
		MaxRetries:   venue.MaxRetries,
		BaseDelay:    venue.BaseDelay,
		MinAmount:    decimal.NewFromFloat(venue.MinAmount),
		TradeTimeout: venue.TradeTimeout,
	}, clock, venueLogger)

	for _, action := range []domain.OrderAction{domain.OrderActionTrade, domain.OrderActionAlert} {
		interval := venue.TradeInterval
		if action == domain.OrderActionAlert {
			interval = venue.AlertInterval
		}

		name := venue.Name + "." + string(action)
		tradeBot := services.NewTradeBot(quoteSource, services.NewBaselineTracker(), executor, notifier, store, venue.QuoteTimeout, venueLogger)
		scheduler := services.NewScheduler(name, store, tradeBot,
			domain.OrderFilter{Venue: venue.Name, Action: action},
			interval, clock, metrics.Scope(name), venueLogger)

		group.Go(func() error { return scheduler.Run(ctx) })
	}
}
