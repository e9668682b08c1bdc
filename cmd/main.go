// Command folio runs the portfolio valuation daemon. It keeps an
// append-only transaction ledger on disk, derives holding state by
// replaying it, and periodically refreshes exchange rates and crypto
// prices from external sources.
//
// Usage:
//
//	folio --config config.yaml
//	folio (uses CLI arguments)
//
// Optional environment variables (a .env file is honored):
//
//	BINANCE_API_KEY, BINANCE_API_SECRET
//	BYBIT_API_KEY, BYBIT_API_SECRET
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/adshao/go-binance/v2"
	"github.com/hirokisan/bybit/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vporoshin/folio/config"
	"github.com/vporoshin/folio/internal"
	"github.com/vporoshin/folio/internal/events"
	eventskafka "github.com/vporoshin/folio/internal/events/kafka"
	"github.com/vporoshin/folio/internal/services/quotes"
	"github.com/vporoshin/folio/internal/services/rates"
	"github.com/vporoshin/folio/internal/storage/book"
	"github.com/vporoshin/folio/internal/storage/ledger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ledgerStore, err := ledger.NewWALStore(cfg.LedgerDir)
	if err != nil {
		logger.Fatal("failed to open transaction ledger", zap.Error(err))
	}
	defer ledgerStore.Close()

	var quoter quotes.Quoter
	switch cfg.QuotePlatform {
	case "binance":
		client := binance.NewClient(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET"))
		quoter = quotes.NewBinanceQuoter(client)
	case "bybit":
		client := bybit.NewClient().WithAuth(os.Getenv("BYBIT_API_KEY"), os.Getenv("BYBIT_API_SECRET"))
		quoter = quotes.NewBybitQuoter(client)
	default:
		logger.Fatal("unsupported quote platform", zap.String("platform", cfg.QuotePlatform))
	}

	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub := eventskafka.NewPublisher(cfg.KafkaBrokers)
		defer kafkaPub.Close()
		publisher = kafkaPub
	}

	holdings := book.New()
	provider := rates.NewProvider(rates.NewHTTPSource(cfg.RateAPIURL), holdings, logger)
	tracker := internal.NewTracker(holdings, ledgerStore, provider, quoter, publisher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("folio started",
		zap.String("ledger_dir", cfg.LedgerDir),
		zap.String("platform", cfg.QuotePlatform),
		zap.Duration("refresh_interval", cfg.RefreshInterval))

	if err := internal.RunRefresher(ctx, tracker, cfg, logger); err != nil && err != context.Canceled {
		logger.Fatal("refresher stopped", zap.Error(err))
	}
	logger.Info("folio stopped")
}
