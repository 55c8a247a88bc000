package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/handler"
	"storefront/internal/infra/db"
	"storefront/internal/infra/memory"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/platform/observability"
	"storefront/internal/repository"
	"storefront/internal/scheduler"
	"storefront/internal/server"
	"storefront/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// .env は無くてもよい（本番は環境変数）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tx, err := openStore(cfg, logger)
	if err != nil {
		return err
	}

	//usecaseに渡す部品
	clock := usecase.SystemClock()
	ids := usecase.ULIDGenerator()
	ledger := usecase.NewStockLedger(clock)

	//Usecase生成
	holds := usecase.NewHoldManager(tx, ledger, clock, cfg.HoldTTL, logger)
	orderUC := usecase.NewOrderUsecase(tx, ledger, holds, usecase.NewVoucherValidator(), clock, ids, logger)
	lifecycle := usecase.NewOrderLifecycle(tx, ledger, clock, ids, logger)
	settlement := usecase.NewPaymentSettlement(tx, ledger, clock, logger)
	productUC := usecase.NewProductUsecase(tx, ledger, logger)
	cartUC := usecase.NewCartUsecase(tx, logger)
	adminOrderUC := usecase.NewAdminOrderUsecase(tx, logger)

	//Handler生成
	e := server.New(cfg, logger, server.Handlers{
		Product:        handler.NewProductHandler(productUC),
		Cart:           handler.NewCartHandler(cartUC),
		Checkout:       handler.NewCheckoutHandler(holds, orderUC),
		Order:          handler.NewOrderHandler(orderUC, lifecycle),
		Webhook:        handler.NewWebhookHandler(settlement, cfg.WebhookSecret),
		AdminOrder:     handler.NewAdminOrderHandler(adminOrderUC, lifecycle, clock, cfg.PendingOrderTTL),
		AdminInventory: handler.NewAdminInventoryHandler(productUC),
	})

	sweeper := scheduler.NewSweeper(lifecycle, holds, cfg.SweepInterval, cfg.PendingOrderTTL, logger)
	go sweeper.Run(ctx)

	//Server起動
	return server.Start(ctx, e, cfg.Addr(), logger)
}

func openStore(cfg config.Config, logger *zap.Logger) (repository.TransactionManager, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		store := memory.NewStore()
		seedDemo(store)
		return store, nil
	}

	//DB接続
	gormDB, err := db.Connect(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.RunMigrations {
		if err := db.Migrate(gormDB, logger); err != nil {
			return nil, err
		}
	}
	return infraRepo.NewTxManagerGorm(gormDB), nil
}

// ローカル確認用の最小データ
func seedDemo(store *memory.Store) {
	store.SeedProduct(model.Product{Name: "Kaos Polos", Price: 85000, Stock: 25, IsActive: true})
	shoe := store.SeedProduct(model.Product{Name: "Sepatu Lari", Price: 450000, DiscountPrice: 399000, IsActive: true})
	for _, size := range []string{"40", "41", "42"} {
		store.SeedVariant(model.ProductVariant{ProductID: shoe.ID, Size: size, Stock: 5})
	}
}
