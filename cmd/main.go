package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"kassa/internal/config"
	httpapi "kassa/internal/http"
	"kassa/internal/logging"
	"kassa/internal/metrics"
	"kassa/internal/repository"
	"kassa/internal/service"

	_ "kassa/docs"
)

// @title kassa API
// @version 1.0
// @description Point-of-sale inventory and order backend.
// @BasePath /api/v1
func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	var (
		clientsRepo   repository.ClientRepository
		productsRepo  repository.ProductRepository
		inventoryRepo repository.InventoryRepository
		ordersRepo    repository.OrderRepository
		itemsRepo     repository.OrderItemRepository
		invoicesRepo  repository.InvoiceRepository
		tx            repository.TxManager
	)

	if cfg.DatabaseURL != "" {
		pg, err := repository.NewPGStore(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatal("connect postgres", zap.Error(err))
		}
		defer func() { _ = pg.Close() }()
		clientsRepo = repository.NewPGClients(pg)
		productsRepo = repository.NewPGProducts(pg)
		inventoryRepo = repository.NewPGInventory(pg)
		ordersRepo = repository.NewPGOrders(pg)
		itemsRepo = repository.NewPGOrderItems(pg)
		invoicesRepo = repository.NewPGInvoices(pg)
		tx = pg
		log.Info("using postgres store")
	} else {
		store := repository.NewMemoryStore()
		clientsRepo = repository.NewMemoryClients(store)
		productsRepo = store
		inventoryRepo = repository.NewMemoryInventory(store)
		ordersRepo = repository.NewMemoryOrders(store)
		itemsRepo = repository.NewMemoryOrderItems(store)
		invoicesRepo = repository.NewMemoryInvoices(store)
		tx = repository.NewMemoryTx(store)
		log.Info("using in-memory store")
	}

	catalog := service.NewCatalogGateway(productsRepo, clientsRepo)
	ledger := service.NewStockLedger(inventoryRepo, tx, log)
	itemMgr := service.NewOrderItemManager(catalog, ledger, ordersRepo, itemsRepo, inventoryRepo, tx, log)
	lifecycle := service.NewOrderLifecycle(catalog, itemMgr, ordersRepo, itemsRepo, tx, log)

	srv := httpapi.NewServer(httpapi.Deps{
		Clients:  service.NewClientService(clientsRepo, log),
		Products: service.NewProductService(productsRepo, inventoryRepo, itemsRepo, catalog, ledger, tx, log),
		Ledger:   ledger,
		Orders:   lifecycle,
		Items:    itemMgr,
		Invoices: service.NewInvoiceService(lifecycle, invoicesRepo, tx, log),
		Metrics:  metrics.New(),
		Log:      log,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Engine(),
		ReadTimeout:  config.DefaultReadTimeout,
		WriteTimeout: config.DefaultWriteTimeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}
