package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"curvesync/internal/chain"
	"curvesync/internal/config"
	"curvesync/internal/curve"
	"curvesync/internal/engine"
	"curvesync/internal/oracle"
	"curvesync/internal/reconciler"
	"curvesync/internal/refresher"
	"curvesync/internal/scanner"
	"curvesync/internal/storage"
	"curvesync/internal/storage/memory"
	"curvesync/internal/storage/migrations"
	pgstore "curvesync/internal/storage/postgres"
	"curvesync/internal/subscriber"
)

func main() {
	mode := flag.String("mode", "live", "Mode: live, backfill, trades, refresh, or import")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Execution-layer JSON-RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", "", "Execution-layer WebSocket endpoint")
	factoryAddr := flag.String("factory", "", "Token-launch factory contract address")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	token := flag.String("token", "", "Token address for trades/refresh/import modes")
	fromBlock := flag.Uint64("from-block", 0, "Start block for backfill/trades")
	toBlock := flag.Uint64("to-block", 0, "End block for backfill (0 = chain head)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")

	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.Load()
	if *rpcEndpoint == "" {
		*rpcEndpoint = cfg.RPCEndpoint
	}
	if *wsEndpoint == "" {
		*wsEndpoint = cfg.WSEndpoint
	}
	if *factoryAddr == "" {
		*factoryAddr = cfg.FactoryAddress
	}
	if *postgresDSN == "" {
		*postgresDSN = cfg.DatabaseURL
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-done:
			return
		}

		// A second signal forces exit; otherwise wait out the grace period.
		select {
		case <-sigCh:
			logger.Warn("received second signal, forcing exit")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, logger, cfg, runOptions{
		mode:        *mode,
		rpcEndpoint: *rpcEndpoint,
		wsEndpoint:  *wsEndpoint,
		factoryAddr: *factoryAddr,
		postgresDSN: *postgresDSN,
		token:       *token,
		fromBlock:   *fromBlock,
		toBlock:     *toBlock,
		useMemory:   *useMemory,
	})
	close(done)

	if err != nil && err != context.Canceled {
		logger.Fatal("run failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

type runOptions struct {
	mode        string
	rpcEndpoint string
	wsEndpoint  string
	factoryAddr string
	postgresDSN string
	token       string
	fromBlock   uint64
	toBlock     uint64
	useMemory   bool
}

func run(ctx context.Context, logger *zap.Logger, cfg *config.Config, opts runOptions) error {
	if opts.rpcEndpoint == "" {
		return fmt.Errorf("--rpc-endpoint (or RPC_ENDPOINT) is required")
	}
	if opts.factoryAddr == "" {
		return fmt.Errorf("--factory (or FACTORY_ADDRESS) is required")
	}
	if !opts.useMemory && opts.postgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	client := chain.NewHTTPClient(opts.rpcEndpoint, chain.WithLogger(logger))

	var tokens storage.TokenStore = memory.NewTokenStore()
	var users storage.UserStore = memory.NewUserStore()
	var trades storage.TradeStore = memory.NewTradeStore()
	var checkpoints storage.CheckpointStore = memory.NewCheckpointStore()

	if !opts.useMemory {
		pool, err := pgstore.NewPool(ctx, opts.postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}

		tokens = pgstore.NewTokenStore(pool)
		users = pgstore.NewUserStore(pool)
		trades = pgstore.NewTradeStore(pool)
		checkpoints = pgstore.NewCheckpointStore(pool)
	}

	priceOracle := oracle.NewAdapter(oracle.Options{
		PrimaryURL:   cfg.PriceAPIURL,
		AssetID:      cfg.PriceAssetID,
		SecondaryURL: cfg.PriceFallbackURL,
		Logger:       logger.Named("oracle"),
	})

	scan := scanner.New(scanner.Options{
		Client:    client,
		ChunkSize: cfg.ScanChunkSize,
		Pacing:    cfg.ScanPacing,
		Logger:    logger.Named("scanner"),
	})

	var ws chain.Subscriber
	if opts.mode == "live" {
		if opts.wsEndpoint == "" {
			return fmt.Errorf("--ws-endpoint (or WS_ENDPOINT) is required for live mode")
		}
		wsClient, err := chain.NewWSClient(ctx, opts.wsEndpoint, nil)
		if err != nil {
			return fmt.Errorf("create websocket client: %w", err)
		}
		defer wsClient.Close()
		ws = wsClient
	}

	eng := engine.New(engine.Options{
		Refresher: refresher.New(refresher.Options{
			Factory: curve.NewFactory(opts.factoryAddr, client),
			Client:  client,
			Oracle:  priceOracle,
			Tokens:  tokens,
			Users:   users,
			Trades:  trades,
			Logger:  logger.Named("refresher"),
		}),
		Reconciler: reconciler.New(reconciler.Options{
			Client:      client,
			Scanner:     scan,
			Tokens:      tokens,
			Trades:      trades,
			Users:       users,
			Checkpoints: checkpoints,
			Logger:      logger.Named("reconciler"),
		}),
		Subscriber: subscriber.New(subscriber.Options{
			WS:          ws,
			Client:      client,
			FactoryAddr: opts.factoryAddr,
			Scanner:     scan,
			Oracle:      priceOracle,
			Tokens:      tokens,
			Users:       users,
			Checkpoints: checkpoints,
			Logger:      logger.Named("subscriber"),
		}),
		Logger: logger,
	})

	switch opts.mode {
	case "live":
		if err := eng.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		eng.Stop()
		return nil

	case "backfill":
		to := opts.toBlock
		if to == 0 {
			head, err := client.BlockNumber(ctx)
			if err != nil {
				return fmt.Errorf("read chain head: %w", err)
			}
			to = head
		}
		result, err := eng.SyncBlockRange(ctx, opts.fromBlock, to)
		if err != nil {
			return err
		}
		logger.Info("backfill complete",
			zap.Int("chunks", result.ChunksTotal),
			zap.Int("chunks_failed", result.ChunksFailed),
			zap.Int("logs_handled", result.LogsHandled),
			zap.Duration("duration", result.Duration))
		return nil

	case "trades":
		if opts.token == "" {
			return fmt.Errorf("--token is required for trades mode")
		}
		result, err := eng.SyncTokenTrades(ctx, opts.token, opts.fromBlock)
		if err != nil {
			return err
		}
		logger.Info("trade sync complete",
			zap.Int("logs_handled", result.LogsHandled),
			zap.Int("logs_skipped", result.LogsSkipped))
		return nil

	case "refresh":
		if opts.token == "" {
			return fmt.Errorf("--token is required for refresh mode")
		}
		_, err := eng.UpdateTokenData(ctx, opts.token)
		return err

	case "import":
		if opts.token == "" {
			return fmt.Errorf("--token is required for import mode")
		}
		_, err := eng.ImportToken(ctx, opts.token)
		return err

	default:
		return fmt.Errorf("unknown mode: %s", opts.mode)
	}
}
