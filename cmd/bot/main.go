package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vitos/crypto_threshold_bot/internal/config"
	"github.com/vitos/crypto_threshold_bot/internal/domain"
	"github.com/vitos/crypto_threshold_bot/internal/infrastructure/backup"
	"github.com/vitos/crypto_threshold_bot/internal/infrastructure/exchange"
	"github.com/vitos/crypto_threshold_bot/internal/infrastructure/logger"
	"github.com/vitos/crypto_threshold_bot/internal/infrastructure/metrics"
	"github.com/vitos/crypto_threshold_bot/internal/infrastructure/storage"
	"github.com/vitos/crypto_threshold_bot/internal/usecase"
	"github.com/vitos/crypto_threshold_bot/internal/web"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "bot",
	Short:         "Percentage-threshold spot trading bot",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the polling loop and the status server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

var checkSettingsCmd = &cobra.Command{
	Use:   "check-settings",
	Short: "Validate every asset settings file",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.LoadSettingsDir(cfg.Trading.SettingsDir)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ASSET\tLOW\tHIGH\tBUY-IN\tMAX-DOWN\tSELL-OUT\tADJ-DOWN\tADJ-UP\tMIN $\tMAX $\tMAX %")
		for _, s := range settings {
			fmt.Fprintf(w, "%s\t%v\t%v\t%v\t%v\t%v\t%v\t%v\t%v\t%v\t%v\n",
				s.ID,
				s.LowPercentageThreshold, s.HighPercentageThreshold,
				s.LowToUpBuyInPercentageThreshold, s.MaxPercentageDown,
				s.HighToDownSellOutPercentageThreshold,
				s.AdjustReferencePriceDownThreshold, s.AdjustReferencePriceUpThreshold,
				s.SmallestAmountToBuyInUSD, s.LargestAmountToBuyInUSD,
				s.MaxPortfolioPercentage,
			)
		}
		return w.Flush()
	},
}

var showBackupCmd = &cobra.Command{
	Use:   "show-backup <asset>",
	Short: "Decode and print the backup record of an asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := backup.NewFileStore(cfg.Trading.BackupDir)
		if err != nil {
			return err
		}
		rec, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Reference Price:        %v\n", rec.ReferencePrice)
		fmt.Fprintf(out, "Last Transaction Price: %v\n", rec.PriceSinceLastTx)
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tAMOUNT\tREFERENCE\tPAID\tSTATE")
		for i, lot := range rec.Lots {
			fmt.Fprintf(w, "%d\t%v\t%v\t%v\t%s\n", i, lot.Amount, lot.ReferencePrice, lot.PricePaid, lot.State)
		}
		return w.Flush()
	},
}

var tradesLimit int

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "Print the most recent journal entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.NewSQLiteStore(cfg.Trading.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		trades, err := store.ListTrades(cmd.Context(), tradesLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tASSET\tSIDE\tUSD\tCOIN\tPRICE\tLAST TX PRICE")
		for _, t := range trades {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%v\t%v\t%v\n",
				t.CreatedAt.Format(time.RFC3339), t.AssetID, t.Side, t.AmountUSD, t.AmountCoin, t.Price, t.PriceSinceLastTx)
		}
		return w.Flush()
	},
}

func run(ctx context.Context) error {
	settings, err := config.LoadSettingsDir(cfg.Trading.SettingsDir)
	if err != nil {
		return err
	}
	assetIDs := make([]string, len(settings))
	for i, s := range settings {
		assetIDs[i] = s.ID
	}

	backups, err := backup.NewFileStore(cfg.Trading.BackupDir)
	if err != nil {
		return fmt.Errorf("no cryptocurrency backup folder: %w", err)
	}

	store, err := storage.NewSQLiteStore(cfg.Trading.DBPath)
	if err != nil {
		return fmt.Errorf("failed to init sqlite: %w", err)
	}
	defer store.Close()

	ex, feed, err := exchange.Build(cfg, assetIDs, log)
	if err != nil {
		return err
	}
	if feed != nil {
		defer feed.Close()
		feed.OnTicker(func(t domain.Ticker) {
			metrics.SetTickerPrice(t.ProductID, t.Price)
		})
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := usecase.NewTradingService(usecase.NewRetryingExchange(ex, log), backups, store, log, cfg.Trading.RecordEveryTicks)
	if err := svc.Init(ctx, settings); err != nil {
		return err
	}

	server := web.NewServer(cfg.Server.Port, store, svc, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	log.Info("Starting trading loop",
		zap.Strings("assets", assetIDs),
		zap.String("exchange", cfg.Exchange.Name),
		zap.Duration("interval", cfg.PollInterval()),
	)
	err = svc.Run(ctx, cfg.PollInterval())

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		log.Error("Server shutdown failed", zap.Error(serr))
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yaml", "config file")
	tradesCmd.Flags().IntVar(&tradesLimit, "limit", 50, "number of trades to print")
	rootCmd.AddCommand(runCmd, checkSettingsCmd, showBackupCmd, tradesCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if errors.Is(err, domain.ErrBackupNotFound) {
			fmt.Fprintln(os.Stderr, "no backup record for that asset")
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
