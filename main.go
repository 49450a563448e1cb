package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openshelf/openshelf/circulation"
	"github.com/openshelf/openshelf/config"
	"github.com/openshelf/openshelf/log"
	"github.com/openshelf/openshelf/search"
	"github.com/openshelf/openshelf/server"
	"github.com/openshelf/openshelf/store"
	"github.com/openshelf/openshelf/store/db"
	"github.com/openshelf/openshelf/worker"
)

const (
	greetingBanner = `
 ██████  ██████  ███████ ███    ██ ███████ ██   ██ ███████ ██      ███████
██    ██ ██   ██ ██      ████   ██ ██      ██   ██ ██      ██      ██
██    ██ ██████  █████   ██ ██  ██ ███████ ███████ █████   ██      █████
██    ██ ██      ██      ██  ██ ██      ██ ██   ██ ██      ██      ██
 ██████  ██      ███████ ██   ████ ███████ ██   ██ ███████ ███████ ██
`
)

var (
	configFile string

	rootCmd = &cobra.Command{
		Use:   "openshelf",
		Short: "OpenShelf is a library circulation system",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, circulationService, searchService, closeDB := mustSetup(ctx)
			defer closeDB()

			fmt.Print(greetingBanner)
			httpServer, err := server.StartServer(ctx, s, searchService, circulationService)
			if err != nil {
				log.Error("Error starting server", zap.Error(err))
				return
			}

			<-ctx.Done()
			log.Info("Shutting down")
			if err := httpServer.Shutdown(context.Background()); err != nil {
				log.Error("Error shutting down server", zap.Error(err))
			}
		},
	}

	updateFinesDate string

	updateFinesCmd = &cobra.Command{
		Use:   "update-fines",
		Short: "Recompute fines for every overdue loan",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			_, circulationService, _, closeDB := mustSetup(ctx)
			defer closeDB()

			if err := circulationService.UpdateFines(updateFinesDate); err != nil {
				log.Error("Error updating fines", zap.Error(err))
				os.Exit(1)
			}
		},
	}
)

// mustSetup loads configuration, opens and migrates the database, and builds
// the services. It exits the process on failure.
func mustSetup(ctx context.Context) (*store.Store, *circulation.Service, *search.Service, func()) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("Error loading .env file", zap.Error(err))
	}

	if _, err := config.LoadOptions(configFile); err != nil {
		log.Error("Error loading config", zap.Error(err))
		os.Exit(1)
	}
	log.Logger = log.NewLogger()

	rate, err := decimal.NewFromString(config.Opts.DailyFineRate)
	if err != nil {
		log.Error("Invalid daily_fine_rate", zap.String("value", config.Opts.DailyFineRate), zap.Error(err))
		os.Exit(1)
	}

	d, err := db.NewDB(config.Opts.DSN)
	if err != nil {
		log.Error("Error connecting to database", zap.Error(err))
		os.Exit(1)
	}
	if err := d.Migrate(ctx); err != nil {
		d.Close()
		log.Error("Error migrating database", zap.Error(err))
		os.Exit(1)
	}

	s := store.NewStore(d)
	if err := s.Ping(); err != nil {
		d.Close()
		log.Error("Error pinging database", zap.Error(err))
		os.Exit(1)
	}

	pool := worker.NewFineUpdatePool(s, config.Opts.WorkerPoolSize)
	circulationService := circulation.NewService(s, pool, circulation.Config{
		LoanPeriodDays: config.Opts.LoanPeriodDays,
		MaxActiveLoans: config.Opts.MaxActiveLoans,
		DailyRate:      rate,
	})
	searchService := search.NewService(s)

	return s, circulationService, searchService, func() {
		d.Close()
		log.Logger.Sync()
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	updateFinesCmd.Flags().StringVar(&updateFinesDate, "date", "", "reference date (YYYY-MM-DD), defaults to today")
	rootCmd.AddCommand(updateFinesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("Command failed", zap.Error(err))
		os.Exit(1)
	}
}
