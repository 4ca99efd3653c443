package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pvyield/config"
	"pvyield/internal/api"
	"pvyield/internal/logging"
	"pvyield/internal/mqtt"
	"pvyield/internal/pvwatts"
	"pvyield/internal/storage"
	"pvyield/internal/yield"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const cacheSweepInterval = time.Hour

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pvyield",
		Short: "PV energy yield calculator",
		Long:  "Estimate photovoltaic energy yield with the PVWatts engine, for single arrays and multi-array sites",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(estimateCmd())
	rootCmd.AddCommand(matchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Log.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newEngine builds the PVWatts client, wrapped in the response cache when
// enabled. The returned database is nil without a cache.
func newEngine(cfg *config.Config, logger *zap.Logger) (yield.Engine, *storage.Database, error) {
	client := pvwatts.NewClient(pvwatts.ClientConfig{
		BaseURL:         cfg.Engine.BaseURL,
		APIKey:          cfg.Engine.APIKey,
		Timeout:         cfg.Engine.Timeout,
		BreakerFailures: cfg.Engine.BreakerFailures,
		BreakerCooldown: cfg.Engine.BreakerCooldown,
		Logger:          logger.Named("pvwatts"),
	})
	if !cfg.Cache.Enabled {
		return client, nil, nil
	}

	db, err := storage.NewDatabase(cfg.Cache.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	logger.Info("Engine cache opened", zap.String("path", cfg.Cache.Path), zap.Duration("ttl", cfg.Cache.TTL))
	return storage.NewCachedEngine(client, db, cfg.Cache.TTL, logger.Named("cache")), db, nil
}

func newCalculator(cfg *config.Config, engine yield.Engine, logger *zap.Logger) (*yield.Calculator, error) {
	calc, err := yield.NewCalculator(engine, cfg.Options(), logger.Named("yield"))
	if err != nil {
		return nil, fmt.Errorf("invalid model configuration: %w", err)
	}
	calc.SetConcurrency(cfg.Engine.Concurrency)
	return calc, nil
}

func sweepCache(ctx context.Context, db *storage.Database, maxAge time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(cacheSweepInterval)
	defer ticker.Stop()

	for {
		removed, err := db.CleanExpired(maxAge)
		if err != nil {
			logger.Warn("Cache sweep failed", zap.Error(err))
		} else if removed > 0 {
			logger.Info("Expired cache entries removed", zap.Int64("removed", removed))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the calculation service",
		Long:  "Start the HTTP API, the engine cache and the MQTT result publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if !cfg.API.Enabled {
				return errors.New("nothing to serve: api.enabled is false")
			}
			if cfg.Engine.APIKey == "" {
				logger.Warn("No engine API key configured; simulations will be rejected upstream")
			}

			engine, db, err := newEngine(cfg, logger)
			if err != nil {
				return err
			}

			// Setup context for graceful shutdown
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var cache api.CacheStatter
			if db != nil {
				defer db.Close()
				cache = db
				if cfg.Cache.TTL > 0 {
					go sweepCache(ctx, db, cfg.Cache.TTL, logger.Named("cache"))
				}
			}

			calc, err := newCalculator(cfg, engine, logger)
			if err != nil {
				return err
			}

			publisher, err := mqtt.NewPublisher(mqtt.PublisherConfig{
				Broker:      cfg.MQTT.Broker,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				Enabled:     cfg.MQTT.Enabled,
			}, logger.Named("mqtt"))
			if err != nil {
				logger.Warn("MQTT connection failed, results will not be published", zap.Error(err))
				publisher, _ = mqtt.NewPublisher(mqtt.PublisherConfig{Enabled: false}, nil)
			}
			defer publisher.Close()

			server := api.NewServer(api.ServerConfig{
				Port:       cfg.API.Port,
				Calculator: calc,
				Losses:     cfg.LossParameters(),
				Publisher:  publisher,
				Cache:      cache,
				Timeout:    cfg.Engine.Timeout * 2,
				Logger:     logger.Named("api"),
			})

			// Handle signals
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			serveErr := make(chan error, 1)
			go func() {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()

			logger.Info("pvyield started. Press Ctrl+C to stop.")

			select {
			case <-sigChan:
			case err := <-serveErr:
				return fmt.Errorf("API server error: %w", err)
			}

			logger.Info("Shutting down...")
			cancel()
			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			return server.Stop(shutdownCtx)
		},
	}
}

// loadProject reads a site description with its own viper instance so the
// project file never mixes with the service configuration.
func loadProject(path string) (*api.SiteRequest, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}

	var project api.SiteRequest
	if err := v.Unmarshal(&project); err != nil {
		return nil, fmt.Errorf("failed to decode project: %w", err)
	}
	return &project, nil
}

func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}

func simulateCmd() *cobra.Command {
	var (
		projectFile string
		analytic    bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate a project file",
		Long:  "Run the yield calculation for the site described in a project file and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			project, err := loadProject(projectFile)
			if err != nil {
				return err
			}
			in, err := project.Input(cfg.LossParameters())
			if err != nil {
				return err
			}

			if analytic {
				if len(in.Arrays) != 1 {
					return fmt.Errorf("analytic estimates take exactly one array, project has %d", len(in.Arrays))
				}
				calc, err := newCalculator(cfg, nil, logger)
				if err != nil {
					return err
				}
				result, err := calc.Estimate(yield.SystemInput{
					Location: in.Location,
					Array:    in.Arrays[0],
					Module:   in.Module,
					Inverter: in.Inverter,
					Losses:   in.Losses,
				})
				if err != nil {
					return err
				}
				return printJSON(result)
			}

			engine, db, err := newEngine(cfg, logger)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}
			calc, err := newCalculator(cfg, engine, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := calc.CalculateSite(ctx, in)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVarP(&projectFile, "project", "p", "", "project file (yaml or json)")
	cmd.Flags().BoolVar(&analytic, "analytic", false, "use the built-in approximate model instead of the engine")
	cmd.MarkFlagRequired("project")
	return cmd
}

func estimateCmd() *cobra.Command {
	var lat, tilt, azimuth float64

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Approximate plane-of-array irradiation",
		Long:  "Print an approximate monthly irradiation curve for a location and orientation without calling the engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			if lat < -90 || lat > 90 {
				return fmt.Errorf("latitude %v out of range", lat)
			}
			if !cmd.Flags().Changed("tilt") {
				tilt = yield.OptimalTilt(lat)
			}
			if !cmd.Flags().Changed("azimuth") {
				azimuth = yield.OptimalAzimuth(lat)
			}

			monthly := yield.EstimateIrradiation(lat, tilt, azimuth)
			var total float64
			fmt.Printf("Approximate irradiation at %.2f° (tilt %.1f°, azimuth %.1f° %s)\n",
				lat, tilt, azimuth, yield.AzimuthDirection(azimuth))
			for _, m := range monthly {
				fmt.Printf("  %s  %8.1f kWh/m²\n", m.Month, m.Value)
				total += m.Value
			}
			fmt.Printf("  Year %8.1f kWh/m²\n", total)
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "site latitude in degrees")
	cmd.Flags().Float64Var(&tilt, "tilt", 0, "array tilt in degrees (default: optimal for the latitude)")
	cmd.Flags().Float64Var(&azimuth, "azimuth", 0, "array azimuth in degrees clockwise from north (default: equator facing)")
	cmd.MarkFlagRequired("lat")
	return cmd
}

func matchCmd() *cobra.Command {
	var efficiency float64

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match a module efficiency to an engine module class",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if !(efficiency > 0) {
				return fmt.Errorf("efficiency must be positive, got %v", efficiency)
			}

			matcher, err := yield.NewMatcher(cfg.Options().ModuleClasses)
			if err != nil {
				return err
			}
			m := matcher.Match(efficiency)
			fmt.Printf("Efficiency:        %.2f%%\n", m.EfficiencyPercent)
			fmt.Printf("Module class:      %s (%d, %.1f%%)\n", m.ClassName, m.ClassID, m.ClassEfficiencyPercent)
			fmt.Printf("Adjustment factor: %.4f\n", m.AdjustmentFactor)
			return nil
		},
	}

	cmd.Flags().Float64Var(&efficiency, "efficiency", 0, "module efficiency as a fraction or percentage")
	cmd.MarkFlagRequired("efficiency")
	return cmd
}
