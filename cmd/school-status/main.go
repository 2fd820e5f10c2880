package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/username/school-status/internal/build"
	"github.com/username/school-status/internal/config"
	"github.com/username/school-status/internal/ics"
	"github.com/username/school-status/internal/status"
	"github.com/username/school-status/internal/store"
	"github.com/username/school-status/internal/validate"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	configPath string
	logger     = zap.NewNop()
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "school-status",
		Short:         "School calendar in-session status",
		Long:          "Resolve whether school is in session for each calendar type, validate the calendar data and build the static API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load config to get log settings
			cfg, err := config.Load(configPath)
			if err == nil && cfg.Log.File != "" {
				logger, err = initFileLogger(cfg.Log.File, cfg.Log.GetLevel())
				if err != nil {
					initLogger("info") // Fallback to console
				}
			} else if err == nil {
				initLogger(cfg.Log.GetLevel())
			} else {
				initLogger("info") // Default console logger
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (searches ./, ~/.school-status, /etc/school-status when empty)")

	rootCmd.AddCommand(
		validateCmd(),
		buildCmd(),
		dayCmd(),
		rangeCmd(),
		exportCmd(),
		serveCmd(),
		daemonCmd(),
		initConfigCmd(),
	)

	return rootCmd
}

// app holds the components shared by the commands
type app struct {
	cfg        *config.Config
	loc        *time.Location
	accessor   *store.Accessor
	resolver   *status.Resolver
	aggregator *status.Aggregator
	validator  *validate.Engine
	exporter   *ics.Exporter
	builder    *build.Builder
}

func initializeApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	logger.Debug("Using calendar data",
		zap.String("data_root", cfg.Data.Root),
		zap.String("timezone", loc.String()))

	var documents store.Store = store.NewFileStore(cfg.Data.Root, logger)
	if cfg.Data.RemoteURL != "" {
		logger.Debug("Using remote calendar data", zap.String("remote_url", cfg.Data.RemoteURL))
		documents = store.NewFallbackStore(
			store.NewHTTPStore(cfg.Data.RemoteURL, cfg.Data.GetHTTPTimeout(), logger),
			documents,
			logger,
		)
	}

	accessor := store.NewAccessor(documents, logger)
	resolver := status.NewResolver(accessor, loc, logger)
	aggregator := status.NewAggregator(resolver, logger)
	exporter := ics.NewExporter(accessor, loc, logger)

	return &app{
		cfg:        cfg,
		loc:        loc,
		accessor:   accessor,
		resolver:   resolver,
		aggregator: aggregator,
		validator:  validate.NewEngine(accessor, loc, logger),
		exporter:   exporter,
		builder: build.NewBuilder(aggregator, exporter, accessor, build.Options{
			OutputRoot: cfg.Output.Root,
			StaticDir:  cfg.Output.StaticDir,
		}, logger),
	}, nil
}

func initLogger(level string) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	var err error
	logger, err = config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
}

func initFileLogger(logFile string, level string) (*zap.Logger, error) {
	// Setup lumberjack for log rotation
	logWriter := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100,  // MB
		MaxBackups: 3,    // Keep max 3 old log files
		MaxAge:     28,   // days
		Compress:   true, // Compress old logs with gzip
	}

	// Setup encoder
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	// Parse log level
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(logWriter),
		zapLevel,
	)

	return zap.New(core), nil
}
