package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/brightlawyers/courier/internal/app"
	"github.com/brightlawyers/courier/internal/genai"
	"github.com/brightlawyers/courier/internal/store"
	"github.com/brightlawyers/courier/internal/util"
	"github.com/brightlawyers/courier/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for courier state data
	DefaultStateDir = "/var/lib/courier"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "courier.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Build module options
	waOpts := buildWhatsAppOptions(flags)
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	appOpts := buildAppOptions(flags)

	slog.Info("Bootstrapping courier with configured modules")
	slog.Debug("Module options counts", "whatsapp", len(waOpts), "store", len(storeOpts), "genai", len(genaiOpts), "app", len(appOpts))
	if err := app.Run(waOpts, storeOpts, genaiOpts, appOpts); err != nil {
		slog.Error("Courier failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Courier exited successfully")
}

// Config holds environment configuration
type Config struct {
	DbDriver        string
	DatabaseDSN     string
	StateDir        string
	OpenAIKey       string
	OpenAIModel     string
	Transport       string
	CountryPrefix   string
	RulesPath       string
	DispatchCron    string
	SessionCapacity int
	Sequential      bool
	TenantCalID     string
	TenantCalToken  string
	DefaultCalID    string
	DefaultCalToken string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput      *string
	numeric       *bool
	stateDir      *string
	dbDriver      *string
	dbDSN         *string
	openaiKey     *string
	openaiModel   *string
	transport     *string
	countryPrefix *string
	rulesPath     *string
	dispatchCron  *string
	sessionCap    *int
	sequential    *bool
	config        Config
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DbDriver:        os.Getenv("COURIER_DB_DRIVER"),
		DatabaseDSN:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("COURIER_STATE_DIR"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     os.Getenv("OPENAI_MODEL"),
		Transport:       util.GetenvDefault("COURIER_TRANSPORT", "whatsmeow"),
		CountryPrefix:   os.Getenv("COURIER_COUNTRY_PREFIX"),
		RulesPath:       os.Getenv("COURIER_RULES_PATH"),
		DispatchCron:    os.Getenv("COURIER_DISPATCH_CRON"),
		SessionCapacity: util.ParseIntEnv("COURIER_SESSION_CAPACITY", 0),
		Sequential:      util.ParseBoolEnv("COURIER_SEQUENTIAL_INTAKE", false),
		TenantCalID:     os.Getenv("TENANT_CALENDAR_ID"),
		TenantCalToken:  os.Getenv("TENANT_CALENDAR_TOKEN"),
		DefaultCalID:    os.Getenv("DEFAULT_CALENDAR_ID"),
		DefaultCalToken: os.Getenv("DEFAULT_CALENDAR_TOKEN"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No COURIER_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}

	slog.Debug("environment variables loaded",
		"COURIER_DB_DRIVER", config.DbDriver,
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"COURIER_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"COURIER_TRANSPORT", config.Transport,
		"COURIER_DISPATCH_CRON", config.DispatchCron,
		"TENANT_CALENDAR_SET", config.TenantCalID != "",
		"DEFAULT_CALENDAR_SET", config.DefaultCalID != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:      flag.String("qr-output", "", "path to write login QR code"),
		numeric:       flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for courier data (overrides $COURIER_STATE_DIR)"),
		dbDriver:      flag.String("db-driver", config.DbDriver, "database driver for WhatsApp session store (overrides $COURIER_DB_DRIVER)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseDSN, "database DSN (overrides $DATABASE_URL)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel:   flag.String("openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		transport:     flag.String("transport", config.Transport, "messaging transport: whatsmeow or twilio (overrides $COURIER_TRANSPORT)"),
		countryPrefix: flag.String("country-prefix", config.CountryPrefix, "default country prefix for phone normalization (overrides $COURIER_COUNTRY_PREFIX)"),
		rulesPath:     flag.String("rules-path", config.RulesPath, "path to classifier rules YAML (overrides $COURIER_RULES_PATH)"),
		dispatchCron:  flag.String("dispatch-cron", config.DispatchCron, "cron expression driving alert dispatch instead of interval polling (overrides $COURIER_DISPATCH_CRON)"),
		sessionCap:    flag.Int("session-capacity", config.SessionCapacity, "max tracked contact sessions, 0 for default (overrides $COURIER_SESSION_CAPACITY)"),
		sequential:    flag.Bool("sequential-intake", config.Sequential, "ask intake questions one at a time (overrides $COURIER_SEQUENTIAL_INTAKE)"),
		config:        config,
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDriver", *flags.dbDriver,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"transport", *flags.transport,
		"dispatchCron", *flags.dispatchCron,
		"sessionCap", *flags.sessionCap,
		"sequential", *flags.sequential)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseDSN && config.DatabaseDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.dbDriver != "" {
		waOpts = append(waOpts, whatsapp.WithDBDriver(*flags.dbDriver))
	}
	if *flags.dbDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.dbDSN))
	}
	return waOpts
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	return genaiOpts
}

// buildAppOptions constructs application-level configuration options
func buildAppOptions(flags Flags) []app.Option {
	var appOpts []app.Option
	if strings.EqualFold(*flags.transport, "twilio") {
		appOpts = append(appOpts, app.WithTwilioTransport())
	}
	if *flags.countryPrefix != "" {
		appOpts = append(appOpts, app.WithCountryPrefix(*flags.countryPrefix))
	}
	if *flags.rulesPath != "" {
		appOpts = append(appOpts, app.WithRulesPath(*flags.rulesPath))
	}
	if *flags.dispatchCron != "" {
		appOpts = append(appOpts, app.WithDispatchCron(*flags.dispatchCron))
	}
	if *flags.sessionCap > 0 {
		appOpts = append(appOpts, app.WithSessionCapacity(*flags.sessionCap))
	}
	if *flags.sequential {
		appOpts = append(appOpts, app.WithSequentialDefault())
	}
	if flags.config.TenantCalID != "" {
		appOpts = append(appOpts, app.WithTenantCalendar(flags.config.TenantCalID, flags.config.TenantCalToken))
	}
	if flags.config.DefaultCalID != "" {
		appOpts = append(appOpts, app.WithDefaultCalendar(flags.config.DefaultCalID, flags.config.DefaultCalToken))
	}
	return appOpts
}
