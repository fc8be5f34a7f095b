package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/oarkflow/squealx"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/oarkflow/recordperm"
	"github.com/oarkflow/recordperm/logger"
	"github.com/oarkflow/recordperm/stores"
)

// settings are read from RECORDPERM_* environment variables
type settings struct {
	Timezone  string `envconfig:"TIMEZONE"`
	Locale    string `envconfig:"LOCALE" default:"en"`
	SQLiteDSN string `envconfig:"SQLITE_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`
	RedisKey  string `envconfig:"REDIS_KEY" default:"recordperm:profiles"`
	AdminAddr string `envconfig:"ADMIN_ADDR" default:":8089"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"phuslu"`
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var env settings
	if err := envconfig.Process("recordperm", &env); err != nil {
		fmt.Printf("Error reading environment: %v\n", err)
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "apply":
		handleApply(env)
	case "check":
		handleCheck(env, false)
	case "explain":
		handleCheck(env, true)
	case "serve":
		handleServe(env)
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("recordperm - record edit/delete permission tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  recordperm convert <input> <output>                 - Convert between formats")
	fmt.Println("  recordperm validate <file>                          - Validate configuration")
	fmt.Println("  recordperm stats <file>                             - Show configuration statistics")
	fmt.Println("  recordperm apply <file>                             - Store profiles in the configured backend")
	fmt.Println("  recordperm check <profile> <record.json> <user.json> - Evaluate one request (exit 2 when denied)")
	fmt.Println("  recordperm explain <profile> <record.json> <user.json> - Evaluate with a rule trace")
	fmt.Println("  recordperm serve                                    - Run the admin HTTP API")
	fmt.Println()
	fmt.Println("Supported formats: .rp, .dsl, .yaml, .yml, .json")
	fmt.Println("Environment: RECORDPERM_TIMEZONE, RECORDPERM_LOCALE, RECORDPERM_SQLITE_DSN,")
	fmt.Println("             RECORDPERM_REDIS_ADDR, RECORDPERM_REDIS_KEY, RECORDPERM_ADMIN_ADDR, RECORDPERM_LOG_FORMAT")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: recordperm convert <input> <output>")
		os.Exit(1)
	}

	inputFile := os.Args[2]
	outputFile := os.Args[3]

	cfg, err := loadConfig(inputFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := saveConfig(cfg, outputFile); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Converted %s -> %s\n", inputFile, outputFile)
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: recordperm validate <file>")
		os.Exit(1)
	}

	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Version: %d\n", cfg.Version)
	fmt.Printf("  Profiles: %d\n", len(cfg.Profiles))
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: recordperm stats <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	stat, _ := os.Stat(filename)

	fmt.Println("Configuration Statistics")
	fmt.Println("========================")
	if stat != nil {
		fmt.Printf("File size: %d bytes\n", stat.Size())
	}
	fmt.Printf("Version: %d\n", cfg.Version)
	if cfg.Locale != "" {
		fmt.Printf("Locale: %s\n", cfg.Locale)
	}
	if cfg.Timezone != "" {
		fmt.Printf("Timezone: %s\n", cfg.Timezone)
	}
	fmt.Println()

	edits, deletes := 0, 0
	for _, p := range cfg.Profiles {
		if p.Action == recordperm.ActionEdit {
			edits++
		} else {
			deletes++
		}
	}
	fmt.Println("Profiles:")
	fmt.Printf("  Edit profiles:   %d\n", edits)
	fmt.Printf("  Delete profiles: %d\n", deletes)
	for _, p := range cfg.Profiles {
		rc := p.Config()
		fmt.Printf("  %-24s %-6s %sh roles=%s\n", p.Name, p.Action,
			formatLimit(rc), strings.Join(rc.AllowedRoles, ","))
	}
	fmt.Println()

	eng := cfg.Engine
	fmt.Println("Engine Configuration:")
	fmt.Printf("  Profile cache TTL:   %dms\n", eng.ProfileCacheTTL)
	fmt.Printf("  Profile cache cost:  %d\n", eng.ProfileCacheMaxCost)
	fmt.Printf("  Audit buffer size:   %d\n", eng.AuditBufferSize)
	fmt.Printf("  Batch worker count:  %d\n", eng.BatchWorkerCount)
}

func formatLimit(rc recordperm.RuleConfig) string {
	if !rc.CheckTime {
		return "-"
	}
	return fmt.Sprintf("%g", rc.HoursLimit)
}

func handleApply(env settings) {
	if len(os.Args) < 3 {
		fmt.Println("Usage: recordperm apply <file>")
		os.Exit(1)
	}

	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	engine, closeFn, err := newEngine(env)
	if err != nil {
		fmt.Printf("Error creating engine: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	if err := engine.ApplyConfig(context.Background(), cfg); err != nil {
		fmt.Printf("Error applying config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration applied successfully\n")
	fmt.Printf("  Profiles stored: %d\n", len(cfg.Profiles))
}

func handleCheck(env settings, explain bool) {
	if len(os.Args) < 5 {
		fmt.Printf("Usage: recordperm %s <profile> <record.json> <user.json>\n", os.Args[1])
		os.Exit(1)
	}
	profile := os.Args[2]

	mapping := recordperm.DefaultFieldMapping()
	if strings.HasPrefix(profile, "report.") {
		mapping = recordperm.ReportFieldMapping()
	}
	recSrc, err := readObject(os.Args[3])
	if err != nil {
		fmt.Printf("Error reading record: %v\n", err)
		os.Exit(1)
	}
	userSrc, err := readObject(os.Args[4])
	if err != nil {
		fmt.Printf("Error reading user: %v\n", err)
		os.Exit(1)
	}

	engine, closeFn, err := newEngine(env)
	if err != nil {
		fmt.Printf("Error creating engine: %v\n", err)
		os.Exit(1)
	}

	d, err := engine.ExplainRequest(context.Background(), &recordperm.ExplainRequest{
		Profile: profile,
		Record:  *mapping.RecordFromMap(recSrc),
		User:    *mapping.UserFromMap(userSrc),
	})
	closeFn()
	if err != nil {
		fmt.Printf("Error evaluating: %v\n", err)
		os.Exit(1)
	}

	if explain {
		for _, line := range d.Trace {
			fmt.Printf("  %s\n", line)
		}
	}
	if d.Denied() {
		fmt.Printf("DENIED (%s): %s\n", d.Rule, d.Reason)
		os.Exit(2)
	}
	fmt.Printf("ALLOWED (%s)\n", d.Rule)
}

func handleServe(env settings) {
	engine, closeFn, err := newEngine(env)
	if err != nil {
		fmt.Printf("Error creating engine: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	fmt.Printf("Admin API listening on %s\n", env.AdminAddr)
	if err := http.ListenAndServe(env.AdminAddr, recordperm.NewAdminHTTPServer(engine)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Printf("Server error: %v\n", err)
		os.Exit(1)
	}
}

// newEngine wires the backend chosen by env: SQLite (profiles, history and
// audit), Redis (profiles only) or memory.
func newEngine(env settings) (*recordperm.Engine, func(), error) {
	var lg logger.Logger = logger.NewPhusluLogger("service", "recordperm")
	if env.LogFormat == "slog" {
		lg = logger.NewSLogLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)), "service", "recordperm")
	}
	opts := []recordperm.EngineOption{
		recordperm.WithLogger(lg),
		recordperm.WithLocale(env.Locale),
	}
	if env.Timezone != "" {
		loc, err := (&recordperm.Config{Timezone: env.Timezone}).Location()
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, recordperm.WithLocation(loc))
	}

	var (
		profiles recordperm.ProfileStore
		closers  []func()
	)
	switch {
	case env.SQLiteDSN != "":
		sqlDB, err := sql.Open("sqlite", env.SQLiteDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		db := squealx.NewDb(sqlDB, "sqlite", "recordperm")
		if err := stores.Migrate(db); err != nil {
			sqlDB.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		audit, err := stores.NewSQLAuditStore(db)
		if err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		profiles = stores.NewSQLProfileStore(db)
		opts = append(opts, recordperm.WithAuditStore(audit))
		closers = append(closers, func() { sqlDB.Close() })
	case env.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: env.RedisAddr})
		profiles = stores.NewRedisProfileStore(client).WithKey(env.RedisKey)
		opts = append(opts, recordperm.WithAuditStore(stores.NewMemoryAuditStore()))
		closers = append(closers, func() { client.Close() })
	default:
		profiles = stores.NewMemoryProfileStore()
		opts = append(opts, recordperm.WithAuditStore(stores.NewMemoryAuditStore()))
	}

	engine, err := recordperm.NewEngine(profiles, opts...)
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, nil, err
	}
	return engine, func() {
		engine.Close()
		for _, c := range closers {
			c()
		}
	}, nil
}

func readObject(filename string) (map[string]any, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return out, nil
}

func loadConfig(filename string) (*recordperm.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return recordperm.NewConfigLoader().Load(strings.ToLower(filepath.Base(filename)), data)
}

func saveConfig(cfg *recordperm.Config, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))

	var data []byte
	var err error

	switch ext {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	case ".rp", ".dsl":
		data, err = recordperm.NewDSLEncoder().Encode(cfg)
	default:
		return fmt.Errorf("unsupported file format: %s", ext)
	}

	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
