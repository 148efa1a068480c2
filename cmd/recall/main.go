package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/recall/internal/profile"
	"github.com/hrygo/recall/server"
	"github.com/hrygo/recall/server/queryengine"
	"github.com/hrygo/recall/store"
	"github.com/hrygo/recall/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "recall",
		Short: `Retrieval service answering questions about a persona's own content.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the retrieval HTTP API and run the embedding backfill",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	queryCmd = &cobra.Command{
		Use:   "query [text]",
		Short: "Run one retrieval and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), strings.Join(args, " "))
		},
	}

	backfillCmd = &cobra.Command{
		Use:   "backfill",
		Short: "Embed content rows that have no embedding yet, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBackfill(cmd.Context())
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (sqlite or postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name")
	rootCmd.PersistentFlags().String("config", "", "path to recall.yaml")

	queryCmd.Flags().String("user", "", "user id the query is scoped to")
	queryCmd.Flags().String("app", "", "persona app id")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn", "config"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}
	if err := viper.BindPFlag("query.user", queryCmd.Flags().Lookup("user")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("query.app", queryCmd.Flags().Lookup("app")); err != nil {
		panic(err)
	}

	viper.SetEnvPrefix("recall")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, queryCmd, backfillCmd)
}

// loadConfig reads the optional config file and returns the profile and retrieval tuning.
func loadConfig() (*profile.Profile, *queryengine.Config, error) {
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("recall")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, err
		}
	}

	p := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Addr:    viper.GetString("addr"),
		Port:    viper.GetInt("port"),
		Data:    viper.GetString("data"),
		Driver:  viper.GetString("driver"),
		DSN:     viper.GetString("dsn"),
		Version: version,

		AIEnabled:        viper.GetBool("ai.enabled"),
		AIOpenAIAPIKey:   viper.GetString("ai.openai_api_key"),
		AIOpenAIBaseURL:  viper.GetString("ai.openai_base_url"),
		AIEmbeddingModel: viper.GetString("ai.embedding_model"),
		AILLMModel:       viper.GetString("ai.llm_model"),
		MemoryBaseURL:    viper.GetString("memory.base_url"),
		MemoryAPIKey:     viper.GetString("memory.api_key"),
		MemoryRPS:        viper.GetFloat64("memory.rps"),
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}

	cfg := queryengine.DefaultConfig()
	if viper.IsSet("retrieval") {
		if err := viper.UnmarshalKey("retrieval", cfg); err != nil {
			return nil, nil, fmt.Errorf("failed to decode retrieval config: %w", err)
		}
	}
	if err := queryengine.ValidateConfig(cfg); err != nil {
		return nil, nil, err
	}
	return p, cfg, nil
}

func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create db driver: %w", err)
	}
	s := store.New(dbDriver, p)
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

func newServer(ctx context.Context) (*server.Server, error) {
	p, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s, err := openStore(ctx, p)
	if err != nil {
		return nil, err
	}
	srv, err := server.NewServer(ctx, p, s, cfg)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return srv, nil
}

func runServe(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv, err := newServer(ctx)
	if err != nil {
		return err
	}
	printGreetings(srv.Profile)

	if err := srv.Start(ctx); err != nil {
		srv.Shutdown(context.Background())
		return err
	}
	<-ctx.Done()
	srv.Shutdown(context.Background())
	return nil
}

func runQuery(ctx context.Context, text string) error {
	srv, err := newServer(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Store.Close() }()

	result := srv.Orchestrator.Retrieve(ctx, text, viper.GetString("query.user"), viper.GetString("query.app"))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runBackfill(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv, err := newServer(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Store.Close() }()
	if srv.Runner == nil {
		return fmt.Errorf("backfill needs an embedding provider: set RECALL_AI_ENABLED and an API key")
	}

	total := 0
	for {
		stats := srv.Runner.RunOnce(ctx)
		total += stats.Indexed
		// A pass that indexes nothing new means the rest keep failing.
		if stats.Found == 0 || stats.Indexed == 0 || ctx.Err() != nil {
			break
		}
	}
	slog.Info("backfill finished", "indexed", total)
	return nil
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("recall %s started\n", p.Version)
	if p.IsDev() {
		fmt.Printf("mode: %s, driver: %s, dsn: %s\n", p.Mode, p.Driver, p.DSN)
	}
	fmt.Printf("ai: %t, long-term memory: %t\n", p.IsAIEnabled(), p.IsMemoryEnabled())
}

// version is overridden at build time with -ldflags.
var version = "dev"

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("recall exited with error", "error", err)
		os.Exit(1)
	}
}
