package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"testtracker/internal/app"
	"testtracker/internal/config"
	"testtracker/sdk/go/builder"
)

var rootCmd = &cobra.Command{
	Use:   "tt",
	Short: "Test tracker CLI",
	Long: `tt talks to a TestRail-style test-management service.
- Entities: projects own milestones, suites, runs and plans; suites own sections; sections own test cases.
- Names: every command takes names or numeric IDs; a name must match exactly one entity in its scope.
- Results: collected runs write an artifact when publishing is off; 'tt results publish' sends it later in one call per run.
- Fake service: 'tt serve-fake' runs a local sqlite-backed service for experiments and tests.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadEnv()
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TESTTRACKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", config.FileName, "config file")
	flags.String("base-url", "", "API root, e.g. https://example.testrail.io/index.php?/api/v2")
	flags.String("user", "", "user email")
	flags.String("api-key", "", "password or API key")
	flags.Bool("json", false, "output JSON")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "text or json")
	for _, name := range []string{"config", "base-url", "user", "api-key", "json", "log-level", "log-format"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(suiteCmd())
	rootCmd.AddCommand(sectionCmd())
	rootCmd.AddCommand(caseCmd())
	rootCmd.AddCommand(milestoneCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(resultsCmd())
	rootCmd.AddCommand(serveFakeCmd())
}

// loadConfig reads the config file, then lets flags and TESTTRACKER_*
// variables override the service and log settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	overlay := func(key string, dst *string) {
		if v := viper.GetString(key); v != "" {
			*dst = v
		}
	}
	overlay("base-url", &cfg.Service.BaseURL)
	overlay("user", &cfg.Service.User)
	overlay("api-key", &cfg.Service.APIKey)
	overlay("log-level", &cfg.Log.Level)
	overlay("log-format", &cfg.Log.Format)
	return cfg, nil
}

func withDeps(ctx context.Context, fn func(context.Context, *app.Deps) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := app.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	deps, err := app.Build(cfg, app.Options{Logger: logger})
	if err != nil {
		return err
	}
	return fn(ctx, deps)
}

// ref reads a command argument as an ID when numeric and as a name otherwise.
func ref(s string) builder.Ref {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil && id > 0 {
		return builder.ByID(id)
	}
	return builder.ByName(s)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable renders rows unless --json asks for v as JSON.
func printTable(v any, header table.Row, rows []table.Row) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	tw.Render()
	return nil
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
