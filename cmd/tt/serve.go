package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"testtracker/internal/app"
	"testtracker/internal/config"
	"testtracker/internal/db"
	"testtracker/internal/engine"
	"testtracker/internal/migrate"
	"testtracker/internal/server"
)

func serveFakeCmd() *cobra.Command {
	var addr, workspace, basePath string
	var pageSize, throttle int
	cmd := &cobra.Command{
		Use:   "serve-fake",
		Short: "Serve a local fake of the test-management API",
		Long: `Serves the subset of the API the client uses, backed by sqlite in <workspace>/.testtracker.
Log in as admin@example.com / secret. --throttle answers 429 to the first N calls.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := app.NewLogger(config.Log{Level: viper.GetString("log-level"), Format: viper.GetString("log-format")}, os.Stderr)
			if err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(cmd.Context(), conn); err != nil {
				return err
			}
			version, err := migrate.Current(cmd.Context(), conn)
			if err != nil {
				return err
			}
			logger.Info("fake service ready", "db", db.Path(workspace), "schema_version", version)
			t := &server.Throttle{RetryAfter: time.Second}
			t.Reject(throttle)
			handler, err := server.New(server.Config{
				Engine:   engine.New(conn),
				BasePath: basePath,
				PageSize: pageSize,
				Throttle: t,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving fake test tracker on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8089", "listen address")
	cmd.Flags().StringVarP(&workspace, "workspace", "w", ".", "directory holding .testtracker/fake.db")
	cmd.Flags().StringVar(&basePath, "base-path", server.DefaultBasePath, "API base path")
	cmd.Flags().IntVar(&pageSize, "page-size", server.DefaultPageSize, "items per page of paginated listings")
	cmd.Flags().IntVar(&throttle, "throttle", 0, "answer 429 to this many calls first")
	return cmd
}
