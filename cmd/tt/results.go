package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"testtracker/internal/app"
	"testtracker/sdk/go/collector"
)

func resultsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "results", Short: "Publish collected results"}
	var file string
	var abort bool
	publish := &cobra.Command{
		Use:   "publish",
		Short: "Publish an artifact written by an unpublished run",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := collector.ReadArtifact(file)
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), func(ctx context.Context, d *app.Deps) error {
				if cmd.Flags().Changed("abort-on-error") {
					d.Config.Collector.AbortOnError = abort
				}
				report, err := d.Collector().Publish(ctx, a)
				if viper.GetBool("json") {
					if perr := printJSON(report); perr != nil {
						return perr
					}
				} else if report != nil {
					fmt.Println(report.Table())
				}
				if err != nil {
					return err
				}
				return report.Err()
			})
		},
	}
	publish.Flags().StringVar(&file, "file", collector.DefaultArtifactPath, "artifact to publish")
	publish.Flags().BoolVar(&abort, "abort-on-error", false, "publish nothing when any record fails to resolve")
	cmd.AddCommand(publish)
	return cmd
}
