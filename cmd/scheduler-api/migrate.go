package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/pkg/database"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(ctx context.Context, m *database.Migrator, logr *zap.Logger) error {
				n, err := m.Up(ctx)
				if err != nil {
					return err
				}
				logr.Info("migrations applied", zap.Int("count", n))
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(ctx context.Context, m *database.Migrator, _ *zap.Logger) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
				for _, s := range statuses {
					applied := "pending"
					if s.Applied && s.AppliedAt != nil {
						applied = s.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%03d\t%s\t%s\n", s.Version, s.Name, applied)
				}
				return w.Flush()
			})
		},
	})
	return cmd
}

func withMigrator(fn func(ctx context.Context, m *database.Migrator, logr *zap.Logger) error) error {
	ctx := context.Background()
	rt, err := bootstrap(ctx, false)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, database.NewMigrator(rt.db, rt.logger), rt.logger)
}
