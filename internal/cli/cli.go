// Package cli implements the pincer developer toolkit.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/pincer/internal/app"
	"github.com/Additional-Code/pincer/internal/availability"
	"github.com/Additional-Code/pincer/internal/entity"
	"github.com/Additional-Code/pincer/internal/migration"
	openingrepo "github.com/Additional-Code/pincer/internal/repository/opening"
	orderrepo "github.com/Additional-Code/pincer/internal/repository/order"
	userrepo "github.com/Additional-Code/pincer/internal/repository/user"
	"github.com/Additional-Code/pincer/internal/seeder"
	"github.com/Additional-Code/pincer/internal/session"
)

const stopTimeout = 10 * time.Second

// NewRootCommand builds the root pincer CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pincer",
		Short:         "Pincer developer toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newStartCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newWorkerCmd(),
		newTokenCmd(),
		newAvailabilityCmd(),
	)
	return root
}

// Execute runs the pincer CLI. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), fx.New(app.Module))
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, mig *migration.Migrator) error {
				return mig.Up(ctx)
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			return withMigrator(cmd, func(ctx context.Context, mig *migration.Migrator) error {
				return mig.Down(ctx, steps, all)
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(context.Context, *migration.Migrator) error { return nil })
		},
	}

	cmd.AddCommand(upCmd, downCmd, statusCmd)
	return cmd
}

// withMigrator runs fn against a storage-only app and prints the resulting
// schema version.
func withMigrator(cmd *cobra.Command, fn func(context.Context, *migration.Migrator) error) error {
	var mig *migration.Migrator
	opts := fx.Options(app.Storage, migration.Module, fx.Populate(&mig))
	return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
		if err := fn(ctx, mig); err != nil {
			return err
		}
		v, err := mig.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", v)
		return nil
	})
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo circles, items, openings and an admin user",
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed *seeder.Seeder
			opts := fx.Options(app.Storage, seeder.Module, fx.Populate(&seed))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := seed.Run(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "seed data applied")
				return nil
			})
		},
	}
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run worker engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), fx.New(app.Worker))
		},
	})
	return cmd
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <uid>",
		Short: "Mint a session token for an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				users    *userrepo.Repository
				sessions *session.Manager
			)
			opts := fx.Options(app.Core, fx.Populate(&users, &sessions))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				user, err := users.GetByUID(ctx, args[0])
				if err != nil {
					return fmt.Errorf("user %s: %w", args[0], err)
				}
				token, err := sessions.Issue(user.UID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
}

func newAvailabilityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "availability <openingId>",
		Short: "Show the remaining capacity of an opening",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("opening id: %w", err)
			}
			var (
				openings *openingrepo.Repository
				orders   *orderrepo.Repository
			)
			opts := fx.Options(app.Core, fx.Populate(&openings, &orders))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				opening, err := openings.GetByID(ctx, id)
				if err != nil {
					return fmt.Errorf("opening %d: %w", id, err)
				}
				placed, err := orders.FindAllByOpening(ctx, id)
				if err != nil {
					return err
				}
				return writeAvailability(cmd.OutOrStdout(), opening, placed)
			})
		},
	}
}

// writeAvailability prints the overall and per-category remaining capacity.
func writeAvailability(w io.Writer, opening *entity.Opening, orders []entity.Order) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	usage := availability.Accepted(orders)
	fmt.Fprintf(tw, "opening\t%d\n", opening.ID)
	fmt.Fprintf(tw, "accepted\t%d\n", usage.Total)
	fmt.Fprintf(tw, "available\t%d\n", availability.Available(opening, orders))
	for _, category := range entity.Categories() {
		limit, bounded := availability.CategoryCap(opening, category)
		if !bounded {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d/%d\n", category, max(availability.CategoryRemaining(opening, orders, category), 0), limit)
	}
	return tw.Flush()
}

// runUntilDone starts application and stops it once ctx is cancelled or an
// fx.Shutdowner asks for it.
func runUntilDone(ctx context.Context, application *fx.App) error {
	startCtx, cancelStart := context.WithTimeout(ctx, stopTimeout)
	defer cancelStart()
	if err := application.Start(startCtx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-application.Wait():
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return application.Stop(stopCtx)
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
