// Package main is the operator CLI: schema migration, role changes and
// reference data seeding against the configured database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/civic-complaints/internal/auth"
	"github.com/sakif/civic-complaints/internal/config"
	"github.com/sakif/civic-complaints/internal/repository/gormstore"
	"github.com/sakif/civic-complaints/internal/service"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "Operator commands for the civic complaints database",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (defaults to $CONFIG_FILE)")
	rootCmd.AddCommand(
		newMigrateCommand(),
		newSetRoleCommand(),
		newAddCategoryCommand(),
		newAddAgencyCommand(),
	)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env is what every subcommand needs: the loaded config, a logger on
// stderr and an open store. close must be called when done. Only the
// database section of the config is validated.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *gormstore.Store
}

func openEnv() (*env, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, err
	}
	logger := cfg.NewLogger(os.Stderr)
	store, err := gormstore.Open(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, store: store}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}

// withEnv adapts a function taking an open env into a cobra RunE.
func withEnv(fn func(ctx context.Context, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()
		return fn(cmd.Context(), e, args)
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(ctx context.Context, e *env, _ []string) error {
			if err := e.store.Migrate(ctx); err != nil {
				return err
			}
			fmt.Println("schema is up to date")
			return nil
		}),
	}
}

func newSetRoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <email> <role>",
		Short: "Change a user's role (admin, department_manager, department_staff, citizen)",
		Args:  cobra.ExactArgs(2),
		RunE: withEnv(func(ctx context.Context, e *env, args []string) error {
			// No token service: set-role never issues tokens, so JWT_SECRET
			// is not required.
			svc := service.NewAuthService(e.store.Users(), nil, auth.NewPasswordService(), e.logger)
			user, err := svc.SetRoleByEmail(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%s is now %s\n", user.Email, user.Role)
			return nil
		}),
	}
}

func newAddCategoryCommand() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "add-category <name>",
		Short: "Add a complaint category",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(ctx context.Context, e *env, args []string) error {
			svc := service.NewReferenceService(e.store.Categories(), e.store.Agencies(), e.logger)
			c, err := svc.CreateCategory(ctx, service.CategoryInput{Name: args[0], Description: description})
			if err != nil {
				return err
			}
			fmt.Printf("category %q created (%s)\n", c.Name, c.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&description, "description", "", "category description")
	return cmd
}

func newAddAgencyCommand() *cobra.Command {
	var email, description string
	cmd := &cobra.Command{
		Use:   "add-agency <name>",
		Short: "Add an agency complaints can be routed to",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(ctx context.Context, e *env, args []string) error {
			svc := service.NewReferenceService(e.store.Categories(), e.store.Agencies(), e.logger)
			a, err := svc.CreateAgency(ctx, service.AgencyInput{Name: args[0], ContactEmail: email, Description: description})
			if err != nil {
				return err
			}
			fmt.Printf("agency %q created (%s)\n", a.Name, a.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "agency contact email")
	cmd.Flags().StringVar(&description, "description", "", "agency description")
	return cmd
}
