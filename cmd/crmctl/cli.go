package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crmsync/internal/application"
	"github.com/JonMunkholm/crmsync/internal/config"
	"github.com/JonMunkholm/crmsync/internal/core"
	"github.com/JonMunkholm/crmsync/internal/logging"
)

// cli holds state shared by every command of one invocation.
type cli struct {
	envFile string
	tenant  string

	open func(ctx context.Context, cfg *config.Config) (*application.App, error)

	cfg *config.Config
	app *application.App
}

func newCLI() *cli {
	return &cli{open: application.New}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "crmctl",
		Short:         "Manage CRM accounts, contacts and leads",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFile(c.envFile)
			if err != nil {
				return err
			}
			logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().StringVarP(&c.tenant, "tenant", "t", "", "tenant ID the command operates on")

	root.AddCommand(
		newKindsCmd(c),
		newImportCmd(c),
		newExportCmd(c),
		newConvertCmd(c, false),
		newConvertCmd(c, true),
		newResetCmd(c),
		newMigrateCmd(c),
	)
	return root
}

// service opens the application on first use.
func (c *cli) service(ctx context.Context) (*core.Service, error) {
	if c.app == nil {
		app, err := c.open(ctx, c.cfg)
		if err != nil {
			return nil, err
		}
		c.app = app
	}
	return c.app.Service, nil
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
}

func (c *cli) tenantID() (uuid.UUID, error) {
	if c.tenant == "" {
		return uuid.Nil, errors.New("--tenant is required")
	}
	id, err := uuid.Parse(c.tenant)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, core.ValidationError{Field: "tenant_id", Message: "invalid uuid"}
	}
	return id, nil
}

func parseKind(s string) (core.Kind, error) {
	kind, ok := core.ParseKind(s)
	if !ok {
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
	return kind, nil
}

// userError renders err with its support code when it maps to one.
func userError(err error) string {
	if core.IsUserFacing(err) {
		msg := core.MapError(err)
		if msg.Detail != "" {
			return fmt.Sprintf("%s: %s (Code: %s)", msg.Message, msg.Detail, msg.Code)
		}
		return core.FormatUserError(err)
	}
	return err.Error()
}

