package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crmsync/internal/admin"
	"github.com/JonMunkholm/crmsync/internal/application"
	"github.com/JonMunkholm/crmsync/internal/config"
	"github.com/JonMunkholm/crmsync/internal/core"
	"github.com/JonMunkholm/crmsync/internal/store/postgres"
)

func newKindsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List entity kinds and their import columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tCOLUMN\tREQUIRED\tALIASES")
			for _, def := range core.All() {
				for _, f := range def.FieldSpecs {
					required := ""
					if f.Required {
						required = "yes"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", def.Info.Kind, f.Name, required, strings.Join(f.Aliases, ", "))
				}
			}
			return tw.Flush()
		},
	}
}

func newImportCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "import <kind> <file>",
		Short: "Import records from a CSV file (- reads stdin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			tenant, err := c.tenantID()
			if err != nil {
				return err
			}
			text, err := readInput(cmd.InOrStdin(), args[1], c.cfg.Import.MaxFileSize)
			if err != nil {
				return err
			}
			svc, err := c.service(cmd.Context())
			if err != nil {
				return err
			}

			result, err := svc.Import(cmd.Context(), tenant, kind, text)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			fmt.Fprintln(out, result.Summary())
			for _, fr := range result.FailedRows {
				fmt.Fprintf(out, "  line %d: %s\n", fr.LineNumber, fr.Reason)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full import result as JSON")
	return cmd
}

// readInput reads path, or stdin for "-", refusing more than limit bytes.
func readInput(stdin io.Reader, path string, limit int64) (string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	if limit <= 0 {
		limit = config.DefaultMaxFileSize
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("file too large: limit is %d bytes", limit)
	}
	return string(data), nil
}

func newExportCmd(c *cli) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <kind>",
		Short: "Export records as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			tenant, err := c.tenantID()
			if err != nil {
				return err
			}
			svc, err := c.service(cmd.Context())
			if err != nil {
				return err
			}

			filename, text, err := svc.Export(cmd.Context(), tenant, kind)
			if err != nil {
				return err
			}

			switch output {
			case "-":
				_, err = io.WriteString(cmd.OutOrStdout(), text)
				return err
			case "":
				output = filename
			}
			if err := os.WriteFile(output, []byte(text), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file; - writes to stdout (default: generated filename)")
	return cmd
}

func newConvertCmd(c *cli, reconcile bool) *cobra.Command {
	use, short := "convert <lead-id>", "Convert a lead into a contact"
	if reconcile {
		use, short = "reconcile <lead-id>", "Link a lead to the contact that already has its email"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, err := c.tenantID()
			if err != nil {
				return err
			}
			leadID, err := uuid.Parse(args[0])
			if err != nil {
				return core.ValidationError{Field: "lead_id", Message: "invalid uuid"}
			}
			svc, err := c.service(cmd.Context())
			if err != nil {
				return err
			}

			var result core.ConvertResult
			if reconcile {
				result, err = svc.Reconcile(cmd.Context(), tenant, leadID)
			} else {
				result, err = svc.Convert(cmd.Context(), tenant, leadID)
			}
			if err != nil {
				return err
			}

			if result.AlreadyConverted {
				fmt.Fprintf(cmd.OutOrStdout(), "lead %s already converted to contact %s\n", result.LeadID, result.ContactID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "lead %s converted to contact %s\n", result.LeadID, result.ContactID)
			}
			return nil
		},
	}
}

func newResetCmd(c *cli) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every record of the tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, err := c.tenantID()
			if err != nil {
				return err
			}
			if !yes {
				return errors.New("reset deletes all tenant data; pass --yes to confirm")
			}
			if _, err := c.service(cmd.Context()); err != nil {
				return err
			}

			result, err := admin.ResetTenant(cmd.Context(), c.app.Store, tenant)
			if err != nil {
				return err
			}
			for _, kind := range core.Kinds {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d deleted\n", kind, result[kind])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}
	run := func(name string, fn func(*pgxpool.Pool) error) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: "Apply " + name + " migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if c.cfg.Database.Driver != config.DriverPostgres {
					return fmt.Errorf("migrate requires the %s store driver", config.DriverPostgres)
				}
				pool, err := application.OpenPool(cmd.Context(), c.cfg.Database)
				if err != nil {
					return err
				}
				defer pool.Close()

				if err := fn(pool); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok\n", name)
				return nil
			},
		}
	}

	cmd.AddCommand(
		run("up", postgres.Migrate),
		run("down", postgres.MigrateDown),
	)
	return cmd
}
