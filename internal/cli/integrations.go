package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"missioncontrol/internal/catalog"
	"missioncontrol/internal/healthrun"
	"missioncontrol/internal/store"
)

func integrationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "integrations",
		Aliases: []string{"int"},
		Short:   "Register, list and test integrations",
	}
	cmd.AddCommand(integrationsListCmd())
	cmd.AddCommand(integrationsAddCmd())
	cmd.AddCommand(integrationsTestCmd())
	cmd.AddCommand(integrationsHistoryCmd())
	cmd.AddCommand(integrationsImportCmd())
	return cmd
}

func integrationsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List integrations with their live status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.service.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
}

func integrationsAddCmd() *cobra.Command {
	var in store.Integration
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Upsert an integration into mc.integrations (keyed by name)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Name == "" || in.Type == "" {
				return fmt.Errorf("missing required: --name --type")
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			id, err := a.store.UpsertIntegration(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "integration name (unique)")
	cmd.Flags().StringVar(&in.Type, "type", store.TypeAPIKey, "api_key|cli_auth|credential_provider|mcp_plugin|mcp_server|webhook|cli_tool")
	cmd.Flags().StringVar(&in.Provider, "provider", "", "provider id, e.g. openai, slack, 1password")
	cmd.Flags().StringVar(&in.CredentialSource, "source", "", "credential source, e.g. .env:OPENAI_API_KEY or 1password:Vault/Item")
	cmd.Flags().StringVar(&in.Description, "description", "", "free-form description")
	return cmd
}

func integrationsTestCmd() *cobra.Command {
	var all bool
	var concurrency int
	cmd := &cobra.Command{
		Use:   "test [id]",
		Short: "Test one integration (or all with --all) and record the result",
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return fmt.Errorf("--all takes no id")
			}
			if !all && len(args) != 1 {
				return fmt.Errorf("expected an integration id (or --all)")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if all {
				if concurrency <= 0 {
					concurrency = a.cfg.Health.Concurrency
				}
				runner := healthrun.New(a.service,
					healthrun.WithConcurrency(concurrency),
					healthrun.WithMetrics(a.metrics),
					healthrun.WithLogger(a.logger),
				)
				sum, err := runner.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sum)
			}

			in, err := a.service.RunTest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), in)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "test every integration")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel tests with --all (default health.concurrency)")
	return cmd
}

func integrationsHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show recent health checks for an integration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			checks, err := a.service.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), checks)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of checks to show")
	return cmd
}

func integrationsImportCmd() *cobra.Command {
	var file, env string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create or update integrations from a catalog YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("missing --file")
			}
			b, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			cat, err := catalog.LoadYAML(b)
			if err != nil {
				return err
			}
			if env != "" {
				cat = catalog.ApplyEnvOverrides(cat, env)
			}
			warnings, err := catalog.Validate(cat)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			existing, err := a.store.ListIntegrations(ctx)
			if err != nil {
				return err
			}
			changes := catalog.Plan(cat, existing)
			if err := printJSON(cmd.OutOrStdout(), changes); err != nil {
				return err
			}
			if dryRun {
				return nil
			}
			n, err := catalog.Apply(ctx, a.store, changes)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d integration(s) written\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog YAML file")
	cmd.Flags().StringVar(&env, "env", "", "apply environments.<env> overrides")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without writing")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
