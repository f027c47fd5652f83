package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"missioncontrol/internal/mcp"
)

func mcpCmd() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Call a running server's MCP endpoint",
	}
	cmd.PersistentFlags().StringVar(&baseURL, "url", "http://127.0.0.1:8080/mcp", "MCP endpoint URL")
	cmd.AddCommand(mcpToolsCmd(&baseURL))
	cmd.AddCommand(mcpCallCmd(&baseURL))
	return cmd
}

func mcpToolsCmd(baseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools the server exposes",
		RunE: func(cmd *cobra.Command, args []string) error {
			tools, err := mcp.NewClient(*baseURL).ToolsList(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range tools {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.Name, t.Description)
			}
			return nil
		},
	}
}

func mcpCallCmd(baseURL *string) *cobra.Command {
	var rawArgs string
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: `Call a tool, e.g. mcp call integrations.test --args '{"id":"..."}'`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var toolArgs any
			if rawArgs != "" {
				var m map[string]any
				if err := json.Unmarshal([]byte(rawArgs), &m); err != nil {
					return fmt.Errorf("--args must be a JSON object: %w", err)
				}
				toolArgs = m
			}
			res, err := mcp.NewClient(*baseURL).CallTool(cmd.Context(), args[0], toolArgs)
			if err != nil {
				return err
			}
			var pretty any
			if err := json.Unmarshal(res, &pretty); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), string(res))
				return nil
			}
			return printJSON(cmd.OutOrStdout(), pretty)
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "", "tool arguments as a JSON object")
	return cmd
}
