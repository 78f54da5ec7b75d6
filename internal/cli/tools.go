package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/metatool/pkg/catalog"
)

var (
	searchLimit int
	docDetail   string
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect the tool catalog",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List servers and their tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(loadedConfig)
		if err != nil {
			return err
		}
		defer rt.Close()

		return printJSON(cmd, rt.Catalog.DescribeServers())
	},
}

var toolsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search tools by name or description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(loadedConfig)
		if err != nil {
			return err
		}
		defer rt.Close()

		return printJSON(cmd, rt.Catalog.Search(args[0], searchLimit))
	},
}

var toolsDescribeCmd = &cobra.Command{
	Use:   "describe <server> [tool]",
	Short: "Show tool documentation",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(loadedConfig)
		if err != nil {
			return err
		}
		defer rt.Close()

		if len(args) == 2 {
			doc, err := rt.Catalog.ToolDocs(args[0], args[1], catalog.DetailLevel(docDetail))
			if err != nil {
				return err
			}
			return printJSON(cmd, doc)
		}

		docs, err := rt.Catalog.ServerDocs(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, docs)
	},
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func init() {
	toolsSearchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum number of results (0 = all)")
	toolsDescribeCmd.Flags().StringVar(&docDetail, "detail", "full", "detail level (summary or full)")

	toolsCmd.AddCommand(toolsListCmd, toolsSearchCmd, toolsDescribeCmd)
	rootCmd.AddCommand(toolsCmd)
}
