package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var execTimeout time.Duration

// execCmd runs a code snippet from a file (or stdin with "-") in the
// sandbox and prints the execution report as JSON.
var execCmd = &cobra.Command{
	Use:   "exec <file>",
	Short: "Execute a code snippet in the sandbox",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			source []byte
			err    error
		)
		if args[0] == "-" {
			source, err = os.ReadFile("/dev/stdin")
		} else {
			source, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read code: %w", err)
		}

		rt, err := buildRuntime(loadedConfig)
		if err != nil {
			return err
		}
		defer rt.Close()

		report := rt.ExecuteCode(cmd.Context(), string(source), execTimeout)

		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		if !report.Success {
			return fmt.Errorf("execution failed: %s", report.Error)
		}
		return nil
	},
}

func init() {
	execCmd.Flags().DurationVar(&execTimeout, "timeout", 0, "execution timeout (default from config)")
	rootCmd.AddCommand(execCmd)
}
