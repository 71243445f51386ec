package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ca-srg/searchguard/internal/guard"
	"github.com/ca-srg/searchguard/internal/opensearch"
)

var (
	traceFile string
	traceURL  string
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Print the request trace for a captured request",
	Long: `
Decode a captured request body as UTF-8 the same way failed responses are
reported. Without a body the request URL is printed. Use "-" to read stdin.
`,
	RunE: runTrace,
}

func init() {
	traceCmd.Flags().StringVarP(&traceFile, "file", "f", "", "File holding the raw request body")
	traceCmd.Flags().StringVarP(&traceURL, "url", "u", "", "Request URL")
}

func runTrace(cmd *cobra.Command, args []string) error {
	if traceFile == "" && traceURL == "" {
		return fmt.Errorf("one of --file or --url is required")
	}

	ex := &opensearch.Exchange{URL: traceURL}
	switch traceFile {
	case "":
	case "-":
		body, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		ex.Body = body
	default:
		body, err := os.ReadFile(traceFile)
		if err != nil {
			return fmt.Errorf("failed to read request file: %w", err)
		}
		ex.Body = body
	}

	fmt.Fprintln(cmd.OutOrStdout(), guard.RequestTrace(ex))
	return nil
}
