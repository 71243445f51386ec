package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ca-srg/searchguard/internal/guard"
)

var (
	searchIndex   string
	searchQuery   string
	searchFile    string
	searchTimeout int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a raw query and print the verified hits",
	Long: `
Run a query document against an index. The response is verified before the
hits are printed; a failed call reports the status code and the request body.

Examples:
  searchguard search --index errorlog --query '{"query":{"match":{"message":"timeout"}}}'
  searchguard search --index logs --file query.json
`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchIndex, "index", "i", "", "Index to search (defaults to ERRORLOG_INDEX)")
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", `{"query":{"match_all":{}}}`, "Query document as JSON")
	searchCmd.Flags().StringVarP(&searchFile, "file", "f", "", "Read the query document from a file")
	searchCmd.Flags().IntVar(&searchTimeout, "timeout", 30, "Request timeout in seconds")
}

func runSearch(cmd *cobra.Command, args []string) error {
	body := []byte(searchQuery)
	if searchFile != "" {
		data, err := os.ReadFile(searchFile)
		if err != nil {
			return fmt.Errorf("failed to read query file: %w", err)
		}
		body = data
	}
	if !json.Valid(body) {
		return fmt.Errorf("query is not valid JSON")
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	index := rt.cfg.ErrorLogIndex
	if name := guard.TrimToNullable(&searchIndex); name != nil {
		index = *name
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(searchTimeout)*time.Second)
	defer cancel()

	log.Printf("Searching %s", index)
	result, ex, err := rt.client.SearchExchange(ctx, index, body)
	if err != nil {
		if ex != nil && ex.Responded() {
			fmt.Fprintf(cmd.ErrOrStderr(), "search failed with status %d\nrequest: %s\n",
				ex.StatusCode(), guard.RequestTrace(ex))
		}
		return err
	}

	return printJSON(cmd.OutOrStdout(), result)
}
