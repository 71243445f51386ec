package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/ca-srg/searchguard/internal/errorlog"
)

var (
	logMessage string
	logType    string
	logSource  string
	logDetail  string
	logUser    string
	logStatus  int
	listPage   int
	listSize   int
)

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Record and read entries of the OpenSearch error log",
}

var errorsLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Record an error entry",
	RunE:  runErrorsLog,
}

var errorsGetCmd = &cobra.Command{
	Use:   "get <id>...",
	Short: "Print error entries by id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runErrorsGet,
}

var errorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List error entries, newest first",
	RunE:  runErrorsList,
}

func init() {
	errorsLogCmd.Flags().StringVarP(&logMessage, "message", "m", "", "Error message (required)")
	errorsLogCmd.Flags().StringVar(&logType, "type", "", "Error type, e.g. the exception class")
	errorsLogCmd.Flags().StringVar(&logSource, "source", "", "Component that raised the error")
	errorsLogCmd.Flags().StringVar(&logDetail, "detail", "", "Stack trace or other detail")
	errorsLogCmd.Flags().StringVar(&logUser, "user", "", "User affected by the error")
	errorsLogCmd.Flags().IntVar(&logStatus, "status", 0, "HTTP status code associated with the error")
	_ = errorsLogCmd.MarkFlagRequired("message")

	errorsListCmd.Flags().IntVar(&listPage, "page", 0, "Zero-based page number")
	errorsListCmd.Flags().IntVar(&listSize, "size", 20, "Entries per page (max 100)")

	errorsCmd.AddCommand(errorsLogCmd)
	errorsCmd.AddCommand(errorsGetCmd)
	errorsCmd.AddCommand(errorsListCmd)
}

func withStore(cmd *cobra.Command, fn func(ctx context.Context, store *errorlog.Store) error) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	store, err := errorlog.NewStore(rt.client, errorlog.Options{
		Index:       rt.cfg.ErrorLogIndex,
		Application: rt.cfg.ErrorLogApplication,
		Concurrency: rt.cfg.ErrorLogConcurrency,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), rt.cfg.OpenSearchRequestTimeout+30*time.Second)
	defer cancel()

	return fn(ctx, store)
}

func runErrorsLog(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, store *errorlog.Store) error {
		if err := store.EnsureIndex(ctx); err != nil {
			return err
		}

		id, err := store.Log(ctx, &errorlog.Entry{
			Message:    logMessage,
			Type:       logType,
			Source:     logSource,
			Detail:     logDetail,
			User:       logUser,
			StatusCode: logStatus,
		})
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	})
}

func runErrorsGet(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, store *errorlog.Store) error {
		if len(args) == 1 {
			entry, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		}

		entries, err := store.GetSeq(ctx, slices.Values(args))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), entries)
	})
}

func runErrorsList(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, store *errorlog.Store) error {
		page, err := store.List(ctx, listPage, listSize)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), page)
	})
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
