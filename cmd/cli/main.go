package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

var (
	serverURL   string
	noAutoStart bool
	configPath  string
	rootCmd     = &cobra.Command{
		Use:   "media-fetch",
		Short: "media-fetch CLI - fetch video, audio and captions from YouTube",
		Long: `A command-line interface for fetching media from YouTube links, either
directly with a progress view or through the media-fetch server queue.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(logsCmd)
}

// client returns an API client, starting the server first unless --no-auto-start
func client() *apiClient {
	if !noAutoStart {
		if err := ensureServerRunning(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return newAPIClient(serverURL)
}

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Queue a request on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		lang, _ := cmd.Flags().GetString("lang")

		req, err := client().AddRequest(args[0], kind, lang)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Request queued successfully!")
		fmt.Fprintf(cmd.OutOrStdout(), "ID:    %s\n", req.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "State: %s\n", req.State)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, _ := cmd.Flags().GetString("state")
		kind, _ := cmd.Flags().GetString("kind")

		requests, err := client().ListRequests(state, kind)
		if err != nil {
			return err
		}
		printRequestTable(cmd.OutOrStdout(), requests)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show request statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := client().Stats()
		if err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get request details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := client().GetRequest(args[0])
		if err != nil {
			return err
		}
		printRequest(cmd.OutOrStdout(), req)
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client().CancelRequest(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Request cancelled")
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Retry a failed or cancelled request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := client().RetryRequest(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Queued as new request %s\n", req.ID)
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "View server logs (request, error)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")
		query, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := client().Logs(args[0], date, query, limit)
		if err != nil {
			return err
		}
		printLogEntries(cmd.OutOrStdout(), entries)
		return nil
	},
}

func init() {
	addCmd.Flags().StringP("kind", "k", string(domain.KindVideo), "What to fetch (video, audio, captions)")
	addCmd.Flags().StringP("lang", "l", "", "Caption language code")
	listCmd.Flags().StringP("state", "s", "", "Filter by state")
	listCmd.Flags().StringP("kind", "k", "", "Filter by kind")
	logsCmd.Flags().StringP("date", "d", "", "Day to read (YYYY-MM-DD), defaults to today")
	logsCmd.Flags().StringP("search", "q", "", "Only entries containing this text")
	logsCmd.Flags().IntP("limit", "n", 100, "Maximum entries")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes notices (exit 2) from failures (exit 1)
func exitCode(err error) int {
	if kind, ok := domain.KindOf(err); ok && kind.IsNotice() {
		return 2
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == 499 {
		return 2
	}
	return 1
}
