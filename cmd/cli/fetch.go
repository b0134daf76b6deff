package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/app"
	"github.com/yourusername/media-fetch-go/internal/domain"
	"github.com/yourusername/media-fetch-go/internal/infrastructure"
	"github.com/yourusername/media-fetch-go/internal/tui"
	"github.com/yourusername/media-fetch-go/pkg/logger"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Fetch a video, its audio or its captions locally",
	Long: `Fetch runs the whole pipeline in this process and shows a progress view.
The result is written to --output, or the configured output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringP("kind", "k", string(domain.KindVideo), "What to fetch (video, audio, captions)")
	fetchCmd.Flags().StringP("lang", "l", "", "Caption language code")
	fetchCmd.Flags().StringP("output", "o", "", "Output directory")
	fetchCmd.Flags().Bool("plain", false, "Print plain progress lines instead of the progress view")
}

func runFetch(cmd *cobra.Command, args []string) error {
	kindFlag, _ := cmd.Flags().GetString("kind")
	lang, _ := cmd.Flags().GetString("lang")
	output, _ := cmd.Flags().GetString("output")
	plain, _ := cmd.Flags().GetBool("plain")

	kind, err := domain.ParseRequestKind(kindFlag)
	if err != nil {
		return err
	}

	config, err := app.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if output != "" {
		config.Download.OutputDir = output
	}

	// Logs go to a file so they don't tear the progress view
	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     "json",
		OutputPath: filepath.Join(config.Download.LogsDir, "cli.log"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	pipeline, cleanup, err := app.BuildPipeline(ctx, config, log)
	if err != nil {
		return err
	}
	defer cleanup()

	deliverer := infrastructure.NewFilesystemDeliverer(config.Download.OutputDir, log)
	fetch := fetchFunc(pipeline, deliverer, app.FetchRequest{URL: args[0], Kind: kind, Language: lang}, log)

	var location string
	if plain {
		location, err = fetch(ctx, tui.PlainObserver(cmd.OutOrStdout()))
	} else {
		location, err = tui.Run(ctx, args[0], kind, fetch)
	}
	if err != nil {
		if k, ok := domain.KindOf(err); ok {
			return &fetchError{kind: k, err: err}
		}
		return err
	}

	if plain {
		fmt.Fprintf(cmd.OutOrStdout(), "Saved to %s\n", location)
	}
	return nil
}

// fetchFunc runs one request through the pipeline and delivers the artifact
func fetchFunc(fetcher app.Fetcher, deliverer domain.Deliverer, req app.FetchRequest, log *zap.Logger) tui.FetchFunc {
	return func(ctx context.Context, observer app.Observer) (string, error) {
		artifact, _, err := fetcher.Fetch(ctx, req, observer)
		if err != nil {
			log.Info("Fetch failed", zap.String("url", req.URL), zap.Error(err))
			return "", err
		}
		location, err := deliverer.Deliver(ctx, artifact)
		if err != nil {
			return "", fmt.Errorf("failed to save %s: %w", artifact.Filename(), err)
		}
		return location, nil
	}
}

// fetchError shows the user-facing message while keeping the kind reachable
type fetchError struct {
	kind domain.ErrorKind
	err  error
}

func (e *fetchError) Error() string {
	return e.kind.UserMessage()
}

func (e *fetchError) Unwrap() error {
	return e.err
}
