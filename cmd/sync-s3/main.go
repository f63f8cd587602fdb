package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yuya-takeyama/sync-s3/internal/config"
	"github.com/yuya-takeyama/sync-s3/internal/metadata"
	"github.com/yuya-takeyama/sync-s3/internal/progress"
	"github.com/yuya-takeyama/sync-s3/internal/report"
	"github.com/yuya-takeyama/sync-s3/internal/walker"
	"github.com/yuya-takeyama/sync-s3/pkg/executor"
	"github.com/yuya-takeyama/sync-s3/pkg/logger"
	"github.com/yuya-takeyama/sync-s3/pkg/planner"
	"github.com/yuya-takeyama/sync-s3/pkg/s3client"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitArgs      = 2
	exitHelp      = 127
	progressEvery = 2 * time.Second
)

var errTransfersFailed = errors.New("one or more transfers failed")

type syncOptions struct {
	execute     bool
	concurrency int
	force       bool
	maxRetries  int
	logLevel    string
}

// clientFactory builds the storage client once the config document is loaded.
type clientFactory func(ctx context.Context, cfg *config.Config, log zerolog.Logger, maxRetries int) (s3client.Client, error)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func argError(err error) error {
	return &exitError{code: exitArgs, err: err}
}

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr, newAWSClient))
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer, newClient clientFactory) int {
	var opts syncOptions
	helpShown := false
	if args == nil {
		args = []string{}
	}

	rootCmd := &cobra.Command{
		Use:   "sync-s3 [--execute] [--concurrency N] [--force] [--max-retries N] ENV-PATH",
		Short: "One-way sync of a local directory to an S3 bucket",
		Long: `sync-s3 compares a local directory with the contents of an S3 bucket using MD5
checksums and uploads new or changed files and deletes objects that no longer
exist locally. Without --execute it only prints what it found.

ENV-PATH is the path to an env JSON document holding region, bucket,
copySourceDirectory, metadataFile and credentials.`,
		Version:       fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return argError(fmt.Errorf("expects exactly one positional argument, the env JSON path: %w", err))
			}
			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.concurrency < 1 {
				return argError(fmt.Errorf("--concurrency must be a number >= 1, got %d", opts.concurrency))
			}
			if opts.maxRetries < 0 {
				return argError(fmt.Errorf("--max-retries must not be negative, got %d", opts.maxRetries))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(stderr, logger.ParseLevel(opts.logLevel))
			if opts.execute && !cmd.Flags().Changed("concurrency") {
				log.Warn().Int("concurrency", opts.concurrency).Msg("Missing --concurrency, using default")
			}
			return run(ctx, args[0], opts, stdout, stderr, log, newClient)
		},
	}

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return argError(err)
	})
	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helpShown = true
		defaultHelp(cmd, args)
	})

	rootCmd.Flags().BoolVar(&opts.execute, "execute", false, "Execute the transfers (without it only the comparison is printed)")
	rootCmd.Flags().IntVar(&opts.concurrency, "concurrency", executor.DefaultConcurrency, "Number of parallel transfer workers")
	rootCmd.Flags().BoolVar(&opts.force, "force", false, "Upload files even if they are unchanged")
	rootCmd.Flags().IntVar(&opts.maxRetries, "max-retries", s3client.DefaultMaxRetries, "Retries of a throttled or failed S3 request before it counts as a transfer error")
	rootCmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	err := rootCmd.Execute()
	if helpShown {
		return exitHelp
	}
	return exitCode(err, stderr, rootCmd)
}

func exitCode(err error, stderr io.Writer, cmd *cobra.Command) int {
	if err == nil {
		return exitOK
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		fmt.Fprintf(stderr, "CLI ERROR: %v\n\n", exitErr.err)
		fmt.Fprint(stderr, cmd.UsageString())
		return exitErr.code
	}
	if !errors.Is(err, errTransfersFailed) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitFailure
}

func run(ctx context.Context, envPath string, opts syncOptions, stdout, stderr io.Writer, log zerolog.Logger, newClient clientFactory) error {
	startTime := time.Now()

	cfg, err := config.Load(envPath)
	if err != nil {
		return err
	}

	client, err := newClient(ctx, cfg, log, opts.maxRetries)
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}

	objects, err := client.ListObjects(ctx, &s3client.ListObjectsRequest{
		Bucket: cfg.Bucket,
		Prefix: planner.RootKey(cfg.Prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to list s3://%s/%s: %w", cfg.Bucket, planner.RootKey(cfg.Prefix), err)
	}
	remote := remoteEntries(objects, cfg)
	log.Debug().Int("objects", len(remote)).Str("bucket", cfg.Bucket).Msg("Listed bucket")

	w, err := walker.NewWalker(cfg.CopySourceDirectory, cfg.Exclude)
	if err != nil {
		return err
	}
	log.Debug().Str("source", w.Root()).Strs("exclude", cfg.Exclude).Msg("Walking source directory")
	plan, err := planner.Compare(remote, w.Entries(), planner.CompareOptions{Prefix: cfg.Prefix})
	if err != nil {
		return fmt.Errorf("failed to compare %s with s3://%s: %w", cfg.CopySourceDirectory, cfg.Bucket, err)
	}
	report.PrintComparisons(stdout, plan)

	doc, err := metadata.Load(cfg.MetadataFile)
	if err != nil {
		return err
	}
	if err := report.PrintMetadata(stdout, doc); err != nil {
		return err
	}

	if !opts.execute {
		log.Warn().Msg("Missing --execute, stopping.")
		return nil
	}
	if opts.force {
		log.Warn().Msg("--force provided; Unchanged files will be uploaded")
	}

	queue := executor.NewQueue(plan.Pending(opts.force))
	tracker := progress.NewTracker(log, queue.Len(), queue.TotalSize())

	exec := executor.NewExecutor(client, log, opts.concurrency, executor.Options{
		Bucket:   cfg.Bucket,
		Metadata: doc,
		Force:    opts.force,
	})
	exec.AddObserver(tracker)

	reportCtx, stopReport := context.WithCancel(ctx)
	reportDone := make(chan struct{})
	go func() {
		defer close(reportDone)
		tracker.Report(reportCtx, progressEvery)
	}()
	ok, err := exec.Run(ctx, queue)
	stopReport()
	<-reportDone
	if err != nil {
		return fmt.Errorf("sync aborted: %w", err)
	}

	tracker.PrintSummary(stderr)
	log.Debug().Dur("duration", time.Since(startTime)).Msg("Sync finished")

	if ok {
		report.PrintSuccess(stdout)
		return nil
	}
	report.PrintFailures(stderr, exec.LatestErrors())
	return errTransfersFailed
}

// remoteEntries converts the listing, dropping keys that match an exclude pattern so
// excluded files are never deleted.
func remoteEntries(objects []s3client.Object, cfg *config.Config) []planner.RemoteEntry {
	entries := make([]planner.RemoteEntry, 0, len(objects))
	for _, obj := range objects {
		if len(cfg.Exclude) > 0 && walker.MatchAny(cfg.Exclude, planner.RelativeKey(cfg.Prefix, obj.Key)) {
			continue
		}
		entries = append(entries, planner.RemoteEntry{
			Key:  obj.Key,
			ETag: obj.ETag,
			Size: obj.Size,
		})
	}
	return entries
}

func newAWSClient(ctx context.Context, cfg *config.Config, log zerolog.Logger, maxRetries int) (s3client.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.Credentials.AccessKeyID,
			cfg.Credentials.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3client.NewAWSClient(awsCfg, s3client.WithLogger(log), s3client.WithMaxRetries(maxRetries)), nil
}
