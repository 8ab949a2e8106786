package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bool64/ctxd"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/nhatthm/urlgetter/internal/collector"
	"github.com/nhatthm/urlgetter/internal/fetcher"
	"github.com/nhatthm/urlgetter/internal/footprint"
	"github.com/nhatthm/urlgetter/internal/logger"
	"github.com/nhatthm/urlgetter/internal/metrics"
	"github.com/nhatthm/urlgetter/internal/telemetry"
)

const (
	// CodeOK indicates that the program exited with success.
	CodeOK = ExitCode(iota)
	// CodeErrOperationCanceled indicates that the program has been terminated and operation is canceled.
	CodeErrOperationCanceled
	// CodeErrNoInputSource indicates that the program has no input source.
	CodeErrNoInputSource
	// CodeErrOpenInputSource indicates that the program could not open input file.
	CodeErrOpenInputSource
	// CodeErrUnsupportedInputSource indicates that the program could not use the input source.
	CodeErrUnsupportedInputSource
	// CodeErrReadInputSource indicates that the program could not read the input source.
	CodeErrReadInputSource
	// CodeErrBadArgs indicates that the provided arguments are invalid.
	CodeErrBadArgs
	// CodeErrNoURLs indicates that the input source has no url.
	CodeErrNoURLs
	// CodeErrOutput indicates that the program could not write to output.
	CodeErrOutput
	// CodeErrMetricsOutput indicates that the program could not write the metrics file.
	CodeErrMetricsOutput
)

// errOperationCanceled indicates that the program received a termination signal.
var errOperationCanceled = errors.New("operation canceled")

// ExitCode is the exit code of the program.
type ExitCode int

// Run runs the program to fetch urls from sources and report the latency statistics.
//
// It will take only the first valid source as an input. The source types are:
// - []string: A list of URLs.
// - string: A file path that contains a list of URLs, one on each line.
// - io.ReadCloser: A reader that contains a list of URLs, one on each line.
// - io.Reader: A reader that contains a list of URLs, one on each line.
//
// The URLs must have a http or https scheme and a hostname, the others are reported as invalid.
func Run(cfg Config, inputSources ...any) ExitCode {
	// Configure input source.
	inputSource, code, err := initInputSource(inputSources...)
	if err != nil {
		_, _ = fmt.Fprintln(cfg.ErrWriter, err.Error())

		return code
	}

	defer inputSource.Close() // nolint: errcheck

	log := initLogger(cfg.VerbosityLevel, cfg.ErrWriter)

	urls, err := loadURLs(context.Background(), inputSource, log)
	if err != nil {
		_, _ = fmt.Fprintln(cfg.ErrWriter, err.Error())

		return CodeErrReadInputSource
	}

	// Configure resultWriter.
	var writeResult resultWriter

	if cfg.JSONOutput {
		writeResult = jsonWriter(cfg.OutWriter, cfg.PrettyOutput)
	} else {
		writeResult = textWriter(cfg.OutWriter)
	}

	reg := prometheus.NewRegistry()

	rec, err := telemetry.NewRecorder(reg)
	if err != nil { // This should not happen with a new registry.
		_, _ = fmt.Fprintln(cfg.ErrWriter, err.Error())

		return CodeErrMetricsOutput
	}

	notice := new(deadlineNotice)
	f := initFetcher(cfg, notice.Deadline, log)

	code, err = doFetch(f, urls, writeResult, notice, rec, log)
	if err != nil {
		_, _ = fmt.Fprintln(cfg.ErrWriter, err.Error())
	}

	if cfg.MetricsFile == "" || (code != CodeOK && code != CodeErrOperationCanceled) {
		return code
	}

	if err := telemetry.WriteFile(cfg.MetricsFile, reg); err != nil {
		log.Error(context.Background(), "could not write metrics file", "error", err, "path", cfg.MetricsFile)

		_, _ = fmt.Fprintln(cfg.ErrWriter, err.Error())

		if code == CodeOK {
			code = CodeErrMetricsOutput
		}
	}

	return code
}

// initLogger returns a new logger.
//
// If the verbosity level is silent, all the log messages will be discarded by sending them to io.Discard.
// Otherwise, the logger will write to the stderr writer.
//
// Then the verbosity level is
// - VerbosityLevelError, the log level will be set to logger.ErrorLevel.
// - VerbosityLevelDebug, the log level will be set to logger.DebugLevel.
func initLogger(level VerbosityLevel, errWriter io.Writer) ctxd.Logger {
	logCfg := logger.Config{
		Output: io.Discard,
		Level:  logger.ErrorLevel,
	}

	if level > VerbosityLevelSilent {
		logCfg.Output = errWriter
	}

	if level > VerbosityLevelError {
		logCfg.Level = logger.DebugLevel
	}

	return logger.NewLogger(logCfg)
}

// initInputSource returns the first valid input source.
//
// It accepts a list of input sources. The source types are:
// - []string: A list of URLs. If the list is empty, it is ignored.
// - string: A file path that contains a list of URLs, one on each line. If the path is empty, it is ignored.
// - io.ReadCloser: A reader that contains a list of URLs, one on each line.
// - io.Reader: A reader that contains a list of URLs, one on each line.
//
// The function returns an input source as an io.ReadCloser so that it can be read and closed by the caller.
//
// nolint: cyclop,goerr113 // Error will be printed out.
func initInputSource(sources ...any) (io.ReadCloser, ExitCode, error) {
	for _, source := range sources {
		switch s := source.(type) {
		case nil:
			continue

		case []string:
			if len(s) == 0 {
				continue
			}

			return io.NopCloser(strings.NewReader(strings.Join(s, "\n"))), CodeOK, nil

		case string:
			if len(s) == 0 {
				continue
			}

			f, err := os.Open(filepath.Clean(s))
			if err != nil {
				return nil, CodeErrOpenInputSource, fmt.Errorf("could not open input file: %w", err)
			}

			return f, CodeOK, nil

		case io.ReadCloser:
			return s, CodeOK, nil

		case io.Reader:
			return io.NopCloser(s), CodeOK, nil

		default:
			return nil, CodeErrUnsupportedInputSource, fmt.Errorf("unsupported input source: %T", s)
		}
	}

	return nil, CodeErrNoInputSource, errors.New("no input source")
}

// initFetcher initiates a new fetcher.HTTPFetcher that reports the deadline to onDeadline.
//
// The configuration is validated by the fetcher when the batch starts.
func initFetcher(cfg Config, onDeadline fetcher.DeadlineHandler, log ctxd.Logger) *fetcher.HTTPFetcher {
	concurrencyLimit := cfg.ConcurrencyLimit
	if concurrencyLimit == 0 {
		concurrencyLimit = DefaultConcurrencyLimit
	}

	return fetcher.NewHTTPFetcher(
		fetcher.WithTimeout(time.Duration(cfg.Timeout)*time.Second),
		fetcher.WithConcurrencyLimit(concurrencyLimit),
		fetcher.WithRate(cfg.Rate),
		fetcher.WithDeadlineHandler(onDeadline),
		fetcher.WithLogger(log),
	)
}

// doFetch fetches the urls and writes the outcomes, the timeout notice and the summary to the result writer.
//
// The timeout notice is written after all the outcomes, so the requests that settled before the deadline are always
// written before it.
//
// In case of SIGINT or SIGTERM, the outstanding requests will be canceled, the summary is still written and the
// function will return CodeErrOperationCanceled.
// In case of invalid arguments, the function will return CodeErrBadArgs, or CodeErrNoURLs if there is no url.
// In case of output error, the function will return CodeErrOutput.
//
// The returned error, if any, should be shown to the user.
func doFetch(
	f *fetcher.HTTPFetcher,
	urls []string,
	writeResult resultWriter,
	notice *deadlineNotice,
	rec *telemetry.Recorder,
	log ctxd.Logger,
) (ExitCode, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := collector.New()

	go footprint.Track(ctx, log, footprint.DefaultInterval,
		func() []interface{} { return []interface{}{"fetcher.permits_in_use", f.Limiter().InUse()} },
		func() []interface{} { return []interface{}{"collector.num_outcomes", results.Len()} },
	)

	sigs := make(chan os.Signal, 1)

	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	var g errgroup.Group

	g.Go(func() error { // Watch for termination to cancel the context in order to abandon the outstanding requests.
		select {
		case <-sigs:
			log.Error(ctx, "operation canceled")

			cancel()

			return errOperationCanceled

		case <-ctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		defer cancel()

		outcomes, err := f.FetchAll(ctx, urls)
		if err != nil {
			return err
		}

		for o := range outcomes {
			results.Record(o)
			rec.Observe(o)
			writeResult.Outcome(o)
		}

		// The stream is closed after the deadline handler returns.
		notice.flush(ctx, writeResult)

		summary, err := metrics.Compute(results.SuccessDurations())

		log.Debug(ctx, "computed summary", "summary", summary, "counts", results.Counts())

		writeResult.Summary(results.Counts(), summary, err)

		return writeResult.Err()
	})

	err := g.Wait()

	var fatalErr *fetcher.FatalError

	switch {
	case err == nil:
		return CodeOK, nil

	case errors.Is(err, errOperationCanceled):
		return CodeErrOperationCanceled, nil

	case errors.Is(err, fetcher.ErrNoURLs):
		return CodeErrNoURLs, err

	case errors.As(err, &fatalErr):
		return CodeErrBadArgs, err
	}

	return CodeErrOutput, err
}
