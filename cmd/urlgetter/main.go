package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nhatthm/urlgetter/internal/app/cli"
)

const (
	// defaultTimeout is the default deadline of the whole batch, in seconds.
	defaultTimeout = 15

	usage = `Fetch urls concurrently and report the response times.

Usage:
  [app] [options] [url1 url2 ... urlN]

Options:
  -f, --file PATH/TO/FILE
                    Path to the input file that contains a list of urls,
                    separated by '\n'.
                    This option is used if no urls are provided.
  -t, --timeout SECONDS
                    Deadline of the whole batch, in seconds. The requests
                    that are still running are abandoned when it fires.
                    Default to [defaultTimeout].
  -r, --rate NUM    Maximum number of requests started per second.
                    Default to 0, unlimited.
  --json            Print the results as JSON documents.
  --no-pretty       Disable pretty JSON output.
  --metrics-file PATH/TO/FILE
                    Write the prometheus metrics of the run to a file.
  -v, --verbose     Print out the error log messages.
  -vv               Print out the all log messages.
  -h, --help        Print out the help message.

Examples:
  Fetch all the urls in path/to/file.txt:
    [app] -f path/to/file.txt

  Fetch all the urls in arguments:
    [app] https://google.com https://facebook.com

  Fetch all the urls in stdin:
    echo "https://google.com" | [app] -vv

  Fetch with a 5 seconds deadline:
    [app] -t 5 https://google.com

Note:
  - All urls must have a http or https scheme and a hostname, the others are
    reported as invalid.
  - At most [concurrencyLimit] requests run at the same time.
`
)

var (
	// argInputFile is the path to an input file that contains a list of urls, separated by '\n'.
	argInputFile string
	// argTimeout is the deadline of the whole batch, in seconds.
	argTimeout = defaultTimeout
	// argRate is the maximum number of requests started per second.
	argRate float64
	// argJSON is used to print the results in JSON.
	argJSON bool
	// argNoPretty is used to turn of json prettifier.
	argNoPretty bool
	// argMetricsFile is the path to the prometheus metrics file.
	argMetricsFile string

	// argVerbose is used to set the verbosity level.
	argVerbose bool
	// argVeryVerbose is used to set the verbosity level.
	argVeryVerbose bool
)

// init is for registering all the arguments.
// nolint: gochecknoinits
func init() {
	flag.StringVar(&argInputFile, "file", "", "")
	flag.StringVar(&argInputFile, "f", "", "")
	flag.IntVar(&argTimeout, "timeout", defaultTimeout, "")
	flag.IntVar(&argTimeout, "t", defaultTimeout, "")
	flag.Float64Var(&argRate, "rate", 0, "")
	flag.Float64Var(&argRate, "r", 0, "")
	flag.BoolVar(&argJSON, "json", false, "")
	flag.BoolVar(&argNoPretty, "no-pretty", false, "")
	flag.StringVar(&argMetricsFile, "metrics-file", "", "")
	flag.BoolVar(&argVerbose, "verbose", false, "")
	flag.BoolVar(&argVerbose, "v", false, "")
	flag.BoolVar(&argVeryVerbose, "vv", false, "")

	flag.Usage = func() {
		r := strings.NewReplacer(
			`[app]`, filepath.Base(os.Args[0]),
			`[defaultTimeout]`, strconv.Itoa(defaultTimeout),
			`[concurrencyLimit]`, strconv.Itoa(cli.DefaultConcurrencyLimit),
		)

		fmt.Print(r.Replace(usage))
	}
}

func main() {
	os.Exit(runMain())
}

func runMain() int {
	flag.Parse()

	cfg := cli.Config{
		OutWriter:        os.Stdout,
		ErrWriter:        os.Stderr,
		Timeout:          argTimeout,
		ConcurrencyLimit: cli.DefaultConcurrencyLimit,
		Rate:             argRate,
		JSONOutput:       argJSON,
		PrettyOutput:     !argNoPretty,
		MetricsFile:      argMetricsFile,
		VerbosityLevel:   cli.VerbosityLevelSilent,
	}

	if argVeryVerbose {
		cfg.VerbosityLevel = cli.VerbosityLevelDebug
	} else if argVerbose {
		cfg.VerbosityLevel = cli.VerbosityLevelError
	}

	return int(cli.Run(cfg, flag.Args(), argInputFile, pipeFromStdIn(os.Stdin)))
}

// Detect if stdin is piped from another process.
func pipeFromStdIn(in *os.File) io.ReadCloser {
	fi, err := in.Stat()
	if err != nil {
		// Just ignore because we do not know if it is a pipe or not.
		return nil
	}

	if (fi.Mode() & os.ModeNamedPipe) != 0 {
		return io.NopCloser(in)
	}

	return nil
}
