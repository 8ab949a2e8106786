//go:build !testsignal

package cli_test

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/nhatthm/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhatthm/urlgetter/internal/app/cli"
)

const emptySummary = "-----\nNo successful responses, metrics are not available.\n"

func Test_Run_Error_NoInputSource(t *testing.T) {
	t.Parallel()

	outBuf := new(safeBuffer)
	errBuf := new(safeBuffer)

	code := cli.Run(cli.Config{
		OutWriter: outBuf,
		ErrWriter: errBuf,
	})

	expectedError := "no input source\n"

	assert.Empty(t, outBuf.String())
	assert.Equal(t, cli.CodeErrNoInputSource, code)
	assert.Equal(t, expectedError, errBuf.String())
}

func Test_Run_Error_BadArgs(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		scenario      string
		config        cli.Config
		expectedError string
	}{
		{
			scenario:      "zero timeout",
			config:        cli.Config{},
			expectedError: "timeout must be greater than 0",
		},
		{
			scenario:      "negative timeout",
			config:        cli.Config{Timeout: -1},
			expectedError: "timeout must be greater than 0",
		},
		{
			scenario:      "negative concurrency limit",
			config:        cli.Config{Timeout: 1, ConcurrencyLimit: -1},
			expectedError: "concurrency limit must be greater than 0",
		},
		{
			scenario:      "negative rate",
			config:        cli.Config{Timeout: 1, Rate: -1},
			expectedError: "rate must not be negative",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()

			outBuf := new(safeBuffer)
			errBuf := new(safeBuffer)

			cfg := tc.config
			cfg.OutWriter = outBuf
			cfg.ErrWriter = errBuf

			code := cli.Run(cfg, []string{"https://example.com"})

			assert.Empty(t, outBuf.String())
			assert.Equal(t, tc.expectedError, strings.Trim(errBuf.String(), "\n"))
			assert.Equal(t, cli.CodeErrBadArgs, code)
		})
	}
}

func Test_Run_Error_NoURLs(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		scenario string
		input    string
	}{
		{
			scenario: "empty",
		},
		{
			scenario: "blank lines",
			input:    "\n   \n\t\n",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()

			outBuf := new(safeBuffer)
			errBuf := new(safeBuffer)

			code := cli.Run(cli.Config{
				OutWriter: outBuf,
				ErrWriter: errBuf,
				Timeout:   1,
			}, strings.NewReader(tc.input))

			assert.Empty(t, outBuf.String())
			assert.Equal(t, "no urls to fetch\n", errBuf.String())
			assert.Equal(t, cli.CodeErrNoURLs, code)
		})
	}
}

func Test_Run_InvalidURL(t *testing.T) {
	t.Parallel()

	outBuf := new(safeBuffer)
	errBuf := new(safeBuffer)

	code := cli.Run(cli.Config{
		OutWriter: outBuf,
		ErrWriter: errBuf,
		Timeout:   15,
	}, []string{"baidu.com"})

	expected := "baidu.com is an invalid URL\n" + emptySummary

	assert.Equal(t, expected, outBuf.String())
	assert.Empty(t, errBuf.String())
	assert.Equal(t, cli.CodeOK, code)
}

func Test_Run_TextOutput(t *testing.T) {
	t.Parallel()

	srv := httpmock.New(func(s *httpmock.Server) {
		s.ExpectGet("/path1").
			ReturnCode(httpmock.StatusOK).
			Return(`hello`)

		s.ExpectGet("/path2").
			ReturnCode(httpmock.StatusNotFound)
	})(t)

	outBuf := new(safeBuffer)
	errBuf := new(safeBuffer)

	code := cli.Run(cli.Config{
		OutWriter: outBuf,
		ErrWriter: errBuf,
		Timeout:   15,
	}, append([]string{"baidu.com", ""}, srvRequests(srv, 2)...))

	lines := strings.Split(strings.TrimSuffix(outBuf.String(), "\n"), "\n")

	require.Len(t, lines, 7)

	// Invalid urls settle before any request.
	assert.Equal(t, "baidu.com is an invalid URL", lines[0])
	assert.ElementsMatch(t,
		[]string{srv.URL() + "/path1 200", srv.URL() + "/path2 404"},
		[]string{successLine(t, lines[1]), successLine(t, lines[2])},
	)

	assert.Equal(t, "-----", lines[3])
	assert.Regexp(t, `^Mean response time = \d+\.\d{3}ms$`, lines[4])
	assert.Regexp(t, `^Median response time = \d+\.\d{3}ms$`, lines[5])
	assert.Regexp(t, `^90th percentile of response times = \d+\.\d{3}ms$`, lines[6])

	assert.Empty(t, errBuf.String())
	assert.Equal(t, cli.CodeOK, code)
}

func Test_Run_ConnectionError(t *testing.T) {
	t.Parallel()

	outBuf := new(safeBuffer)
	errBuf := new(safeBuffer)

	code := cli.Run(cli.Config{
		OutWriter:      outBuf,
		ErrWriter:      errBuf,
		Timeout:        15,
		VerbosityLevel: cli.VerbosityLevelError,
	}, []string{closedServerURL(t) + "/path1"})

	expected := "Connection error resolving 127.0.0.1\n" + emptySummary

	assert.Equal(t, expected, outBuf.String())
	assert.Contains(t, errBuf.String(), "connection error")
	assert.Equal(t, cli.CodeOK, code)
}

func Test_Run_Timeout(t *testing.T) {
	t.Parallel()

	stopCh := make(chan struct{})

	srv := httpmock.New(func(s *httpmock.Server) {
		for _, p := range []string{"/path1", "/path2"} {
			s.ExpectGet(p).
				ReturnCode(httpmock.StatusOK).
				Run(func(r *http.Request) ([]byte, error) {
					<-stopCh

					return nil, nil
				})
		}
	})(t)

	t.Cleanup(func() {
		close(stopCh)
	})

	outBuf := new(safeBuffer)
	errBuf := new(safeBuffer)

	code := cli.Run(cli.Config{
		OutWriter: outBuf,
		ErrWriter: errBuf,
		Timeout:   1,
	}, append(srvRequests(srv, 2), "baidu.com"))

	assert.Equal(t, 1, strings.Count(outBuf.String(), "Requested timed out after 1 seconds\n"))
	assert.Contains(t, outBuf.String(), "baidu.com is an invalid URL\n")
	assert.True(t, strings.HasSuffix(outBuf.String(), emptySummary))
	assert.NotContains(t, outBuf.String(), "Request to")
	assert.Empty(t, errBuf.String())
	assert.Equal(t, cli.CodeOK, code)
}

func Test_Run_Timeout_NoticeAfterSettledOutcomes(t *testing.T) {
	t.Parallel()

	stopCh := make(chan struct{})

	srv := httpmock.New(func(s *httpmock.Server) {
		for _, p := range []string{"/path1", "/path2", "/path3"} {
			s.ExpectGet(p).
				ReturnCode(httpmock.StatusOK).
				Return(`hello`)
		}

		s.ExpectGet("/path4").
			ReturnCode(httpmock.StatusOK).
			Run(func(r *http.Request) ([]byte, error) {
				<-stopCh

				return nil, nil
			})
	})(t)

	t.Cleanup(func() {
		close(stopCh)
	})

	outBuf := new(safeBuffer)

	// The lines of the settled requests are still being written when the deadline fires.
	outW := writerFunc(func(p []byte) (int, error) {
		if strings.HasPrefix(string(p), "Request to") {
			time.Sleep(400 * time.Millisecond)
		}

		return outBuf.Write(p)
	})

	code := cli.Run(cli.Config{
		OutWriter: outW,
		ErrWriter: io.Discard,
		Timeout:   1,
	}, srvRequests(srv, 4))

	lines := strings.Split(strings.TrimSuffix(outBuf.String(), "\n"), "\n")

	require.Len(t, lines, 8)

	for _, l := range lines[:3] {
		assert.NotEmpty(t, successLine(t, l))
	}

	assert.Equal(t, "Requested timed out after 1 seconds", lines[3])
	assert.Equal(t, "-----", lines[4])
	assert.Regexp(t, `^Mean response time = \d+\.\d{3}ms$`, lines[5])
	assert.Equal(t, cli.CodeOK, code)
}

func Test_Run_JSONOutput(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		scenario     string
		prettyOutput bool
	}{
		{
			scenario:     "pretty",
			prettyOutput: true,
		},
		{
			scenario:     "no pretty",
			prettyOutput: false,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()

			srv := httpmock.New(func(s *httpmock.Server) {
				s.ExpectGet("/path1").
					ReturnCode(httpmock.StatusOK).
					Return(`hello`)
			})(t)

			outBuf := new(safeBuffer)
			errBuf := new(safeBuffer)

			code := cli.Run(cli.Config{
				OutWriter:    outBuf,
				ErrWriter:    errBuf,
				Timeout:      15,
				JSONOutput:   true,
				PrettyOutput: tc.prettyOutput,
			}, append([]string{"ftp://example.com"}, srvRequests(srv, 1)...))

			require.Equal(t, cli.CodeOK, code)
			assert.Empty(t, errBuf.String())
			assert.Equal(t, tc.prettyOutput, strings.Contains(outBuf.String(), "\n  \"event\""))

			events := decodeEvents(t, outBuf.String())

			require.Len(t, events, 3)

			assert.Equal(t, "outcome", events[0]["event"])
			assert.Equal(t, "invalid_url", events[0]["kind"])
			assert.Equal(t, "ftp://example.com", events[0]["url"])
			assert.Equal(t, `invalid url: parse "ftp://example.com": unsupported scheme "ftp"`, events[0]["error"])

			assert.Equal(t, "outcome", events[1]["event"])
			assert.Equal(t, "success", events[1]["kind"])
			assert.Equal(t, srv.URL()+"/path1", events[1]["url"])
			assert.Equal(t, float64(200), events[1]["status_code"])
			assert.Contains(t, events[1], "duration_ms")

			assert.Equal(t, "summary", events[2]["event"])
			assert.Equal(t, float64(1), events[2]["successes"])
			assert.Equal(t, float64(1), events[2]["invalid_urls"])
			assert.Equal(t, float64(0), events[2]["connection_errors"])
			assert.Equal(t, float64(0), events[2]["timed_out"])
			assert.Equal(t, events[1]["duration_ms"], events[2]["mean_ms"])
			assert.Equal(t, events[1]["duration_ms"], events[2]["median_ms"])
			assert.Equal(t, events[1]["duration_ms"], events[2]["p90_ms"])
		})
	}
}

func Test_Run_JSONOutput_Timeout(t *testing.T) {
	t.Parallel()

	stopCh := make(chan struct{})

	srv := httpmock.New(func(s *httpmock.Server) {
		s.ExpectGet("/path1").
			ReturnCode(httpmock.StatusOK).
			Run(func(r *http.Request) ([]byte, error) {
				<-stopCh

				return nil, nil
			})
	})(t)

	t.Cleanup(func() {
		close(stopCh)
	})

	outBuf := new(safeBuffer)

	code := cli.Run(cli.Config{
		OutWriter:  outBuf,
		ErrWriter:  io.Discard,
		Timeout:    1,
		JSONOutput: true,
	}, srvRequests(srv, 1))

	expected := `{"event":"timeout","timeout_seconds":1}
{"event":"summary","successes":0,"invalid_urls":0,"connection_errors":0,"timed_out":1,"mean_ms":null,"median_ms":null,"p90_ms":null}
`

	assert.Equal(t, expected, outBuf.String())
	assert.Equal(t, cli.CodeOK, code)
}

func Test_Run_Error_Output(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		scenario   string
		jsonOutput bool
	}{
		{scenario: "text"},
		{scenario: "json", jsonOutput: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()

			errBuf := new(safeBuffer)

			code := cli.Run(cli.Config{
				OutWriter: writerFunc(func([]byte) (int, error) {
					return 0, errors.New("write error")
				}),
				ErrWriter:  errBuf,
				Timeout:    15,
				JSONOutput: tc.jsonOutput,
			}, []string{"baidu.com"})

			assert.Equal(t, "could not write to output: write error\n", errBuf.String())
			assert.Equal(t, cli.CodeErrOutput, code)
		})
	}
}

func Test_Run_InputFile_ErrorNotFound(t *testing.T) {
	t.Parallel()

	outBuf := new(safeBuffer)
	errBuf := new(safeBuffer)

	code := cli.Run(cli.Config{
		OutWriter: outBuf,
		ErrWriter: errBuf,
		Timeout:   15,
	}, "file-not-found")

	expectedError := "could not open input file: open file-not-found: no such file or directory\n"

	assert.Empty(t, outBuf.String())
	assert.Equal(t, expectedError, errBuf.String())
	assert.Equal(t, cli.CodeErrOpenInputSource, code)
}

func Test_Run_InputFile_Success(t *testing.T) {
	t.Parallel()

	inputFile := filepath.Join(t.TempDir(), "input.txt")

	err := os.WriteFile(inputFile, []byte("baidu.com\n\n  www.example.com  \n"), 0o644) // nolint: gosec
	if err != nil {
		t.Errorf("could not prepare input file: %v", err)

		return
	}

	outBuf := new(safeBuffer)
	errBuf := new(safeBuffer)

	code := cli.Run(cli.Config{
		OutWriter: outBuf,
		ErrWriter: errBuf,
		Timeout:   15,
	}, inputFile)

	expected := "baidu.com is an invalid URL\nwww.example.com is an invalid URL\n" + emptySummary

	assert.Equal(t, expected, outBuf.String())
	assert.Empty(t, errBuf.String())
	assert.Equal(t, cli.CodeOK, code)
}

func Test_Run_MultipleSources_Unsupported(t *testing.T) {
	t.Parallel()

	outBuf := new(safeBuffer)
	errBuf := new(safeBuffer)

	cfg := cli.Config{
		OutWriter:      outBuf,
		ErrWriter:      errBuf,
		Timeout:        15,
		VerbosityLevel: cli.VerbosityLevelDebug,
	}

	code := cli.Run(cfg,
		[]string{},           // This is ignored because it is empty.
		"",                   // This is ignored because it is empty.
		nil,                  // This is ignored because it is nil.
		(io.ReadCloser)(nil), // This is ignored because it is nil.
		(io.Reader)(nil),     // This is ignored because it is nil.
		2,                    // This is not a supported source.
	)

	expectedError := `unsupported input source: int`

	assert.Empty(t, outBuf.String())
	assert.Equal(t, expectedError, strings.Trim(errBuf.String(), "\n"))
	assert.Equal(t, cli.CodeErrUnsupportedInputSource, code)
}

func Test_Run_CouldNotReadFromSource(t *testing.T) {
	t.Parallel()

	outBuf := new(safeBuffer)
	errBuf := new(safeBuffer)

	code := cli.Run(cli.Config{
		OutWriter:      outBuf,
		ErrWriter:      errBuf,
		Timeout:        15,
		VerbosityLevel: cli.VerbosityLevelError,
	}, readerFunc(func([]byte) (n int, err error) {
		return 0, errors.New("read error")
	}))

	expectedLog := `could not read input	{"error": "read error"}`

	assert.Empty(t, outBuf.String())
	assert.Contains(t, errBuf.String(), expectedLog)
	assert.Contains(t, errBuf.String(), "could not read input: read error\n")
	assert.Equal(t, cli.CodeErrReadInputSource, code)
}

func Test_Run_MetricsFile(t *testing.T) {
	t.Parallel()

	srv := httpmock.New(func(s *httpmock.Server) {
		s.ExpectGet("/path1").
			ReturnCode(httpmock.StatusOK).
			Return(`hello`)
	})(t)

	metricsFile := filepath.Join(t.TempDir(), "urlgetter.prom")

	code := cli.Run(cli.Config{
		OutWriter:   io.Discard,
		ErrWriter:   io.Discard,
		Timeout:     15,
		MetricsFile: metricsFile,
	}, append(srvRequests(srv, 1), "baidu.com"))

	require.Equal(t, cli.CodeOK, code)

	content, err := os.ReadFile(filepath.Clean(metricsFile))
	require.NoError(t, err)

	assert.Contains(t, string(content), `urlgetter_fetch_outcomes_total{kind="success"} 1`)
	assert.Contains(t, string(content), `urlgetter_fetch_outcomes_total{kind="invalid_url"} 1`)
	assert.Contains(t, string(content), `urlgetter_fetch_outcomes_total{kind="timed_out"} 0`)
	assert.Contains(t, string(content), `urlgetter_fetch_duration_milliseconds_count 1`)
}

func Test_Run_Error_MetricsFile(t *testing.T) {
	t.Parallel()

	outBuf := new(safeBuffer)
	errBuf := new(safeBuffer)

	code := cli.Run(cli.Config{
		OutWriter:   outBuf,
		ErrWriter:   errBuf,
		Timeout:     15,
		MetricsFile: filepath.Join(t.TempDir(), "missing", "urlgetter.prom"),
	}, []string{"baidu.com"})

	assert.Equal(t, "baidu.com is an invalid URL\n"+emptySummary, outBuf.String())
	assert.Contains(t, errBuf.String(), "could not write metrics")
	assert.Equal(t, cli.CodeErrMetricsOutput, code)
}

func Test_Run_Debug(t *testing.T) {
	t.Parallel()

	srv := httpmock.New(func(s *httpmock.Server) {
		s.ExpectGet("/path1").
			ReturnCode(httpmock.StatusOK).
			Return(`hello`)
	})(t)

	outBuf := new(safeBuffer)
	errBuf := new(safeBuffer)

	code := cli.Run(cli.Config{
		OutWriter:      outBuf,
		ErrWriter:      errBuf,
		Timeout:        15,
		VerbosityLevel: cli.VerbosityLevelDebug,
	}, append(srvRequests(srv, 1), "baidu.com"))

	assert.Equal(t, cli.CodeOK, code)
	assert.Contains(t, outBuf.String(), "baidu.com is an invalid URL\n")

	expectedLogLines := map[string][]string{
		"DEBUG": {
			"loaded url",
			"loaded all urls",
			"started batch",
			"armed deadline",
			"send http request",
			"finished fetching",
			"all requests settled before deadline",
			"finished batch",
			"computed summary",
		},
		"ERROR": {
			"invalid url",
		},
	}

	hasError := false

	// nolint: ifshort // The scanner will read and reset the errBuf. This is a test, so it is fine to skip the tee.
	fullLog := errBuf.String()
	scanner := bufio.NewScanner(errBuf)

	actualLogLines := make(map[string]map[string]struct{})

	for scanner.Scan() {
		actualCols := strings.Split(scanner.Text(), "\t")
		if len(actualCols) < 4 {
			continue
		}

		actualLevel, actualMsg := actualCols[1], actualCols[3]

		if _, ok := actualLogLines[actualLevel]; !ok {
			actualLogLines[actualLevel] = make(map[string]struct{})
		}

		actualLogLines[actualLevel][actualMsg] = struct{}{}
	}

	for level, expectedMsgs := range expectedLogLines {
		for _, expectedMsg := range expectedMsgs {
			if _, ok := actualLogLines[level][expectedMsg]; !ok {
				hasError = true

				t.Errorf("missing log line for level %s: %q", level, expectedMsg)
			}
		}
	}

	if hasError {
		t.Logf("full log:\n%s", fullLog)
	}
}

var successLinePattern = regexp.MustCompile(`^Request to (\S+) responded with (\d{3}) and took \d+\.\d{3}ms to complete$`)

// successLine returns the url and the status code of a success line.
func successLine(t *testing.T, line string) string {
	t.Helper()

	m := successLinePattern.FindStringSubmatch(line)
	if m == nil {
		t.Errorf("unexpected success line: %q", line)

		return ""
	}

	return fmt.Sprintf("%s %s", m[1], m[2])
}

// decodeEvents decodes a stream of JSON documents.
func decodeEvents(t *testing.T, s string) []map[string]interface{} {
	t.Helper()

	dec := json.NewDecoder(strings.NewReader(s))
	events := make([]map[string]interface{}, 0)

	for {
		var e map[string]interface{}

		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			return events
		}

		require.NoError(t, err)

		events = append(events, e)
	}
}
