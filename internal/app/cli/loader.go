package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bool64/ctxd"
)

// loadURLs reads all the urls from a source, one on each line. Blank lines are skipped.
//
// All the urls are needed before the dispatch because the batch shares one deadline and an empty batch is rejected.
func loadURLs(ctx context.Context, source io.Reader, log ctxd.Logger) ([]string, error) {
	s := bufio.NewScanner(source)
	urls := make([]string, 0)

	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}

		log.Debug(ctx, "loaded url", "url", line)

		urls = append(urls, line)
	}

	if err := s.Err(); err != nil {
		log.Error(ctx, "could not read input", "error", err)

		return nil, fmt.Errorf("could not read input: %w", err)
	}

	log.Debug(ctx, "loaded all urls", "num_urls", len(urls))

	return urls, nil
}
