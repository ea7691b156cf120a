// Package scan searches a single file for lines containing a target string.
package scan

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"github.com/vnykmshr/threadsearch/internal/report"
	tserrors "github.com/vnykmshr/threadsearch/pkg/common/errors"
	"github.com/vnykmshr/threadsearch/pkg/scheduling/dispatcher"
	"github.com/vnykmshr/threadsearch/pkg/scheduling/workerpool"
)

// Scanner reads files from an afero filesystem and reports matching lines
// to a sink.
type Scanner struct {
	fs   afero.Fs
	sink report.Sink
}

// New creates a Scanner. A nil sink only counts matches.
func New(fs afero.Fs, sink report.Sink) *Scanner {
	return &Scanner{fs: fs, sink: sink}
}

// Scan reports every line of item that contains target and returns the
// number of such lines. Matches carry the worker and run ids found in ctx.
// Line numbers start at 1. Files that cannot be opened or read yield an
// error wrapping errors.ErrItemAccess.
//
// Scan has the dispatcher.Body signature.
func (s *Scanner) Scan(ctx context.Context, item dispatcher.Item, target string) (int, error) {
	f, err := s.fs.Open(item.Path)
	if err != nil {
		return 0, accessError("open", item.Path, err)
	}
	defer f.Close()

	workerID, ok := workerpool.WorkerID(ctx)
	if !ok {
		workerID = -1
	}
	runID, _ := dispatcher.RunIDFromContext(ctx)

	r := bufio.NewReader(f)
	matches := 0
	for lineNum := 1; ; lineNum++ {
		line, readErr := r.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return matches, accessError("read", item.Path, readErr)
		}
		if readErr != nil && line == "" {
			return matches, nil
		}

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		if strings.Contains(line, target) {
			matches++
			if s.sink != nil {
				err := s.sink.Match(ctx, report.Match{
					RunID:    runID,
					WorkerID: workerID,
					File:     item.Path,
					Line:     lineNum,
					Text:     line,
				})
				if err != nil {
					return matches, fmt.Errorf("report match in %s: %w", item.Path, err)
				}
			}
		}

		if readErr != nil {
			return matches, nil
		}
	}
}

func accessError(op, path string, err error) error {
	return tserrors.NewOperationError("scan", op, fmt.Errorf("%w: %w", tserrors.ErrItemAccess, err)).
		WithContext(path)
}
