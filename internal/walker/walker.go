// Package walker enumerates files below a root directory and decides which
// of them are worth scanning.
package walker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"

	tserrors "github.com/vnykmshr/threadsearch/pkg/common/errors"
	"github.com/vnykmshr/threadsearch/pkg/scheduling/dispatcher"
)

// DefaultExtensions are the file suffixes searched when none are configured.
var DefaultExtensions = []string{".cc", ".c", ".cpp", ".h", ".hpp", ".pl", ".sh", ".py", ".txt"}

// FS walks an afero filesystem and accepts regular files whose base name
// ends in one of the configured extensions.
type FS struct {
	fs      afero.Fs
	pattern glob.Glob
	expr    string
	logger  *slog.Logger
}

// New creates a walker over fs. An empty extensions list selects
// DefaultExtensions. A nil logger discards records.
func New(fs afero.Fs, extensions []string, logger *slog.Logger) (*FS, error) {
	if fs == nil {
		return nil, tserrors.NewValidationError("walker", "fs", nil, "cannot be nil")
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	expr, err := Pattern(extensions)
	if err != nil {
		return nil, err
	}
	g, err := glob.Compile(expr)
	if err != nil {
		return nil, tserrors.NewValidationError("walker", "extensions", extensions, err.Error())
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FS{
		fs:      fs,
		pattern: g,
		expr:    expr,
		logger:  logger.With("component", "walker"),
	}, nil
}

// Pattern builds the glob that matches any of the given extensions, for
// example "*.{c,h}". A leading dot on each extension is optional.
func Pattern(extensions []string) (string, error) {
	if len(extensions) == 0 {
		return "", tserrors.NewValidationError("walker", "extensions", extensions, "cannot be empty")
	}
	parts := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext == "" || strings.ContainsAny(ext, `*?[]{},\/`) {
			return "", tserrors.NewValidationError("walker", "extensions", ext, "not a plain file extension").
				WithHint(`use values like ".c" or "py"`)
		}
		parts = append(parts, ext)
	}
	if len(parts) == 1 {
		return "*." + parts[0], nil
	}
	return "*.{" + strings.Join(parts, ",") + "}", nil
}

// String returns the glob the walker matches base names against.
func (w *FS) String() string {
	return w.expr
}

// Eligible reports whether the item's base name carries an accepted
// extension. Hidden files with no name before the dot do not count.
func (w *FS) Eligible(item dispatcher.Item) bool {
	base := filepath.Base(item.Path)
	if strings.LastIndex(base, ".") <= 0 {
		return false
	}
	return w.pattern.Match(base)
}

// Walk calls fn for every regular file below root in lexical order,
// including symlinks that point at regular files.
// Entries that cannot be read are logged and skipped; only a failure to
// read root itself, a cancelled ctx or an error from fn ends the walk early.
func (w *FS) Walk(ctx context.Context, root string, fn func(dispatcher.Item) error) error {
	return afero.Walk(w.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("walk %s: %w", root, err)
			}
			w.logger.Debug("skipping unreadable entry", "path", path, "error", err)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			info = w.resolve(path)
			if info == nil {
				return nil
			}
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return fn(dispatcher.Item{Path: path, Size: info.Size()})
	})
}

// resolve follows a symlink found during the walk. It returns nil for
// dangling links and links to anything but a regular file; linked
// directories are never descended into.
func (w *FS) resolve(path string) os.FileInfo {
	target, err := w.fs.Stat(path)
	if err != nil {
		w.logger.Debug("skipping dangling symlink", "path", path, "error", err)
		return nil
	}
	if !target.Mode().IsRegular() {
		return nil
	}
	return target
}

var _ dispatcher.Source = (*FS)(nil)
