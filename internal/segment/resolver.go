// Package segment reuses already-rendered timer segments. Segments named
// timer_<N>m and timer_<N>m_<R> share content, so a repeat can be satisfied
// by copying the canonical file instead of rendering it again.
package segment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrCopyFailed is returned when a canonical segment exists but could not be
// copied to the target.
var ErrCopyFailed = errors.New("segment: copy failed")

var segmentRe = regexp.MustCompile(`^(timer_\d+m)(_\d+)?$`)

// Resolver copies canonical segments onto repeat targets.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Canonical returns the canonical segment path for target, in the same
// directory and with the same extension. The second result is false when
// target does not follow the segment naming scheme.
func Canonical(target string) (string, bool) {
	dir, base := filepath.Split(target)
	ext := filepath.Ext(base)
	m := segmentRe.FindStringSubmatch(strings.TrimSuffix(base, ext))
	if m == nil {
		return "", false
	}
	return filepath.Join(dir, m[1]+ext), true
}

// Reuse copies the canonical segment to target when one exists and differs
// from target. It reports whether target was produced by a copy.
func (r *Resolver) Reuse(ctx context.Context, target string) (bool, error) {
	canonical, ok := Canonical(target)
	if !ok {
		return false, nil
	}
	if filepath.Clean(canonical) == filepath.Clean(target) {
		return false, nil
	}

	info, err := os.Stat(canonical)
	if err != nil || !info.Mode().IsRegular() {
		return false, nil
	}

	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context cancelled: %w", err)
	}

	if err := copyFile(canonical, target); err != nil {
		return false, fmt.Errorf("%w: %s -> %s: %w", ErrCopyFailed, canonical, target, err)
	}

	r.logger.Info("reused existing segment",
		slog.String("source", canonical),
		slog.String("target", target),
	)
	return true, nil
}

// copyFile streams src into a temporary sibling of dst and renames it into
// place.
func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - src is derived from a validated segment name
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.CreateTemp(filepath.Dir(dst), ".tmp-"+filepath.Base(dst)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := out.Name()

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("copy data: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
