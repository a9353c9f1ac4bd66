package placement

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"printvault/internal/logging"
	"printvault/internal/metrics"
)

// ErrUnknownStrategy is returned by ForName for strategy names that do not
// match a supported strategy.
var ErrUnknownStrategy = errors.New("unknown placement strategy")

// Strategy selects how a file is materialized at its library destination.
type Strategy int

const (
	// Link creates a hard link at the destination, leaving the source in
	// place. Falls back to a copy across filesystem boundaries.
	Link Strategy = iota
	// Copy duplicates the file bytes at the destination.
	Copy
	// Move relocates the file, removing the source. Falls back to
	// copy-then-remove across filesystem boundaries.
	Move
)

func (s Strategy) String() string {
	switch s {
	case Link:
		return "hardlink"
	case Copy:
		return "copy"
	case Move:
		return "move"
	default:
		return "unknown"
	}
}

// ForName maps a configured strategy name to a Strategy.
func ForName(name string) (Strategy, error) {
	switch name {
	case "hardlink":
		return Link, nil
	case "copy":
		return Copy, nil
	case "move":
		return Move, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Place materializes src at dst using the strategy, creating parent
// directories as needed. Cross-device link and rename failures degrade to a
// byte copy; every other error propagates to the caller.
func Place(strategy Strategy, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		metrics.PlacementsTotal.WithLabelValues(strategy.String(), "error").Inc()
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	var err error
	switch strategy {
	case Link:
		err = os.Link(src, dst)
		if isCrossDevice(err) {
			logging.Warn("Hard link from %s to %s crossed a filesystem boundary, copying instead", src, dst)
			if err = copyFile(src, dst); err == nil {
				metrics.PlacementsTotal.WithLabelValues(strategy.String(), "fallback").Inc()
				return nil
			}
		}
	case Copy:
		err = copyFile(src, dst)
	case Move:
		err = os.Rename(src, dst)
		if isCrossDevice(err) {
			logging.Warn("Rename from %s to %s crossed a filesystem boundary, copying instead", src, dst)
			if err = copyFile(src, dst); err == nil {
				if err = os.Remove(src); err != nil {
					err = fmt.Errorf("failed to remove source after copy: %w", err)
				} else {
					metrics.PlacementsTotal.WithLabelValues(strategy.String(), "fallback").Inc()
					return nil
				}
			}
		}
	default:
		err = fmt.Errorf("%w: %d", ErrUnknownStrategy, strategy)
	}

	if err != nil {
		metrics.PlacementsTotal.WithLabelValues(strategy.String(), "error").Inc()
		return err
	}
	metrics.PlacementsTotal.WithLabelValues(strategy.String(), "ok").Inc()
	return nil
}

// isCrossDevice reports whether err is the EXDEV failure link(2) and
// rename(2) return when source and destination are on different filesystems.
func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

// copyFile duplicates src at dst, preserving the source's permission bits.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy file contents: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("failed to sync destination: %w", err)
	}
	return out.Close()
}
