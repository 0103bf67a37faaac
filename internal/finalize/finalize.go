// Package finalize publishes a completed temporary output onto its
// destination.
//
// The publish is one rename within the destination directory. Until that
// rename the destination is untouched; after it the destination is the
// complete new file. A backup is a hard link taken before the rename, so
// the destination path never goes missing. Every rejection before the
// rename deletes the temporary output.
package finalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"

	"mvx/internal/execute"
	"mvx/internal/fileutil"
	"mvx/internal/logging"
	"mvx/internal/plan"
	"mvx/internal/services"
)

// MaxBackupSuffix bounds the .bak.N probe.
const MaxBackupSuffix = 1000

// renameFunc and linkFunc are swapped in tests to simulate filesystem
// failures.
var (
	renameFunc = os.Rename
	linkFunc   = os.Link
)

// Result describes a published destination.
type Result struct {
	Destination string `json:"destination"`
	Bytes       int64  `json:"bytes"`
	BackupPath  string `json:"backup_path,omitempty"`
	// Replaced is set when an existing destination was overwritten.
	Replaced      bool   `json:"replaced,omitempty"`
	SourceRemoved bool   `json:"source_removed,omitempty"`
	Warning       string `json:"warning,omitempty"`
}

// Finalizer applies the existing-destination policy and publishes.
type Finalizer struct {
	logger *slog.Logger
}

// New constructs a Finalizer.
func New(logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Finalizer{logger: logging.NewComponentLogger(logger, "finalize")}
}

// Finalize validates out and renames it onto p.Destination.
func (f *Finalizer) Finalize(ctx context.Context, out execute.Output, p plan.Plan) (Result, error) {
	logger := logging.WithContext(ctx, f.logger)
	dest := p.Destination

	info, err := os.Stat(out.Path)
	if err != nil || info.Size() == 0 {
		out.Discard()
		msg := fmt.Sprintf("%s produced no output for %s", backendName(p), dest)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Result{}, services.Wrap(services.ErrEmptyOutput, "finalize", "validate output", msg, err)
		}
		return Result{}, services.Wrap(services.ErrEmptyOutput, "finalize", "validate output", msg, nil)
	}
	if err := ctx.Err(); err != nil {
		out.Discard()
		return Result{}, services.Wrap(services.ErrCanceled, "finalize", "validate output", "", err)
	}

	result := Result{Destination: dest, Bytes: info.Size()}
	// movedAside is set when the backup had to be taken by renaming dest,
	// leaving the destination path empty until publish.
	movedAside := false

	existing, err := os.Lstat(dest)
	switch {
	case err == nil:
		if existing.IsDir() {
			out.Discard()
			return Result{}, services.Wrap(services.ErrDestinationExists, "finalize", "check destination",
				dest+" is a directory", nil)
		}
		switch {
		case p.Backup:
			backup, renamed, err := f.backup(logger, dest)
			if err != nil {
				out.Discard()
				return Result{}, err
			}
			result.BackupPath = backup
			movedAside = renamed
			logger.Info("existing destination backed up",
				logging.String(logging.FieldDestination, dest),
				logging.String("backup", backup),
			)
		case p.Overwrite:
			result.Replaced = true
		default:
			out.Discard()
			return Result{}, services.Wrap(services.ErrDestinationExists, "finalize", "check destination",
				dest+" already exists (use --overwrite or --backup)", nil)
		}
	case !errors.Is(err, os.ErrNotExist):
		out.Discard()
		return Result{}, services.Wrap(services.ErrFinalizeIO, "finalize", "check destination", dest, err)
	}

	if err := renameFunc(out.Path, dest); err != nil {
		switch {
		case movedAside:
			if restoreErr := renameFunc(result.BackupPath, dest); restoreErr != nil {
				logging.WarnWithContext(logger, "could not restore backup", "backup_restore_failed",
					logging.String("backup", result.BackupPath),
					logging.Error(restoreErr),
					logging.String(logging.FieldImpact, "previous destination remains at the backup path"),
				)
			}
		case result.BackupPath != "":
			// dest was never touched; the backup is a second link to it.
			if rmErr := os.Remove(result.BackupPath); rmErr != nil {
				logger.Debug("backup link removal failed", logging.String("backup", result.BackupPath), logging.Error(rmErr))
			}
		}
		out.Discard()
		msg := dest
		if errors.Is(err, unix.EXDEV) {
			msg = "temporary output and " + dest + " are on different filesystems"
		}
		return Result{}, services.Wrap(services.ErrFinalizeIO, "finalize", "publish", msg, err)
	}
	if err := fileutil.SyncDir(filepath.Dir(dest)); err != nil {
		logger.Debug("directory sync failed", logging.String(logging.FieldDestination, dest), logging.Error(err))
	}

	if p.MoveSource {
		if err := os.Remove(p.Source); err != nil && !errors.Is(err, os.ErrNotExist) {
			result.Warning = fmt.Sprintf("converted, but could not remove source %s: %v", p.Source, err)
			logging.WarnWithContext(logger, "source removal failed", "source_remove_failed",
				logging.String(logging.FieldSource, p.Source),
				logging.Error(err),
				logging.String(logging.FieldImpact, "source and destination both remain"),
			)
		} else {
			result.SourceRemoved = true
		}
	}

	logger.Info("destination published",
		logging.String(logging.FieldDestination, dest),
		logging.Int64("bytes", result.Bytes),
	)
	return result, nil
}

// backup preserves dest under the first free backup name. A hard link keeps
// dest in place so the publish rename replaces it atomically. Filesystems
// without hard links fall back to renaming dest aside, reported by renamed.
func (f *Finalizer) backup(logger *slog.Logger, dest string) (name string, renamed bool, err error) {
	for range MaxBackupSuffix {
		name, err = NextBackupPath(dest)
		if err != nil {
			return "", false, err
		}
		err = linkFunc(dest, name)
		if err == nil {
			return name, false, nil
		}
		if !errors.Is(err, os.ErrExist) {
			break
		}
		// Another process claimed the name between probe and link.
	}
	if errors.Is(err, os.ErrExist) {
		return "", false, services.Wrap(services.ErrFinalizeIO, "finalize", "backup destination", name, err)
	}

	logger.Debug("hard link backup unavailable, renaming destination aside",
		logging.String(logging.FieldDestination, dest),
		logging.Error(err),
	)
	if err := renameFunc(dest, name); err != nil {
		return "", false, services.Wrap(services.ErrFinalizeIO, "finalize", "backup destination", dest, err)
	}
	return name, true, nil
}

// NextBackupPath returns <dest>.bak, or the first free <dest>.bak.N.
func NextBackupPath(dest string) (string, error) {
	candidate := dest + ".bak"
	for n := 0; n <= MaxBackupSuffix; n++ {
		if n > 0 {
			candidate = dest + ".bak." + strconv.Itoa(n)
		}
		exists, err := fileutil.Exists(candidate)
		if err != nil {
			return "", services.Wrap(services.ErrFinalizeIO, "finalize", "probe backup", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", services.Wrap(services.ErrFinalizeIO, "finalize", "probe backup",
		fmt.Sprintf("no free backup name for %s after .bak.%d", dest, MaxBackupSuffix), nil)
}

func backendName(p plan.Plan) string {
	if p.Backend.Tool != "" {
		return string(p.Backend.Tool)
	}
	return "copy"
}
