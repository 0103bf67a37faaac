// Package fileutil holds the filesystem primitives shared by execution and
// finalization: verified copies, link-or-copy staging, and directory syncs.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
)

// CopyVerified streams src into a newly created dst with SHA256 + size
// integrity verification. dst must not exist; it receives the source's
// permission bits. dst is removed on any failure.
func CopyVerified(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	srcInfo, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, srcInfo.Mode().Perm())
	if err != nil {
		return 0, err
	}
	fail := func(err error) (int64, error) {
		_ = out.Close()
		_ = os.Remove(dst)
		return 0, err
	}

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	written, err := io.Copy(multi, tee)
	if err != nil {
		return fail(err)
	}
	if err := out.Sync(); err != nil {
		return fail(fmt.Errorf("sync copy: %w", err))
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return 0, err
	}

	if written != srcSize {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return 0, errors.New("copy hash mismatch: file corrupted during copy")
	}
	return written, nil
}

// LinkOrCopy hard-links src to dst, falling back to CopyVerified when the
// filesystem refuses (cross-device, unsupported). linked reports which path
// was taken.
func LinkOrCopy(src, dst string) (linked bool, size int64, err error) {
	if err := os.Link(src, dst); err == nil {
		info, statErr := os.Stat(dst)
		if statErr != nil {
			_ = os.Remove(dst)
			return false, 0, statErr
		}
		return true, info.Size(), nil
	}
	size, err = CopyVerified(src, dst)
	return false, size, err
}

// SyncDir fsyncs a directory so a rename inside it survives a crash.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// Exists reports whether path names an existing entry. Errors other than
// not-exist are returned.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
