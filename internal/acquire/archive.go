// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// maxBinaryBytes caps the extracted executable size (200 MB) against
// decompression bombs.
const maxBinaryBytes = 200 << 20

var (
	// ErrBinaryNotInArchive is returned when no archive entry matches the executable name.
	ErrBinaryNotInArchive = errors.New("binary not found in archive")

	// ErrBinaryTooLarge is returned when the archive entry exceeds maxBinaryBytes.
	ErrBinaryTooLarge = errors.New("binary exceeds size limit")
)

// extractBinary pulls the entry whose base name equals binaryName out of the
// archive at archivePath into a new temp file in dir and returns its path.
// Both flat and nested (e.g. comment-checker_0.4.1_linux_amd64/comment-checker)
// layouts are handled. Archives ending in .zip are read as zip; everything
// else is treated as tar.gz.
func extractBinary(archivePath, binaryName, dir string) (string, error) {
	if strings.HasSuffix(archivePath, ".zip") {
		return extractFromZip(archivePath, binaryName, dir)
	}
	return extractFromTarGz(archivePath, binaryName, dir)
}

func extractFromTarGz(archivePath, binaryName, dir string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}
	defer func() { _ = f.Close() }() // read-only file handle

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("creating gzip reader: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, nextErr := tr.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			return "", fmt.Errorf("reading tar entry: %w", nextErr)
		}
		if hdr.Typeflag != tar.TypeReg || path.Base(hdr.Name) != binaryName {
			continue
		}
		return writeTemp(tr, dir, maxBinaryBytes)
	}

	return "", fmt.Errorf("%w: %q in %s", ErrBinaryNotInArchive, binaryName, archivePath)
}

func extractFromZip(archivePath, binaryName, dir string) (string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("opening zip archive: %w", err)
	}
	defer func() { _ = zr.Close() }()

	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() || path.Base(entry.Name) != binaryName {
			continue
		}
		rc, openErr := entry.Open()
		if openErr != nil {
			return "", fmt.Errorf("opening zip entry %s: %w", entry.Name, openErr)
		}
		tmpPath, writeErr := writeTemp(rc, dir, maxBinaryBytes)
		_ = rc.Close()
		return tmpPath, writeErr
	}

	return "", fmt.Errorf("%w: %q in %s", ErrBinaryNotInArchive, binaryName, archivePath)
}

// writeTemp copies r into a temp file in dir, failing with ErrBinaryTooLarge
// when r holds more than limit bytes.
func writeTemp(r io.Reader, dir string, limit int64) (_ string, err error) {
	tmp, err := os.CreateTemp(dir, "comment-checker-extract-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file for binary: %w", err)
	}
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	// One byte past the limit tells an oversized entry from one that fits exactly.
	n, err := io.Copy(tmp, io.LimitReader(r, limit+1))
	if err != nil {
		return "", fmt.Errorf("extracting binary: %w", err)
	}
	if n > limit {
		err = fmt.Errorf("%w: more than %d bytes", ErrBinaryTooLarge, limit)
		return "", err
	}
	return tmp.Name(), nil
}
