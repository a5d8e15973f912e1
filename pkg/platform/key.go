// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrUnsupportedPlatform is the sentinel error wrapped by UnsupportedPlatformError.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

type (
	// Key identifies an os/architecture pair in package naming form,
	// e.g. "darwin-arm64" or "win32-x64".
	Key string

	// UnsupportedPlatformError is returned when no Key exists for a GOOS/GOARCH pair.
	UnsupportedPlatformError struct {
		GOOS   string
		GOARCH string
	}
)

// Supported keys, in the order the per-platform packages are published.
const (
	KeyDarwinARM64 Key = "darwin-arm64"
	KeyDarwinX64   Key = "darwin-x64"
	KeyLinuxARM64  Key = "linux-arm64"
	KeyLinuxX64    Key = "linux-x64"
	KeyWin32X64    Key = "win32-x64"
)

// Error implements the error interface.
func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %s/%s", e.GOOS, e.GOARCH)
}

// Unwrap returns ErrUnsupportedPlatform for errors.Is compatibility.
func (e *UnsupportedPlatformError) Unwrap() error { return ErrUnsupportedPlatform }

// SupportedKeys returns every Key that has a published platform package.
func SupportedKeys() []Key {
	return []Key{KeyDarwinARM64, KeyDarwinX64, KeyLinuxARM64, KeyLinuxX64, KeyWin32X64}
}

// KeyFor maps a GOOS/GOARCH pair to its package Key. Node-style names are
// used: "windows" becomes "win32" and "amd64" becomes "x64".
func KeyFor(goos, goarch string) (Key, error) {
	osName := goos
	if goos == Windows {
		osName = "win32"
	}

	arch := goarch
	if goarch == "amd64" {
		arch = "x64"
	}

	k := Key(osName + "-" + arch)
	for _, supported := range SupportedKeys() {
		if k == supported {
			return k, nil
		}
	}
	return "", &UnsupportedPlatformError{GOOS: goos, GOARCH: goarch}
}

// CurrentKey returns the Key for the running platform.
func CurrentKey() (Key, error) {
	return KeyFor(runtime.GOOS, runtime.GOARCH)
}

// String returns the key as a plain string.
func (k Key) String() string { return string(k) }
