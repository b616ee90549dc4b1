package roddriver

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/nao1215/mapharvest/internal/driver"
)

// lockFileName is created inside the profile directory while a session
// uses it.
const lockFileName = ".mapharvest.lock"

// Options configures how the browser is launched.
type Options struct {
	// Headless runs the browser without a window.
	Headless bool

	// NoSandbox disables the Chromium sandbox, needed in most containers.
	NoSandbox bool

	// BrowserBin is an explicit browser executable. Empty lets rod find or
	// download one.
	BrowserBin string

	// WindowWidth and WindowHeight set the window and viewport size.
	WindowWidth  int
	WindowHeight int

	// UserAgent overrides the browser's user agent when not empty.
	UserAgent string

	// ProfileDir is the browser user data directory. It is locked for the
	// lifetime of the session so two runs never share a profile.
	ProfileDir string

	// Logger receives session lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger
}

// newLauncher builds the launcher for opts without starting anything.
func newLauncher(opts Options) *launcher.Launcher {
	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(opts.NoSandbox)

	if opts.BrowserBin != "" {
		l = l.Bin(opts.BrowserBin)
	}
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		l.Set(flags.Flag("window-size"),
			strconv.Itoa(opts.WindowWidth)+","+strconv.Itoa(opts.WindowHeight))
	}

	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("no-default-browser-check"))

	return l
}

// lockProfile takes an exclusive lock on dir, creating it if needed.
// It returns driver.ErrSessionLocked when another session holds the lock.
func lockProfile(dir string) (*flock.Flock, error) {
	if dir == "" {
		return nil, errors.New("profile directory is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	fl := flock.New(filepath.Join(dir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock profile directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", dir, driver.ErrSessionLocked)
	}
	return fl, nil
}
