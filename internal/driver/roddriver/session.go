package roddriver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/gofrs/flock"

	"github.com/nao1215/mapharvest/internal/driver"
)

// Session is a driver.Session backed by one rod page.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	lock     *flock.Flock
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ driver.Session = (*Session)(nil)

// Open locks the profile directory, launches the browser and opens a blank
// page. Anything acquired before a failure is released before returning.
func Open(ctx context.Context, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{logger: logger}

	if opts.ProfileDir != "" {
		fl, err := lockProfile(opts.ProfileDir)
		if err != nil {
			return nil, err
		}
		s.lock = fl
	}

	s.launcher = newLauncher(opts).Context(ctx)
	controlURL, err := s.launcher.Launch()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	logger.Debug("browser launched", "controlURL", controlURL)

	s.browser = rod.New().ControlURL(controlURL)
	if err := s.browser.Connect(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	s.page = page

	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.WindowWidth,
			Height:            opts.WindowHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}

	return s, nil
}

// Navigate implements driver.Session.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return nil
}

// Find implements driver.Session.
func (s *Session) Find(ctx context.Context, selector string) (driver.Element, error) {
	has, el, err := s.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, driver.ErrNotFound
	}
	return &Element{el: el}, nil
}

// FindAll implements driver.Session.
func (s *Session) FindAll(ctx context.Context, selector string) ([]driver.Element, error) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapAll(els), nil
}

// Wait implements driver.Session.
func (s *Session) Wait(ctx context.Context, selector string, timeout time.Duration) (driver.Element, error) {
	el, err := s.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, driver.ErrNotFound
		}
		return nil, err
	}
	return &Element{el: el}, nil
}

// CurrentURL implements driver.Session.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to read page info: %w", err)
	}
	return info.URL, nil
}

// HTML implements driver.Session.
func (s *Session) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// Close releases the page, the browser, the launcher process and the
// profile lock. Later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close page: %w", err))
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			}
		}
		if s.launcher != nil {
			s.launcher.Kill()
		}
		if s.lock != nil {
			if err := s.lock.Unlock(); err != nil {
				errs = append(errs, fmt.Errorf("unlock profile: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
		s.logger.Debug("browser session closed", "error", s.closeErr)
	})
	return s.closeErr
}
