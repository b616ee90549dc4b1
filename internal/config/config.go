package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/mapharvest/internal/export"
	"github.com/nao1215/mapharvest/internal/extract"
	"github.com/nao1215/mapharvest/internal/model"
	"github.com/nao1215/mapharvest/internal/paginate"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "mapharvest"

	// DefaultSearchBaseURL is prefixed to the escaped "query location" text.
	DefaultSearchBaseURL = "https://www.google.com/maps/search/"

	// DefaultWindowWidth and DefaultWindowHeight give the results panel
	// room for a full column of listings.
	DefaultWindowWidth  = 1920
	DefaultWindowHeight = 1080

	// DefaultUserAgent is a desktop browser user agent.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	// DefaultSettleDelay is waited after navigation before the panel is used.
	DefaultSettleDelay = 3 * time.Second

	// DefaultTaskDelay is waited between two searches.
	DefaultTaskDelay = 5 * time.Second

	// DefaultLocation is used when a task does not name one.
	DefaultLocation = "Israel"

	// DefaultOutputDir is where export files are written.
	DefaultOutputDir = "."

	// DefaultFilePrefix starts every generated export file name.
	DefaultFilePrefix = "google_maps_results"

	// LogFormatText and LogFormatJSON are the supported log formats.
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// DefaultFormats returns the export formats used when none are selected.
func DefaultFormats() []string {
	return []string{string(export.FormatCSV), string(export.FormatJSON)}
}

// Config holds all configuration options for a run.
// It is populated from defaults, the config file and CLI flags, in that
// order, and passed down explicitly.
type Config struct {
	// SearchBaseURL is the search endpoint of the map service.
	SearchBaseURL string

	// Headless runs the browser without a window.
	Headless bool

	// NoSandbox disables the browser sandbox.
	NoSandbox bool

	// BrowserBin is an explicit browser executable. Empty means auto-detect.
	BrowserBin string

	// WindowWidth and WindowHeight size the browser window.
	WindowWidth  int
	WindowHeight int

	// UserAgent overrides the browser user agent.
	UserAgent string

	// ProfileDir is the browser profile directory. It is locked while a
	// run uses it. Defaults to a directory under the XDG cache dir.
	ProfileDir string

	// SettleDelay is waited after navigating to a search.
	SettleDelay time.Duration

	// ScrollPause is waited after each scroll of the results panel.
	ScrollPause time.Duration

	// PanelWait bounds the wait for the results panel to appear.
	PanelWait time.Duration

	// MaxStableRounds is how many scrolls without growth end pagination.
	MaxStableRounds int

	// MaxScrollRounds caps scrolls per search. Zero means no cap.
	MaxScrollRounds int

	// DetailPause is waited after selecting a listing.
	DetailPause time.Duration

	// ElementWait bounds the wait for the detail heading.
	ElementWait time.Duration

	// TaskDelay is waited between searches.
	TaskDelay time.Duration

	// Snapshot makes field probes read a parsed copy of the page.
	Snapshot bool

	// PanelSelector and ItemSelector locate the results panel and its listings.
	PanelSelector string
	ItemSelector  string

	// Selectors locate the fields of a listing's detail panel.
	Selectors extract.Selectors

	// DefaultLocation fills tasks that do not name a location.
	DefaultLocation string

	// DefaultCount fills tasks that do not name a result count.
	DefaultCount int

	// Tasks are the searches to run, in order.
	Tasks []model.SearchTask

	// OutputDir is where generated export files are written.
	OutputDir string

	// FilePrefix starts every generated export file name.
	FilePrefix string

	// Formats are the export formats to write.
	Formats []string

	// CSVFile and JSONFile override the generated file names.
	CSVFile  string
	JSONFile string

	// Verbose enables debug logging.
	Verbose bool

	// LogFormat is "text" or "json".
	LogFormat string

	// ConfigFilePath is an explicit config file. Empty means search for
	// .mapharvest in the current and home directories.
	ConfigFilePath string

	// DBDir is the directory of the run history database.
	DBDir string

	// SaveToDB stores every run in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		SearchBaseURL:   DefaultSearchBaseURL,
		Headless:        true,
		NoSandbox:       true,
		WindowWidth:     DefaultWindowWidth,
		WindowHeight:    DefaultWindowHeight,
		UserAgent:       DefaultUserAgent,
		ProfileDir:      filepath.Join(XDGCacheDir(), "profile"),
		SettleDelay:     DefaultSettleDelay,
		ScrollPause:     paginate.DefaultScrollPause,
		PanelWait:       paginate.DefaultContainerWait,
		MaxStableRounds: paginate.DefaultMaxStableRounds,
		DetailPause:     extract.DefaultDetailPause,
		ElementWait:     extract.DefaultNameWait,
		TaskDelay:       DefaultTaskDelay,
		PanelSelector:   paginate.DefaultContainerSelector,
		ItemSelector:    paginate.DefaultItemSelector,
		Selectors:       extract.DefaultSelectors(),
		DefaultLocation: DefaultLocation,
		DefaultCount:    model.DefaultTargetCount,
		OutputDir:       DefaultOutputDir,
		FilePrefix:      DefaultFilePrefix,
		Formats:         DefaultFormats(),
		LogFormat:       LogFormatText,
		DBDir:           XDGDataDir(),
		SaveToDB:        true,
	}
}

// XDGDataDir returns the XDG data directory for mapharvest.
// On Linux: ~/.local/share/mapharvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for mapharvest.
// On Linux: ~/.config/mapharvest
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for mapharvest.
// The browser profile lives here.
// On Linux: ~/.cache/mapharvest
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// FillTaskDefaults sets the location and count of tasks that have none
// from DefaultLocation and DefaultCount.
func (c *Config) FillTaskDefaults() {
	for i := range c.Tasks {
		if c.Tasks[i].Location == "" {
			c.Tasks[i].Location = c.DefaultLocation
		}
		if c.Tasks[i].TargetCount == 0 {
			c.Tasks[i].TargetCount = c.DefaultCount
		}
	}
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Tasks) == 0 {
		return ErrNoTask
	}
	for i, task := range c.Tasks {
		if err := task.Validate(); err != nil {
			return fmt.Errorf("task %d (%s): %w", i+1, task, err)
		}
	}

	u, err := url.Parse(c.SearchBaseURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidBaseURL
	}

	for _, d := range []time.Duration{
		c.SettleDelay, c.ScrollPause, c.PanelWait,
		c.DetailPause, c.ElementWait, c.TaskDelay,
	} {
		if d < 0 {
			return ErrInvalidTiming
		}
	}

	if c.MaxStableRounds <= 0 {
		return ErrInvalidStableRounds
	}
	if c.MaxScrollRounds < 0 {
		return ErrInvalidScrollLimit
	}
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		return ErrInvalidWindowSize
	}
	if c.DefaultCount <= 0 {
		return ErrInvalidDefaultCount
	}

	if len(c.Formats) == 0 {
		return ErrNoFormat
	}
	if _, err := export.ParseFormats(c.Formats); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	if c.FilePrefix == "" {
		return ErrEmptyPrefix
	}

	if !slices.Contains([]string{LogFormatText, LogFormatJSON}, c.LogFormat) {
		return ErrUnknownLogFormat
	}

	return ValidateSelectors(c.PanelSelector, c.ItemSelector, c.Selectors)
}
