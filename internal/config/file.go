package config

import (
	"slices"
	"time"

	"github.com/nao1215/mapharvest/internal/model"
)

// BrowserSettings is the browser section of the config file.
type BrowserSettings struct {
	// Headless overrides the headless default when set.
	Headless *bool `yaml:"headless,omitempty"`

	// NoSandbox overrides the sandbox default when set.
	NoSandbox *bool `yaml:"noSandbox,omitempty"`

	// Bin is an explicit browser executable.
	Bin string `yaml:"bin,omitempty"`

	// UserAgent overrides the browser user agent.
	UserAgent string `yaml:"userAgent,omitempty"`

	// WindowWidth and WindowHeight size the window. Zero keeps the default.
	WindowWidth  int `yaml:"windowWidth,omitempty"`
	WindowHeight int `yaml:"windowHeight,omitempty"`

	// ProfileDir is the browser profile directory.
	ProfileDir string `yaml:"profileDir,omitempty"`
}

// TimingSettings is the timing section of the config file.
// Zero values keep the defaults.
type TimingSettings struct {
	SettleDelay     time.Duration `yaml:"settleDelay,omitempty"`
	ScrollPause     time.Duration `yaml:"scrollPause,omitempty"`
	PanelWait       time.Duration `yaml:"panelWait,omitempty"`
	DetailPause     time.Duration `yaml:"detailPause,omitempty"`
	ElementWait     time.Duration `yaml:"elementWait,omitempty"`
	TaskDelay       time.Duration `yaml:"taskDelay,omitempty"`
	MaxStableRounds int           `yaml:"maxStableRounds,omitempty"`
	MaxScrollRounds int           `yaml:"maxScrollRounds,omitempty"`
}

// OutputSettings is the output section of the config file.
type OutputSettings struct {
	Dir     string   `yaml:"dir,omitempty"`
	Prefix  string   `yaml:"prefix,omitempty"`
	Formats []string `yaml:"formats,omitempty"`
}

// File represents the structure of the .mapharvest configuration file.
type File struct {
	// Location is the default location for tasks that omit one.
	Location string `yaml:"location,omitempty"`

	// Count is the default result count for tasks that omit one.
	Count int `yaml:"count,omitempty"`

	// Tasks are searches to run when none are given on the command line.
	// Missing locations and counts are filled by Config.FillTaskDefaults,
	// so --location and --count reach them too.
	Tasks []model.SearchTask `yaml:"tasks,omitempty"`

	// Selectors override the built-in selectors.
	Selectors SelectorOverrides `yaml:"selectors,omitempty"`

	// Browser overrides browser launch settings.
	Browser BrowserSettings `yaml:"browser,omitempty"`

	// Timing overrides pauses, waits and pagination limits.
	Timing TimingSettings `yaml:"timing,omitempty"`

	// Output overrides export settings.
	Output OutputSettings `yaml:"output,omitempty"`
}

// Apply merges the file's settings into c. Only values present in the
// file are changed, so flags applied afterwards take precedence.
func (f *File) Apply(c *Config) {
	if f.Location != "" {
		c.DefaultLocation = f.Location
	}
	if f.Count > 0 {
		c.DefaultCount = f.Count
	}

	if len(f.Tasks) > 0 {
		c.Tasks = slices.Clone(f.Tasks)
	}

	f.Selectors.apply(c)
	f.Browser.apply(c)
	f.Timing.apply(c)
	f.Output.apply(c)
}

func (b BrowserSettings) apply(c *Config) {
	if b.Headless != nil {
		c.Headless = *b.Headless
	}
	if b.NoSandbox != nil {
		c.NoSandbox = *b.NoSandbox
	}
	if b.Bin != "" {
		c.BrowserBin = b.Bin
	}
	if b.UserAgent != "" {
		c.UserAgent = b.UserAgent
	}
	if b.WindowWidth > 0 {
		c.WindowWidth = b.WindowWidth
	}
	if b.WindowHeight > 0 {
		c.WindowHeight = b.WindowHeight
	}
	if b.ProfileDir != "" {
		c.ProfileDir = b.ProfileDir
	}
}

func (t TimingSettings) apply(c *Config) {
	setDuration := func(dst *time.Duration, v time.Duration) {
		if v != 0 {
			*dst = v
		}
	}
	setDuration(&c.SettleDelay, t.SettleDelay)
	setDuration(&c.ScrollPause, t.ScrollPause)
	setDuration(&c.PanelWait, t.PanelWait)
	setDuration(&c.DetailPause, t.DetailPause)
	setDuration(&c.ElementWait, t.ElementWait)
	setDuration(&c.TaskDelay, t.TaskDelay)

	if t.MaxStableRounds != 0 {
		c.MaxStableRounds = t.MaxStableRounds
	}
	if t.MaxScrollRounds != 0 {
		c.MaxScrollRounds = t.MaxScrollRounds
	}
}

func (o OutputSettings) apply(c *Config) {
	if o.Dir != "" {
		c.OutputDir = o.Dir
	}
	if o.Prefix != "" {
		c.FilePrefix = o.Prefix
	}
	if len(o.Formats) > 0 {
		c.Formats = append([]string(nil), o.Formats...)
	}
}
