package config

import (
	"fmt"

	"github.com/andybalholm/cascadia"

	"github.com/nao1215/mapharvest/internal/extract"
)

// ValidateSelectors compiles every selector so that a typo in the config
// file fails before the browser starts.
func ValidateSelectors(panel, item string, fields extract.Selectors) error {
	named := []extract.Field{
		{Name: "panel", Selector: panel},
		{Name: "item", Selector: item},
	}
	named = append(named, fields.Fields()...)

	for _, f := range named {
		if _, err := cascadia.Compile(f.Selector); err != nil {
			return fmt.Errorf("%w: %s %q: %v", ErrInvalidSelector, f.Name, f.Selector, err)
		}
	}
	return nil
}

// SelectorOverrides is the selectors section of the config file.
// Empty values keep the built-in selectors.
type SelectorOverrides struct {
	Panel             string `yaml:"panel,omitempty"`
	Item              string `yaml:"item,omitempty"`
	extract.Selectors `yaml:",inline"`
}

// apply merges the non-empty overrides into c.
func (o SelectorOverrides) apply(c *Config) {
	if o.Panel != "" {
		c.PanelSelector = o.Panel
	}
	if o.Item != "" {
		c.ItemSelector = o.Item
	}

	dst := &c.Selectors
	for _, pair := range []struct {
		from string
		to   *string
	}{
		{o.Name, &dst.Name},
		{o.Address, &dst.Address},
		{o.Phone, &dst.Phone},
		{o.Website, &dst.Website},
		{o.Rating, &dst.Rating},
		{o.Reviews, &dst.Reviews},
		{o.Category, &dst.Category},
		{o.Hours, &dst.Hours},
	} {
		if pair.from != "" {
			*pair.to = pair.from
		}
	}
}
