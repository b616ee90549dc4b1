package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nao1215/mapharvest/internal/config"
	"github.com/nao1215/mapharvest/internal/driver/drivertest"
	"github.com/nao1215/mapharvest/internal/extract"
	"github.com/nao1215/mapharvest/internal/paginate"
)

// testConfig returns a configuration with every wait disabled.
func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.SearchBaseURL = "https://maps.test/search/"
	cfg.SettleDelay = 0
	cfg.ScrollPause = 0
	cfg.PanelWait = 0
	cfg.DetailPause = 0
	cfg.ElementWait = 0
	cfg.TaskDelay = 0
	return cfg
}

// surface is a synthetic results panel mounted on a fake session.
type surface struct {
	mu    sync.Mutex
	items []*drivertest.Element
	panel *drivertest.Element
}

// mount installs a results panel on s. Scroll i renders batches[i] more
// listings named "<prefix> <n>"; later scrolls render nothing. Clicking a
// listing shows its name and phone and moves the page URL to its place.
func mount(s *drivertest.Session, prefix string, batches ...int) *surface {
	sel := extract.DefaultSelectors()
	sf := &surface{panel: &drivertest.Element{Label: prefix + " panel"}}
	round := 0

	sf.panel.OnScroll = func() error {
		sf.mu.Lock()
		defer sf.mu.Unlock()
		if round < len(batches) {
			for i := 0; i < batches[round]; i++ {
				n := len(sf.items) + 1
				name := fmt.Sprintf("%s %d", prefix, n)
				slug := strings.ReplaceAll(name, " ", "-")
				item := &drivertest.Element{Label: name}
				item.OnClick = func() error {
					s.Set(sel.Name, &drivertest.Element{TextValue: name})
					s.Set(sel.Phone, &drivertest.Element{TextValue: fmt.Sprintf("+1 555 010 %04d", n)})
					s.SetURL("https://maps.test/place/" + slug)
					return nil
				}
				sf.items = append(sf.items, item)
				s.Append(paginate.DefaultItemSelector, item)
			}
		}
		round++
		return nil
	}
	sf.panel.ExtentFunc = func() (float64, error) {
		sf.mu.Lock()
		defer sf.mu.Unlock()
		return float64(len(sf.items) * 100), nil
	}

	s.Set(paginate.DefaultItemSelector)
	s.Set(paginate.DefaultContainerSelector, sf.panel)
	return sf
}

// item returns the n-th rendered listing, 1-based.
func (sf *surface) item(n int) *drivertest.Element {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.items[n-1]
}

// rendered returns how many listings exist.
func (sf *surface) rendered() int {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return len(sf.items)
}

// flakySession fails navigation to any URL containing failOn.
type flakySession struct {
	*drivertest.Session
	failOn string
}

var errConnectionReset = errors.New("net::ERR_CONNECTION_RESET")

func (f *flakySession) Navigate(ctx context.Context, url string) error {
	if strings.Contains(url, f.failOn) {
		return errConnectionReset
	}
	return f.Session.Navigate(ctx, url)
}
