package roddriver

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/nao1215/mapharvest/internal/driver"
)

// Element is a driver.Element backed by a rod element.
type Element struct {
	el *rod.Element
}

var _ driver.Element = (*Element)(nil)

func wrapAll(els rod.Elements) []driver.Element {
	out := make([]driver.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &Element{el: el})
	}
	return out
}

// Text implements driver.Element.
func (e *Element) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

// Attribute implements driver.Element. The DOM property is preferred so
// that relative links come back absolute; the raw attribute is the
// fallback for names that have no matching property.
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	el := e.el.Context(ctx)

	if prop, err := el.Property(name); err == nil {
		if s, ok := jsonString(prop); ok {
			return s, true, nil
		}
	}

	attr, err := el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if attr == nil {
		return "", false, nil
	}
	return *attr, true, nil
}

// Click implements driver.Element.
func (e *Element) Click(ctx context.Context) error {
	if err := e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click element: %w", err)
	}
	return nil
}

// ScrollToBottom implements driver.Element.
func (e *Element) ScrollToBottom(ctx context.Context) error {
	if _, err := e.el.Context(ctx).Eval(`() => { this.scrollTop = this.scrollHeight }`); err != nil {
		return fmt.Errorf("failed to scroll element: %w", err)
	}
	return nil
}

// ScrollExtent implements driver.Element.
func (e *Element) ScrollExtent(ctx context.Context) (float64, error) {
	res, err := e.el.Context(ctx).Eval(`() => this.scrollHeight`)
	if err != nil {
		return 0, fmt.Errorf("failed to read scroll height: %w", err)
	}
	return res.Value.Num(), nil
}

// jsonString returns the string held by v. Null, undefined and empty
// values report false.
func jsonString(v gson.JSON) (string, bool) {
	if v.Nil() {
		return "", false
	}
	s := v.Str()
	return s, s != ""
}
