package extract

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/mapharvest/internal/model"
)

// errEmpty marks a field whose element exists but carries no value.
var errEmpty = errors.New("empty value")

var digitsPattern = regexp.MustCompile(`\d+`)

// probe reads one field from a scope and stores it on a record.
type probe struct {
	field  string
	read   func(ctx context.Context, scope Scope) Result[string]
	assign func(r *model.BusinessRecord, v Result[string])
}

// probes returns the probe table for sel in record order.
func probes(sel Selectors) []probe {
	return []probe{
		{
			field: FieldName,
			read:  readText(sel.Name),
			assign: func(r *model.BusinessRecord, v Result[string]) {
				r.Name = v.OrDefault(model.NotFoundName)
			},
		},
		{
			field:  FieldAddress,
			read:   readText(sel.Address),
			assign: func(r *model.BusinessRecord, v Result[string]) { r.Address = v.OrDefault("") },
		},
		{
			field:  FieldPhone,
			read:   readText(sel.Phone),
			assign: func(r *model.BusinessRecord, v Result[string]) { r.Phone = v.OrDefault("") },
		},
		{
			field: FieldWebsite,
			read:  readAttr(sel.Website, "href"),
			assign: func(r *model.BusinessRecord, v Result[string]) {
				if v.OK() {
					r.Website = model.StringPtr(v.Value)
				}
			},
		},
		{
			field:  FieldRating,
			read:   readText(sel.Rating),
			assign: func(r *model.BusinessRecord, v Result[string]) { r.Rating = v.OrDefault("") },
		},
		{
			field:  FieldReviews,
			read:   readDigits(sel.Reviews),
			assign: func(r *model.BusinessRecord, v Result[string]) { r.ReviewsCount = v.OrDefault("") },
		},
		{
			field:  FieldCategory,
			read:   readText(sel.Category),
			assign: func(r *model.BusinessRecord, v Result[string]) { r.Category = v.OrDefault("") },
		},
		{
			field:  FieldHours,
			read:   readText(sel.Hours),
			assign: func(r *model.BusinessRecord, v Result[string]) { r.Hours = v.OrDefault("") },
		},
	}
}

// run executes p inside its own failure boundary. A panic in the probe is
// turned into a failed Result.
func (p probe) run(ctx context.Context, scope Scope) (res Result[string]) {
	defer func() {
		if r := recover(); r != nil {
			res = Result[string]{Err: &ProbeError{Field: p.field, Err: fmt.Errorf("panic: %v", r)}}
		}
	}()
	res = p.read(ctx, scope)
	if res.Err != nil {
		res.Err = &ProbeError{Field: p.field, Err: res.Err}
	}
	return res
}

func readText(selector string) func(context.Context, Scope) Result[string] {
	return func(ctx context.Context, scope Scope) Result[string] {
		text, err := scope.Text(ctx, selector)
		if err != nil {
			return Result[string]{Err: err}
		}
		text = clean(text)
		if text == "" {
			return Result[string]{Err: errEmpty}
		}
		return Result[string]{Value: text}
	}
}

func readAttr(selector, name string) func(context.Context, Scope) Result[string] {
	return func(ctx context.Context, scope Scope) Result[string] {
		v, ok, err := scope.Attr(ctx, selector, name)
		if err != nil {
			return Result[string]{Err: err}
		}
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			return Result[string]{Err: errEmpty}
		}
		return Result[string]{Value: v}
	}
}

// readDigits keeps the first run of digits of the element text.
func readDigits(selector string) func(context.Context, Scope) Result[string] {
	text := readText(selector)
	return func(ctx context.Context, scope Scope) Result[string] {
		res := text(ctx, scope)
		if res.Err != nil {
			return res
		}
		m := digitsPattern.FindString(res.Value)
		if m == "" {
			return Result[string]{Err: fmt.Errorf("no digits in %q", res.Value)}
		}
		return Result[string]{Value: m}
	}
}

// clean trims text and puts it in NFC form so that the same listing always
// yields byte-identical values.
func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
