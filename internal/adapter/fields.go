package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

// Field is an ordered list of JSONPath aliases for one logical field.
// The first alias that resolves to a non-empty value wins.
type Field struct {
	Name  string
	paths []string
	evals []func(context.Context, any) (any, error)
}

// NewField compiles the aliases, panicking on an invalid path like
// regexp.MustCompile. Fields are package-level values built at init.
func NewField(name string, paths ...string) Field {
	f := Field{Name: name, paths: paths}
	for _, p := range paths {
		ev, err := jsonpath.New(p)
		if err != nil {
			panic(fmt.Sprintf("adapter: field %s: invalid path %q: %v", name, p, err))
		}
		f.evals = append(f.evals, ev)
	}
	return f
}

// Value returns the first resolved alias value.
func (f Field) Value(doc any) (any, bool) {
	for _, ev := range f.evals {
		v, err := ev(context.Background(), doc)
		if err != nil || v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// String returns the value rendered as a string, or "".
func (f Field) String(doc any) string {
	v, ok := f.Value(doc)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Decimal returns the value as a decimal. Numbers may arrive as JSON
// numbers or strings; anything unparseable is zero.
func (f Field) Decimal(doc any) decimal.Decimal {
	v, ok := f.Value(doc)
	if !ok {
		return decimal.Zero
	}
	d, _ := toDecimal(v)
	return d
}

// Has reports whether any alias resolves.
func (f Field) Has(doc any) bool {
	_, ok := f.Value(doc)
	return ok
}

// Bool accepts JSON booleans and "true"/"1" style strings.
func (f Field) Bool(doc any) bool {
	v, ok := f.Value(doc)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	case json.Number:
		return t.String() == "1"
	}
	return false
}

// Time accepts unix seconds or milliseconds (number or numeric string),
// RFC 3339 timestamps, and bare dates.
func (f Field) Time(doc any) (time.Time, bool) {
	v, ok := f.Value(doc)
	if !ok {
		return time.Time{}, false
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05Z0700", "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	d, ok := toDecimal(v)
	if !ok || !d.IsPositive() {
		return time.Time{}, false
	}
	// Values past ~2001-09 in milliseconds are > 1e12.
	if d.GreaterThan(decimal.NewFromInt(1e12)) {
		return time.UnixMilli(d.IntPart()).UTC(), true
	}
	return time.Unix(d.IntPart(), 0).UTC(), true
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	}
	return decimal.Zero, false
}

// ParseSide maps "BUY"/"SELL" (any case) and 0/1 onto open/close.
func ParseSide(v any) (model.Side, bool) {
	switch t := v.(type) {
	case string:
		switch strings.ToUpper(strings.TrimSpace(t)) {
		case "BUY", "0":
			return model.SideOpen, true
		case "SELL", "1":
			return model.SideClose, true
		}
	case json.Number, float64, int, int64:
		d, ok := toDecimal(t)
		if !ok {
			return 0, false
		}
		switch {
		case d.Equal(decimal.Zero):
			return model.SideOpen, true
		case d.Equal(decimal.NewFromInt(1)):
			return model.SideClose, true
		}
	}
	return 0, false
}
