package native

import (
	"strconv"
	"strings"
)

// Recognized parameter names.
const (
	ParamM              = "M"
	ParamEfConstruction = "efConstruction"
	ParamEfSearch       = "efSearch"
	ParamML             = "ml"
	ParamThreadQty      = "indexThreadQty"
	ParamPost           = "post"
	ParamCompression    = "compression"
)

// Defaults applied when a parameter is absent.
const (
	DefaultM              = 16
	DefaultEfConstruction = 200
	DefaultEfSearch       = 20
	DefaultML             = 0.25

	maxM = 1 << 16
)

// Params is a parsed list of "key=value" parameters. Keys the engine does
// not recognize are retained and ignored.
type Params struct {
	values map[string]string
	order  []string
}

// ParseParams parses "key=value" strings. Whitespace around keys and values
// is trimmed.
func ParseParams(list []string) (Params, error) {
	p := Params{values: make(map[string]string, len(list))}
	for _, item := range list {
		key, value, ok := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return Params{}, RuntimeError("Wrong format of the parameter: '%s'", item)
		}
		if _, dup := p.values[key]; dup {
			return Params{}, RuntimeError("Duplicate parameter: '%s'", key)
		}
		p.values[key] = strings.TrimSpace(value)
		p.order = append(p.order, key)
	}
	return p, nil
}

// Len returns the number of parameters.
func (p Params) Len() int {
	return len(p.order)
}

// Keys returns parameter names in input order.
func (p Params) Keys() []string {
	return append([]string(nil), p.order...)
}

// String returns the raw value for key.
func (p Params) String(key, def string) string {
	if v, ok := p.values[key]; ok {
		return v
	}
	return def
}

// Int returns key parsed as a positive integer.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p.values[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, RuntimeError("Parameter '%s' must be a positive integer, got '%s'", key, v)
	}
	return n, nil
}

// Float returns key parsed as a positive float.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p.values[key]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, RuntimeError("Parameter '%s' must be a positive number, got '%s'", key, v)
	}
	return f, nil
}
