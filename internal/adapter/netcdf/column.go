package netcdf

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// columnKind is the scalar type a column was decoded as.
type columnKind int

const (
	kindFloat columnKind = iota + 1
	kindInt
	kindText
)

// column is a decoded variable. Its kind is decided once when the variable is
// loaded; values of any netCDF shape are flattened in row-major order.
type column struct {
	kind   columnKind
	floats []float64
	ints   []int64
	text   []string
}

var errUnsupportedType = errors.New("unsupported variable type")

func loadColumn(values any) (column, error) {
	v := reflect.ValueOf(values)
	if !v.IsValid() {
		return column{}, errUnsupportedType
	}
	var c column
	if err := c.flatten(v); err != nil {
		return column{}, err
	}
	return c, nil
}

func (c *column) flatten(v reflect.Value) error {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			if err := c.flatten(v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return errUnsupportedType
		}
		return c.flatten(v.Elem())
	case reflect.Float32, reflect.Float64:
		return c.put(kindFloat, func() { c.floats = append(c.floats, v.Float()) })
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return c.put(kindInt, func() { c.ints = append(c.ints, v.Int()) })
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return c.put(kindInt, func() { c.ints = append(c.ints, int64(v.Uint())) })
	case reflect.String:
		return c.put(kindText, func() { c.text = append(c.text, v.String()) })
	default:
		return fmt.Errorf("%w: %s", errUnsupportedType, v.Kind())
	}
}

func (c *column) put(k columnKind, appendFn func()) error {
	if c.kind != 0 && c.kind != k {
		return fmt.Errorf("%w: mixed element types", errUnsupportedType)
	}
	c.kind = k
	appendFn()
	return nil
}

// Floats returns the column as float64 values. Integer columns are widened.
func (c column) Floats() ([]float64, error) {
	switch c.kind {
	case kindFloat:
		return c.floats, nil
	case kindInt:
		out := make([]float64, len(c.ints))
		for i, v := range c.ints {
			out[i] = float64(v)
		}
		return out, nil
	default:
		return nil, errors.New("expected a numeric variable")
	}
}

// Flags returns the column as integer flag codes. Character flags such as
// "1114" yield one code per character; non-digits become -1.
func (c column) Flags() ([]int, error) {
	switch c.kind {
	case kindInt:
		out := make([]int, len(c.ints))
		for i, v := range c.ints {
			out[i] = int(v)
		}
		return out, nil
	case kindFloat:
		out := make([]int, len(c.floats))
		for i, v := range c.floats {
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("flag value %v is not an integer", v)
			}
			out[i] = int(v)
		}
		return out, nil
	case kindText:
		s := strings.Join(c.text, "")
		out := make([]int, 0, len(s))
		for _, r := range s {
			if r >= '0' && r <= '9' {
				out = append(out, int(r-'0'))
			} else {
				out = append(out, -1)
			}
		}
		return out, nil
	default:
		return nil, errors.New("expected a flag variable")
	}
}

// Text returns a text column as one trimmed string.
func (c column) Text() (string, error) {
	if c.kind != kindText {
		return "", errors.New("expected a character variable")
	}
	return strings.TrimSpace(strings.TrimRight(strings.Join(c.text, ""), "\x00")), nil
}

// Len returns the number of flattened elements.
func (c column) Len() int {
	switch c.kind {
	case kindFloat:
		return len(c.floats)
	case kindInt:
		return len(c.ints)
	case kindText:
		return len(c.text)
	}
	return 0
}

// attrFloat reads a numeric attribute, accepting scalars or one-element slices.
func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	c, err := loadColumn(raw)
	if err != nil || c.Len() == 0 {
		return 0, false
	}
	vals, err := c.Floats()
	if err != nil {
		return 0, false
	}
	return vals[0], true
}

// attrString reads a character attribute.
func attrString(attrs api.AttributeMap, key string) (string, bool) {
	if attrs == nil {
		return "", false
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return strings.TrimRight(s, "\x00"), ok
}
