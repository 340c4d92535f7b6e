// internal/register/encode.go
package register

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tamzrod/register-programmer/internal/catalog"
)

// Values maps field names to values. Flags use 0/1; scaled fields take the
// physical value.
type Values map[string]float64

// OutOfRangeError reports a value outside its field's domain.
type OutOfRangeError struct {
	Field  string
	Value  float64
	Domain string
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("register: field %s value %g outside domain %s", e.Field, e.Value, e.Domain)
}

// UnknownFieldError reports a value for a name the catalog does not declare.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("register: unknown field %q", e.Field)
}

func (e *UnknownFieldError) Unwrap() error { return catalog.ErrNotFound }

// Encode packs values into an image.
// Fields missing from values contribute zero. All-or-nothing: any unknown
// name or out-of-domain value fails the call and no image is produced.
func Encode(cat *catalog.Catalog, values Values) (Image, error) {
	codes, err := encodeCodes(cat, values)
	if err != nil {
		return Image{}, err
	}

	var img Image
	for _, fc := range codes {
		img.setBits(fc.field.Offset, fc.field.Width, fc.code)
	}
	return img, nil
}

type fieldCode struct {
	field catalog.FieldSpec
	code  uint64
}

// encodeCodes validates every value before anything is packed.
// Names are visited in sorted order so the first reported error is stable.
func encodeCodes(cat *catalog.Catalog, values Values) ([]fieldCode, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	codes := make([]fieldCode, 0, len(names))
	for _, name := range names {
		f, err := cat.FieldByName(name)
		if err != nil {
			return nil, &UnknownFieldError{Field: name}
		}
		v := values[name]
		code, ok := f.Encode(v)
		if !ok {
			return nil, &OutOfRangeError{Field: name, Value: v, Domain: f.Domain.String()}
		}
		codes = append(codes, fieldCode{field: f, code: code})
	}
	return codes, nil
}

// ErrUndecodable marks an image holding a code no valid value encodes to.
var ErrUndecodable = errors.New("register: undecodable field code")

// Decode is the inverse of Encode. It returns every catalog field, except
// fields whose code is zero while zero lies outside their domain (those were
// left unset at encode time).
func Decode(cat *catalog.Catalog, img Image) (Values, error) {
	out := make(Values, cat.Len())
	for _, f := range cat.Fields() {
		code := img.getBits(f.Offset, f.Width)
		v, ok := f.Decode(code)
		if !ok {
			if code == 0 {
				continue
			}
			return nil, fmt.Errorf("%w: field %s code %d", ErrUndecodable, f.Name, code)
		}
		out[f.Name] = v
	}
	return out, nil
}

// Stray returns the bits set in img that no catalog field owns.
func Stray(cat *catalog.Catalog, img Image) []uint {
	var owned [catalog.RegisterBits]bool
	for _, f := range cat.Fields() {
		for b := f.Offset; b <= f.High(); b++ {
			owned[b] = true
		}
	}
	var out []uint
	for b := catalog.RegisterBits - 1; b >= 0; b-- {
		if !owned[b] && img.Bit(uint(b)) == 1 {
			out = append(out, uint(b))
		}
	}
	return out
}
