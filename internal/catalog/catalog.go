// internal/catalog/catalog.go
package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned by FieldByName for undeclared names.
var ErrNotFound = errors.New("catalog: field not found")

// OverlapError reports two fields claiming the same register bit.
type OverlapError struct {
	A, B FieldSpec
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf(
		"catalog: field %q bits %d-%d overlaps field %q bits %d-%d",
		e.B.Name, e.B.High(), e.B.Offset,
		e.A.Name, e.A.High(), e.A.Offset,
	)
}

// Catalog is an immutable, validated set of fields.
// Declaration order is preserved and used for listings.
type Catalog struct {
	fields []FieldSpec
	byName map[string]int
	groups []string
}

// New validates the declarations and builds a catalog.
// Any overlap, out-of-register span, duplicate name or domain that does not
// fit its width is an error; nothing is checked again at encode time.
func New(fields []FieldSpec) (*Catalog, error) {
	c := &Catalog{
		fields: make([]FieldSpec, 0, len(fields)),
		byName: make(map[string]int, len(fields)),
	}

	seenGroup := make(map[string]bool)

	for _, f := range fields {
		if f.Name == "" {
			return nil, errors.New("catalog: field name required")
		}
		if _, dup := c.byName[f.Name]; dup {
			return nil, fmt.Errorf("catalog: field %q declared twice", f.Name)
		}
		if f.Width == 0 || f.Width > 64 {
			return nil, fmt.Errorf("catalog: field %q width %d outside 1..64", f.Name, f.Width)
		}
		if f.Offset+f.Width > RegisterBits {
			return nil, fmt.Errorf(
				"catalog: field %q bits %d-%d exceed the %d-bit register",
				f.Name, f.High(), f.Offset, RegisterBits,
			)
		}
		if f.Domain == nil {
			return nil, fmt.Errorf("catalog: field %q has no domain", f.Name)
		}
		if err := f.Domain.check(f.Width); err != nil {
			return nil, fmt.Errorf("catalog: field %q: %w", f.Name, err)
		}

		c.byName[f.Name] = len(c.fields)
		c.fields = append(c.fields, f)

		if !seenGroup[f.Group] {
			seenGroup[f.Group] = true
			c.groups = append(c.groups, f.Group)
		}
	}

	if err := checkOverlap(c.fields); err != nil {
		return nil, err
	}

	return c, nil
}

// MustNew is New for package-level catalogs; it panics on invalid declarations.
func MustNew(fields []FieldSpec) *Catalog {
	c, err := New(fields)
	if err != nil {
		panic(err)
	}
	return c
}

// checkOverlap sorts spans by offset and compares neighbours (inclusive bounds).
func checkOverlap(fields []FieldSpec) error {
	spans := make([]FieldSpec, len(fields))
	copy(spans, fields)
	sort.Slice(spans, func(i, j int) bool { return spans[i].Offset < spans[j].Offset })

	for i := 1; i < len(spans); i++ {
		prev, cur := spans[i-1], spans[i]
		if !(cur.Offset > prev.High()) {
			return &OverlapError{A: prev, B: cur}
		}
	}
	return nil
}

// Fields returns every field in declaration order.
func (c *Catalog) Fields() []FieldSpec {
	out := make([]FieldSpec, len(c.fields))
	copy(out, c.fields)
	return out
}

// FieldsInGroup returns the fields of group in declaration order.
// An unknown group yields an empty slice.
func (c *Catalog) FieldsInGroup(group string) []FieldSpec {
	var out []FieldSpec
	for _, f := range c.fields {
		if f.Group == group {
			out = append(out, f)
		}
	}
	return out
}

// FieldByName looks a field up by its unique name.
func (c *Catalog) FieldByName(name string) (FieldSpec, error) {
	i, ok := c.byName[name]
	if !ok {
		return FieldSpec{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c.fields[i], nil
}

// Groups lists group names in first-declared order.
func (c *Catalog) Groups() []string {
	out := make([]string, len(c.groups))
	copy(out, c.groups)
	return out
}

// Len is the number of declared fields.
func (c *Catalog) Len() int { return len(c.fields) }

// OwnedBits counts register bits claimed by some field.
func (c *Catalog) OwnedBits() int {
	n := 0
	for _, f := range c.fields {
		n += int(f.Width)
	}
	return n
}
