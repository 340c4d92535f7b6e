// internal/register/encode_test.go
package register

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/tamzrod/register-programmer/internal/catalog"
)

func twoByteCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.FieldSpec{
		{Name: "A", Offset: 120, Width: 8, Domain: catalog.Bits(8)},
		{Name: "B", Offset: 0, Width: 8, Domain: catalog.Bits(8)},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func TestEncode_TopAndBottomByte(t *testing.T) {
	img, err := Encode(twoByteCatalog(t), Values{"A": 0x38, "B": 0x80})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	want := Image{0x38, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x80}
	if img != want {
		t.Fatalf("image got=%s want=%s", img, want)
	}
	if img.Bit(127) != 0 || img.Bit(125) != 1 || img.Bit(7) != 1 {
		t.Fatalf("bit order wrong: %s", img)
	}
}

func TestEncode_MissingFieldsAreZero(t *testing.T) {
	img, err := Encode(catalog.Chip(), Values{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if img != (Image{}) {
		t.Fatalf("empty values should give zero image, got %s", img)
	}
}

func TestEncode_OutOfRangeProducesNoImage(t *testing.T) {
	img, err := Encode(catalog.Chip(), Values{"CSH_EN_1": 1, "PI_DC_CTRL": 8})

	var oe *OutOfRangeError
	if !errors.As(err, &oe) {
		t.Fatalf("expected OutOfRangeError, got %v", err)
	}
	if oe.Field != "PI_DC_CTRL" || oe.Value != 8 {
		t.Fatalf("unexpected error fields: %+v", oe)
	}
	if img != (Image{}) {
		t.Fatalf("failed encode must not return a partial image")
	}
}

func TestEncode_UnknownField(t *testing.T) {
	_, err := Encode(catalog.Chip(), Values{"NOPE": 1})
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEncode_ChipFlagsLandOnOriginalBits(t *testing.T) {
	img, err := Encode(catalog.Chip(), Values{
		"CSH_EN_8": 1, // bit 127
		"PI_EN_1":  1, // bit 112
		"TMUX_SEL": 0xF,
		"SPARE":    1, // bit 0
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if img[0] != 0x80 {
		t.Fatalf("byte0 got=%#02x want=0x80", img[0])
	}
	if img[1] != 0x01 {
		t.Fatalf("byte1 got=%#02x want=0x01", img[1])
	}
	// TMUX_SEL bits 4..1 plus SPARE bit 0
	if img[15] != 0x1F {
		t.Fatalf("byte15 got=%#02x want=0x1f", img[15])
	}
}

func randomChipValues(r *rand.Rand) Values {
	v := Values{}
	for _, f := range catalog.Chip().Fields() {
		if r.Intn(3) == 0 {
			continue // leave some fields out
		}
		v[f.Name] = float64(r.Int63n(int64(1) << f.Width))
	}
	return v
}

func TestDecode_RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	cat := catalog.Chip()

	for i := 0; i < 200; i++ {
		in := randomChipValues(r)
		img, err := Encode(cat, in)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		out, err := Decode(cat, img)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		for name, want := range in {
			if out[name] != want {
				t.Fatalf("%s got=%v want=%v", name, out[name], want)
			}
		}
		for name, got := range out {
			if _, set := in[name]; !set && got != 0 {
				t.Fatalf("unset field %s decoded to %v", name, got)
			}
		}
	}
}

func TestEncode_OrderIndependent(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	cat := catalog.Chip()
	in := randomChipValues(r)

	want, err := Encode(cat, in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// pack the same codes in several shuffled orders
	codes, err := encodeCodes(cat, in)
	if err != nil {
		t.Fatalf("codes: %v", err)
	}
	for i := 0; i < 20; i++ {
		r.Shuffle(len(codes), func(a, b int) { codes[a], codes[b] = codes[b], codes[a] })
		var img Image
		for _, fc := range codes {
			img.setBits(fc.field.Offset, fc.field.Width, fc.code)
		}
		if img != want {
			t.Fatalf("order %d: got=%s want=%s", i, img, want)
		}
	}
}

func TestEncode_ScaledFieldRoundsHalfUp(t *testing.T) {
	cat := catalog.MustNew([]catalog.FieldSpec{
		{Name: "VREF", Offset: 0, Width: 2, Domain: catalog.Linear{Min: 0, Max: 3, Unit: "V"}},
	})

	img, err := Encode(cat, Values{"VREF": 1.5})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if img[15] != 2 {
		t.Fatalf("code got=%d want=2", img[15])
	}

	out, err := Decode(cat, img)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["VREF"] != 2 {
		t.Fatalf("decoded got=%v want=2", out["VREF"])
	}
}

func TestDecode_UndecodableCode(t *testing.T) {
	cat := catalog.MustNew([]catalog.FieldSpec{
		{Name: "E", Offset: 0, Width: 2, Domain: catalog.Enum{Values: []float64{10, 20}}},
	})

	_, err := Decode(cat, Image{15: 3})
	if !errors.Is(err, ErrUndecodable) {
		t.Fatalf("expected ErrUndecodable, got %v", err)
	}
}

func TestStray(t *testing.T) {
	cat := twoByteCatalog(t)
	got := Stray(cat, Image{8: 0x01}) // bit 56
	if len(got) != 1 || got[0] != 56 {
		t.Fatalf("stray got=%v want=[56]", got)
	}
}

func TestParseHex(t *testing.T) {
	img, err := ParseHex("0x3800_0000 0000 0000 0000 0000 0000 0080")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if img[0] != 0x38 || img[15] != 0x80 {
		t.Fatalf("unexpected image %s", img)
	}
	if _, err := ParseHex("38"); err == nil {
		t.Fatalf("short input should fail")
	}
}

func TestWriteBitDump(t *testing.T) {
	var sb strings.Builder
	if err := WriteBitDump(&sb, Image{0: 0x80, 15: 0x01}); err != nil {
		t.Fatalf("dump: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 129 {
		t.Fatalf("lines got=%d want=129", len(lines))
	}
	if lines[1] != "1,127,1" || lines[2] != "2,126,0" || lines[128] != "128,0,1" {
		t.Fatalf("unexpected rows: %q %q %q", lines[1], lines[2], lines[128])
	}
}

func TestImage_Words(t *testing.T) {
	w := Image{0: 0x12, 1: 0x34, 15: 0xFF}.Words()
	if len(w) != 8 || w[0] != 0x1234 || w[7] != 0x00FF {
		t.Fatalf("words got=%v", w)
	}
}

func TestFromWords(t *testing.T) {
	img := Image{0: 0x12, 1: 0x34, 9: 0xA5, 15: 0xFF}
	if got := FromWords(img.Words()); got != img {
		t.Fatalf("got=%s want=%s", got, img)
	}
	if got := FromWords([]uint16{0xBEEF}); got != (Image{0: 0xBE, 1: 0xEF}) {
		t.Fatalf("short got=%s", got)
	}
}
