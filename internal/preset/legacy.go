// internal/preset/legacy.go
package preset

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/tamzrod/register-programmer/internal/catalog"
	"github.com/tamzrod/register-programmer/internal/register"
)

// A legacy .state file is the repr of the old GUI's values dict:
//
//	{'_CSH_EN_1_': True, '_PI_DC_CTRL_': '7', '_CLOCK_FREQ_': '100', 0: None}

var stateLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "String", Pattern: `'(?:\\.|[^'\\])*'|"(?:\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `[-+]?(?:\d+\.\d*|\.\d+|\d+)(?:[eE][-+]?\d+)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[{}\[\]():,]`},
})

type stateFile struct {
	Entries []*stateEntry `"{" ( @@ ( "," @@ )* ","? )? "}"`
}

type stateEntry struct {
	Key   *stateValue `@@ ":"`
	Value *stateValue `@@`
}

type stateValue struct {
	Str   *string       `  @String`
	Num   *string       `| @Number`
	Ident *string       `| @Ident`
	List  []*stateValue `| ( "[" | "(" ) ( @@ ( "," @@ )* ","? )? ( "]" | ")" )`
}

func (v *stateValue) String() string {
	switch {
	case v.Str != nil:
		return *v.Str
	case v.Num != nil:
		return *v.Num
	case v.Ident != nil:
		return *v.Ident
	default:
		return "[...]"
	}
}

var stateParser = participle.MustBuild[stateFile](
	participle.Lexer(stateLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Keys the old GUI stored next to the register values.
const (
	legacyClockKey = "_CLOCK_FREQ_"
	legacyPortKey  = "_SERIAL_PORT_"
)

var legacyGUIKeys = map[string]bool{
	"_CONSOLE_OUTPUT_":  true,
	"_ADVANCED_FRAME_":  true,
	"_ADVANCED_COLUMN_": true,
	"_REFRESH_PORTS_":   true,
	"_CLEAR_CONSOLE_":   true,
}

// ImportError names the entry a legacy file could not be converted at.
type ImportError struct {
	Key    string
	Value  string
	Reason string
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("preset: import %s=%s: %s", e.Key, e.Value, e.Reason)
}

// Imported is the result of a legacy import.
type Imported struct {
	Preset  Preset
	Skipped []string // keys with no field in the catalog
}

// ImportLegacy converts a legacy .state file into a preset named name.
// Booleans become 0/1 and numeric strings become numbers. A value that
// converts to neither is an error rather than a silent zero, and the result
// must encode against cat.
func ImportLegacy(r io.Reader, name string, cat *catalog.Catalog) (Imported, error) {
	if err := ValidateName(name); err != nil {
		return Imported{}, err
	}

	file, err := stateParser.Parse(name, r)
	if err != nil {
		return Imported{}, fmt.Errorf("preset: parse legacy state: %w", err)
	}

	out := Imported{Preset: Preset{Name: name, Values: register.Values{}}}

	for _, e := range file.Entries {
		if e.Key.Str == nil {
			// the GUI's auto-numbered elements
			continue
		}
		key, err := pyUnquote(*e.Key.Str)
		if err != nil {
			return Imported{}, &ImportError{Key: *e.Key.Str, Value: e.Value.String(), Reason: err.Error()}
		}

		switch {
		case key == legacyClockKey:
			khz, err := legacyNumber(e.Value)
			if err != nil || khz != float64(int(khz)) || khz <= 0 {
				return Imported{}, &ImportError{Key: key, Value: e.Value.String(), Reason: "clock must be a whole number of kHz"}
			}
			out.Preset.ClockHz = int(khz) * 1000
			continue
		case key == legacyPortKey:
			if e.Value.Str != nil {
				out.Preset.Port, _ = pyUnquote(*e.Value.Str)
			}
			continue
		case legacyGUIKeys[key]:
			continue
		}

		field := strings.Trim(key, "_")
		if _, err := cat.FieldByName(field); err != nil {
			out.Skipped = append(out.Skipped, key)
			continue
		}

		v, err := legacyNumber(e.Value)
		if err != nil {
			return Imported{}, &ImportError{Key: key, Value: e.Value.String(), Reason: err.Error()}
		}
		out.Preset.Values[field] = v
	}

	sort.Strings(out.Skipped)

	if err := out.Preset.Check(cat); err != nil {
		return Imported{}, err
	}
	return out, nil
}

func legacyNumber(v *stateValue) (float64, error) {
	switch {
	case v.Ident != nil:
		switch *v.Ident {
		case "True":
			return 1, nil
		case "False":
			return 0, nil
		}
		return 0, fmt.Errorf("not a number")
	case v.Num != nil:
		return strconv.ParseFloat(*v.Num, 64)
	case v.Str != nil:
		s, err := pyUnquote(*v.Str)
		if err != nil {
			return 0, err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number")
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number")
	}
}

// pyUnquote strips the quotes of a Python string literal and resolves the
// common backslash escapes.
func pyUnquote(lit string) (string, error) {
	if len(lit) < 2 || lit[0] != lit[len(lit)-1] || (lit[0] != '\'' && lit[0] != '"') {
		return "", fmt.Errorf("bad string literal %s", lit)
	}
	body := lit[1 : len(lit)-1]
	if !strings.Contains(body, `\`) {
		return body, nil
	}

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i == len(body)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String(), nil
}
