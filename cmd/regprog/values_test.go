// cmd/regprog/values_test.go
package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tamzrod/register-programmer/internal/config"
	"github.com/tamzrod/register-programmer/internal/session"
)

func TestParseSets(t *testing.T) {
	got, err := parseSets([]string{"csh_en_1=true", "PI_ICTRL = 5", "BUFF_EN=off", "PI_CAP_CTRL=1e1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]float64{"CSH_EN_1": 1, "PI_ICTRL": 5, "BUFF_EN": 0, "PI_CAP_CTRL": 10}
	if len(got) != len(want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s got=%v want=%v", k, got[k], v)
		}
	}
}

func TestParseSets_Rejects(t *testing.T) {
	for _, s := range []string{"PI_ICTRL", "=5", "PI_ICTRL=five", "PI_ICTRL="} {
		if _, err := parseSets([]string{s}); err == nil {
			t.Fatalf("%q: expected error", s)
		}
	}
}

func TestPickClock(t *testing.T) {
	cfg = config.Default()
	cfg.Transfer.ClockHz = 150000

	cases := []struct {
		flag, preset, want int
	}{
		{0, 0, 150000},
		{0, 200000, 200000},
		{300000, 200000, 300000},
	}
	for _, tc := range cases {
		if got := pickClock(tc.flag, tc.preset); got != tc.want {
			t.Fatalf("pickClock(%d,%d) got=%d want=%d", tc.flag, tc.preset, got, tc.want)
		}
	}
}

func TestExitCode_UnclassifiedOutsideTaxonomy(t *testing.T) {
	cases := []struct {
		err  error
		want uint16
	}{
		{nil, 0},
		{errors.New("plain"), session.CodeUnclassified},
		{&session.Error{Kind: session.KindEncoding}, 1},
		{&session.Error{Kind: session.KindFlash}, uint16(session.KindFlash)},
		{fmt.Errorf("wrapped: %w", &session.Error{Kind: session.KindCancelled}), uint16(session.KindCancelled)},
	}
	for _, tc := range cases {
		if got := session.CodeOf(tc.err); got != tc.want {
			t.Fatalf("exit code for %v got=%d want=%d", tc.err, got, tc.want)
		}
	}
	if session.CodeOf(errors.New("plain")) == session.CodeOf(&session.Error{Kind: session.KindEncoding}) {
		t.Fatalf("generic error shares the encoding exit code")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "b", "c"); got != "b" {
		t.Fatalf("got=%q want=b", got)
	}
	if got := firstNonEmpty(); got != "" {
		t.Fatalf("got=%q want empty", got)
	}
}
