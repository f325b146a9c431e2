package config

import (
	"testing"
	"time"

	kit "rollcall/internal/platform/testkit"
)

func TestPrefix_Nests(t *testing.T) {
	c := New().Prefix("SCHEDULER_").Prefix("INIT_")
	if got := c.key("PAUSE"); got != "SCHEDULER_INIT_PAUSE" {
		t.Fatalf("key() = %q", got)
	}
}

func TestMust_PanicsOnMissingOrInvalid(t *testing.T) {
	c := New().Prefix("RCM_")
	t.Setenv("RCM_NAME", "  rollcall ")
	t.Setenv("RCM_N", "8")
	t.Setenv("RCM_BADN", "x")
	t.Setenv("RCM_WAIT", "250ms")
	t.Setenv("RCM_URL", "https://gateway.example/v1")
	t.Setenv("RCM_RELURL", "/v1")

	if got := c.MustString("NAME"); got != "rollcall" {
		t.Fatalf("MustString = %q", got)
	}
	if got := c.MustInt("N"); got != 8 {
		t.Fatalf("MustInt = %d", got)
	}
	if got := c.MustDuration("WAIT"); got != 250*time.Millisecond {
		t.Fatalf("MustDuration = %v", got)
	}
	if u := c.MustURL("URL"); u.Host != "gateway.example" {
		t.Fatalf("MustURL host = %q", u.Host)
	}

	kit.MustPanic(t, func() { _ = c.MustString("MISSING") })
	kit.MustPanic(t, func() { _ = c.MustInt("BADN") })
	kit.MustPanic(t, func() { _ = c.MustDuration("NAME") })
	kit.MustPanic(t, func() { _ = c.MustURL("RELURL") })
}

func TestMayInt_AndRange(t *testing.T) {
	c := New().Prefix("RCI_")
	t.Setenv("RCI_OK", " 7 ")
	t.Setenv("RCI_BAD", "x")
	t.Setenv("RCI_BIG", "500")
	t.Setenv("RCI_SMALL", "0")

	cases := []struct {
		name string
		got  int
		want int
	}{
		{"missing", c.MayInt("MISSING", 9), 9},
		{"ok", c.MayInt("OK", 0), 7},
		{"bad", c.MayInt("BAD", 3), 3},
		{"range high", c.MayIntIn("BIG", 10, 1, 100), 100},
		{"range low", c.MayIntIn("SMALL", 10, 1, 100), 1},
		{"range default", c.MayIntIn("MISSING", 10, 1, 100), 10},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("%s: got %d want %d", tc.name, tc.got, tc.want)
		}
	}
}

func TestMayDuration_SecondsAndUnits(t *testing.T) {
	c := New().Prefix("RCD_")
	t.Setenv("RCD_SECS", "180")
	t.Setenv("RCD_UNITS", "1500ms")
	t.Setenv("RCD_BAD", "soon")

	if got := c.MayDuration("SECS", 0); got != 180*time.Second {
		t.Fatalf("bare int = %v, want 3m", got)
	}
	if got := c.MayDuration("UNITS", 0); got != 1500*time.Millisecond {
		t.Fatalf("units = %v", got)
	}
	if got := c.MayDuration("BAD", time.Minute); got != time.Minute {
		t.Fatalf("bad = %v, want default", got)
	}
	if got := c.MayDuration("MISSING", 5*time.Second); got != 5*time.Second {
		t.Fatalf("missing = %v, want default", got)
	}
}

func TestMayBool_Float_String(t *testing.T) {
	c := New().Prefix("RCB_")
	t.Setenv("RCB_ON", "true")
	t.Setenv("RCB_JUNK", "nope")
	t.Setenv("RCB_RPS", "2.5")

	if !c.MayBool("ON", false) {
		t.Fatalf("MayBool true expected")
	}
	if c.MayBool("JUNK", false) {
		t.Fatalf("MayBool junk should fall back to default")
	}
	if got := c.MayFloat64("RPS", 1); got != 2.5 {
		t.Fatalf("MayFloat64 = %v", got)
	}
	if got := c.MayString("MISSING", "./sessions"); got != "./sessions" {
		t.Fatalf("MayString default = %q", got)
	}
}

func TestMayCSV(t *testing.T) {
	c := New().Prefix("RCC_")
	t.Setenv("RCC_VALS", " a, b , ,c ,, ")
	t.Setenv("RCC_BLANK", " , , ")

	got := c.MayCSV("VALS", nil)
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("MayCSV = %#v", got)
	}
	if got := c.MayCSV("BLANK", []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Fatalf("MayCSV blank should fall back, got %#v", got)
	}
}

func TestMayEnum(t *testing.T) {
	c := New().Prefix("RCE_")
	t.Setenv("RCE_MODE", "Activity")
	t.Setenv("RCE_BAD", "sms")

	if got := c.MayEnum("MODE", "registration", "registration", "activity"); got != "activity" {
		t.Fatalf("MayEnum = %q, want activity", got)
	}
	if got := c.MayEnum("MISSING", "registration", "registration", "activity"); got != "registration" {
		t.Fatalf("MayEnum default = %q", got)
	}
	kit.MustPanic(t, func() { _ = c.MayEnum("BAD", "registration", "registration", "activity") })
}
