package envutil

import (
	"testing"
	"time"
)

func TestInt(t *testing.T) {
	t.Setenv("ENVUTIL_INT", "42")
	if got := Int("ENVUTIL_INT", 1); got != 42 {
		t.Fatalf("want=42 got=%d", got)
	}
	t.Setenv("ENVUTIL_INT", "nope")
	if got := Int("ENVUTIL_INT", 7); got != 7 {
		t.Fatalf("bad value should fall back, got=%d", got)
	}
}

func TestBool(t *testing.T) {
	cases := map[string]bool{"true": true, "ON": true, "0": false, "off": false}
	for raw, want := range cases {
		t.Setenv("ENVUTIL_BOOL", raw)
		if got := Bool("ENVUTIL_BOOL", !want); got != want {
			t.Fatalf("%q: want=%v got=%v", raw, want, got)
		}
	}
	t.Setenv("ENVUTIL_BOOL", "maybe")
	if got := Bool("ENVUTIL_BOOL", true); !got {
		t.Fatalf("unknown value should fall back")
	}
}

func TestMillis(t *testing.T) {
	t.Setenv("ENVUTIL_MS", "1500")
	if got := Millis("ENVUTIL_MS", time.Second); got != 1500*time.Millisecond {
		t.Fatalf("want=1.5s got=%s", got)
	}
	t.Setenv("ENVUTIL_MS", "")
	if got := Millis("ENVUTIL_MS", time.Second); got != time.Second {
		t.Fatalf("blank should fall back, got=%s", got)
	}
}
