package env

import (
	"reflect"
	"testing"
	"time"
)

func TestStr(t *testing.T) {
	t.Setenv("MONTAGE_TEST_STR", "  value ")
	if got := Str("MONTAGE_TEST_STR", "def"); got != "value" {
		t.Errorf("expected trimmed value, got %q", got)
	}
	if got := Str("MONTAGE_TEST_UNSET", "def"); got != "def" {
		t.Errorf("expected default, got %q", got)
	}
}

func TestMustPanicsWhenMissing(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Must("MONTAGE_TEST_UNSET")
}

func TestTypedReaders(t *testing.T) {
	t.Setenv("MONTAGE_TEST_INT", "24")
	t.Setenv("MONTAGE_TEST_BAD_INT", "twenty")
	t.Setenv("MONTAGE_TEST_BOOL", "TRUE")
	t.Setenv("MONTAGE_TEST_I64", "1048576")

	if got := Int("MONTAGE_TEST_INT", 1); got != 24 {
		t.Errorf("Int: got %d", got)
	}
	if got := Int("MONTAGE_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("Int fallback: got %d", got)
	}
	if got := Bool("MONTAGE_TEST_BOOL", false); !got {
		t.Error("Bool: expected true")
	}
	if got := Int64("MONTAGE_TEST_I64", 0); got != 1<<20 {
		t.Errorf("Int64: got %d", got)
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"15m", 15 * time.Minute},
		{"2.5", 2500 * time.Millisecond},
		{"garbage", time.Hour},
		{"", time.Hour},
	}
	for _, tt := range tests {
		t.Setenv("MONTAGE_TEST_DUR", tt.raw)
		if got := Duration("MONTAGE_TEST_DUR", time.Hour); got != tt.want {
			t.Errorf("Duration(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestCSV(t *testing.T) {
	t.Setenv("MONTAGE_TEST_CSV", "a, b,,c ")
	if got := CSV("MONTAGE_TEST_CSV", nil); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("unexpected split %v", got)
	}
	t.Setenv("MONTAGE_TEST_CSV", " , ")
	if got := CSV("MONTAGE_TEST_CSV", []string{"x"}); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("expected default for blank list, got %v", got)
	}
}
