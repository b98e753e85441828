package ids

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	a := New("job")
	b := New("job")
	if a == b {
		t.Fatal("expected distinct ids")
	}
	if !strings.HasPrefix(a, "job_") || len(a) != len("job_")+32 {
		t.Errorf("unexpected id shape %q", a)
	}
	if !Valid("job", a) {
		t.Errorf("expected %q to be valid", a)
	}
}

func TestValid(t *testing.T) {
	if Valid("job", "asset_"+strings.Repeat("a", 32)) {
		t.Error("wrong prefix accepted")
	}
	if Valid("job", "job_../../etc") {
		t.Error("path-like id accepted")
	}
	if !Valid("", New("")) {
		t.Error("bare id rejected")
	}
}
