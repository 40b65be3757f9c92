package clock

import (
	"strings"
	"testing"
	"time"
)

func TestFixedClock(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fixed{At: at}
	if !c.Now().Equal(at) {
		t.Errorf("expected %v, got %v", at, c.Now())
	}
}

func TestNewJobIDFormat(t *testing.T) {
	c := Fixed{At: time.Unix(1700000000, 0)}
	id := NewJobID(c)
	if !strings.HasPrefix(id, "job-1700000000-") {
		t.Errorf("expected job-1700000000-<hex>, got %s", id)
	}
}

func TestNewSegmentIDUnique(t *testing.T) {
	a := NewSegmentID()
	b := NewSegmentID()
	if a == b {
		t.Error("expected distinct segment IDs")
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("abc123", "fra", "", "v1", "model-a")
	b := Fingerprint("abc123", "fra", "", "v1", "model-a")
	if a != b {
		t.Errorf("expected fingerprint to be deterministic, got %s vs %s", a, b)
	}

	c := Fingerprint("abc123", "deu", "", "v1", "model-a")
	if a == c {
		t.Error("expected fingerprint to change with language")
	}
}
