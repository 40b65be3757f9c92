package job

import (
	"testing"
	"time"

	"github.com/maauso/subtitlegen/internal/clock"
	"github.com/maauso/subtitlegen/internal/errorx"
)

func fixedClock() clock.Clock {
	return clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestNew(t *testing.T) {
	c := fixedClock()
	j := New(c, "/in/video.mp4", []Target{{Language: "fra"}})

	if j.ID == "" {
		t.Error("expected job to have an ID")
	}
	if j.Stage != StageNew {
		t.Errorf("expected stage %s, got %s", StageNew, j.Stage)
	}
	if j.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if j.ReservedBlobNamespace == "" {
		t.Error("expected a reserved blob namespace")
	}
}

func TestJob_ValidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Stage
		to      Stage
		wantErr bool
	}{
		{"New to Validated", StageNew, StageValidated, false},
		{"New to Failed", StageNew, StageFailed, false},
		{"Validated to Segmented", StageValidated, StageSegmented, false},
		{"Segmented to Uploaded", StageSegmented, StageUploaded, false},
		{"Uploaded to Generated", StageUploaded, StageGenerated, false},
		{"Generated to Merged", StageGenerated, StageMerged, false},
		{"Merged to Validated2", StageMerged, StageValidated2, false},
		{"Validated2 to Emitted", StageValidated2, StageEmitted, false},
		{"Validated2 to Uploaded (quality retry rewind)", StageValidated2, StageUploaded, false},
		{"Emitted to Completed", StageEmitted, StageCompleted, false},
		{"New to Segmented (skip stage)", StageNew, StageSegmented, true},
		{"Completed to New", StageCompleted, StageNew, true},
		{"Failed to Validated", StageFailed, StageValidated, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fixedClock()
			j := NewWithID(c, "test", "/in/video.mp4", nil)
			j.Stage = tt.from

			err := j.TransitionTo(c, tt.to)
			if tt.wantErr && err == nil {
				t.Errorf("expected error for transition %s -> %s", tt.from, tt.to)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for transition %s -> %s: %v", tt.from, tt.to, err)
			}
		})
	}
}

func TestJob_CannotTransitionFromTerminalState(t *testing.T) {
	terminal := []Stage{StageCompleted, StageFailed, StageAbandoned}
	all := []Stage{StageNew, StageValidated, StageSegmented, StageCompleted, StageFailed, StageAbandoned}

	for _, term := range terminal {
		for _, target := range all {
			t.Run(string(term)+"_to_"+string(target), func(t *testing.T) {
				c := fixedClock()
				j := NewWithID(c, "test", "/in/video.mp4", nil)
				j.Stage = term

				err := j.TransitionTo(c, target)
				if err != ErrInvalidTransition {
					t.Errorf("expected ErrInvalidTransition, got %v", err)
				}
			})
		}
	}
}

func TestJob_Fail(t *testing.T) {
	c := fixedClock()
	j := NewWithID(c, "test", "/in/video.mp4", nil)

	rec := errorx.Record{Kind: errorx.InvalidInput, Message: "no audio stream", Component: "probe"}
	if err := j.Fail(c, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.Stage != StageFailed {
		t.Errorf("expected stage Failed, got %s", j.Stage)
	}
	if j.LastError == nil || j.LastError.Kind != errorx.InvalidInput {
		t.Errorf("expected last_error to be recorded, got %v", j.LastError)
	}
}

func TestJob_AllUploaded(t *testing.T) {
	c := fixedClock()
	j := NewWithID(c, "test", "/in/video.mp4", nil)
	j.SetSegments(c, []Segment{{Index: 0}, {Index: 1}, {Index: 2}})

	if j.AllUploaded() {
		t.Error("expected AllUploaded to be false before any upload")
	}

	j.MarkUploaded(c, 0)
	j.MarkUploaded(c, 1)
	if j.AllUploaded() {
		t.Error("expected AllUploaded to be false with one segment missing")
	}

	j.MarkUploaded(c, 2)
	if !j.AllUploaded() {
		t.Error("expected AllUploaded to be true once every segment is uploaded")
	}
}

func TestJob_AttemptCounting(t *testing.T) {
	c := fixedClock()
	j := NewWithID(c, "test", "/in/video.mp4", nil)
	key := ResultKey{SegmentIndex: 0, Language: "fra"}

	if got := j.AttemptCount(key); got != 0 {
		t.Errorf("expected 0 attempts initially, got %d", got)
	}
	if got := j.IncrementAttempt(c, key); got != 1 {
		t.Errorf("expected 1 after first increment, got %d", got)
	}
	if got := j.IncrementAttempt(c, key); got != 2 {
		t.Errorf("expected 2 after second increment, got %d", got)
	}
}

func TestJob_ClearResults(t *testing.T) {
	c := fixedClock()
	j := NewWithID(c, "test", "/in/video.mp4", nil)
	k0 := ResultKey{SegmentIndex: 0, Language: "fra"}
	k1 := ResultKey{SegmentIndex: 1, Language: "fra"}

	j.SetResult(c, k0, CueRef{Path: "/scratch/0.srt", CueCount: 4})
	j.SetResult(c, k1, CueRef{Path: "/scratch/1.srt", CueCount: 6})

	j.ClearResults(c, []ResultKey{k0})

	if _, ok := j.PerChunkResults[k0]; ok {
		t.Error("expected k0 to be cleared")
	}
	if _, ok := j.PerChunkResults[k1]; !ok {
		t.Error("expected k1 to survive the clear")
	}
}

func TestJob_Clone(t *testing.T) {
	c := fixedClock()
	j := NewWithID(c, "test", "/in/video.mp4", []Target{{Language: "fra"}})
	j.Stage = StageGenerated
	j.SetSegments(c, []Segment{{Index: 0, Checksum: "abc"}})
	j.MarkUploaded(c, 0)

	clone := j.Clone()

	if clone.ID != j.ID || clone.Stage != j.Stage {
		t.Errorf("expected clone to match source")
	}

	clone.Stage = StageCompleted
	clone.Segments[0].Checksum = "mutated"
	clone.Uploaded[0] = false

	if j.Stage == StageCompleted {
		t.Error("modifying clone stage should not affect original")
	}
	if j.Segments[0].Checksum == "mutated" {
		t.Error("modifying clone segments should not affect original")
	}
	if !j.Uploaded[0] {
		t.Error("modifying clone uploaded map should not affect original")
	}
}

func TestJob_GetStage_ThreadSafe(t *testing.T) {
	c := fixedClock()
	j := NewWithID(c, "test", "/in/video.mp4", nil)

	done := make(chan bool)
	go func() {
		for i := 0; i < 100; i++ {
			_ = j.GetStage()
		}
		done <- true
	}()
	go func() {
		for i := 0; i < 100; i++ {
			j.MarkUploaded(c, i%3)
		}
		done <- true
	}()
	<-done
	<-done
}
