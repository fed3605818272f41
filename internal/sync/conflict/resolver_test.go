package conflict

import (
	"testing"
	"time"

	"github.com/dl-alexandre/dirsync/internal/sync/scanner"
)

func entry(size uint64, mtime time.Time) scanner.Entry {
	return scanner.Entry{Path: "f", Size: size, ModTime: mtime}
}

func TestCompare(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		left      scanner.Entry
		right     scanner.Entry
		precision time.Duration
		want      Winner
	}{
		{"newer left", entry(1, base.Add(time.Second)), entry(100, base), 0, WinnerLeft},
		{"newer right", entry(100, base), entry(1, base.Add(time.Second)), 0, WinnerRight},
		{"equal time larger left", entry(10, base), entry(5, base), 0, WinnerLeft},
		{"equal time larger right", entry(5, base), entry(10, base), 0, WinnerRight},
		{"identical", entry(5, base), entry(5, base), 0, WinnerNone},
		{"sub-second difference hidden by precision", entry(5, base.Add(400*time.Millisecond)), entry(5, base), time.Second, WinnerNone},
		{"sub-second difference visible without precision", entry(5, base.Add(400*time.Millisecond)), entry(5, base), 0, WinnerLeft},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.left, tt.right, tt.precision); got != tt.want {
				t.Errorf("Compare() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompare_IsAntisymmetric(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pairs := [][2]scanner.Entry{
		{entry(1, base), entry(2, base)},
		{entry(1, base.Add(time.Hour)), entry(2, base)},
		{entry(3, base), entry(3, base)},
	}
	flip := map[Winner]Winner{WinnerLeft: WinnerRight, WinnerRight: WinnerLeft, WinnerNone: WinnerNone}
	for _, p := range pairs {
		if a, b := Compare(p[0], p[1], 0), Compare(p[1], p[0], 0); flip[a] != b {
			t.Errorf("Compare not antisymmetric for %+v: %v vs %v", p, a, b)
		}
	}
}

func TestCoarsest(t *testing.T) {
	if got := Coarsest(0, time.Second, 100*time.Nanosecond); got != time.Second {
		t.Errorf("Coarsest() = %v", got)
	}
	if got := Coarsest(); got != 0 {
		t.Errorf("Coarsest() of nothing = %v", got)
	}
}

func TestPolicyFor(t *testing.T) {
	if PolicyFor(false, false) != PolicySkip {
		t.Error("sync mode must skip conflicts")
	}
	if PolicyFor(true, false) != PolicyLeftWins {
		t.Error("mirror mode must let the left side win")
	}
	if PolicyFor(true, true) != PolicySkip {
		t.Error("mirror with a preserved right side must skip conflicts")
	}
}
