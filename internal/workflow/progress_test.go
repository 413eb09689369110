package workflow

import "testing"

func TestNextProgress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		previous int
		incoming int
		want     int
	}{
		{"advances", 10, 35, 35},
		{"never regresses", 60, 40, 60},
		{"clamps above 100", 90, 250, 100},
		{"negative incoming keeps previous", 45, -5, 45},
		{"negative previous clamped", -10, -10, 0},
		{"equal is stable", 50, 50, 50},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NextProgress(tc.previous, tc.incoming); got != tc.want {
				t.Fatalf("NextProgress(%d, %d) = %d, want %d", tc.previous, tc.incoming, got, tc.want)
			}
		})
	}
}

func TestActiveProgressCapsAt99(t *testing.T) {
	t.Parallel()

	if got := ActiveProgress(95, 100); got != 99 {
		t.Fatalf("ActiveProgress(95, 100) = %d, want 99", got)
	}
	if got := ActiveProgress(99, 99); got != 99 {
		t.Fatalf("ActiveProgress(99, 99) = %d, want 99", got)
	}
	if got := ActiveProgress(20, 75); got != 75 {
		t.Fatalf("ActiveProgress(20, 75) = %d, want 75", got)
	}
}

func TestOverallProgress(t *testing.T) {
	t.Parallel()

	steps := []struct {
		completed int
		want      int
	}{
		{0, 0},
		{1, 20},
		{2, 40},
		{3, 60},
		{4, 80},
		{5, 100},
	}
	for _, tc := range steps {
		if got := OverallProgress(tc.completed); got != tc.want {
			t.Fatalf("OverallProgress(%d) = %d, want %d", tc.completed, got, tc.want)
		}
	}
}
