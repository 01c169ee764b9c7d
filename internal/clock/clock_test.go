package clock

import (
	"testing"
)

func TestVectorClock_Increment(t *testing.T) {
	vc := New()
	vc.Increment("A")
	if vc.Get("A") != 1 {
		t.Errorf("Expected counter 1, got %d", vc.Get("A"))
	}

	vc.Increment("A")
	if vc.Get("A") != 2 {
		t.Errorf("Expected counter 2, got %d", vc.Get("A"))
	}

	vc.Increment("B")
	if vc.Get("B") != 1 {
		t.Errorf("Expected counter 1 for B, got %d", vc.Get("B"))
	}
}

func TestVectorClock_Merge(t *testing.T) {
	vc1 := New()
	vc1.Set("A", 3)
	vc1.Set("B", 1)

	vc2 := New()
	vc2.Set("A", 2)
	vc2.Set("B", 5)
	vc2.Set("C", 1)

	merged := vc1.Merge(vc2)

	if merged.Get("A") != 3 {
		t.Errorf("Expected 3 (max), got %d", merged.Get("A"))
	}
	if merged.Get("B") != 5 {
		t.Errorf("Expected 5 (max), got %d", merged.Get("B"))
	}
	if merged.Get("C") != 1 {
		t.Errorf("Expected 1, got %d", merged.Get("C"))
	}
	if vc1.Get("B") != 1 || vc1.Get("C") != 0 {
		t.Errorf("Merge must not modify the receiver, got %s", vc1)
	}
}

func TestVectorClock_Compare(t *testing.T) {
	tests := []struct {
		name     string
		vc1      VectorClock
		vc2      VectorClock
		expected Comparison
	}{
		{
			name:     "equal clocks",
			vc1:      VectorClock{"A": 1, "B": 2},
			vc2:      VectorClock{"A": 1, "B": 2},
			expected: Equal,
		},
		{
			name:     "vc1 smaller than vc2",
			vc1:      VectorClock{"A": 1, "B": 1},
			vc2:      VectorClock{"A": 2, "B": 2},
			expected: Smaller,
		},
		{
			name:     "vc1 greater than vc2",
			vc1:      VectorClock{"A": 2, "B": 2},
			vc2:      VectorClock{"A": 1, "B": 1},
			expected: Greater,
		},
		{
			name:     "simultaneous: vc1 has higher A, vc2 has higher B",
			vc1:      VectorClock{"A": 2, "B": 1},
			vc2:      VectorClock{"A": 1, "B": 2},
			expected: Simultaneous,
		},
		{
			name:     "vc1 smaller than vc2 (subset)",
			vc1:      VectorClock{"A": 1},
			vc2:      VectorClock{"A": 2, "B": 1},
			expected: Smaller,
		},
		{
			name:     "simultaneous (subset with different values)",
			vc1:      VectorClock{"A": 2},
			vc2:      VectorClock{"A": 1, "B": 2},
			expected: Simultaneous,
		},
		{
			name:     "explicit zero equals missing key",
			vc1:      VectorClock{"A": 1, "B": 0},
			vc2:      VectorClock{"A": 1},
			expected: Equal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.vc1.Compare(tt.vc2)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestVectorClock_Copy(t *testing.T) {
	vc1 := New()
	vc1.Set("A", 5)
	vc1.Set("B", 3)

	vc2 := vc1.Copy()
	if !vc1.Equal(vc2) {
		t.Error("Copy should be equal to original")
	}

	vc2.Increment("A")
	if vc1.Get("A") == vc2.Get("A") {
		t.Error("Modifying copy should not affect original")
	}
}

func TestVectorClock_Dominates(t *testing.T) {
	vc1 := VectorClock{"A": 2, "B": 2}
	vc2 := VectorClock{"A": 1, "B": 1}

	if !vc1.Dominates(vc2) {
		t.Error("vc1 should dominate vc2")
	}

	if vc2.Dominates(vc1) {
		t.Error("vc2 should not dominate vc1")
	}
}

func TestVectorClock_IsSimultaneous(t *testing.T) {
	vc1 := VectorClock{"A": 2, "B": 1}
	vc2 := VectorClock{"A": 1, "B": 2}

	if !vc1.IsSimultaneous(vc2) {
		t.Error("vc1 and vc2 should be simultaneous")
	}

	vc3 := VectorClock{"A": 2, "B": 2}
	if vc1.IsSimultaneous(vc3) {
		t.Error("vc1 and vc3 should not be simultaneous (vc3 dominates)")
	}
}

func TestComparison_String(t *testing.T) {
	names := map[Comparison]string{
		Equal:          "EQUAL",
		Smaller:        "SMALLER",
		Greater:        "GREATER",
		Simultaneous:   "SIMULTANEOUS",
		Comparison(42): "UNKNOWN",
	}
	for c, want := range names {
		if got := c.String(); got != want {
			t.Errorf("Comparison(%d).String() = %q, want %q", int(c), got, want)
		}
	}
}
