package workflow

import "testing"

func TestRandSourceBand(t *testing.T) {
	s := NewRandSource(10, 29)
	for i := 0; i < 1000; i++ {
		v := s.Increment()
		if v < 10 || v > 29 {
			t.Fatalf("increment %d outside band [10, 29]", v)
		}
	}
}

func TestRandSourceDegenerateBand(t *testing.T) {
	s := NewRandSource(5, 5)
	for i := 0; i < 100; i++ {
		if v := s.Increment(); v != 5 {
			t.Fatalf("expected 5, got %d", v)
		}
	}
}

func TestRandSourceSanitizesBounds(t *testing.T) {
	s := NewRandSource(-3, -10)
	for i := 0; i < 100; i++ {
		if v := s.Increment(); v != 1 {
			t.Fatalf("expected 1, got %d", v)
		}
	}
}

func TestRandSourceRoll(t *testing.T) {
	s := NewRandSource(1, 1)
	if v := s.Roll(0); v != 0 {
		t.Fatalf("expected 0 for empty range, got %d", v)
	}
	for i := 0; i < 1000; i++ {
		v := s.Roll(7)
		if v < 0 || v >= 7 {
			t.Fatalf("roll %d outside [0, 7)", v)
		}
	}
}
