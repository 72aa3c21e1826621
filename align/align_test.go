package align

import "testing"

func TestIsPowerOfTwo(t *testing.T) {
	cases := map[int]bool{
		0: false, 1: true, 2: true, 3: false, 4: true,
		5: false, 8: true, 15: false, 16: true, 1024: true,
	}
	for n, want := range cases {
		if got := IsPowerOfTwo(n); got != want {
			t.Errorf("IsPowerOfTwo(%v): expected %v, got %v", n, want, got)
		}
	}
}

func TestUp(t *testing.T) {
	cases := []struct{ x, a, want int }{
		{0, 8, 0}, {1, 8, 8}, {8, 8, 8}, {9, 8, 16},
		{17, 16, 32}, {1, 1, 1}, {100, 32, 128},
	}
	for _, c := range cases {
		if got := Up(c.x, c.a); got != c.want {
			t.Errorf("Up(%v,%v): expected %v, got %v", c.x, c.a, c.want, got)
		}
	}
}

func TestUpPanicsOnBadAlignment(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic for non-power-of-two alignment")
		}
	}()
	Up(10, 3)
}

func TestIsAligned(t *testing.T) {
	if !IsAligned(16, 8) {
		t.Errorf("expected 16 to be 8-aligned")
	}
	if IsAligned(17, 8) {
		t.Errorf("expected 17 to not be 8-aligned")
	}
}

func TestOffset(t *testing.T) {
	if got := Offset(1, 8); got != 7 {
		t.Errorf("expected 7, got %v", got)
	}
	if got := Offset(8, 8); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}
