package linker

import "testing"

func TestSortUint64(t *testing.T) {
	a := []uint64{5, 1, 4, 1, 3}
	sortUint64(a)
	want := []uint64{1, 1, 3, 4, 5}
	for i, v := range a {
		if v != want[i] {
			t.Fatalf("sortUint64 = %v, want %v", a, want)
		}
	}
}

func TestSortUint64Empty(t *testing.T) {
	var a []uint64
	sortUint64(a) // must not panic
}

func TestSortUint64AlreadySorted(t *testing.T) {
	a := []uint64{1, 2, 3}
	sortUint64(a)
	if a[0] != 1 || a[1] != 2 || a[2] != 3 {
		t.Fatalf("sortUint64 disturbed an already-sorted slice: %v", a)
	}
}
