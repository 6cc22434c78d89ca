package handles

import "testing"

func TestTableInsertGetRemove(t *testing.T) {
	tbl := NewTable()

	h1 := tbl.Insert("first")
	h2 := tbl.Insert("second")
	if h1 == 0 || h2 == 0 || h1 == h2 {
		t.Fatalf("bad handles: %d, %d", h1, h2)
	}

	if v, ok := tbl.Get(h1); !ok || v != "first" {
		t.Errorf("Get(h1) = %v, %v", v, ok)
	}

	if v, ok := tbl.Remove(h1); !ok || v != "first" {
		t.Errorf("Remove(h1) = %v, %v", v, ok)
	}
	if _, ok := tbl.Get(h1); ok {
		t.Error("removed handle should not resolve")
	}
	if _, ok := tbl.Remove(h1); ok {
		t.Error("double remove should fail")
	}

	if tbl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tbl.Len())
	}
}

func TestTableHandleReuse(t *testing.T) {
	tbl := NewTable()

	h1 := tbl.Insert(1)
	tbl.Remove(h1)

	h2 := tbl.Insert(2)
	if h2 != h1 {
		t.Errorf("freed handle not reused: got %d, want %d", h2, h1)
	}
	if v, ok := tbl.Get(h2); !ok || v != 2 {
		t.Errorf("Get(reused) = %v, %v", v, ok)
	}
}

func TestTableZeroHandle(t *testing.T) {
	tbl := NewTable()

	if _, ok := tbl.Get(0); ok {
		t.Error("handle 0 must never resolve")
	}
	if _, ok := tbl.Remove(0); ok {
		t.Error("handle 0 must never be removable")
	}
	if _, ok := tbl.Get(99); ok {
		t.Error("out-of-range handle must not resolve")
	}
}
