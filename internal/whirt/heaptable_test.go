package whirt

import (
	"testing"
)

func TestInsertLookup(t *testing.T) {
	ht := NewHeapTable()
	ht.Insert(0x1000, 4, 4, 2)
	e := ht.Lookup(0x1000)
	if e == nil {
		t.Fatal("entry not found after insert")
	}
	if e.Free || e.Visited {
		t.Error("fresh entry has Free or Visited set")
	}
	if e.Data.Size != 4 || e.Data.ArrayStep != 4 || e.Data.TypeIndex != 2 {
		t.Errorf("entry data = %+v", *e.Data)
	}
	if ht.Lookup(0x2000) != nil {
		t.Error("lookup of unknown address succeeded")
	}
}

// TestDeleteRetainsKey: a freed entry keeps its key for post-mortem
// identity, with Free set and the data released.
func TestDeleteRetainsKey(t *testing.T) {
	ht := NewHeapTable()
	ht.Insert(0x1000, 1, 1, 0)
	ht.Delete(0x1000)
	e := ht.Lookup(0x1000)
	if e == nil {
		t.Fatal("freed entry vanished from the table")
	}
	if !e.Free {
		t.Error("freed entry has Free clear")
	}
	if e.Data != nil {
		t.Error("freed entry retains data")
	}
}

// TestReinsertAfterFree: re-binding a freed address clears Free again.
func TestReinsertAfterFree(t *testing.T) {
	ht := NewHeapTable()
	ht.Insert(0x1000, 1, 1, 0)
	ht.Delete(0x1000)
	ht.Insert(0x1000, 8, 8, 3)
	e := ht.Lookup(0x1000)
	if e.Free {
		t.Error("re-bound entry still marked free")
	}
	if e.Data.Size != 8 || e.Data.TypeIndex != 3 {
		t.Errorf("re-bound data = %+v", *e.Data)
	}
	if ht.Len() != 1 {
		t.Errorf("table has %d entries, want 1", ht.Len())
	}
}

// TestUpdateSize treats reallocated regions as one-dimensional.
func TestUpdateSize(t *testing.T) {
	ht := NewHeapTable()
	ht.Insert(0x1000, 4, 2, 0)
	ht.UpdateSize(0x1000, 8)
	e := ht.Lookup(0x1000)
	if e.Data.Size != 8 || e.Data.ArrayStep != 8 {
		t.Errorf("after realloc data = %+v", *e.Data)
	}
	// Updating an unknown or freed address is a no-op.
	ht.UpdateSize(0x2000, 16)
	ht.Delete(0x1000)
	ht.UpdateSize(0x1000, 32)
}

// TestIterationOrder: ForEach follows insertion order.
func TestIterationOrder(t *testing.T) {
	ht := NewHeapTable()
	addrs := []uintptr{0x30, 0x10, 0x20}
	for _, a := range addrs {
		ht.Insert(a, 1, 1, 0)
	}
	var got []uintptr
	ht.ForEach(func(e *HeapEntry) { got = append(got, e.Key) })
	for i, a := range addrs {
		if got[i] != a {
			t.Fatalf("iteration order %v, want %v", got, addrs)
		}
	}
}

func TestResetVisited(t *testing.T) {
	ht := NewHeapTable()
	ht.Insert(0x10, 1, 1, 0)
	ht.Insert(0x20, 1, 1, 0)
	ht.Lookup(0x10).Visited = true
	ht.Lookup(0x20).Visited = true
	ht.ResetVisited()
	ht.ForEach(func(e *HeapEntry) {
		if e.Visited {
			t.Errorf("entry %#x still visited after reset", e.Key)
		}
	})
}
