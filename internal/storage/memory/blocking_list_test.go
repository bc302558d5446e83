package memory

import "testing"

func TestBlockingList_AppendRemove(t *testing.T) {
	l := newBlockingList[int](nil)

	if !l.Append(1) || !l.Append(2) {
		t.Fatal("append on open list should succeed")
	}
	if !l.Remove(func(v int) bool { return v == 1 }) {
		t.Fatal("remove of existing element should succeed")
	}
	if l.Remove(func(v int) bool { return v == 42 }) {
		t.Fatal("remove of missing element should report false")
	}
	if l.Len() != 1 {
		t.Fatalf("expected 1 element, got %d", l.Len())
	}
}

func TestBlockingList_BlockedIsNoop(t *testing.T) {
	l := newBlockingList([]string{"a"})
	l.Block()

	if l.Append("b") {
		t.Fatal("append on blocked list should be ignored")
	}
	if l.Remove(func(v string) bool { return v == "a" }) {
		t.Fatal("remove on blocked list should be ignored")
	}
	if l.Len() != 1 {
		t.Fatalf("blocked list must keep its data, got %d elements", l.Len())
	}

	l.Unblock()
	if !l.Append("b") || l.Len() != 2 {
		t.Fatal("append after unblock should succeed")
	}
}

func TestBlockingList_ClearAndReplaceIgnoreBlock(t *testing.T) {
	l := newBlockingList([]int{1, 2, 3})
	l.Block()

	l.Replace([]int{7})
	if got := l.Items(); len(got) != 1 || got[0] != 7 {
		t.Fatalf("unexpected items after replace: %v", got)
	}
	if !l.Blocked() {
		t.Fatal("replace must keep blocked state")
	}

	l.Clear()
	if l.Len() != 0 {
		t.Fatal("clear must empty a blocked list")
	}
}

func TestBlockingList_ItemsIsCopy(t *testing.T) {
	l := newBlockingList([]int{1, 2})
	items := l.Items()
	items[0] = 100

	if v, _ := l.Find(func(v int) bool { return v == 1 }); v != 1 {
		t.Fatal("Items must return a copy")
	}
}
