package session

import (
	"assettree/internal/core/errors"
	"assettree/internal/engine/tree"
	stderrors "errors"
	"sync"
	"testing"
)

func mustKey(t *testing.T, treeName, workbook string) Key {
	t.Helper()
	k, err := NewKey(treeName, workbook)
	if err != nil {
		t.Fatalf("new key: %v", err)
	}
	return k
}

func TestNewKeyValidates(t *testing.T) {
	if _, err := NewKey(" ", "W"); !errors.IsCode(err, errors.CodeValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := NewKey("T", ""); !errors.IsCode(err, errors.CodeValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
	k := mustKey(t, " T1 ", "W")
	if k.String() != "T1::W" {
		t.Fatalf("key = %q", k)
	}
}

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()
	k := mustKey(t, "T1", "W")

	if _, err := s.Get(k); !stderrors.Is(err, errors.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	first := tree.New("T1", "", "/")
	sess, created := s.Create(k, first)
	if !created || sess.Revision != 1 {
		t.Fatalf("create = %+v, %v", sess, created)
	}
	again, created := s.Create(k, tree.New("T1", "", "/"))
	if created || again.Tree != first {
		t.Fatal("create must reuse the existing session")
	}

	grown := first.Clone()
	if _, _, err := grown.Insert("", tree.ItemDef{Name: "Temp", Type: tree.TypeSignal}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if sess := s.Put(k, grown); sess.Revision != 2 || sess.Nodes != 2 {
		t.Fatalf("put = %+v", sess)
	}
	replaced := s.Put(k, tree.New("T1", "", "/"))
	if replaced.Revision != 3 || replaced.Tree == first {
		t.Fatalf("put = %+v", replaced)
	}

	list := s.List()
	if len(list) != 1 || list[0].Nodes != 1 || list[0].Revision != 3 {
		t.Fatalf("list = %+v", list)
	}
	if !s.Delete(k) || s.Delete(k) {
		t.Fatal("delete should succeed once")
	}
	if _, err := s.Get(k); !stderrors.Is(err, errors.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestStoreConcurrentSessions(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := Key{TreeName: "T", WorkbookName: string(rune('a' + i))}
			s.Create(k, tree.New("T", "", "/"))
			for j := 0; j < 10; j++ {
				s.Put(k, tree.New("T", "", "/"))
				_ = s.List()
			}
		}(i)
	}
	wg.Wait()
	if s.Len() != 16 {
		t.Fatalf("expected 16 sessions, got %d", s.Len())
	}
}

func TestRenderCacheForgetsSession(t *testing.T) {
	c := NewRenderCache(8)
	a := Key{TreeName: "A", WorkbookName: "W"}
	b := Key{TreeName: "B", WorkbookName: "W"}
	c.Put(RenderKey{Session: a, Revision: 1, Format: "text"}, "a1")
	c.Put(RenderKey{Session: a, Revision: 2, Format: "json"}, "a2")
	c.Put(RenderKey{Session: b, Revision: 1, Format: "text"}, "b1")

	if got, ok := c.Get(RenderKey{Session: a, Revision: 1, Format: "text"}); !ok || got != "a1" {
		t.Fatalf("get = %q, %v", got, ok)
	}
	if n := c.Forget(a); n != 2 {
		t.Fatalf("forget removed %d", n)
	}
	if c.Len() != 1 {
		t.Fatalf("expected one entry left, got %d", c.Len())
	}
}

func TestLRUCacheEvictsLeastRecent(t *testing.T) {
	c := NewLRUCache[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")
	c.Put("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected 'b' to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected 'a' to still be present")
	}
	c.Clear()
	if c.Len() != 0 || c.Cap() != 2 {
		t.Fatalf("after clear: len=%d cap=%d", c.Len(), c.Cap())
	}
}
