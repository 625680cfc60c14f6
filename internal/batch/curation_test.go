package batch

import (
	"fmt"
	"sync"
	"testing"
)

func TestCurationStore_SeedDefaults(t *testing.T) {
	t.Parallel()
	s := NewCurationStore()
	s.Seed("verse one")

	e, ok := s.Get("verse one")
	if !ok {
		t.Fatal("Get() missing seeded entry")
	}
	if e.Edited != "verse one" {
		t.Errorf("Edited = %q, want original text", e.Edited)
	}
	if e.Included {
		t.Error("Included = true, want false for a fresh entry")
	}
}

func TestCurationStore_UpsertLastWriteWins(t *testing.T) {
	t.Parallel()
	s := NewCurationStore()
	s.Seed("hook")
	s.Upsert("hook", "hook v2", true)
	s.Upsert("hook", "hook v3", false)
	s.Upsert("hook", "hook v3", true)

	e, _ := s.Get("hook")
	if e.Edited != "hook v3" || !e.Included {
		t.Errorf("entry = %+v, want edited hook v3 included", e)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestCurationStore_IdenticalTextCollapses(t *testing.T) {
	t.Parallel()
	s := NewCurationStore()
	s.Seed("same words")
	s.Seed("other")
	s.Seed("same words")

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	s.Upsert("same words", "first edit", true)
	s.Upsert("same words", "second edit", true)

	inc := s.Included()
	if len(inc) != 1 || inc[0].Edited != "second edit" {
		t.Errorf("Included() = %+v, want single entry with second edit", inc)
	}
}

func TestCurationStore_IncludedInsertionOrder(t *testing.T) {
	t.Parallel()
	s := NewCurationStore()
	for _, text := range []string{"c", "a", "b"} {
		s.Seed(text)
	}
	s.Upsert("b", "B", true)
	s.Upsert("c", "C", true)
	// Re-seeding keeps the original position.
	s.Seed("c")
	s.Upsert("c", "C2", true)

	inc := s.Included()
	if len(inc) != 2 {
		t.Fatalf("len(Included()) = %d, want 2", len(inc))
	}
	if inc[0].Edited != "C2" || inc[1].Edited != "B" {
		t.Errorf("Included() order = %q, %q; want C2, B", inc[0].Edited, inc[1].Edited)
	}
}

func TestCurationStore_UpsertUnknownInserts(t *testing.T) {
	t.Parallel()
	s := NewCurationStore()
	s.Upsert("never seeded", "x", true)
	if _, ok := s.Get("never seeded"); !ok {
		t.Error("Upsert() did not insert unknown key")
	}
}

func TestCurationStore_Reset(t *testing.T) {
	t.Parallel()
	s := NewCurationStore()
	s.Seed("a")
	s.Reset()
	if s.Len() != 0 || len(s.Entries()) != 0 {
		t.Errorf("after Reset Len() = %d, want 0", s.Len())
	}
}

func TestCurationStore_ConcurrentUpserts(t *testing.T) {
	t.Parallel()
	s := NewCurationStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			s.Upsert(key, key, i%2 == 0)
			_ = s.Included()
		}(i)
	}
	wg.Wait()
	if s.Len() != 5 {
		t.Errorf("Len() = %d, want 5", s.Len())
	}
}

func TestCurationStore_UpdateUnknownKey(t *testing.T) {
	t.Parallel()
	s := NewCurationStore()
	s.Seed("kept")

	if _, ok := s.Update("never generated", func(e *Entry) { e.Included = true }); ok {
		t.Error("Update() of unknown key reported ok")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
	if got := s.Included(); len(got) != 0 {
		t.Errorf("Included() = %+v, want none", got)
	}
}

func TestCurationStore_ConcurrentPartialUpdates(t *testing.T) {
	t.Parallel()
	for i := 0; i < 100; i++ {
		s := NewCurationStore()
		s.Seed("line")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Update("line", func(e *Entry) { e.Edited = "line, edited" })
		}()
		go func() {
			defer wg.Done()
			s.Update("line", func(e *Entry) { e.Included = true })
		}()
		wg.Wait()

		got, _ := s.Get("line")
		if got.Edited != "line, edited" || !got.Included {
			t.Fatalf("iteration %d: entry = %+v, want both updates applied", i, got)
		}
	}
}
