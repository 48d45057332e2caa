package history

import (
	"testing"

	"github.com/hazyhaar/softnav/location"
)

func TestPushTruncatesForwardEntries(t *testing.T) {
	m := NewMemory(nil)
	m.Push(location.MustParse("https://example.com/a"), "rst_a")
	m.Push(location.MustParse("https://example.com/b"), "rst_b")
	m.Push(location.MustParse("https://example.com/c"), "rst_c")

	m.Start()
	if err := m.TravelBack(); err != nil {
		t.Fatal(err)
	}
	m.Push(location.MustParse("https://example.com/d"), "rst_d")

	if m.Len() != 3 {
		t.Fatalf("len: got %d, want 3", m.Len())
	}
	top, ok := m.Top()
	if !ok || top.RestorationID != "rst_d" {
		t.Fatalf("top: got %+v", top)
	}
	if err := m.TravelForward(); err == nil {
		t.Fatal("forward entries should be gone after push")
	}
}

func TestReplaceSwapsCurrentEntry(t *testing.T) {
	m := NewMemory(nil)
	m.Push(location.MustParse("https://example.com/a"), "rst_a")
	m.Replace(location.MustParse("https://example.com/a2"), "rst_a2")

	if m.Len() != 1 {
		t.Fatalf("len: got %d, want 1", m.Len())
	}
	top, _ := m.Top()
	if top.RestorationID != "rst_a2" {
		t.Fatalf("top: got %+v", top)
	}
}

func TestReplaceOnEmptyStackBehavesLikePush(t *testing.T) {
	m := NewMemory(nil)
	m.Replace(location.MustParse("https://example.com/"), "rst_root")
	if m.Len() != 1 {
		t.Fatalf("len: got %d, want 1", m.Len())
	}
}

func TestTravelDeliversPop(t *testing.T) {
	m := NewMemory(nil)
	m.Push(location.MustParse("https://example.com/a"), "rst_a")
	m.Push(location.MustParse("https://example.com/b"), "rst_b")

	var gotLoc location.Location
	var gotID string
	m.SetPopHandler(func(loc location.Location, id string) {
		gotLoc, gotID = loc, id
	})
	m.Start()

	if err := m.TravelBack(); err != nil {
		t.Fatal(err)
	}
	if gotID != "rst_a" || gotLoc.String() != "https://example.com/a" {
		t.Fatalf("pop: got (%s, %s)", gotLoc, gotID)
	}

	if err := m.TravelForward(); err != nil {
		t.Fatal(err)
	}
	if gotID != "rst_b" {
		t.Fatalf("pop after forward: got %s", gotID)
	}
}

func TestStoppedStackDeliversNoPops(t *testing.T) {
	m := NewMemory(nil)
	m.Push(location.MustParse("https://example.com/a"), "rst_a")
	m.Push(location.MustParse("https://example.com/b"), "rst_b")

	popped := false
	m.SetPopHandler(func(location.Location, string) { popped = true })

	if err := m.TravelBack(); err != nil {
		t.Fatal(err)
	}
	if popped {
		t.Fatal("stopped stack must not deliver pops")
	}
	// The cursor still moved, like a real history stack with no listener.
	top, _ := m.Top()
	if top.RestorationID != "rst_a" {
		t.Fatalf("top: got %+v", top)
	}
}

func TestTravelPastEnds(t *testing.T) {
	m := NewMemory(nil)
	if err := m.TravelBack(); err == nil {
		t.Fatal("empty stack should not travel")
	}
	m.Push(location.MustParse("https://example.com/a"), "rst_a")
	if err := m.TravelBack(); err == nil {
		t.Fatal("single entry cannot go back")
	}
	if err := m.TravelForward(); err == nil {
		t.Fatal("single entry cannot go forward")
	}
}
