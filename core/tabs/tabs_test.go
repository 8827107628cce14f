package tabs

import (
	"errors"
	"testing"

	"SampleDeck/model"
)

func TestNewManagerStartsWithOneActiveTab(t *testing.T) {
	m := NewManager()
	list := m.List()
	if len(list) != 1 || !list[0].Active {
		t.Fatalf("tabs = %+v", list)
	}
	if list[0].Title != "New Tab" {
		t.Errorf("title = %q", list[0].Title)
	}

	tab, err := m.Snapshot("")
	if err != nil {
		t.Fatal(err)
	}
	if tab.Query.Page != 1 || tab.Query.Sort != DefaultSort || tab.Query.Order != DefaultOrder {
		t.Errorf("query defaults = %+v", tab.Query)
	}
	if tab.Query.RandomSeed == "" || !tab.Loading.BeforeFirstLoad {
		t.Errorf("missing seed or first-load flag: %+v", tab)
	}
}

func TestAddActivatesNewTab(t *testing.T) {
	m := NewManager()
	first := m.ActiveID()
	added := m.Add()

	if m.ActiveID() != added.ID || added.ID == first {
		t.Fatalf("active = %s, added = %s, first = %s", m.ActiveID(), added.ID, first)
	}
}

func TestCloseLastTabFails(t *testing.T) {
	m := NewManager()
	if err := m.Close(m.ActiveID()); !errors.Is(err, ErrLastTab) {
		t.Fatalf("err = %v, want ErrLastTab", err)
	}
}

func TestCloseUnknownTab(t *testing.T) {
	m := NewManager()
	m.Add()
	if err := m.Close("nope"); !errors.Is(err, ErrTabNotFound) {
		t.Fatalf("err = %v, want ErrTabNotFound", err)
	}
}

func TestCloseActiveTabActivatesPrevious(t *testing.T) {
	m := NewManager()
	a := m.ActiveID()
	b := m.Add().ID
	c := m.Add().ID

	if err := m.Switch(b); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(b); err != nil {
		t.Fatal(err)
	}
	if m.ActiveID() != a {
		t.Errorf("active = %s, want %s", m.ActiveID(), a)
	}

	if err := m.Switch(a); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(a); err != nil {
		t.Fatal(err)
	}
	if m.ActiveID() != c {
		t.Errorf("closing the first tab should activate the new first tab, got %s", m.ActiveID())
	}
}

func TestCloseInactiveTabKeepsActive(t *testing.T) {
	m := NewManager()
	a := m.ActiveID()
	b := m.Add().ID

	if err := m.Close(a); err != nil {
		t.Fatal(err)
	}
	if m.ActiveID() != b {
		t.Errorf("active = %s, want %s", m.ActiveID(), b)
	}
}

func TestSwitchUnknownTab(t *testing.T) {
	m := NewManager()
	active := m.ActiveID()
	if err := m.Switch("nope"); !errors.Is(err, ErrTabNotFound) {
		t.Fatalf("err = %v", err)
	}
	if m.ActiveID() != active {
		t.Error("failed switch changed the active tab")
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name  string
		query string
		tags  []string
		want  string
	}{
		{"query wins", "drum", []string{"t1"}, "drum"},
		{"tag count", "", []string{"t1", "t2"}, "2 filters"},
		{"empty", "", nil, "New Tab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tab := NewTab()
			tab.Query.Query = tt.query
			tab.Data.Tags = tt.tags
			if got := tab.Title(); got != tt.want {
				t.Errorf("Title = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTabsAreIndependent(t *testing.T) {
	m := NewManager()
	a := m.ActiveID()
	b := m.Add().ID

	m.WithActive(func(tab *Tab) { tab.Query.Query = "bass" })
	if err := m.With(a, func(tab *Tab) { tab.Query.Query = "drum" }); err != nil {
		t.Fatal(err)
	}

	ta, _ := m.Snapshot(a)
	tb, _ := m.Snapshot(b)
	if ta.Query.Query != "drum" || tb.Query.Query != "bass" {
		t.Errorf("queries = %q / %q", ta.Query.Query, tb.Query.Query)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m := NewManager()
	m.WithActive(func(tab *Tab) { tab.Data.Tags = append(tab.Data.Tags, "t1") })

	snap, _ := m.Snapshot("")
	snap.Data.Tags[0] = "changed"

	again, _ := m.Snapshot("")
	if again.Data.Tags[0] != "t1" {
		t.Error("snapshot shares tag storage with the tab")
	}
}

func TestVisitReportsActive(t *testing.T) {
	m := NewManager()
	a := m.ActiveID()
	b := m.Add().ID

	var aActive, bActive bool
	m.Visit(a, func(_ *Tab, active bool) { aActive = active })
	m.Visit(b, func(_ *Tab, active bool) { bActive = active })
	if aActive || !bActive {
		t.Errorf("active flags = %v / %v", aActive, bActive)
	}

	if err := m.Visit("nope", func(*Tab, bool) {}); !errors.Is(err, ErrTabNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestQueryCloneDoesNotAlias(t *testing.T) {
	key := "C"
	q := QueryState{Query: "piano", Key: &key}

	c := q.Clone()
	*c.Key = "D"
	if *q.Key != "C" {
		t.Errorf("original key changed to %s", *q.Key)
	}
	if c.Query != "piano" || c.MinBPM != nil {
		t.Errorf("clone = %+v", c)
	}
}

func TestFindAsset(t *testing.T) {
	m := NewManager()
	first := m.ActiveID()
	m.WithActive(func(tab *Tab) {
		tab.Data.SampleAssets = []*model.SampleAsset{{UUID: "a"}}
	})
	m.Add()
	m.WithActive(func(tab *Tab) {
		tab.Data.SampleAssets = []*model.SampleAsset{{UUID: "b"}}
	})

	if got := m.FindAsset("a"); got == nil || got.UUID != "a" {
		t.Errorf("FindAsset(a) = %+v", got)
	}
	if got := m.FindAsset("b"); got == nil {
		t.Error("FindAsset(b) = nil")
	}
	if m.FindAsset("c") != nil {
		t.Error("FindAsset(c) should be nil")
	}
	if m.ActiveID() == first {
		t.Error("Add should activate the new tab")
	}
}
