package tabs

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"sync"

	"SampleDeck/model"

	"github.com/google/uuid"
)

const (
	DefaultSort  = "random"
	DefaultOrder = "DESC"
)

var (
	ErrTabNotFound = errors.New("tabs: tab not found")
	ErrLastTab     = errors.New("tabs: cannot close the last tab")
)

// QueryState holds the search parameters of a tab.
type QueryState struct {
	Query             string  `json:"query"`
	Sort              string  `json:"sort"`
	RandomSeed        string  `json:"random_seed"`
	Order             string  `json:"order"`
	Page              int     `json:"page"`
	AssetCategorySlug *string `json:"asset_category_slug,omitempty"`
	BPM               *string `json:"bpm,omitempty"`
	MinBPM            *int    `json:"min_bpm,omitempty"`
	MaxBPM            *int    `json:"max_bpm,omitempty"`
	Key               *string `json:"key,omitempty"`
	ChordType         *string `json:"chord_type,omitempty"`
	ParentAssetUUID   *string `json:"parent_asset_uuid,omitempty"`
	PackName          *string `json:"pack_name,omitempty"`
}

// Clone returns a copy whose optional filters do not alias q's.
func (q QueryState) Clone() QueryState {
	c := q
	c.AssetCategorySlug = clonePtr(q.AssetCategorySlug)
	c.BPM = clonePtr(q.BPM)
	c.MinBPM = clonePtr(q.MinBPM)
	c.MaxBPM = clonePtr(q.MaxBPM)
	c.Key = clonePtr(q.Key)
	c.ChordType = clonePtr(q.ChordType)
	c.ParentAssetUUID = clonePtr(q.ParentAssetUUID)
	c.PackName = clonePtr(q.PackName)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// DataState holds the results shown in a tab.
type DataState struct {
	SampleAssets []*model.SampleAsset    `json:"sample_assets"`
	Tags         []string                `json:"tags"`
	TagSummary   []model.TagSummaryEntry `json:"tag_summary"`
	TotalRecords int                     `json:"total_records"`
}

// LoadingState tracks request progress for a tab.
type LoadingState struct {
	Assets          bool  `json:"assets"`
	BeforeFirstLoad bool  `json:"before_first_load"`
	FetchError      error `json:"-"`
}

// Tab is one independent search workspace.
type Tab struct {
	ID      string       `json:"id"`
	Query   QueryState   `json:"query"`
	Data    DataState    `json:"data"`
	Loading LoadingState `json:"loading"`

	// Committed is the fingerprint of the query whose results are in Data.
	Committed string `json:"-"`
	// Pending counts requests dispatched from this tab that have not returned.
	Pending int `json:"-"`
}

// RandomSeed returns a fresh seed for random sort order.
func RandomSeed() string {
	return strconv.FormatUint(rand.Uint64N(1_000_000_000), 10)
}

// NewTab creates a tab with default query parameters.
func NewTab() *Tab {
	return &Tab{
		ID: uuid.NewString(),
		Query: QueryState{
			Sort:       DefaultSort,
			RandomSeed: RandomSeed(),
			Order:      DefaultOrder,
			Page:       1,
		},
		Data: DataState{
			SampleAssets: []*model.SampleAsset{},
			Tags:         []string{},
			TagSummary:   []model.TagSummaryEntry{},
		},
		Loading: LoadingState{BeforeFirstLoad: true},
	}
}

// Title is the query text, else the number of tag filters, else "New Tab".
func (t *Tab) Title() string {
	if t.Query.Query != "" {
		return t.Query.Query
	}
	if n := len(t.Data.Tags); n > 0 {
		return fmt.Sprintf("%d filters", n)
	}
	return "New Tab"
}

// Clone returns a copy that shares no slices with t. Assets are shared
// because they are immutable.
func (t *Tab) Clone() Tab {
	c := *t
	c.Query = t.Query.Clone()
	c.Data.SampleAssets = slices.Clone(t.Data.SampleAssets)
	c.Data.Tags = slices.Clone(t.Data.Tags)
	c.Data.TagSummary = slices.Clone(t.Data.TagSummary)
	return c
}

// Summary describes a tab for listings.
type Summary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Active  bool   `json:"active"`
	Loading bool   `json:"loading"`
	Results int    `json:"results"`
}

// Manager owns the tabs and which one is active. Tab state is only reached
// through With and WithActive, which run under the manager lock.
type Manager struct {
	mu     sync.Mutex
	tabs   []*Tab
	active string
}

// NewManager creates a manager holding one fresh tab.
func NewManager() *Manager {
	m := &Manager{}
	m.Add()
	return m
}

// Add creates a tab and makes it active.
func (m *Manager) Add() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	tab := NewTab()
	m.tabs = append(m.tabs, tab)
	m.active = tab.ID
	return m.summaryLocked(tab)
}

// Close removes a tab. Closing the active tab activates the one before it,
// or the new first tab.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.tabs) <= 1 {
		return ErrLastTab
	}
	idx := m.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}

	m.tabs = slices.Delete(m.tabs, idx, idx+1)
	if id == m.active {
		m.active = m.tabs[max(0, idx-1)].ID
	}
	return nil
}

// Switch activates a tab.
func (m *Manager) Switch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexLocked(id) < 0 {
		return fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}
	m.active = id
	return nil
}

// ActiveID returns the id of the active tab.
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked().ID
}

// List summarises all tabs in display order.
func (m *Manager) List() []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Summary, 0, len(m.tabs))
	for _, tab := range m.tabs {
		out = append(out, m.summaryLocked(tab))
	}
	return out
}

// WithActive runs fn on the active tab under the manager lock. fn must not
// call back into the manager.
func (m *Manager) WithActive(fn func(tab *Tab)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.activeLocked())
}

// With runs fn on tab id under the manager lock.
func (m *Manager) With(id string, fn func(tab *Tab)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}
	fn(m.tabs[idx])
	return nil
}

// Visit runs fn on tab id under the manager lock and tells fn whether that
// tab is the active one.
func (m *Manager) Visit(id string, fn func(tab *Tab, active bool)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}
	tab := m.tabs[idx]
	fn(tab, tab == m.activeLocked())
	return nil
}

// Snapshot returns a copy of tab id, or of the active tab when id is empty.
func (m *Manager) Snapshot(id string) (Tab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tab := m.activeLocked()
	if id != "" {
		idx := m.indexLocked(id)
		if idx < 0 {
			return Tab{}, fmt.Errorf("%w: %s", ErrTabNotFound, id)
		}
		tab = m.tabs[idx]
	}
	return tab.Clone(), nil
}

// FindAsset returns the asset with uuid from any tab's results, active tab first.
func (m *Manager) FindAsset(uuid string) *model.SampleAsset {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := append([]*Tab{m.activeLocked()}, m.tabs...)
	for _, tab := range order {
		for _, asset := range tab.Data.SampleAssets {
			if asset.UUID == uuid {
				return asset
			}
		}
	}
	return nil
}

func (m *Manager) activeLocked() *Tab {
	if idx := m.indexLocked(m.active); idx >= 0 {
		return m.tabs[idx]
	}
	return m.tabs[0]
}

func (m *Manager) indexLocked(id string) int {
	return slices.IndexFunc(m.tabs, func(t *Tab) bool { return t.ID == id })
}

func (m *Manager) summaryLocked(tab *Tab) Summary {
	return Summary{
		ID:      tab.ID,
		Title:   tab.Title(),
		Active:  tab.ID == m.active,
		Loading: tab.Loading.Assets,
		Results: len(tab.Data.SampleAssets),
	}
}
