package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"SampleDeck/core/tabs"
	"SampleDeck/logger"
	"SampleDeck/model"
)

// DefaultPerPage is the page size requested from the catalog.
const DefaultPerPage = 50

// GenreCategories are the tag categories merged into the genre catalog, in priority order.
var GenreCategories = []string{"genres", "styles"}

// ErrUnknownTag is returned by ToggleTag when no known tag matches the label.
var ErrUnknownTag = errors.New("search: unknown tag")

// Outcome classifies how a search response was applied.
type Outcome int

const (
	// OutcomeStale means the query or the active tab changed while the
	// request was in flight; the response was dropped.
	OutcomeStale Outcome = iota
	// OutcomeAppended means the response continued the committed query.
	OutcomeAppended
	// OutcomeReplaced means the response started a new result set.
	OutcomeReplaced
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAppended:
		return "appended"
	case OutcomeReplaced:
		return "replaced"
	default:
		return "stale"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Searcher is the catalog backend.
type Searcher interface {
	SamplesSearch(ctx context.Context, vars map[string]any) (*model.AssetPage, error)
	CategoryList(ctx context.Context, tagCategory string) (*model.TagCategoryList, error)
}

// Catalog records assets shown to the user so they can be found by uuid later.
type Catalog interface {
	SaveAssets(ctx context.Context, assets []*model.SampleAsset) error
}

// Hooks are called with the id of the affected tab. They run under the tab
// lock and must not call back into the tabs.Manager.
type Hooks struct {
	// BeforeDataUpdate runs when a request for a new result set is dispatched.
	BeforeDataUpdate func(tabID string)
	// BeforeTagsUpdate runs before a fresh tag summary replaces the old one.
	BeforeTagsUpdate func(tabID string)
}

// Store runs searches for the tabs of a tabs.Manager and reconciles the
// responses with whatever the user has done in the meantime.
type Store struct {
	tabs    *tabs.Manager
	client  Searcher
	perPage int
	catalog Catalog
	hooks   Hooks

	genresMu sync.RWMutex
	genres   []model.Genre

	// opening holds, per tab, the new search that has been dispatched but
	// not yet answered. openingMu may be taken inside the tabs.Manager lock,
	// never the other way round.
	openingMu sync.Mutex
	opening   map[string]*openSearch
}

// openSearch is a dispatched new search. done is closed once its response
// has been applied or has failed.
type openSearch struct {
	fingerprint string
	done        chan struct{}
}

// Option configures a Store.
type Option func(*Store)

func WithPerPage(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.perPage = n
		}
	}
}

func WithCatalog(c Catalog) Option {
	return func(s *Store) { s.catalog = c }
}

func WithHooks(h Hooks) Option {
	return func(s *Store) { s.hooks = h }
}

func NewStore(manager *tabs.Manager, client Searcher, opts ...Option) *Store {
	s := &Store{
		tabs:    manager,
		client:  client,
		perPage: DefaultPerPage,
		opening: make(map[string]*openSearch),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tabs returns the manager the store works on.
func (s *Store) Tabs() *tabs.Manager { return s.tabs }

// Fetch searches with the active tab's parameters. When the response
// arrives it is dropped if the active tab or its identity changed, appended
// if the identity is the committed one, and otherwise replaces the results.
// A replacing page is deduplicated within itself only; the items it replaces
// are discarded.
//
// A new search requests page 1. A fetch for a query whose new search is
// still in flight waits for that search to commit and then requests the
// page it was issued for, so pagination started early is not lost.
func (s *Store) Fetch(ctx context.Context) (Outcome, error) {
	return s.fetch(ctx, 0)
}

// fetch runs one search. page overrides the tab's page for continuations;
// zero means the tab's current page.
func (s *Store) fetch(ctx context.Context, page int) (Outcome, error) {
	var (
		originID    string
		fingerprint string
		vars        map[string]any
		open        *openSearch
		wait        <-chan struct{}
	)
	s.tabs.WithActive(func(tab *tabs.Tab) {
		originID = tab.ID
		fingerprint = IdentityOf(tab).Fingerprint()
		if page == 0 {
			page = tab.Query.Page
		}
		isNew := fingerprint != tab.Committed
		if isNew {
			if o := s.openingFor(tab.ID); o != nil && o.fingerprint == fingerprint {
				if page > 1 {
					wait = o.done
					return
				}
			} else {
				open = s.beginOpening(tab.ID, fingerprint)
			}
			tab.Query.Page = 1
			page = 1
			if s.hooks.BeforeDataUpdate != nil {
				s.hooks.BeforeDataUpdate(tab.ID)
			}
		}
		vars = s.variables(tab, isNew, page)
		tab.Pending++
		tab.Loading.Assets = true
	})

	if wait != nil {
		return s.continueAfter(ctx, wait, originID, fingerprint, page)
	}
	defer s.endOpening(originID, open)

	result, err := s.client.SamplesSearch(ctx, vars)
	if err != nil {
		if verr := s.tabs.Visit(originID, func(tab *tabs.Tab, _ bool) {
			s.settleLocked(tab)
			tab.Loading.FetchError = err
		}); verr != nil {
			logger.Debug("Origin tab closed before search failed", logger.String("tab", originID))
		}
		logger.Error("Failed to fetch assets",
			logger.String("tab", originID),
			logger.ErrorField(err))
		return OutcomeStale, fmt.Errorf("search: %w", err)
	}

	outcome := OutcomeStale
	var committed []*model.SampleAsset
	if verr := s.tabs.Visit(originID, func(tab *tabs.Tab, active bool) {
		s.settleLocked(tab)
		if !active || IdentityOf(tab).Fingerprint() != fingerprint {
			return
		}
		outcome, committed = s.applyLocked(tab, fingerprint, result)
	}); verr != nil {
		logger.Debug("Origin tab closed before search returned", logger.String("tab", originID))
	}

	switch outcome {
	case OutcomeStale:
		logger.Info("Ignored stale assets", logger.String("tab", originID))
	case OutcomeAppended:
		logger.Info("Loaded more assets",
			logger.String("tab", originID),
			logger.Int("page", page),
			logger.Int("count", len(committed)))
	case OutcomeReplaced:
		logger.Info("Loaded new assets",
			logger.String("tab", originID),
			logger.Int("count", len(committed)),
			logger.Int("total", result.ResponseMetadata.Records))
	}

	s.record(ctx, committed)
	return outcome, nil
}

// continueAfter waits for the new search that page continues, then fetches
// page if the same tab and query are still active.
func (s *Store) continueAfter(ctx context.Context, done <-chan struct{}, originID, fingerprint string, page int) (Outcome, error) {
	select {
	case <-done:
	case <-ctx.Done():
		return OutcomeStale, fmt.Errorf("search: %w", ctx.Err())
	}

	current := false
	s.tabs.WithActive(func(tab *tabs.Tab) {
		current = tab.ID == originID && IdentityOf(tab).Fingerprint() == fingerprint
	})
	if !current {
		logger.Debug("Dropped page of a superseded search",
			logger.String("tab", originID),
			logger.Int("page", page))
		return OutcomeStale, nil
	}
	return s.fetch(ctx, page)
}

func (s *Store) openingFor(tabID string) *openSearch {
	s.openingMu.Lock()
	defer s.openingMu.Unlock()
	return s.opening[tabID]
}

func (s *Store) beginOpening(tabID, fingerprint string) *openSearch {
	o := &openSearch{fingerprint: fingerprint, done: make(chan struct{})}
	s.openingMu.Lock()
	s.opening[tabID] = o
	s.openingMu.Unlock()
	return o
}

// endOpening releases the fetches waiting on o. It is a no-op for nil.
func (s *Store) endOpening(tabID string, o *openSearch) {
	if o == nil {
		return
	}
	s.openingMu.Lock()
	if s.opening[tabID] == o {
		delete(s.opening, tabID)
	}
	s.openingMu.Unlock()
	close(o.done)
}

// LoadMore requests the next page of the active tab.
func (s *Store) LoadMore(ctx context.Context) (Outcome, error) {
	s.tabs.WithActive(func(tab *tabs.Tab) {
		tab.Query.Page++
	})
	return s.Fetch(ctx)
}

// UpdateQuery edits the active tab's query parameters. It does not fetch.
func (s *Store) UpdateQuery(fn func(q *tabs.QueryState)) {
	s.tabs.WithActive(func(tab *tabs.Tab) {
		fn(&tab.Query)
	})
}

// ToggleTag selects the tag matching label, or deselects every tag matching
// it when one is already selected, then fetches.
func (s *Store) ToggleTag(ctx context.Context, label string) (Outcome, error) {
	target := NormalizeLabel(label)
	genres := s.Genres()

	found := false
	s.tabs.WithActive(func(tab *tabs.Tab) {
		matches := make(map[string]struct{})
		best := ""
		for _, g := range genres {
			if NormalizeLabel(g.Label) == target {
				matches[g.UUID] = struct{}{}
				if best == "" {
					best = g.UUID
				}
			}
		}
		for _, entry := range tab.Data.TagSummary {
			if NormalizeLabel(entry.Tag.Label) == target {
				matches[entry.Tag.UUID] = struct{}{}
				if best == "" {
					best = entry.Tag.UUID
				}
			}
		}
		if len(matches) == 0 {
			return
		}
		found = true

		selected := slices.ContainsFunc(tab.Data.Tags, func(id string) bool {
			_, ok := matches[id]
			return ok
		})
		if selected {
			tab.Data.Tags = slices.DeleteFunc(slices.Clone(tab.Data.Tags), func(id string) bool {
				_, ok := matches[id]
				return ok
			})
		} else {
			tab.Data.Tags = append(slices.Clone(tab.Data.Tags), best)
		}
	})

	if !found {
		return OutcomeStale, fmt.Errorf("%w: %q", ErrUnknownTag, label)
	}
	return s.Fetch(ctx)
}

// SelectedLabels returns the normalised labels of the active tab's selected tags, sorted.
func (s *Store) SelectedLabels() []string {
	genres := s.Genres()

	labels := make(map[string]struct{})
	s.tabs.WithActive(func(tab *tabs.Tab) {
		selected := make(map[string]struct{}, len(tab.Data.Tags))
		for _, id := range tab.Data.Tags {
			selected[id] = struct{}{}
		}
		for _, g := range genres {
			if _, ok := selected[g.UUID]; ok {
				labels[NormalizeLabel(g.Label)] = struct{}{}
			}
		}
		for _, entry := range tab.Data.TagSummary {
			if _, ok := selected[entry.Tag.UUID]; ok {
				labels[NormalizeLabel(entry.Tag.Label)] = struct{}{}
			}
		}
	})

	out := make([]string, 0, len(labels))
	for l := range labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// IsTagSelected reports whether a tag matching label is selected in the active tab.
func (s *Store) IsTagSelected(label string) bool {
	return slices.Contains(s.SelectedLabels(), NormalizeLabel(label))
}

// FetchAllGenres loads the process-wide genre catalog from every category in
// GenreCategories. Earlier categories win when labels collide.
func (s *Store) FetchAllGenres(ctx context.Context) ([]model.Genre, error) {
	results := make([]*model.TagCategoryList, len(GenreCategories))
	errs := make([]error, len(GenreCategories))

	var wg sync.WaitGroup
	for i, category := range GenreCategories {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = s.client.CategoryList(ctx, category)
		}()
	}
	wg.Wait()

	var genres []model.Genre
	seen := make(map[string]struct{})
	add := func(tags []model.Tag) {
		for _, tag := range tags {
			key := strings.ToLower(tag.Label)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			genres = append(genres, model.Genre{UUID: tag.UUID, Label: tag.Label})
		}
	}

	failed := 0
	for i, list := range results {
		if errs[i] != nil {
			failed++
			logger.Warn("Failed to fetch tag category",
				logger.String("category", GenreCategories[i]),
				logger.ErrorField(errs[i]))
			continue
		}
		for _, cat := range list.Categories {
			add(cat.Tags)
			for _, sub := range cat.Subcategories {
				add(sub.Tags)
			}
		}
		logger.Info("Loaded tag category",
			logger.String("category", GenreCategories[i]),
			logger.Int("genres", len(genres)))
	}
	if failed == len(GenreCategories) {
		return nil, fmt.Errorf("search: fetch genres: %w", errors.Join(errs...))
	}

	s.genresMu.Lock()
	s.genres = genres
	s.genresMu.Unlock()
	return slices.Clone(genres), nil
}

// Genres returns the loaded genre catalog.
func (s *Store) Genres() []model.Genre {
	s.genresMu.RLock()
	defer s.genresMu.RUnlock()
	return slices.Clone(s.genres)
}

// variables builds the SamplesSearch variables for tab. Only new searches
// ask for the tag summary.
func (s *Store) variables(tab *tabs.Tab, isNew bool, page int) map[string]any {
	q := tab.Query
	return map[string]any{
		"query":               q.Query,
		"sort":                q.Sort,
		"order":               q.Order,
		"random_seed":         q.RandomSeed,
		"tags":                slices.Clone(tab.Data.Tags),
		"asset_category_slug": optional(q.AssetCategorySlug),
		"bpm":                 optional(q.BPM),
		"min_bpm":             optional(q.MinBPM),
		"max_bpm":             optional(q.MaxBPM),
		"key":                 optional(q.Key),
		"chord_type":          optional(q.ChordType),
		"parent_asset_uuid":   optional(q.ParentAssetUUID),
		"page":                page,
		"limit":               s.perPage,
		"include_tag_summary": isNew,
	}
}

func (s *Store) settleLocked(tab *tabs.Tab) {
	tab.Pending = max(0, tab.Pending-1)
	tab.Loading.Assets = tab.Pending > 0
}

// applyLocked commits a fresh response into tab and returns the assets it added.
func (s *Store) applyLocked(tab *tabs.Tab, fingerprint string, page *model.AssetPage) (Outcome, []*model.SampleAsset) {
	var (
		outcome Outcome
		added   []*model.SampleAsset
	)
	if fingerprint == tab.Committed {
		seen := make(map[string]struct{}, len(tab.Data.SampleAssets))
		for _, a := range tab.Data.SampleAssets {
			seen[a.UUID] = struct{}{}
		}
		added = uniqueAssets(page.Items, seen)
		tab.Data.SampleAssets = append(slices.Clone(tab.Data.SampleAssets), added...)
		outcome = OutcomeAppended
	} else {
		added = uniqueAssets(page.Items, make(map[string]struct{}))
		tab.Data.SampleAssets = added
		tab.Committed = fingerprint
		outcome = OutcomeReplaced
	}

	tab.Data.TotalRecords = page.ResponseMetadata.Records
	if page.TagSummary != nil {
		if s.hooks.BeforeTagsUpdate != nil {
			s.hooks.BeforeTagsUpdate(tab.ID)
		}
		tab.Data.TagSummary = page.TagSummary
	}
	tab.Loading.BeforeFirstLoad = false
	tab.Loading.FetchError = nil
	return outcome, added
}

// uniqueAssets returns pointers to the items whose uuid is not in seen,
// adding them to seen as it goes.
func uniqueAssets(items []model.SampleAsset, seen map[string]struct{}) []*model.SampleAsset {
	out := make([]*model.SampleAsset, 0, len(items))
	for i := range items {
		if _, ok := seen[items[i].UUID]; ok {
			continue
		}
		seen[items[i].UUID] = struct{}{}
		out = append(out, &items[i])
	}
	return out
}

func (s *Store) record(ctx context.Context, assets []*model.SampleAsset) {
	if s.catalog == nil || len(assets) == 0 {
		return
	}
	if err := s.catalog.SaveAssets(ctx, assets); err != nil {
		logger.Warn("Failed to record assets in catalog",
			logger.Int("count", len(assets)),
			logger.ErrorField(err))
	}
}

func optional[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
