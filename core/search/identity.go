package search

import (
	"fmt"
	"strconv"

	"SampleDeck/core/tabs"

	"github.com/mitchellh/hashstructure/v2"
)

// Identity is the part of a tab's query that determines which result set is
// live. Page is deliberately absent: paging through results keeps the identity.
type Identity struct {
	Query             string
	Sort              string
	Order             string
	RandomSeed        string
	Tags              []string `hash:"set"`
	AssetCategorySlug string
	BPM               string
	MinBPM            string
	MaxBPM            string
	Key               string
	ChordType         string
	ParentAssetUUID   string
}

// IdentityOf captures the identity of tab.
func IdentityOf(tab *tabs.Tab) Identity {
	q := tab.Query
	return Identity{
		Query:             q.Query,
		Sort:              q.Sort,
		Order:             q.Order,
		RandomSeed:        q.RandomSeed,
		Tags:              append([]string(nil), tab.Data.Tags...),
		AssetCategorySlug: deref(q.AssetCategorySlug),
		BPM:               deref(q.BPM),
		MinBPM:            derefInt(q.MinBPM),
		MaxBPM:            derefInt(q.MaxBPM),
		Key:               deref(q.Key),
		ChordType:         deref(q.ChordType),
		ParentAssetUUID:   deref(q.ParentAssetUUID),
	}
}

// Fingerprint is a structural hash of the identity. Tag order does not matter.
func (id Identity) Fingerprint() string {
	h, err := hashstructure.Hash(id, hashstructure.FormatV2, nil)
	if err != nil {
		// Identity only holds strings, which always hash.
		panic(fmt.Sprintf("search: hash identity: %v", err))
	}
	return strconv.FormatUint(h, 16)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
