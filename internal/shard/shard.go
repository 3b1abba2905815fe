// Package shard decides which shard a newly onboarded workspace joins.
//
// Load is derived from the assignment ledger on every decision: Scan walks every
// page of the {shards_dir}/ listing and counts assignment objects per shard, and
// Allocate picks the first shard below the capacity limit. Nothing is cached, so
// concurrent onboardings can both pick a shard that only had room for one; the
// limit is a soft bound.
package shard

import (
	"context"
	"errors"
	"sort"

	"github.com/emojirades/onboarding/internal/objectstore"
	"github.com/emojirades/onboarding/pkg/workspace"
)

// ErrOversubscribed is returned by Allocate when every shard is at capacity.
var ErrOversubscribed = errors.New("all shards are oversubscribed")

// Load is the number of workspaces assigned to a shard.
type Load struct {
	Shard int
	Count int
}

// LoadTable lists every known shard in ascending shard order.
type LoadTable []Load

// Scan counts assignment objects per shard. Keys that are not assignment keys
// are ignored. When no shard exists yet the table holds shard 0 with no load,
// so a fresh deployment always has somewhere to put its first workspace.
func Scan(ctx context.Context, lister objectstore.Lister, layout workspace.Layout) (LoadTable, error) {
	counts := make(map[int]int)

	err := objectstore.Walk(ctx, lister, layout.ShardsPrefix(), func(key string) error {
		if shard, ok := layout.ParseShard(key); ok {
			counts[shard]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(counts) == 0 {
		return LoadTable{{Shard: 0, Count: 0}}, nil
	}

	table := make(LoadTable, 0, len(counts))
	for shard, count := range counts {
		table = append(table, Load{Shard: shard, Count: count})
	}
	sort.Slice(table, func(i, j int) bool { return table[i].Shard < table[j].Shard })

	return table, nil
}

// Allocate returns the first shard whose load is strictly below limit.
// Returns ErrOversubscribed when there is none.
func (t LoadTable) Allocate(limit int) (int, error) {
	for _, l := range t {
		if l.Count < limit {
			return l.Shard, nil
		}
	}
	return 0, ErrOversubscribed
}

// Total returns the number of assignments across all shards.
func (t LoadTable) Total() int {
	total := 0
	for _, l := range t {
		total += l.Count
	}
	return total
}
