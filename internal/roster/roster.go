// Package roster inspects which workspaces are assigned to which shard.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/emojirades/onboarding/internal/objectstore"
	"github.com/emojirades/onboarding/pkg/workspace"
)

// Entry is one shard assignment found in the object store.
type Entry struct {
	Shard       int    `json:"shard"`
	WorkspaceID string `json:"workspace_id"`
	Key         string `json:"key"`
}

// Filter narrows a listing. All criteria are ANDed together.
type Filter struct {
	Shard  *int   // nil = every shard
	Prefix string // Workspace id prefix, empty = no filter
}

func (f *Filter) matches(e Entry) bool {
	if f.Shard != nil && e.Shard != *f.Shard {
		return false
	}
	return strings.HasPrefix(e.WorkspaceID, f.Prefix)
}

// List returns every assignment matching filter, ordered by shard then workspace id.
func List(ctx context.Context, lister objectstore.Lister, layout workspace.Layout, filter Filter) ([]Entry, error) {
	prefix := layout.ShardsPrefix()
	if filter.Shard != nil {
		prefix = layout.ShardPrefix(*filter.Shard)
	}

	var entries []Entry
	err := objectstore.Walk(ctx, lister, prefix, func(key string) error {
		shard, ok := layout.ParseShard(key)
		if !ok {
			return nil
		}
		e := Entry{
			Shard:       shard,
			WorkspaceID: strings.TrimSuffix(path.Base(key), ".json"),
			Key:         key,
		}
		if filter.matches(e) {
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Shard != entries[j].Shard {
			return entries[i].Shard < entries[j].Shard
		}
		return entries[i].WorkspaceID < entries[j].WorkspaceID
	})

	return entries, nil
}

// Resolve finds the assignment of a workspace from its id or an id prefix.
// An exact id match wins over prefix matches. Returns *NotFoundError when
// nothing matches and *AmbiguousError when a prefix matches several workspaces.
func Resolve(ctx context.Context, lister objectstore.Lister, layout workspace.Layout, id string) (*Entry, error) {
	if id == "" {
		return nil, fmt.Errorf("workspace id cannot be empty")
	}

	matches, err := List(ctx, lister, layout, Filter{Prefix: id})
	if err != nil {
		return nil, err
	}

	for i := range matches {
		if matches[i].WorkspaceID == id {
			return &matches[i], nil
		}
	}

	switch len(matches) {
	case 0:
		return nil, &NotFoundError{ID: id}
	case 1:
		return &matches[0], nil
	default:
		return nil, &AmbiguousError{ID: id, Matches: matches}
	}
}

// Assignment reads the assignment document behind an entry.
func Assignment(ctx context.Context, store objectstore.Store, e *Entry) (*workspace.ShardAssignment, error) {
	body, err := store.Get(ctx, e.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to read assignment %s: %w", e.Key, err)
	}

	var a workspace.ShardAssignment
	if err := json.Unmarshal(body, &a); err != nil {
		return nil, fmt.Errorf("invalid assignment %s: %w", e.Key, err)
	}
	return &a, nil
}

// NotFoundError indicates no workspace matched the id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no workspaces found matching '%s'", e.ID)
}

// AmbiguousError indicates multiple workspaces matched the id prefix.
type AmbiguousError struct {
	ID      string
	Matches []Entry
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous workspace id '%s' matches %d workspaces", e.ID, len(e.Matches))
}

// FormatAmbiguousError lists the matching workspaces (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Workspace id '%s' matches %d workspaces:\n", err.ID, len(err.Matches))

	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}
	for _, m := range err.Matches[:displayCount] {
		fmt.Fprintf(&b, "  %s (shard %d)\n", m.WorkspaceID, m.Shard)
	}
	if len(err.Matches) > 10 {
		fmt.Fprintf(&b, "  ...and %d more\n", len(err.Matches)-10)
	}

	b.WriteString("\nUse a longer prefix to uniquely identify the workspace.")
	return b.String()
}
