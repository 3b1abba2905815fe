package roster

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/emojirades/onboarding/internal/shard"
	"github.com/emojirades/onboarding/pkg/workspace"
)

// OutputFormat specifies how listings are written.
type OutputFormat string

const (
	// OutputFormatDefault uses a human-readable table
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL writes one JSON object per line
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSONL:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format '%s' (valid: default, jsonl)", s)
	}
}

// LoadRow is one line of the shard load report.
type LoadRow struct {
	Shard      int   `json:"shard"`
	Workspaces int   `json:"workspaces"`
	Limit      int   `json:"limit"`
	Free       int   `json:"free"`
	Queued     int64 `json:"queued"` // Notifications not yet consumed by the shard worker
}

// LoadRows joins the load table with the queue depth of each shard.
func LoadRows(table shard.LoadTable, limit int, queued map[int]int64) []LoadRow {
	rows := make([]LoadRow, 0, len(table))
	for _, l := range table {
		free := limit - l.Count
		if free < 0 {
			free = 0
		}
		rows = append(rows, LoadRow{
			Shard:      l.Shard,
			Workspaces: l.Count,
			Limit:      limit,
			Free:       free,
			Queued:     queued[l.Shard],
		})
	}
	return rows
}

// FormatLoadTable writes the shard load report as a table.
func FormatLoadTable(w io.Writer, rows []LoadRow) {
	fmt.Fprintf(w, "%-6s %-11s %-6s %-6s %s\n", "SHARD", "WORKSPACES", "LIMIT", "FREE", "QUEUED")
	fmt.Fprintf(w, "%-6s %-11s %-6s %-6s %s\n", "------", "-----------", "------", "------", "------")

	total, free := 0, 0
	for _, r := range rows {
		fmt.Fprintf(w, "%-6d %-11d %-6d %-6d %d\n", r.Shard, r.Workspaces, r.Limit, r.Free, r.Queued)
		total += r.Workspaces
		free += r.Free
	}

	fmt.Fprintf(w, "\n%d workspaces across %d shards, %d free\n", total, len(rows), free)
}

// FormatTable writes assignments as a table. Returns the number of entries written.
func FormatTable(w io.Writer, entries []Entry) int {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No workspaces found")
		return 0
	}

	fmt.Fprintf(w, "%-6s %-14s %s\n", "SHARD", "WORKSPACE", "KEY")
	fmt.Fprintf(w, "%-6s %-14s %s\n", "------", "--------------", "----------------------------------------")
	for _, e := range entries {
		fmt.Fprintf(w, "%-6d %-14s %s\n", e.Shard, e.WorkspaceID, e.Key)
	}

	noun := "workspace"
	if len(entries) != 1 {
		noun = "workspaces"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(entries), noun)

	return len(entries)
}

// FormatJSONL writes each value as a single JSON line.
func FormatJSONL[T any](w io.Writer, values []T) error {
	enc := json.NewEncoder(w)
	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatAssignment writes one assignment with its shard as pretty-printed JSON.
func FormatAssignment(w io.Writer, e *Entry, a *workspace.ShardAssignment) error {
	data, err := json.MarshalIndent(struct {
		Shard int `json:"shard"`
		*workspace.ShardAssignment
	}{e.Shard, a}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal assignment to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)

	return nil
}
