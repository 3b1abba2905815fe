package workspace

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Object key layout helpers
//
// Key patterns:
//   {shards_dir}/{shard_id}/{workspace_id}.json
//   {directory}/{workspace_id}/auth.json

const (
	// DefaultShardsDir is the partition root holding shard assignments.
	DefaultShardsDir = "workspaces/shards"

	// DefaultDirectory is the root holding per-workspace credentials.
	DefaultDirectory = "workspaces/directory"

	// ContentTypeJSON is the content type of every record written by onboarding.
	ContentTypeJSON = "application/json"
)

// Layout describes where records live inside the bucket.
type Layout struct {
	ShardsDir string
	Directory string

	shardPattern *regexp.Regexp
}

// NewLayout builds a layout for the given roots. Trailing slashes are ignored.
func NewLayout(shardsDir, directory string) Layout {
	shardsDir = strings.TrimRight(shardsDir, "/")
	directory = strings.TrimRight(directory, "/")

	return Layout{
		ShardsDir:    shardsDir,
		Directory:    directory,
		shardPattern: regexp.MustCompile(`^` + regexp.QuoteMeta(shardsDir) + `/([0-9]+)/.+`),
	}
}

// DefaultLayout returns the layout used by the Emojirades workers.
func DefaultLayout() Layout {
	return NewLayout(DefaultShardsDir, DefaultDirectory)
}

// ShardsPrefix returns the listing prefix covering every shard partition.
// Pattern: {shards_dir}/
func (l Layout) ShardsPrefix() string {
	return l.ShardsDir + "/"
}

// ShardPrefix returns the listing prefix of a single shard partition.
// Pattern: {shards_dir}/{shard_id}/
func (l Layout) ShardPrefix(shard int) string {
	return fmt.Sprintf("%s/%d/", l.ShardsDir, shard)
}

// AssignmentKey returns the key of a workspace's shard assignment.
// Pattern: {shards_dir}/{shard_id}/{workspace_id}.json
func (l Layout) AssignmentKey(shard int, workspaceID string) string {
	return fmt.Sprintf("%s/%d/%s.json", l.ShardsDir, shard, workspaceID)
}

// CredentialsKey returns the key of a workspace's credentials document.
// Pattern: {directory}/{workspace_id}/auth.json
func (l Layout) CredentialsKey(workspaceID string) string {
	return fmt.Sprintf("%s/%s/auth.json", l.Directory, workspaceID)
}

// ParseShard extracts the shard id from an assignment key.
// Keys outside {shards_dir}/{shard_id}/ report ok=false.
func (l Layout) ParseShard(key string) (shard int, ok bool) {
	if l.shardPattern == nil {
		l = NewLayout(l.ShardsDir, l.Directory)
	}

	match := l.shardPattern.FindStringSubmatch(key)
	if match == nil {
		return 0, false
	}

	shard, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}

	return shard, true
}

// QueueName returns the notification queue of a shard.
// Pattern: {prefix}{shard_id}
func QueueName(prefix string, shard int) string {
	return prefix + strconv.Itoa(shard)
}
