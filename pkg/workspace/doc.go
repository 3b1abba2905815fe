// Package workspace provides the record types and object-store key layout shared
// between the onboarding service and the Emojirades shard workers.
//
// # Overview
//
// Onboarding a Slack workspace produces two persisted records and one queue
// message:
//
//   - a ShardAssignment, stored under the shard that will serve the workspace
//   - the workspace Credentials, stored in the workspace directory
//   - a Notification, sent to the shard's queue so its worker reloads
//
// When no shard has capacity an Alert is sent to the operator queue instead.
//
// # Object Layout
//
// All keys are relative to the configured bucket:
//
//	Assignment:  {shards_dir}/{shard_id}/{workspace_id}.json
//	Credentials: {directory}/{workspace_id}/auth.json
//
// The shard id is encoded only in the assignment key. Workers discover their
// workspaces by listing {shards_dir}/{shard_id}/.
//
// # Usage Example
//
//	layout := workspace.DefaultLayout()
//
//	key := layout.AssignmentKey(3, "T0123")
//	// key = "workspaces/shards/3/T0123.json"
//
//	shard, ok := layout.ParseShard(key)
//	// shard = 3, ok = true
//
//	queue := workspace.QueueName("emo-dev-onboarding-service-", shard)
//	// queue = "emo-dev-onboarding-service-3"
package workspace
