package workspace

import "fmt"

// ShardAssignment records which shard serves a workspace.
// The shard id itself is part of the object key, not the document.
type ShardAssignment struct {
	WorkspaceID string `json:"workspace_id"` // Slack team id
	AuthURI     string `json:"auth_uri"`     // Location of the workspace Credentials document
}

// Validate checks that the assignment can be written.
func (a *ShardAssignment) Validate() error {
	if a.WorkspaceID == "" {
		return fmt.Errorf("workspace_id is required")
	}
	if a.AuthURI == "" {
		return fmt.Errorf("auth_uri is required")
	}
	return nil
}

// Credentials are the secrets a shard worker needs to run the bot in a workspace.
type Credentials struct {
	AccessToken    string `json:"access_token"`
	BotUserID      string `json:"bot_user_id"`
	BotAccessToken string `json:"bot_access_token"`
}

// Validate checks that every token is present.
func (c *Credentials) Validate() error {
	if c.AccessToken == "" {
		return fmt.Errorf("access_token is required")
	}
	if c.BotUserID == "" {
		return fmt.Errorf("bot_user_id is required")
	}
	if c.BotAccessToken == "" {
		return fmt.Errorf("bot_access_token is required")
	}
	return nil
}

// Notification is sent to a shard queue after a workspace has been assigned to it.
type Notification struct {
	WorkspaceID string `json:"workspace_id"`
}

// Alert is sent to the operator queue when onboarding cannot proceed.
type Alert struct {
	Message string `json:"message"`
}

// OversubscribedAlert is the alert raised when every shard is at capacity.
var OversubscribedAlert = Alert{Message: "Shards are currently oversubscribed"}
