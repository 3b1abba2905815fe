// Package onboarding sequences the OAuth handshake, shard allocation and
// persistence that add a Slack workspace to Emojirades.
//
// An onboarding moves through these states, and can be rejected from any of them:
//
//	AwaitingHandshakeCheck -> AwaitingExchange -> AwaitingShardAllocation
//	    -> Persisting -> Notifying -> Done
//
// The handshake token is deleted as soon as it has been validated, before the
// code exchange runs, so a state token can never be replayed even when the
// exchange fails. Rejections are returned as a Result; failures of the stores
// or queues are returned as errors.
package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emojirades/onboarding/internal/handshake"
	"github.com/emojirades/onboarding/internal/metrics"
	"github.com/emojirades/onboarding/internal/objectstore"
	"github.com/emojirades/onboarding/internal/queue"
	"github.com/emojirades/onboarding/internal/secrets"
	"github.com/emojirades/onboarding/internal/shard"
	"github.com/emojirades/onboarding/internal/slackauth"
	"github.com/emojirades/onboarding/pkg/workspace"
)

// State is a step of an onboarding.
type State string

const (
	StateAwaitingHandshakeCheck  State = "awaiting_handshake_check"
	StateAwaitingExchange        State = "awaiting_exchange"
	StateAwaitingShardAllocation State = "awaiting_shard_allocation"
	StatePersisting              State = "persisting"
	StateNotifying               State = "notifying"
	StateDone                    State = "done"
	StateRejected                State = "rejected"
)

// Exchanger talks to the identity provider.
type Exchanger interface {
	AuthorizeURL(cfg *secrets.ClientConfig, state string) string
	Exchange(ctx context.Context, cfg *secrets.ClientConfig, code string) (*slackauth.AccessResponse, error)
}

var _ Exchanger = (*slackauth.Client)(nil)

// Config holds the onboarding policy.
type Config struct {
	SecretName   string
	HandshakeTTL time.Duration
	ShardLimit   int
	QueuePrefix  string
	AlertQueue   string
	Layout       workspace.Layout
	ProductName  string
}

// Validate checks that every field is usable.
func (c *Config) Validate() error {
	if c.SecretName == "" {
		return fmt.Errorf("secret name is required")
	}
	if c.HandshakeTTL <= 0 {
		return fmt.Errorf("handshake ttl must be positive, got %s", c.HandshakeTTL)
	}
	if c.ShardLimit <= 0 {
		return fmt.Errorf("shard limit must be positive, got %d", c.ShardLimit)
	}
	if c.QueuePrefix == "" {
		return fmt.Errorf("queue prefix is required")
	}
	if c.AlertQueue == "" {
		return fmt.Errorf("alert queue is required")
	}
	if c.Layout.ShardsDir == "" || c.Layout.Directory == "" {
		return fmt.Errorf("object layout is incomplete")
	}
	if c.ProductName == "" {
		return fmt.Errorf("product name is required")
	}
	return nil
}

// Dependencies are the external collaborators of a Service.
// Clock, Logger and NewToken are optional.
type Dependencies struct {
	Handshakes handshake.Store
	Secrets    secrets.Source
	Exchanger  Exchanger
	Objects    objectstore.Store
	Queue      queue.Sender
	Metrics    *metrics.Metrics

	Clock    clock.Clock
	Logger   *zap.Logger
	NewToken func() string
}

// Service runs the /initiate and /onboard flows. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	cfg Config

	handshakes handshake.Store
	secrets    secrets.Source
	exchanger  Exchanger
	objects    objectstore.Store
	queue      queue.Sender
	metrics    *metrics.Metrics

	clock    clock.Clock
	log      *zap.Logger
	newToken func() string
}

// NewService creates a Service.
func NewService(cfg Config, deps Dependencies) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid onboarding config: %w", err)
	}
	if deps.Handshakes == nil || deps.Secrets == nil || deps.Exchanger == nil || deps.Objects == nil || deps.Queue == nil {
		return nil, fmt.Errorf("handshake store, secret source, exchanger, object store and queue are required")
	}

	s := &Service{
		cfg:        cfg,
		handshakes: deps.Handshakes,
		secrets:    deps.Secrets,
		exchanger:  deps.Exchanger,
		objects:    deps.Objects,
		queue:      deps.Queue,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		log:        deps.Logger,
		newToken:   deps.NewToken,
	}

	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.newToken == nil {
		s.newToken = uuid.NewString
	}

	return s, nil
}

// Initiate starts a handshake and redirects to the identity provider.
func (s *Service) Initiate(ctx context.Context) (*Result, error) {
	clientCfg, err := s.secrets.ClientConfig(ctx, s.cfg.SecretName)
	if err != nil {
		return nil, fmt.Errorf("failed to load client config: %w", err)
	}

	h := &handshake.Handshake{
		Token:     s.newToken(),
		ExpiresAt: s.clock.Now().Add(s.cfg.HandshakeTTL),
	}

	if err := s.handshakes.Create(ctx, h, s.cfg.HandshakeTTL); err != nil {
		return nil, fmt.Errorf("failed to create handshake: %w", err)
	}

	s.log.Debug("Handshake initiated", zap.Time("expires_at", h.ExpiresAt))
	s.metrics.ObserveOutcome(string(OutcomeRedirected))

	return redirect(s.exchanger.AuthorizeURL(clientCfg, h.Token)), nil
}

// flow carries one onboarding through the state machine.
type flow struct {
	state State
	log   *zap.Logger

	code  string
	token string

	access *slackauth.AccessResponse
	shard  int
}

func (f *flow) advance(next State, fields ...zap.Field) {
	f.log.Debug("Onboarding state changed",
		append(fields, zap.String("from", string(f.state)), zap.String("to", string(next)))...)
	f.state = next
}

// Onboard completes a handshake. It consumes the state token, exchanges the
// code, allocates a shard, persists the assignment and credentials, and notifies
// the shard's worker.
func (s *Service) Onboard(ctx context.Context, code, token string) (*Result, error) {
	if code == "" || token == "" {
		s.metrics.ObserveOutcome(string(OutcomeMissingParameters))
		return MissingParameters(), nil
	}

	f := &flow{
		state: StateAwaitingHandshakeCheck,
		log:   s.log,
		code:  code,
		token: token,
	}

	res, err := s.run(ctx, f)
	if err != nil {
		s.metrics.ObserveOutcome("error")
		return nil, fmt.Errorf("onboarding failed while %s: %w", f.state, err)
	}

	if res.Rejected() {
		f.log.Info("Onboarding rejected",
			zap.String("state", string(f.state)),
			zap.String("outcome", string(res.Outcome)))
		f.state = StateRejected
	} else {
		f.advance(StateDone)
		f.log.Info("Workspace onboarded", zap.Int("shard", res.Shard))
	}

	s.metrics.ObserveOutcome(string(res.Outcome))
	return res, nil
}

func (s *Service) run(ctx context.Context, f *flow) (*Result, error) {
	steps := []func(context.Context, *flow) (*Result, error){
		s.checkHandshake,
		s.exchange,
		s.allocate,
		s.persist,
		s.notify,
	}

	for _, step := range steps {
		res, err := step(ctx, f)
		if err != nil || res != nil {
			return res, err
		}
	}

	return &Result{
		Outcome:     OutcomeOnboarded,
		StatusCode:  http.StatusOK,
		Message:     fmt.Sprintf("Successfully onboarded %s to %s!", f.access.TeamName, s.cfg.ProductName),
		WorkspaceID: f.access.TeamID,
		Shard:       f.shard,
	}, nil
}

// checkHandshake validates and consumes the state token.
func (s *Service) checkHandshake(ctx context.Context, f *flow) (*Result, error) {
	h, err := s.handshakes.Get(ctx, f.token)
	if handshake.IsNotFound(err) {
		return reject(OutcomeTimedOut, s.cfg.ProductName), nil
	}
	if err != nil {
		return nil, err
	}

	if h.Expired(s.clock.Now()) {
		if _, err := s.handshakes.Delete(ctx, f.token); err != nil {
			f.log.Warn("Failed to remove expired handshake", zap.Error(err))
		}
		return reject(OutcomeTimedOut, s.cfg.ProductName), nil
	}

	deleted, err := s.handshakes.Delete(ctx, f.token)
	if err != nil {
		return nil, err
	}
	if !deleted {
		// Another request consumed the token between Get and Delete
		return reject(OutcomeTimedOut, s.cfg.ProductName), nil
	}

	f.advance(StateAwaitingExchange)
	return nil, nil
}

// exchange trades the code for the workspace's tokens.
func (s *Service) exchange(ctx context.Context, f *flow) (*Result, error) {
	clientCfg, err := s.secrets.ClientConfig(ctx, s.cfg.SecretName)
	if err != nil {
		return nil, fmt.Errorf("failed to load client config: %w", err)
	}

	access, err := s.exchanger.Exchange(ctx, clientCfg, f.code)
	switch {
	case errors.Is(err, slackauth.ErrExchangeFailed):
		f.log.Warn("Code exchange failed", zap.Error(err))
		return reject(OutcomeInvalidCredentials, s.cfg.ProductName), nil
	case errors.Is(err, slackauth.ErrMissingBotScope):
		f.log.Warn("Code exchange returned no bot", zap.Error(err))
		return reject(OutcomeMissingBotScope, s.cfg.ProductName), nil
	case errors.Is(err, slackauth.ErrClientRejected):
		f.log.Warn("Slack rejected the client configuration", zap.Error(err))
		s.forgetClientConfig()
		return reject(OutcomeMalformedResponse, s.cfg.ProductName), nil
	case errors.Is(err, slackauth.ErrMalformedResponse):
		f.log.Warn("Code exchange returned an invalid response", zap.Error(err))
		return reject(OutcomeMalformedResponse, s.cfg.ProductName), nil
	case err != nil:
		return nil, err
	}

	f.access = access
	f.log = f.log.With(zap.String("workspace_id", access.TeamID))
	f.advance(StateAwaitingShardAllocation)
	return nil, nil
}

// invalidator is implemented by secret sources that memoize, such as secrets.Cache.
type invalidator interface {
	Invalidate(name string)
}

// forgetClientConfig drops a cached client configuration so the next request
// reloads it, picking up a rotated client secret.
func (s *Service) forgetClientConfig() {
	if c, ok := s.secrets.(invalidator); ok {
		c.Invalidate(s.cfg.SecretName)
	}
}

// allocate picks the shard for the workspace, alerting operators when none has room.
func (s *Service) allocate(ctx context.Context, f *flow) (*Result, error) {
	table, err := shard.Scan(ctx, s.objects, s.cfg.Layout)
	if err != nil {
		return nil, fmt.Errorf("failed to scan shard load: %w", err)
	}
	for _, l := range table {
		s.metrics.ObserveLoad(l.Shard, l.Count)
	}
	f.log.Debug("Shard load scanned", zap.Int("shards", len(table)), zap.Int("workspaces", table.Total()))

	id, err := table.Allocate(s.cfg.ShardLimit)
	if errors.Is(err, shard.ErrOversubscribed) {
		f.log.Warn("All shards are oversubscribed",
			zap.Int("shards", len(table)),
			zap.Int("limit", s.cfg.ShardLimit))
		s.alertOversubscribed(ctx, f)
		return reject(OutcomeOversubscribed, s.cfg.ProductName), nil
	}
	if err != nil {
		return nil, err
	}

	f.shard = id
	f.advance(StatePersisting, zap.Int("shard", id))
	return nil, nil
}

// alertOversubscribed notifies operators. Failures are logged and swallowed.
func (s *Service) alertOversubscribed(ctx context.Context, f *flow) {
	if err := queue.SendJSON(ctx, s.queue, s.cfg.AlertQueue, workspace.OversubscribedAlert); err != nil {
		f.log.Error("Failed to send oversubscription alert", zap.Error(err))
		s.metrics.ObserveAlertError()
	}
}

// persist writes the shard assignment, then the credentials it points to.
func (s *Service) persist(ctx context.Context, f *flow) (*Result, error) {
	workspaceID := f.access.TeamID
	credsKey := s.cfg.Layout.CredentialsKey(workspaceID)

	assignment := &workspace.ShardAssignment{
		WorkspaceID: workspaceID,
		AuthURI:     s.objects.URI(credsKey),
	}
	if err := assignment.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shard assignment: %w", err)
	}

	if err := s.putJSON(ctx, s.cfg.Layout.AssignmentKey(f.shard, workspaceID), assignment); err != nil {
		return nil, err
	}

	creds := f.access.Credentials()
	if err := s.putJSON(ctx, credsKey, &creds); err != nil {
		return nil, err
	}

	s.metrics.ObserveAllocation(f.shard)
	f.advance(StateNotifying)
	return nil, nil
}

// notify tells the shard's worker to pick up the new workspace.
func (s *Service) notify(ctx context.Context, f *flow) (*Result, error) {
	name := workspace.QueueName(s.cfg.QueuePrefix, f.shard)
	if err := queue.SendJSON(ctx, s.queue, name, workspace.Notification{WorkspaceID: f.access.TeamID}); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Service) putJSON(ctx context.Context, key string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.objects.Put(ctx, key, body, workspace.ContentTypeJSON)
}
