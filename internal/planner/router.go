// Package planner decides for a webhook payload if the project board state
// is retrieved and retrieves it.
package planner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/plannersync/internal/githubclt"
	"github.com/simplesurance/plannersync/internal/logfields"
	"github.com/simplesurance/plannersync/internal/tracking"
	"github.com/simplesurance/plannersync/internal/webhook"
)

//go:generate mockgen -destination=mocks/mock_fetcher.go -package=mocks github.com/simplesurance/plannersync/internal/planner ProjectStateFetcher

const loggerName = "planner"

// ProjectStateFetcher retrieves the state of a project board.
type ProjectStateFetcher interface {
	ProjectState(ctx context.Context, org string, projectNumber int, statusField string) (*githubclt.ProjectState, error)
}

// OutcomeKind describes the result of routing a webhook payload.
type OutcomeKind int

const (
	// OutcomeNotTargeted means the payload is not trackable, the project
	// board was not queried.
	OutcomeNotTargeted OutcomeKind = iota
	// OutcomeResolved means the project board state was retrieved.
	OutcomeResolved
	// OutcomeFailed means querying the project board failed.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNotTargeted:
		return "not_targeted"
	case OutcomeResolved:
		return "resolved"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Outcome is the result of Router.Handle.
// State is only set for OutcomeResolved, Err only for OutcomeFailed.
type Outcome struct {
	Kind  OutcomeKind
	State *githubclt.ProjectState
	Err   error
}

// Router queries the project board state for trackable webhook payloads.
// It holds no mutable state and can be used concurrently.
type Router struct {
	matcher       *tracking.Matcher
	fetcher       ProjectStateFetcher
	org           string
	projectNumber int
	statusField   string
	logger        *zap.Logger
}

// NewRouter returns a Router that retrieves the state of the project board
// with the number projectNumber of the organization org.
func NewRouter(
	matcher *tracking.Matcher,
	fetcher ProjectStateFetcher,
	org string,
	projectNumber int,
	statusField string,
) *Router {
	return &Router{
		matcher:       matcher,
		fetcher:       fetcher,
		org:           org,
		projectNumber: projectNumber,
		statusField:   statusField,
		logger:        zap.L().Named(loggerName),
	}
}

// Handle evaluates if payload is trackable and if it is, retrieves the
// current project board state.
func (r *Router) Handle(ctx context.Context, payload *webhook.Payload) Outcome {
	action := payload.Action()
	labels := payload.Labels()

	logger := r.logger.With(
		logfields.WebhookType(string(payload.Type())),
		logfields.Repository(payload.RepositoryFullName()),
		logfields.Action(action),
		logfields.Labels(labels),
	)

	match, err := r.matcher.Match(ctx, action, labels, payload.JSON)
	if err != nil {
		logger.Debug(
			"evaluating filter query failed, event is not tracked",
			logfields.Event("tracking_filter_query_failed"),
			zap.Error(err),
		)

		return Outcome{Kind: OutcomeNotTargeted}
	}

	if !match {
		logger.Debug(
			"event is not tracked",
			logfields.Event("event_not_tracked"),
		)

		return Outcome{Kind: OutcomeNotTargeted}
	}

	logger.Debug(
		"event is tracked, retrieving project state",
		logfields.Event("event_tracked"),
	)

	state, err := r.fetcher.ProjectState(ctx, r.org, r.projectNumber, r.statusField)
	if err != nil {
		return Outcome{
			Kind: OutcomeFailed,
			Err:  fmt.Errorf("retrieving state of project %d of organization %q failed: %w", r.projectNumber, r.org, err),
		}
	}

	logger.Debug(
		"retrieved project state",
		logfields.Event("project_state_retrieved"),
		zap.Int("project_items", len(state.Items)),
	)

	return Outcome{Kind: OutcomeResolved, State: state}
}
