// Package webhook decodes GitHub webhook payloads of issue and pull-request
// events.
//
// The payloads do not carry a discriminator field. Decode tries the known
// variants in a fixed order and returns the first one whose JSON has the
// required structure.
package webhook

import (
	"encoding/json"
	"errors"

	"github.com/google/go-github/v43/github"
)

// ErrUnknownPayload is returned when a payload does not match any supported
// event structure.
var ErrUnknownPayload = errors.New("payload does not match a supported event structure")

// Type identifies the variant of a Payload.
type Type string

const (
	TypeIssue       Type = "issues"
	TypePullRequest Type = "pull_request"
)

// Payload is an issue or pull request webhook event.
// Exactly one of Issue and PullRequest is set.
type Payload struct {
	Issue       *github.IssuesEvent
	PullRequest *github.PullRequestEvent

	// JSON is the raw payload the event was decoded from.
	JSON []byte
}

func (p *Payload) Type() Type {
	if p.Issue != nil {
		return TypeIssue
	}

	return TypePullRequest
}

func (p *Payload) Action() string {
	if p.Issue != nil {
		return p.Issue.GetAction()
	}

	return p.PullRequest.GetAction()
}

// Labels returns the names of the labels of the issue or pull request.
func (p *Payload) Labels() []string {
	var labels []*github.Label

	if p.Issue != nil {
		labels = p.Issue.GetIssue().Labels
	} else {
		labels = p.PullRequest.GetPullRequest().Labels
	}

	result := make([]string, 0, len(labels))
	for _, l := range labels {
		result = append(result, l.GetName())
	}

	return result
}

// RepositoryFullName returns the full name (owner/name) of the repository.
func (p *Payload) RepositoryFullName() string {
	if p.Issue != nil {
		return p.Issue.GetRepo().GetFullName()
	}

	return p.PullRequest.GetRepo().GetFullName()
}

type decodeFunc func(data []byte) (*Payload, bool)

// decoders are tried in order, the first match wins.
var decoders = []decodeFunc{
	decodeIssueEvent,
	decodePullRequestEvent,
}

// Decode parses data into a Payload.
// When data is valid JSON but matches no supported event structure,
// ErrUnknownPayload is returned.
func Decode(data []byte) (*Payload, error) {
	if !json.Valid(data) {
		return nil, errors.New("payload is not valid json")
	}

	for _, decode := range decoders {
		if p, ok := decode(data); ok {
			p.JSON = data
			return p, nil
		}
	}

	return nil, ErrUnknownPayload
}

func decodeIssueEvent(data []byte) (*Payload, bool) {
	var ev github.IssuesEvent

	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, false
	}

	if ev.Action == nil || ev.Issue == nil || !validLabels(ev.Issue.Labels) || !validRepository(ev.Repo) {
		return nil, false
	}

	return &Payload{Issue: &ev}, true
}

func decodePullRequestEvent(data []byte) (*Payload, bool) {
	var ev github.PullRequestEvent

	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, false
	}

	if ev.Action == nil || ev.PullRequest == nil || !validLabels(ev.PullRequest.Labels) || !validRepository(ev.Repo) {
		return nil, false
	}

	return &Payload{PullRequest: &ev}, true
}

// validLabels returns false if the labels field was absent or null, or if a
// label has no name.
func validLabels(labels []*github.Label) bool {
	if labels == nil {
		return false
	}

	for _, l := range labels {
		if l == nil || l.Name == nil {
			return false
		}
	}

	return true
}

func validRepository(repo *github.Repository) bool {
	return repo != nil && repo.FullName != nil
}
