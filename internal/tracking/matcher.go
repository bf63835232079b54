// Package tracking decides if a webhook event is relevant for the synced
// project board.
package tracking

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/simplesurance/plannersync/internal/stringutils"
)

// Matcher decides if an event is trackable by its action and labels.
// A Matcher is immutable after creation and safe for concurrent use.
type Matcher struct {
	actions map[string]struct{}
	labels  map[string]struct{}
	filter  *FilterQuery
}

type Option func(*Matcher)

// WithFilterQuery sets a jq filter that events must additionally match to be
// trackable.
func WithFilterQuery(q *FilterQuery) Option {
	return func(m *Matcher) {
		m.filter = q
	}
}

func NewMatcher(trackedActions, trackedLabels []string, opts ...Option) *Matcher {
	m := Matcher{
		actions: toStrSet(trackedActions),
		labels:  toStrSet(trackedLabels),
	}

	for _, o := range opts {
		o(&m)
	}

	return &m
}

func toStrSet(in []string) map[string]struct{} {
	result := make(map[string]struct{}, len(in))
	for _, s := range in {
		result[s] = struct{}{}
	}

	return result
}

// IsTrackable returns true if action is a tracked action and at least one of
// labels is a tracked label. Both comparisons are exact and case-sensitive.
func (m *Matcher) IsTrackable(action string, labels []string) bool {
	if _, exist := m.actions[action]; !exist {
		return false
	}

	for _, l := range labels {
		if _, exist := m.labels[l]; exist {
			return true
		}
	}

	return false
}

// Match returns true if the event is trackable according to IsTrackable and,
// when a filter query is configured, the query evaluates to true for
// eventJSON.
// The filter query is only evaluated when IsTrackable returns true.
func (m *Matcher) Match(ctx context.Context, action string, labels []string, eventJSON []byte) (bool, error) {
	if !m.IsTrackable(action, labels) {
		return false, nil
	}

	if m.filter == nil {
		return true, nil
	}

	return m.filter.Eval(ctx, eventJSON)
}

func sortedKeys(m map[string]struct{}) []string {
	result := make([]string, 0, len(m))
	for k := range m {
		result = append(result, k)
	}

	sort.Strings(result)

	return result
}

func (m *Matcher) String() string {
	return fmt.Sprintf("actions: %s, labels: %s",
		strings.Join(sortedKeys(m.actions), ","),
		strings.Join(sortedKeys(m.labels), ","),
	)
}

// DetailedString returns a multi-line description of the matching criteria.
func (m *Matcher) DetailedString() string {
	var result strings.Builder

	result.WriteString("Actions:\n")
	result.WriteString(stringutils.IndentLines(sortedKeys(m.actions), "  "))
	result.WriteString("\nLabels:\n")
	result.WriteString(stringutils.IndentLines(sortedKeys(m.labels), "  "))

	if m.filter != nil {
		result.WriteString(fmt.Sprintf("\nFilterQuery: %s", m.filter))
	}

	return result.String()
}
