package githubclt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"

	"github.com/simplesurance/plannersync/internal/logfields"
	"github.com/simplesurance/plannersync/internal/syncerr"
)

// ProjectItemsPageSize is the max. number of project items that are
// retrieved. Items after the first page are not fetched.
const ProjectItemsPageSize = 100

// fieldValuesPageSize is the max. number of field values retrieved per item.
const fieldValuesPageSize = 100

// ProjectItemType is the type of the content of a project item.
type ProjectItemType string

const (
	ProjectItemTypeIssue       ProjectItemType = "Issue"
	ProjectItemTypePullRequest ProjectItemType = "PullRequest"
)

// ProjectItem is an issue or pull request on a project board together with
// its status.
type ProjectItem struct {
	Type   ProjectItemType `json:"type"`
	Number int             `json:"number"`
	Title  string          `json:"title"`
	URL    string          `json:"url"`
	// Status is the name of the selected option of the status field.
	Status string `json:"status"`
}

// ProjectState is the list of items on a project board that have a status.
type ProjectState struct {
	Items []*ProjectItem `json:"items"`
}

type queryContentFields struct {
	Number int
	Title  string
	URL    string `graphql:"url"`
}

type queryProjectItem struct {
	Content *struct {
		Typename    string             `graphql:"__typename"`
		Issue       queryContentFields `graphql:"... on Issue"`
		PullRequest queryContentFields `graphql:"... on PullRequest"`
	}
	FieldValues struct {
		Nodes []*queryFieldValue
	} `graphql:"fieldValues(first: $fieldValuesFirst)"`
}

type queryFieldValue struct {
	ProjectField struct {
		Name string
		// Settings is a JSON document encoded as string.
		Settings *string
	}
	// Value is the id of the selected option for single select fields.
	Value *string
}

type queryProjectState struct {
	// Typename is always set when the response contains data.
	Typename     string `graphql:"__typename"`
	Organization *struct {
		ProjectNext *struct {
			Items struct {
				// Nodes is nil when the response contains null.
				Nodes []*queryProjectItem
			} `graphql:"items(first: $itemsFirst)"`
		} `graphql:"projectNext(number: $projectNumber)"`
	} `graphql:"organization(login: $login)"`
}

// ProjectState returns the items of the first page of the project
// board with their status.
// The status is the name of the selected option of the single select field
// named statusField.
// Items that are not an issue or pull request, or that have no valid status,
// are not part of the result.
func (clt *Client) ProjectState(ctx context.Context, org string, projectNumber int, statusField string) (*ProjectState, error) {
	logger := clt.logger.With(
		logfields.Organization(org),
		logfields.ProjectNumber(projectNumber),
	)

	items, err := clt.projectItems(ctx, org, projectNumber)
	if err != nil {
		logger.Debug(
			"querying project items failed",
			logfields.Event("github_project_query_failed"),
			zap.Error(err),
		)

		return nil, err
	}

	state := resolveProjectState(items, statusField)

	logger.Debug(
		"retrieved project state",
		logfields.Event("github_project_state_retrieved"),
		zap.Int("project_items_received", len(items)),
		zap.Int("project_items_with_status", len(state.Items)),
	)

	return state, nil
}

func (clt *Client) projectItems(ctx context.Context, org string, projectNumber int) ([]*queryProjectItem, error) {
	var q queryProjectState

	vars := map[string]any{
		"login":            githubv4.String(org),
		"projectNumber":    githubv4.Int(projectNumber),
		"itemsFirst":       githubv4.Int(ProjectItemsPageSize),
		"fieldValuesFirst": githubv4.Int(fieldValuesPageSize),
	}

	startTime := time.Now()
	items, err := clt.execProjectQuery(ctx, &q, vars)
	metrics.ObserveQuery(err, time.Since(startTime))

	return items, err
}

func (clt *Client) execProjectQuery(ctx context.Context, q *queryProjectState, vars map[string]any) ([]*queryProjectItem, error) {
	if err := clt.graphQLClt.Query(ctx, q, vars); err != nil {
		return nil, wrapQueryError(err)
	}

	if q.Typename == "" {
		return nil, syncerr.NewWithoutCause(syncerr.KindNoData)
	}

	if q.Organization == nil {
		return nil, syncerr.NewWithoutCause(syncerr.KindOrgNotFound)
	}

	if q.Organization.ProjectNext == nil {
		return nil, syncerr.NewWithoutCause(syncerr.KindProjectNotFound)
	}

	if q.Organization.ProjectNext.Items.Nodes == nil {
		return nil, syncerr.NewWithoutCause(syncerr.KindItemsNotFound)
	}

	return q.Organization.ProjectNext.Items.Nodes, nil
}

// projectFieldSettings is the decoded settings JSON document of a single
// select project field.
type projectFieldSettings struct {
	Options []*projectFieldOption `json:"options"`
}

type projectFieldOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var (
	errNoContent        = errors.New("item has no content")
	errUnsupportedType  = errors.New("item content is not an issue or pull request")
	errFieldNotFound    = errors.New("item has no value for the status field")
	errNoFieldSettings  = errors.New("status field has no settings")
	errNoValue          = errors.New("status field has no selected value")
	errOptionNotDefined = errors.New("selected option is not defined in the status field settings")
)

// resolveProjectState converts the query result items to ProjectItems.
// Items that can not be converted are omitted.
func resolveProjectState(items []*queryProjectItem, statusField string) *ProjectState {
	logger := zap.L().Named(loggerName)
	result := ProjectState{Items: make([]*ProjectItem, 0, len(items))}

	for i, item := range items {
		pi, err := resolveProjectItem(item, statusField)
		if err != nil {
			logger.Debug(
				"skipping project item",
				logfields.Event("github_project_item_skipped"),
				zap.Int("project_item_index", i),
				zap.Error(err),
			)

			continue
		}

		result.Items = append(result.Items, pi)
	}

	return &result
}

func resolveProjectItem(item *queryProjectItem, statusField string) (*ProjectItem, error) {
	if item == nil || item.Content == nil {
		return nil, errNoContent
	}

	var result ProjectItem
	var content *queryContentFields

	switch ProjectItemType(item.Content.Typename) {
	case ProjectItemTypeIssue:
		result.Type = ProjectItemTypeIssue
		content = &item.Content.Issue

	case ProjectItemTypePullRequest:
		result.Type = ProjectItemTypePullRequest
		content = &item.Content.PullRequest

	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedType, item.Content.Typename)
	}

	result.Number = content.Number
	result.Title = content.Title
	result.URL = content.URL

	status, err := fieldValueStatus(item.FieldValues.Nodes, statusField)
	if err != nil {
		return nil, fmt.Errorf("item %s #%d: %w", result.Type, result.Number, err)
	}

	result.Status = status

	return &result, nil
}

// fieldValueStatus returns the name of the selected option of the first field
// value that belongs to the field named statusField.
func fieldValueStatus(fieldValues []*queryFieldValue, statusField string) (string, error) {
	for _, fv := range fieldValues {
		if fv == nil || fv.ProjectField.Name != statusField {
			continue
		}

		if fv.ProjectField.Settings == nil {
			return "", errNoFieldSettings
		}

		settings, err := decodeFieldSettings(*fv.ProjectField.Settings)
		if err != nil {
			return "", err
		}

		if fv.Value == nil {
			return "", errNoValue
		}

		for _, opt := range settings.Options {
			if opt != nil && opt.ID == *fv.Value {
				return opt.Name, nil
			}
		}

		return "", fmt.Errorf("%w: %q", errOptionNotDefined, *fv.Value)
	}

	return "", errFieldNotFound
}

// decodeFieldSettings decodes the settings of a project field. The settings
// are a JSON document that is embedded as string in the GraphQL response.
func decodeFieldSettings(settings string) (*projectFieldSettings, error) {
	var result projectFieldSettings

	if err := json.Unmarshal([]byte(settings), &result); err != nil {
		return nil, fmt.Errorf("decoding field settings failed: %w", err)
	}

	return &result, nil
}
