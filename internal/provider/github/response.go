package github

import (
	"encoding/json"
	"net/http"

	"github.com/simplesurance/plannersync/internal/githubclt"
	"github.com/simplesurance/plannersync/internal/planner"
)

type responseCode string

const (
	codeMethodNotAllowed responseCode = "method_not_allowed"
	codeBodyTooLarge     responseCode = "body_too_large"
	codeInvalidSignature responseCode = "invalid_signature"
	codeNoBodyFound      responseCode = "no_body_found"
	codeUnknownInput     responseCode = "unknown_input"
	codeNotTargeted      responseCode = "not_targeted"
	codeGithubAPIError   responseCode = "github_api_error"
	codeResolved         responseCode = "resolved"
)

// statusCode returns the http status code that is sent for c.
func (c responseCode) statusCode() int {
	switch c {
	case codeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case codeBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case codeInvalidSignature:
		return http.StatusUnauthorized
	case codeNoBodyFound, codeUnknownInput:
		return http.StatusBadRequest
	case codeNotTargeted, codeResolved:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

type response struct {
	Code         responseCode            `json:"code"`
	Message      string                  `json:"message"`
	ProjectState *githubclt.ProjectState `json:"project_state,omitempty"`
}

func responseFromOutcome(o *planner.Outcome) *response {
	switch o.Kind {
	case planner.OutcomeResolved:
		return &response{
			Code:         codeResolved,
			Message:      "project state retrieved",
			ProjectState: o.State,
		}

	case planner.OutcomeFailed:
		return &response{
			Code:    codeGithubAPIError,
			Message: "querying the github api failed: " + o.Err.Error(),
		}

	default:
		return &response{
			Code:    codeNotTargeted,
			Message: "event is not tracked",
		}
	}
}

func (r *response) write(resp http.ResponseWriter) error {
	body, err := json.Marshal(r)
	if err != nil {
		http.Error(resp, err.Error(), http.StatusInternalServerError)
		return err
	}

	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(r.Code.statusCode())
	_, err = resp.Write(body)

	return err
}
