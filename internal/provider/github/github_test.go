package github

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // github still supports sha1 signatures
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"hash"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/plannersync/internal/githubclt"
	"github.com/simplesurance/plannersync/internal/planner"
	"github.com/simplesurance/plannersync/internal/planner/mocks"
	"github.com/simplesurance/plannersync/internal/syncerr"
	"github.com/simplesurance/plannersync/internal/tracking"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	org           = "testorg"
	projectNumber = 1
	statusField   = "Status"
	webhookSecret = "secret"
)

const issueLabeledPayload = `{
  "action": "labeled",
  "issue": {"number": 5, "title": "Crash", "labels": [{"name": "tracked"}]},
  "repository": {"full_name": "testorg/repo"}
}`

const issueOpenedPayload = `{
  "action": "opened",
  "issue": {"number": 5, "title": "Crash", "labels": [{"name": "tracked"}]},
  "repository": {"full_name": "testorg/repo"}
}`

type respBody struct {
	Code         string                  `json:"code"`
	Message      string                  `json:"message"`
	ProjectState *githubclt.ProjectState `json:"project_state"`
}

func newTestProvider(t *testing.T, opts ...option) (*Provider, *mocks.MockProjectStateFetcher) {
	t.Helper()
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	fetcher := mocks.NewMockProjectStateFetcher(mockctrl)

	router := planner.NewRouter(
		tracking.NewMatcher([]string{"labeled"}, []string{"tracked"}),
		fetcher,
		org,
		projectNumber,
		statusField,
	)

	return New(router, opts...), fetcher
}

func newWebhookReq(body []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "issues")
	req.Header.Set("X-GitHub-Delivery", "72d3162e-cc78-11e3-81ab-4c9367dc0958")

	return req
}

func signature(hashFn func() hash.Hash, prefix string, body []byte) string {
	mac := hmac.New(hashFn, []byte(webhookSecret))
	_, _ = mac.Write(body)

	return prefix + "=" + hex.EncodeToString(mac.Sum(nil))
}

func serve(t *testing.T, p *Provider, req *http.Request) (*httptest.ResponseRecorder, *respBody) {
	t.Helper()

	rec := httptest.NewRecorder()
	p.HTTPHandler(rec, req)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body respBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return rec, &body
}

func TestResolvedEvent(t *testing.T) {
	p, fetcher := newTestProvider(t)

	state := githubclt.ProjectState{
		Items: []*githubclt.ProjectItem{
			{
				Type:   githubclt.ProjectItemTypeIssue,
				Number: 5,
				Title:  "Crash",
				URL:    "https://github.com/testorg/repo/issues/5",
				Status: "In Progress",
			},
			{
				Type:   githubclt.ProjectItemTypePullRequest,
				Number: 6,
				Title:  "Fix crash",
				URL:    "https://github.com/testorg/repo/pull/6",
				Status: "Review",
			},
		},
	}

	fetcher.EXPECT().
		ProjectState(gomock.Any(), gomock.Eq(org), gomock.Eq(projectNumber), gomock.Eq(statusField)).
		Return(&state, nil).
		Times(1)

	before := testutil.ToFloat64(metrics.processedEvents.WithLabelValues(string(codeResolved)))

	rec, body := serve(t, p, newWebhookReq([]byte(issueLabeledPayload)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(codeResolved), body.Code)
	assert.Equal(t, &state, body.ProjectState)

	after := testutil.ToFloat64(metrics.processedEvents.WithLabelValues(string(codeResolved)))
	assert.Equal(t, before+1, after)
}

func TestResolvedItemJSONFormat(t *testing.T) {
	p, fetcher := newTestProvider(t)

	fetcher.EXPECT().
		ProjectState(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&githubclt.ProjectState{Items: []*githubclt.ProjectItem{
			{
				Type:   githubclt.ProjectItemTypePullRequest,
				Number: 6,
				Title:  "Fix crash",
				URL:    "https://github.com/testorg/repo/pull/6",
				Status: "Done",
			},
		}}, nil)

	rec := httptest.NewRecorder()
	p.HTTPHandler(rec, newWebhookReq([]byte(issueLabeledPayload)))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.JSONEq(t,
		`{
			"code": "resolved",
			"message": "project state retrieved",
			"project_state": {
				"items": [
					{"type": "PullRequest", "number": 6, "title": "Fix crash", "url": "https://github.com/testorg/repo/pull/6", "status": "Done"}
				]
			}
		}`,
		rec.Body.String(),
	)
}

func TestNotTargetedEventDoesNotQueryGithub(t *testing.T) {
	// the mock fails the testcase when ProjectState is called
	p, _ := newTestProvider(t)

	rec, body := serve(t, p, newWebhookReq([]byte(issueOpenedPayload)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(codeNotTargeted), body.Code)
	assert.Nil(t, body.ProjectState)
}

func TestGithubAPIError(t *testing.T) {
	p, fetcher := newTestProvider(t)

	fetcher.EXPECT().
		ProjectState(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, syncerr.New(syncerr.KindGraphQL, errors.New("Could not resolve to a ProjectNext"))).
		Times(1)

	rec, body := serve(t, p, newWebhookReq([]byte(issueLabeledPayload)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(codeGithubAPIError), body.Code)
	assert.Contains(t, body.Message, "Could not resolve to a ProjectNext")
	assert.Nil(t, body.ProjectState)
}

func TestRejectedRequests(t *testing.T) {
	type testcase struct {
		name               string
		req                *http.Request
		expectedStatusCode int
		expectedCode       responseCode
	}

	getReq := httptest.NewRequest(http.MethodGet, "/webhook", nil)

	testcases := []testcase{
		{
			name:               "getMethod",
			req:                getReq,
			expectedStatusCode: http.StatusMethodNotAllowed,
			expectedCode:       codeMethodNotAllowed,
		},
		{
			name:               "emptyBody",
			req:                newWebhookReq(nil),
			expectedStatusCode: http.StatusBadRequest,
			expectedCode:       codeNoBodyFound,
		},
		{
			name:               "unknownStructure",
			req:                newWebhookReq([]byte(`{"zen": "Keep it logically awesome.", "hook_id": 1}`)),
			expectedStatusCode: http.StatusBadRequest,
			expectedCode:       codeUnknownInput,
		},
		{
			name:               "invalidJSON",
			req:                newWebhookReq([]byte(`{"action":`)),
			expectedStatusCode: http.StatusBadRequest,
			expectedCode:       codeUnknownInput,
		},
		{
			name:               "bodyTooLarge",
			req:                newWebhookReq(make([]byte, MaxBodySize+1)),
			expectedStatusCode: http.StatusRequestEntityTooLarge,
			expectedCode:       codeBodyTooLarge,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := newTestProvider(t)

			before := testutil.ToFloat64(metrics.processedEvents.WithLabelValues(string(tc.expectedCode)))

			rec, body := serve(t, p, tc.req)
			assert.Equal(t, tc.expectedStatusCode, rec.Code)
			assert.Equal(t, string(tc.expectedCode), body.Code)
			assert.NotEmpty(t, body.Message)

			after := testutil.ToFloat64(metrics.processedEvents.WithLabelValues(string(tc.expectedCode)))
			assert.Equal(t, before+1, after)
		})
	}
}

func TestMethodNotAllowedSetsAllowHeader(t *testing.T) {
	p, _ := newTestProvider(t)

	rec := httptest.NewRecorder()
	p.HTTPHandler(rec, httptest.NewRequest(http.MethodPut, "/webhook", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestSignatureValidation(t *testing.T) {
	body := []byte(issueOpenedPayload)

	type testcase struct {
		name               string
		header             string
		signature          string
		expectedStatusCode int
		expectedCode       responseCode
	}

	testcases := []testcase{
		{
			name:               "validSHA256",
			header:             sha256SignatureHeader,
			signature:          signature(sha256.New, "sha256", body),
			expectedStatusCode: http.StatusOK,
			expectedCode:       codeNotTargeted,
		},
		{
			name:               "validSHA1",
			header:             sha1SignatureHeader,
			signature:          signature(sha1.New, "sha1", body),
			expectedStatusCode: http.StatusOK,
			expectedCode:       codeNotTargeted,
		},
		{
			name:               "wrongSignature",
			header:             sha256SignatureHeader,
			signature:          signature(sha256.New, "sha256", []byte("other")),
			expectedStatusCode: http.StatusUnauthorized,
			expectedCode:       codeInvalidSignature,
		},
		{
			name:               "malformedSignature",
			header:             sha256SignatureHeader,
			signature:          "sha256=xyz",
			expectedStatusCode: http.StatusUnauthorized,
			expectedCode:       codeInvalidSignature,
		},
		{
			name:               "missingSignature",
			expectedStatusCode: http.StatusUnauthorized,
			expectedCode:       codeInvalidSignature,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := newTestProvider(t, WithPayloadSecret(webhookSecret))

			req := newWebhookReq(body)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.signature)
			}

			rec, resp := serve(t, p, req)
			assert.Equal(t, tc.expectedStatusCode, rec.Code)
			assert.Equal(t, string(tc.expectedCode), resp.Code)
		})
	}
}

func TestSignatureIsNotValidatedWithoutSecret(t *testing.T) {
	p, _ := newTestProvider(t)

	req := newWebhookReq([]byte(issueOpenedPayload))
	req.Header.Set(sha256SignatureHeader, "sha256=invalid")

	rec, body := serve(t, p, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(codeNotTargeted), body.Code)
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
