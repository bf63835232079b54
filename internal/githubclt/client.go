// Package githubclt provides a github API client.
package githubclt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"
	"golang.org/x/oauth2"

	"github.com/simplesurance/plannersync/internal/syncerr"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "github_client"

// ErrInvalidToken is returned by New when the API token can not be used as
// bearer token in an Authorization header.
var ErrInvalidToken = errors.New("github api token is not usable as bearer token")

// Client is an github API client.
// All methods that query the API return a *syncerr.APIError on failure.
type Client struct {
	graphQLClt *githubv4.Client
	logger     *zap.Logger
}

type Option func(*options)

type options struct {
	graphQLURL string
}

// WithGraphQLURL sets the URL of the GraphQL endpoint, it is needed for
// GitHub Enterprise servers.
func WithGraphQLURL(url string) Option {
	return func(o *options) {
		o.graphQLURL = url
	}
}

// New returns a new github api client that authenticates with apiToken.
// If the token can not be sent as bearer token, ErrInvalidToken is returned.
func New(apiToken string, opts ...Option) (*Client, error) {
	if err := validateToken(apiToken); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := newHTTPClient(apiToken)

	var graphQLClt *githubv4.Client
	if o.graphQLURL != "" {
		graphQLClt = githubv4.NewEnterpriseClient(o.graphQLURL, httpClient)
	} else {
		graphQLClt = githubv4.NewClient(httpClient)
	}

	return &Client{
		graphQLClt: graphQLClt,
		logger:     zap.L().Named(loggerName),
	}, nil
}

func validateToken(apiToken string) error {
	if apiToken == "" {
		return errors.New("github api token is empty")
	}

	if strings.TrimSpace(apiToken) != apiToken || !httpguts.ValidHeaderFieldValue("Bearer "+apiToken) {
		return ErrInvalidToken
	}

	return nil
}

func newHTTPClient(apiToken string) *http.Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

var graphQlHTTPStatusErrRe = regexp.MustCompile(`^non-200 OK status code: ([0-9]+) .*`)

// isTransportError returns true if err was caused by the HTTP request or by
// decoding the response envelope, instead of being a GraphQL error reported
// by the server.
func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return true
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	return graphQlHTTPStatusErrRe.MatchString(err.Error())
}

// wrapQueryError converts an error returned by githubv4.Client.Query into a
// *syncerr.APIError.
func wrapQueryError(err error) *syncerr.APIError {
	if isTransportError(err) {
		return syncerr.New(syncerr.KindTransport, err)
	}

	// the graphql client returns the errors field of the response as error
	return syncerr.New(syncerr.KindGraphQL, err)
}
