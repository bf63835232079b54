package github

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/go-github/v43/github"
	"go.uber.org/zap"

	"github.com/simplesurance/plannersync/internal/logfields"
	"github.com/simplesurance/plannersync/internal/planner"
	"github.com/simplesurance/plannersync/internal/webhook"
)

const loggerName = "github-event-provider"

// MaxBodySize is the max. size of a webhook request body that is accepted.
const MaxBodySize = 25 * 1024 * 1024

const (
	sha256SignatureHeader = "X-Hub-Signature-256"
	sha1SignatureHeader   = "X-Hub-Signature"
)

// Router processes decoded webhook payloads.
type Router interface {
	Handle(ctx context.Context, payload *webhook.Payload) planner.Outcome
}

// Provider receives github webhook http-requests, validates and decodes them,
// passes them to a Router and converts the outcome to a http response.
type Provider struct {
	logging       *zap.Logger
	webhookSecret []byte
	router        Router
}

type option func(*Provider)

// WithPayloadSecret enables validating the signature of webhook requests with
// secret.
func WithPayloadSecret(secret string) option {
	return func(p *Provider) {
		p.webhookSecret = []byte(secret)
	}
}

func New(router Router, opts ...option) *Provider {
	p := Provider{
		router: router,
	}

	for _, o := range opts {
		o(&p)
	}

	if p.logging == nil {
		p.logging = zap.L().Named(loggerName)
	}

	return &p
}

func signatureHeader(req *http.Request) string {
	if sig := req.Header.Get(sha256SignatureHeader); sig != "" {
		return sig
	}

	return req.Header.Get(sha1SignatureHeader)
}

func (p *Provider) HTTPHandler(resp http.ResponseWriter, req *http.Request) {
	logger := p.logging.With(
		logfields.EventProvider("github"),
		logfields.DeliveryID(github.DeliveryID(req)),
		logfields.WebhookType(github.WebHookType(req)),
	)

	logger.Debug("received a http request", logfields.Event("github_http_request_received"))

	if req.Method != http.MethodPost {
		logger.Info(
			"received http request with unsupported method",
			logfields.Event("github_http_request_method_not_allowed"),
			zap.String("http_method", req.Method),
		)

		resp.Header().Set("Allow", http.MethodPost)
		p.respond(logger, resp, &response{
			Code:    codeMethodNotAllowed,
			Message: "only POST requests are supported",
		})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(resp, req.Body, MaxBodySize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			logger.Info(
				"received http request with too large body",
				logfields.Event("github_http_request_body_too_large"),
				zap.Int64("http_body_limit", maxBytesErr.Limit),
			)

			p.respond(logger, resp, &response{
				Code:    codeBodyTooLarge,
				Message: "request body is too large",
			})
			return
		}

		logger.Info(
			"reading http request body failed",
			logfields.Event("github_http_request_body_read_failed"),
			zap.Error(err),
		)

		p.respond(logger, resp, &response{
			Code:    codeNoBodyFound,
			Message: "reading request body failed: " + err.Error(),
		})
		return
	}

	if len(p.webhookSecret) != 0 {
		if err := github.ValidateSignature(signatureHeader(req), body, p.webhookSecret); err != nil {
			logger.Info(
				"received invalid http request, signature validation failed",
				logfields.Event("github_http_request_validation_failed"),
				zap.Error(err),
			)

			p.respond(logger, resp, &response{
				Code:    codeInvalidSignature,
				Message: "payload signature validation failed",
			})
			return
		}
	}

	if len(body) == 0 {
		logger.Info(
			"received http request without body",
			logfields.Event("github_http_request_no_body"),
		)

		p.respond(logger, resp, &response{
			Code:    codeNoBodyFound,
			Message: "request has no body",
		})
		return
	}

	logger.Debug(
		"received http request",
		logfields.Event("github_event_received"),
		zap.ByteString("http_body", body),
	)

	payload, err := webhook.Decode(body)
	if err != nil {
		logger.Info(
			"received invalid http request, decoding payload failed",
			logfields.Event("github_event_decoding_failed"),
			zap.Error(err),
		)

		p.respond(logger, resp, &response{
			Code:    codeUnknownInput,
			Message: err.Error(),
		})
		return
	}

	outcome := p.router.Handle(req.Context(), payload)
	p.respond(logger, resp, responseFromOutcome(&outcome))
}

func (p *Provider) respond(logger *zap.Logger, resp http.ResponseWriter, r *response) {
	metrics.ProcessedEventsInc(r.Code)

	lvl := zap.DebugLevel
	if r.Code == codeGithubAPIError {
		lvl = zap.ErrorLevel
	}

	logger.Check(lvl, "webhook request processed").Write(
		logfields.Event("github_event_processed"),
		logfields.Outcome(string(r.Code)),
		zap.String("message", r.Message),
	)

	if err := r.write(resp); err != nil {
		logger.Warn(
			"writing http response failed",
			logfields.Event("github_http_response_write_failed"),
			zap.Error(err),
		)
	}
}

// HealthHandler responds with 200 "OK".
func HealthHandler(resp http.ResponseWriter, _ *http.Request) {
	resp.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(resp, "OK")
}
