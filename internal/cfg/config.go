package cfg

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml"
	"go.uber.org/multierr"
)

// HealthEndpoint is the fixed http path of the health check endpoint.
const HealthEndpoint = "/healthz"

var logFormats = []string{"logfmt", "json", "console"}

type Config struct {
	HTTPListenAddr            string   `toml:"http_server_listen_addr"`
	HTTPSListenAddr           string   `toml:"https_server_listen_addr"`
	HTTPSCertFile             string   `toml:"https_ssl_cert_file"`
	HTTPSKeyFile              string   `toml:"https_ssl_key_file"`
	HTTPGithubWebhookEndpoint string   `toml:"github_webhook_endpoint" default:"/webhook"`
	GithubWebHookSecret       string   `toml:"github_webhook_secret"`
	PrometheusMetricsEndpoint string   `toml:"prometheus_metrics_endpoint"`
	LogFormat                 string   `toml:"log_format" default:"logfmt"`
	LogTimeKey                string   `toml:"log_time_key" default:"time"`
	LogLevel                  string   `toml:"log_level" default:"info"`
	Github                    Github   `toml:"github"`
	Tracking                  Tracking `toml:"tracking"`
}

// Github configures the access to the project board.
type Github struct {
	APIToken string `toml:"api_token"`
	// GraphQLURL is only needed for GitHub Enterprise servers.
	GraphQLURL    string `toml:"graphql_url"`
	Organization  string `toml:"organization"`
	ProjectNumber int    `toml:"project_number"`
	StatusField   string `toml:"status_field"`
}

// Tracking defines which webhook events cause the project board to be
// queried.
type Tracking struct {
	Actions     []string `toml:"actions"`
	Labels      []string `toml:"labels"`
	FilterQuery string   `toml:"filter_query"`
}

func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(r)
}

// Validate returns an error describing all invalid or missing settings, if
// the configuration is not usable.
func (r *Config) Validate() error {
	var err error

	if r.HTTPListenAddr == "" && r.HTTPSListenAddr == "" {
		err = multierr.Append(err, errors.New("https_server_listen_addr or http_server_listen_addr must be defined, both are unset"))
	}

	if r.HTTPSListenAddr != "" {
		if r.HTTPSCertFile == "" {
			err = multierr.Append(err, errors.New("https_ssl_cert_file must be defined when https_server_listen_addr is set"))
		}

		if r.HTTPSKeyFile == "" {
			err = multierr.Append(err, errors.New("https_ssl_key_file must be defined when https_server_listen_addr is set"))
		}
	}

	err = multierr.Append(err, validateEndpoint("github_webhook_endpoint", r.HTTPGithubWebhookEndpoint))

	if r.PrometheusMetricsEndpoint != "" {
		err = multierr.Append(err, validateEndpoint("prometheus_metrics_endpoint", r.PrometheusMetricsEndpoint))

		if r.PrometheusMetricsEndpoint == r.HTTPGithubWebhookEndpoint {
			err = multierr.Append(err, errors.New("prometheus_metrics_endpoint and github_webhook_endpoint must differ"))
		}
	}

	if !contains(logFormats, r.LogFormat) {
		err = multierr.Append(err, fmt.Errorf("log_format must be one of %s, is %q", strings.Join(logFormats, ", "), r.LogFormat))
	}

	if r.LogTimeKey == "" {
		err = multierr.Append(err, errors.New("log_time_key must not be empty"))
	}

	err = multierr.Append(err, r.Github.validate())
	err = multierr.Append(err, r.Tracking.validate())

	return err
}

func validateEndpoint(key, endpoint string) error {
	if !strings.HasPrefix(endpoint, "/") {
		return fmt.Errorf("%s must start with a \"/\", is %q", key, endpoint)
	}

	if endpoint == HealthEndpoint {
		return fmt.Errorf("%s must not be %q", key, HealthEndpoint)
	}

	return nil
}

func (g *Github) validate() error {
	var err error

	if g.APIToken == "" {
		err = multierr.Append(err, errors.New("github.api_token must be defined"))
	}

	if g.Organization == "" {
		err = multierr.Append(err, errors.New("github.organization must be defined"))
	}

	if g.ProjectNumber < 0 {
		err = multierr.Append(err, fmt.Errorf("github.project_number must be >=0, is %d", g.ProjectNumber))
	}

	if g.StatusField == "" {
		err = multierr.Append(err, errors.New("github.status_field must be defined"))
	}

	return err
}

func (t *Tracking) validate() error {
	var err error

	if len(t.Actions) == 0 {
		err = multierr.Append(err, errors.New("tracking.actions must contain at least one action"))
	}

	if len(t.Labels) == 0 {
		err = multierr.Append(err, errors.New("tracking.labels must contain at least one label"))
	}

	return err
}

func contains(sl []string, s string) bool {
	for _, elem := range sl {
		if elem == s {
			return true
		}
	}

	return false
}
