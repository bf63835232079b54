package githubclt

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/simplesurance/plannersync/internal/syncerr"
)

const metricNamespace = "plannersync"

const queryDurationMetricName = "github_query_duration_seconds"

const resultLabel = "result"

type resultLabelVal string

const (
	resultLabelSuccessVal         resultLabelVal = "success"
	resultLabelTransportVal       resultLabelVal = "transport_error"
	resultLabelGraphQLVal         resultLabelVal = "graphql_error"
	resultLabelNoDataVal          resultLabelVal = "no_data"
	resultLabelOrgNotFoundVal     resultLabelVal = "organization_not_found"
	resultLabelProjectNotFoundVal resultLabelVal = "project_not_found"
	resultLabelItemsNotFoundVal   resultLabelVal = "items_not_found"
	resultLabelUnknownVal         resultLabelVal = "unknown_error"
)

type metricCollector struct {
	queryDuration *prometheus.HistogramVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		queryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricNamespace,
				Name:      queryDurationMetricName,
				Help:      "duration of github graphql project queries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{resultLabel},
		),
	}
}

func resultLabelFromErr(err error) resultLabelVal {
	if err == nil {
		return resultLabelSuccessVal
	}

	switch {
	case errors.Is(err, syncerr.KindTransport):
		return resultLabelTransportVal
	case errors.Is(err, syncerr.KindGraphQL):
		return resultLabelGraphQLVal
	case errors.Is(err, syncerr.KindNoData):
		return resultLabelNoDataVal
	case errors.Is(err, syncerr.KindOrgNotFound):
		return resultLabelOrgNotFoundVal
	case errors.Is(err, syncerr.KindProjectNotFound):
		return resultLabelProjectNotFoundVal
	case errors.Is(err, syncerr.KindItemsNotFound):
		return resultLabelItemsNotFoundVal
	default:
		return resultLabelUnknownVal
	}
}

func (m *metricCollector) ObserveQuery(err error, duration time.Duration) {
	m.queryDuration.
		WithLabelValues(string(resultLabelFromErr(err))).
		Observe(duration.Seconds())
}
