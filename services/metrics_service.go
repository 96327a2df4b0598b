package services

import (
	"fmt"
	"sync/atomic"

	"costrict-updater/internal/logger"
	"costrict-updater/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "service_request_total",
			Help: "Total service requests",
		},
		[]string{"service"},
	)

	requestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "service_request_errors_total",
			Help: "Service requests answered with status >= 400",
		},
		[]string{"service"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "service_request_duration_seconds",
			Help:    "Duration of service requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	downloadBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updater_download_bytes_total",
			Help: "Package bytes received, resumed ranges included",
		},
		[]string{"package"},
	)

	downloadOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updater_download_total",
			Help: "Package downloads by outcome",
		},
		[]string{"package", "kind"},
	)

	installOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updater_install_total",
			Help: "Installer runs by last phase and outcome",
		},
		[]string{"phase", "kind"},
	)
)

// 健康检查使用的本地计数
var (
	totalRequests atomic.Int64
	totalErrors   atomic.Int64
)

func init() {
	prometheus.MustRegister(requestCount)
	prometheus.MustRegister(requestErrors)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(downloadBytes)
	prometheus.MustRegister(downloadOutcomes)
	prometheus.MustRegister(installOutcomes)
}

func IncrementRequestCount(service string) {
	requestCount.WithLabelValues(service).Inc()
	totalRequests.Add(1)
}

func IncrementErrorCount(service string) {
	requestErrors.WithLabelValues(service).Inc()
	totalErrors.Add(1)
}

func RecordRequestDuration(service string, seconds float64) {
	requestDuration.WithLabelValues(service).Observe(seconds)
}

func GetTotalRequestCount() int64 {
	return totalRequests.Load()
}

func GetTotalErrorCount() int64 {
	return totalErrors.Load()
}

// RecordDownloadBytes adds n received bytes for the package.
func RecordDownloadBytes(pkg string, n int64) {
	if n > 0 {
		downloadBytes.WithLabelValues(pkg).Add(float64(n))
	}
}

// RecordDownload counts one finished download, labelled by error kind ("ok" on success).
func RecordDownload(pkg string, err error) {
	downloadOutcomes.WithLabelValues(pkg, models.KindName(err)).Inc()
}

// RecordInstall counts one installer run.
func RecordInstall(phase string, err error) {
	installOutcomes.WithLabelValues(phase, models.KindName(err)).Inc()
}

/**
 * Push all registered metrics to a Pushgateway
 * @param {string} gateway - Pushgateway address, empty skips pushing
 * @param {string} job - Job name
 * @returns {error} Error if the push fails
 */
func PushMetrics(gateway, job string) error {
	if gateway == "" {
		logger.Debug("Pushgateway not configured, skip pushing metrics")
		return nil
	}
	if job == "" {
		job = "costrict-updater"
	}
	if err := push.New(gateway, job).Gatherer(prometheus.DefaultGatherer).Push(); err != nil {
		return fmt.Errorf("push metrics to '%s': %w", gateway, err)
	}
	logger.Infof("Metrics pushed to %s (job: %s)", gateway, job)
	return nil
}
