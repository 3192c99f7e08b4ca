package metrics

import (
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "sitedeploy"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once           sync.Once
	dispatches     *prom.CounterVec
	launchDuration *prom.HistogramVec
	buildDuration  prom.Histogram
	buildOutcomes  *prom.CounterVec
	uploads        *prom.CounterVec
	uploadBytes    prom.Counter
	proxyDuration  *prom.HistogramVec
	routingErrors  *prom.CounterVec
	agentTasks     *prom.CounterVec
	swept          prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.dispatches = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_requests_total",
			Help:      "Deployment requests by outcome",
		}, []string{"outcome"})
		pr.launchDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "launch_duration_seconds",
			Help:      "Duration of Task Launcher submissions",
			Buckets:   prom.DefBuckets,
		}, []string{"launcher", "result"})
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Build worker run duration",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		})
		pr.buildOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build worker runs by final outcome",
		}, []string{"outcome"})
		pr.uploads = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_uploads_total",
			Help:      "Artifact uploads by result",
		}, []string{"result"})
		pr.uploadBytes = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_upload_bytes_total",
			Help:      "Bytes successfully uploaded to the artifact store",
		})
		pr.proxyDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "proxy_request_duration_seconds",
			Help:      "Artifact router request duration by upstream status code",
			Buckets:   prom.DefBuckets,
		}, []string{"code"})
		pr.routingErrors = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "routing_errors_total",
			Help:      "Requests the artifact router could not route",
		}, []string{"reason"})
		pr.agentTasks = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "agent_tasks_total",
			Help:      "Tasks executed by the build agent by result",
		}, []string{"result"})
		pr.swept = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "workspaces_swept_total",
			Help:      "Stale workspaces removed by the janitor",
		})
		reg.MustRegister(pr.dispatches, pr.launchDuration, pr.buildDuration, pr.buildOutcomes,
			pr.uploads, pr.uploadBytes, pr.proxyDuration, pr.routingErrors, pr.agentTasks, pr.swept)
	})
	return pr
}

func (p *PrometheusRecorder) IncDispatch(outcome DispatchOutcomeLabel) {
	if p == nil || p.dispatches == nil {
		return
	}
	p.dispatches.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveLaunchDuration(launcher string, d time.Duration, success bool) {
	if p == nil || p.launchDuration == nil {
		return
	}
	res := ResultFailed
	if success {
		res = ResultSuccess
	}
	p.launchDuration.WithLabelValues(launcher, string(res)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil || p.buildOutcomes == nil {
		return
	}
	p.buildOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncUpload(result ResultLabel, bytes int64) {
	if p == nil || p.uploads == nil {
		return
	}
	p.uploads.WithLabelValues(string(result)).Inc()
	if result == ResultSuccess && bytes > 0 {
		p.uploadBytes.Add(float64(bytes))
	}
}

func (p *PrometheusRecorder) ObserveProxyRequest(status int, d time.Duration) {
	if p == nil || p.proxyDuration == nil {
		return
	}
	p.proxyDuration.WithLabelValues(strconv.Itoa(status)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRoutingError(reason string) {
	if p == nil || p.routingErrors == nil {
		return
	}
	p.routingErrors.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) IncAgentTask(result ResultLabel) {
	if p == nil || p.agentTasks == nil {
		return
	}
	p.agentTasks.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncWorkspacesSwept(n int) {
	if p == nil || p.swept == nil || n <= 0 {
		return
	}
	p.swept.Add(float64(n))
}
