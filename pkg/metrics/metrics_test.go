package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "zonecorr")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.RecordComputation("pc", "range")

			Convey("Then metric names and labels follow the options", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var found bool
				for _, f := range families {
					if f.GetName() == "test_namespace_test_subsystem_computations_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a manager on its own registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(WithPrometheusRegistry(registry))

		Convey("When recording computations and errors", func() {
			m.RecordComputation("pc", "optimize")
			m.RecordComputation("pc", "optimize")
			m.RecordComputation("bprt", "range")
			m.RecordError("compute", "input_format")

			Convey("Then counters carry their labels", func() {
				So(testutil.ToFloat64(m.computations.WithLabelValues("pc", "optimize")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.computations.WithLabelValues("bprt", "range")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.computationErrors.WithLabelValues("compute", "input_format")), ShouldEqual, 1)
			})
		})

		Convey("When updating gauges", func() {
			m.UpdateActiveSessions(4)
			m.UpdateSavedRangeSets("user", 2)
			So(testutil.ToFloat64(m.activeSessions), ShouldEqual, 4)
			So(testutil.ToFloat64(m.savedRangeSets.WithLabelValues("user")), ShouldEqual, 2)
		})

		Convey("When observing histograms", func() {
			m.RecordSolveLatency("optimize", 3.2)
			m.RecordOptimizerIterations(240)
			m.RecordRangeResolution("default")
			m.RecordHTTPRequest("/v1/corrections", "POST", "200")
			m.RecordHTTPRequestDuration("/v1/corrections", "POST", "200", 4.1)

			Convey("Then the registry exposes them", func() {
				n, err := testutil.GatherAndCount(registry,
					"zonecorr_engine_solve_latency_milliseconds",
					"zonecorr_engine_optimizer_iterations",
					"zonecorr_engine_range_resolutions_total",
					"zonecorr_engine_http_requests_total",
				)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 4)
			})
		})
	})
}

func TestGlobalMetrics(t *testing.T) {
	Convey("Given the global manager", t, func() {
		So(func() {
			RecordComputation("pc", "optimize")
			RecordError("compute", "internal")
			RecordSolveLatency("optimize", 1)
			RecordOptimizerIterations(100)
			RecordRangeResolution("user")
			UpdateActiveSessions(1)
			UpdateSavedRangeSets("reactor", 1)
			RecordHTTPRequest("/healthz", "GET", "200")
			RecordHTTPRequestDuration("/healthz", "GET", "200", 0.2)
			UpdateSystemMemoryUsage(1024)
			UpdateSystemGoroutineCount(8)
			RecordSystemGCPauseTime(0.3)
		}, ShouldNotPanic)

		Convey("Then the custom registry holds only service metrics", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(families, ShouldNotBeEmpty)
			for _, f := range families {
				So(strings.HasPrefix(f.GetName(), "zonecorr_"), ShouldBeTrue)
			}
		})
	})
}
