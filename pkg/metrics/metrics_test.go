package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		registry := prometheus.NewRegistry()
		manager := NewManager(
			WithNamespace("test"),
			WithSubsystem("unit"),
			WithHistogramBuckets([]float64{10, 1, 5}),
			WithConstLabel("env", "test"),
			WithConstLabel("ignored", ""),
			WithPrometheusRegistry(registry),
		)
		So(manager, ShouldNotBeNil)

		Convey("When a counter is touched and the registry gathered", func() {
			manager.updatesApplied.Inc()
			families, err := registry.Gather()
			So(err, ShouldBeNil)

			Convey("Then names carry namespace and subsystem plus the constant label", func() {
				var found bool
				for _, f := range families {
					if f.GetName() == "test_unit_updates_applied_total" {
						found = true
						labels := f.GetMetric()[0].GetLabel()
						So(labels, ShouldHaveLength, 1)
						So(labels[0].GetName(), ShouldEqual, "env")
						So(labels[0].GetValue(), ShouldEqual, "test")
					}
					So(strings.HasPrefix(f.GetName(), "test_unit_"), ShouldBeTrue)
				}
				So(found, ShouldBeTrue)
			})

			Convey("Then histogram bounds are sorted", func() {
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 5, 10})
			})
		})

		Convey("When empty option values are given", func() {
			m := NewManager(WithNamespace(""), WithSubsystem(""), WithPrometheusRegistry(prometheus.NewRegistry()))

			Convey("Then defaults are kept", func() {
				So(m.namespace, ShouldEqual, "ecoinvest")
				So(m.subsystem, ShouldEqual, "recommendations")
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording recommendation outcomes", func() {
			beforeMiss := testutil.ToFloat64(globalManager.sectorMisses)
			beforeFound := testutil.ToFloat64(globalManager.recommendations.WithLabelValues("found"))
			RecordRecommendation("found")
			RecordRecommendation("no_regions")

			Convey("Then misses are counted separately", func() {
				So(testutil.ToFloat64(globalManager.sectorMisses), ShouldEqual, beforeMiss+1)
				So(testutil.ToFloat64(globalManager.recommendations.WithLabelValues("found")), ShouldEqual, beforeFound+1)
			})
		})

		Convey("When updating the queue size with a capacity", func() {
			UpdateQueueSize(25, 100)

			Convey("Then utilization is derived", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 25)
				So(testutil.ToFloat64(globalManager.queueUtilization), ShouldEqual, 0.25)
			})
		})

		Convey("When recording everything else", func() {
			So(func() {
				UpdateStatesTotal(28)
				RecordUpdateAccepted()
				RecordUpdateDuplicate()
				RecordUpdateApplied()
				RecordUpdateStale()
				RecordScoringLatency(1.5)
				RecordScoringError()
				RecordStoreError()
				UpdateQueueCapacity(100)
				UpdateQueueSize(0, 0)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueRejected("full")
				UpdateWorkerCount(4)
				RecordWorkerProcessingLatency(2)
				RecordStoreQueryLatency(0.1)
				RecordStoreUpdateLatency(0.2)
				RecordSnapshotRebuild()
				RecordHTTPRequest("/recommendations_by_sector", "POST", "200", 3)
				RecordErrorByEndpoint("/api/states", "GET", "not_found")
				RecordErrorByComponent("worker", "scoring_error")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.4)
			}, ShouldNotPanic)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		before := testutil.ToFloat64(globalManager.queueEnqueued)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					RecordQueueEnqueue()
					RecordHTTPRequest("/stats", "GET", "200", float64(j))
				}
			}()
		}
		wg.Wait()

		Convey("Then every increment is counted", func() {
			So(testutil.ToFloat64(globalManager.queueEnqueued), ShouldEqual, before+1000)
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given the global collectors reconfigured", t, func() {
		before := GetRegistry()
		Configure(WithNamespace("eco"), WithConstLabel("deployment", "staging"))
		defer Configure()

		Convey("When a metric is recorded", func() {
			RecordUpdateApplied()
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)

			Convey("Then it lands on a fresh registry under the new namespace", func() {
				So(GetRegistry(), ShouldNotPointTo, before)
				var found bool
				for _, f := range families {
					if f.GetName() == "eco_recommendations_updates_applied_total" {
						found = true
						So(f.GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 1)
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "staging")
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		Convey("Then it gathers without error", func() {
			_, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
		})
	})
}
