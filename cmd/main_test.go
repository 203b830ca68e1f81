package main

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/ecoinvest/internal/config"
	"github.com/okian/ecoinvest/internal/recommend"
	"github.com/okian/ecoinvest/internal/recommend/term"
	"github.com/okian/ecoinvest/pkg/logger"
	"github.com/okian/ecoinvest/pkg/metrics"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

type runResult struct {
	base string
	done chan error
	stop context.CancelFunc
}

func startServer(t *testing.T, cfg *config.Config) runResult {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, ln) }()
	return runResult{base: "http://" + ln.Addr().String(), done: done, stop: cancel}
}

func (r runResult) shutdown() error {
	r.stop()
	select {
	case err := <-r.done:
		return err
	case <-time.After(10 * time.Second):
		return errors.New("server did not stop")
	}
}

func TestConfigFromEnv(t *testing.T) {
	convey.Convey("Given server env vars", t, func() {
		t.Setenv("ECOINVEST_ADDR", ":8080")
		t.Setenv("ECOINVEST_QUEUE_SIZE", "1000")
		t.Setenv("ECOINVEST_WORKER_COUNT", "4")

		convey.Convey("Then configuration picks them up", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.UpdateQueueSize, convey.ShouldEqual, 1000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
		})
	})
}

func TestMetricsOptions(t *testing.T) {
	convey.Convey("Given metrics settings in the config", t, func() {
		cfg := config.New()
		cfg.MetricsNamespace = "eco"
		cfg.MetricsDeployment = "staging"
		cfg.MetricsBuckets = []float64{1, 10}
		registry := prometheus.NewRegistry()
		metrics.NewManager(append(metricsOptions(cfg), metrics.WithPrometheusRegistry(registry))...)

		convey.Convey("Then the collectors carry them", func() {
			families, err := registry.Gather()
			convey.So(err, convey.ShouldBeNil)
			seen := map[string]bool{}
			for _, f := range families {
				seen[f.GetName()] = true
				switch f.GetName() {
				case "eco_recommendations_updates_applied_total":
					label := f.GetMetric()[0].GetLabel()[0]
					convey.So(label.GetName(), convey.ShouldEqual, "deployment")
					convey.So(label.GetValue(), convey.ShouldEqual, "staging")
				case "eco_recommendations_scoring_latency_milliseconds":
					convey.So(f.GetMetric()[0].GetHistogram().GetBucket(), convey.ShouldHaveLength, 2)
				}
			}
			convey.So(seen["eco_recommendations_updates_applied_total"], convey.ShouldBeTrue)
			convey.So(seen["eco_recommendations_scoring_latency_milliseconds"], convey.ShouldBeTrue)
		})
	})
}

func TestRunEndToEnd(t *testing.T) {
	convey.Convey("Given a running server on the seed dataset", t, func() {
		cfg := config.New()
		cfg.WorkerCount = 2
		srv := startServer(t, cfg)

		convey.Convey("When the client submits organic farming", func() {
			area := term.NewListArea(io.Discard)
			chart := term.NewBarChart(io.Discard, term.WithWidth(60))
			h := recommend.New(recommend.NewHTTPSubmitter(srv.base), area, chart)
			reply, err := h.Submit(context.Background(), "organic farming")

			convey.Convey("Then Sikkim is listed and charted", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(reply.Failed(), convey.ShouldBeFalse)
				convey.So(area.Items(), convey.ShouldResemble, []string{"State: Sikkim, Combined ESI: 60.227475"})
				last, ok := chart.Last()
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(last.Labels, convey.ShouldResemble, []string{"Sikkim"})
				convey.So(srv.shutdown(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the client submits an unknown sector", func() {
			area := term.NewListArea(io.Discard)
			chart := term.NewBarChart(io.Discard)
			h := recommend.New(recommend.NewHTTPSubmitter(srv.base), area, chart)
			_, err := h.Submit(context.Background(), "space mining")

			convey.Convey("Then the server message is shown", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(area.Text(), convey.ShouldEqual, "No regions found for the sector: space mining")
				_, drawn := chart.Last()
				convey.So(drawn, convey.ShouldBeFalse)
				convey.So(srv.shutdown(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the dashboard is rendered", func() {
			resp, err := http.Get(srv.base + "/api/states")
			convey.So(err, convey.ShouldBeNil)
			var states []struct {
				State string `json:"State"`
			}
			convey.So(json.NewDecoder(resp.Body).Decode(&states), convey.ShouldBeNil)
			_ = resp.Body.Close()

			resp, err = http.Get(srv.base + "/")
			convey.So(err, convey.ShouldBeNil)
			page, err := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then every state appears in the full table, not only the top ten", func() {
				convey.So(states, convey.ShouldHaveLength, 28)
				_, table, found := strings.Cut(string(page), `id="statesTable"`)
				convey.So(found, convey.ShouldBeTrue)
				for _, s := range states {
					convey.So(table, convey.ShouldContainSubstring, "<td>"+html.EscapeString(s.State)+"</td>")
				}
				convey.So(table, convey.ShouldContainSubstring, "<td>Punjab</td>")
				convey.So(srv.shutdown(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the docs and dashboard are fetched", func() {
			for _, path := range []string{"/", "/api-docs", "/openapi.yaml", "/healthz", "/stats"} {
				resp, err := http.Get(srv.base + path)
				convey.So(err, convey.ShouldBeNil)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(resp.Header.Get("X-Request-ID"), convey.ShouldNotBeEmpty)
			}
			convey.So(srv.shutdown(), convey.ShouldBeNil)
		})
	})
}

func TestRunWithSQLite(t *testing.T) {
	convey.Convey("Given the sqlite backend", t, func() {
		cfg := config.New()
		cfg.StoreBackend = config.BackendSQLite
		cfg.SQLitePath = filepath.Join(t.TempDir(), "eco.db")
		srv := startServer(t, cfg)

		convey.Convey("Then the server starts, serves and persists the seed", func() {
			resp, err := http.Get(srv.base + "/api/sectors")
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			convey.So(srv.shutdown(), convey.ShouldBeNil)

			_, err = os.Stat(cfg.SQLitePath)
			convey.So(err, convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a dataset path that does not exist", t, func() {
		cfg := config.New()
		cfg.DatasetPath = "/no/such/states.yaml"
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then run fails before serving", func() {
			convey.So(run(context.Background(), cfg, ln), convey.ShouldNotBeNil)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given cancelled contexts", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		convey.Convey("Then the updaters return", func() {
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			convey.So(func() { updateSystemMetrics() }, convey.ShouldNotPanic)
		})
	})
}
