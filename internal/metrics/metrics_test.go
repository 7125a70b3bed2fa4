package metrics_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/angeloszaimis/authguard/internal/metrics"
)

var _ = Describe("Recorder", func() {
	var rec *metrics.Recorder

	BeforeEach(func() {
		rec = metrics.NewRecorder(false)
	})

	Describe("FetchServed", func() {
		It("should count fetches per source", func() {
			rec.FetchServed("cache")
			rec.FetchServed("cache")
			rec.FetchServed("network")

			expected := `
# HELP authguard_fetch_total Credential sets returned, by source.
# TYPE authguard_fetch_total counter
authguard_fetch_total{source="cache"} 2
authguard_fetch_total{source="network"} 1
`
			Expect(testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "authguard_fetch_total")).To(Succeed())
		})
	})

	Describe("AttemptFinished", func() {
		It("should count the outcome and observe the duration", func() {
			rec.AttemptFinished("retryable", 200*time.Millisecond)
			rec.AttemptFinished("success", 100*time.Millisecond)

			n, err := testutil.GatherAndCount(rec.Registry(), "authguard_attempts_total")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
			n, err = testutil.GatherAndCount(rec.Registry(), "authguard_attempt_duration_seconds")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
		})
	})

	Describe("breaker and cache counters", func() {
		It("should count rejections, transitions and write errors", func() {
			rec.BreakerRejected()
			rec.BreakerChanged("OPEN")
			rec.CacheWriteFailed()
			rec.CacheWriteFailed()

			n, err := testutil.GatherAndCount(rec.Registry(),
				"authguard_breaker_rejections_total",
				"authguard_breaker_transitions_total",
				"authguard_cache_write_errors_total")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))
		})
	})

	Describe("WriteTextfile", func() {
		It("should write the exposition format", func() {
			rec.FetchFailed("transport")
			path := filepath.Join(GinkgoT().TempDir(), "authguard.prom")

			Expect(rec.WriteTextfile(path)).To(Succeed())
			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`authguard_fetch_errors_total{kind="transport"} 1`))
		})
	})

	Describe("Handler", func() {
		It("should serve the registry", func() {
			rec.FetchServed("network")
			w := httptest.NewRecorder()

			rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`authguard_fetch_total{source="network"} 1`))
		})
	})

	Describe("HealthHandler", func() {
		It("should report totals as JSON", func() {
			rec.FetchServed("cache")
			rec.FetchServed("network")
			rec.FetchFailed("breaker_open")
			w := httptest.NewRecorder()

			rec.HealthHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(Equal("application/json"))

			var snap metrics.Snapshot
			Expect(json.Unmarshal(w.Body.Bytes(), &snap)).To(Succeed())
			Expect(snap.Status).To(Equal("ok"))
			Expect(snap.Fetches).To(Equal(int64(2)))
			Expect(snap.Errors).To(Equal(int64(1)))
		})
	})
})
