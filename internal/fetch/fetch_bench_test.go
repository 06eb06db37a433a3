package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// Benchmark the fetch.Client under different concurrency and pacing settings.
func BenchmarkClient_FetchConcurrencyAndPacing(b *testing.B) {
	body := make([]byte, 32<<10)
	copy(body, pdfBody)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(body)
	}))
	defer ts.Close()

	runScenario := func(name string, maxConc int, rps float64) {
		b.Run(name, func(b *testing.B) {
			cli := &Client{
				HTTPClient:        ts.Client(),
				UserAgent:         "bench/1",
				MaxAttempts:       1,
				PerRequestTimeout: 2 * time.Second,
				MaxConcurrent:     maxConc,
				RequestsPerSecond: rps,
			}
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					_, _, err := cli.Get(ctx, ts.URL)
					cancel()
					if err != nil {
						b.Fatalf("fetch failed: %v", err)
					}
				}
			})
		})
	}

	runScenario("conc=1", 1, 0)
	runScenario("conc=8", 8, 0)
	runScenario("conc=8,rps=1000", 8, 1000)
}
