package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/kkkkikiki/checkout/internal/rpc"
)

// PerfResult gathers aggregated metrics for the test run.
// Atomic counters are used to avoid lock-contention on hot paths.
// LatencySum & P95Latency are in nanoseconds.
type PerfResult struct {
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64
	LatencySum    int64
	P95Latency    int64
}

const defaultTimeout = 30 * time.Second

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "checkout service base URL")
	code := flag.String("code", "LAUNCH50", "coupon code to validate")
	plan := flag.String("plan", "template", "plan id to validate against")
	rps := flag.Int("rps", 700, "target requests per second")
	workers := flag.Int("workers", 50, "concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	// ─── HTTP Client & Transport ─────────────────────────────────
	transport := &http.Transport{
		MaxIdleConns:        *workers * 4,
		MaxIdleConnsPerHost: *workers * 4,
		IdleConnTimeout:     90 * time.Second,
	}
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   defaultTimeout,
	}
	client := rpc.NewCouponClient(httpClient, *baseURL)

	before, err := client.GetCoupon(context.Background(), *code)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load coupon %s: %v\n", *code, err)
		os.Exit(1)
	}

	fmt.Println("==========================================")
	fmt.Println("Coupon validation load test")
	fmt.Println("==========================================")
	fmt.Printf("Coupon        : %s (%d/%d used)\n", before.Code, before.CurrentUses, before.MaxUses)
	fmt.Printf("Plan          : %s\n", *plan)
	fmt.Printf("RPS           : %d\n", *rps)
	fmt.Printf("Duration      : %v\n", *duration)
	fmt.Println("==========================================")

	burst := *rps / *workers
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(*rps), burst)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var result PerfResult
	var wg sync.WaitGroup

	latencyChan := make(chan time.Duration, 4096)
	var trackerDone sync.WaitGroup
	trackerDone.Add(1)
	go func() {
		defer trackerDone.Done()
		trackP95(latencyChan, &result)
	}()

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil { // context cancelled → exit
					return
				}
				doRequest(client, *code, *plan, &result, latencyChan)
			}
		}()
	}

	start := time.Now()
	<-ctx.Done()

	wg.Wait()
	close(latencyChan)
	trackerDone.Wait()

	totalDur := time.Since(start)

	fmt.Println("==========================================")
	fmt.Println("Results")
	fmt.Println("==========================================")
	fmt.Printf("Elapsed       : %.2fs\n", totalDur.Seconds())
	fmt.Printf("Requests      : %d\n", result.TotalRequests)
	fmt.Printf("Succeeded     : %d\n", result.SuccessCount)
	fmt.Printf("Failed        : %d\n", result.ErrorCount)

	var avgLatency time.Duration
	if result.SuccessCount > 0 {
		avgLatency = time.Duration(result.LatencySum / result.SuccessCount)
	}
	var successRate float64
	if result.TotalRequests > 0 {
		successRate = float64(result.SuccessCount) / float64(result.TotalRequests) * 100
	}
	fmt.Printf("Actual RPS    : %.2f\n", float64(result.SuccessCount)/totalDur.Seconds())
	fmt.Printf("Success rate  : %.2f%%\n", successRate)
	fmt.Printf("Avg latency   : %v\n", avgLatency)
	fmt.Printf("P95 latency   : %v\n", time.Duration(result.P95Latency))

	// ─── Data Consistency Check ─────────────────────────────────
	fmt.Println("==========================================")
	if err := verifyUsageUnchanged(client, *code, before.CurrentUses); err != nil {
		fmt.Printf("consistency check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("consistency check passed: validation never recorded a use")
	fmt.Println("==========================================")
}

// doRequest performs a single ValidateCoupon RPC and collects metrics.
func doRequest(client *rpc.CouponClient, code, plan string, result *PerfResult, latencyChan chan<- time.Duration) {
	// Use independent context to avoid cancellation when test ends
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	start := time.Now()
	atomic.AddInt64(&result.TotalRequests, 1)

	_, err := client.ValidateCoupon(ctx, code, plan, "")
	latency := time.Since(start)

	if err != nil {
		atomic.AddInt64(&result.ErrorCount, 1)
		return
	}
	atomic.AddInt64(&result.SuccessCount, 1)
	atomic.AddInt64(&result.LatencySum, latency.Nanoseconds())
	select {
	case latencyChan <- latency:
	default:
	}
}

// trackP95 maintains a best-effort rolling P95 latency estimation.
func trackP95(latencies <-chan time.Duration, result *PerfResult) {
	const size = 1000
	buf := make([]int64, 0, size)

	for lat := range latencies {
		if len(buf) < size {
			buf = append(buf, lat.Nanoseconds())
		} else if idx := time.Now().UnixNano() % int64(size); idx < int64(size/10) {
			buf[idx] = lat.Nanoseconds()
		}

		if len(buf) >= 100 && len(buf)%100 == 0 {
			atomic.StoreInt64(&result.P95Latency, percentile(buf, 0.95))
		}
	}
}

// percentile returns the p-th percentile of samples without reordering them.
func percentile(samples []int64, p float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]int64, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// verifyUsageUnchanged checks that validating never consumed the coupon.
func verifyUsageUnchanged(client *rpc.CouponClient, code string, want int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	after, err := client.GetCoupon(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to get coupon: %w", err)
	}

	fmt.Printf("Coupon        : %s\n", after.Code)
	fmt.Printf("Uses before   : %d\n", want)
	fmt.Printf("Uses after    : %d\n", after.CurrentUses)

	if after.CurrentUses != want {
		return fmt.Errorf("usage drifted: before=%d after=%d", want, after.CurrentUses)
	}
	return nil
}
