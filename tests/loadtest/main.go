package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	baseURL      = "http://127.0.0.1:18090"
	numWorkers   = 50
	testDuration = 10 * time.Second
	numPosts     = 500
	numUsers     = 200
)

var reactionKinds = []string{"like", "love", "yum", "wow", "laugh"}
var activityKinds = []string{"typing", "viewing", "online"}

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

func main() {
	fmt.Println("=== RSD Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s\n", numWorkers, testDuration)
	fmt.Printf("Posts: %d | Users: %d\n\n", numPosts, numUsers)

	// Wait for server
	fmt.Print("Waiting for server... ")
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(baseURL + "/sync/status")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	// Phase 1: Seed engagement and feeds with writes
	fmt.Println("\n--- Phase 1: Seeding data (writes only) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.40:
			return doPostReaction(rng)
		case r < 0.70:
			return doPostView(rng)
		case r < 0.85:
			return doPostActivity(rng)
		default:
			return doPublishFeed(rng)
		}
	})

	// Phase 2: Mixed read/write load
	fmt.Println("\n--- Phase 2: Mixed load (60% write, 40% read) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.25:
			return doPostReaction(rng)
		case r < 0.45:
			return doPostView(rng)
		case r < 0.60:
			return doPostActivity(rng)
		case r < 0.75:
			return doGetEngagement(rng)
		case r < 0.85:
			return doGetPresence(rng)
		case r < 0.95:
			return doGetFeed(rng)
		default:
			return doGetViewers(rng)
		}
	})

	// Phase 3: Read-heavy load
	fmt.Println("\n--- Phase 3: Read-heavy load (10% write, 90% read) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.10:
			return doPostReaction(rng)
		case r < 0.45:
			return doGetEngagement(rng)
		case r < 0.65:
			return doGetPresence(rng)
		case r < 0.85:
			return doGetFeed(rng)
		default:
			return doGetViewers(rng)
		}
	})
}

func runPhase(duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	var totalOps atomic.Int64
	stop := make(chan struct{})

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					r := workFn(rng)
					totalOps.Add(1)
					results <- r
				}
			}
		}(rand.Int63() + int64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, duration)
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-22s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + repeat("-", 88))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		avg := avgDuration(s.latencies)
		p50 := percentile(s.latencies, 0.50)
		p95 := percentile(s.latencies, 0.95)
		p99 := percentile(s.latencies, 0.99)

		fmt.Printf("  %-22s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors, fmtDur(avg), fmtDur(p50), fmtDur(p95), fmtDur(p99))
	}

	rps := float64(totalOps) / duration.Seconds()
	fmt.Println("  " + repeat("-", 88))
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, rps)
}

func postJSON(endpoint string, body map[string]interface{}, wantStatus int) result {
	data, _ := json.Marshal(body)
	start := time.Now()
	resp, err := httpClient.Post(baseURL+endpoint, "application/json", bytes.NewReader(data))
	lat := time.Since(start)
	label := "POST " + endpoint
	if err != nil {
		return result{label, 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{label, resp.StatusCode, lat, resp.StatusCode != wantStatus}
}

func getURL(label, url string) result {
	start := time.Now()
	resp, err := httpClient.Get(url)
	lat := time.Since(start)
	if err != nil {
		return result{label, 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{label, resp.StatusCode, lat, resp.StatusCode != 200}
}

func postID(rng *rand.Rand) string {
	return fmt.Sprintf("post_%d", rng.Intn(numPosts)+1)
}

func userID(rng *rand.Rand) string {
	return fmt.Sprintf("user_%d", rng.Intn(numUsers)+1)
}

func doPostReaction(rng *rand.Rand) result {
	return postJSON("/reactions", map[string]interface{}{
		"post_id": postID(rng),
		"user_id": userID(rng),
		"kind":    reactionKinds[rng.Intn(len(reactionKinds))],
	}, 201)
}

func doPostView(rng *rand.Rand) result {
	return postJSON("/views", map[string]interface{}{
		"post_id": postID(rng),
		"user_id": userID(rng),
	}, 201)
}

func doPostActivity(rng *rand.Rand) result {
	kind := activityKinds[rng.Intn(len(activityKinds))]
	body := map[string]interface{}{
		"user_id": userID(rng),
		"kind":    kind,
	}
	if kind != "online" {
		body["target_id"] = postID(rng)
	}
	return postJSON("/activity", body, 202)
}

func doPublishFeed(rng *rand.Rand) result {
	pid := postID(rng)
	return postJSON("/feed", map[string]interface{}{
		"owner_user_id": userID(rng),
		"kind":          "new_post",
		"payload":       map[string]string{"post_id": pid, "author_id": userID(rng)},
		"priority":      rng.Intn(10),
	}, 201)
}

func doGetEngagement(rng *rand.Rand) result {
	return getURL("GET /engagement", fmt.Sprintf("%s/engagement?post=%s", baseURL, postID(rng)))
}

func doGetPresence(rng *rand.Rand) result {
	return getURL("GET /presence", fmt.Sprintf("%s/presence?user=%s", baseURL, userID(rng)))
}

func doGetViewers(rng *rand.Rand) result {
	return getURL("GET /viewers", fmt.Sprintf("%s/viewers?post=%s", baseURL, postID(rng)))
}

func doGetFeed(rng *rand.Rand) result {
	return getURL("GET /feed", fmt.Sprintf("%s/feed?user=%s", baseURL, userID(rng)))
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
