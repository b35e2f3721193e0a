// Command loadgen drives synthetic traffic against a running prediction
// server: mostly valid predictions sampled around the training distribution,
// some malformed payloads, periodic drift checks, and optionally a stream of
// shifted inputs to exercise drift detection.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// featureStat approximates the training distribution of one input feature.
type featureStat struct {
	name string
	mean float64
	std  float64
}

// Rough red-wine training statistics; close enough for generating plausible
// traffic.
var featureStats = []featureStat{
	{"fixed acidity", 8.32, 1.74},
	{"volatile acidity", 0.53, 0.18},
	{"citric acid", 0.27, 0.19},
	{"residual sugar", 2.54, 1.41},
	{"chlorides", 0.087, 0.047},
	{"free sulfur dioxide", 15.9, 10.5},
	{"total sulfur dioxide", 46.5, 32.9},
	{"density", 0.9967, 0.0019},
	{"pH", 3.31, 0.15},
	{"sulphates", 0.66, 0.17},
	{"alcohol", 10.42, 1.07},
}

type stats struct {
	mu        sync.Mutex
	counts    map[string]int
	failures  map[string]int
	latencies map[string]time.Duration
}

func newStats() *stats {
	return &stats{
		counts:    make(map[string]int),
		failures:  make(map[string]int),
		latencies: make(map[string]time.Duration),
	}
}

func (s *stats) record(task string, latency time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[task]++
	s.latencies[task] += latency
	if !ok {
		s.failures[task]++
	}
}

func (s *stats) summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]string, 0, len(s.counts))
	for task := range s.counts {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)

	out := fmt.Sprintf("%-28s %8s %8s %12s\n", "task", "count", "fail", "avg latency")
	for _, task := range tasks {
		avg := time.Duration(0)
		if s.counts[task] > 0 {
			avg = s.latencies[task] / time.Duration(s.counts[task])
		}
		out += fmt.Sprintf("%-28s %8d %8d %12s\n", task, s.counts[task], s.failures[task], avg)
	}
	return out
}

func main() {
	target := flag.String("target", "http://localhost:8080", "base URL of the prediction server")
	users := flag.Int("users", 4, "number of concurrent virtual users")
	duration := flag.Duration("duration", 60*time.Second, "how long to run")
	driftMode := flag.Bool("drift", false, "send drifted inputs (extreme alcohol values)")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Info().
		Str("target", *target).
		Int("users", *users).
		Dur("duration", *duration).
		Bool("drift", *driftMode).
		Msg("starting load generation")

	st := newStats()
	deadline := time.Now().Add(*duration)

	var wg sync.WaitGroup
	for i := 0; i < *users; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			runUser(rand.New(rand.NewSource(seed)), *target, deadline, *driftMode, st)
		}(time.Now().UnixNano() + int64(i))
	}
	wg.Wait()

	fmt.Fprint(os.Stdout, st.summary())
}

func runUser(rng *rand.Rand, target string, deadline time.Time, driftMode bool, st *stats) {
	client := resty.New().SetBaseURL(target).SetTimeout(10 * time.Second)

	for time.Now().Before(deadline) {
		// Weighted task mix: 5 valid, 3 drifted (or valid), 1 invalid,
		// 1 drift check, 1 homepage.
		switch pick := rng.Intn(11); {
		case pick < 5:
			predictValid(rng, client, st)
		case pick < 8:
			if driftMode {
				predictDrifted(rng, client, st)
			} else {
				predictValid(rng, client, st)
			}
		case pick < 9:
			predictInvalid(client, st)
		case pick < 10:
			triggerDriftCheck(client, st)
		default:
			visitHomepage(client, st)
		}

		// Human-ish pacing between tasks.
		time.Sleep(time.Duration(1000+rng.Intn(2000)) * time.Millisecond)
	}
}

func sampleFeatures(rng *rand.Rand) map[string]float64 {
	payload := make(map[string]float64, len(featureStats))
	for _, fs := range featureStats {
		v := fs.mean + rng.NormFloat64()*fs.std
		payload[fs.name] = math.Max(v, 0.001)
	}
	return payload
}

func predictValid(rng *rand.Rand, client *resty.Client, st *stats) {
	start := time.Now()
	resp, err := client.R().SetBody(sampleFeatures(rng)).Post("/predict")
	st.record("POST /predict [valid]", time.Since(start), err == nil && resp.StatusCode() == 200)
}

func predictDrifted(rng *rand.Rand, client *resty.Client, st *stats) {
	payload := sampleFeatures(rng)
	payload["alcohol"] = 50.0

	start := time.Now()
	resp, err := client.R().SetBody(payload).Post("/predict")
	st.record("POST /predict [drifted]", time.Since(start), err == nil && resp.StatusCode() == 200)
}

func predictInvalid(client *resty.Client, st *stats) {
	payload := map[string]interface{}{
		"fixed acidity":        "not_a_number",
		"volatile acidity":     0.7,
		"citric acid":          0.0,
		"residual sugar":       1.9,
		"chlorides":            0.076,
		"free sulfur dioxide":  11.0,
		"total sulfur dioxide": 34.0,
		"density":              0.9978,
		"pH":                   3.51,
		"sulphates":            0.56,
		"alcohol":              9.4,
	}

	start := time.Now()
	resp, err := client.R().SetBody(payload).Post("/predict")
	// A rejection is the expected outcome here.
	st.record("POST /predict [invalid]", time.Since(start), err == nil && resp.StatusCode() == 400)
}

func triggerDriftCheck(client *resty.Client, st *stats) {
	start := time.Now()
	resp, err := client.R().Get("/check_drift")
	ok := err == nil && (resp.StatusCode() == 200 || resp.StatusCode() == 503)
	st.record("GET /check_drift", time.Since(start), ok)
}

func visitHomepage(client *resty.Client, st *stats) {
	start := time.Now()
	resp, err := client.R().Get("/")
	st.record("GET /", time.Since(start), err == nil && resp.StatusCode() == 200)
}
