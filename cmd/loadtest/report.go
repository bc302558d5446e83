package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/bytedance/sonic"
)

// codeTransport - запрос не получил HTTP-ответа.
const codeTransport = 0

type latencySummary struct {
	Min float64 `json:"min"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

type endpointReport struct {
	Calls     int64            `json:"calls"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time                 `json:"started_at"`
	DurationSeconds   float64                   `json:"duration_seconds"`
	TotalScenarios    int64                     `json:"total_scenarios"`
	FailedScenarios   int64                     `json:"failed_scenarios"`
	ErrorRate         float64                   `json:"error_rate"`
	RPS               float64                   `json:"rps"`
	ScenarioLatencyMs latencySummary            `json:"scenario_latency_ms"`
	Endpoints         map[string]endpointReport `json:"endpoints"`
}

type samples struct {
	failed int64
	codes  map[string]int64
	ms     []float64
}

// recorder накапливает результаты вызовов по эндпоинтам.
type recorder struct {
	mu   sync.Mutex
	data map[string]*samples
}

func newRecorder() *recorder {
	return &recorder{data: make(map[string]*samples)}
}

func (r *recorder) observe(endpoint string, code int, ok bool, latency time.Duration) {
	label := strconv.Itoa(code)
	if code == codeTransport {
		label = "transport_error"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.data[endpoint]
	if s == nil {
		s = &samples{codes: make(map[string]int64)}
		r.data[endpoint] = s
	}
	if !ok {
		s.failed++
	}
	s.codes[label]++
	s.ms = append(s.ms, float64(latency)/float64(time.Millisecond))
}

func (r *recorder) report(started time.Time, elapsed time.Duration) report {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := report{
		StartedAt:       started.UTC(),
		DurationSeconds: elapsed.Seconds(),
		Endpoints:       make(map[string]endpointReport, len(r.data)),
	}
	for name, s := range r.data {
		calls := int64(len(s.ms))
		ep := endpointReport{
			Calls:     calls,
			Failed:    s.failed,
			ErrorRate: rate(s.failed, calls),
			Codes:     make(map[string]int64, len(s.codes)),
			LatencyMs: summarize(s.ms),
		}
		for code, n := range s.codes {
			ep.Codes[code] = n
		}
		out.Endpoints[name] = ep
	}

	if sc, ok := out.Endpoints[endpointScenario]; ok {
		out.TotalScenarios = sc.Calls
		out.FailedScenarios = sc.Failed
		out.ErrorRate = sc.ErrorRate
		out.ScenarioLatencyMs = sc.LatencyMs
	}
	if elapsed > 0 {
		out.RPS = float64(out.TotalScenarios) / elapsed.Seconds()
	}
	return out
}

// summarize считает перцентили методом ближайшего ранга.
func summarize(ms []float64) latencySummary {
	if len(ms) == 0 {
		return latencySummary{}
	}
	sorted := slices.Clone(ms)
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return latencySummary{
		Min: sorted[0],
		Avg: sum / float64(len(sorted)),
		P50: nearestRank(sorted, 50),
		P95: nearestRank(sorted, 95),
		P99: nearestRank(sorted, 99),
		Max: sorted[len(sorted)-1],
	}
}

func nearestRank(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func rate(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

func printReport(w io.Writer, cfg config, r report) {
	_, _ = fmt.Fprintf(w, "mode=%s target=%s scenarios=%d failed=%d error_rate=%.4f duration=%.2fs rps=%.2f\n",
		cfg.mode, cfg.target(), r.TotalScenarios, r.FailedScenarios, r.ErrorRate, r.DurationSeconds, r.RPS)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "endpoint\tcalls\tfailed\tp50 ms\tp95 ms\tp99 ms\tmax ms")
	names := make([]string, 0, len(r.Endpoints))
	for name := range r.Endpoints {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		ep := r.Endpoints[name]
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%.2f\t%.2f\t%.2f\n",
			name, ep.Calls, ep.Failed, ep.LatencyMs.P50, ep.LatencyMs.P95, ep.LatencyMs.P99, ep.LatencyMs.Max)
	}
	_ = tw.Flush()
}

// writeJSONReport пишет отчёт только внутри текущего каталога.
func writeJSONReport(path string, r report) error {
	clean := filepath.Clean(path)
	if clean == "." || clean == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside the current directory: %s", path)
	}

	raw, err := sonic.ConfigStd.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(clean, append(raw, '\n'), 0o600)
}
