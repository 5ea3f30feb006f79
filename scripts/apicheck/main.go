// Command apicheck probes a running deployment's unauthenticated surface
// and fails when any critical endpoint deviates from its expected status or
// does not return the standard response envelope. Intended as a post-deploy
// smoke gate in CI.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type probe struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	WantStatus int    `json:"want_status"`
	Envelope   bool   `json:"envelope"`
	Critical   bool   `json:"critical"`
}

type probeFile struct {
	Probes []probe `json:"probes"`
}

type result struct {
	Probe    probe
	Status   int
	OK       bool
	Detail   string
	Duration time.Duration
}

// defaultProbes covers the endpoints reachable without a session, including
// the payment verify route with a bogus reference, which must degrade to a
// structured failure rather than an error page.
var defaultProbes = []probe{
	{Method: http.MethodGet, Path: "/health", WantStatus: http.StatusOK, Critical: true},
	{Method: http.MethodGet, Path: "/metrics", WantStatus: http.StatusOK, Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/events", WantStatus: http.StatusOK, Envelope: true, Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/events/00000000-0000-0000-0000-000000000000", WantStatus: http.StatusNotFound, Envelope: true},
	{Method: http.MethodGet, Path: "/api/v1/transactions/service-fee/verify/evsf_apicheck", WantStatus: http.StatusGone, Envelope: true, Critical: true},
}

func main() {
	var (
		baseURL    string
		probesPath string
		timeout    time.Duration
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&probesPath, "probes", "", "optional JSON probe file, defaults to the built-in set")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	probes := defaultProbes
	if probesPath != "" {
		loaded, err := loadProbes(probesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "apicheck: load probes: %v\n", err)
			os.Exit(2)
		}
		probes = loaded
	}

	client := &http.Client{Timeout: timeout}
	failures := 0
	for _, p := range probes {
		res := runProbe(client, baseURL, p)
		report(res)
		if !res.OK && p.Critical {
			failures++
		}
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "apicheck: %d critical probe(s) failed\n", failures)
		os.Exit(1)
	}
	fmt.Println("apicheck: all critical probes passed")
}

func loadProbes(path string) ([]probe, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var pf probeFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, err
	}
	if len(pf.Probes) == 0 {
		return nil, fmt.Errorf("no probes defined in %s", path)
	}
	return pf.Probes, nil
}

func runProbe(client *http.Client, base string, p probe) result {
	res := result{Probe: p}

	method := strings.ToUpper(strings.TrimSpace(p.Method))
	if method == "" {
		method = http.MethodGet
	}
	url := strings.TrimRight(base, "/") + p.Path

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		res.Detail = err.Error()
		return res
	}

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Detail = err.Error()
		return res
	}
	defer resp.Body.Close() //nolint:errcheck

	res.Status = resp.StatusCode
	if resp.StatusCode != p.WantStatus {
		res.Detail = fmt.Sprintf("want status %d", p.WantStatus)
		return res
	}
	if p.Envelope {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			res.Detail = fmt.Sprintf("read body: %v", err)
			return res
		}
		if detail, ok := checkEnvelope(body); !ok {
			res.Detail = detail
			return res
		}
	}
	res.OK = true
	return res
}

// checkEnvelope verifies the body is a JSON object carrying either a data
// or an error member, the envelope every API response uses.
func checkEnvelope(body []byte) (string, bool) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "body is not a JSON object", false
	}
	if _, ok := payload["data"]; ok {
		return "", true
	}
	if _, ok := payload["error"]; ok {
		return "", true
	}
	return "response envelope missing data and error members", false
}

func report(res result) {
	mark := "ok  "
	if !res.OK {
		mark = "FAIL"
	}
	fmt.Printf("%s %-6s %-60s %3d %8s", mark, res.Probe.Method, res.Probe.Path, res.Status, res.Duration.Round(time.Millisecond))
	if res.Detail != "" {
		fmt.Printf("  (%s)", res.Detail)
	}
	fmt.Println()
}
