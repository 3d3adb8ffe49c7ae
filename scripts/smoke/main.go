// Command smoke probes a running campus-api instance and reports
// endpoint health. Exits non-zero when a critical target fails.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Expect   int    `json:"expect"`
	Critical bool   `json:"critical"`
}

type result struct {
	Target   target
	Status   int
	Match    bool
	Err      error
	Duration time.Duration
}

func main() {
	var (
		base        string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "smoke", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	failures := 0

	for _, t := range targets {
		res := probe(client, base, t)
		report(res)
		if t.Critical && (res.Err != nil || !res.Match) {
			failures++
		}
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d critical target(s) failed\n", failures)
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var targets []target
	if err := json.Unmarshal(data, &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

func probe(client *http.Client, base string, t target) result {
	req, err := http.NewRequest(t.Method, base+t.Path, nil)
	if err != nil {
		return result{Target: t, Err: err}
	}
	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return result{Target: t, Err: err, Duration: elapsed}
	}
	defer resp.Body.Close()

	expect := t.Expect
	if expect == 0 {
		expect = http.StatusOK
	}
	return result{
		Target:   t,
		Status:   resp.StatusCode,
		Match:    resp.StatusCode == expect,
		Duration: elapsed,
	}
}

func report(r result) {
	status := "ok"
	if r.Err != nil {
		status = "error: " + r.Err.Error()
	} else if !r.Match {
		status = fmt.Sprintf("unexpected status %d", r.Status)
	}
	fmt.Printf("%-6s %-40s %-10s %s\n", r.Target.Method, r.Target.Path, r.Duration.Round(time.Millisecond), status)
}
