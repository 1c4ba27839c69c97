// Command smoke probes a running gradlink-api instance against a JSON target
// list and exits non-zero when a critical endpoint misbehaves. Intended for
// deploy pipelines and local sanity checks, not as a test suite.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type target struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	WantStatus int    `json:"want_status"`
	Critical   bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type result struct {
	Target   target
	Status   int
	OK       bool
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
	var failures int
	var results []result

	for _, t := range targets {
		res := probe(client, base, t)
		if !res.OK && t.Critical {
			failures++
		}
		results = append(results, res)
	}

	printReport(results)
	if failures > 0 {
		fmt.Printf("critical failures: %d\n", failures)
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func probe(client *http.Client, base string, tgt target) result {
	res := result{Target: tgt}
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	want := tgt.WantStatus
	if want == 0 {
		want = http.StatusOK
	}

	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+tgt.Path, nil)
	if err != nil {
		res.Err = err
		return res
	}

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode
	res.OK = resp.StatusCode == want
	return res
}

func printReport(results []result) {
	for _, r := range results {
		mark := "ok"
		if !r.OK {
			mark = "FAIL"
		}
		if r.Err != nil {
			fmt.Printf("%-4s %-6s %-40s error: %v\n", mark, r.Target.Method, r.Target.Path, r.Err)
			continue
		}
		fmt.Printf("%-4s %-6s %-40s status=%d want=%d %s\n", mark, r.Target.Method, r.Target.Path, r.Status, r.Target.WantStatus, r.Duration.Round(time.Millisecond))
	}
}
