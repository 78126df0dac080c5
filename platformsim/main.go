// Command platformsim is a per-node sidecar standing in for real platform
// firmware: it serves the signal/control JSON contract
// pkg/platform.HTTPFacade speaks, so an agentd process can run against a
// believable power/runtime surface without real RAPL/MSR access. Grounded
// on the teacher's poweroff-daemonset and wol-agent: a single stdlib
// net/http server exposing one route per platform operation, no
// third-party dependencies, same as those sidecars.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
)

type signalKey struct {
	name   string
	domain string
	idx    int
}

// sim holds every simulated package's state: each package's power limit as
// enforced by the last /control write, from which its epoch runtime is
// derived, plus its fixed init-time bound signals.
type sim struct {
	mu      sync.Mutex
	values  map[signalKey]float64
	floor   float64
	ceiling float64
}

func newSim(floor, ceiling, tdp, timeWindow float64, numPackages int) *sim {
	s := &sim{values: map[signalKey]float64{}, floor: floor, ceiling: ceiling}
	for i := 0; i < numPackages; i++ {
		s.values[signalKey{"POWER_PACKAGE_LIMIT", "package", i}] = tdp
		s.values[signalKey{"POWER_PACKAGE_MIN", "package", i}] = floor
		s.values[signalKey{"POWER_PACKAGE_MAX", "package", i}] = ceiling
		s.values[signalKey{"POWER_PACKAGE_TDP", "package", i}] = tdp
		s.values[signalKey{"POWER_PACKAGE_TIME_WINDOW", "package", i}] = timeWindow
	}
	return s
}

// epochRuntime derives a synthetic balanced runtime inversely proportional
// to the currently enforced power limit, with a small amount of noise so
// the leaf's stability detector has something realistic to converge on.
func (s *sim) epochRuntime(idx int) float64 {
	s.mu.Lock()
	limit := s.values[signalKey{"POWER_PACKAGE_LIMIT", "package", idx}]
	s.mu.Unlock()
	if limit <= 0 {
		limit = s.ceiling
	}
	base := s.ceiling / limit
	jitter := (rand.Float64() - 0.5) * 0.01 * base
	return base + jitter
}

func (s *sim) readSignal(name, domain string, idx int) (float64, bool) {
	switch name {
	case "EPOCH_RUNTIME":
		return s.epochRuntime(idx), true
	case "EPOCH_RUNTIME_NETWORK", "EPOCH_RUNTIME_IGNORE":
		return 0, true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[signalKey{name, domain, idx}]
	return v, ok
}

// writeControl clips value to [floor, ceiling] before storing it, the same
// clipping behavior pkg/platform.HTTPFacade's caller already handles by
// comparing requested vs. actual.
func (s *sim) writeControl(name, domain string, idx int, value float64) float64 {
	if value < s.floor {
		value = s.floor
	}
	if value > s.ceiling {
		value = s.ceiling
	}
	s.mu.Lock()
	s.values[signalKey{name, domain, idx}] = value
	s.mu.Unlock()
	return value
}

func queryInt(r *http.Request, key string) (int, error) {
	return strconv.Atoi(r.URL.Query().Get(key))
}

func (s *sim) handleSignal(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	domain := r.URL.Query().Get("domain")
	idx, err := queryInt(r, "idx")
	if err != nil {
		http.Error(w, "bad idx: "+err.Error(), http.StatusBadRequest)
		return
	}
	value, ok := s.readSignal(name, domain, idx)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown signal %s/%s/%d", name, domain, idx), http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(struct {
		Value float64 `json:"value"`
	}{value})
}

func (s *sim) handleControl(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	domain := r.URL.Query().Get("domain")
	idx, err := queryInt(r, "idx")
	if err != nil {
		http.Error(w, "bad idx: "+err.Error(), http.StatusBadRequest)
		return
	}
	value, err := strconv.ParseFloat(r.URL.Query().Get("value"), 64)
	if err != nil {
		http.Error(w, "bad value: "+err.Error(), http.StatusBadRequest)
		return
	}
	actual := s.writeControl(name, domain, idx, value)
	json.NewEncoder(w).Encode(struct {
		Actual float64 `json:"actual"`
	}{actual})
}

func main() {
	listen := flag.String("listen", ":9102", "address to listen on")
	numPackages := flag.Int("packages", 1, "number of simulated packages")
	floor := flag.Float64("floor", 50, "minimum power per package, watts")
	ceiling := flag.Float64("ceiling", 200, "maximum power per package, watts")
	tdp := flag.Float64("tdp", 150, "TDP per package, watts")
	timeWindow := flag.Float64("time-window", 1.0, "power package measurement time window, seconds")
	flag.Parse()

	s := newSim(*floor, *ceiling, *tdp, *timeWindow, *numPackages)

	http.HandleFunc("/signal", s.handleSignal)
	http.HandleFunc("/control", s.handleControl)

	log.Printf("platformsim listening on %s (%d packages)", *listen, *numPackages)
	if err := http.ListenAndServe(*listen, nil); err != nil {
		log.Fatalf("ListenAndServe failed: %v", err)
	}
}
