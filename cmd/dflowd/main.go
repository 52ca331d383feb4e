// Mgmt
// Copyright (C) 2013-2023+ James Shubin and the project contributors
// Written by James Shubin <james@shubin.ca> and the project contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command dflowd loads a graph config, runs it to completion (or forever,
// if it contains iterative methods), and serves its state and metrics over
// HTTP. It wires config, store, metrics, httpapi and dflow together the way
// the teacher's entry/cli pair wires together a GAPI, an etcd client and
// the core engine.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/yuhangwang/dflow/config"
	"github.com/yuhangwang/dflow/dflow"
	"github.com/yuhangwang/dflow/httpapi"
	"github.com/yuhangwang/dflow/mdmap"
	"github.com/yuhangwang/dflow/metrics"
	"github.com/yuhangwang/dflow/store"
)

// args is the top-level CLI parsing structure, go-arg's conventional
// pattern of a single annotated struct passed to arg.MustParse.
type args struct {
	Config      string `arg:"--config,required" help:"path to the graph yaml config"`
	Listen      string `arg:"--listen" help:"httpapi bind address"`
	Metrics     string `arg:"--metrics" help:"prometheus /metrics bind address"`
	StoreDir    string `arg:"--store-dir" help:"directory for file-backed checkpoint storage"`
	Concurrency int    `arg:"--concurrency" help:"max concurrent executing slices (0 = NumCPU)"`
	Watch       bool   `arg:"--watch" help:"reload the config on file change"`
	AlterRate   int    `arg:"--alter-rate" help:"max POST /alter requests per second over httpapi (0 = unlimited)"`
	Debug       bool   `arg:"--debug" help:"enable verbose logging"`
}

func (args) Version() string     { return "dflowd" }
func (args) Description() string { return "runs a dflow dataflow graph" }

func logf(debug bool) func(string, ...interface{}) {
	return func(format string, v ...interface{}) {
		if !debug {
			return
		}
		fmt.Fprintf(os.Stderr, "dflowd: "+format+"\n", v...)
	}
}

func main() {
	var a args
	a.Listen = "127.0.0.1:8080"
	a.Metrics = metrics.DefaultListen
	a.StoreDir = "/var/lib/dflowd/checkpoints"
	arg.MustParse(&a)

	if err := run(a); err != nil {
		fmt.Fprintf(os.Stderr, "dflowd: %v\n", err)
		os.Exit(1)
	}
}

// registry returns the built-in Method kinds dflowd bundles out of the
// box. Real deployments register their own kinds by vendoring this
// package's run function with a larger registry; Method implementations
// are user code and so this set is intentionally small.
func registry() map[string]config.MethodFactory {
	return map[string]config.MethodFactory{
		"noop": func() dflow.Method { return &noopMethod{} },
	}
}

func run(a args) error {
	log := logf(a.Debug)
	instanceID := uuid.New()
	log("starting instance %s", instanceID)

	cfg, err := config.ParseConfigFromFile(a.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	reg := registry()
	graph, err := cfg.NewGraphFromConfig(reg)
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}

	fileStore, err := store.NewFile(afero.NewOsFs(), a.StoreDir)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}

	m := &metrics.Metrics{Listen: a.Metrics}
	m.Init()
	if err := m.Start(); err != nil {
		return fmt.Errorf("start metrics: %w", err)
	}

	pool := dflow.NewWorkerPool(a.Concurrency)
	engine := dflow.NewEngine(dflow.NewState(graph), pool)
	engine.Logf = log
	engine.SetExecuteObserver(m.ObserveExecuteSeconds)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Subscribe before Start: Start's own Bootstrap transition can produce
	// changes immediately, and each call to Changes() mints an independent
	// channel, so a subscription taken out after Start risks missing it.
	// Each subscriber gets its own channel so both see every tuple; reading
	// a single shared channel from two goroutines would instead split the
	// stream between them.
	checkpointChanges := engine.Changes()
	metricsChanges := engine.Changes()
	go persistCheckpoints(ctx, checkpointChanges, fileStore, log)
	go observeMetrics(ctx, metricsChanges, m)

	engine.Start(ctx)

	server := httpapi.NewServer(engine, reg, rate.Limit(rateLimitValue(a.AlterRate)), a.AlterRate)
	if err := server.Start(a.Listen); err != nil {
		return fmt.Errorf("start httpapi: %w", err)
	}
	log("httpapi listening on %s, metrics on %s", a.Listen, a.Metrics)

	if a.Watch {
		w := config.NewWatcher(a.Config, reg, engine.AlterAsync, func() *dflow.Graph { return engine.State().Graph })
		w.Logf = log
		if _, err := w.Load(); err != nil {
			log("initial watcher load failed (continuing with the already-built graph): %v", err)
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				log("config watcher exited: %v", err)
			}
		}()
	}

	<-ctx.Done()
	log("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log("httpapi shutdown error: %v", err)
	}
	if err := m.Stop(shutdownCtx); err != nil {
		log("metrics shutdown error: %v", err)
	}
	engine.Close()

	return nil
}

func rateLimitValue(perSecond int) float64 {
	if perSecond <= 0 {
		return 0
	}
	return float64(perSecond)
}

// persistCheckpoints saves a Record for every slice that reaches a status
// carrying a checkpoint, so a restart can Reproduce instead of
// recomputing. It runs until ctx is cancelled or changes closes. changes
// must be this consumer's own subscription (engine.Changes(), called once,
// before Start): engine.Changes() mints an independent channel per call, so
// sharing one subscription between two consumers would split the stream
// between them instead of delivering every tuple to both.
func persistCheckpoints(ctx context.Context, changes <-chan dflow.StateChange, st *store.File, log func(string, ...interface{})) {
	for {
		select {
		case <-ctx.Done():
			return
		case sc, ok := <-changes:
			if !ok {
				return
			}
			for v, c := range sc.Changes {
				indices := append(append([]mdmap.Index{}, c.New...), c.Modified...)
				for _, idx := range indices {
					vs := sc.State.Flow.Get(v, idx)
					if vs.Status.Checkpoint == nil {
						continue
					}
					rec := store.Record{
						Vertex:  v.Name,
						Index:   []int(idx),
						Partial: vs.Status.Kind == dflow.KindCompleteStarted,
					}
					if data, err := json.Marshal(vs.Status.Checkpoint); err == nil {
						rec.Checkpoint = data
					}
					for _, o := range vs.Status.Output {
						if data, err := json.Marshal(o); err == nil {
							rec.Output = append(rec.Output, data)
						}
					}
					if err := st.Save(ctx, rec); err != nil {
						log("checkpoint save failed for %s%v: %v", v.Name, idx, err)
					}
				}
			}
		}
	}
}

// statusKindNames enumerates dflow.StatusKind.String()'s output, so
// observeMetrics can zero the gauge for a kind a vertex no longer has any
// slice in, rather than leaving a stale nonzero reading behind.
var statusKindNames = []string{
	"Incomplete", "CanStart", "Started", "Continues",
	"Complete", "CompleteStarted", "Paused", "PausedContinues", "PausedInherited",
}

// observeMetrics is a second, independent subscriber of the engine's
// changes stream, run alongside persistCheckpoints: it feeds every
// transition and resulting slice-count shift into the Prometheus
// collectors m owns, so dflow_transitions_total, dflow_slices and
// dflow_failures_total reflect what the engine is actually doing rather
// than sitting at zero. See persistCheckpoints for the subscription
// contract changes must satisfy.
func observeMetrics(ctx context.Context, changes <-chan dflow.StateChange, m *metrics.Metrics) {
	for {
		select {
		case <-ctx.Done():
			return
		case sc, ok := <-changes:
			if !ok {
				return
			}
			m.ObserveTransition(sc.Kind)

			for v, c := range sc.Changes {
				counts := make(map[string]float64, len(statusKindNames))
				for _, ent := range sc.State.Flow.Slices(v) {
					counts[ent.Value.Status.Kind.String()]++
				}
				for _, kind := range statusKindNames {
					m.SetSliceCount(v.Name, kind, counts[kind])
				}

				indices := append(append([]mdmap.Index{}, c.New...), c.Modified...)
				for _, idx := range indices {
					st := sc.State.Flow.Get(v, idx).Status
					if st.Kind == dflow.KindIncomplete && st.Reason == dflow.ExecutionFailed {
						m.ObserveFailure(v.Name)
					}
				}
			}
		}
	}
}

// noopMethod passes its single input through as its single output,
// completing immediately. It exists so a bare dflowd checkout has at
// least one vertex kind to build a graph config around; real deployments
// register their own kinds via registry.
type noopMethod struct{}

func (*noopMethod) Name() string    { return "noop" }
func (*noopMethod) NumInputs() int  { return 1 }
func (*noopMethod) NumOutputs() int { return 1 }

func (*noopMethod) Execute(ctx context.Context, _ dflow.Progress, inputs []dflow.Artefact, _ dflow.Checkpoint) (dflow.Sequence, error) {
	var out dflow.Artefact
	if len(inputs) > 0 {
		out = inputs[0]
	}
	return &noopSequence{result: dflow.IterationResult{Outputs: []dflow.Artefact{out}}}, nil
}

func (*noopMethod) Reproduce(ctx context.Context, inputs []dflow.Artefact, _ dflow.Checkpoint) ([]dflow.Artefact, error) {
	var out dflow.Artefact
	if len(inputs) > 0 {
		out = inputs[0]
	}
	return []dflow.Artefact{out}, nil
}

// noopSequence yields noopMethod's single result once.
type noopSequence struct {
	result dflow.IterationResult
	done   bool
}

func (s *noopSequence) Next(ctx context.Context) (dflow.IterationResult, bool, error) {
	if s.done {
		return dflow.IterationResult{}, false, nil
	}
	s.done = true
	return s.result, true, nil
}
