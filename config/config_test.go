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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/yuhangwang/dflow/dflow"
)

type stubMethod struct {
	name           string
	inputs, output int
}

func (s *stubMethod) Name() string       { return s.name }
func (s *stubMethod) NumInputs() int     { return s.inputs }
func (s *stubMethod) NumOutputs() int    { return s.output }
func (s *stubMethod) Execute(ctx context.Context, _ dflow.Progress, _ []dflow.Artefact, _ dflow.Checkpoint) (dflow.Sequence, error) {
	return nil, nil
}
func (s *stubMethod) Reproduce(context.Context, []dflow.Artefact, dflow.Checkpoint) ([]dflow.Artefact, error) {
	return nil, nil
}

func testRegistry() map[string]MethodFactory {
	return map[string]MethodFactory{
		"source": func() dflow.Method { return &stubMethod{name: "source", inputs: 0, output: 1} },
		"sink":   func() dflow.Method { return &stubMethod{name: "sink", inputs: 1, output: 0} },
	}
}

const sampleYAML = `
graph: pipeline
vertices:
  - name: a
    kind: source
  - name: b
    kind: sink
edges:
  - from: a
    to: b
    kind: one_to_one
`

func TestParseAndBuildGraph(t *testing.T) {
	var c GraphConfig
	if err := c.Parse([]byte(sampleYAML)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Graph != "pipeline" {
		t.Fatalf("graph name = %q", c.Graph)
	}
	g, err := c.NewGraphFromConfig(testRegistry())
	if err != nil {
		t.Fatalf("NewGraphFromConfig: %v", err)
	}
	if len(g.Vertices()) != 2 {
		t.Fatalf("want 2 vertices, got %d", len(g.Vertices()))
	}
	b, ok := g.Vertex("b")
	if !ok {
		t.Fatalf("vertex b missing")
	}
	if len(g.Incoming(b)) != 1 {
		t.Fatalf("want 1 incoming edge on b, got %d", len(g.Incoming(b)))
	}
}

func TestParseRejectsUnnamedGraph(t *testing.T) {
	var c GraphConfig
	if err := c.Parse([]byte("vertices: []\n")); err == nil {
		t.Fatalf("expected error for missing graph name")
	}
}

func TestNewGraphFromConfigRejectsUnknownKind(t *testing.T) {
	var c GraphConfig
	if err := c.Parse([]byte(sampleYAML)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c.Vertices[0].Kind = "nonexistent"
	if _, err := c.NewGraphFromConfig(testRegistry()); err == nil {
		t.Fatalf("expected error for unknown vertex kind")
	}
}

func TestNewGraphFromConfigRejectsCycle(t *testing.T) {
	var c GraphConfig
	if err := c.Parse([]byte(`
graph: cyclic
vertices:
  - name: a
    kind: source
  - name: b
    kind: sink
edges:
  - from: a
    to: b
  - from: b
    to: a
`)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := c.NewGraphFromConfig(testRegistry()); err == nil {
		t.Fatalf("expected cycle rejection")
	}
}

func TestParseConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "graph.yaml")
	if err := os.WriteFile(p, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c, err := ParseConfigFromFile(p)
	if err != nil {
		t.Fatalf("ParseConfigFromFile: %v", err)
	}
	if c.Graph != "pipeline" {
		t.Fatalf("graph = %q", c.Graph)
	}
}

func TestDiffAddsAndRemovesVertices(t *testing.T) {
	var oldCfg GraphConfig
	if err := oldCfg.Parse([]byte(sampleYAML)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	live, err := oldCfg.NewGraphFromConfig(testRegistry())
	if err != nil {
		t.Fatalf("NewGraphFromConfig: %v", err)
	}

	var nextCfg GraphConfig
	if err := nextCfg.Parse([]byte(`
graph: pipeline
vertices:
  - name: a
    kind: source
  - name: c
    kind: sink
edges:
  - from: a
    to: c
    kind: one_to_one
`)); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	alter, err := diff(&oldCfg, &nextCfg, testRegistry(), live)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if alter == nil {
		t.Fatalf("expected a non-nil alter batch")
	}
	if len(alter.Remove) != 1 || alter.Remove[0].Name != "b" {
		t.Fatalf("expected b removed, got %+v", alter.Remove)
	}
	if alter.Merge == nil || len(alter.Merge.Vertices()) != 1 {
		t.Fatalf("expected one new vertex in merge graph")
	}
	if len(alter.Connect) != 1 {
		t.Fatalf("expected one connect edge (a -> c), got %d", len(alter.Connect))
	}
	if len(alter.Disconnect) != 0 {
		t.Fatalf("expected no explicit disconnect for a->b (removing b drops it), got %d", len(alter.Disconnect))
	}
}

func TestDiffNoOpWhenUnchanged(t *testing.T) {
	var c GraphConfig
	if err := c.Parse([]byte(sampleYAML)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	live, err := c.NewGraphFromConfig(testRegistry())
	if err != nil {
		t.Fatalf("NewGraphFromConfig: %v", err)
	}
	var same GraphConfig
	if err := same.Parse([]byte(sampleYAML)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	alter, err := diff(&c, &same, testRegistry(), live)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if alter != nil {
		t.Fatalf("expected no-op diff, got %+v", alter)
	}
}
