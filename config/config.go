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

// Package config loads a dflow graph from a yaml file, the same role the
// teacher's yamlgraph package plays for a resource graph, retargeted at
// vertices and typed edges instead of resources and notify edges.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/yuhangwang/dflow/dflow"
)

// VertexConfig names one vertex and the Method kind that implements it.
// Kind is looked up in a MethodFactory registry at graph-build time, since
// Method implementations are user code and can't be known to this package.
type VertexConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

// EdgeConfig is one edge between two named vertices.
type EdgeConfig struct {
	From         string `yaml:"from"`
	To           string `yaml:"to"`
	FromOutput   int    `yaml:"from_output"`
	ToInput      int    `yaml:"to_input"`
	Kind         string `yaml:"kind"` // "one_to_one", "scatter", "reduce", "collect"
	CollectIndex int    `yaml:"collect_index"`
}

// GraphConfig is the data structure that describes a single graph to run.
type GraphConfig struct {
	Graph    string         `yaml:"graph"`
	Vertices []VertexConfig `yaml:"vertices"`
	Edges    []EdgeConfig   `yaml:"edges"`
	Comment  string         `yaml:"comment"`
}

// MethodFactory builds a fresh Method for one vertex kind. The registry
// passed to NewGraphFromConfig maps a config "kind" string to one of these.
type MethodFactory func() dflow.Method

// Parse parses a data stream into the graph config structure.
func (c *GraphConfig) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse: %w", err)
	}
	if c.Graph == "" {
		return fmt.Errorf("config: invalid `graph`: must be named")
	}
	return nil
}

// ParseConfigFromFile reads and parses filename into a GraphConfig. Unlike
// the teacher's version, which logs and returns nil on error, this returns
// the error so the caller (cmd/dflowd or a live Watcher) can decide how to
// react instead of silently keeping a stale graph.
func ParseConfigFromFile(filename string) (*GraphConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}
	var c GraphConfig
	if err := c.Parse(data); err != nil {
		return nil, fmt.Errorf("config: %s: %w", filename, err)
	}
	return &c, nil
}

func connectionKind(s string) (dflow.ConnectionKind, error) {
	switch s {
	case "", "one_to_one":
		return dflow.OneToOne, nil
	case "scatter":
		return dflow.Scatter, nil
	case "reduce":
		return dflow.Reduce, nil
	case "collect":
		return dflow.Collect, nil
	default:
		return 0, fmt.Errorf("config: unknown edge kind %q", s)
	}
}

// NewGraphFromConfig transforms a GraphConfig into a new dflow.Graph,
// resolving each vertex's Kind through registry the way the teacher
// resolves a resource struct through its yaml-tagged Resources block —
// here the lookup is explicit instead of reflection-driven, since dflow
// vertex kinds are open-ended user types rather than a fixed resource set.
func (c *GraphConfig) NewGraphFromConfig(registry map[string]MethodFactory) (*dflow.Graph, error) {
	g := dflow.NewGraph(c.Graph)

	lookup := make(map[string]*dflow.Vertex, len(c.Vertices))
	for _, vc := range c.Vertices {
		factory, ok := registry[vc.Kind]
		if !ok {
			return nil, fmt.Errorf("config: unknown vertex kind %q for vertex %q", vc.Kind, vc.Name)
		}
		v := &dflow.Vertex{Name: vc.Name, Method: factory()}
		if err := g.AddVertex(v); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		lookup[vc.Name] = v
	}

	for _, ec := range c.Edges {
		from, ok := lookup[ec.From]
		if !ok {
			return nil, fmt.Errorf("config: edge references unknown 'from' vertex %q", ec.From)
		}
		to, ok := lookup[ec.To]
		if !ok {
			return nil, fmt.Errorf("config: edge references unknown 'to' vertex %q", ec.To)
		}
		kind, err := connectionKind(ec.Kind)
		if err != nil {
			return nil, err
		}
		g.AddEdge(from, to, &dflow.Edge{
			OutputIndex:  ec.FromOutput,
			PortIndex:    ec.ToInput,
			Kind:         kind,
			CollectIndex: ec.CollectIndex,
		})
	}

	if _, err := g.TopologicalSort(); err != nil {
		return nil, fmt.Errorf("config: graph %q is not acyclic: %w", c.Graph, err)
	}

	return g, nil
}
