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

// Package httpapi exposes a running engine's graph over HTTP: state
// snapshots, a graphviz dump, and a POST endpoint to alter the graph live.
// It is grounded on the teacher's HTTPServerUIRes, which wires the same
// gin.New/Use(logger, Recovery)/router.GET("/path", ...) idiom around a
// resource graph instead of a dataflow graph.
package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/yuhangwang/dflow/config"
	"github.com/yuhangwang/dflow/dflow"
)

func init() {
	gin.SetMode(gin.ReleaseMode) // for production; https://github.com/gin-gonic/gin/issues/1180
}

// Engine is the subset of *dflow.Engine this package needs, narrowed for
// testability.
type Engine interface {
	State() dflow.State
	AlterAsync(*dflow.Alter) <-chan error
}

// Server wraps a gin router around a running Engine.
type Server struct {
	Logf func(format string, v ...interface{})

	engine   Engine
	registry map[string]config.MethodFactory
	server   *http.Server

	// Limiter bounds the rate of POST /alter requests this server will
	// accept, the same rate.Limiter the teacher attaches per-resource to
	// its Watch loop, here attached once per server instead of once per
	// vertex since alterations are a shared, serialized resource.
	limiter *rate.Limiter

	instanceID uuid.UUID
}

// NewServer creates an httpapi Server bound to engine. registry resolves a
// vertex "kind" string to a Method factory for vertices added via POST
// /alter's "add" field. limit/burst configure the alter rate limiter;
// passing limit<=0 means unlimited.
func NewServer(engine Engine, registry map[string]config.MethodFactory, limit rate.Limit, burst int) *Server {
	s := &Server{
		Logf:       func(string, ...interface{}) {},
		engine:     engine,
		registry:   registry,
		instanceID: uuid.New(),
	}
	if limit > 0 {
		s.limiter = rate.NewLimiter(limit, burst)
	}
	return s
}

func (s *Server) ginLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.Logf("%v %s %s (%d)", c.ClientIP(), c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(s.ginLogger(), gin.Recovery())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"instance": s.instanceID.String()})
	})
	r.GET("/state", s.handleState)
	r.GET("/graphviz", s.handleGraphviz)
	r.POST("/alter", s.handleAlter)

	return r
}

// Start runs the HTTP server in a goroutine, listening on addr.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{Addr: addr, Handler: s.router()}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Logf("httpapi: server error: %v", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type vertexStateJSON struct {
	Index  []int  `json:"index"`
	Status string `json:"status"`
}

type stateResponseJSON struct {
	Graph    string                       `json:"graph"`
	Vertices map[string][]vertexStateJSON `json:"vertices"`
}

func (s *Server) handleState(c *gin.Context) {
	st := s.engine.State()
	resp := stateResponseJSON{
		Graph:    st.Graph.Name(),
		Vertices: make(map[string][]vertexStateJSON),
	}
	for _, v := range st.Graph.Vertices() {
		var entries []vertexStateJSON
		for _, entry := range st.Flow.Slices(v) {
			entries = append(entries, vertexStateJSON{
				Index:  []int(entry.Index),
				Status: entry.Value.Status.Kind.String(),
			})
		}
		resp.Vertices[v.Name] = entries
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGraphviz(c *gin.Context) {
	st := s.engine.State()
	c.String(http.StatusOK, st.Graph.Graphviz())
}

type alterEdgeJSON struct {
	From         string `json:"from"`
	To           string `json:"to"`
	FromOutput   int    `json:"from_output"`
	ToInput      int    `json:"to_input"`
	Kind         string `json:"kind"`
	CollectIndex int    `json:"collect_index"`
}

type alterRequestJSON struct {
	Add        []config.VertexConfig `json:"add"`
	Remove     []string              `json:"remove"`
	Connect    []alterEdgeJSON       `json:"connect"`
	Disconnect []alterEdgeJSON       `json:"disconnect"`
}

func (s *Server) handleAlter(c *gin.Context) {
	if s.limiter != nil && !s.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "alter rate limit exceeded"})
		return
	}

	var req alterRequestJSON
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st := s.engine.State()
	alter, err := s.buildAlter(st.Graph, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alter.Reply = make(chan error, 1)
	reply := s.engine.AlterAsync(alter)
	select {
	case err := <-reply:
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
	case <-c.Request.Context().Done():
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request cancelled before alter applied"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": true})
}

func (s *Server) buildAlter(g *dflow.Graph, req alterRequestJSON) (*dflow.Alter, error) {
	a := &dflow.Alter{}

	for _, name := range req.Remove {
		v, ok := g.Vertex(name)
		if !ok {
			return nil, fmt.Errorf("httpapi: unknown vertex %q in remove", name)
		}
		a.Remove = append(a.Remove, v)
	}

	if len(req.Add) > 0 {
		merge := dflow.NewGraph(g.Name() + ".delta")
		for _, vc := range req.Add {
			factory, ok := s.registry[vc.Kind]
			if !ok {
				return nil, fmt.Errorf("httpapi: unknown vertex kind %q", vc.Kind)
			}
			if err := merge.AddVertex(&dflow.Vertex{Name: vc.Name, Method: factory()}); err != nil {
				return nil, fmt.Errorf("httpapi: %w", err)
			}
		}
		a.Merge = merge
	}

	resolve := func(name string) (*dflow.Vertex, error) {
		if a.Merge != nil {
			if v, ok := a.Merge.Vertex(name); ok {
				return v, nil
			}
		}
		if v, ok := g.Vertex(name); ok {
			return v, nil
		}
		return nil, fmt.Errorf("httpapi: unknown vertex %q", name)
	}

	for _, ec := range req.Connect {
		from, err := resolve(ec.From)
		if err != nil {
			return nil, err
		}
		to, err := resolve(ec.To)
		if err != nil {
			return nil, err
		}
		kind, err := parseConnectionKind(ec.Kind)
		if err != nil {
			return nil, err
		}
		a.Connect = append(a.Connect, dflow.AlterEdge{
			From: from,
			To:   to,
			Edge: &dflow.Edge{
				OutputIndex:  ec.FromOutput,
				PortIndex:    ec.ToInput,
				Kind:         kind,
				CollectIndex: ec.CollectIndex,
			},
		})
	}

	for _, ec := range req.Disconnect {
		from, err := resolve(ec.From)
		if err != nil {
			return nil, err
		}
		to, err := resolve(ec.To)
		if err != nil {
			return nil, err
		}
		a.Disconnect = append(a.Disconnect, dflow.AlterEdge{From: from, To: to})
	}

	return a, nil
}

func parseConnectionKind(s string) (dflow.ConnectionKind, error) {
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
		return 0, fmt.Errorf("httpapi: unknown edge kind %q", s)
	}
}
