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

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/yuhangwang/dflow/config"
	"github.com/yuhangwang/dflow/dflow"
)

type stubMethod struct{ n string }

func (s *stubMethod) Name() string    { return s.n }
func (s *stubMethod) NumInputs() int  { return 1 }
func (s *stubMethod) NumOutputs() int { return 1 }
func (s *stubMethod) Execute(context.Context, dflow.Progress, []dflow.Artefact, dflow.Checkpoint) (dflow.Sequence, error) {
	return nil, nil
}
func (s *stubMethod) Reproduce(context.Context, []dflow.Artefact, dflow.Checkpoint) ([]dflow.Artefact, error) {
	return nil, nil
}

type fakeEngine struct {
	state  dflow.State
	replyc chan error
}

func (f *fakeEngine) State() dflow.State { return f.state }
func (f *fakeEngine) AlterAsync(a *dflow.Alter) <-chan error {
	out := make(chan error, 1)
	out <- nil
	return out
}

func newFakeState(t *testing.T) dflow.State {
	t.Helper()
	g := dflow.NewGraph("g")
	a := &dflow.Vertex{Name: "a", Method: &stubMethod{n: "a"}}
	if err := g.AddVertex(a); err != nil {
		t.Fatalf("AddVertex: %v", err)
	}
	return dflow.NewState(g)
}

func TestHandleStateReturnsVertices(t *testing.T) {
	st := newFakeState(t)
	eng := &fakeEngine{state: st}
	s := NewServer(eng, map[string]config.MethodFactory{}, 0, 0)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/state", nil)
	s.router().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp stateResponseJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, spew.Sdump(rec.Body.String()))
	}
	if _, ok := resp.Vertices["a"]; !ok {
		t.Fatalf("expected vertex 'a' in response: %s", spew.Sdump(resp))
	}
}

func TestHandleAlterRemovesVertex(t *testing.T) {
	st := newFakeState(t)
	eng := &fakeEngine{state: st}
	s := NewServer(eng, map[string]config.MethodFactory{}, 0, 0)

	body, err := json.Marshal(alterRequestJSON{Remove: []string{"a"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/alter", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, spew.Sdump(rec.Body.String()))
	}
}

func TestHandleAlterRejectsUnknownVertex(t *testing.T) {
	st := newFakeState(t)
	eng := &fakeEngine{state: st}
	s := NewServer(eng, map[string]config.MethodFactory{}, 0, 0)

	body, _ := json.Marshal(alterRequestJSON{Remove: []string{"nonexistent"}})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/alter", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router().ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
	}
}
