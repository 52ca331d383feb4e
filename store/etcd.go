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

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	etcd "go.etcd.io/etcd/client/v3"
)

// Etcd is a Store backed by an etcd v3 KV client, for multi-process
// restore where several engine instances might share checkpoint history
// (e.g. a warm standby). Keys are namespaced under Prefix the way the
// teacher's etcd/client.Simple wraps a shared client with a path prefix.
type Etcd struct {
	kv     etcd.KV
	prefix string
}

// NewEtcd wraps an existing *etcd.Client. prefix is prepended to every key
// (e.g. "/dflow/checkpoints/").
func NewEtcd(client *etcd.Client, prefix string) *Etcd {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Etcd{kv: client, prefix: prefix}
}

func (e *Etcd) key(vertex string, index []int) string {
	return fmt.Sprintf("%s%s%v", e.prefix, vertex, index)
}

// Save implements Store.
func (e *Etcd) Save(ctx context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: marshal record: %w", err)
	}
	if _, err := e.kv.Put(ctx, e.key(r.Vertex, r.Index), string(data)); err != nil {
		return fmt.Errorf("store: etcd put: %w", err)
	}
	return nil
}

// Load implements Store.
func (e *Etcd) Load(ctx context.Context, vertex string, index []int) (Record, bool, error) {
	resp, err := e.kv.Get(ctx, e.key(vertex, index))
	if err != nil {
		return Record{}, false, fmt.Errorf("store: etcd get: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return Record{}, false, nil
	}
	var r Record
	if err := json.Unmarshal(resp.Kvs[0].Value, &r); err != nil {
		return Record{}, false, fmt.Errorf("store: unmarshal: %w", err)
	}
	return r, true, nil
}

// LoadAll implements Store, scanning the whole prefix. Order follows
// etcd's lexicographic key order, which is deterministic but not
// necessarily insertion order.
func (e *Etcd) LoadAll(ctx context.Context) ([]Record, error) {
	resp, err := e.kv.Get(ctx, e.prefix, etcd.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("store: etcd get prefix: %w", err)
	}
	out := make([]Record, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var r Record
		if err := json.Unmarshal(kv.Value, &r); err != nil {
			return nil, fmt.Errorf("store: unmarshal %s: %w", kv.Key, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Delete implements Store.
func (e *Etcd) Delete(ctx context.Context, vertex string, index []int) error {
	if _, err := e.kv.Delete(ctx, e.key(vertex, index)); err != nil {
		return fmt.Errorf("store: etcd delete: %w", err)
	}
	return nil
}
