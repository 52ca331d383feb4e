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

package pgraph

import (
	"fmt"
	"sort"
)

// Graphviz renders the graph in DOT format.
// https://en.wikipedia.org/wiki/DOT_(graph_description_language)
func (g *Graph) Graphviz() string {
	out := fmt.Sprintf("digraph %s {\n", g.Name())
	out += fmt.Sprintf("\tlabel=%q;\n", g.Name())

	var nodeLines, edgeLines []string
	for v1, x := range g.Adjacency() {
		nodeLines = append(nodeLines, fmt.Sprintf("\t%q;\n", v1.String()))
		for v2, e := range x {
			edgeLines = append(edgeLines, fmt.Sprintf("\t%q -> %q [label=%q];\n", v1.String(), v2.String(), e.String()))
		}
	}
	sort.Strings(nodeLines)
	sort.Strings(edgeLines)
	for _, l := range nodeLines {
		out += l
	}
	for _, l := range edgeLines {
		out += l
	}
	out += "}\n"
	return out
}
