package dce

import (
	"fmt"

	"github.com/golang/glog"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// Program is the set of assembly files linked into one image, together with
// the call graph between their functions.
type Program struct {
	Files     []*File
	Functions []*Function

	// Warnings collects resolution ambiguities found while building the graph.
	Warnings []string

	graph    *simple.DirectedGraph
	ids      map[*Function]int64
	exported map[string]*Function
	any      map[string]*Function
	local    map[string]map[string]*Function
}

func NewProgram(files []*File) *Program {
	p := &Program{
		Files:    files,
		graph:    simple.NewDirectedGraph(),
		ids:      map[*Function]int64{},
		exported: map[string]*Function{},
		any:      map[string]*Function{},
		local:    map[string]map[string]*Function{},
	}

	for _, file := range files {
		local := map[string]*Function{}
		p.local[file.Path] = local
		for _, fn := range file.Functions {
			id := int64(len(p.Functions))
			p.Functions = append(p.Functions, fn)
			p.ids[fn] = id
			p.graph.AddNode(simple.Node(id))

			if _, ok := local[fn.Name]; !ok {
				local[fn.Name] = fn
			}
			if _, ok := p.any[fn.Name]; !ok {
				p.any[fn.Name] = fn
			}
			if fn.Static {
				continue
			}
			if first, ok := p.exported[fn.Name]; ok {
				p.Warnings = append(p.Warnings, fmt.Sprintf("%s defined in %s and %s, using the former", fn.Name, first.Path, fn.Path))
				continue
			}
			p.exported[fn.Name] = fn
		}
	}

	for _, fn := range p.Functions {
		for _, name := range append(append([]string{}, fn.Calls...), fn.Refs...) {
			p.addEdge(fn, p.Lookup(name, fn.Path))
		}
	}

	for _, file := range files {
		for _, v := range file.Interrupts {
			if fn := p.Lookup(v.Name, file.Path); fn != nil {
				fn.Vectors = append(fn.Vectors, v)
				fn.ISR = true
			}
		}
	}

	return p
}

func (p *Program) addEdge(from, to *Function) {
	if to == nil || from == to {
		return
	}
	p.graph.SetEdge(p.graph.NewEdge(simple.Node(p.ids[from]), simple.Node(p.ids[to])))
}

// Lookup resolves a symbol referenced from the file at path. Definitions in
// the same file win, then exported definitions, then any definition at all.
func (p *Program) Lookup(name, path string) *Function {
	if fn, ok := p.local[path][name]; ok {
		return fn
	}
	if fn, ok := p.exported[name]; ok {
		return fn
	}
	return p.any[name]
}

// Callees returns the functions fn calls or references directly.
func (p *Program) Callees(fn *Function) []*Function {
	var result []*Function
	nodes := p.graph.From(p.ids[fn])
	for nodes.Next() {
		result = append(result, p.Functions[nodes.Node().ID()])
	}
	return result
}

// reachable returns the ids of every function reachable from roots,
// roots included.
func (p *Program) reachable(roots []*Function) map[int64]bool {
	keep := map[int64]bool{}
	walker := traverse.DepthFirst{
		Visit: func(n graph.Node) {
			keep[n.ID()] = true
		},
	}
	for _, root := range roots {
		if glog.V(2) {
			glog.Infof("traversing %s", root.Name)
		}
		walker.Walk(p.graph, simple.Node(p.ids[root]), nil)
	}
	return keep
}
