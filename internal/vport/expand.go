package vport

import (
	"fmt"
	"sort"
)

// state of the forward expansion. The backward scan for origins is done
// separately by scan.
type state uint8

const (
	expandOut state = iota + 1
	expandIn
)

// update re-derives transport edges for every origin output whose
// expansion may pass through the changed vertices. Only the part of the
// graph upstream of the change is visited.
func (g *Graph) update(changed ...ID) error {
	visited := make(map[ID]bool)
	for _, id := range changed {
		g.scan(id, visited)
	}
	origins := make([]ID, 0, len(visited))
	for id := range visited {
		origins = append(origins, id)
	}
	sort.Slice(origins, func(i, j int) bool { return origins[i] < origins[j] })

	// two passes: released inputs must be free before new sources arrive
	plans := make([]plan, 0, len(origins))
	for _, id := range origins {
		p := g.plan(id)
		for _, e := range p.drop {
			if err := g.dropTransport(e); err != nil {
				return err
			}
		}
		plans = append(plans, p)
	}
	for _, p := range plans {
		for _, dest := range p.order {
			refs := p.want[dest]
			if e := g.find(p.origin, dest, Transport); e != nil {
				e.Refs = refs
				continue
			}
			if err := g.addTransport(p.origin, dest, refs); err != nil {
				return err
			}
		}
	}
	return nil
}

// scan walks incoming virtual edges backward and marks every vertex on the
// way. Origins are among the marked vertices.
func (g *Graph) scan(id ID, visited map[ID]bool) {
	if visited[id] {
		return
	}
	v, ok := g.vertices[id]
	if !ok {
		return
	}
	visited[id] = true
	for _, eid := range v.incoming {
		if e := g.edges[eid]; e.Style != Transport {
			g.scan(e.Source, visited)
		}
	}
}

// plan is a transport diff for a single origin.
type plan struct {
	origin ID
	want   map[ID]int
	order  []ID
	drop   []*Edge
}

func (g *Graph) plan(origin ID) plan {
	p := plan{
		origin: origin,
		want:   make(map[ID]int),
	}
	if g.isOrigin(origin) {
		g.expand(expandOut, origin, p.want, make(map[ID]bool))
	}
	for dest := range p.want {
		p.order = append(p.order, dest)
	}
	sort.Slice(p.order, func(i, j int) bool { return p.order[i] < p.order[j] })
	for _, eid := range g.vertices[origin].outgoing {
		if e := g.edges[eid]; e.Style == Transport && p.want[e.Dest] == 0 {
			p.drop = append(p.drop, e)
		}
	}
	return p
}

// isOrigin reports if the vertex is a real output: nothing virtual feeds it.
func (g *Graph) isOrigin(id ID) bool {
	v := g.vertices[id]
	if v.dir != Out {
		return false
	}
	for _, eid := range v.incoming {
		if g.edges[eid].Style != Transport {
			return false
		}
	}
	return true
}

// expand follows virtual edges forward from the current vertex and counts
// every path that ends on a real input. Vertices on the current path are
// not revisited, so virtual cycles end the walk.
func (g *Graph) expand(s state, current ID, want map[ID]int, path map[ID]bool) {
	if path[current] {
		return
	}
	path[current] = true
	defer delete(path, current)

	v := g.vertices[current]
	switch s {
	case expandOut:
		for _, eid := range v.outgoing {
			switch e := g.edges[eid]; e.Style {
			case Masquerade:
				g.expand(expandOut, e.Dest, want, path)
			case Connect:
				g.expand(expandIn, e.Dest, want, path)
			}
		}
	case expandIn:
		redirected := false
		for _, eid := range v.outgoing {
			switch e := g.edges[eid]; e.Style {
			case Masquerade:
				redirected = true
				g.expand(expandIn, e.Dest, want, path)
			case Forward:
				redirected = true
				g.expand(expandOut, e.Dest, want, path)
			}
		}
		if !redirected {
			want[current]++
		}
	}
}

func (g *Graph) addTransport(source, dest ID, refs int) error {
	if g.t != nil {
		if err := g.t.Connect(source, dest); err != nil {
			return fmt.Errorf("transport %d->%d: %w", source, dest, err)
		}
	}
	e := g.link(source, dest, Transport)
	e.Refs = refs
	return nil
}

func (g *Graph) dropTransport(e *Edge) error {
	if e.Style != Transport {
		return nil
	}
	g.unlink(e)
	if g.t != nil {
		if err := g.t.Disconnect(e.Source, e.Dest); err != nil {
			return fmt.Errorf("transport %d->%d: %w", e.Source, e.Dest, err)
		}
	}
	return nil
}
