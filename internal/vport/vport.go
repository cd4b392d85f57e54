// Package vport keeps the virtual port graph of a flow system.
//
// Every real port has a vertex in the graph. Edges describe intent: a user
// connection (Connect) or a redirection declared by a module (Masquerade,
// Forward). Transport edges are derived from the others and are the only
// ones that reach the real ports through the Transporter.
package vport

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNoVertex is returned when a vertex id is not registered.
	ErrNoVertex = errors.New("vertex not found")
	// ErrNoEdge is returned when an edge to remove doesn't exist.
	ErrNoEdge = errors.New("edge not found")
	// ErrDuplicate is returned when the same edge is declared twice.
	ErrDuplicate = errors.New("edge already exists")
	// ErrDirection is returned when edge endpoints have incompatible directions.
	ErrDirection = errors.New("incompatible port directions")
)

// Direction of the data flow through a vertex.
type Direction uint8

const (
	// In is an input vertex.
	In Direction = iota + 1
	// Out is an output vertex.
	Out
)

func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	default:
		return "unknown"
	}
}

// Style of an edge.
type Style uint8

const (
	// Forward passes an input through to an output.
	Forward Style = iota + 1
	// Masquerade delegates a port to another port of the same direction.
	Masquerade
	// Connect is a user requested connection from an output to an input.
	Connect
	// Transport is a compiled connection between two real ports.
	Transport
)

func (s Style) String() string {
	switch s {
	case Forward:
		return "forward"
	case Masquerade:
		return "masquerade"
	case Connect:
		return "connect"
	case Transport:
		return "transport"
	default:
		return "unknown"
	}
}

// ID identifies a vertex.
type ID int

// EdgeID identifies an edge.
type EdgeID int

// Edge is a directed edge of the graph. Source is always upstream of Dest.
type Edge struct {
	ID     EdgeID
	Source ID
	Dest   ID
	Style  Style
	// Refs is the number of virtual paths deriving a transport edge.
	Refs int
}

// Pair is a source-destination pair of a transport edge.
type Pair struct {
	Source ID
	Dest   ID
}

// Transporter applies compiled transport edges to real ports.
type Transporter interface {
	Connect(source, dest ID) error
	Disconnect(source, dest ID) error
}

type vertex struct {
	dir      Direction
	incoming []EdgeID
	outgoing []EdgeID
}

// Graph is an arena of vertices and edges.
type Graph struct {
	t        Transporter
	vertices map[ID]*vertex
	edges    map[EdgeID]*Edge
	nextID   ID
	nextEdge EdgeID
}

// New returns an empty graph which applies transports with t.
func New(t Transporter) *Graph {
	return &Graph{
		t:        t,
		vertices: make(map[ID]*vertex),
		edges:    make(map[EdgeID]*Edge),
	}
}

// Add registers a new vertex.
func (g *Graph) Add(dir Direction) ID {
	g.nextID++
	g.vertices[g.nextID] = &vertex{dir: dir}
	return g.nextID
}

// Remove deletes a vertex and all edges touching it. Transports derived
// through the vertex are disconnected.
func (g *Graph) Remove(id ID) error {
	v, ok := g.vertices[id]
	if !ok {
		return fmt.Errorf("remove %d: %w", id, ErrNoVertex)
	}
	var touched []ID
	for _, eid := range append(append([]EdgeID{}, v.incoming...), v.outgoing...) {
		e, ok := g.edges[eid]
		if !ok || e.Style == Transport {
			continue
		}
		g.unlink(e)
		touched = append(touched, e.Source, e.Dest)
	}
	var err error
	if len(touched) > 0 {
		err = g.update(touched...)
	}
	// whatever transport is left ends or starts at the vertex itself
	for _, eid := range append(append([]EdgeID{}, v.incoming...), v.outgoing...) {
		if e, ok := g.edges[eid]; ok {
			if derr := g.dropTransport(e); derr != nil && err == nil {
				err = derr
			}
		}
	}
	delete(g.vertices, id)
	return err
}

// Connect declares a connection between a and b. Either argument may be
// the output; the edge is oriented in the data flow direction.
func (g *Graph) Connect(a, b ID) error {
	source, dest, err := g.orient(a, b)
	if err != nil {
		return err
	}
	return g.declare(source, dest, Connect)
}

// Disconnect removes a connection declared with Connect.
func (g *Graph) Disconnect(a, b ID) error {
	source, dest, err := g.orient(a, b)
	if err != nil {
		return err
	}
	return g.retract(source, dest, Connect)
}

// Virtualize declares that port is implemented by impl. Ports of the same
// direction masquerade, an input and an output forward.
func (g *Graph) Virtualize(port, impl ID) error {
	source, dest, style, err := g.virtualizeParams(port, impl)
	if err != nil {
		return err
	}
	return g.declare(source, dest, style)
}

// Devirtualize removes a declaration made with Virtualize.
func (g *Graph) Devirtualize(port, impl ID) error {
	source, dest, style, err := g.virtualizeParams(port, impl)
	if err != nil {
		return err
	}
	return g.retract(source, dest, style)
}

// Transports returns the compiled transport pairs sorted by source and dest.
func (g *Graph) Transports() []Pair {
	pairs := make([]Pair, 0)
	for _, e := range g.edges {
		if e.Style == Transport {
			pairs = append(pairs, Pair{Source: e.Source, Dest: e.Dest})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Source != pairs[j].Source {
			return pairs[i].Source < pairs[j].Source
		}
		return pairs[i].Dest < pairs[j].Dest
	})
	return pairs
}

// Edges returns a copy of all edges touching the vertex.
func (g *Graph) Edges(id ID) []Edge {
	v, ok := g.vertices[id]
	if !ok {
		return nil
	}
	edges := make([]Edge, 0, len(v.incoming)+len(v.outgoing))
	for _, eid := range v.incoming {
		edges = append(edges, *g.edges[eid])
	}
	for _, eid := range v.outgoing {
		edges = append(edges, *g.edges[eid])
	}
	return edges
}

// Refs returns the number of paths deriving the transport between source
// and dest. Zero means there is no such transport.
func (g *Graph) Refs(source, dest ID) int {
	if e := g.find(source, dest, Transport); e != nil {
		return e.Refs
	}
	return 0
}

func (g *Graph) orient(a, b ID) (ID, ID, error) {
	va, ok := g.vertices[a]
	if !ok {
		return 0, 0, fmt.Errorf("vertex %d: %w", a, ErrNoVertex)
	}
	vb, ok := g.vertices[b]
	if !ok {
		return 0, 0, fmt.Errorf("vertex %d: %w", b, ErrNoVertex)
	}
	switch {
	case va.dir == Out && vb.dir == In:
		return a, b, nil
	case va.dir == In && vb.dir == Out:
		return b, a, nil
	}
	return 0, 0, fmt.Errorf("connect %v to %v: %w", va.dir, vb.dir, ErrDirection)
}

func (g *Graph) virtualizeParams(port, impl ID) (ID, ID, Style, error) {
	vp, ok := g.vertices[port]
	if !ok {
		return 0, 0, 0, fmt.Errorf("vertex %d: %w", port, ErrNoVertex)
	}
	vi, ok := g.vertices[impl]
	if !ok {
		return 0, 0, 0, fmt.Errorf("vertex %d: %w", impl, ErrNoVertex)
	}
	if port == impl {
		return 0, 0, 0, fmt.Errorf("virtualize %d onto itself: %w", port, ErrDirection)
	}
	switch {
	case vp.dir == In && vi.dir == In:
		// data flows from us to the implementation
		return port, impl, Masquerade, nil
	case vp.dir == Out && vi.dir == Out:
		// data flows from the implementation to us
		return impl, port, Masquerade, nil
	case vp.dir == In && vi.dir == Out:
		return port, impl, Forward, nil
	default:
		return impl, port, Forward, nil
	}
}

// declare adds a virtual edge and compiles it. If the compiled transports
// can't be applied, the edge is rolled back.
func (g *Graph) declare(source, dest ID, style Style) error {
	if g.find(source, dest, style) != nil {
		return fmt.Errorf("%v %d->%d: %w", style, source, dest, ErrDuplicate)
	}
	e := g.link(source, dest, style)
	if err := g.update(source, dest); err != nil {
		g.unlink(e)
		if rerr := g.update(source, dest); rerr != nil {
			return fmt.Errorf("%v: rollback failed: %v", err, rerr)
		}
		return err
	}
	return nil
}

func (g *Graph) retract(source, dest ID, style Style) error {
	e := g.find(source, dest, style)
	if e == nil {
		return fmt.Errorf("%v %d->%d: %w", style, source, dest, ErrNoEdge)
	}
	g.unlink(e)
	return g.update(source, dest)
}

func (g *Graph) find(source, dest ID, style Style) *Edge {
	v, ok := g.vertices[source]
	if !ok {
		return nil
	}
	for _, eid := range v.outgoing {
		if e := g.edges[eid]; e.Dest == dest && e.Style == style {
			return e
		}
	}
	return nil
}

func (g *Graph) link(source, dest ID, style Style) *Edge {
	g.nextEdge++
	e := &Edge{ID: g.nextEdge, Source: source, Dest: dest, Style: style}
	g.edges[e.ID] = e
	g.vertices[source].outgoing = append(g.vertices[source].outgoing, e.ID)
	g.vertices[dest].incoming = append(g.vertices[dest].incoming, e.ID)
	return e
}

func (g *Graph) unlink(e *Edge) {
	delete(g.edges, e.ID)
	if v, ok := g.vertices[e.Source]; ok {
		v.outgoing = without(v.outgoing, e.ID)
	}
	if v, ok := g.vertices[e.Dest]; ok {
		v.incoming = without(v.incoming, e.ID)
	}
}

func without(ids []EdgeID, id EdgeID) []EdgeID {
	for i := range ids {
		if ids[i] == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
