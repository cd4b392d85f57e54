// Package patch describes flow systems in YAML and builds them.
//
// A patch lists nodes by name and type, their parameters, connections
// and virtual ports:
//
//	sampleRate: 44100
//	nodes:
//	  - name: osc
//	    type: sine
//	    params:
//	      freq: 440
//	  - name: amp
//	    type: gain
//	    params:
//	      gain: 0.5
//	connections:
//	  - from: osc.out
//	    to: amp.in
//	outputs:
//	  - amp.out
//
// Parameters are constant values of unconnected inputs. Settings
// configure the module itself and are interpreted by its factory.
package patch

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dudk/synthflow"
	"github.com/dudk/synthflow/mixer"
	"github.com/dudk/synthflow/unit"
)

var (
	// ErrUnknownType is returned when a node type is not registered.
	ErrUnknownType = errors.New("unknown node type")
	// ErrUnknownNode is returned when an endpoint refers to a missing node.
	ErrUnknownNode = errors.New("unknown node")
	// ErrEndpoint is returned when an endpoint is not in node.port form.
	ErrEndpoint = errors.New("endpoint must be node.port")
)

type (
	// Patch is a description of a flow system.
	Patch struct {
		SampleRate  int          `yaml:"sampleRate,omitempty"`
		BufferSize  int          `yaml:"bufferSize,omitempty"`
		Nodes       []Node       `yaml:"nodes"`
		Connections []Connection `yaml:"connections,omitempty"`
		Virtualize  []Virtual    `yaml:"virtualize,omitempty"`
		Outputs     []string     `yaml:"outputs,omitempty"`
	}

	// Node is a module instance.
	Node struct {
		Name     string             `yaml:"name"`
		Type     string             `yaml:"type"`
		Params   map[string]float32 `yaml:"params,omitempty"`
		Settings map[string]float32 `yaml:"settings,omitempty"`
		Stopped  bool               `yaml:"stopped,omitempty"`
	}

	// Connection connects an output endpoint with an input endpoint.
	Connection struct {
		From string `yaml:"from"`
		To   string `yaml:"to"`
	}

	// Virtual declares that Port is implemented by Impl.
	Virtual struct {
		Port string `yaml:"port"`
		Impl string `yaml:"impl"`
	}

	// Factory creates a module for the node.
	Factory func(n Node, sampleRate int) (synthflow.Module, error)

	// Instance is a patch built into a flow system.
	Instance struct {
		Flow  *synthflow.FlowSystem
		Nodes map[string]*synthflow.ScheduleNode
	}
)

var registry = map[string]Factory{
	"constant": func(n Node, _ int) (synthflow.Module, error) {
		return &unit.Constant{Value: n.Settings["value"]}, nil
	},
	"sine": func(n Node, sampleRate int) (synthflow.Module, error) {
		return &unit.Sine{SampleRate: sampleRate, Amplitude: n.Settings["amplitude"]}, nil
	},
	"gain": func(Node, int) (synthflow.Module, error) {
		return &unit.Gain{}, nil
	},
	"bypass": func(Node, int) (synthflow.Module, error) {
		return &unit.Bypass{}, nil
	},
	"mixer": func(n Node, _ int) (synthflow.Module, error) {
		return &mixer.Mixer{Sum: n.Settings["sum"] != 0}, nil
	},
}

// Register adds a node type. Existing type with the same name is replaced.
func Register(typ string, f Factory) {
	registry[typ] = f
}

// Types returns sorted names of registered node types.
func Types() []string {
	types := make([]string, 0, len(registry))
	for typ := range registry {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// Parse decodes a patch. Unknown fields are rejected.
func Parse(r io.Reader) (*Patch, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var p Patch
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse patch: %w", err)
	}
	return &p, nil
}

// Encode writes the patch as YAML.
func (p *Patch) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}

// Options returns flow system options of the patch.
func (p *Patch) Options() []synthflow.Option {
	var options []synthflow.Option
	if p.SampleRate > 0 {
		options = append(options, synthflow.WithSampleRate(p.SampleRate))
	}
	if p.BufferSize > 0 {
		options = append(options, synthflow.WithBufferSize(p.BufferSize))
	}
	return options
}

// Build adds nodes of the patch to the flow system, declares virtual ports,
// connects and starts them.
func (p *Patch) Build(f *synthflow.FlowSystem) (*Instance, error) {
	inst := &Instance{
		Flow:  f,
		Nodes: make(map[string]*synthflow.ScheduleNode),
	}
	for _, n := range p.Nodes {
		if _, ok := inst.Nodes[n.Name]; ok {
			return nil, fmt.Errorf("node %q is declared twice", n.Name)
		}
		factory, ok := registry[n.Type]
		if !ok {
			return nil, fmt.Errorf("node %q of type %q: %w", n.Name, n.Type, ErrUnknownType)
		}
		m, err := factory(n, f.SampleRate())
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
		node, err := f.AddObject(m)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
		inst.Nodes[n.Name] = node
		for port, v := range n.Params {
			if err := f.SetFloatValue(node, port, v); err != nil {
				return nil, fmt.Errorf("node %q param %q: %w", n.Name, port, err)
			}
		}
	}
	for _, v := range p.Virtualize {
		port, portName, err := inst.Endpoint(v.Port)
		if err != nil {
			return nil, err
		}
		impl, implName, err := inst.Endpoint(v.Impl)
		if err != nil {
			return nil, err
		}
		if err := f.VirtualizeObject(port, portName, impl, implName); err != nil {
			return nil, err
		}
	}
	for _, c := range p.Connections {
		from, fromName, err := inst.Endpoint(c.From)
		if err != nil {
			return nil, err
		}
		to, toName, err := inst.Endpoint(c.To)
		if err != nil {
			return nil, err
		}
		if err := f.ConnectObject(from, fromName, to, toName); err != nil {
			return nil, err
		}
	}
	for _, n := range p.Nodes {
		if n.Stopped {
			continue
		}
		if err := f.StartObject(inst.Nodes[n.Name]); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// Endpoint resolves node.port into the node and port name.
func (inst *Instance) Endpoint(endpoint string) (*synthflow.ScheduleNode, string, error) {
	name, port, ok := strings.Cut(endpoint, ".")
	if !ok || name == "" || port == "" {
		return nil, "", fmt.Errorf("%q: %w", endpoint, ErrEndpoint)
	}
	n, ok := inst.Nodes[name]
	if !ok {
		return nil, "", fmt.Errorf("%q: %w", endpoint, ErrUnknownNode)
	}
	return n, port, nil
}
