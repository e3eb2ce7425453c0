package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Handler runs a tool with arguments already parsed, defaulted and validated
// against the tool's parameters.
type Handler func(ctx context.Context, args map[string]any) (any, error)

type Registration struct {
	Tool    Tool
	Handler Handler
}

type entry struct {
	Registration
	schema *gojsonschema.Schema
}

var (
	namePattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	propertyTypes = map[string]bool{
		"string":  true,
		"number":  true,
		"integer": true,
		"boolean": true,
		"array":   true,
		"object":  true,
	}
)

// Registry holds the tools of one session. Registering a name that already
// exists replaces the previous entry.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	order     []string
	listeners []func([]Tool)
	logger    *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger.With(slog.String("component", "tools")),
	}
}

func (r *Registry) Register(t Tool, h Handler) error {
	return r.RegisterAll(Registration{Tool: t, Handler: h})
}

// RegisterAll validates every registration before storing any of them and
// notifies change listeners once.
func (r *Registry) RegisterAll(regs ...Registration) error {
	compiled := make([]*entry, 0, len(regs))
	seen := make(map[string]bool, len(regs))
	for _, reg := range regs {
		e, err := compile(reg)
		if err != nil {
			return err
		}
		if seen[e.Tool.Name] {
			return fmt.Errorf("%w: %s registered twice in one batch", ErrInvalidTool, e.Tool.Name)
		}
		seen[e.Tool.Name] = true
		compiled = append(compiled, e)
	}
	if len(compiled) == 0 {
		return nil
	}

	r.mu.Lock()
	for _, e := range compiled {
		if _, exists := r.entries[e.Tool.Name]; !exists {
			r.order = append(r.order, e.Tool.Name)
		} else {
			r.logger.Debug("tool replaced", slog.String("name", e.Tool.Name))
		}
		r.entries[e.Tool.Name] = e
		r.logger.Debug("tool registered", slog.String("name", e.Tool.Name))
	}
	tools, listeners := r.snapshotLocked()
	r.mu.Unlock()

	notify(listeners, tools)
	return nil
}

func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	if _, ok := r.entries[name]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	tools, listeners := r.snapshotLocked()
	r.mu.Unlock()

	notify(listeners, tools)
	return true
}

func (r *Registry) Get(name string) (Registration, bool) {
	e, ok := r.lookup(name)
	if !ok {
		return Registration{}, false
	}
	return e.Registration, true
}

// All returns the tool definitions in registration order.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools, _ := r.snapshotLocked()
	return tools
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// OnChange registers fn to be called with the full tool list after every
// change.
func (r *Registry) OnChange(fn func(tools []Tool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Registry) lookup(name string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

func (r *Registry) snapshotLocked() ([]Tool, []func([]Tool)) {
	tools := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.entries[name].Tool)
	}
	listeners := make([]func([]Tool), len(r.listeners))
	copy(listeners, r.listeners)
	return tools, listeners
}

func notify(listeners []func([]Tool), tools []Tool) {
	for _, fn := range listeners {
		fn(tools)
	}
}

func compile(reg Registration) (*entry, error) {
	t := reg.Tool
	if !namePattern.MatchString(t.Name) {
		return nil, fmt.Errorf("%w: bad name %q", ErrInvalidTool, t.Name)
	}
	if reg.Handler == nil {
		return nil, fmt.Errorf("%w: %s has no handler", ErrInvalidTool, t.Name)
	}
	if t.Type == "" {
		t.Type = TypeFunction
	}
	if t.Type != TypeFunction {
		return nil, fmt.Errorf("%w: %s has unsupported type %q", ErrInvalidTool, t.Name, t.Type)
	}
	if t.Parameters.Type == "" {
		t.Parameters.Type = "object"
	}
	if t.Parameters.Type != "object" {
		return nil, fmt.Errorf("%w: %s parameters must be an object", ErrInvalidTool, t.Name)
	}
	if t.Parameters.Properties == nil {
		t.Parameters.Properties = Properties{}
	}
	if t.Parameters.Required == nil {
		t.Parameters.Required = []string{}
	}
	for name, p := range t.Parameters.Properties {
		if err := checkProperty(p); err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidTool, t.Name, name, err)
		}
	}
	for _, name := range t.Parameters.Required {
		if _, ok := t.Parameters.Properties[name]; !ok {
			return nil, fmt.Errorf("%w: %s requires undeclared parameter %q", ErrInvalidTool, t.Name, name)
		}
	}

	doc, err := schemaDocument(t.Parameters)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTool, t.Name, err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTool, t.Name, err)
	}

	return &entry{
		Registration: Registration{Tool: t, Handler: reg.Handler},
		schema:       schema,
	}, nil
}

func checkProperty(p Property) error {
	if !propertyTypes[p.Type] {
		return fmt.Errorf("unsupported type %q", p.Type)
	}
	if p.Items != nil {
		return checkProperty(*p.Items)
	}
	return nil
}

// schemaDocument renders params as a plain JSON schema document. Empty
// required lists are left out since draft-04 rejects them.
func schemaDocument(params Parameters) (map[string]any, error) {
	data, err := json.Marshal(params.Properties)
	if err != nil {
		return nil, err
	}
	var props map[string]any
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, err
	}

	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(params.Required) > 0 {
		required := make([]any, len(params.Required))
		for i, r := range params.Required {
			required[i] = r
		}
		doc["required"] = required
	}
	return doc, nil
}
