package alpaca

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Verb is an HTTP verb accepted on the device-control surface.
type Verb string

const (
	VerbGet Verb = "GET"
	VerbPut Verb = "PUT"
)

// ParamType names the semantic type a handler expects for a parameter.
// The dispatcher only checks presence; coercion is the handler's job.
type ParamType string

const (
	TypeString ParamType = "str"
	TypeInt    ParamType = "int"
	TypeBool   ParamType = "bool"
	TypeFloat  ParamType = "float"
)

// Param is a required request parameter.
type Param struct {
	Name string
	Type ParamType
}

// MethodSpec declares one API call and the parameters it requires.
type MethodSpec struct {
	Verb     Verb
	Name     string
	Required []Param
}

// Category is a named group of method declarations merged into a Registry.
type Category struct {
	Name    string
	Methods []MethodSpec
}

func get(name string, params ...Param) MethodSpec {
	return MethodSpec{Verb: VerbGet, Name: name, Required: params}
}

func put(name string, params ...Param) MethodSpec {
	return MethodSpec{Verb: VerbPut, Name: name, Required: params}
}

var (
	pDeviceType   = Param{"device_type", TypeString}
	pDeviceNumber = Param{"device_number", TypeInt}
	pID           = Param{"id", TypeInt}
)

// CommonMethods are declared by every Alpaca device category.
var CommonMethods = Category{
	Name: "Common",
	Methods: []MethodSpec{
		put("action", pDeviceType, pDeviceNumber, Param{"action", TypeString}, Param{"parameters", TypeString}),
		put("commandblind", pDeviceType, pDeviceNumber, Param{"command", TypeString}, Param{"raw", TypeString}),
		put("commandbool", pDeviceType, pDeviceNumber, Param{"command", TypeString}, Param{"raw", TypeString}),
		put("commandstring", pDeviceType, pDeviceNumber, Param{"command", TypeString}, Param{"raw", TypeString}),
		put("connected", pDeviceType, pDeviceNumber, Param{"connected", TypeBool}),
		get("connected", pDeviceType, pDeviceNumber),
		get("description", pDeviceType, pDeviceNumber),
		get("driverinfo", pDeviceType, pDeviceNumber),
		get("driverversion", pDeviceType, pDeviceNumber),
		get("interfaceversion", pDeviceType, pDeviceNumber),
		get("name", pDeviceType, pDeviceNumber),
		get("supportedactions", pDeviceType, pDeviceNumber),
	},
}

// SwitchMethods are the Switch device category methods.
var SwitchMethods = Category{
	Name: "Switch",
	Methods: []MethodSpec{
		put("setswitch", pDeviceNumber, pID, Param{"state", TypeBool}),
		put("setswitchname", pDeviceNumber, pID, Param{"name", TypeString}),
		put("setswitchvalue", pDeviceNumber, pID, Param{"value", TypeFloat}),
		get("maxswitch", pDeviceNumber),
		get("canwrite", pDeviceNumber, pID),
		get("getswitch", pDeviceNumber, pID),
		get("getswitchdescription", pDeviceNumber, pID),
		get("getswitchname", pDeviceNumber, pID),
		get("getswitchvalue", pDeviceNumber, pID),
		get("minswitchvalue", pDeviceNumber, pID),
		get("maxswitchvalue", pDeviceNumber, pID),
		get("switchstep", pDeviceNumber, pID),
	},
}

type entry struct {
	spec    MethodSpec
	handler Handler
}

// Registry is the method table consulted by the Dispatcher. Declarations are
// fixed at construction; only handler bindings change afterwards.
type Registry struct {
	mu      sync.RWMutex
	methods map[Verb]map[string]*entry
}

// NewRegistry merges the given categories into one table. A verb/method pair
// declared by two categories is an error.
func NewRegistry(categories ...Category) (*Registry, error) {
	r := &Registry{
		methods: map[Verb]map[string]*entry{
			VerbGet: {},
			VerbPut: {},
		},
	}

	for _, cat := range categories {
		for _, spec := range cat.Methods {
			table, ok := r.methods[spec.Verb]
			if !ok {
				return nil, fmt.Errorf("%s %s: %w %q", cat.Name, spec.Name, ErrUnsupportedVerb, spec.Verb)
			}
			if _, exists := table[spec.Name]; exists {
				return nil, fmt.Errorf("%s: %w %s %q", cat.Name, ErrDuplicateMethod, spec.Verb, spec.Name)
			}
			table[spec.Name] = &entry{spec: spec}
		}
	}

	return r, nil
}

// Lookup returns the declaration for verb and name.
func (r *Registry) Lookup(verb Verb, name string) (MethodSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.methods[verb][name]
	if !ok {
		return MethodSpec{}, false
	}
	return e.spec, true
}

// Bind attaches a handler to a declared method.
func (r *Registry) Bind(verb Verb, name string, h Handler) error {
	if h == nil {
		return fmt.Errorf("%s %q: %w", verb, name, ErrNilHandler)
	}
	if f, ok := h.(HandlerFunc); ok && f == nil {
		return fmt.Errorf("%s %q: %w", verb, name, ErrNilHandler)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	table, ok := r.methods[verb]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnsupportedVerb, verb)
	}
	e, ok := table[name]
	if !ok {
		return fmt.Errorf("%s %q: %w", verb, name, ErrUnknownMethod)
	}
	e.handler = h
	return nil
}

// Binding pairs a method with the handler that serves it.
type Binding struct {
	Verb    Verb
	Name    string
	Handler Handler
}

// BindAll binds every entry, stopping at the first failure.
func (r *Registry) BindAll(bindings []Binding) error {
	for _, b := range bindings {
		if err := r.Bind(b.Verb, b.Name, b.Handler); err != nil {
			return err
		}
	}
	return nil
}

// resolve returns the declaration and bound handler for verb and name.
// An unbound method reports ok=false, same as an undeclared one.
func (r *Registry) resolve(verb Verb, name string) (MethodSpec, Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.methods[verb][name]
	if !ok || e.handler == nil {
		return MethodSpec{}, nil, false
	}
	return e.spec, e.handler, true
}

// Unbound lists declared methods that have no handler, sorted by verb then name.
func (r *Registry) Unbound() []MethodSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []MethodSpec
	for _, table := range r.methods {
		for _, e := range table {
			if e.handler == nil {
				out = append(out, e.spec)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Verb != out[j].Verb {
			return out[i].Verb < out[j].Verb
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ParseVerb maps an HTTP method onto a Verb.
func ParseVerb(method string) (Verb, error) {
	switch strings.ToUpper(method) {
	case "GET":
		return VerbGet, nil
	case "PUT":
		return VerbPut, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnsupportedVerb, method)
	}
}
