package bolcorr

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

//go:embed data/methods.json
var defaultMethodData []byte

const propertiesKey = "properties"

// derivativeStep is the central difference step for expression relations.
const derivativeStep = 1e-5

// Relation maps a colour index to a bolometric correction.
type Relation struct {
	Color        string    `json:"-"`
	RangeMin     float64   `json:"range_min"`
	RangeMax     float64   `json:"range_max"`
	Coefficients []float64 `json:"coefficients,omitempty"`
	Expression   string    `json:"expression,omitempty"`
	RMS          float64   `json:"rms"`

	program *vm.Program
}

func (r *Relation) compile() error {
	if r.RangeMin > r.RangeMax {
		return fmt.Errorf("relation %s: range [%v, %v] is inverted", r.Color, r.RangeMin, r.RangeMax)
	}
	expression := strings.TrimSpace(r.Expression)
	switch {
	case expression == "" && len(r.Coefficients) == 0:
		return fmt.Errorf("relation %s: needs coefficients or an expression", r.Color)
	case expression != "" && len(r.Coefficients) > 0:
		return fmt.Errorf("relation %s: coefficients and expression are exclusive", r.Color)
	case expression == "":
		return nil
	}
	program, err := expr.Compile(expression, expr.Env(map[string]interface{}{"color": 0.0}), expr.AsFloat64())
	if err != nil {
		return fmt.Errorf("relation %s: compile: %w", r.Color, err)
	}
	r.program = program
	return nil
}

// InRange reports whether color lies inside the calibrated range.
func (r *Relation) InRange(color float64) bool {
	return r.RangeMin <= color && color <= r.RangeMax
}

// Evaluate returns the bolometric correction at color.
func (r *Relation) Evaluate(color float64) (float64, error) {
	if r.program == nil {
		return ComputePolynomial(r.Coefficients, color), nil
	}
	out, err := vm.Run(r.program, map[string]interface{}{"color": color})
	if err != nil {
		return 0, fmt.Errorf("relation %s: %w", r.Color, err)
	}
	value, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("relation %s: expression returned %T", r.Color, out)
	}
	return value, nil
}

// Derivative returns dBC/dcolor at color.
func (r *Relation) Derivative(color float64) (float64, error) {
	if r.program == nil {
		return ComputePolynomialDerivative(r.Coefficients, color), nil
	}
	hi, err := r.Evaluate(color + derivativeStep)
	if err != nil {
		return 0, err
	}
	lo, err := r.Evaluate(color - derivativeStep)
	if err != nil {
		return 0, err
	}
	return (hi - lo) / (2 * derivativeStep), nil
}

// Method is a named set of colour relations sharing a zero point.
type Method struct {
	Name       string
	ZeroPoint  float64
	Properties map[string]interface{}
	relations  map[string]*Relation
}

// Relation returns the relation for the colour band1-band2.
func (m *Method) Relation(band1, band2 string) (*Relation, error) {
	rel, ok := m.relations[band1+"-"+band2]
	if !ok {
		return nil, fmt.Errorf("%w: %s-%s for method %s", ErrInvalidFilterCombination, band1, band2, m.Name)
	}
	return rel, nil
}

// Range returns the calibrated colour range for band1-band2.
func (m *Method) Range(band1, band2 string) (float64, float64, error) {
	rel, err := m.Relation(band1, band2)
	if err != nil {
		return 0, 0, err
	}
	return rel.RangeMin, rel.RangeMax, nil
}

// RMS returns the scatter of the band1-band2 relation.
func (m *Method) RMS(band1, band2 string) (float64, error) {
	rel, err := m.Relation(band1, band2)
	if err != nil {
		return 0, err
	}
	return rel.RMS, nil
}

// Colors lists the colour indices the method covers.
func (m *Method) Colors() []string {
	out := make([]string, 0, len(m.relations))
	for color := range m.relations {
		out = append(out, color)
	}
	sort.Strings(out)
	return out
}

// Engine is a read-only registry of bolometric correction methods.
type Engine struct {
	methods map[string]*Method
}

// LoadEngine decodes one or more method tables. A method name may appear in
// only one table.
func LoadEngine(readers ...io.Reader) (*Engine, error) {
	engine := &Engine{methods: make(map[string]*Method)}
	for _, r := range readers {
		if err := engine.load(r); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

var (
	defaultEngineOnce sync.Once
	defaultEngine     *Engine
)

// DefaultEngine returns the embedded method table.
func DefaultEngine() *Engine {
	defaultEngineOnce.Do(func() {
		engine, err := LoadEngine(strings.NewReader(string(defaultMethodData)))
		if err != nil {
			panic(fmt.Sprintf("embedded bolometric correction table invalid: %v", err))
		}
		defaultEngine = engine
	})
	return defaultEngine
}

// Extend returns a new engine holding the receiver's methods and those
// decoded from r.
func (e *Engine) Extend(r io.Reader) (*Engine, error) {
	out := &Engine{methods: make(map[string]*Method, len(e.methods))}
	for name, method := range e.methods {
		out.methods[name] = method
	}
	if err := out.load(r); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) load(r io.Reader) error {
	if r == nil {
		return errors.New("method table reader must not be nil")
	}
	var raw map[string]map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return fmt.Errorf("decode method table: %w", err)
	}
	for name, entries := range raw {
		if _, exists := e.methods[name]; exists {
			return fmt.Errorf("duplicate bolometric correction method %q", name)
		}
		method, err := decodeMethod(name, entries)
		if err != nil {
			return err
		}
		e.methods[name] = method
	}
	return nil
}

func decodeMethod(name string, entries map[string]json.RawMessage) (*Method, error) {
	method := &Method{Name: name, relations: make(map[string]*Relation)}
	props, ok := entries[propertiesKey]
	if !ok {
		return nil, fmt.Errorf("method %s: missing properties", name)
	}
	if err := json.Unmarshal(props, &method.Properties); err != nil {
		return nil, fmt.Errorf("method %s: properties: %w", name, err)
	}
	zp, ok := method.Properties["ZP"].(float64)
	if !ok {
		return nil, fmt.Errorf("method %s: properties.ZP must be a number", name)
	}
	method.ZeroPoint = zp
	for color, data := range entries {
		if color == propertiesKey {
			continue
		}
		if strings.Count(color, "-") != 1 {
			return nil, fmt.Errorf("method %s: colour %q must have the form X-Y", name, color)
		}
		rel := &Relation{Color: color}
		if err := json.Unmarshal(data, rel); err != nil {
			return nil, fmt.Errorf("method %s: colour %s: %w", name, color, err)
		}
		if err := rel.compile(); err != nil {
			return nil, fmt.Errorf("method %s: %w", name, err)
		}
		method.relations[color] = rel
	}
	return method, nil
}

// Method looks a method up by name.
func (e *Engine) Method(name string) (*Method, error) {
	if e != nil {
		if method, ok := e.methods[name]; ok {
			return method, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidBCMethod, name)
}

// Names lists the available methods.
func (e *Engine) Names() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.methods))
	for name := range e.methods {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
