package parser

// ModelKind distinguishes the class flavors the parser recognizes.
type ModelKind int

const (
	// KindModel is an ordinary persisted model (models.Model).
	KindModel ModelKind = iota
	// KindAbstractModel is an abstract base (models.AbstractModel).
	KindAbstractModel
	// KindComponent is a component class: methods but no fields, identified
	// by _name with _apply_on/_collection instead of _inherit semantics.
	KindComponent
)

func (k ModelKind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindAbstractModel:
		return "abstract"
	case KindComponent:
		return "component"
	default:
		return "unknown"
	}
}

// FieldProperty is one parsed constructor argument of a field declaration.
// Value is string, bool, int64, float64, or the raw argument text when no
// coercion applies.
type FieldProperty struct {
	Name  string
	Value any
}

// FieldDescriptor describes one field declaration inside a model body.
type FieldDescriptor struct {
	Name       string
	Kind       string // field constructor name, e.g. "Char", "Many2one"
	Properties []FieldProperty
	Line       int    // 1-based line number within the source file
	Doc        string // preceding #-comment text, if any
}

// Property returns the named property value, or (nil, false).
func (f *FieldDescriptor) Property(name string) (any, bool) {
	for _, p := range f.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// MethodDescriptor describes one def inside a model body.
type MethodDescriptor struct {
	Name       string
	Params     []string
	Decorators []string // raw decorator lines, in source order
	Line       int
	Doc        string // first line of a trailing triple-quoted string, best-effort
}

// ModelDescriptor is the unit of registry storage: one recognized class in
// one source file. A descriptor always has a declared identity (_name) or an
// extension target (_inherit); classes with neither are dropped in parsing.
type ModelDescriptor struct {
	Name        string // declared identity, empty for pure extensions
	ClassName   string
	FilePath    string
	ModuleName  string
	IsExtension bool
	Inherit     string // extended identity, set when IsExtension
	Fields      []*FieldDescriptor
	Methods     []*MethodDescriptor
	Depends     []string // owning module's dependency list
	Line        int
	Kind        ModelKind

	// Component-only attributes.
	ApplyOn    string
	Collection string
}

// Identity returns the name the descriptor is registered under: the declared
// identity when present, otherwise the extension target.
func (m *ModelDescriptor) Identity() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Inherit
}
