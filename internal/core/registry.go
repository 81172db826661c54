package core

import (
	"fmt"
	"strings"
	"sync"
)

// EntityInfo describes an entity kind for listings and file naming.
type EntityInfo struct {
	Kind  Kind
	Label string // Display name ("Accounts")
}

// EntityDefinition carries everything needed to turn raw field values into
// an entity of one kind and to write it back out.
type EntityDefinition struct {
	Info          EntityInfo
	FieldSpecs    []FieldSpec
	ExportColumns []Field

	// Build constructs an entity from validated values. Values for every
	// FieldSpec are present (possibly empty).
	Build func(v Values) (Entity, error)
}

var (
	registry   = make(map[Kind]EntityDefinition)
	registryMu sync.RWMutex
)

// Register adds an entity definition to the registry.
// Panics if the kind is already registered.
func Register(def EntityDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Kind]; exists {
		panic(fmt.Sprintf("entity already registered: %s", def.Info.Kind))
	}

	if len(def.ExportColumns) == 0 && len(def.FieldSpecs) > 0 {
		def.ExportColumns = make([]Field, len(def.FieldSpecs))
		for i, spec := range def.FieldSpecs {
			def.ExportColumns[i] = spec.Name
		}
	}

	registry[def.Info.Kind] = def
}

// Get returns the definition for a kind.
func Get(kind Kind) (EntityDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[kind]
	return def, ok
}

// MustGet is Get for kinds known to be registered.
func MustGet(kind Kind) EntityDefinition {
	def, ok := Get(kind)
	if !ok {
		panic(fmt.Sprintf("unknown entity kind: %s", kind))
	}
	return def
}

// All returns the registered definitions in Kinds order.
func All() []EntityDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EntityDefinition, 0, len(registry))
	for _, k := range Kinds {
		if def, ok := registry[k]; ok {
			result = append(result, def)
		}
	}
	return result
}

// Spec returns the FieldSpec for a field of this kind.
func (d EntityDefinition) Spec(f Field) (FieldSpec, bool) {
	for _, s := range d.FieldSpecs {
		if s.Name == f {
			return s, true
		}
	}
	return FieldSpec{}, false
}

// BuildEntity validates v against the kind's field specs and builds the
// entity. Values are only trimmed; spreadsheet artifacts are stripped by
// RowValues on the CSV path. The first failing field is reported as a
// ValidationError.
func BuildEntity(kind Kind, v Values) (Entity, error) {
	def, ok := Get(kind)
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}

	clean := make(Values, len(def.FieldSpecs))
	for _, spec := range def.FieldSpecs {
		raw := strings.TrimSpace(v[string(spec.Name)])
		if spec.Type == FieldEmailAddr {
			raw = NormalizeEmail(raw)
		}
		if err := ValidateValue(raw, spec); err != nil {
			return nil, err
		}
		clean[string(spec.Name)] = raw
	}
	return def.Build(clean)
}

// ValuesOf extracts the spec'd fields of an entity as raw values.
func ValuesOf(e Entity) Values {
	def := MustGet(e.Kind())
	v := make(Values, len(def.FieldSpecs))
	for _, spec := range def.FieldSpecs {
		v[string(spec.Name)] = e.Value(spec.Name)
	}
	return v
}

// MergeEntity applies a partial set of values on top of an existing entity
// and returns the rebuilt entity. Identity, tenant, timestamps and lead
// conversion state are carried over from existing.
func MergeEntity(existing Entity, patch Values) (Entity, error) {
	v := ValuesOf(existing)
	for k, val := range patch {
		v[k] = val
	}
	e, err := BuildEntity(existing.Kind(), v)
	if err != nil {
		return nil, err
	}
	carryOver(existing, e)
	return e, nil
}

func carryOver(from, to Entity) {
	switch dst := to.(type) {
	case *Account:
		src := from.(*Account)
		dst.ID, dst.TenantID, dst.CreatedAt, dst.UpdatedAt = src.ID, src.TenantID, src.CreatedAt, src.UpdatedAt
	case *Contact:
		src := from.(*Contact)
		dst.ID, dst.TenantID, dst.CreatedAt, dst.UpdatedAt = src.ID, src.TenantID, src.CreatedAt, src.UpdatedAt
	case *Lead:
		src := from.(*Lead)
		dst.ID, dst.TenantID, dst.CreatedAt, dst.UpdatedAt = src.ID, src.TenantID, src.CreatedAt, src.UpdatedAt
		dst.Converted = src.Converted
		dst.ConvertedDate = src.ConvertedDate
		dst.ConvertedContactID = src.ConvertedContactID
	}
}
