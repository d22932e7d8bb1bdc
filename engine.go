package cartographer

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Mapper executes compiled type maps. It never changes after CreateMapper
// and is safe for concurrent use.
type Mapper struct {
	config   *Configuration
	typeMaps map[typeMapKey]*TypeMap
	order    []*TypeMap
	options  Options
	optLevel OptimizationLevel
	logger   logrus.FieldLogger

	resolved sync.Map // typeMapKey -> *TypeMap, nil when nothing matches
	plans    sync.Map // planKey -> *planEntry
}

func newMapper(c *Configuration) *Mapper {
	return &Mapper{
		config:   c,
		typeMaps: c.typeMaps,
		order:    c.order,
		options:  c.options,
		optLevel: c.optLevel,
		logger:   c.logger,
	}
}

// Options returns the options the mapper was created with.
func (m *Mapper) Options() Options {
	return m.options
}

// Map performs mapping from source to a new destination instance. TDest may
// be a struct, a pointer to a struct or an interface. A nil source yields
// the zero value. Cyclic source graphs need WithPreserveReferences or
// WithMaxDepth; otherwise mapping does not terminate.
func Map[TDest any](m *Mapper, src any) (TDest, error) {
	var dest TDest
	out, err := m.mapRoot(reflect.ValueOf(src), TypeOf[TDest](), newMappingContext(m.options))
	if err != nil {
		return dest, err
	}
	if out.IsValid() {
		reflect.ValueOf(&dest).Elem().Set(out)
	}
	return dest, nil
}

// MapTo performs mapping from source to an existing destination instance.
// Hooks run and the instance behind dest is populated in place.
func MapTo[TDest any](m *Mapper, src any, dest *TDest) error {
	if dest == nil {
		return &MappingError{Message: "destination must not be nil", DestType: TypeOf[TDest]()}
	}
	return m.mapInto(reflect.ValueOf(src), reflect.ValueOf(dest).Elem(), newMappingContext(m.options))
}

// MapSlice maps a slice of source objects to a slice of destination objects
// within one mapping context.
func MapSlice[TSrc, TDest any](m *Mapper, src []TSrc) ([]TDest, error) {
	if src == nil {
		if m.options.NullCollections == UseEmptyCollection {
			return []TDest{}, nil
		}
		return nil, nil
	}

	ctx := newMappingContext(m.options)
	destType := TypeOf[TDest]()
	result := make([]TDest, len(src))
	for i := range src {
		out, err := m.mapRoot(reflect.ValueOf(&src[i]).Elem(), destType, ctx)
		if err != nil {
			return nil, &MappingError{
				Message:    fmt.Sprintf("error mapping element at index %d", i),
				InnerError: err,
			}
		}
		if out.IsValid() {
			reflect.ValueOf(&result[i]).Elem().Set(out)
		}
	}
	return result, nil
}

// MapType maps src to destType without static types. When a type map serves
// the pair, the result is a pointer to the destination, which is of the
// derived destination type for included pairs.
func (m *Mapper) MapType(src any, srcType, destType reflect.Type) (any, error) {
	if destType == nil {
		return nil, errors.New("destination type is required")
	}
	v := reflect.ValueOf(src)
	if srcType != nil && v.IsValid() && !v.Type().AssignableTo(srcType) &&
		!derivesFrom(baseType(v.Type()), baseType(srcType)) {
		return nil, &MappingError{
			Message:  fmt.Sprintf("source does not match declared type %v", srcType),
			SrcType:  v.Type(),
			DestType: destType,
		}
	}
	if isNilValue(v) {
		return nil, nil
	}

	ctx := newMappingContext(m.options)
	if tm := m.resolveTypeMap(v.Type(), destType); tm != nil {
		ptr, err := m.execute(tm, v, ctx)
		if err != nil || !ptr.IsValid() {
			return nil, err
		}
		return ptr.Interface(), nil
	}

	out, err := m.mapRoot(v, destType, ctx)
	if err != nil || !out.IsValid() {
		return nil, err
	}
	return out.Interface(), nil
}

// mapRoot maps a top-level value. Objects need a type map; collections are
// mapped element-wise.
func (m *Mapper) mapRoot(v reflect.Value, dt reflect.Type, ctx *MappingContext) (reflect.Value, error) {
	v = unwrapInterface(v)
	if isNilValue(v) {
		return m.nullValue(dt), nil
	}

	if tm := m.resolveTypeMap(v.Type(), dt); tm != nil {
		return m.mapObject(tm, v, dt, ctx)
	}
	if isCollection(baseType(v.Type())) && isCollection(baseType(dt)) {
		if plan := m.planFor(v.Type(), dt); plan != nil {
			return plan(m, v, ctx)
		}
	}
	return reflect.Value{}, noMapping(v.Type(), dt)
}

// mapInto runs the update procedure against an existing destination.
func (m *Mapper) mapInto(v, target reflect.Value, ctx *MappingContext) error {
	v = unwrapInterface(v)
	if isNilValue(v) {
		return nil
	}

	target = settleTarget(target)
	if !target.IsValid() || !target.CanAddr() {
		return &MappingError{Message: "destination is not addressable", SrcType: v.Type()}
	}

	tm := m.resolveTypeMap(v.Type(), target.Type())
	if tm == nil {
		return noMapping(v.Type(), target.Type())
	}
	if tm.destType != target.Type() {
		return &MappingError{
			Message:  fmt.Sprintf("derived destination %v cannot update an existing %v", tm.destType, target.Type()),
			SrcType:  v.Type(),
			DestType: target.Type(),
		}
	}

	within := ctx.enter()
	defer ctx.leave()
	if !within {
		return nil
	}
	ctx.track(v, tm, target.Addr())
	return tm.update(v, target, m, ctx)
}

// mapObject maps v with tm and fits the result into dt.
func (m *Mapper) mapObject(tm *TypeMap, v reflect.Value, dt reflect.Type, ctx *MappingContext) (reflect.Value, error) {
	v = unwrapInterface(v)
	if isNilValue(v) {
		return m.nullValue(dt), nil
	}

	ptr, err := m.execute(tm, v, ctx)
	if err != nil {
		return reflect.Value{}, err
	}
	if !ptr.IsValid() {
		return reflect.Zero(dt), nil
	}

	out, ok := adapt(ptr, dt)
	if !ok {
		return reflect.Value{}, &MappingError{
			Message:  "mapped value does not fit the destination",
			SrcType:  ptr.Type(),
			DestType: dt,
		}
	}
	return out, nil
}

// execute dispatches one object. Past the depth limit the result is
// absent; a source already mapped in this call yields its destination.
func (m *Mapper) execute(tm *TypeMap, src reflect.Value, ctx *MappingContext) (reflect.Value, error) {
	within := ctx.enter()
	defer ctx.leave()
	if !within {
		return reflect.Value{}, nil
	}

	if dest, ok := ctx.lookup(src, tm); ok {
		return dest, nil
	}
	if tm.create == nil {
		return reflect.Value{}, &MappingError{Message: "type map is not compiled", SrcType: tm.srcType, DestType: tm.destType}
	}
	return tm.create(src, m, ctx)
}

// resolveTypeMap finds the map serving a runtime source type and a
// requested destination type. Results are cached per pair.
func (m *Mapper) resolveTypeMap(src, dest reflect.Type) *TypeMap {
	key := newTypeMapKey(src, dest)
	if cached, ok := m.resolved.Load(key); ok {
		return cached.(*TypeMap)
	}
	tm := m.findTypeMap(key)
	m.resolved.Store(key, tm)
	return tm
}

func (m *Mapper) findTypeMap(key typeMapKey) *TypeMap {
	if tm, ok := m.typeMaps[key]; ok {
		return tm
	}

	rt, requested := key.srcType, key.destType

	// A base map whose pairs accept the request and that includes rt.
	for _, base := range m.order {
		if !derivesFrom(rt, base.srcType) || !derivesFrom(base.destType, requested) {
			continue
		}
		for _, inc := range base.includes {
			if inc.srcType == rt {
				return inc
			}
		}
	}

	// A map from an interface that rt implements.
	if rt.Kind() != reflect.Interface {
		for _, tm := range m.order {
			if tm.srcType.Kind() == reflect.Interface && tm.destType == requested && derivesFrom(rt, tm.srcType) {
				return tm
			}
		}
	}
	return nil
}

// derefValue dereferences pointers and interfaces.
func derefValue(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func unwrapInterface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func isNilValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func isCollection(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

// settleTarget follows pointers to the value an update writes into,
// allocating nil pointers on the way.
func settleTarget(v reflect.Value) reflect.Value {
	for {
		switch v.Kind() {
		case reflect.Ptr:
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		case reflect.Interface:
			if v.IsNil() {
				return reflect.Value{}
			}
			v = v.Elem()
		default:
			return v
		}
	}
}

// getNestedField gets a field value using nested indices. A nil pointer on
// the way yields an invalid value.
func getNestedField(v reflect.Value, indices []int) reflect.Value {
	v = derefValue(v)
	if !v.IsValid() {
		return reflect.Value{}
	}

	for _, idx := range indices {
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct || idx >= v.NumField() {
			return reflect.Value{}
		}
		v = v.Field(idx)
	}

	return v
}

// fieldForWrite walks indices from an addressable struct, allocating nil
// embedded pointers. It returns an invalid value when a pointer cannot be set.
func fieldForWrite(v reflect.Value, indices []int) reflect.Value {
	for i, idx := range indices {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(idx)
	}
	return v
}
