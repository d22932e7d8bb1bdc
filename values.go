package cartographer

import (
	"fmt"
	"reflect"
)

// valuePlan produces a value assignable to a fixed destination type. An
// invalid result with a nil error leaves the destination untouched.
type valuePlan func(m *Mapper, src reflect.Value, ctx *MappingContext) (reflect.Value, error)

type planKey struct {
	src  reflect.Type
	dest reflect.Type
}

type planEntry struct {
	plan valuePlan
}

// planFor returns the value plan for a static source type, or nil when no
// strategy exists. A nil source type is resolved from each runtime value.
func (m *Mapper) planFor(st, dt reflect.Type) valuePlan {
	return m.buildPlan(st, dt, nil)
}

func (m *Mapper) buildPlan(st, dt reflect.Type, visiting map[planKey]bool) valuePlan {
	key := planKey{src: st, dest: dt}
	if e, ok := m.plans.Load(key); ok {
		return e.(*planEntry).plan
	}

	// Self-referencing collection types resolve their inner plan on use.
	if visiting[key] {
		return func(m *Mapper, v reflect.Value, ctx *MappingContext) (reflect.Value, error) {
			if plan := m.planFor(st, dt); plan != nil {
				return plan(m, v, ctx)
			}
			return reflect.Value{}, nil
		}
	}
	if visiting == nil {
		visiting = make(map[planKey]bool)
	}
	visiting[key] = true
	plan := m.newPlan(st, dt, visiting)
	delete(visiting, key)

	actual, _ := m.plans.LoadOrStore(key, &planEntry{plan: plan})
	return actual.(*planEntry).plan
}

func (m *Mapper) newPlan(st, dt reflect.Type, visiting map[planKey]bool) valuePlan {
	switch {
	case st == nil:
		return dynamicPlan(dt)
	case st.AssignableTo(dt):
		return assignPlan(st, dt)
	case st.Kind() == reflect.Interface:
		return dynamicPlan(dt)
	}

	if tm := m.resolveTypeMap(st, dt); tm != nil {
		return objectPlan(tm, dt)
	}

	switch {
	case isSequence(st) && isSequence(dt):
		return m.sequencePlan(st, dt, visiting)
	case st.Kind() == reflect.Map && dt.Kind() == reflect.Map:
		return m.mapPlan(st, dt, visiting)
	case st.Kind() == reflect.Ptr:
		if inner := m.buildPlan(st.Elem(), dt, visiting); inner != nil {
			return derefPlan(inner, dt)
		}
		return nil
	case dt.Kind() == reflect.Ptr:
		if inner := m.buildPlan(st, dt.Elem(), visiting); inner != nil {
			return allocPlan(inner, dt)
		}
		return nil
	case isSafeConvert(st, dt):
		return func(_ *Mapper, v reflect.Value, _ *MappingContext) (reflect.Value, error) {
			return v.Convert(dt), nil
		}
	case canAdapt(st, dt):
		return func(_ *Mapper, v reflect.Value, _ *MappingContext) (reflect.Value, error) {
			out, ok := adapt(v, dt)
			if !ok {
				return reflect.Value{}, nil
			}
			return out, nil
		}
	}
	return nil
}

func assignPlan(st, dt reflect.Type) valuePlan {
	if isCollectionRef(st) {
		return func(m *Mapper, v reflect.Value, _ *MappingContext) (reflect.Value, error) {
			if v.IsNil() {
				return m.nullValue(dt), nil
			}
			return v, nil
		}
	}
	return func(_ *Mapper, v reflect.Value, _ *MappingContext) (reflect.Value, error) {
		return v, nil
	}
}

// dynamicPlan picks a plan from the runtime type of each value.
func dynamicPlan(dt reflect.Type) valuePlan {
	return func(m *Mapper, v reflect.Value, ctx *MappingContext) (reflect.Value, error) {
		v = unwrapInterface(v)
		if !v.IsValid() {
			return m.nullValue(dt), nil
		}
		plan := m.planFor(v.Type(), dt)
		if plan == nil {
			return reflect.Value{}, nil
		}
		return plan(m, v, ctx)
	}
}

func objectPlan(tm *TypeMap, dt reflect.Type) valuePlan {
	return func(m *Mapper, v reflect.Value, ctx *MappingContext) (reflect.Value, error) {
		return m.mapObject(tm, v, dt, ctx)
	}
}

func derefPlan(inner valuePlan, dt reflect.Type) valuePlan {
	return func(m *Mapper, v reflect.Value, ctx *MappingContext) (reflect.Value, error) {
		if v.IsNil() {
			return m.nullValue(dt), nil
		}
		return inner(m, v.Elem(), ctx)
	}
}

func allocPlan(inner valuePlan, dt reflect.Type) valuePlan {
	return func(m *Mapper, v reflect.Value, ctx *MappingContext) (reflect.Value, error) {
		if isNilCollection(v) && m.options.NullCollections == PreserveNull {
			return reflect.Zero(dt), nil
		}
		out, err := inner(m, v, ctx)
		if err != nil || !out.IsValid() {
			return out, err
		}
		p := reflect.New(dt.Elem())
		p.Elem().Set(out)
		return p, nil
	}
}

// sequencePlan maps slices and arrays element by element. Arrays keep
// their length: extra source elements are dropped.
func (m *Mapper) sequencePlan(st, dt reflect.Type, visiting map[planKey]bool) valuePlan {
	elem := m.buildPlan(st.Elem(), dt.Elem(), visiting)
	if elem == nil {
		return nil
	}

	return func(m *Mapper, v reflect.Value, ctx *MappingContext) (reflect.Value, error) {
		if v.Kind() == reflect.Slice && v.IsNil() {
			return m.nullValue(dt), nil
		}

		n := v.Len()
		var out reflect.Value
		if dt.Kind() == reflect.Array {
			out = reflect.New(dt).Elem()
			if n > dt.Len() {
				n = dt.Len()
			}
		} else {
			out = reflect.MakeSlice(dt, n, n)
		}

		for i := 0; i < n; i++ {
			ev, err := elem(m, v.Index(i), ctx)
			if err != nil {
				return reflect.Value{}, &MappingError{
					Message:    fmt.Sprintf("error mapping element at index %d", i),
					SrcType:    st,
					DestType:   dt,
					InnerError: err,
				}
			}
			if ev.IsValid() {
				out.Index(i).Set(ev)
			}
		}
		return out, nil
	}
}

// mapPlan maps Go maps key by key.
func (m *Mapper) mapPlan(st, dt reflect.Type, visiting map[planKey]bool) valuePlan {
	keyPlan := m.buildPlan(st.Key(), dt.Key(), visiting)
	elemPlan := m.buildPlan(st.Elem(), dt.Elem(), visiting)
	if keyPlan == nil || elemPlan == nil {
		return nil
	}

	return func(m *Mapper, v reflect.Value, ctx *MappingContext) (reflect.Value, error) {
		if v.IsNil() {
			return m.nullValue(dt), nil
		}

		out := reflect.MakeMapWithSize(dt, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k, err := keyPlan(m, iter.Key(), ctx)
			if err != nil {
				return reflect.Value{}, &MappingError{
					Message:    fmt.Sprintf("error mapping key %v", iter.Key()),
					SrcType:    st,
					DestType:   dt,
					InnerError: err,
				}
			}
			if !k.IsValid() {
				continue
			}
			val, err := elemPlan(m, iter.Value(), ctx)
			if err != nil {
				return reflect.Value{}, &MappingError{
					Message:    fmt.Sprintf("error mapping value for key %v", iter.Key()),
					SrcType:    st,
					DestType:   dt,
					InnerError: err,
				}
			}
			if !val.IsValid() {
				val = reflect.Zero(dt.Elem())
			}
			out.SetMapIndex(k, val)
		}
		return out, nil
	}
}

// nullValue is what a nil source becomes under the null collection strategy.
func (m *Mapper) nullValue(dt reflect.Type) reflect.Value {
	if m.options.NullCollections == UseEmptyCollection {
		switch dt.Kind() {
		case reflect.Slice:
			return reflect.MakeSlice(dt, 0, 0)
		case reflect.Map:
			return reflect.MakeMap(dt)
		case reflect.Ptr:
			if k := dt.Elem().Kind(); k == reflect.Slice || k == reflect.Map {
				p := reflect.New(dt.Elem())
				p.Elem().Set(m.nullValue(dt.Elem()))
				return p
			}
		}
	}
	return reflect.Zero(dt)
}

func isSequence(t reflect.Type) bool {
	return t.Kind() == reflect.Slice || t.Kind() == reflect.Array
}

// isCollectionRef reports slices, maps and pointers to them.
func isCollectionRef(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice, reflect.Map:
		return true
	case reflect.Ptr:
		k := t.Elem().Kind()
		return k == reflect.Slice || k == reflect.Map
	}
	return false
}

func isNilCollection(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.IsNil()
	}
	return false
}

// adapt fits v into want: assignment, interface unwrapping, taking or
// following pointers, embedded struct upcasts and safe conversions. An
// absent value becomes the zero value of want.
func adapt(v reflect.Value, want reflect.Type) (reflect.Value, bool) {
	if !v.IsValid() {
		return reflect.Zero(want), true
	}

	t := v.Type()
	if t == want {
		return v, true
	}
	if t.AssignableTo(want) {
		out := reflect.New(want).Elem()
		out.Set(v)
		return out, true
	}

	if t.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Zero(want), true
		}
		return adapt(v.Elem(), want)
	}

	if reflect.PtrTo(t).AssignableTo(want) {
		if v.CanAddr() {
			return adapt(v.Addr(), want)
		}
		p := reflect.New(t)
		p.Elem().Set(v)
		return adapt(p, want)
	}

	if t.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Zero(want), true
		}
		return adapt(v.Elem(), want)
	}

	if t.Kind() == reflect.Struct {
		target := baseType(want)
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if !sf.Anonymous || !sf.IsExported() || !derivesFrom(baseType(sf.Type), target) {
				continue
			}
			if out, ok := adapt(v.Field(i), want); ok {
				return out, true
			}
		}
	}

	if want.Kind() == reflect.Ptr {
		inner, ok := adapt(v, want.Elem())
		if !ok {
			return reflect.Value{}, false
		}
		p := reflect.New(want.Elem())
		p.Elem().Set(inner)
		return p, true
	}

	if isSafeConvert(t, want) {
		return v.Convert(want), true
	}
	return reflect.Value{}, false
}

// canAdapt reports whether adapt can succeed for values of type t.
// Interface values are decided at run time and always pass.
func canAdapt(t, want reflect.Type) bool {
	switch {
	case t.AssignableTo(want):
		return true
	case t.Kind() == reflect.Interface:
		return true
	case reflect.PtrTo(t).AssignableTo(want):
		return true
	case t.Kind() == reflect.Ptr:
		return canAdapt(t.Elem(), want)
	}

	if t.Kind() == reflect.Struct {
		target := baseType(want)
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if sf.Anonymous && sf.IsExported() && derivesFrom(baseType(sf.Type), target) && canAdapt(sf.Type, want) {
				return true
			}
		}
	}

	if want.Kind() == reflect.Ptr {
		return canAdapt(t, want.Elem())
	}
	return isSafeConvert(t, want)
}

// derivesFrom reports whether t is base, implements the interface base
// (directly or through *t) or embeds base.
func derivesFrom(t, base reflect.Type) bool {
	if t == nil || base == nil {
		return false
	}
	if t == base {
		return true
	}
	if base.Kind() == reflect.Interface {
		if t.Implements(base) {
			return true
		}
		if t.Kind() != reflect.Interface && reflect.PtrTo(t).Implements(base) {
			return true
		}
	}
	return embeds(t, base, 0)
}

// maxEmbedDepth stops the search in self-embedding pointer types.
const maxEmbedDepth = 8

func embeds(t, base reflect.Type, depth int) bool {
	t = baseType(t)
	if depth > maxEmbedDepth || t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.Anonymous {
			continue
		}
		ft := baseType(sf.Type)
		if ft == base || embeds(ft, base, depth+1) {
			return true
		}
	}
	return false
}

// isSafeConvert allows value-preserving numeric conversions and conversions
// between named and unnamed types of the same kind. Integers never become
// strings and structs need a type map.
func isSafeConvert(from, to reflect.Type) bool {
	if isNumeric(from.Kind()) && isNumeric(to.Kind()) {
		return widens(from, to)
	}
	switch from.Kind() {
	case reflect.Struct, reflect.Ptr, reflect.Interface:
		return false
	}
	return from.Kind() == to.Kind() && from.ConvertibleTo(to)
}

// widens reports whether every value of from is exactly representable in to.
// Narrowing, sign-dropping and float-to-integer conversions need a converter.
func widens(from, to reflect.Type) bool {
	fs, ts := from.Size(), to.Size()
	switch {
	case isSigned(from.Kind()):
		switch {
		case isSigned(to.Kind()):
			return ts >= fs
		case isFloat(to.Kind()):
			return fs*8 <= mantissaBits(ts)
		}
	case isUnsigned(from.Kind()):
		switch {
		case isUnsigned(to.Kind()):
			return ts >= fs
		case isSigned(to.Kind()):
			return ts > fs
		case isFloat(to.Kind()):
			return fs*8 <= mantissaBits(ts)
		}
	case isFloat(from.Kind()):
		return isFloat(to.Kind()) && ts >= fs
	}
	return false
}

// mantissaBits is the number of integer bits a float of size bytes holds exactly.
func mantissaBits(size uintptr) uintptr {
	if size == 4 {
		return 24
	}
	return 53
}

func isSigned(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUnsigned(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uint64
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
