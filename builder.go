package cartographer

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// TypeMapBuilder provides a fluent API for configuring type mappings.
type TypeMapBuilder[TSrc, TDest any] struct {
	config  *Configuration
	typeMap *TypeMap
}

// TypeMap returns the map being configured.
func (b *TypeMapBuilder[TSrc, TDest]) TypeMap() *TypeMap {
	return b.typeMap
}

// frozen records ErrConfigurationSealed for op once the configuration has
// been sealed. Compiled maps never change after CreateMapper.
func (b *TypeMapBuilder[TSrc, TDest]) frozen(op string) bool {
	if !b.config.sealed {
		return false
	}
	b.config.fail(errors.Wrapf(ErrConfigurationSealed, "%v: %s", b.typeMap, op))
	return true
}

// ForMember configures a specific destination member mapping using a field selector.
// The selector must return the address of a field of the destination struct.
//
// Example:
//
//	CreateMap[Source, Dest](cfg).
//	    ForMember(func(d *Dest) any { return &d.Name }, MapFrom("FullName"))
func (b *TypeMapBuilder[TSrc, TDest]) ForMember(
	destMember func(*TDest) any,
	opts ...MemberOption,
) *TypeMapBuilder[TSrc, TDest] {
	if b.frozen("ForMember") {
		return b
	}
	name, err := selectMember(b.config.typeCache, destMember)
	if err != nil {
		b.config.fail(errors.Wrapf(err, "%v: ForMember", b.typeMap))
		return b
	}
	return b.ForMemberByName(name, opts...)
}

// ForMemberByName configures a specific destination member by name.
func (b *TypeMapBuilder[TSrc, TDest]) ForMemberByName(
	destMemberName string,
	opts ...MemberOption,
) *TypeMapBuilder[TSrc, TDest] {
	if b.frozen("ForMember " + destMemberName) {
		return b
	}
	destInfo := b.config.typeCache.getTypeInfo(b.typeMap.destType)
	mi, ok := destInfo.membersByName[destMemberName]
	if !ok {
		b.config.fail(errors.Errorf("%v: unknown destination member %q", b.typeMap, destMemberName))
		return b
	}

	pm := b.typeMap.findPropertyMap(mi.name)
	if pm == nil {
		pm = &PropertyMap{destMember: mi}
		b.typeMap.propertyMaps = append(b.typeMap.propertyMaps, pm)
	}
	pm.explicit = true

	for _, opt := range opts {
		opt(pm)
	}
	return b
}

// selectMember finds the destination field whose address the selector returns.
func selectMember[TDest any](cache *typeCache, selector func(*TDest) any) (name string, err error) {
	dest := new(TDest)
	root := reflect.ValueOf(dest).Elem()
	if root.Kind() != reflect.Struct {
		return "", errors.Errorf("destination %v is not a struct", root.Type())
	}
	allocEmbedded(root)

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("member selector panicked: %v", r)
		}
	}()

	picked := reflect.ValueOf(selector(dest))
	if picked.Kind() != reflect.Ptr || picked.IsNil() {
		return "", errors.New("member selector must return the address of a destination field, e.g. &d.Name")
	}

	for _, mi := range cache.getTypeInfo(root.Type()).members {
		field := fieldForWrite(root, mi.index)
		if !field.IsValid() || !field.CanAddr() {
			continue
		}
		if field.Type() == picked.Type().Elem() && field.Addr().Pointer() == picked.Pointer() {
			return mi.name, nil
		}
	}
	return "", errors.Errorf("member selector returned %v which is not a direct member of %v",
		picked.Type(), root.Type())
}

// allocEmbedded allocates nil embedded struct pointers so promoted fields
// have an address.
func allocEmbedded(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.Anonymous {
			continue
		}
		f := v.Field(i)
		if f.Kind() == reflect.Ptr && f.Type().Elem().Kind() == reflect.Struct {
			if f.IsNil() {
				if !f.CanSet() {
					continue
				}
				f.Set(reflect.New(f.Type().Elem()))
			}
			f = f.Elem()
		}
		if f.Kind() == reflect.Struct {
			allocEmbedded(f)
		}
	}
}

// MemberOption is a function that configures a member mapping.
type MemberOption func(*PropertyMap)

// MapFrom configures the source member for a destination member. Dotted
// paths such as "Customer.Name" reach into nested members.
func MapFrom(srcMemberName string) MemberOption {
	return func(pm *PropertyMap) {
		if srcMemberName == "" {
			pm.err = errors.Errorf("MapFrom for %s: empty source member name", pm.destMember.name)
			return
		}
		pm.srcName = srcMemberName
		pm.srcMember = nil
		pm.resolver = nil
		pm.resolverType = nil
	}
}

// MapFromFunc configures a value resolver for a destination member. The
// result type is only known at run time.
func MapFromFunc(resolver ValueResolver) MemberOption {
	return func(pm *PropertyMap) {
		pm.setResolver(func(src, dest reflect.Value) (reflect.Value, error) {
			var destArg any
			if dest.IsValid() {
				destArg = dest.Interface()
			}
			result, err := resolver(derefValue(src).Interface(), destArg)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(result), nil
		}, nil)
	}
}

// ResolveUsing computes a destination member from the whole source.
func ResolveUsing[TSrc, TMember any](fn func(TSrc) TMember) MemberOption {
	return func(pm *PropertyMap) {
		pm.setResolver(func(src, _ reflect.Value) (reflect.Value, error) {
			s, ok := sourceAs[TSrc](src)
			if !ok {
				return reflect.Value{}, errors.Errorf("resolver expects %v, got %v", TypeOf[TSrc](), src.Type())
			}
			out := fn(s)
			return reflect.ValueOf(&out).Elem(), nil
		}, TypeOf[TMember]())
	}
}

func (pm *PropertyMap) setResolver(fn sourceFunc, resultType reflect.Type) {
	pm.resolver = fn
	pm.resolverType = resultType
	pm.srcName = ""
	pm.srcMember = nil
}

// Ignore configures a destination member to be ignored during mapping.
func Ignore() MemberOption {
	return func(pm *PropertyMap) {
		pm.ignore = true
	}
}

// PreCondition skips the member when fn returns false. It runs before
// the source value is read.
func PreCondition[TSrc any](fn func(TSrc) bool) MemberOption {
	return func(pm *PropertyMap) {
		pm.preCondition = conditionFor(fn)
	}
}

// Condition skips the member when fn returns false. It runs after the
// pre-condition.
func Condition[TSrc any](fn func(TSrc) bool) MemberOption {
	return func(pm *PropertyMap) {
		pm.condition = conditionFor(fn)
	}
}

func conditionFor[TSrc any](fn func(TSrc) bool) conditionFunc {
	return func(src reflect.Value) bool {
		s, ok := sourceAs[TSrc](src)
		return ok && fn(s)
	}
}

// ConvertWith converts the source member value with fn before assignment.
func ConvertWith[TIn, TOut any](fn func(TIn) (TOut, error)) MemberOption {
	return UseConverter(ConverterFunc(fn))
}

// UseConverter configures a value converter for a destination member.
func UseConverter(converter Converter) MemberOption {
	return func(pm *PropertyMap) {
		pm.converter = converter
	}
}

// ConvertUsing replaces member-by-member mapping with a whole-object converter.
// Hooks and member rules are not applied. Map returns the converter result;
// MapTo copies it over the existing destination with copier, exported and
// unexported fields alike, so both paths yield the same value.
func (b *TypeMapBuilder[TSrc, TDest]) ConvertUsing(converter Converter) *TypeMapBuilder[TSrc, TDest] {
	if b.frozen("ConvertUsing") {
		return b
	}
	b.typeMap.converter = converter
	return b
}

// BeforeMap adds a function to be called before mapping.
func (b *TypeMapBuilder[TSrc, TDest]) BeforeMap(fn func(src *TSrc, dest *TDest) error) *TypeMapBuilder[TSrc, TDest] {
	if b.frozen("BeforeMap") {
		return b
	}
	b.typeMap.beforeMap = append(b.typeMap.beforeMap, hookFor(fn))
	return b
}

// AfterMap adds a function to be called after mapping.
func (b *TypeMapBuilder[TSrc, TDest]) AfterMap(fn func(src *TSrc, dest *TDest) error) *TypeMapBuilder[TSrc, TDest] {
	if b.frozen("AfterMap") {
		return b
	}
	b.typeMap.afterMap = append(b.typeMap.afterMap, hookFor(fn))
	return b
}

func hookFor[TSrc, TDest any](fn func(*TSrc, *TDest) error) hookFunc {
	return func(src, dest reflect.Value) error {
		s, ok := sourceAs[*TSrc](src)
		if !ok {
			return nil
		}
		d, ok := sourceAs[*TDest](dest)
		if !ok {
			return nil
		}
		return fn(s, d)
	}
}

// CustomMap sets a custom mapping function for the entire type. It replaces
// the member rules; before and after hooks still run.
func (b *TypeMapBuilder[TSrc, TDest]) CustomMap(fn func(src TSrc, dest *TDest) error) *TypeMapBuilder[TSrc, TDest] {
	if b.frozen("CustomMap") {
		return b
	}
	b.typeMap.custom = func(src, dest reflect.Value) error {
		s, ok := sourceAs[TSrc](src)
		if !ok {
			return &MappingError{Message: "invalid source type for custom mapper", SrcType: src.Type()}
		}
		d, ok := sourceAs[*TDest](dest)
		if !ok {
			return &MappingError{Message: "invalid destination type for custom mapper", DestType: dest.Type()}
		}
		return fn(s, d)
	}
	return b
}

// ReverseMap creates the reverse mapping from destination to source. Simple
// MapFrom renames of this map are inverted.
func (b *TypeMapBuilder[TSrc, TDest]) ReverseMap() *TypeMapBuilder[TDest, TSrc] {
	if b.frozen("ReverseMap") {
		return CreateMap[TDest, TSrc](b.config)
	}
	rev := CreateMap[TDest, TSrc](b.config)
	if rev.typeMap != b.typeMap {
		rev.typeMap.reverseOf = b.typeMap
	}
	return rev
}

// Include declares a derived pair. A request for this map's destination with
// a source of runtime type derivedSrc is served by the derived map, which
// inherits every member rule configured here.
func (b *TypeMapBuilder[TSrc, TDest]) Include(derivedSrc, derivedDest reflect.Type) *TypeMapBuilder[TSrc, TDest] {
	if b.frozen("Include") {
		return b
	}
	if derivedSrc == nil || derivedDest == nil {
		b.config.fail(errors.Errorf("%v: Include requires both derived types", b.typeMap))
		return b
	}
	derived := b.config.getOrCreate(derivedSrc, derivedDest)
	for _, inc := range b.typeMap.includes {
		if inc == derived {
			return b
		}
	}
	b.typeMap.includes = append(b.typeMap.includes, derived)
	return b
}

// IncludeMap is the generic form of Include.
func IncludeMap[TDerivedSrc, TDerivedDest, TSrc, TDest any](b *TypeMapBuilder[TSrc, TDest]) *TypeMapBuilder[TSrc, TDest] {
	return b.Include(TypeOf[TDerivedSrc](), TypeOf[TDerivedDest]())
}

// sourceAs adapts v to T. Pointers, embedded structs and interfaces are
// bridged the same way as member values.
func sourceAs[T any](v reflect.Value) (T, bool) {
	var zero T
	out, ok := adapt(v, TypeOf[T]())
	if !ok || !out.IsValid() {
		return zero, false
	}
	res, _ := out.Interface().(T)
	return res, true
}

func (pm *PropertyMap) String() string {
	switch {
	case pm.ignore:
		return fmt.Sprintf("%s: ignored", pm.destMember.name)
	case pm.resolver != nil:
		return fmt.Sprintf("%s <- resolver", pm.destMember.name)
	case pm.srcMember != nil:
		return fmt.Sprintf("%s <- %s", pm.destMember.name, pm.srcMember.name)
	default:
		return fmt.Sprintf("%s: unmapped", pm.destMember.name)
	}
}
