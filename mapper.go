// Package cartographer provides configurable object-to-object mapping for Go.
//
// A Configuration records type maps: for an ordered pair of source and
// destination types it holds member rules, hooks, converters and the derived
// pairs used for polymorphic dispatch. CreateMapper resolves conventions and
// compiles every type map into reusable procedures once; the resulting Mapper
// is immutable and safe for concurrent use.
//
// Key features:
//   - Convention matching by exact name, naming conventions, custom matchers,
//     struct tags and flattening (CustomerName -> Customer.Name)
//   - Per-member rules: custom sources, pre-conditions, conditions, converters, ignore
//   - Nested, slice, array and map recursion
//   - Polymorphic dispatch through Include with interface or embedded base types
//   - Reference preservation for shared and cyclic object graphs
//   - Depth-limited traversal
//
// Basic usage:
//
//	cfg := cartographer.NewConfiguration()
//	cartographer.CreateMap[Source, Dest](cfg)
//	mapper, err := cfg.CreateMapper()
//	dest, err := cartographer.Map[Dest](mapper, source)
package cartographer

import (
	"reflect"

	"github.com/hashicorp/go-multierror"
	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/csmart-libs/go-cartographer/naming"
)

// DefaultMetadataTag is the struct tag key read for member markers.
const DefaultMetadataTag = "map"

// Configuration holds all mapping configurations. It is built on a single
// goroutine and sealed by CreateMapper.
type Configuration struct {
	typeMaps  map[typeMapKey]*TypeMap
	order     []*TypeMap
	typeCache *typeCache

	options      Options
	sourceNaming naming.Convention
	destNaming   naming.Convention
	matchers     []MemberMatcher
	metadata     MetadataLookup
	optLevel     OptimizationLevel
	logger       logrus.FieldLogger

	errs       *multierror.Error
	sealed     bool
	compiled   bool
	compileErr error
}

// typeMapKey uniquely identifies a source-destination type pair.
type typeMapKey struct {
	srcType  reflect.Type
	destType reflect.Type
}

func newTypeMapKey(src, dest reflect.Type) typeMapKey {
	return typeMapKey{srcType: baseType(src), destType: baseType(dest)}
}

// baseType strips one pointer level; type maps are keyed on pointees.
func baseType(t reflect.Type) reflect.Type {
	if t != nil && t.Kind() == reflect.Ptr {
		return t.Elem()
	}
	return t
}

// TypeMap represents the mapping configuration between two types.
type TypeMap struct {
	srcType      reflect.Type
	destType     reflect.Type
	propertyMaps []*PropertyMap
	beforeMap    []hookFunc
	afterMap     []hookFunc
	converter    Converter
	custom       hookFunc
	includes     []*TypeMap
	reverseOf    *TypeMap

	create createFunc
	update updateFunc
}

// SourceType returns the source shape of the map.
func (tm *TypeMap) SourceType() reflect.Type { return tm.srcType }

// DestinationType returns the destination shape of the map.
func (tm *TypeMap) DestinationType() reflect.Type { return tm.destType }

func (tm *TypeMap) String() string {
	return typeName(tm.srcType) + " -> " + typeName(tm.destType)
}

// findPropertyMap returns the rule for the named destination member.
func (tm *TypeMap) findPropertyMap(name string) *PropertyMap {
	for _, pm := range tm.propertyMaps {
		if pm.destMember.name == name {
			return pm
		}
	}
	return nil
}

// PropertyMap represents the mapping rule for a single destination member.
type PropertyMap struct {
	destMember *memberInfo

	// Source: a resolved member, a pending name, or a custom resolver.
	srcMember    *memberInfo
	srcName      string
	resolver     sourceFunc
	resolverType reflect.Type

	ignore       bool
	preCondition conditionFunc
	condition    conditionFunc
	converter    Converter

	explicit  bool
	inherited bool
	err       error
}

// DestinationMember returns the name of the member this rule populates.
func (pm *PropertyMap) DestinationMember() string { return pm.destMember.name }

func (pm *PropertyMap) hasSource() bool {
	return pm.srcMember != nil || pm.resolver != nil
}

// sourceType is the static type of the value that feeds the member.
func (pm *PropertyMap) sourceType() reflect.Type {
	if pm.resolver != nil {
		return pm.resolverType
	}
	if pm.srcMember != nil {
		return pm.srcMember.typ
	}
	return nil
}

type (
	sourceFunc    func(src, dest reflect.Value) (reflect.Value, error)
	conditionFunc func(src reflect.Value) bool
	hookFunc      func(src, dest reflect.Value) error
	createFunc    func(src reflect.Value, m *Mapper, ctx *MappingContext) (reflect.Value, error)
	updateFunc    func(src, dest reflect.Value, m *Mapper, ctx *MappingContext) error
)

// ValueResolver is a function that resolves a value for a destination field.
// It receives the source value and a pointer to the destination being built.
type ValueResolver func(src any, dest any) (any, error)

// MemberMatcher decides whether a source member feeds a destination member.
type MemberMatcher func(src, dest MemberInfo) bool

// MemberMarker is the metadata attached to a destination member.
type MemberMarker struct {
	Ignore bool
	From   string
}

// MetadataLookup reads member markers from a destination field.
type MetadataLookup func(field reflect.StructField) MemberMarker

// TagMetadata reads markers from the struct tag key: `key:"-"` ignores the
// member and `key:"Name"` maps it from the source member Name.
func TagMetadata(key string) MetadataLookup {
	return func(field reflect.StructField) MemberMarker {
		value, ok := field.Tag.Lookup(key)
		if !ok {
			return MemberMarker{}
		}
		if value == "-" {
			return MemberMarker{Ignore: true}
		}
		return MemberMarker{From: value}
	}
}

// ConfigOption is a function that configures the mapper.
type ConfigOption func(*Configuration)

// NewConfiguration creates an empty configuration.
func NewConfiguration(opts ...ConfigOption) *Configuration {
	c := &Configuration{
		typeMaps:  make(map[typeMapKey]*TypeMap),
		typeCache: newTypeCache(),
		metadata:  TagMetadata(DefaultMetadataTag),
		logger:    logrus.StandardLogger().WithField("component", "cartographer"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithMaxDepth bounds nested mapping; zero means unlimited.
func WithMaxDepth(depth int) ConfigOption {
	return func(c *Configuration) {
		if depth < 0 {
			c.fail(errors.Errorf("max depth must not be negative, got %d", depth))
			return
		}
		c.options.MaxDepth = depth
	}
}

// WithPreserveReferences maps every repeated source pointer within one call
// to a single destination instance. It is required for cyclic graphs.
func WithPreserveReferences() ConfigOption {
	return func(c *Configuration) {
		c.options.PreserveReferences = true
	}
}

// WithNullCollectionStrategy sets the policy for nil source collections.
func WithNullCollectionStrategy(s NullCollectionStrategy) ConfigOption {
	return func(c *Configuration) {
		c.options.NullCollections = s
	}
}

// WithAllowNullCollections keeps nil source collections nil.
func WithAllowNullCollections() ConfigOption {
	return WithNullCollectionStrategy(PreserveNull)
}

// WithSourceNamingConvention sets the normalization applied to source members.
func WithSourceNamingConvention(nc naming.Convention) ConfigOption {
	return func(c *Configuration) {
		c.sourceNaming = nc
	}
}

// WithDestinationNamingConvention sets the normalization applied to destination members.
func WithDestinationNamingConvention(nc naming.Convention) ConfigOption {
	return func(c *Configuration) {
		c.destNaming = nc
	}
}

// WithMemberMatcher registers a custom member matching predicate. Matchers
// run after member metadata and before name matching.
func WithMemberMatcher(matcher MemberMatcher) ConfigOption {
	return func(c *Configuration) {
		c.matchers = append(c.matchers, matcher)
	}
}

// WithMetadataLookup replaces the struct tag lookup; nil disables metadata.
func WithMetadataLookup(lookup MetadataLookup) ConfigOption {
	return func(c *Configuration) {
		c.metadata = lookup
	}
}

// WithOptions overlays the non-zero fields of o onto the configuration.
func WithOptions(o Options) ConfigOption {
	return func(c *Configuration) {
		if err := o.Validate(); err != nil {
			c.fail(err)
			return
		}
		if err := mergo.Merge(&c.options, o, mergo.WithOverride); err != nil {
			c.fail(errors.Wrap(err, "merge mapping options"))
		}
	}
}

// WithLogger sets the logger used while compiling type maps.
func WithLogger(logger logrus.FieldLogger) ConfigOption {
	return func(c *Configuration) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Options returns the current global options.
func (c *Configuration) Options() Options {
	return c.options
}

// fail records a configuration error surfaced by CreateMapper.
func (c *Configuration) fail(err error) {
	c.errs = multierror.Append(c.errs, err)
}

// Profile groups related mapping configuration.
type Profile interface {
	Configure(cfg *Configuration)
}

// ProfileFunc adapts a function to the Profile interface.
type ProfileFunc func(cfg *Configuration)

// Configure implements Profile.
func (f ProfileFunc) Configure(cfg *Configuration) { f(cfg) }

// AddProfile applies profiles to the configuration.
func (c *Configuration) AddProfile(profiles ...Profile) *Configuration {
	for _, p := range profiles {
		p.Configure(c)
	}
	return c
}

// CreateMap creates a mapping configuration between source and destination types.
// Declaring the same pair again returns a builder for the existing TypeMap.
func CreateMap[TSrc, TDest any](c *Configuration) *TypeMapBuilder[TSrc, TDest] {
	tm := c.getOrCreate(TypeOf[TSrc](), TypeOf[TDest]())
	return &TypeMapBuilder[TSrc, TDest]{
		config:  c,
		typeMap: tm,
	}
}

// ConvertUsing registers a converter-driven TypeMap for a pair of types. The
// converter is used wherever a TSrc value meets a TDest member. See
// TypeMapBuilder.ConvertUsing for update semantics.
func ConvertUsing[TSrc, TDest any](c *Configuration, converter func(TSrc) (TDest, error)) {
	CreateMap[TSrc, TDest](c).ConvertUsing(ConverterFunc(converter))
}

func (c *Configuration) getOrCreate(src, dest reflect.Type) *TypeMap {
	key := newTypeMapKey(src, dest)
	if tm, ok := c.typeMaps[key]; ok {
		return tm
	}

	tm := &TypeMap{
		srcType:  key.srcType,
		destType: key.destType,
	}
	if c.sealed {
		c.fail(errors.Wrapf(ErrConfigurationSealed, "cannot register %v", tm))
		return tm
	}

	c.typeMaps[key] = tm
	c.order = append(c.order, tm)
	return tm
}

// FindTypeMap returns the registered map for the pair, if any.
func (c *Configuration) FindTypeMap(src, dest reflect.Type) (*TypeMap, bool) {
	tm, ok := c.typeMaps[newTypeMapKey(src, dest)]
	return tm, ok
}

// CreateMapper seals the configuration, compiles every TypeMap and returns
// a Mapper. All configuration errors are reported together.
func (c *Configuration) CreateMapper() (*Mapper, error) {
	c.seal()
	if err := c.errs.ErrorOrNil(); err != nil {
		return nil, newConfigurationError(multierror.Append(nil, c.errs.Errors...))
	}

	m := newMapper(c)
	if !c.compiled {
		c.compiled = true
		c.compileErr = m.compileAll()
	}
	if c.compileErr != nil {
		return nil, c.compileErr
	}
	return m, nil
}

// seal resolves conventions once. Later registrations are rejected.
func (c *Configuration) seal() {
	if c.sealed {
		return
	}
	c.sealed = true

	if c.sourceNaming == nil {
		c.sourceNaming, _ = naming.Lookup(c.options.SourceNaming)
	}
	if c.destNaming == nil {
		c.destNaming, _ = naming.Lookup(c.options.DestinationNaming)
	}
	if c.sourceNaming == nil {
		c.sourceNaming = naming.Identity
	}
	if c.destNaming == nil {
		c.destNaming = naming.Identity
	}

	c.applyReverseRenames()
	c.applyInheritance()
	for _, tm := range c.order {
		c.resolveMembers(tm)
	}
	c.checkIncludes()
}
