package cartographer

import (
	"reflect"

	"github.com/hashicorp/go-multierror"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// memberPlan is the compiled rule for one destination member.
type memberPlan struct {
	pm       *PropertyMap
	destType reflect.Type
	value    valuePlan
	fast     *fastCopy
}

// compileAll compiles every registered map and reports all failures together.
func (m *Mapper) compileAll() error {
	var errs *multierror.Error
	for _, tm := range m.order {
		if err := m.compile(tm); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if errs != nil {
		return newConfigurationError(errs)
	}
	return nil
}

func (m *Mapper) compile(tm *TypeMap) error {
	log := m.logger.WithFields(logrus.Fields{
		"source":      typeName(tm.srcType),
		"destination": typeName(tm.destType),
	})

	switch {
	case tm.converter != nil:
		if err := checkConverter(tm); err != nil {
			return err
		}
		tm.create, tm.update = compileConverter(tm)
	case tm.custom != nil:
		tm.create, tm.update = compileObject(tm, nil)
	case tm.destType.Kind() != reflect.Struct:
		if len(tm.includes) == 0 {
			return errors.Errorf("%v: destination is not a struct, configure a converter", tm)
		}
		tm.create, tm.update = compileAbstract(tm)
	default:
		members, err := m.compileMembers(tm, log)
		if err != nil {
			return err
		}
		tm.create, tm.update = compileObject(tm, members)
	}

	log.Debug("compiled type map")
	return nil
}

func checkConverter(tm *TypeMap) error {
	cs := baseType(tm.converter.SourceType())
	cd := baseType(tm.converter.DestinationType())
	if !derivesFrom(tm.srcType, cs) {
		return errors.Errorf("%v: converter accepts %v", tm, tm.converter.SourceType())
	}
	if !derivesFrom(cd, tm.destType) {
		return errors.Errorf("%v: converter produces %v", tm, tm.converter.DestinationType())
	}
	return nil
}

func compileConverter(tm *TypeMap) (createFunc, updateFunc) {
	run := func(src reflect.Value) (reflect.Value, error) {
		out, err := convert(tm.converter, src)
		if err != nil {
			return reflect.Value{}, &MappingError{
				Message:    "converter failed",
				SrcType:    tm.srcType,
				DestType:   tm.destType,
				InnerError: err,
			}
		}
		val, ok := adapt(out, tm.destType)
		if !ok {
			return reflect.Value{}, &MappingError{
				Message:  "converter result does not fit the destination",
				SrcType:  out.Type(),
				DestType: tm.destType,
			}
		}
		return val, nil
	}

	create := func(src reflect.Value, _ *Mapper, ctx *MappingContext) (reflect.Value, error) {
		val, err := run(src)
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(tm.destType)
		ptr.Elem().Set(val)
		ctx.track(src, tm, ptr)
		return ptr, nil
	}

	// Hooks and member rules do not apply: the result is copied over dest.
	update := func(src, dest reflect.Value, _ *Mapper, _ *MappingContext) error {
		val, err := run(src)
		if err != nil {
			return err
		}
		if tm.destType.Kind() != reflect.Struct {
			dest.Set(val)
			return nil
		}
		result := reflect.New(tm.destType)
		result.Elem().Set(val)
		if err := copier.Copy(dest.Addr().Interface(), result.Interface()); err != nil {
			return &MappingError{
				Message:    "copy converter result",
				SrcType:    tm.srcType,
				DestType:   tm.destType,
				InnerError: err,
			}
		}
		return nil
	}
	return create, update
}

// compileAbstract serves base maps whose destination is an interface. They
// only dispatch to included maps.
func compileAbstract(tm *TypeMap) (createFunc, updateFunc) {
	fail := func(src reflect.Value) error {
		return &MappingError{
			Message:    "no included map for the runtime source type",
			SrcType:    src.Type(),
			DestType:   tm.destType,
			InnerError: ErrNoMapping,
		}
	}
	create := func(src reflect.Value, _ *Mapper, _ *MappingContext) (reflect.Value, error) {
		return reflect.Value{}, fail(src)
	}
	update := func(src, _ reflect.Value, _ *Mapper, _ *MappingContext) error {
		return fail(src)
	}
	return create, update
}

func (m *Mapper) compileMembers(tm *TypeMap, log logrus.FieldLogger) ([]*memberPlan, error) {
	var errs *multierror.Error
	members := make([]*memberPlan, 0, len(tm.propertyMaps))

	for _, pm := range tm.propertyMaps {
		if pm.ignore || !pm.hasSource() {
			continue
		}

		st := pm.sourceType()
		dt := pm.destMember.typ
		mp := &memberPlan{pm: pm, destType: dt}

		if pm.converter != nil {
			if st != nil && !canAdapt(st, pm.converter.SourceType()) {
				errs = multierror.Append(errs, errors.Errorf("%v: converter for %s accepts %v, source is %v",
					tm, pm.destMember.name, pm.converter.SourceType(), st))
				continue
			}
			if !canAdapt(pm.converter.DestinationType(), dt) {
				errs = multierror.Append(errs, errors.Errorf("%v: converter for %s produces %v, member is %v",
					tm, pm.destMember.name, pm.converter.DestinationType(), dt))
				continue
			}
		} else {
			mp.value = m.planFor(st, dt)
			if mp.value == nil {
				log.WithField("member", pm.destMember.name).
					Debugf("no resolution strategy from %v to %v, member skipped", st, dt)
				continue
			}
		}

		if m.optLevel >= OptimizationUnsafe {
			mp.fast = compileFastCopy(tm, pm)
		}
		members = append(members, mp)
	}

	return members, errs.ErrorOrNil()
}

func compileObject(tm *TypeMap, members []*memberPlan) (createFunc, updateFunc) {
	update := func(src, dest reflect.Value, m *Mapper, ctx *MappingContext) error {
		sv := derefValue(src)
		destPtr := dest.Addr()

		for _, before := range tm.beforeMap {
			if err := before(src, destPtr); err != nil {
				return &MappingError{Message: "before map hook failed", SrcType: tm.srcType, DestType: tm.destType, InnerError: err}
			}
		}

		if tm.custom != nil {
			if err := tm.custom(src, destPtr); err != nil {
				return &MappingError{Message: "custom mapper failed", SrcType: tm.srcType, DestType: tm.destType, InnerError: err}
			}
		} else {
			for _, mp := range members {
				if err := mp.apply(m, src, sv, dest, ctx); err != nil {
					return &MappingError{
						Message:    "member mapping failed",
						SrcType:    tm.srcType,
						DestType:   tm.destType,
						FieldName:  mp.pm.destMember.name,
						InnerError: err,
					}
				}
			}
		}

		for _, after := range tm.afterMap {
			if err := after(src, destPtr); err != nil {
				return &MappingError{Message: "after map hook failed", SrcType: tm.srcType, DestType: tm.destType, InnerError: err}
			}
		}
		return nil
	}

	create := func(src reflect.Value, m *Mapper, ctx *MappingContext) (reflect.Value, error) {
		ptr := reflect.New(tm.destType)
		ctx.track(src, tm, ptr)
		if err := update(src, ptr.Elem(), m, ctx); err != nil {
			return reflect.Value{}, err
		}
		return ptr, nil
	}
	return create, update
}

// apply evaluates the conditions, reads the source, resolves the value and
// assigns it. src is the source as dispatched, sv its dereferenced struct.
func (mp *memberPlan) apply(m *Mapper, src, sv, dest reflect.Value, ctx *MappingContext) error {
	pm := mp.pm
	if pm.preCondition != nil && !pm.preCondition(src) {
		return nil
	}
	if pm.condition != nil && !pm.condition(src) {
		return nil
	}

	if mp.fast != nil && sv.CanAddr() {
		mp.fast.copy(sv, dest)
		return nil
	}

	var raw reflect.Value
	if pm.resolver != nil {
		var err error
		if raw, err = pm.resolver(src, dest.Addr()); err != nil {
			return err
		}
	} else {
		raw = getNestedField(sv, pm.srcMember.index)
		if !raw.IsValid() {
			return nil
		}
	}

	var out reflect.Value
	if pm.converter != nil {
		converted, err := convert(pm.converter, raw)
		if err != nil {
			return err
		}
		var ok bool
		if out, ok = adapt(converted, mp.destType); !ok {
			return errors.Errorf("converter returned %v, member is %v", converted.Type(), mp.destType)
		}
	} else {
		var err error
		if out, err = mp.value(m, raw, ctx); err != nil {
			return err
		}
	}
	if !out.IsValid() {
		return nil
	}

	field := fieldForWrite(dest, pm.destMember.index)
	if !field.IsValid() || !field.CanSet() {
		return nil
	}
	field.Set(out)
	return nil
}
