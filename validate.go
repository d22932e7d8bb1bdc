package cartographer

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-multierror"
)

// Violation is one destination member that cannot be populated.
type Violation struct {
	SourceType      reflect.Type
	DestinationType reflect.Type
	Member          string
	// MemberSource is nil when no source was resolved for the member.
	MemberSource reflect.Type
	MemberType   reflect.Type
}

func (v Violation) Error() string {
	if v.MemberSource == nil {
		return fmt.Sprintf("No source for destination member %s.%s", typeName(v.DestinationType), v.Member)
	}
	return fmt.Sprintf("Cannot map %s to %s for member %s.%s",
		typeName(v.MemberSource), typeName(v.MemberType), typeName(v.DestinationType), v.Member)
}

// ValidationError lists every violation found by AssertConfigurationIsValid.
type ValidationError struct {
	Violations []Violation
	merr       *multierror.Error
}

func newValidationError(violations []Violation) *ValidationError {
	merr := &multierror.Error{ErrorFormat: listFormat("mapper configuration has unmapped members")}
	for _, v := range violations {
		merr = multierror.Append(merr, v)
	}
	return &ValidationError{Violations: violations, merr: merr}
}

func (e *ValidationError) Error() string {
	return e.merr.Error()
}

// Is lets errors.Is match ErrInvalidConfiguration.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

func (e *ValidationError) Unwrap() error {
	return e.merr
}

// AssertConfigurationIsValid compiles the configuration and checks that
// every destination member can be populated.
func (c *Configuration) AssertConfigurationIsValid() error {
	m, err := c.CreateMapper()
	if err != nil {
		return err
	}
	return m.AssertConfigurationIsValid()
}

// AssertConfigurationIsValid checks every non-ignored member of every
// member-wise map: it needs a source whose type is assignable, served by a
// type map or covered element-wise. Members fed by interfaces or untyped
// resolvers are checked at run time and pass here.
func (m *Mapper) AssertConfigurationIsValid() error {
	var violations []Violation
	for _, tm := range m.order {
		if tm.converter != nil || tm.custom != nil || tm.destType.Kind() != reflect.Struct {
			continue
		}
		for _, pm := range tm.propertyMaps {
			if pm.ignore || pm.converter != nil {
				continue
			}
			v := Violation{
				SourceType:      tm.srcType,
				DestinationType: tm.destType,
				Member:          pm.destMember.name,
				MemberType:      pm.destMember.typ,
			}
			if !pm.hasSource() {
				violations = append(violations, v)
				continue
			}
			st := pm.sourceType()
			if st == nil {
				continue
			}
			if m.planFor(st, pm.destMember.typ) == nil {
				v.MemberSource = st
				violations = append(violations, v)
			}
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return newValidationError(violations)
}
