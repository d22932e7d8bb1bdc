package cartographer

import (
	"reflect"

	"github.com/pkg/errors"
)

// TypeInfo exposes the declared input and output types of a converter.
type TypeInfo interface {
	SourceType() reflect.Type
	DestinationType() reflect.Type
}

// Converter turns a value of SourceType into a value of DestinationType.
// It is used both as a whole-object converter on a TypeMap and as a
// member-level value converter.
type Converter interface {
	TypeInfo
	Convert(src any) (any, error)
}

type converterFunc[TSrc, TDest any] struct {
	fn func(TSrc) (TDest, error)
}

// ConverterFunc wraps a typed function as a Converter.
func ConverterFunc[TSrc, TDest any](fn func(TSrc) (TDest, error)) Converter {
	return converterFunc[TSrc, TDest]{fn: fn}
}

func (c converterFunc[TSrc, TDest]) SourceType() reflect.Type {
	return TypeOf[TSrc]()
}

func (c converterFunc[TSrc, TDest]) DestinationType() reflect.Type {
	return TypeOf[TDest]()
}

func (c converterFunc[TSrc, TDest]) Convert(src any) (any, error) {
	in, ok := src.(TSrc)
	if !ok && src != nil {
		return nil, errors.Errorf("converter expects %v, got %T", c.SourceType(), src)
	}
	return c.fn(in)
}

// TypeOf returns the reflect.Type of T, including interface types.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// convert runs c against v after adapting v to the declared source type.
func convert(c Converter, v reflect.Value) (reflect.Value, error) {
	var arg any
	if v.IsValid() {
		in, ok := adapt(v, c.SourceType())
		if !ok {
			return reflect.Value{}, errors.Errorf("value of type %v is not accepted by converter from %v", v.Type(), c.SourceType())
		}
		arg = in.Interface()
	}
	out, err := c.Convert(arg)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(out), nil
}
