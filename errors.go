package cartographer

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

var (
	// ErrNoMapping is returned when no TypeMap serves a source/destination pair.
	ErrNoMapping = errors.New("no mapping exists")
	// ErrInvalidConfiguration is wrapped by every configuration and validation failure.
	ErrInvalidConfiguration = errors.New("mapper configuration is invalid")
	// ErrConfigurationSealed is recorded when a configuration is modified after CreateMapper.
	ErrConfigurationSealed = errors.New("configuration is sealed")
)

// MappingError represents an error that occurred during mapping.
type MappingError struct {
	Message    string
	SrcType    reflect.Type
	DestType   reflect.Type
	FieldName  string
	InnerError error
}

func (e *MappingError) Error() string {
	msg := e.Message
	if e.InnerError != nil {
		msg = msg + ": " + e.InnerError.Error()
	}
	if e.FieldName != "" {
		return fmt.Sprintf("mapping error for field '%s' (%v -> %v): %s",
			e.FieldName, e.SrcType, e.DestType, msg)
	}
	if e.SrcType != nil && e.DestType != nil {
		return fmt.Sprintf("mapping error (%v -> %v): %s", e.SrcType, e.DestType, msg)
	}
	return fmt.Sprintf("mapping error: %s", msg)
}

func (e *MappingError) Unwrap() error {
	return e.InnerError
}

func noMapping(src, dest reflect.Type) error {
	return &MappingError{
		Message:    "no type map registered",
		SrcType:    src,
		DestType:   dest,
		InnerError: ErrNoMapping,
	}
}

// ConfigurationError aggregates every problem found while building or
// compiling a configuration.
type ConfigurationError struct {
	merr *multierror.Error
}

func newConfigurationError(merr *multierror.Error) *ConfigurationError {
	merr.ErrorFormat = listFormat("mapper configuration is invalid")
	return &ConfigurationError{merr: merr}
}

func (e *ConfigurationError) Error() string {
	return e.merr.Error()
}

// Errors returns the individual configuration errors.
func (e *ConfigurationError) Errors() []error {
	return e.merr.WrappedErrors()
}

// Is lets errors.Is match ErrInvalidConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

func (e *ConfigurationError) Unwrap() error {
	return e.merr
}

func listFormat(header string) multierror.ErrorFormatFunc {
	return func(es []error) string {
		lines := make([]string, 0, len(es)+1)
		lines = append(lines, fmt.Sprintf("%s (%d problems):", header, len(es)))
		for _, err := range es {
			lines = append(lines, "  * "+err.Error())
		}
		return strings.Join(lines, "\n")
	}
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
