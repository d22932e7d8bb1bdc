package cartographer

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/csmart-libs/go-cartographer/naming"
)

// NullCollectionStrategy controls what a nil source collection becomes.
type NullCollectionStrategy int

const (
	// PreserveNull maps a nil source collection to a nil destination collection.
	PreserveNull NullCollectionStrategy = iota
	// UseEmptyCollection substitutes an empty destination collection.
	UseEmptyCollection
)

const (
	preserveNullName       = "preserve-null"
	useEmptyCollectionName = "use-empty-collection"
)

// String returns the option-file spelling of the strategy.
func (s NullCollectionStrategy) String() string {
	switch s {
	case PreserveNull:
		return preserveNullName
	case UseEmptyCollection:
		return useEmptyCollectionName
	default:
		return "unknown"
	}
}

// ParseNullCollectionStrategy parses "preserve-null" or "use-empty-collection".
func ParseNullCollectionStrategy(s string) (NullCollectionStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", preserveNullName:
		return PreserveNull, nil
	case useEmptyCollectionName:
		return UseEmptyCollection, nil
	default:
		return PreserveNull, errors.Errorf("unknown null collection strategy %q", s)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *NullCollectionStrategy) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: null collection strategy must be a string", node.Line)
	}
	parsed, err := ParseNullCollectionStrategy(node.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d", node.Line)
	}
	*s = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s NullCollectionStrategy) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// Options are the process-wide mapping options of one configuration.
type Options struct {
	// MaxDepth bounds nested TypeMap dispatches; zero means unlimited.
	MaxDepth int `yaml:"max_depth"`
	// PreserveReferences maps a repeated source pointer to one destination.
	PreserveReferences bool `yaml:"preserve_references"`
	// NullCollections decides what nil source collections become.
	NullCollections NullCollectionStrategy `yaml:"null_collection_strategy"`
	// SourceNaming names a naming.Convention applied to source members.
	SourceNaming string `yaml:"source_naming"`
	// DestinationNaming names a naming.Convention applied to destination members.
	DestinationNaming string `yaml:"destination_naming"`
}

// Validate checks option values that the type system cannot.
func (o Options) Validate() error {
	if o.MaxDepth < 0 {
		return errors.Errorf("max depth must not be negative, got %d", o.MaxDepth)
	}
	if _, ok := naming.Lookup(o.SourceNaming); !ok {
		return errors.Errorf("unknown source naming convention %q", o.SourceNaming)
	}
	if _, ok := naming.Lookup(o.DestinationNaming); !ok {
		return errors.Errorf("unknown destination naming convention %q", o.DestinationNaming)
	}
	return nil
}

// LoadOptions decodes Options from YAML. Unknown keys are rejected.
func LoadOptions(r io.Reader) (Options, error) {
	var o Options
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, errors.Wrap(err, "decode mapping options")
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

// LoadOptionsFile reads Options from a YAML file.
func LoadOptionsFile(path string) (Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return Options{}, errors.Wrapf(err, "open options file %s", path)
	}
	defer f.Close()

	o, err := LoadOptions(f)
	if err != nil {
		return Options{}, errors.Wrapf(err, "load options file %s", path)
	}
	return o, nil
}
