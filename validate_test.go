package cartographer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidConfigurationPasses(t *testing.T) {
	cfg := NewConfiguration()
	CreateMap[Address, AddressDTO](cfg)
	CreateMap[SourceNested, DestNested](cfg)
	CreateMap[SourceBasic, DestBasic](cfg)

	assert.NoError(t, cfg.AssertConfigurationIsValid())
}

func TestValidationReportsEveryViolation(t *testing.T) {
	type src struct {
		Name    string
		Address Address
		Count   int
	}
	type dst struct {
		Name    string
		Address AddressDTO
		Missing string
		Count   string
		Skipped string
	}

	cfg := NewConfiguration()
	CreateMap[src, dst](cfg).ForMemberByName("Skipped", Ignore())
	mapper := mustCreate(t, cfg)

	err := mapper.AssertConfigurationIsValid()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Violations, 3)

	msgs := make([]string, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		msgs = append(msgs, v.Error())
	}
	assert.Equal(t, []string{
		"Cannot map Address to AddressDTO for member dst.Address",
		"No source for destination member dst.Missing",
		"Cannot map int to string for member dst.Count",
	}, msgs)

	missing := verr.Violations[1]
	assert.Equal(t, "Missing", missing.Member)
	assert.Nil(t, missing.MemberSource)
	assert.Equal(t, TypeOf[src](), missing.SourceType)
	assert.Contains(t, err.Error(), "3 problems")
}

func TestValidationSkipsRuntimeResolvedMembers(t *testing.T) {
	type src struct {
		Value any
	}
	type dst struct {
		Value    string
		Computed int
		Tags     []string
	}

	cfg := NewConfiguration()
	CreateMap[src, dst](cfg).
		ForMemberByName("Computed", MapFromFunc(func(any, any) (any, error) { return 1, nil })).
		ForMemberByName("Tags", ConvertWith(func(v any) ([]string, error) { return nil, nil }), MapFrom("Value"))

	assert.NoError(t, cfg.AssertConfigurationIsValid())
}

func TestValidationCoversCollections(t *testing.T) {
	cfg := NewConfiguration()
	CreateMap[SourceWithSlice, DestWithSlice](cfg)

	err := cfg.AssertConfigurationIsValid()
	require.Error(t, err, "element map is missing")
	assert.Contains(t, err.Error(), "for member DestWithSlice.Items")

	cfg = NewConfiguration()
	CreateMap[SourceItem, DestItem](cfg)
	CreateMap[SourceWithSlice, DestWithSlice](cfg)
	assert.NoError(t, cfg.AssertConfigurationIsValid())
}

func TestValidationSurfacesConfigurationErrors(t *testing.T) {
	cfg := NewConfiguration()
	CreateMap[SourceBasic, DestBasic](cfg).ForMemberByName("Nope", Ignore())

	err := cfg.AssertConfigurationIsValid()
	require.Error(t, err)
	var cerr *ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}

func TestValidationFlagsNarrowingNumbers(t *testing.T) {
	type wide struct {
		Count int64
		Ratio float64
		Small int16
	}
	type narrow struct {
		Count int8
		Ratio int
		Small float32
	}

	cfg := NewConfiguration()
	CreateMap[wide, narrow](cfg)

	var verr *ValidationError
	require.True(t, errors.As(cfg.AssertConfigurationIsValid(), &verr))
	msgs := make([]string, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		msgs = append(msgs, v.Error())
	}
	assert.Equal(t, []string{
		"Cannot map int64 to int8 for member narrow.Count",
		"Cannot map float64 to int for member narrow.Ratio",
	}, msgs)
}
