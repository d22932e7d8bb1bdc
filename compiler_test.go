package cartographer

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreConditionRunsBeforeCondition(t *testing.T) {
	tests := []struct {
		name      string
		pre, cond bool
		wantCalls []string
		wantAge   int
	}{
		{"both pass", true, true, []string{"pre", "cond"}, 40},
		{"pre-condition fails", false, true, []string{"pre"}, 0},
		{"condition fails", true, false, []string{"pre", "cond"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			cfg := NewConfiguration()
			CreateMap[SourceBasic, DestBasic](cfg).
				ForMemberByName("Age",
					Condition(func(SourceBasic) bool {
						calls = append(calls, "cond")
						return tt.cond
					}),
					PreCondition(func(SourceBasic) bool {
						calls = append(calls, "pre")
						return tt.pre
					}),
				)
			mapper := mustCreate(t, cfg)

			dest, err := Map[DestBasic](mapper, SourceBasic{Name: "n", Age: 40})
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantAge, dest.Age)
			assert.Equal(t, "n", dest.Name)
		})
	}
}

func TestConditionKeepsExistingValueOnUpdate(t *testing.T) {
	cfg := NewConfiguration()
	CreateMap[SourceBasic, DestBasic](cfg).
		ForMemberByName("Email", Condition(func(s SourceBasic) bool { return s.Email != "" }))
	mapper := mustCreate(t, cfg)

	dest := DestBasic{Email: "keep@example.com"}
	require.NoError(t, MapTo(mapper, SourceBasic{Name: "n"}, &dest))
	assert.Equal(t, "keep@example.com", dest.Email)
	assert.Equal(t, "n", dest.Name)
}

func TestMemberConverter(t *testing.T) {
	type src struct {
		Tags string
	}
	type dst struct {
		Tags []string
	}

	cfg := NewConfiguration()
	CreateMap[src, dst](cfg).
		ForMemberByName("Tags", ConvertWith(func(s string) ([]string, error) {
			return strings.Split(s, ","), nil
		}))
	mapper := mustCreate(t, cfg)

	out, err := Map[dst](mapper, src{Tags: "a,b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out.Tags)
}

type upperConverter struct{}

func (upperConverter) SourceType() reflect.Type      { return TypeOf[string]() }
func (upperConverter) DestinationType() reflect.Type { return TypeOf[string]() }
func (upperConverter) Convert(src any) (any, error) {
	return strings.ToUpper(src.(string)), nil
}

func TestUseConverter(t *testing.T) {
	cfg := NewConfiguration()
	CreateMap[SourceBasic, DestBasic](cfg).
		ForMemberByName("Name", UseConverter(upperConverter{}))
	mapper := mustCreate(t, cfg)

	dest, err := Map[DestBasic](mapper, SourceBasic{Name: "ada"})
	require.NoError(t, err)
	assert.Equal(t, "ADA", dest.Name)
}

func TestMemberConverterFailureNamesMember(t *testing.T) {
	boom := errors.New("boom")
	cfg := NewConfiguration()
	CreateMap[SourceBasic, DestBasic](cfg).
		ForMemberByName("Name", ConvertWith(func(string) (string, error) { return "", boom }))
	mapper := mustCreate(t, cfg)

	_, err := Map[DestBasic](mapper, SourceBasic{Name: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	var merr *MappingError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, "Name", merr.FieldName)
}

func TestMemberConverterTypeMismatch(t *testing.T) {
	tests := []struct {
		name string
		opt  MemberOption
		want string
	}{
		{
			name: "input",
			opt:  ConvertWith(func(s string) (int, error) { return len(s), nil }),
			want: "converter for Age accepts string, source is int",
		},
		{
			name: "output",
			opt:  ConvertWith(func(i int) (string, error) { return fmt.Sprint(i), nil }),
			want: "converter for Age produces string, member is int",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfiguration()
			CreateMap[SourceBasic, DestBasic](cfg).ForMemberByName("Age", tt.opt)

			_, err := cfg.CreateMapper()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

type Money struct {
	Cents int64
}

type Price struct {
	Amount   float64
	Currency string
}

func centsToPrice(m Money) (Price, error) {
	if m.Cents < 0 {
		return Price{}, errors.New("negative amount")
	}
	return Price{Amount: float64(m.Cents) / 100, Currency: "EUR"}, nil
}

func TestWholeObjectConverter(t *testing.T) {
	type Listing struct {
		Title string
		Price Money
	}
	type ListingView struct {
		Title string
		Price Price
	}

	cfg := NewConfiguration()
	CreateMap[Money, Price](cfg).ConvertUsing(ConverterFunc(centsToPrice))
	CreateMap[Listing, ListingView](cfg)
	mapper := mustCreate(t, cfg)

	price, err := Map[Price](mapper, Money{Cents: 1250})
	require.NoError(t, err)
	assert.Equal(t, Price{Amount: 12.5, Currency: "EUR"}, price)

	view, err := Map[ListingView](mapper, Listing{Title: "Anvil", Price: Money{Cents: 999}})
	require.NoError(t, err)
	assert.Equal(t, 9.99, view.Price.Amount)

	_, err = Map[Price](mapper, Money{Cents: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative amount")
}

func TestWholeObjectConverterUpdate(t *testing.T) {
	cfg := NewConfiguration()
	CreateMap[Money, Price](cfg).
		ConvertUsing(ConverterFunc(centsToPrice)).
		AfterMap(func(*Money, *Price) error {
			return errors.New("hooks do not run for converters")
		})
	mapper := mustCreate(t, cfg)

	dest := &Price{Currency: "USD"}
	keep := dest
	require.NoError(t, MapTo(mapper, Money{Cents: 500}, dest))
	assert.Same(t, keep, dest)
	assert.Equal(t, Price{Amount: 5, Currency: "EUR"}, *dest)
}

type receipt struct {
	Label string
	Note  string
	seq   int
}

func TestConverterUpdateMatchesCreate(t *testing.T) {
	cfg := NewConfiguration()
	ConvertUsing(cfg, func(m Money) (receipt, error) {
		return receipt{Label: fmt.Sprint(m.Cents), seq: 7}, nil
	})
	mapper := mustCreate(t, cfg)

	created, err := Map[receipt](mapper, Money{Cents: 120})
	require.NoError(t, err)

	dest := &receipt{Label: "old", Note: "stale", seq: 1}
	keep := dest
	require.NoError(t, MapTo(mapper, Money{Cents: 120}, dest))
	assert.Same(t, keep, dest)
	assert.Equal(t, created, *dest)
	assert.Equal(t, receipt{Label: "120", seq: 7}, *dest)
}

func TestWholeObjectConverterTypeMismatch(t *testing.T) {
	cfg := NewConfiguration()
	CreateMap[Money, Price](cfg).
		ConvertUsing(ConverterFunc(func(s string) (Price, error) { return Price{}, nil }))

	_, err := cfg.CreateMapper()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "converter accepts string")
}

func TestNonStructDestinationNeedsConverter(t *testing.T) {
	cfg := NewConfiguration()
	CreateMap[SourceBasic, string](cfg)

	_, err := cfg.CreateMapper()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destination is not a struct")
}

func TestCompileErrorsAreCached(t *testing.T) {
	cfg := NewConfiguration()
	CreateMap[SourceBasic, string](cfg)

	_, first := cfg.CreateMapper()
	_, second := cfg.CreateMapper()
	require.Error(t, first)
	assert.Equal(t, first, second)
}

func TestCompileFastCopy(t *testing.T) {
	type inner struct {
		Score int32
	}
	type src struct {
		Name  string
		Count int
		In    inner
	}
	type dst struct {
		Name  string
		Count int
		Score int32
	}

	cfg := NewConfiguration(WithUnsafeOptimizations())
	tm := CreateMap[src, dst](cfg).
		ForMemberByName("Score", MapFrom("In.Score")).
		TypeMap()
	mapper := mustCreate(t, cfg)

	fast := map[string]bool{}
	for _, pm := range tm.propertyMaps {
		fast[pm.DestinationMember()] = compileFastCopy(tm, pm) != nil
	}
	assert.Equal(t, map[string]bool{"Name": false, "Count": true, "Score": true}, fast)

	// Addressable sources take the raw copy, values the reflective path.
	s := &src{Name: "n", Count: 3, In: inner{Score: 7}}
	fromPtr, err := Map[dst](mapper, s)
	require.NoError(t, err)
	fromValue, err := Map[dst](mapper, *s)
	require.NoError(t, err)
	assert.Equal(t, dst{Name: "n", Count: 3, Score: 7}, fromPtr)
	assert.Equal(t, fromPtr, fromValue)
}

func TestUnsafeCopyField(t *testing.T) {
	type pair struct {
		A uint16
		B [3]byte
	}
	a := pair{A: 0xBEEF, B: [3]byte{1, 2, 3}}
	var b pair
	fa := reflect.ValueOf(&a).Elem()
	fb := reflect.ValueOf(&b).Elem()

	sizeA := reflect.TypeOf(a.A).Size()
	(&fastCopy{srcOffset: 0, destOffset: 0, size: sizeA, aligned: true}).copy(fa, fb)
	offB := reflect.TypeOf(a).Field(1).Offset
	(&fastCopy{srcOffset: offB, destOffset: offB, size: 3}).copy(fa, fb)
	assert.Equal(t, a, b)
}
