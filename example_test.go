package cartographer_test

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/csmart-libs/go-cartographer"
	"github.com/csmart-libs/go-cartographer/naming"
)

// Entity types (domain layer)
type User struct {
	ID        int
	FirstName string
	LastName  string
	Email     string
	Age       int
	Address   Address
	Tags      []string
}

type Address struct {
	Street  string
	City    string
	State   string
	ZipCode string
}

// DTO types (presentation layer)
type UserDTO struct {
	ID          int
	FirstName   string
	LastName    string
	Email       string
	Age         int
	AddressCity string // Flattened from Address.City
	Tags        []string
}

type UserDetailDTO struct {
	ID      int
	Name    string
	Email   string `map:"-"`
	Address AddressDTO
}

type AddressDTO struct {
	Street  string
	City    string
	State   string
	ZipCode string `map:"ZipCode"`
}

// Example demonstrates basic usage of cartographer.
func Example() {
	cfg := cartographer.NewConfiguration()
	cartographer.CreateMap[User, UserDTO](cfg)

	mapper, err := cfg.CreateMapper()
	if err != nil {
		panic(err)
	}

	user := User{
		ID:        1,
		FirstName: "John",
		LastName:  "Doe",
		Email:     "john@example.com",
		Age:       30,
		Address: Address{
			Street:  "123 Main St",
			City:    "Boston",
			State:   "MA",
			ZipCode: "02101",
		},
		Tags: []string{"developer", "golang"},
	}

	dto, err := cartographer.Map[UserDTO](mapper, user)
	if err != nil {
		panic(err)
	}

	fmt.Printf("User: %s %s, Email: %s\n", dto.FirstName, dto.LastName, dto.Email)
	fmt.Printf("City: %s\n", dto.AddressCity)
	fmt.Printf("Tags: %v\n", dto.Tags)

	// Output:
	// User: John Doe, Email: john@example.com
	// City: Boston
	// Tags: [developer golang]
}

// Example_nestedMapping maps a nested struct through its own type map.
func Example_nestedMapping() {
	cfg := cartographer.NewConfiguration()
	cartographer.CreateMap[User, UserDetailDTO](cfg)
	cartographer.CreateMap[Address, AddressDTO](cfg)
	mapper, _ := cfg.CreateMapper()

	user := User{
		ID:    1,
		Email: "jane@example.com",
		Address: Address{
			City:  "New York",
			State: "NY",
		},
	}

	dto, _ := cartographer.Map[UserDetailDTO](mapper, user)

	fmt.Printf("City: %s, State: %s, Email: %q\n", dto.Address.City, dto.Address.State, dto.Email)

	// Output:
	// City: New York, State: NY, Email: ""
}

// Example_customResolver computes a member from the whole source.
func Example_customResolver() {
	cfg := cartographer.NewConfiguration()
	cartographer.CreateMap[User, UserDetailDTO](cfg).
		ForMember(func(d *UserDetailDTO) any { return &d.Name },
			cartographer.ResolveUsing(func(u User) string {
				return u.FirstName + " " + u.LastName
			}))
	cartographer.CreateMap[Address, AddressDTO](cfg)
	mapper, _ := cfg.CreateMapper()

	dto, _ := cartographer.Map[UserDetailDTO](mapper, User{FirstName: "John", LastName: "Doe"})

	fmt.Printf("Name: %s\n", dto.Name)

	// Output:
	// Name: John Doe
}

// Example_sliceMapping maps a slice within one mapping call.
func Example_sliceMapping() {
	cfg := cartographer.NewConfiguration()
	cartographer.CreateMap[User, UserDTO](cfg)
	mapper, _ := cfg.CreateMapper()

	users := []User{
		{ID: 1, FirstName: "John", Email: "john@example.com"},
		{ID: 2, FirstName: "Jane", Email: "jane@example.com"},
	}

	dtos, _ := cartographer.MapSlice[User, UserDTO](mapper, users)

	for _, dto := range dtos {
		fmt.Printf("User %d: %s\n", dto.ID, dto.FirstName)
	}

	// Output:
	// User 1: John
	// User 2: Jane
}

type OrderRow struct {
	Order_Id    int
	Total_Cents int64
}

type OrderView struct {
	OrderID    int
	TotalCents int64
}

// Example_namingConventions matches snake_case source members to PascalCase
// destination members.
func Example_namingConventions() {
	cfg := cartographer.NewConfiguration(
		cartographer.WithSourceNamingConvention(naming.SnakeCase),
		cartographer.WithDestinationNamingConvention(naming.PascalCase),
	)
	cartographer.CreateMap[OrderRow, OrderView](cfg)
	mapper, _ := cfg.CreateMapper()

	view, _ := cartographer.Map[OrderView](mapper, OrderRow{Order_Id: 7, Total_Cents: 1999})
	fmt.Printf("%+v\n", view)

	// Output:
	// {OrderID:7 TotalCents:1999}
}

type Product struct {
	SKU   string
	Title string
}

type ProductDTO struct {
	SKU  string
	Name string
}

// ExampleTypeMapBuilder_ReverseMap maps in both directions with one rename.
func ExampleTypeMapBuilder_ReverseMap() {
	cfg := cartographer.NewConfiguration()
	cartographer.CreateMap[Product, ProductDTO](cfg).
		ForMemberByName("Name", cartographer.MapFrom("Title")).
		ReverseMap()
	mapper, _ := cfg.CreateMapper()

	dto, _ := cartographer.Map[ProductDTO](mapper, Product{SKU: "A-1", Title: "Anvil"})
	back, _ := cartographer.Map[Product](mapper, dto)
	fmt.Printf("%+v\n%+v\n", dto, back)

	// Output:
	// {SKU:A-1 Name:Anvil}
	// {SKU:A-1 Title:Anvil}
}

type Shape interface {
	Area() float64
}

type Square struct{ Side float64 }

func (s Square) Area() float64 { return s.Side * s.Side }

type Circle struct{ Radius float64 }

func (c Circle) Area() float64 { return 3 * c.Radius * c.Radius }

type ShapeDTO interface {
	Kind() string
}

type SquareDTO struct{ Side float64 }

func (*SquareDTO) Kind() string { return "square" }

type CircleDTO struct{ Radius float64 }

func (*CircleDTO) Kind() string { return "circle" }

// ExampleTypeMapBuilder_Include dispatches on the runtime type of the source.
func ExampleTypeMapBuilder_Include() {
	cfg := cartographer.NewConfiguration()
	cartographer.CreateMap[Shape, ShapeDTO](cfg).
		Include(reflect.TypeOf(Square{}), reflect.TypeOf(SquareDTO{})).
		Include(reflect.TypeOf(Circle{}), reflect.TypeOf(CircleDTO{}))
	mapper, _ := cfg.CreateMapper()

	shapes := []Shape{Square{Side: 2}, Circle{Radius: 1}}
	dtos, _ := cartographer.Map[[]ShapeDTO](mapper, shapes)
	for _, d := range dtos {
		fmt.Println(d.Kind())
	}

	// Output:
	// square
	// circle
}

// ExampleMapper_AssertConfigurationIsValid lists every member that cannot be
// populated.
func ExampleMapper_AssertConfigurationIsValid() {
	type Source struct {
		Name  string
		Count int
	}
	type Target struct {
		Name   string
		Count  string
		Status string
	}

	cfg := cartographer.NewConfiguration()
	cartographer.CreateMap[Source, Target](cfg)
	mapper, _ := cfg.CreateMapper()

	err := mapper.AssertConfigurationIsValid()
	var verr *cartographer.ValidationError
	if errors.As(err, &verr) {
		for _, v := range verr.Violations {
			fmt.Println(v)
		}
	}

	// Output:
	// Cannot map int to string for member Target.Count
	// No source for destination member Target.Status
}

// ExampleLoadOptions reads mapping options from YAML.
func ExampleLoadOptions() {
	opts, err := cartographer.LoadOptions(strings.NewReader(`
max_depth: 3
null_collection_strategy: use-empty-collection
`))
	if err != nil {
		panic(err)
	}

	cfg := cartographer.NewConfiguration(cartographer.WithOptions(opts))
	cartographer.CreateMap[User, UserDTO](cfg)
	mapper, _ := cfg.CreateMapper()

	dto, _ := cartographer.Map[UserDTO](mapper, User{ID: 1})
	fmt.Println(mapper.Options().MaxDepth, dto.Tags != nil, len(dto.Tags))

	// Output:
	// 3 true 0
}
