// Package naming provides the member-name normalization functions used by
// convention matching. A Convention maps a member name to a comparison key;
// two members match when their keys are equal.
package naming

import (
	"strings"
	"unicode"
)

// Convention normalizes a member name into a comparison key.
type Convention interface {
	Normalize(name string) string
}

// Func adapts a plain function to the Convention interface.
type Func func(name string) string

// Normalize implements Convention.
func (f Func) Normalize(name string) string {
	return f(name)
}

// Identity leaves names untouched.
var Identity Convention = Func(func(name string) string { return name })

// Folded splits a name into words, lowercases them and joins them without
// separators ("OrderID", "orderId", "Order_Id" and "order-id" all become
// "orderid"). It is case- and separator-insensitive.
var Folded Convention = Func(fold)

// PascalCase, CamelCase, SnakeCase and KebabCase are aliases of Folded. They
// name the style a type uses; any two of them match each other.
var (
	PascalCase = Folded
	CamelCase  = Folded
	SnakeCase  = Folded
	KebabCase  = Folded
)

var registry = map[string]Convention{
	"":            Identity,
	"identity":    Identity,
	"folded":      Folded,
	"pascal_case": PascalCase,
	"camel_case":  CamelCase,
	"snake_case":  SnakeCase,
	"kebab_case":  KebabCase,
}

// Lookup returns the convention registered under name. Names are the ones
// accepted in option files: identity, folded, pascal_case, camel_case,
// snake_case and kebab_case. The empty name resolves to Identity.
func Lookup(name string) (Convention, bool) {
	c, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// fold lowercases the words of name and joins them without separators.
func fold(name string) string {
	return strings.Join(Tokenize(name), "")
}

// Tokenize splits an identifier into lowercase words.
// Examples:
//   - "OrderID" -> ["order", "id"]
//   - "customer_name" -> ["customer", "name"]
//   - "XMLParser" -> ["xml", "parser"]
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}

	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToLower(current.String()))
			current.Reset()
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if isSeparator(r) {
			flush()
			continue
		}
		if i > 0 && startsToken(runes, i) {
			flush()
		}
		current.WriteRune(r)
	}
	flush()

	return tokens
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || r == ' ' || r == '.'
}

// startsToken reports whether a new word begins at runes[i].
func startsToken(runes []rune, i int) bool {
	r := runes[i]
	prev := runes[i-1]
	if !unicode.IsUpper(r) || isSeparator(prev) {
		return false
	}

	// "orderID": lower -> upper
	if !unicode.IsUpper(prev) {
		return true
	}

	// "XMLParser": end of an acronym
	return i+1 < len(runes) && unicode.IsLower(runes[i+1])
}
