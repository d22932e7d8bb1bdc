package cartographer

import (
	"reflect"
	"sync"
	"unicode"
)

// typeCache caches member descriptor tables for faster reflection operations.
type typeCache struct {
	mu    sync.RWMutex
	cache map[reflect.Type]*typeInfo
}

// typeInfo is the member descriptor table of one shape.
type typeInfo struct {
	typ           reflect.Type
	members       []*memberInfo
	membersByName map[string]*memberInfo
}

// memberInfo describes a single readable and writable member.
type memberInfo struct {
	name  string
	index []int
	typ   reflect.Type
	field reflect.StructField
}

// MemberInfo is the public view of a member handed to matchers.
type MemberInfo struct {
	Name string
	Type reflect.Type
	Tag  reflect.StructTag
}

func (mi *memberInfo) public() MemberInfo {
	return MemberInfo{Name: mi.name, Type: mi.typ, Tag: mi.field.Tag}
}

// newTypeCache creates a new type cache.
func newTypeCache() *typeCache {
	return &typeCache{
		cache: make(map[reflect.Type]*typeInfo),
	}
}

// getTypeInfo retrieves or builds type information for a given type.
func (tc *typeCache) getTypeInfo(t reflect.Type) *typeInfo {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	tc.mu.RLock()
	info, ok := tc.cache[t]
	tc.mu.RUnlock()
	if ok {
		return info
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	if info, ok = tc.cache[t]; ok {
		return info
	}

	info = buildTypeInfo(t)
	tc.cache[t] = info
	return info
}

// buildTypeInfo collects the exported fields of a struct type, including
// fields promoted from embedded structs. Shadowed fields are left out.
func buildTypeInfo(t reflect.Type) *typeInfo {
	info := &typeInfo{
		typ:           t,
		membersByName: make(map[string]*memberInfo),
	}

	if t.Kind() != reflect.Struct {
		return info
	}

	for _, field := range reflect.VisibleFields(t) {
		if !field.IsExported() {
			continue
		}

		// Embedded structs contribute their promoted fields instead.
		if field.Anonymous {
			ft := field.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				continue
			}
		}

		mi := &memberInfo{
			name:  field.Name,
			index: field.Index,
			typ:   field.Type,
			field: field,
		}
		info.members = append(info.members, mi)
		info.membersByName[field.Name] = mi
	}

	return info
}

// resolvePath follows a chain of member names starting at t and returns a
// synthetic member whose index walks the whole path.
func (tc *typeCache) resolvePath(t reflect.Type, path []string) *memberInfo {
	if len(path) == 0 {
		return nil
	}

	current := t
	var index []int
	var last *memberInfo

	for i, part := range path {
		info := tc.getTypeInfo(current)
		mi, ok := info.membersByName[part]
		if !ok {
			return nil
		}
		index = append(index, mi.index...)
		last = mi

		if i < len(path)-1 {
			next := mi.typ
			if next.Kind() == reflect.Ptr {
				next = next.Elem()
			}
			if next.Kind() != reflect.Struct {
				return nil
			}
			current = next
		}
	}

	if len(path) == 1 {
		return last
	}

	return &memberInfo{
		name:  joinPath(path),
		index: index,
		typ:   last.typ,
		field: last.field,
	}
}

func joinPath(path []string) string {
	out := path[0]
	for _, p := range path[1:] {
		out += "." + p
	}
	return out
}

// splitPascalCase splits a PascalCase string into individual words.
// Example: "CustomerName" -> ["Customer", "Name"]
func splitPascalCase(s string) []string {
	if len(s) == 0 {
		return nil
	}

	var words []string
	var current []rune

	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			if len(current) > 0 {
				words = append(words, string(current))
				current = nil
			}
		}
		current = append(current, r)
	}

	if len(current) > 0 {
		words = append(words, string(current))
	}

	return words
}
