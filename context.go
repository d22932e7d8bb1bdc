package cartographer

import (
	"reflect"
	"unsafe"
)

// MappingContext is the state of one top-level mapping call. It is created
// per call and threaded through every nested dispatch, so it needs no locking.
type MappingContext struct {
	maxDepth int
	depth    int
	refs     map[refKey]reflect.Value
}

// refKey identifies a source object mapped to one destination shape.
type refKey struct {
	ptr  unsafe.Pointer
	src  reflect.Type
	dest reflect.Type
}

func newMappingContext(o Options) *MappingContext {
	ctx := &MappingContext{maxDepth: o.MaxDepth}
	if o.PreserveReferences {
		ctx.refs = make(map[refKey]reflect.Value)
	}
	return ctx
}

// Depth returns the number of type map dispatches currently on the stack.
func (c *MappingContext) Depth() int {
	return c.depth
}

// enter increments the depth and reports whether it is within the limit.
// Every enter is paired with a leave.
func (c *MappingContext) enter() bool {
	c.depth++
	return c.maxDepth == 0 || c.depth <= c.maxDepth
}

func (c *MappingContext) leave() {
	c.depth--
}

// lookup returns the destination already produced for src by tm.
func (c *MappingContext) lookup(src reflect.Value, tm *TypeMap) (reflect.Value, bool) {
	if c.refs == nil {
		return reflect.Value{}, false
	}
	key, ok := identityKey(src, tm)
	if !ok {
		return reflect.Value{}, false
	}
	dest, ok := c.refs[key]
	return dest, ok
}

// track records dest as the destination of src. It is called right after
// dest is allocated so cycles resolve to the same instance.
func (c *MappingContext) track(src reflect.Value, tm *TypeMap, dest reflect.Value) {
	if c.refs == nil {
		return
	}
	if key, ok := identityKey(src, tm); ok {
		c.refs[key] = dest
	}
}

// identityKey only exists for sources reached through a pointer.
func identityKey(src reflect.Value, tm *TypeMap) (refKey, bool) {
	for src.IsValid() && src.Kind() == reflect.Interface {
		src = src.Elem()
	}
	if !src.IsValid() || src.Kind() != reflect.Ptr || src.IsNil() {
		return refKey{}, false
	}
	return refKey{ptr: src.UnsafePointer(), src: src.Type(), dest: tm.destType}, true
}
