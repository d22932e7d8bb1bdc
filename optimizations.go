package cartographer

import (
	"reflect"
	"unsafe"
)

// OptimizationLevel represents the level of optimization to apply.
type OptimizationLevel int

const (
	// OptimizationNone uses the compiled reflection plans (default).
	OptimizationNone OptimizationLevel = iota
	// OptimizationUnsafe copies same-typed, pointer-free primitive members
	// with raw memory moves.
	OptimizationUnsafe
)

// WithOptimizationLevel sets the optimization level.
func WithOptimizationLevel(level OptimizationLevel) ConfigOption {
	return func(c *Configuration) {
		c.optLevel = level
	}
}

// WithUnsafeOptimizations enables unsafe pointer copies for primitive members.
func WithUnsafeOptimizations() ConfigOption {
	return WithOptimizationLevel(OptimizationUnsafe)
}

// fastCopy moves one member between fixed struct offsets.
type fastCopy struct {
	srcOffset  uintptr
	destOffset uintptr
	size       uintptr
	aligned    bool
}

// isPointerFreeKind reports kinds whose values hold no pointers. Strings are
// excluded: raw copies would bypass the GC write barrier.
func isPointerFreeKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

// compileFastCopy returns a raw copy for a plain member-to-member rule, or
// nil when the rule needs the general path.
func compileFastCopy(tm *TypeMap, pm *PropertyMap) *fastCopy {
	if pm.resolver != nil || pm.converter != nil || pm.srcMember == nil {
		return nil
	}
	st, dt := pm.srcMember.typ, pm.destMember.typ
	if st != dt || !isPointerFreeKind(st.Kind()) {
		return nil
	}

	srcOffset, ok := fieldOffset(tm.srcType, pm.srcMember.index)
	if !ok {
		return nil
	}
	destOffset, ok := fieldOffset(tm.destType, pm.destMember.index)
	if !ok {
		return nil
	}

	return &fastCopy{
		srcOffset:  srcOffset,
		destOffset: destOffset,
		size:       st.Size(),
		aligned:    uintptr(st.Align()) == st.Size(),
	}
}

// fieldOffset sums field offsets along an index path that stays inside one
// struct value.
func fieldOffset(t reflect.Type, index []int) (uintptr, bool) {
	var offset uintptr
	for i, idx := range index {
		if t.Kind() != reflect.Struct {
			return 0, false
		}
		f := t.Field(idx)
		offset += f.Offset
		t = f.Type
		if i < len(index)-1 && t.Kind() != reflect.Struct {
			return 0, false
		}
	}
	return offset, true
}

func (fc *fastCopy) copy(src, dest reflect.Value) {
	unsafeCopyField(
		unsafe.Pointer(src.UnsafeAddr()),
		unsafe.Pointer(dest.UnsafeAddr()),
		fc.srcOffset, fc.destOffset, fc.size, fc.aligned,
	)
}

// unsafeCopyField copies a field value using unsafe pointers.
// This is only safe for pointer-free types with the same type.
func unsafeCopyField(srcPtr, destPtr unsafe.Pointer, srcOffset, destOffset, size uintptr, aligned bool) {
	src := unsafe.Add(srcPtr, srcOffset)
	dest := unsafe.Add(destPtr, destOffset)

	if aligned {
		switch size {
		case 1:
			*(*uint8)(dest) = *(*uint8)(src)
			return
		case 2:
			*(*uint16)(dest) = *(*uint16)(src)
			return
		case 4:
			*(*uint32)(dest) = *(*uint32)(src)
			return
		case 8:
			*(*uint64)(dest) = *(*uint64)(src)
			return
		}
	}

	copy(unsafe.Slice((*byte)(dest), size), unsafe.Slice((*byte)(src), size))
}
