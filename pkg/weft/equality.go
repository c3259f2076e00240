package weft

import "reflect"

// DefaultEquals is the equality used by signals and memos unless an
// option overrides it. Comparable kinds use ==; everything else falls
// back to reflect.DeepEqual.
func DefaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int8:
		return av == any(b).(int8)
	case int16:
		return av == any(b).(int16)
	case int32:
		return av == any(b).(int32)
	case int64:
		return av == any(b).(int64)
	case uint:
		return av == any(b).(uint)
	case uint8:
		return av == any(b).(uint8)
	case uint16:
		return av == any(b).(uint16)
	case uint32:
		return av == any(b).(uint32)
	case uint64:
		return av == any(b).(uint64)
	case float32:
		return av == any(b).(float32)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	default:
		return reflect.DeepEqual(a, b)
	}
}

// NeverEqual reports every pair as unequal. Use it as a SignalEquals or
// MemoEquals argument to force propagation on every write.
func NeverEqual[T any](a, b T) bool { return false }

// wrapEquals lifts a typed equality to the node-level representation.
func wrapEquals[T any](eq func(a, b T) bool) func(a, b any) bool {
	return func(a, b any) bool {
		av, aok := a.(T)
		bv, bok := b.(T)
		if !aok || !bok {
			return false
		}
		return eq(av, bv)
	}
}
