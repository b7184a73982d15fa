package vm

import "sort"

// The iteration protocol matches the hasnext2/nextname/nextvalue contract:
// indices are 1-based cursors, 0 means exhausted. Dynamic properties
// enumerate in sorted key order so a cursor survives across calls.

// nextNameIndex advances the cursor over v's enumerable properties.
func nextNameIndex(v Value, cur uint32) uint32 {
	switch v.Type() {
	case TArray:
		if int(cur) < v.(*Array).Len() {
			return cur + 1
		}
	case TObject:
		if int(cur) < len(v.(*Object).dynamic) {
			return cur + 1
		}
	}
	return 0
}

// nextName returns the property name at cursor index. The result carries a
// fresh reference.
func nextName(sys *SystemState, v Value, index uint32) Value {
	if index == 0 {
		return sys.Null()
	}
	switch v.Type() {
	case TArray:
		if int(index) <= v.(*Array).Len() {
			return sys.BoxInt(int32(index - 1))
		}
	case TObject:
		keys := sortedDynamicKeys(v.(*Object))
		if int(index) <= len(keys) {
			return sys.BoxString(keys[index-1])
		}
	}
	return sys.Null()
}

// nextValue returns the property value at cursor index. The result carries
// a fresh reference.
func nextValue(sys *SystemState, v Value, index uint32) Value {
	if index == 0 {
		return sys.Undefined()
	}
	switch v.Type() {
	case TArray:
		return v.(*Array).getIndex(sys, int(index-1))
	case TObject:
		o := v.(*Object)
		keys := sortedDynamicKeys(o)
		if int(index) <= len(keys) {
			return o.getProperty(sys, keys[index-1])
		}
	}
	return sys.Undefined()
}

func sortedDynamicKeys(o *Object) []string {
	keys := make([]string, 0, len(o.dynamic))
	for k := range o.dynamic {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
