package jdwp

// Method and field ids handed to the debugger are derived from class ids and
// table indices, so the proxy never has to remember them.
//
// Method ids carry index+base in the low 32 bits; 8-byte method ids also carry
// the class id in the high 32 bits. Field ids are always 8 bytes:
// classID<<32 | fieldIndex.

// MakeMethodID encodes a method index as a method id of the given width.
func MakeMethodID(classID int32, index, base, size int) int64 {
	low := int64(uint32(int32(index + base)))
	if size == 8 {
		return int64(classID)<<32 | low
	}
	return low
}

// MethodIndex decodes the method table index from a method id.
func MethodIndex(id int64, base int) int {
	return int(int32(uint32(id))) - base
}

// MakeFieldID encodes a field index as a field id.
func MakeFieldID(classID int32, index int) int64 {
	return int64(classID)<<32 | int64(uint32(int32(index)))
}

// FieldIndex decodes the field table index from a field id.
func FieldIndex(id int64) int {
	return int(int32(uint32(id)))
}
