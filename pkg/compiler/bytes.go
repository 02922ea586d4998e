package compiler

import (
	"encoding/binary"
	"math"

	"anzu/pkg/types"
)

// u64Bytes and friends mirror vm/bytes.go's encoding exactly (little-endian,
// 8-byte numeric/bool/pointer slots) since the compiler emits the literal
// payloads the VM later reads back with the same helpers.
func u64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func i64Bytes(v int64) []byte   { return u64Bytes(uint64(v)) }
func f64Bytes(v float64) []byte { return u64Bytes(math.Float64bits(v)) }

func boolBytes(v bool) []byte {
	if v {
		return u64Bytes(1)
	}
	return u64Bytes(0)
}

// zeroBytes is the additive identity for t, used to synthesize unary minus
// (0 - x) since the VM has no dedicated negate opcode.
func zeroBytes(t types.Type) []byte {
	if t.Kind == types.Simple && t.Name == "f64" {
		return f64Bytes(0)
	}
	return u64Bytes(0)
}
