package vm

import (
	"encoding/binary"
	"math"
)

func putU64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }
func getU64(b []byte) uint64    { return binary.LittleEndian.Uint64(b) }

func u64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	putU64(b, v)
	return b
}

func i64Bytes(v int64) []byte   { return u64Bytes(uint64(v)) }
func f64Bytes(v float64) []byte { return u64Bytes(math.Float64bits(v)) }

func asU64(b []byte) uint64  { return getU64(b) }
func asI64(b []byte) int64   { return int64(getU64(b)) }
func asI32(b []byte) int32   { return int32(int64(getU64(b))) }
func asF64(b []byte) float64 { return math.Float64frombits(getU64(b)) }
func asBool(b []byte) bool   { return getU64(b) != 0 }

func boolBytes(v bool) []byte {
	if v {
		return u64Bytes(1)
	}
	return u64Bytes(0)
}
