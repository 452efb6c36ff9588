package odbcscan

import (
	"encoding/binary"
	"unsafe"

	"github.com/google/uuid"

	"github.com/slingdata-io/odbcscan/chunk"
)

// uuidHandler moves UUID through SQL_GUID_STRUCT. The host keeps UUIDs as a
// 128-bit integer with the top bit flipped; the flip is undone exactly once
// on the way to the driver and applied exactly once on the way back.
type uuidHandler struct{}

func (uuidHandler) extract(vec *chunk.Vector, row int) Value {
	return NewUUID(chunk.Data[chunk.Hugeint](vec)[row])
}

func (uuidHandler) store(vec *chunk.Vector, row int, v *Value) error {
	h, err := v.UUID()
	if err != nil {
		return err
	}
	chunk.Set(vec, row, h)
	return nil
}

func (uuidHandler) bind(b *binder, ordinal int, v *Value) error {
	h, err := v.UUID()
	if err != nil {
		return &OpError{Op: "bind", Param: ordinal, Err: err}
	}
	g := new(SQL_GUID_STRUCT)
	*g = guidFromUUID(chunk.UUIDBytes(h))
	return bindFixed(b, ordinal, v, g, SQL_C_GUID, SQL_GUID, 36, 0)
}

func (uuidHandler) fetch(f *fetcher, ordinal int, _ *ColumnDescriptor, _ chunk.Type) (Value, error) {
	var g SQL_GUID_STRUCT
	null, err := f.getFixed(ordinal, SQL_C_GUID, unsafe.Pointer(&g), int(unsafe.Sizeof(g)))
	if err != nil || null {
		return NullValue(), err
	}
	return NewUUIDFromBytes(uuidFromGUID(&g)), nil
}

// guidFromUUID splits the canonical big-endian form into the GUID struct,
// whose first three fields are native integers.
func guidFromUUID(u uuid.UUID) SQL_GUID_STRUCT {
	g := SQL_GUID_STRUCT{
		Data1: binary.BigEndian.Uint32(u[0:4]),
		Data2: binary.BigEndian.Uint16(u[4:6]),
		Data3: binary.BigEndian.Uint16(u[6:8]),
	}
	copy(g.Data4[:], u[8:16])
	return g
}

func uuidFromGUID(g *SQL_GUID_STRUCT) uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], g.Data1)
	binary.BigEndian.PutUint16(u[4:6], g.Data2)
	binary.BigEndian.PutUint16(u[6:8], g.Data3)
	copy(u[8:16], g.Data4[:])
	return u
}
