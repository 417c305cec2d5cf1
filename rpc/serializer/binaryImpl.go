package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/kvmig/lib/db"
	"github.com/ValentinKolb/kvmig/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format:
//
//	1 byte message type | 2 bytes flags (big endian) | present fields in flag order
//
// Strings and byte slices are prefixed with their length (4 bytes), lists with their
// element count (4 bytes). The commands of an Exec request use the db batch encoding.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey uint16 = 1 << iota
	hasField
	hasTarget
	hasValue
	hasCommands
	hasResults
	hasKeys
	hasOk
	hasErr
	hasCode
	hasMeta
)

const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var batch []byte
	if msg.Commands != nil {
		batch = db.EncodeBatch(msg.Commands)
	}

	w := binaryWriter{buf: make([]byte, headerSize, b.sizeBytes(msg, len(batch)))}
	w.buf[0] = byte(msg.MsgType)

	var flags uint16
	if msg.Key != "" {
		flags |= hasKey
		w.putString(msg.Key)
	}
	if msg.Field != "" {
		flags |= hasField
		w.putString(msg.Field)
	}
	if msg.Target != "" {
		flags |= hasTarget
		w.putString(msg.Target)
	}
	if msg.Value != nil {
		flags |= hasValue
		w.putBytes(msg.Value)
	}
	if msg.Commands != nil {
		flags |= hasCommands
		w.putBytes(batch)
	}
	if msg.Results != nil {
		flags |= hasResults
		w.putUint32(uint32(len(msg.Results)))
		for _, r := range msg.Results {
			w.putByte(byte(r.Type))
			w.putString(r.Key)
			w.putBool(r.Applied)
		}
	}
	if msg.Keys != nil {
		flags |= hasKeys
		w.putUint32(uint32(len(msg.Keys)))
		for _, k := range msg.Keys {
			w.putString(k)
		}
	}
	if msg.Ok {
		flags |= hasOk
	}
	if msg.Err != "" {
		flags |= hasErr
		w.putString(msg.Err)
	}
	if msg.Code != 0 {
		flags |= hasCode
		w.putUint64(msg.Code)
	}
	if msg.Meta != nil {
		flags |= hasMeta
		w.putBytes(msg.Meta)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(w.buf[1:3], flags)
	return w.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint16(data[1:3])
	r := binaryReader{data: data, pos: headerSize}

	if flags&hasKey != 0 {
		msg.Key = r.readString("key")
	}
	if flags&hasField != 0 {
		msg.Field = r.readString("field")
	}
	if flags&hasTarget != 0 {
		msg.Target = r.readString("target")
	}
	if flags&hasValue != 0 {
		msg.Value = r.readBytes("value")
	}
	if flags&hasCommands != 0 {
		if batch := r.readBytes("commands"); r.err == nil {
			cmds, err := db.DecodeBatch(batch)
			if err != nil {
				return fmt.Errorf("invalid commands: %w", err)
			}
			msg.Commands = cmds
		}
	}
	if flags&hasResults != 0 {
		n := r.readCount("results")
		msg.Results = make([]db.Result, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			var res db.Result
			res.Type = db.CommandType(r.readByte("result type"))
			res.Key = r.readString("result key")
			res.Applied = r.readByte("result applied") != 0
			msg.Results = append(msg.Results, res)
		}
	}
	if flags&hasKeys != 0 {
		n := r.readCount("keys")
		msg.Keys = make([]string, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			msg.Keys = append(msg.Keys, r.readString("keys"))
		}
	}
	msg.Ok = flags&hasOk != 0
	if flags&hasErr != 0 {
		msg.Err = r.readString("error")
	}
	if flags&hasCode != 0 {
		msg.Code = r.readUint64("code")
	}
	if flags&hasMeta != 0 {
		msg.Meta = r.readBytes("meta")
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message, batchLen int) int {
	size := headerSize

	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.Field != "" {
		size += 4 + len(msg.Field)
	}
	if msg.Target != "" {
		size += 4 + len(msg.Target)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Commands != nil {
		size += 4 + batchLen
	}
	if msg.Results != nil {
		size += 4
		for _, r := range msg.Results {
			size += 1 + 4 + len(r.Key) + 1 // type + key + applied
		}
	}
	if msg.Keys != nil {
		size += 4
		for _, k := range msg.Keys {
			size += 4 + len(k)
		}
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Code != 0 {
		size += 8
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}

type binaryWriter struct {
	buf []byte
}

func (w *binaryWriter) putByte(v byte) { w.buf = append(w.buf, v) }

func (w *binaryWriter) putBool(v bool) {
	if v {
		w.putByte(1)
	} else {
		w.putByte(0)
	}
}

func (w *binaryWriter) putUint32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }

func (w *binaryWriter) putUint64(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }

func (w *binaryWriter) putString(s string) {
	w.putUint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *binaryWriter) putBytes(b []byte) {
	w.putUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// binaryReader reads fields until the first error, later reads return zero values
type binaryReader struct {
	data []byte
	pos  int
	err  error
}

func (r *binaryReader) need(n int, what string) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", what)
		return false
	}
	return true
}

func (r *binaryReader) readByte(what string) byte {
	if !r.need(1, what) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *binaryReader) readUint32(what string) uint32 {
	if !r.need(4, what) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *binaryReader) readUint64(what string) uint64 {
	if !r.need(8, what) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v
}

// readCount reads a list length and checks it against the remaining data (every element needs at least 4 bytes)
func (r *binaryReader) readCount(what string) int {
	n := int(r.readUint32(what + " count"))
	if r.err == nil && n > (len(r.data)-r.pos)/4 {
		r.err = fmt.Errorf("data too short for %d %s", n, what)
		return 0
	}
	return n
}

// readBytes returns a copy of a length prefixed byte slice (empty, not nil, for length 0)
func (r *binaryReader) readBytes(what string) []byte {
	n := int(r.readUint32(what + " length"))
	if !r.need(n, what) {
		return nil
	}
	v := make([]byte, n)
	copy(v, r.data[r.pos:r.pos+n])
	r.pos += n
	return v
}

func (r *binaryReader) readString(what string) string {
	n := int(r.readUint32(what + " length"))
	if !r.need(n, what) {
		return ""
	}
	v := string(r.data[r.pos : r.pos+n])
	r.pos += n
	return v
}
