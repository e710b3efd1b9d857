// Package codec provides the entry layout rules for the SYSCONF settings buffer.
//
// The SYSCONF buffer holds a sequence of named, typed entries. Each entry
// starts with a single tag byte, followed by the entry name and a value
// region whose shape depends on the type class encoded in the tag.
//
// # Entry Format
//
//	[Tag(1)][Name(n)][Value...]
//
// The tag byte packs two fields:
//
//	bit  7 6 5 | 4 3 2 1 0
//	     class | n - 1
//
// Names are 1 to 32 bytes of ASCII and are not null-terminated.
//
// # Value Region
//
// The value region follows the name directly:
//   - Byte, Bool: 1 byte
//   - Short: 2 bytes (big-endian)
//   - Long: 4 bytes (big-endian)
//   - SmallArray: [Count(1)][Data(count+1)]
//   - BigArray: [Count(2, big-endian)][Data(count+1)]
//
// Array counts are stored as length minus one, so a small array count byte
// of 0x02 describes a 3-byte array. This is a property of the on-disk format
// and must be preserved exactly.
//
// # Bounds
//
// Every read and write goes through ReadBE16, ReadBytes or WriteBytes, which
// check offset+length against the buffer length before touching a byte and
// return ErrCorrupt otherwise. Decoding an entry never panics on a truncated
// or hostile buffer.
//
// # Usage
//
//	layout, err := codec.Decode(buf, off)
//	if err != nil {
//	    return err
//	}
//	value := buf[layout.ValueStart:layout.End()]
//
// AppendEntry encodes a record and is used to lay out fresh buffers. It is
// not a way to grow an existing buffer.
//
// # Thread Safety
//
// All functions are pure and safe for concurrent use on distinct buffers.
package codec
