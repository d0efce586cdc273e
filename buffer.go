// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package lcm is the wire-codec and transport runtime that generated
// message types depend on: a growing big-endian byte buffer, the
// Message capability every generated struct implements, and the UDP
// multicast publish/subscribe transport itself.
package lcm

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// Buffer is a sequential big-endian reader/writer over an in-memory byte
// slice, used by generated Encode/Decode methods and by the transport to
// frame and parse packet headers. It grows on write and advances a read
// cursor on read, the same
// sequential-access shape as a stream reader over a non-contiguous
// source, adapted here to a single contiguous slice that owns its own
// storage instead of paging in blocks from a file.
type Buffer struct {
	data []byte
	pos  int
}

// NewBuffer returns an empty, write-ready Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewBufferFromBytes wraps an existing byte slice for reading. The slice
// is used directly, not copied; callers must not mutate it concurrently
// with Buffer reads.
func NewBufferFromBytes(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the buffer's full written contents.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the number of bytes remaining to be read.
func (b *Buffer) Len() int {
	return len(b.data) - b.pos
}

func (b *Buffer) ensure(n int) ([]byte, error) {
	if b.Len() < n {
		return nil, &DecodeError{Reason: "read past buffer end", Err: io.ErrUnexpectedEOF}
	}
	start := b.pos
	b.pos += n
	return b.data[start:b.pos], nil
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(v byte) error {
	b.data = append(b.data, v)
	return nil
}

// ReadByte consumes and returns a single byte.
func (b *Buffer) ReadByte() (byte, error) {
	buf, err := b.ensure(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteBool writes a boolean as a single 0/1 byte, per spec.md §4.4.
func (b *Buffer) WriteBool(v bool) error {
	if v {
		return b.WriteByte(1)
	}
	return b.WriteByte(0)
}

// ReadBool reads a single 0/1 byte back into a bool.
func (b *Buffer) ReadBool() (bool, error) {
	v, err := b.ReadByte()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// WriteInt8 appends one byte holding a signed 8-bit value.
func (b *Buffer) WriteInt8(v int8) error {
	return b.WriteByte(byte(v))
}

// ReadInt8 consumes one byte as a signed 8-bit value.
func (b *Buffer) ReadInt8() (int8, error) {
	v, err := b.ReadByte()
	return int8(v), err
}

// WriteInt16 appends a big-endian signed 16-bit value.
func (b *Buffer) WriteInt16(v int16) error {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(v))
	b.data = append(b.data, tmp[:]...)
	return nil
}

// ReadInt16 consumes a big-endian signed 16-bit value.
func (b *Buffer) ReadInt16() (int16, error) {
	buf, err := b.ensure(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(buf)), nil
}

// WriteInt32 appends a big-endian signed 32-bit value.
func (b *Buffer) WriteInt32(v int32) error {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(v))
	b.data = append(b.data, tmp[:]...)
	return nil
}

// ReadInt32 consumes a big-endian signed 32-bit value.
func (b *Buffer) ReadInt32() (int32, error) {
	buf, err := b.ensure(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf)), nil
}

// WriteUint32 appends a big-endian unsigned 32-bit value, used for
// string lengths and the short/fragmented packet magic words.
func (b *Buffer) WriteUint32(v uint32) error {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.data = append(b.data, tmp[:]...)
	return nil
}

// ReadUint32 consumes a big-endian unsigned 32-bit value.
func (b *Buffer) ReadUint32() (uint32, error) {
	buf, err := b.ensure(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

// WriteInt64 appends a big-endian signed 64-bit value; used for the
// fingerprint that opens every encoded message.
func (b *Buffer) WriteInt64(v int64) error {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	b.data = append(b.data, tmp[:]...)
	return nil
}

// ReadInt64 consumes a big-endian signed 64-bit value.
func (b *Buffer) ReadInt64() (int64, error) {
	buf, err := b.ensure(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf)), nil
}

// WriteFloat32 appends a big-endian IEEE-754 single-precision value.
func (b *Buffer) WriteFloat32(v float32) error {
	return b.WriteInt32(int32(math.Float32bits(v)))
}

// ReadFloat32 consumes a big-endian IEEE-754 single-precision value.
func (b *Buffer) ReadFloat32() (float32, error) {
	v, err := b.ReadInt32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

// WriteFloat64 appends a big-endian IEEE-754 double-precision value.
func (b *Buffer) WriteFloat64(v float64) error {
	return b.WriteInt64(int64(math.Float64bits(v)))
}

// ReadFloat64 consumes a big-endian IEEE-754 double-precision value.
func (b *Buffer) ReadFloat64() (float64, error) {
	v, err := b.ReadInt64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(v)), nil
}

// WriteString writes s as a 4-byte big-endian length L+1, the UTF-8
// bytes of s, then a trailing nul byte, per spec.md §4.4.
func (b *Buffer) WriteString(s string) error {
	if err := b.WriteUint32(uint32(len(s) + 1)); err != nil {
		return err
	}
	b.data = append(b.data, s...)
	return b.WriteByte(0)
}

// ErrNegativeStringLength reports a decoded string length field of zero,
// which cannot represent the trailing nul byte every encoded string
// carries.
var ErrNegativeStringLength = errors.New("lcm: decoded string length field is zero")

// ReadString reads back a string written by WriteString: the length
// bytes minus one are payload, the final nul byte is discarded.
func (b *Buffer) ReadString() (string, error) {
	l, err := b.ReadUint32()
	if err != nil {
		return "", err
	}
	if l == 0 {
		return "", &DecodeError{Reason: "string length field is zero", Err: ErrNegativeStringLength}
	}
	buf, err := b.ensure(int(l))
	if err != nil {
		return "", err
	}
	return string(buf[:l-1]), nil
}
