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

package lcm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffer_TypedRoundTrip(t *testing.T) {
	buf := NewBuffer()
	assert.NoError(t, buf.WriteInt8(-12))
	assert.NoError(t, buf.WriteInt16(-1000))
	assert.NoError(t, buf.WriteInt32(123456))
	assert.NoError(t, buf.WriteInt64(-9001))
	assert.NoError(t, buf.WriteUint32(4000000000))
	assert.NoError(t, buf.WriteFloat32(3.5))
	assert.NoError(t, buf.WriteFloat64(2.718281828))
	assert.NoError(t, buf.WriteBool(true))
	assert.NoError(t, buf.WriteBool(false))
	assert.NoError(t, buf.WriteString("hello"))

	r := NewBufferFromBytes(buf.Bytes())
	i8, err := r.ReadInt8()
	assert.NoError(t, err)
	assert.Equal(t, int8(-12), i8)

	i16, err := r.ReadInt16()
	assert.NoError(t, err)
	assert.Equal(t, int16(-1000), i16)

	i32, err := r.ReadInt32()
	assert.NoError(t, err)
	assert.Equal(t, int32(123456), i32)

	i64, err := r.ReadInt64()
	assert.NoError(t, err)
	assert.Equal(t, int64(-9001), i64)

	u32, err := r.ReadUint32()
	assert.NoError(t, err)
	assert.Equal(t, uint32(4000000000), u32)

	f32, err := r.ReadFloat32()
	assert.NoError(t, err)
	assert.Equal(t, float32(3.5), f32)

	f64, err := r.ReadFloat64()
	assert.NoError(t, err)
	assert.Equal(t, 2.718281828, f64)

	bTrue, err := r.ReadBool()
	assert.NoError(t, err)
	assert.True(t, bTrue)

	bFalse, err := r.ReadBool()
	assert.NoError(t, err)
	assert.False(t, bFalse)

	s, err := r.ReadString()
	assert.NoError(t, err)
	assert.Equal(t, "hello", s)

	assert.Equal(t, 0, r.Len())
}

func TestBuffer_StringWireForm(t *testing.T) {
	// spec.md §4.4: 4-byte big-endian length L+1, L UTF-8 bytes, trailing nul.
	buf := NewBuffer()
	assert.NoError(t, buf.WriteString("ab"))
	raw := buf.Bytes()
	assert.Len(t, raw, 4+2+1)
	assert.Equal(t, []byte{0, 0, 0, 3}, raw[:4])
	assert.Equal(t, byte(0), raw[len(raw)-1])
}

func TestBuffer_ReadPastEndFails(t *testing.T) {
	r := NewBufferFromBytes([]byte{1, 2})
	_, err := r.ReadInt32()
	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
}

func TestBuffer_ReadStringZeroLengthFails(t *testing.T) {
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], 0)
	r := NewBufferFromBytes(raw[:])
	_, err := r.ReadString()
	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
	assert.ErrorIs(t, err, ErrNegativeStringLength)
}

func TestBuffer_EmptyStringRoundTrip(t *testing.T) {
	buf := NewBuffer()
	assert.NoError(t, buf.WriteString(""))
	r := NewBufferFromBytes(buf.Bytes())
	s, err := r.ReadString()
	assert.NoError(t, err)
	assert.Equal(t, "", s)
}
