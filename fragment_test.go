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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFragmentTable_ReassemblesInOffsetOrder(t *testing.T) {
	table := newFragmentTable()
	key := fragmentKey{sender: "10.0.0.1:9000", seqNum: 7}

	slot := table.begin(key, 6, 2)
	slot.channel = "BIG"
	assert.True(t, slot.apply(3, []byte("def")))
	assert.False(t, slot.complete())
	assert.True(t, slot.apply(0, []byte("abc")))
	assert.True(t, slot.complete())
	assert.Equal(t, []byte("abcdef"), slot.data)
}

func TestFragmentTable_MismatchedSizeDropsSlot(t *testing.T) {
	table := newFragmentTable()
	key := fragmentKey{sender: "10.0.0.1:9000", seqNum: 1}
	table.begin(key, 10, 2)

	_, ok := table.get(key, 20)
	assert.False(t, ok)
	_, ok = table.get(key, 20)
	assert.False(t, ok, "the mismatched slot must have been discarded, not just reported missing once")
}

func TestFragmentSlot_OverrunOffsetRejected(t *testing.T) {
	slot := &fragmentSlot{totalSize: 4, data: make([]byte, 4), pending: 1}
	assert.False(t, slot.apply(2, []byte("abc")))
}

func TestFragmentTable_Clear(t *testing.T) {
	table := newFragmentTable()
	key := fragmentKey{sender: "10.0.0.1:9000", seqNum: 1}
	table.begin(key, 4, 1)
	table.clear()
	_, ok := table.get(key, 4)
	assert.False(t, ok)
}
