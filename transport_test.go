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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestInstance opens a loopback instance (ttl=0, localhost-restricted
// per spec.md §6) on a dedicated multicast port so parallel test runs
// don't collide with one another.
func newTestInstance(t *testing.T, port int) *Instance {
	t.Helper()
	url := "udpm://239.255.76.67:" + portString(port)
	inst, err := NewInstance(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Close() })
	return inst
}

func portString(port int) string {
	const digits = "0123456789"
	if port == 0 {
		return "0"
	}
	var b []byte
	for port > 0 {
		b = append([]byte{digits[port%10]}, b...)
		port /= 10
	}
	return string(b)
}

func TestInstance_PublishSubscribeLocalDelivery(t *testing.T) {
	inst := newTestInstance(t, 27670)

	var mu sync.Mutex
	var got []byte
	done := make(chan struct{})
	_, err := inst.Subscribe("TEST", func(channel string, payload []byte) {
		mu.Lock()
		got = payload
		mu.Unlock()
		close(done)
	})
	require.NoError(t, err)

	require.NoError(t, inst.Publish("TEST", []byte{1, 2, 3, 4, 5}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, got)
}

func TestInstance_PatternMatchingSelectsChannels(t *testing.T) {
	inst := newTestInstance(t, 27671)

	received := make(chan string, 8)
	_, err := inst.Subscribe("SENSOR_.*", func(channel string, payload []byte) {
		received <- channel
	})
	require.NoError(t, err)

	require.NoError(t, inst.Publish("SENSOR_1", []byte("a")))
	require.NoError(t, inst.Publish("SENSOR_2", []byte("b")))
	require.NoError(t, inst.Publish("OTHER", []byte("c")))

	seen := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case ch := <-received:
			seen[ch] = true
		case <-timeout:
			t.Fatalf("timed out waiting for deliveries, saw %v so far", seen)
		}
	}
	assert.True(t, seen["SENSOR_1"])
	assert.True(t, seen["SENSOR_2"])
	assert.False(t, seen["OTHER"])
}

func TestInstance_FragmentedPublishReassembles(t *testing.T) {
	inst := newTestInstance(t, 27672)

	payload := []byte(strings.Repeat("x", 200000))
	done := make(chan []byte, 1)
	_, err := inst.Subscribe("BIG", func(channel string, got []byte) {
		done <- got
	})
	require.NoError(t, err)

	require.NoError(t, inst.Publish("BIG", payload))

	select {
	case got := <-done:
		assert.Equal(t, payload, got)
	case <-time.After(5 * time.Second):
		t.Fatal("fragmented message was never reassembled")
	}
}

func TestInstance_ChannelNameTooLongRejected(t *testing.T) {
	inst := newTestInstance(t, 27673)
	longName := strings.Repeat("a", 64)
	err := inst.Publish(longName, []byte("x"))
	var tooLong *ChannelNameTooLongError
	assert.ErrorAs(t, err, &tooLong)
}

func TestInstance_ChannelNameBoundary(t *testing.T) {
	inst := newTestInstance(t, 27674)
	okName := strings.Repeat("a", 63)
	assert.NoError(t, inst.Publish(okName, []byte("x")))
}

func TestInstance_PublishAfterCloseFails(t *testing.T) {
	inst := newTestInstance(t, 27675)
	require.NoError(t, inst.Close())
	err := inst.Publish("TEST", []byte("x"))
	var closed *InstanceClosedError
	assert.ErrorAs(t, err, &closed)
}

func TestInstance_CloseIsIdempotent(t *testing.T) {
	inst := newTestInstance(t, 27676)
	assert.NoError(t, inst.Close())
	assert.NoError(t, inst.Close())
}
