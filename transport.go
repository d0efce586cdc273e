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
	"net"
	"sync"

	"github.com/op/go-logging"
)

const (
	magicShort      uint32 = 0x4c433032
	magicFragmented uint32 = 0x4c433033

	maxShortPayload     = 65499
	maxFragmentChunk    = 65487
	maxChannelNameBytes = 63
	maxFragments        = 65535
)

// Instance is a single client's handle onto the multicast transport: one
// send socket, one receive socket, a subscription list, and a fragment
// reassembly table. Per spec.md §5 these are a single-owner aggregate
// driven by one receive-loop goroutine. The subscription list, fragment
// table, sequence counter and closed flag are guarded by mu: the receive
// loop takes it while reassembling and dispatching, and
// Subscribe/Unsubscribe/Publish/Close take it from the caller's
// goroutine.
type Instance struct {
	provider *Provider
	sendConn *net.UDPConn
	recvConn *net.UDPConn
	log      *logging.Logger

	mu     sync.Mutex
	closed bool
	seq    uint32
	subs   []*Subscription
	frags  *fragmentTable

	stop chan struct{}
	done chan struct{}
}

// NewInstance dials the provider's multicast group, joins it for
// receiving, and starts the receive loop. log may be nil, in which case
// a default logger for the "lcm" module is used.
func NewInstance(rawURL string, log *logging.Logger) (*Instance, error) {
	if log == nil {
		log = logging.MustGetLogger("lcm")
	}

	provider, err := ParseProvider(log, rawURL)
	if err != nil {
		return nil, err
	}

	groupAddr := &net.UDPAddr{IP: provider.Address, Port: provider.Port}

	sendConn, err := net.DialUDP("udp4", nil, groupAddr)
	if err != nil {
		return nil, err
	}
	if provider.TTL >= 0 {
		_ = setMulticastTTL(sendConn, provider.TTL)
	}

	recvConn, err := net.ListenMulticastUDP("udp4", nil, groupAddr)
	if err != nil {
		sendConn.Close()
		return nil, err
	}

	inst := &Instance{
		provider: provider,
		sendConn: sendConn,
		recvConn: recvConn,
		log:      log,
		frags:    newFragmentTable(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go inst.receiveLoop()
	return inst, nil
}

// Publish sends payload on channel, choosing the short or fragmented
// wire form per spec.md §4.5.
func (inst *Instance) Publish(channel string, payload []byte) error {
	if len(channel) > maxChannelNameBytes {
		return &ChannelNameTooLongError{Channel: channel}
	}

	inst.mu.Lock()
	if inst.closed {
		inst.mu.Unlock()
		return &InstanceClosedError{}
	}
	inst.seq++
	seq := inst.seq
	inst.mu.Unlock()

	need := len(channel) + 1 + len(payload)
	if need <= maxShortPayload {
		return inst.publishShort(seq, channel, payload)
	}
	return inst.publishFragmented(seq, channel, payload)
}

func (inst *Instance) publishShort(seq uint32, channel string, payload []byte) error {
	buf := NewBuffer()
	_ = buf.WriteUint32(magicShort)
	_ = buf.WriteUint32(seq)
	buf.data = append(buf.data, channel...)
	buf.data = append(buf.data, 0)
	buf.data = append(buf.data, payload...)
	_, err := inst.sendConn.Write(buf.Bytes())
	return err
}

func (inst *Instance) publishFragmented(seq uint32, channel string, payload []byte) error {
	totalSize := uint32(len(payload))
	firstBudget := maxFragmentChunk - (len(channel) + 1)
	if firstBudget <= 0 {
		return &MessageTooLargeError{Size: len(payload), FragmentsReq: maxFragments + 1}
	}

	fragmentsReq := 1
	if len(payload) > firstBudget {
		fragmentsReq += ceilDiv(len(payload)-firstBudget, maxFragmentChunk)
	}
	if fragmentsReq > maxFragments {
		return &MessageTooLargeError{Size: len(payload), FragmentsReq: fragmentsReq}
	}

	offset := 0
	for idx := 0; idx < fragmentsReq; idx++ {
		budget := maxFragmentChunk
		if idx == 0 {
			budget = firstBudget
		}
		end := offset + budget
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[offset:end]

		buf := NewBuffer()
		_ = buf.WriteUint32(magicFragmented)
		_ = buf.WriteUint32(seq)
		_ = buf.WriteUint32(totalSize)
		_ = buf.WriteUint32(uint32(offset))
		buf.data = append(buf.data, uint16Bytes(uint16(idx))...)
		buf.data = append(buf.data, uint16Bytes(uint16(fragmentsReq))...)
		if idx == 0 {
			buf.data = append(buf.data, channel...)
			buf.data = append(buf.data, 0)
		}
		buf.data = append(buf.data, chunk...)

		if _, err := inst.sendConn.Write(buf.Bytes()); err != nil {
			return err
		}
		offset = end
	}
	return nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func uint16Bytes(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

// Subscribe registers handler for every channel matching pattern,
// compiled as a fully-anchored regular expression (spec.md §4.7).
func (inst *Instance) Subscribe(pattern string, handler Handler) (*Subscription, error) {
	sub, err := newSubscription(pattern, handler)
	if err != nil {
		return nil, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.closed {
		return nil, &InstanceClosedError{}
	}
	inst.subs = append(inst.subs, sub)
	return sub, nil
}

// Unsubscribe removes sub from the subscription list by identity.
func (inst *Instance) Unsubscribe(sub *Subscription) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	for i, s := range inst.subs {
		if s == sub {
			inst.subs = append(inst.subs[:i], inst.subs[i+1:]...)
			return
		}
	}
}

// Close cancels the receive loop, closes both sockets, and discards the
// subscription list and fragment table. Close is idempotent; subsequent
// Publish/Subscribe calls fail with InstanceClosedError.
func (inst *Instance) Close() error {
	inst.mu.Lock()
	if inst.closed {
		inst.mu.Unlock()
		return nil
	}
	inst.closed = true
	inst.subs = nil
	inst.frags.clear()
	inst.mu.Unlock()

	close(inst.stop)
	_ = inst.recvConn.Close()
	_ = inst.sendConn.Close()
	<-inst.done
	return nil
}

func (inst *Instance) receiveLoop() {
	defer close(inst.done)
	buf := make([]byte, 65536)
	for {
		select {
		case <-inst.stop:
			return
		default:
		}
		n, addr, err := inst.recvConn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-inst.stop:
				return
			default:
				inst.log.Debugf("lcm: read error: %v", err)
				continue
			}
		}
		inst.handleDatagram(addr.String(), buf[:n])
	}
}

// handleDatagram implements spec.md §4.6's per-datagram dispatch.
func (inst *Instance) handleDatagram(sender string, data []byte) {
	if len(data) < 8 {
		return
	}
	r := NewBufferFromBytes(data)
	magicRaw, _ := r.ReadUint32()

	switch magicRaw {
	case magicShort:
		inst.handleShort(r)
	case magicFragmented:
		inst.handleFragmented(sender, r)
	default:
		inst.log.Debugf("lcm: dropping datagram with unrecognized magic %#x", magicRaw)
	}
}

func (inst *Instance) handleShort(r *Buffer) {
	if _, err := r.ReadUint32(); err != nil { // sequence number, unused on receive
		return
	}
	channel, rest, ok := readCString(r.Bytes()[r.pos:])
	if !ok {
		return
	}
	inst.dispatch(channel, rest)
}

func (inst *Instance) handleFragmented(sender string, r *Buffer) {
	seq, err := r.ReadUint32()
	if err != nil {
		return
	}
	totalSize, err := r.ReadUint32()
	if err != nil {
		return
	}
	offset, err := r.ReadUint32()
	if err != nil {
		return
	}
	fragIdx, err := r.ReadInt16()
	if err != nil {
		return
	}
	totalFrags, err := r.ReadInt16()
	if err != nil {
		return
	}

	key := fragmentKey{sender: sender, seqNum: seq}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	slot, ok := inst.frags.get(key, totalSize)
	if !ok {
		slot = inst.frags.begin(key, totalSize, int(uint16(totalFrags)))
	}

	rest := r.Bytes()[r.pos:]
	if fragIdx == 0 {
		channel, chunk, ok := readCString(rest)
		if !ok {
			inst.frags.drop(key)
			return
		}
		slot.channel = channel
		rest = chunk
	}

	if !slot.apply(int(offset), rest) {
		inst.frags.drop(key)
		return
	}

	if slot.complete() {
		payload := slot.data
		channel := slot.channel
		inst.frags.drop(key)
		inst.dispatchLocked(channel, payload)
	}
}

// dispatch offers (channel, payload) to every matching subscription,
// acquiring the instance lock; dispatchLocked is used when the caller
// already holds it.
func (inst *Instance) dispatch(channel string, payload []byte) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.dispatchLocked(channel, payload)
}

func (inst *Instance) dispatchLocked(channel string, payload []byte) {
	for _, sub := range inst.subs {
		if sub.matches(channel) {
			inst.invoke(sub, channel, payload)
		}
	}
}

// invoke calls sub's handler, recovering a panic so one misbehaving
// handler does not interrupt delivery to the remaining subscribers
// (spec.md §4.6).
func (inst *Instance) invoke(sub *Subscription, channel string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			inst.log.Errorf("lcm: subscription handler for %q panicked: %v", sub.pattern, r)
		}
	}()
	sub.handler(channel, payload)
}

// readCString splits data at its first nul byte, returning the string
// before it and the remaining bytes after it.
func readCString(data []byte) (s string, rest []byte, ok bool) {
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), data[i+1:], true
		}
	}
	return "", nil, false
}
