/*
 * vmux - Physical memory: fixed frame-slot array with LRU usage tracking.
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package memory implements the emulator's capacity-limited physical frame
// pool and its persistent backing store.
package memory

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// usageNode is one entry of the hand-rolled MRU->LRU doubly linked list
// ordering occupied slots, in the style of this codebase's event list
// (emu/event.EventList in the teacher): a plain pointer list rather than a
// container/list, so eviction order is an explicit, inspectable structure.
type usageNode struct {
	slot int
	prev *usageNode
	next *usageNode
}

// Frame is a fixed-size contiguous byte region, addressed in hex.
type Frame struct {
	ID    uint64
	Bytes []byte // len == frameSize
}

// PhysicalMemory is a fixed-size array of slots, each either empty or
// holding exactly one Frame. availableBytes = emptySlots * frameSize.
type PhysicalMemory struct {
	frameSize int
	numSlots  int
	slots     []*Frame // nil == empty

	head *usageNode   // MRU
	tail *usageNode   // LRU
	node []*usageNode // slot index -> its node in the usage list, nil if empty

	store *BackingStore
}

// NewPhysicalMemory builds a PhysicalMemory of numSlots slots of frameSize
// bytes each, backed persistently by store.
func NewPhysicalMemory(numSlots, frameSize int, store *BackingStore) *PhysicalMemory {
	return &PhysicalMemory{
		frameSize: frameSize,
		numSlots:  numSlots,
		slots:     make([]*Frame, numSlots),
		node:      make([]*usageNode, numSlots),
		store:     store,
	}
}

// FrameSize returns the configured bytes per frame.
func (pm *PhysicalMemory) FrameSize() int { return pm.frameSize }

// NumSlots returns the total slot count.
func (pm *PhysicalMemory) NumSlots() int { return pm.numSlots }

// AvailableBytes returns (emptySlots) * frameSize.
func (pm *PhysicalMemory) AvailableBytes() int {
	empty := 0
	for _, f := range pm.slots {
		if f == nil {
			empty++
		}
	}
	return empty * pm.frameSize
}

// FindSlotOf returns the slot index holding frameID, if resident.
func (pm *PhysicalMemory) FindSlotOf(frameID uint64) (int, bool) {
	for i, f := range pm.slots {
		if f != nil && f.ID == frameID {
			return i, true
		}
	}
	return 0, false
}

// FindFreeSlot returns the index of an empty slot, if any.
func (pm *PhysicalMemory) FindFreeSlot() (int, bool) {
	for i, f := range pm.slots {
		if f == nil {
			return i, true
		}
	}
	return 0, false
}

// promote moves slot to the MRU end of the usage list, creating its node
// if this is the slot's first install.
func (pm *PhysicalMemory) promote(slotIdx int) {
	n := pm.node[slotIdx]
	if n == nil {
		n = &usageNode{slot: slotIdx}
		pm.node[slotIdx] = n
	} else {
		pm.unlink(n)
	}
	n.prev = nil
	n.next = pm.head
	if pm.head != nil {
		pm.head.prev = n
	}
	pm.head = n
	if pm.tail == nil {
		pm.tail = n
	}
}

func (pm *PhysicalMemory) unlink(n *usageNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else if pm.head == n {
		pm.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else if pm.tail == n {
		pm.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

// TakeVictim pops the LRU slot from the usage list without touching its
// frame. The caller is responsible for writing it back and clearing it.
func (pm *PhysicalMemory) TakeVictim() int {
	n := pm.tail
	if n == nil {
		panic("memory: TakeVictim called with no occupied slots")
	}
	pm.unlink(n)
	pm.node[n.slot] = nil
	return n.slot
}

// Install creates a new Frame in slotIndex by loading frameID from the
// backing store, and promotes that slot to MRU.
func (pm *PhysicalMemory) Install(frameID uint64, slotIndex int) error {
	hexBytes, err := pm.store.Load(frameID)
	if err != nil {
		return err
	}
	data, err := DecodeHex(hexBytes)
	if err != nil {
		return err
	}
	pm.slots[slotIndex] = &Frame{ID: frameID, Bytes: data}
	pm.promote(slotIndex)
	return nil
}

// StoreTo serializes slotIndex's frame and rewrites its backing store
// record (the whole frame, never a short write).
func (pm *PhysicalMemory) StoreTo(slotIndex int) error {
	f := pm.slots[slotIndex]
	if f == nil {
		return nil
	}
	return pm.store.Store(f.ID, EncodeHex(f.Bytes))
}

// Clear empties slotIndex without touching the backing store (used once
// the caller has already written back a dirty victim).
func (pm *PhysicalMemory) Clear(slotIndex int) {
	pm.slots[slotIndex] = nil
}

// Touch promotes slotIndex to MRU without reading or writing it, used when
// a fault resolves to an already-resident frame.
func (pm *PhysicalMemory) Touch(slotIndex int) {
	pm.promote(slotIndex)
}

// ReadByte reads one byte at a hex-encoded physical address: slotIndex =
// base/frameSize, offset = base%frameSize. Every successful access
// promotes the slot to MRU.
func (pm *PhysicalMemory) ReadByte(address string) (byte, bool) {
	base, err := strconv.ParseInt(address, 16, 64)
	if err != nil {
		return 0, false
	}
	slotIndex := int(base) / pm.frameSize
	offset := int(base) % pm.frameSize
	if slotIndex < 0 || slotIndex >= pm.numSlots || pm.slots[slotIndex] == nil {
		return 0, false
	}
	pm.promote(slotIndex)
	return pm.slots[slotIndex].Bytes[offset], true
}

// WriteByte writes one byte at a hex-encoded physical address. Sets no
// dirty bit here -- the MMU tracks dirtiness at the Page level. Promotes
// the slot to MRU on success.
func (pm *PhysicalMemory) WriteByte(address string, value byte) bool {
	base, err := strconv.ParseInt(address, 16, 64)
	if err != nil {
		return false
	}
	slotIndex := int(base) / pm.frameSize
	offset := int(base) % pm.frameSize
	if slotIndex < 0 || slotIndex >= pm.numSlots || pm.slots[slotIndex] == nil {
		return false
	}
	pm.slots[slotIndex].Bytes[offset] = value
	pm.promote(slotIndex)
	return true
}

// Purge writes back (if resident) and empties every slot holding one of
// frameIDs. Returns the number of slots actually evicted. The caller
// supplies which frames were dirty via dirty (frameID -> dirty); a frame
// absent from dirty is treated as clean and dropped without a write-back.
func (pm *PhysicalMemory) Purge(frameIDs []uint64, dirty map[uint64]bool) (int, error) {
	evicted := 0
	for _, id := range frameIDs {
		slotIndex, ok := pm.FindSlotOf(id)
		if !ok {
			continue
		}
		if dirty[id] {
			if err := pm.StoreTo(slotIndex); err != nil {
				return evicted, err
			}
		}
		if n := pm.node[slotIndex]; n != nil {
			pm.unlink(n)
			pm.node[slotIndex] = nil
		}
		pm.Clear(slotIndex)
		evicted++
	}
	return evicted, nil
}

// FrameIDAt returns the frameID resident in slotIndex, if any.
func (pm *PhysicalMemory) FrameIDAt(slotIndex int) (uint64, bool) {
	f := pm.slots[slotIndex]
	if f == nil {
		return 0, false
	}
	return f.ID, true
}

// DecodeHex and EncodeHex are the shared hex codec for both the backing
// store's on-disk records and the MMU's Read return values; uppercase
// output matches this codebase's hex formatting elsewhere (e.g. addrOf).
func DecodeHex(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

func EncodeHex(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

