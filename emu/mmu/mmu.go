/*
 * vmux - Memory management unit: page tables, fault handling, translation.
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

// Package mmu implements per-process page tables over a shared,
// capacity-limited PhysicalMemory, with LRU fault handling and dirty-bit
// write-back.
//
// The original design holds a recursive mutex so fault handling can nest
// inside read/write under the same lock. Go mutexes aren't reentrant, so
// this is restructured as one sync.Mutex taken once at each public entry
// point, with unexported helpers (suffixed "Locked") that assume the lock
// is already held -- same serialization guarantee, no recursive lock.
package mmu

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/vmux-emu/vmux/config/debugconfig"
	"github.com/vmux-emu/vmux/emu/memory"
	"github.com/vmux-emu/vmux/internal/vmerrors"
)

// DebugLevel is this package's registered debugconfig level, adjustable at
// runtime from a "debug MMU,<level>" config.txt line.
var DebugLevel = new(slog.LevelVar)

func init() {
	debugconfig.Register("MMU", DebugLevel)
}

// Page is one entry of a process's page table.
type Page struct {
	FrameID uint64
	Valid   bool
	Dirty   bool
}

// PageTable is one process's ordered sequence of pages plus its virtual
// address ceiling. Page i covers virtual bytes [i*frameSize, (i+1)*frameSize).
type PageTable struct {
	Pages []Page
	Limit int // process's memoryRequired, in bytes
}

// MMU owns every process's page table, the shared PhysicalMemory, and the
// pagesIn/pagesOut/availableBytes accounting counters.
type MMU struct {
	mu sync.Mutex

	frameSize int
	tables    map[uint64]*PageTable // processID -> table
	nextFrame uint64                // monotonic global frameID counter

	phys  *memory.PhysicalMemory
	store *memory.BackingStore

	pagesIn  uint64
	pagesOut uint64

	log *slog.Logger
}

// New builds an MMU over phys/store with the given frame size.
func New(phys *memory.PhysicalMemory, store *memory.BackingStore, frameSize int, log *slog.Logger) *MMU {
	if log == nil {
		log = slog.Default()
	}
	return &MMU{
		frameSize: frameSize,
		tables:    map[uint64]*PageTable{},
		phys:      phys,
		store:     store,
		log:       log.With("component", "mmu"),
	}
}

// PagesIn returns the total pages faulted in since startup.
func (m *MMU) PagesIn() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pagesIn
}

// PagesOut returns the total pages written out (evicted or released)
// since startup.
func (m *MMU) PagesOut() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pagesOut
}

// AvailableBytes returns the physical memory currently unoccupied.
func (m *MMU) AvailableBytes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phys.AvailableBytes()
}

// CreateTable allocates ceil(memoryRequired/frameSize) pages (minimum 1)
// for processID, each assigned a fresh global frameID and a zero-byte
// backing store record. Does not reserve physical slots.
func (m *MMU) CreateTable(processID uint64, memoryRequired int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	numPages := (memoryRequired + m.frameSize - 1) / m.frameSize
	if numPages < 1 {
		numPages = 1
	}
	pages := make([]Page, numPages)
	for i := range pages {
		frameID := m.nextFrame
		m.nextFrame++
		if err := m.store.CreateZero(frameID); err != nil {
			return err
		}
		pages[i] = Page{FrameID: frameID}
	}
	m.tables[processID] = &PageTable{Pages: pages, Limit: memoryRequired}
	return nil
}

// LoadProcess faults every page of processID's table into physical
// memory. Returns true iff every page ends up valid.
func (m *MMU) LoadProcess(processID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, ok := m.tables[processID]
	if !ok {
		return false, fmt.Errorf("mmu: unknown process %d", processID)
	}
	for i := range table.Pages {
		if table.Pages[i].Valid {
			continue
		}
		if err := m.handleFaultLocked(processID, i); err != nil {
			return false, err
		}
	}
	ok = true
	for i := range table.Pages {
		if !table.Pages[i].Valid {
			ok = false
			break
		}
	}
	return ok, nil
}

// handleFaultLocked services a miss on processID's page pageIndex. Caller
// must hold m.mu.
func (m *MMU) handleFaultLocked(processID uint64, pageIndex int) error {
	table := m.tables[processID]
	page := &table.Pages[pageIndex]

	if slotIndex, resident := m.phys.FindSlotOf(page.FrameID); resident {
		page.Valid = true
		m.phys.Touch(slotIndex)
		return nil
	}

	if slotIndex, free := m.phys.FindFreeSlot(); free {
		if err := m.phys.Install(page.FrameID, slotIndex); err != nil {
			return err
		}
		page.Valid = true
		m.pagesIn++
		return nil
	}

	victimSlot := m.phys.TakeVictim()
	victimFrameID, _ := m.phys.FrameIDAt(victimSlot)
	victimPage := m.findPageByFrame(victimFrameID)
	if victimPage != nil {
		if victimPage.Dirty {
			if err := m.phys.StoreTo(victimSlot); err != nil {
				return err
			}
		}
		victimPage.Valid = false
	}
	m.phys.Clear(victimSlot)

	if err := m.phys.Install(page.FrameID, victimSlot); err != nil {
		return err
	}
	page.Valid = true
	m.pagesIn++
	m.pagesOut++
	return nil
}

// findPageByFrame scans every table for the Page currently pointing at
// frameID. A frame belongs to exactly one page system-wide (no sharing).
func (m *MMU) findPageByFrame(frameID uint64) *Page {
	for _, table := range m.tables {
		for i := range table.Pages {
			if table.Pages[i].FrameID == frameID {
				return &table.Pages[i]
			}
		}
	}
	return nil
}

// Read loads nBytes consecutive bytes starting at virtualAddress from
// processID's address space, returning them as a concatenated hex string.
func (m *MMU) Read(processID uint64, virtualAddress, nBytes int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, ok := m.tables[processID]
	if !ok {
		return "", fmt.Errorf("mmu: unknown process %d", processID)
	}
	if virtualAddress+nBytes > table.Limit {
		return "", fmt.Errorf("%w: read %d+%d beyond limit %d", vmerrors.ErrOutOfBounds, virtualAddress, nBytes, table.Limit)
	}

	out := make([]byte, 0, nBytes)
	for i := 0; i < nBytes; i++ {
		addr := virtualAddress + i
		b, err := m.readByteLocked(processID, table, addr)
		if err != nil {
			return "", err
		}
		out = append(out, b)
	}
	return memory.EncodeHex(out), nil
}

func (m *MMU) readByteLocked(processID uint64, table *PageTable, addr int) (byte, error) {
	pageIndex := addr / m.frameSize
	offset := addr % m.frameSize
	page := &table.Pages[pageIndex]

	for {
		slotIndex, resident := m.phys.FindSlotOf(page.FrameID)
		if resident && page.Valid {
			b, ok := m.phys.ReadByte(addrOf(slotIndex*m.frameSize + offset))
			if ok {
				return b, nil
			}
		}
		if err := m.handleFaultLocked(processID, pageIndex); err != nil {
			return 0, err
		}
	}
}

// Write stores data (<= frameSize bytes, must not cross a frame
// boundary) at virtualAddress in processID's address space, setting the
// touched page's dirty bit.
func (m *MMU) Write(processID uint64, virtualAddress int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, ok := m.tables[processID]
	if !ok {
		return fmt.Errorf("mmu: unknown process %d", processID)
	}
	if virtualAddress+len(data) > table.Limit {
		return fmt.Errorf("%w: write %d+%d beyond limit %d", vmerrors.ErrOutOfBounds, virtualAddress, len(data), table.Limit)
	}
	if len(data) > m.frameSize {
		return fmt.Errorf("%w: write of %d bytes exceeds frame size %d", vmerrors.ErrOutOfBounds, len(data), m.frameSize)
	}
	startPage := virtualAddress / m.frameSize
	endPage := (virtualAddress + len(data) - 1) / m.frameSize
	if len(data) > 0 && startPage != endPage {
		return fmt.Errorf("%w: write crosses frame boundary", vmerrors.ErrOutOfBounds)
	}

	for i, b := range data {
		addr := virtualAddress + i
		pageIndex := addr / m.frameSize
		offset := addr % m.frameSize
		page := &table.Pages[pageIndex]

		for {
			slotIndex, resident := m.phys.FindSlotOf(page.FrameID)
			if resident && page.Valid {
				if m.phys.WriteByte(addrOf(slotIndex*m.frameSize+offset), b) {
					page.Dirty = true
					break
				}
			}
			if err := m.handleFaultLocked(processID, pageIndex); err != nil {
				return err
			}
		}
	}
	return nil
}

// Release invalidates every page of processID, purges its frames from
// physical memory (writing back dirty ones), and updates accounting. The
// table itself is retained for later accounting queries.
func (m *MMU) Release(processID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, ok := m.tables[processID]
	if !ok {
		return nil
	}
	frameIDs := make([]uint64, len(table.Pages))
	dirty := map[uint64]bool{}
	for i, p := range table.Pages {
		frameIDs[i] = p.FrameID
		if p.Dirty {
			dirty[p.FrameID] = true
		}
	}
	evicted, err := m.phys.Purge(frameIDs, dirty)
	if err != nil {
		return err
	}
	for i := range table.Pages {
		table.Pages[i].Valid = false
	}
	m.pagesOut += uint64(evicted)
	return nil
}

func addrOf(byteOffset int) string {
	return fmt.Sprintf("%X", byteOffset)
}

