/*
 * vmux - Persistent backing store for frames.
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

package memory

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/vmux-emu/vmux/internal/vmerrors"
)

// BackingStore is the on-disk text file serving as the authoritative home
// of every frame's bytes: one "<id> <hex-bytes>\n" record per global
// frameID, ascending by id. A frame's record is always frameSize*2 hex
// characters, zero-padded on write, padded again on read if short.
//
// Callers inside the emulator reach the store with the MMU's lock already
// held (fault handling, release), which serializes file rewrites;
// BackingStore's own mutex only guards its in-memory record map.
type BackingStore struct {
	mu        sync.Mutex
	path      string
	frameSize int
	records   map[uint64]string // frameID -> hex bytes (frameSize*2 chars)
}

// NewBackingStore opens (or creates) the backing-store file at path and
// loads any existing records into memory.
func NewBackingStore(path string, frameSize int) (*BackingStore, error) {
	bs := &BackingStore{path: path, frameSize: frameSize, records: map[uint64]string{}}
	if err := bs.load(); err != nil {
		return nil, err
	}
	return bs, nil
}

func (bs *BackingStore) load() error {
	f, err := os.Open(bs.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return fmt.Errorf("%w: malformed backing store line %q", vmerrors.ErrCorruption, line)
		}
		id, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: bad frame id %q", vmerrors.ErrCorruption, fields[0])
		}
		bs.records[id] = bs.pad(fields[1])
	}
	return scanner.Err()
}

func (bs *BackingStore) pad(hexBytes string) string {
	want := bs.frameSize * 2
	if len(hexBytes) >= want {
		return hexBytes[:want]
	}
	return hexBytes + strings.Repeat("0", want-len(hexBytes))
}

// CreateZero writes a fresh zero-byte record for id, as happens when the
// MMU allocates a new page table.
func (bs *BackingStore) CreateZero(id uint64) error {
	bs.mu.Lock()
	bs.records[id] = strings.Repeat("0", bs.frameSize*2)
	bs.mu.Unlock()
	return bs.flush()
}

// Load returns the hex-bytes record for id, zero-padded to frameSize*2
// characters if the stored record was short.
func (bs *BackingStore) Load(id uint64) (string, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	rec, ok := bs.records[id]
	if !ok {
		return "", fmt.Errorf("%w: frame %d has no backing store record", vmerrors.ErrCorruption, id)
	}
	return rec, nil
}

// Store rewrites the full record for id with hexBytes (always frameSize*2
// characters -- storeTo always writes the whole frame, never a short
// write, so every line in the file stays a fixed width).
func (bs *BackingStore) Store(id uint64, hexBytes string) error {
	bs.mu.Lock()
	bs.records[id] = bs.pad(hexBytes)
	bs.mu.Unlock()
	return bs.flush()
}

// flush rewrites the whole file through a temp file + atomic rename,
// preserving ascending-id ordering.
func (bs *BackingStore) flush() error {
	bs.mu.Lock()
	ids := make([]uint64, 0, len(bs.records))
	for id := range bs.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var sb strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&sb, "%d %s\n", id, bs.records[id])
	}
	bs.mu.Unlock()

	dir := filepath.Dir(bs.path)
	tmp, err := os.CreateTemp(dir, ".backing-store-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, bs.path)
}
