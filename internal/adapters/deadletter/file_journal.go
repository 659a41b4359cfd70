// Package deadletter journals batches that exhausted their dispatch attempts
// so operators can inspect them later.
package deadletter

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

const (
	journalFile     = "deadletters.log"
	recordHeaderLen = 12
)

// FileJournal is an append-only file of dead letters.
// Entry format: [8 bytes id][4 bytes len][len bytes json].
type FileJournal struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	writer    *bufio.Writer
	syncEvery bool
	entries   uint64
	lastID    ports.DeadLetterID
	sizeBytes int64
}

// Open opens or creates the journal in dir. A torn trailing entry left by a
// crash is truncated away. With syncEvery set each Append is fsynced.
func Open(dir string, syncEvery bool) (*FileJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, journalFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	j := &FileJournal{
		path:      path,
		file:      f,
		writer:    bufio.NewWriterSize(f, 64<<10),
		syncEvery: syncEvery,
	}
	if err := j.scanExisting(); err != nil {
		f.Close()
		return nil, err
	}
	return j, nil
}

func (j *FileJournal) scanExisting() error {
	rf, err := os.Open(j.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	reader := bufio.NewReader(rf)
	var offset int64

	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(reader, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("deadletter scan header: %w", err)
		}
		id := ports.DeadLetterID(binary.BigEndian.Uint64(hdr[0:8]))
		length := int64(binary.BigEndian.Uint32(hdr[8:12]))

		if _, err := io.CopyN(io.Discard, reader, length); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("deadletter scan body: %w", err)
		}
		offset += recordHeaderLen + length
		j.lastID = id
		j.entries++
	}

	if err := j.file.Truncate(offset); err != nil {
		return err
	}
	j.sizeBytes = offset
	return nil
}

func (j *FileJournal) Append(dl *ports.DeadLetter) (ports.DeadLetterID, error) {
	if dl == nil {
		return 0, errors.New("deadletter: nil entry")
	}
	b, err := json.Marshal(dl)
	if err != nil {
		return 0, fmt.Errorf("deadletter encode: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	id := j.lastID + 1
	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(b)))

	if _, err := j.writer.Write(hdr[:]); err != nil {
		return 0, err
	}
	if _, err := j.writer.Write(b); err != nil {
		return 0, err
	}
	if err := j.writer.Flush(); err != nil {
		return 0, err
	}
	if j.syncEvery {
		if err := j.file.Sync(); err != nil {
			return 0, err
		}
	}

	j.lastID = id
	j.entries++
	j.sizeBytes += int64(len(b) + len(hdr))
	return id, nil
}

// Iterate calls fn for every entry with id >= from, oldest first.
func (j *FileJournal) Iterate(from ports.DeadLetterID, fn func(id ports.DeadLetterID, dl *ports.DeadLetter) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writer.Flush(); err != nil {
		return err
	}
	return iterateFile(j.path, from, fn)
}

func (j *FileJournal) Stats() ports.DeadLetterStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ports.DeadLetterStats{
		Entries:   j.entries,
		LatestID:  j.lastID,
		SizeBytes: j.sizeBytes,
	}
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.writer.Flush(); err != nil {
		j.file.Close()
		return err
	}
	return j.file.Close()
}

// ReadDir iterates a journal directory without opening it for writing. The
// CLI uses it to inspect a journal owned by a running process.
func ReadDir(dir string, from ports.DeadLetterID, fn func(id ports.DeadLetterID, dl *ports.DeadLetter) error) error {
	return iterateFile(filepath.Join(dir, journalFile), from, fn)
}

func iterateFile(path string, from ports.DeadLetterID, fn func(id ports.DeadLetterID, dl *ports.DeadLetter) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("deadletter truncated header: %w", err)
		}
		id := ports.DeadLetterID(binary.BigEndian.Uint64(hdr[0:8]))
		l := binary.BigEndian.Uint32(hdr[8:12])

		b := make([]byte, l)
		if _, err := io.ReadFull(r, b); err != nil {
			return fmt.Errorf("corrupt deadletter journal: %w", err)
		}
		if id < from {
			continue
		}

		var dl ports.DeadLetter
		if err := json.Unmarshal(b, &dl); err != nil {
			return fmt.Errorf("corrupt deadletter entry %d: %w", id, err)
		}
		if err := fn(id, &dl); err != nil {
			return err
		}
	}
}

var _ ports.DeadLetterStore = (*FileJournal)(nil)
