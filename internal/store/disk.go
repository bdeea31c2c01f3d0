package store

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"terrainmesh/internal/mesh"
)

const (
	diskOpDelete byte = 0
	diskOpSet    byte = 1

	// op(1) + id(16) + payload size(4)
	diskHeaderSize = 21
)

type diskRecordMeta struct {
	offset  int64
	size    uint32
	summary mesh.Summary
}

// diskStore appends every save and delete to a single log file. The latest
// record for an id wins; the in-memory index is rebuilt when the file opens.
type diskStore struct {
	file    *os.File
	mu      sync.RWMutex
	records map[uuid.UUID]diskRecordMeta
}

// OpenDisk opens or creates the mesh log at path.
func OpenDisk(path string) (Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open mesh log: %w", err)
	}
	s := &diskStore{
		file:    f,
		records: make(map[uuid.UUID]diskRecordMeta),
	}
	if err := s.loadIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *diskStore) loadIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind mesh log: %w", err)
	}

	header := make([]byte, diskHeaderSize)
	var offset int64
	for {
		if _, err := io.ReadFull(s.file, header); err != nil {
			if err == io.EOF {
				break
			}
			if err == io.ErrUnexpectedEOF {
				return fmt.Errorf("truncated mesh record header at %d: %w", offset, err)
			}
			return fmt.Errorf("read mesh record header: %w", err)
		}
		op, id, size := decodeHeader(header)
		recordOffset := offset
		offset += diskHeaderSize + int64(size)

		if op != diskOpSet {
			if _, err := s.file.Seek(int64(size), io.SeekCurrent); err != nil {
				return fmt.Errorf("seek past payload: %w", err)
			}
			delete(s.records, id)
			continue
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(s.file, payload); err != nil {
			return fmt.Errorf("read mesh record %s at %d: %w", id, recordOffset, err)
		}
		var m mesh.Mesh
		if err := m.UnmarshalBinary(payload); err != nil {
			return fmt.Errorf("decode mesh record %s at %d: %w", id, recordOffset, err)
		}
		s.records[id] = diskRecordMeta{offset: recordOffset, size: size, summary: m.Summary()}
	}
	return nil
}

func (s *diskStore) Save(m *mesh.Mesh) error {
	payload, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode mesh: %w", err)
	}
	header := encodeHeader(diskOpSet, m.ID, uint32(len(payload)))

	s.mu.Lock()
	defer s.mu.Unlock()

	offset, err := s.append(header, payload)
	if err != nil {
		return err
	}
	s.records[m.ID] = diskRecordMeta{offset: offset, size: uint32(len(payload)), summary: m.Summary()}
	return nil
}

func (s *diskStore) Load(id uuid.UUID) (*mesh.Mesh, error) {
	s.mu.RLock()
	meta, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	payload := make([]byte, meta.size)
	if _, err := s.file.ReadAt(payload, meta.offset+diskHeaderSize); err != nil {
		return nil, fmt.Errorf("read mesh payload: %w", err)
	}
	var m mesh.Mesh
	if err := m.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("decode mesh %s: %w", id, err)
	}
	return &m, nil
}

func (s *diskStore) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	if _, err := s.append(encodeHeader(diskOpDelete, id, 0), nil); err != nil {
		return err
	}
	delete(s.records, id)
	return nil
}

func (s *diskStore) List() ([]mesh.Summary, error) {
	s.mu.RLock()
	summaries := make([]mesh.Summary, 0, len(s.records))
	for _, meta := range s.records {
		summaries = append(summaries, meta.summary)
	}
	s.mu.RUnlock()
	sortSummaries(summaries)
	return summaries, nil
}

func (s *diskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// append writes one record at the end of the log; callers hold s.mu.
func (s *diskStore) append(header, payload []byte) (int64, error) {
	offset, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seek mesh log end: %w", err)
	}
	if _, err := s.file.Write(header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := s.file.Write(payload); err != nil {
			return 0, fmt.Errorf("write payload: %w", err)
		}
	}
	if err := s.file.Sync(); err != nil {
		return 0, fmt.Errorf("sync mesh log: %w", err)
	}
	return offset, nil
}

func encodeHeader(op byte, id uuid.UUID, size uint32) []byte {
	header := make([]byte, diskHeaderSize)
	header[0] = op
	copy(header[1:17], id[:])
	binary.LittleEndian.PutUint32(header[17:21], size)
	return header
}

func decodeHeader(header []byte) (byte, uuid.UUID, uint32) {
	var id uuid.UUID
	copy(id[:], header[1:17])
	return header[0], id, binary.LittleEndian.Uint32(header[17:21])
}
