package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/tinylib/msgp/msgp"

	"github.com/lox/downforce/internal/fileutil"
	"github.com/lox/downforce/internal/protocol"
)

const snapshotVersion = 1

// SaveSnapshot writes every live room to path. The file is replaced
// atomically so a crash mid-write leaves the previous snapshot intact.
func (m *MemoryStore) SaveSnapshot(path string) (int, error) {
	m.mu.RLock()
	now := m.clock.Now()
	codes := make([]string, 0, len(m.rooms))
	for code, e := range m.rooms {
		if now.Before(e.expiresAt) {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	b := msgp.AppendMapHeader(nil, 2)
	b = msgp.AppendString(b, "v")
	b = msgp.AppendInt(b, snapshotVersion)
	b = msgp.AppendString(b, "rooms")
	b = msgp.AppendArrayHeader(b, uint32(len(codes)))
	for _, code := range codes {
		e := m.rooms[code]
		b = msgp.AppendArrayHeader(b, 4)
		b = msgp.AppendString(b, code)
		b = msgp.AppendUint64(b, e.revision)
		b = msgp.AppendInt64(b, e.expiresAt.UnixNano())
		b = msgp.AppendBytes(b, e.data)
	}
	m.mu.RUnlock()

	if err := fileutil.WriteFileAtomic(path, b, 0o600); err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}
	m.logger.Info().Str("path", path).Int("rooms", len(codes)).Msg("Saved room snapshot")
	return len(codes), nil
}

// LoadSnapshot restores rooms from a file written by SaveSnapshot. A missing
// file loads nothing. Rooms that expired while the server was down are
// skipped, as are rooms already present in the store.
func (m *MemoryStore) LoadSnapshot(path string) (int, error) {
	data, ok, err := fileutil.ReadFileIfExists(path)
	if err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return 0, nil
	}

	loaded, err := m.restore(data)
	if err != nil {
		return 0, fmt.Errorf("load snapshot %s: %w", path, err)
	}
	m.logger.Info().Str("path", path).Int("rooms", loaded).Msg("Restored room snapshot")
	return loaded, nil
}

func (m *MemoryStore) restore(b []byte) (int, error) {
	sz, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return 0, err
	}

	type restored struct {
		code string
		e    entry
	}
	var rooms []restored
	version := 0
	for i := uint32(0); i < sz; i++ {
		var key string
		key, b, err = msgp.ReadStringBytes(b)
		if err != nil {
			return 0, err
		}
		switch key {
		case "v":
			version, b, err = msgp.ReadIntBytes(b)
		case "rooms":
			var n uint32
			n, b, err = msgp.ReadArrayHeaderBytes(b)
			for j := uint32(0); err == nil && j < n; j++ {
				var r restored
				r.code, r.e, b, err = readSnapshotEntry(b)
				rooms = append(rooms, r)
			}
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return 0, err
		}
	}
	if version != snapshotVersion {
		return 0, fmt.Errorf("unsupported snapshot version %d", version)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	loaded := 0
	for _, r := range rooms {
		if !now.Before(r.e.expiresAt) {
			continue
		}
		if _, exists := m.live(r.code); exists {
			continue
		}
		m.rooms[r.code] = r.e
		loaded++
	}
	return loaded, nil
}

func readSnapshotEntry(b []byte) (string, entry, []byte, error) {
	var e entry
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return "", e, b, err
	}
	if n != 4 {
		return "", e, b, fmt.Errorf("snapshot entry has %d fields", n)
	}
	code, b, err := msgp.ReadStringBytes(b)
	if err != nil {
		return "", e, b, err
	}
	if e.revision, b, err = msgp.ReadUint64Bytes(b); err != nil {
		return "", e, b, err
	}
	var nanos int64
	if nanos, b, err = msgp.ReadInt64Bytes(b); err != nil {
		return "", e, b, err
	}
	e.expiresAt = unixNano(nanos)
	if e.data, b, err = msgp.ReadBytesBytes(b, nil); err != nil {
		return "", e, b, err
	}
	// Reject states that would fail on first read.
	if _, err := protocol.UnmarshalState(e.data); err != nil {
		return "", e, b, fmt.Errorf("room %s: %w", code, err)
	}
	return code, e, b, nil
}

func unixNano(n int64) time.Time {
	return time.Unix(0, n)
}
