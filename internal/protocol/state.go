// Package protocol encodes room state for storage.
//
// States are written as a msgpack map with short keys. Unknown keys are
// skipped on read so newer writers stay readable by older servers.
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tinylib/msgp/msgp"

	"github.com/lox/downforce/internal/game"
)

// FormatVersion is written into every encoded state.
const FormatVersion = 1

var (
	// ErrUnsupportedVersion indicates a state written by an incompatible format.
	ErrUnsupportedVersion = errors.New("protocol: unsupported state format version")

	// ErrCorruptState indicates bytes that decode but violate state invariants.
	ErrCorruptState = errors.New("protocol: corrupt state")
)

// Pool of scratch buffers for encoding
var bufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 512)
		return &b
	},
}

// MarshalState serializes s to msgpack.
func MarshalState(s *game.State) ([]byte, error) {
	if s == nil {
		return nil, errors.New("protocol: nil state")
	}
	bp := bufferPool.Get().(*[]byte)
	b := AppendState((*bp)[:0], s)

	// Copy out so callers never alias the pooled buffer
	out := bytes.Clone(b)
	*bp = b
	bufferPool.Put(bp)
	return out, nil
}

// AppendState appends the msgpack encoding of s to b.
func AppendState(b []byte, s *game.State) []byte {
	b = msgp.AppendMapHeader(b, 10)

	b = msgp.AppendString(b, "v")
	b = msgp.AppendInt(b, FormatVersion)

	b = msgp.AppendString(b, "code")
	b = msgp.AppendString(b, s.Code)

	b = msgp.AppendString(b, "phase")
	b = msgp.AppendString(b, string(s.Phase))

	b = msgp.AppendString(b, "rev")
	b = msgp.AppendUint64(b, s.Revision)

	b = msgp.AppendString(b, "created")
	b = msgp.AppendInt64(b, s.CreatedAt.UnixNano())

	b = msgp.AppendString(b, "pos_set")
	b = msgp.AppendBool(b, s.PositionsSet)

	b = msgp.AppendString(b, "players")
	b = msgp.AppendArrayHeader(b, uint32(len(s.Players)))
	for _, p := range s.Players {
		b = appendPlayer(b, p)
	}

	b = msgp.AppendString(b, "positions")
	b = appendCarInts(b, s.Positions)

	b = msgp.AppendString(b, "owners")
	n := 0
	for _, c := range game.AllCars {
		if _, ok := s.Owners[c]; ok {
			n++
		}
	}
	b = msgp.AppendMapHeader(b, uint32(n))
	for _, c := range game.AllCars {
		o, ok := s.Owners[c]
		if !ok {
			continue
		}
		b = msgp.AppendString(b, string(c))
		b = msgp.AppendArrayHeader(b, 2)
		b = msgp.AppendString(b, o.PlayerID)
		b = msgp.AppendInt(b, o.Price)
	}

	b = msgp.AppendString(b, "final")
	if s.FinalPositions == nil {
		b = msgp.AppendNil(b)
	} else {
		b = appendCarInts(b, s.FinalPositions)
	}
	return b
}

func appendPlayer(b []byte, p *game.Player) []byte {
	b = msgp.AppendMapHeader(b, 4)
	b = msgp.AppendString(b, "id")
	b = msgp.AppendString(b, p.ID)
	b = msgp.AppendString(b, "name")
	b = msgp.AppendString(b, p.Name)
	b = msgp.AppendString(b, "host")
	b = msgp.AppendBool(b, p.IsHost)
	b = msgp.AppendString(b, "bets")
	b = msgp.AppendArrayHeader(b, game.NumRounds)
	for _, bet := range p.Bets {
		b = msgp.AppendArrayHeader(b, 2)
		b = msgp.AppendString(b, string(bet.Car))
		b = msgp.AppendInt(b, bet.Position)
	}
	return b
}

// appendCarInts writes a car -> int map in canonical car order so equal
// states always encode to equal bytes.
func appendCarInts(b []byte, m map[game.Car]int) []byte {
	n := 0
	for _, c := range game.AllCars {
		if _, ok := m[c]; ok {
			n++
		}
	}
	b = msgp.AppendMapHeader(b, uint32(n))
	for _, c := range game.AllCars {
		v, ok := m[c]
		if !ok {
			continue
		}
		b = msgp.AppendString(b, string(c))
		b = msgp.AppendInt(b, v)
	}
	return b
}

// UnmarshalState decodes a state and checks its invariants.
func UnmarshalState(data []byte) (*game.State, error) {
	s, _, err := ReadState(data)
	return s, err
}

// ReadState decodes one state from the front of b and returns the rest.
func ReadState(b []byte) (*game.State, []byte, error) {
	sz, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, b, fmt.Errorf("protocol: state header: %w", err)
	}

	s := &game.State{
		Positions: make(map[game.Car]int, game.NumCars),
		Owners:    make(map[game.Car]game.Ownership, game.NumCars),
	}
	version := 0
	for i := uint32(0); i < sz; i++ {
		var key string
		key, b, err = msgp.ReadStringBytes(b)
		if err != nil {
			return nil, b, fmt.Errorf("protocol: state key: %w", err)
		}
		switch key {
		case "v":
			version, b, err = msgp.ReadIntBytes(b)
		case "code":
			s.Code, b, err = msgp.ReadStringBytes(b)
		case "phase":
			var phase string
			phase, b, err = msgp.ReadStringBytes(b)
			s.Phase = game.Phase(phase)
		case "rev":
			s.Revision, b, err = msgp.ReadUint64Bytes(b)
		case "created":
			var nanos int64
			nanos, b, err = msgp.ReadInt64Bytes(b)
			s.CreatedAt = time.Unix(0, nanos).UTC()
		case "pos_set":
			s.PositionsSet, b, err = msgp.ReadBoolBytes(b)
		case "players":
			s.Players, b, err = readPlayers(b)
		case "positions":
			s.Positions, b, err = readCarInts(b)
		case "owners":
			s.Owners, b, err = readOwners(b)
		case "final":
			if msgp.IsNil(b) {
				b, err = msgp.ReadNilBytes(b)
				s.FinalPositions = nil
			} else {
				s.FinalPositions, b, err = readCarInts(b)
			}
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return nil, b, fmt.Errorf("protocol: field %q: %w", key, err)
		}
	}

	if version != FormatVersion {
		return nil, b, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if err := s.Validate(); err != nil {
		return nil, b, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return s, b, nil
}

func readPlayers(b []byte) ([]*game.Player, []byte, error) {
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}
	players := make([]*game.Player, 0, n)
	for i := uint32(0); i < n; i++ {
		var p *game.Player
		p, b, err = readPlayer(b)
		if err != nil {
			return nil, b, err
		}
		players = append(players, p)
	}
	return players, b, nil
}

func readPlayer(b []byte) (*game.Player, []byte, error) {
	sz, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}
	p := &game.Player{}
	for i := uint32(0); i < sz; i++ {
		var key string
		key, b, err = msgp.ReadStringBytes(b)
		if err != nil {
			return nil, b, err
		}
		switch key {
		case "id":
			p.ID, b, err = msgp.ReadStringBytes(b)
		case "name":
			p.Name, b, err = msgp.ReadStringBytes(b)
		case "host":
			p.IsHost, b, err = msgp.ReadBoolBytes(b)
		case "bets":
			b, err = readBets(b, p)
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return nil, b, fmt.Errorf("player %q: %w", key, err)
		}
	}
	return p, b, nil
}

func readBets(b []byte, p *game.Player) ([]byte, error) {
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, err
	}
	if n > game.NumRounds {
		return b, fmt.Errorf("%d bet rounds", n)
	}
	for i := uint32(0); i < n; i++ {
		var pair uint32
		pair, b, err = msgp.ReadArrayHeaderBytes(b)
		if err != nil {
			return b, err
		}
		if pair != 2 {
			return b, fmt.Errorf("bet %d has %d fields", i+1, pair)
		}
		var car string
		car, b, err = msgp.ReadStringBytes(b)
		if err != nil {
			return b, err
		}
		var pos int
		pos, b, err = msgp.ReadIntBytes(b)
		if err != nil {
			return b, err
		}
		p.Bets[i] = game.Bet{Car: game.Car(car), Position: pos}
	}
	return b, nil
}

func readCarInts(b []byte) (map[game.Car]int, []byte, error) {
	n, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}
	m := make(map[game.Car]int, n)
	for i := uint32(0); i < n; i++ {
		var car string
		car, b, err = msgp.ReadStringBytes(b)
		if err != nil {
			return nil, b, err
		}
		var v int
		v, b, err = msgp.ReadIntBytes(b)
		if err != nil {
			return nil, b, err
		}
		m[game.Car(car)] = v
	}
	return m, b, nil
}

func readOwners(b []byte) (map[game.Car]game.Ownership, []byte, error) {
	n, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}
	owners := make(map[game.Car]game.Ownership, n)
	for i := uint32(0); i < n; i++ {
		var car string
		car, b, err = msgp.ReadStringBytes(b)
		if err != nil {
			return nil, b, err
		}
		var pair uint32
		pair, b, err = msgp.ReadArrayHeaderBytes(b)
		if err != nil {
			return nil, b, err
		}
		if pair != 2 {
			return nil, b, fmt.Errorf("owner of %s has %d fields", car, pair)
		}
		var o game.Ownership
		o.PlayerID, b, err = msgp.ReadStringBytes(b)
		if err != nil {
			return nil, b, err
		}
		o.Price, b, err = msgp.ReadIntBytes(b)
		if err != nil {
			return nil, b, err
		}
		owners[game.Car(car)] = o
	}
	return owners, b, nil
}
