package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/karuha/arenachain/core"
	"github.com/karuha/arenachain/crypto"
)

// State-key prefixes. ComputeRoot scans exactly these, so adding a record
// family means adding its prefix here or it silently escapes the root.
const (
	prefixAccount = "acct:"
	prefixPlayer  = "player:"
	prefixBattle  = "battle:"
	prefixStats   = "stats:"
	prefixCard    = "card:"
	prefixListing = "list:"
	prefixMeta    = "meta:"
)

var statePrefixes = []string{
	prefixAccount, prefixPlayer, prefixBattle, prefixStats,
	prefixCard, prefixListing, prefixMeta,
}

const keyAuthority = prefixMeta + "authority"

func counterKey(name string) string { return prefixMeta + "counter:" + name }
func battleKey(id uint64) string    { return fmt.Sprintf("%s%d", prefixBattle, id) }
func cardKey(id uint64) string      { return fmt.Sprintf("%s%d", prefixCard, id) }
func statsKey(player string, tokenID uint64) string {
	return fmt.Sprintf("%s%s:%d", prefixStats, player, tokenID)
}

// buffer is the uncommitted overlay on top of the DB: pending writes plus
// pending deletions.
type buffer struct {
	writes  map[string][]byte
	removed map[string]bool
}

func newBuffer() buffer {
	return buffer{writes: make(map[string][]byte), removed: make(map[string]bool)}
}

func (b buffer) clone() buffer {
	cp := buffer{
		writes:  make(map[string][]byte, len(b.writes)),
		removed: make(map[string]bool, len(b.removed)),
	}
	for k, v := range b.writes {
		cp.writes[k] = append([]byte(nil), v...)
	}
	for k := range b.removed {
		cp.removed[k] = true
	}
	return cp
}

// StateDB implements core.State: typed accessors over a DB, an uncommitted
// write overlay with snapshot/rollback, and a deterministic state root.
type StateDB struct {
	db        DB
	buf       buffer
	snapshots []buffer
}

// NewStateDB wraps db with an empty overlay.
func NewStateDB(db DB) *StateDB {
	return &StateDB{db: db, buf: newBuffer()}
}

func (s *StateDB) get(key string) ([]byte, error) {
	if s.buf.removed[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := s.buf.writes[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	delete(s.buf.removed, key)
	s.buf.writes[key] = val
}

func (s *StateDB) del(key string) {
	delete(s.buf.writes, key)
	s.buf.removed[key] = true
}

func (s *StateDB) getJSON(key string, out any) error {
	data, err := s.get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *StateDB) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.set(key, data)
	return nil
}

// GetAccount never reports a missing account: unknown addresses read as a
// zero-balance, zero-nonce account, which is what fee and nonce checks
// expect.
func (s *StateDB) GetAccount(address string) (*core.Account, error) {
	var acc core.Account
	err := s.getJSON(prefixAccount+address, &acc)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Account{Address: address}, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	return s.setJSON(prefixAccount+acc.Address, acc)
}

func (s *StateDB) GetPlayer(address string) (*core.Player, error) {
	var p core.Player
	if err := s.getJSON(prefixPlayer+address, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *StateDB) SetPlayer(p *core.Player) error {
	return s.setJSON(prefixPlayer+p.Address, p)
}

func (s *StateDB) GetBattle(id uint64) (*core.Battle, error) {
	var b core.Battle
	if err := s.getJSON(battleKey(id), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *StateDB) SetBattle(b *core.Battle) error {
	return s.setJSON(battleKey(b.ID), b)
}

// Character stats are keyed per (player, token) pair: experience earned
// with a card does not follow the card to a new owner.
func (s *StateDB) GetCharacterStats(player string, tokenID uint64) (*core.CharacterStats, error) {
	var cs core.CharacterStats
	if err := s.getJSON(statsKey(player, tokenID), &cs); err != nil {
		return nil, err
	}
	return &cs, nil
}

func (s *StateDB) SetCharacterStats(cs *core.CharacterStats) error {
	return s.setJSON(statsKey(cs.Player, cs.TokenID), cs)
}

func (s *StateDB) GetCard(id uint64) (*core.Card, error) {
	var c core.Card
	if err := s.getJSON(cardKey(id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *StateDB) SetCard(c *core.Card) error {
	return s.setJSON(cardKey(c.ID), c)
}

func (s *StateDB) DeleteCard(id uint64) error {
	s.del(cardKey(id))
	return nil
}

func (s *StateDB) GetListing(id string) (*core.MarketListing, error) {
	var l core.MarketListing
	if err := s.getJSON(prefixListing+id, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *StateDB) SetListing(l *core.MarketListing) error {
	return s.setJSON(prefixListing+l.ID, l)
}

// Counters are stored as 8-byte big-endian values; an unset counter reads
// as zero.
func (s *StateDB) GetCounter(name string) (uint64, error) {
	data, err := s.get(counterKey(name))
	if errors.Is(err, core.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("counter %q: malformed value (%d bytes)", name, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func (s *StateDB) SetCounter(name string, value uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], value)
	s.set(counterKey(name), buf[:])
	return nil
}

// GetAuthority returns core.ErrNotFound until genesis installs the battle
// authority.
func (s *StateDB) GetAuthority() (string, error) {
	data, err := s.get(keyAuthority)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *StateDB) SetAuthority(pubkeyHex string) error {
	s.set(keyAuthority, []byte(pubkeyHex))
	return nil
}

// Snapshot saves a deep copy of the overlay and returns its ID.
func (s *StateDB) Snapshot() (int, error) {
	s.snapshots = append(s.snapshots, s.buf.clone())
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the overlay saved under id and discards it and
// every later snapshot. The restore is itself a deep copy, so a snapshot
// can be reverted to more than once.
func (s *StateDB) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	s.buf = s.snapshots[id].clone()
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot hashes the full world state: everything persisted under the
// known prefixes, overlaid with pending writes, minus pending deletions.
// Keys are sorted and each pair length-prefixed, so the digest is
// deterministic and unambiguous. State is not modified, which makes it
// safe to call before a block is signed.
func (s *StateDB) ComputeRoot() string {
	world := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			world[string(it.Key())] = append([]byte(nil), it.Value()...)
		}
		it.Release()
	}
	for k, v := range s.buf.writes {
		world[k] = v
	}
	for k := range s.buf.removed {
		delete(world, k)
	}

	keys := make([]string, 0, len(world))
	for k := range world {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(k)))
		out.Write(lenBuf[:])
		out.WriteString(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(world[k])))
		out.Write(lenBuf[:])
		out.Write(world[k])
	}
	return crypto.Hash(out.Bytes())
}

// Commit flushes the overlay to the DB in one batch and resets it, along
// with any outstanding snapshots. Call ComputeRoot first; the root must be
// taken from the pre-flush view the block was built against.
func (s *StateDB) Commit() error {
	batch := s.db.NewBatch()
	for k, v := range s.buf.writes {
		batch.Set([]byte(k), v)
	}
	for k := range s.buf.removed {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.buf = newBuffer()
	s.snapshots = nil
	return nil
}
