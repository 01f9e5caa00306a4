package state

import (
	"sort"
	"sync"

	"github.com/relicsprotocol/relicsd/keepsake"
)

// Simulated is an in-memory Store with the same transactional semantics as
// the SQLite one. Tests run the updater against it directly.
type Simulated struct {
	mu sync.Mutex
	tables
}

type tables struct {
	balances   map[string][]Balance
	sealings   map[string]*SealingRecord
	relics     map[string]*RelicEntry
	names      map[string]string
	blockMints map[blockMintKey]uint64
	events     []*Event
	blockHash  map[uint64]string
	tipHeight  uint64
	tipHash    string
	hasTip     bool
}

type blockMintKey struct {
	id     string
	height uint64
}

var _ Store = (*Simulated)(nil)

func NewSimulated() *Simulated {
	return &Simulated{tables: newTables()}
}

func newTables() tables {
	return tables{
		balances:   make(map[string][]Balance),
		sealings:   make(map[string]*SealingRecord),
		relics:     make(map[string]*RelicEntry),
		names:      make(map[string]string),
		blockMints: make(map[blockMintKey]uint64),
		blockHash:  make(map[uint64]string),
	}
}

func (t *tables) clone() tables {
	c := newTables()
	for k, v := range t.balances {
		c.balances[k] = cloneBalances(v)
	}
	for k, v := range t.sealings {
		rec := *v
		c.sealings[k] = &rec
	}
	for k, v := range t.relics {
		c.relics[k] = v.Clone()
	}
	for k, v := range t.names {
		c.names[k] = v
	}
	for k, v := range t.blockMints {
		c.blockMints[k] = v
	}
	for k, v := range t.blockHash {
		c.blockHash[k] = v
	}
	c.events = append(c.events, t.events...)
	c.tipHeight, c.tipHash, c.hasTip = t.tipHeight, t.tipHash, t.hasTip
	return c
}

func cloneBalances(balances []Balance) []Balance {
	out := make([]Balance, len(balances))
	copy(out, balances)
	return out
}

func (s *Simulated) Close() error { return nil }

// Begin snapshots the tables; Commit swaps the snapshot back in.
func (s *Simulated) Begin() (Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &simulatedTx{store: s, tables: s.tables.clone()}, nil
}

func (s *Simulated) Relic(id keepsake.RelicId) (*RelicEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.relics[id.String()]; ok {
		return entry.Clone(), nil
	}
	return nil, nil
}

func (s *Simulated) RelicByName(name string) (*RelicEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.relics {
		if entry.Name.Relic.String() == name {
			return entry.Clone(), nil
		}
	}
	return nil, nil
}

func (s *Simulated) Relics() ([]*RelicEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]*RelicEntry, 0, len(s.relics))
	for _, entry := range s.relics {
		entries = append(entries, entry.Clone())
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Id.Cmp(entries[j].Id) < 0
	})
	return entries, nil
}

func (s *Simulated) Balances(outpoint string) ([]Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if balances, ok := s.balances[outpoint]; ok {
		return cloneBalances(balances), nil
	}
	return nil, nil
}

func (s *Simulated) Sealing(name string) (*SealingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.sealings[name]; ok {
		clone := *rec
		return &clone, nil
	}
	return nil, nil
}

func (s *Simulated) BlockEvents(height uint64) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables.blockEvents(height), nil
}

func (s *Simulated) Tip() (uint64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasTip {
		return 0, "", nil
	}
	return s.tipHeight, s.tipHash, nil
}

func (t *tables) blockEvents(height uint64) []*Event {
	var out []*Event
	for _, ev := range t.events {
		if ev.Height == height {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TxIndex != out[j].TxIndex {
			return out[i].TxIndex < out[j].TxIndex
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

type simulatedTx struct {
	store *Simulated
	tables
	done bool
}

var _ Tx = (*simulatedTx)(nil)

func (t *simulatedTx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.tables = t.tables
	t.done = true
	return nil
}

func (t *simulatedTx) Rollback() error {
	t.done = true
	return nil
}

func (t *simulatedTx) Balances(outpoint string) ([]Balance, error) {
	if balances, ok := t.balances[outpoint]; ok {
		return cloneBalances(balances), nil
	}
	return nil, nil
}

func (t *simulatedTx) TakeBalances(outpoint string) ([]Balance, error) {
	balances, ok := t.balances[outpoint]
	if !ok {
		return nil, nil
	}
	delete(t.balances, outpoint)
	return balances, nil
}

func (t *simulatedTx) PutBalances(outpoint string, balances []Balance) error {
	t.balances[outpoint] = cloneBalances(balances)
	return nil
}

func (t *simulatedTx) DeleteBalances(outpoint string) error {
	delete(t.balances, outpoint)
	return nil
}

func (t *simulatedTx) Sealing(name string) (*SealingRecord, error) {
	if rec, ok := t.sealings[name]; ok {
		clone := *rec
		return &clone, nil
	}
	return nil, nil
}

func (t *simulatedTx) PutSealing(rec *SealingRecord) error {
	clone := *rec
	t.sealings[rec.Name.Relic.String()] = &clone
	return nil
}

func (t *simulatedTx) DeleteSealing(name string) error {
	delete(t.sealings, name)
	return nil
}

func (t *simulatedTx) Relic(id keepsake.RelicId) (*RelicEntry, error) {
	if entry, ok := t.relics[id.String()]; ok {
		return entry.Clone(), nil
	}
	return nil, nil
}

func (t *simulatedTx) PutRelic(entry *RelicEntry) error {
	t.relics[entry.Id.String()] = entry.Clone()
	return nil
}

func (t *simulatedTx) DeleteRelic(id keepsake.RelicId) error {
	delete(t.relics, id.String())
	return nil
}

func (t *simulatedTx) RelicCount() (uint64, error) {
	return uint64(len(t.relics)), nil
}

func (t *simulatedTx) NameRef(name string) (string, error) {
	return t.names[name], nil
}

func (t *simulatedTx) PutName(name string, ref string) error {
	t.names[name] = ref
	return nil
}

func (t *simulatedTx) DeleteName(name string) error {
	delete(t.names, name)
	return nil
}

func (t *simulatedTx) BlockMints(id keepsake.RelicId, height uint64) (uint64, error) {
	return t.blockMints[blockMintKey{id.String(), height}], nil
}

func (t *simulatedTx) SetBlockMints(id keepsake.RelicId, height uint64, count uint64) error {
	key := blockMintKey{id.String(), height}
	if count == 0 {
		delete(t.blockMints, key)
		return nil
	}
	t.blockMints[key] = count
	return nil
}

func (t *simulatedTx) DeleteBlockMints(height uint64) error {
	for key := range t.blockMints {
		if key.height == height {
			delete(t.blockMints, key)
		}
	}
	return nil
}

func (t *simulatedTx) AppendEvent(ev *Event) error {
	t.events = append(t.events, ev)
	return nil
}

func (t *simulatedTx) BlockEvents(height uint64) ([]*Event, error) {
	return t.tables.blockEvents(height), nil
}

func (t *simulatedTx) DeleteBlockEvents(height uint64) error {
	kept := t.events[:0]
	for _, ev := range t.events {
		if ev.Height != height {
			kept = append(kept, ev)
		}
	}
	t.events = kept
	return nil
}

func (t *simulatedTx) Tip() (uint64, string, error) {
	if !t.hasTip {
		return 0, "", nil
	}
	return t.tipHeight, t.tipHash, nil
}

func (t *simulatedTx) SetTip(height uint64, hash string) error {
	t.tipHeight, t.tipHash, t.hasTip = height, hash, true
	return nil
}

func (t *simulatedTx) BlockHash(height uint64) (string, error) {
	return t.blockHash[height], nil
}

func (t *simulatedTx) SetBlockHash(height uint64, hash string) error {
	t.blockHash[height] = hash
	return nil
}

func (t *simulatedTx) DeleteBlockHash(height uint64) error {
	delete(t.blockHash, height)
	return nil
}
