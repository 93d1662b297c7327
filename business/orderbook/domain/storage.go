package domain

import "github.com/mdagg/mdagg/internal/model"

// StorageOrderbook is one side-paired live order book: an id, the
// timestamp of the last applied update, and ascending bid/ask ladders.
type StorageOrderbook struct {
	ID        string
	Timestamp int64
	Bids      *PriceLadder
	Asks      *PriceLadder
}

// NewStorageOrderbook returns an empty book shell for id.
func NewStorageOrderbook(id string) *StorageOrderbook {
	return &StorageOrderbook{ID: id, Bids: NewPriceLadder(), Asks: NewPriceLadder()}
}

// StorageOptionOrderbook pairs the put and call legs of one (expiration,
// strike) option cell.
type StorageOptionOrderbook struct {
	Puts  *StorageOrderbook
	Calls *StorageOrderbook
}

// NewStorageOptionOrderbook returns an empty put/call pair for id.
func NewStorageOptionOrderbook(id string) *StorageOptionOrderbook {
	return &StorageOptionOrderbook{Puts: NewStorageOrderbook(id + ":put"), Calls: NewStorageOrderbook(id + ":call")}
}

// ContractTypeOrderbookKind discriminates ContractTypeOrderbook's tagged
// union.
type ContractTypeOrderbookKind int

const (
	KindFuture ContractTypeOrderbookKind = iota
	KindOption
	KindPerpetual
)

// ContractTypeOrderbook is the per-slot value: Future(map expiration →
// StorageOrderbook) | Option(map expiration → map strike →
// StorageOptionOrderbook) | Perpetual(StorageOrderbook). Only the field
// matching Kind is populated.
type ContractTypeOrderbook struct {
	Kind ContractTypeOrderbookKind

	Futures   map[int64]*StorageOrderbook
	Options   map[int64]map[uint64]*StorageOptionOrderbook
	Perpetual *StorageOrderbook
}

// Slot indices encode instrument class, eliminating per-event enum
// discrimination on lookup (spec.md §4.6's rationale).
const (
	SlotFuture = iota
	SlotOption
	SlotPerpetual
	slotCount
)

// Slots is the fixed three-slot array keyed by instrument class.
type Slots [slotCount]*ContractTypeOrderbook

// Key identifies one top-level storage cell: (exchange, base currency).
type Key struct {
	Exchange model.Exchange
	Currency model.Currency
}

// Less gives Key a total order so Storage.SortedKeys can produce a
// deterministic, ordered traversal (spec.md §3's "ordered map keyed by
// (Exchange, Currency)").
func (k Key) Less(other Key) bool {
	if k.Exchange != other.Exchange {
		return k.Exchange.Less(other.Exchange)
	}
	return k.Currency < other.Currency
}

// Storage is the top-level book index.
type Storage struct {
	cells map[Key]*Slots
}

// NewStorage returns an empty index.
func NewStorage() *Storage {
	return &Storage{cells: make(map[Key]*Slots)}
}

// Cell returns the slot array for key, creating it if absent. Shell
// construction is the only caller expected to create cells reactively;
// event application must use Lookup instead.
func (s *Storage) Cell(key Key) *Slots {
	c, ok := s.cells[key]
	if !ok {
		c = &Slots{}
		s.cells[key] = c
	}
	return c
}

// Lookup returns the slot array for key without creating it — used by
// Process, where a missing cell is a silent no-op (spec.md §4.6).
func (s *Storage) Lookup(key Key) (*Slots, bool) {
	c, ok := s.cells[key]
	return c, ok
}

// SortedKeys returns every populated (exchange, currency) key in total
// order.
func (s *Storage) SortedKeys() []Key {
	keys := make([]Key, 0, len(s.cells))
	for k := range s.cells {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j].Less(keys[j-1]); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
