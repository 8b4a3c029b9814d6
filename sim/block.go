// Defines parking blocks and the registry that tracks their occupancy.
// Rankings of alternative blocks are computed once from the distance matrix.

package sim

import (
	"fmt"
	"sort"
)

// BlockRecord is one already-parsed row of the block table.
type BlockRecord struct {
	ID        string  `yaml:"id" json:"id"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Capacity  int     `yaml:"capacity" json:"capacity"`
}

// Block is a curbside parking block with its alternative ranking.
type Block struct {
	ID        string
	Longitude float64
	Latitude  float64
	Capacity  int
	occupancy int // 0 <= occupancy <= Capacity, changed only through the registry

	// Ranking lists every block index ascending by distance from this block,
	// ties broken by index. Ranking[0] is the block itself.
	Ranking []int
	// SortedDistances is parallel to Ranking.
	SortedDistances []float64
}

// Occupancy returns the number of occupied spaces.
func (b *Block) Occupancy() int { return b.occupancy }

// IsFull reports whether every space in the block is occupied.
func (b *Block) IsFull() bool {
	return b.occupancy >= b.Capacity
}

func (b Block) String() string {
	return fmt.Sprintf("Block %s (%.6f, %.6f) occupancy %d/%d", b.ID, b.Longitude, b.Latitude, b.occupancy, b.Capacity)
}

// BlockRegistry holds every block of the city plus the full distance matrix.
type BlockRegistry struct {
	blocks   []*Block
	index    map[string]int
	distance [][]float64
}

// NewBlockRegistry validates records and builds the registry. Occupancies start at zero.
func NewBlockRegistry(records []BlockRecord) (*BlockRegistry, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no blocks provided", ErrInvalidBlock)
	}

	index := make(map[string]int, len(records))
	lon := make([]float64, len(records))
	lat := make([]float64, len(records))
	for i, rec := range records {
		if err := validateRecord(rec, i); err != nil {
			return nil, err
		}
		if prev, dup := index[rec.ID]; dup {
			return nil, fmt.Errorf("%w: record[%d]: duplicate id %q (first seen at record[%d])", ErrInvalidBlock, i, rec.ID, prev)
		}
		index[rec.ID] = i
		lon[i], lat[i] = rec.Longitude, rec.Latitude
	}

	dist, err := GreatCircleMatrix(lon, lat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}

	blocks := make([]*Block, len(records))
	for i, rec := range records {
		ranking, sorted := rankByDistance(i, dist[i])
		blocks[i] = &Block{
			ID:              rec.ID,
			Longitude:       rec.Longitude,
			Latitude:        rec.Latitude,
			Capacity:        rec.Capacity,
			Ranking:         ranking,
			SortedDistances: sorted,
		}
	}

	return &BlockRegistry{blocks: blocks, index: index, distance: dist}, nil
}

func validateRecord(rec BlockRecord, idx int) error {
	prefix := fmt.Sprintf("record[%d]", idx)
	if rec.ID == "" {
		return fmt.Errorf("%w: %s: missing id", ErrInvalidBlock, prefix)
	}
	if !isFinite(rec.Longitude) || rec.Longitude < -180 || rec.Longitude > 180 {
		return fmt.Errorf("%w: %s (%s): longitude must be in [-180, 180], got %v", ErrInvalidBlock, prefix, rec.ID, rec.Longitude)
	}
	if !isFinite(rec.Latitude) || rec.Latitude < -90 || rec.Latitude > 90 {
		return fmt.Errorf("%w: %s (%s): latitude must be in [-90, 90], got %v", ErrInvalidBlock, prefix, rec.ID, rec.Latitude)
	}
	if rec.Capacity <= 0 {
		return fmt.Errorf("%w: %s (%s): capacity must be positive, got %d", ErrInvalidBlock, prefix, rec.ID, rec.Capacity)
	}
	return nil
}

// rankByDistance returns block indices sorted ascending by distance (stable on index)
// together with the matching distances. self always ranks first, even when another
// block shares its coordinates.
func rankByDistance(self int, row []float64) ([]int, []float64) {
	ranking := make([]int, len(row))
	for j := range ranking {
		ranking[j] = j
	}
	sort.SliceStable(ranking, func(a, b int) bool {
		ia, ib := ranking[a], ranking[b]
		if ia == self || ib == self {
			return ia == self && ib != self
		}
		return row[ia] < row[ib]
	})
	sorted := make([]float64, len(row))
	for k, j := range ranking {
		sorted[k] = row[j]
	}
	return ranking, sorted
}

// Len returns the number of blocks.
func (r *BlockRegistry) Len() int { return len(r.blocks) }

// Block returns the i-th block. Callers must not mutate Ranking or SortedDistances.
func (r *BlockRegistry) Block(i int) *Block { return r.blocks[i] }

// Lookup returns the index of the block with the given ID.
func (r *BlockRegistry) Lookup(id string) (int, bool) {
	i, ok := r.index[id]
	return i, ok
}

// Distance returns the great-circle distance in km between blocks i and j.
func (r *BlockRegistry) Distance(i, j int) float64 { return r.distance[i][j] }

// CandidateAt returns the rank-th nearest block to origin, or false once the
// ranking is exhausted.
func (r *BlockRegistry) CandidateAt(origin, rank int) (int, bool) {
	ranking := r.blocks[origin].Ranking
	if rank < 0 || rank >= len(ranking) {
		return 0, false
	}
	return ranking[rank], true
}

// IsFull reports whether block i has no free space.
func (r *BlockRegistry) IsFull(i int) bool { return r.blocks[i].IsFull() }

// Increment occupies one space in block i. Returns ErrBlockFull without mutating
// if the block is already full.
func (r *BlockRegistry) Increment(i int) error {
	b := r.blocks[i]
	if b.IsFull() {
		return fmt.Errorf("%w: %s at %d/%d", ErrBlockFull, b.ID, b.occupancy, b.Capacity)
	}
	b.occupancy++
	return nil
}

// Decrement frees one space in block i. Returns ErrBlockEmpty without mutating
// if the block has no occupied space.
func (r *BlockRegistry) Decrement(i int) error {
	b := r.blocks[i]
	if b.occupancy <= 0 {
		return fmt.Errorf("%w: %s", ErrBlockEmpty, b.ID)
	}
	b.occupancy--
	return nil
}

// ResetAll sets every block's occupancy to zero.
func (r *BlockRegistry) ResetAll() {
	for _, b := range r.blocks {
		b.occupancy = 0
	}
}

// Occupancies returns a snapshot of per-block occupancy in block order.
func (r *BlockRegistry) Occupancies() []int {
	occ := make([]int, len(r.blocks))
	for i, b := range r.blocks {
		occ[i] = b.occupancy
	}
	return occ
}

// Capacities returns per-block capacity in block order.
func (r *BlockRegistry) Capacities() []int {
	caps := make([]int, len(r.blocks))
	for i, b := range r.blocks {
		caps[i] = b.Capacity
	}
	return caps
}

// TotalOccupancy returns the number of occupied spaces across all blocks.
func (r *BlockRegistry) TotalOccupancy() int {
	total := 0
	for _, b := range r.blocks {
		total += b.occupancy
	}
	return total
}

// TotalCapacity returns the number of spaces across all blocks.
func (r *BlockRegistry) TotalCapacity() int {
	total := 0
	for _, b := range r.blocks {
		total += b.Capacity
	}
	return total
}

// Clone returns a registry with its own occupancy state. Rankings, distances and
// the id index are immutable and shared with r.
func (r *BlockRegistry) Clone() *BlockRegistry {
	blocks := make([]*Block, len(r.blocks))
	for i, b := range r.blocks {
		cp := *b
		blocks[i] = &cp
	}
	return &BlockRegistry{blocks: blocks, index: r.index, distance: r.distance}
}
