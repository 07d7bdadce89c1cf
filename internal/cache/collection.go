package cache

// Per-frame/per-set metadata cost estimates used only by the "strict"
// budget constructors. These are engineering estimates, not exact struct
// sizes — BlockInfo plus its lookup/replacement slot share.
const (
	metaPerBlock    = 24 // BlockInfo + one lookup-table slot + one heap/list node
	staticMetaSet   = 96 // Set struct overhead: mutex, slice headers, interface values
	staticMetaTotal = 64 // SetCollection overhead: slice header, config copy
)

// SetCollection owns a flat vector of S sets (or, for a fully-associative
// cache, a single set of capacity N) and routes page p to set p mod S.
type SetCollection struct {
	sets        []*Set
	fullyAssoc  bool
	width       int // W for n-way/direct-mapped, N for fully-associative
	blockSize   int
}

// newSetCollection builds the collection for cfg, sized from cfg.Mem using
// either the data-only ("new") or data+metadata ("new_strict") budget
// formula depending on cfg.StrictBudget. Panics (via failConfig) if the
// resulting set/frame count would be zero, per spec's fail-fast rule.
func newSetCollection(cfg Config) *SetCollection {
	b := cfg.BlockSize

	switch cfg.Associativity.kind {
	case associativityFullyAssociative:
		n := fullyAssociativeCapacity(cfg)
		if n <= 0 {
			failConfig("memory budget %d is too small for any fully-associative frame of block size %d", cfg.Mem, b)
		}
		s := newFullyAssociativeSet(n, b, cfg.Lookup, cfg.Replacement, cfg.LRFURate)
		return &SetCollection{sets: []*Set{s}, fullyAssoc: true, width: n, blockSize: b}

	case associativityDirectMapped:
		w := 1
		setCount := setCountFor(cfg, w)
		if setCount <= 0 {
			failConfig("memory budget %d yields zero direct-mapped sets at block size %d", cfg.Mem, b)
		}
		sets := make([]*Set, setCount)
		for i := range sets {
			sets[i] = newSet(w, b, cfg.Lookup, cfg.Replacement, cfg.LRFURate, true)
		}
		return &SetCollection{sets: sets, width: w, blockSize: b}

	case associativityNWay:
		w := cfg.Associativity.w
		setCount := setCountFor(cfg, w)
		if setCount <= 0 {
			failConfig("memory budget %d yields zero %d-way sets at block size %d", cfg.Mem, w, b)
		}
		sets := make([]*Set, setCount)
		for i := range sets {
			sets[i] = newSet(w, b, cfg.Lookup, cfg.Replacement, cfg.LRFURate, false)
		}
		return &SetCollection{sets: sets, width: w, blockSize: b}

	default:
		failConfig("unknown associativity kind")
		return nil
	}
}

func setCountFor(cfg Config, w int) int {
	b := cfg.BlockSize
	if cfg.StrictBudget {
		perSetCost := int64(w)*int64(b) + staticMetaSet + int64(w)*metaPerBlock
		usable := cfg.Mem - staticMetaTotal
		if usable <= 0 || perSetCost <= 0 {
			return 0
		}
		return int(usable / perSetCost)
	}
	return int(cfg.Mem / (int64(w) * int64(b)))
}

func fullyAssociativeCapacity(cfg Config) int {
	b := int64(cfg.BlockSize)
	if cfg.StrictBudget {
		usable := cfg.Mem - staticMetaTotal
		perBlockCost := b + metaPerBlock
		if usable <= 0 || perBlockCost <= 0 {
			return 0
		}
		return int(usable / perBlockCost)
	}
	return int(cfg.Mem / b)
}

// SetCount returns the number of sets (1 for a fully-associative cache).
func (c *SetCollection) SetCount() int { return len(c.sets) }

// SetFor returns the set and its index that owns page p.
func (c *SetCollection) SetFor(p PageNumber) (*Set, int) {
	if c.fullyAssoc {
		return c.sets[0], 0
	}
	idx := int(uint64(p) % uint64(len(c.sets)))
	return c.sets[idx], idx
}

// All returns every set, for full-collection operations like IntoSource's
// dirty-frame flush.
func (c *SetCollection) All() []*Set { return c.sets }
