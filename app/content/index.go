package content

import (
	"sync"
	"time"
)

const bandCount = 4 // 16-bit bands; any pair within hamming distance 3 shares at least one band

// Record is a registered item as tracked by the dedup index.
type Record struct {
	Identity     string
	Fingerprint  uint64
	DiscoveredAt time.Time

	composite float64
	scored    bool
}

// Result reports the outcome of registering an item. DuplicateOf equals the
// item's own identity when the registration was an idempotent re-register.
type Result struct {
	New         bool
	DuplicateOf string
	Distance    int
}

type cluster struct {
	rep     *Record
	members []*Record
}

// Index detects exact and near-duplicate content. Exact matches resolve
// through an identity map; near matches through banded fingerprint buckets so
// registration never scans the whole index. All methods are safe for
// concurrent use.
type Index struct {
	mu        sync.Mutex
	threshold int
	records   map[string]*Record  // identity -> record
	clusters  map[string]*cluster // member identity -> cluster
	buckets   [bandCount]map[uint16][]*Record
}

func NewIndex(threshold int) *Index {
	idx := &Index{
		threshold: threshold,
		records:   make(map[string]*Record),
		clusters:  make(map[string]*cluster),
	}
	for i := range idx.buckets {
		idx.buckets[i] = make(map[uint16][]*Record)
	}
	return idx
}

// Register adds an item to the index. Re-registering a known identity is a
// no-op returning a duplicate of itself. A near-duplicate within the distance
// threshold joins the existing cluster and the cluster representative is
// returned so its provenance can be extended.
func (idx *Index) Register(identity string, fingerprint uint64, discoveredAt time.Time) Result {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.records[identity]; ok {
		c := idx.clusters[identity]
		if c.rep.Identity == identity {
			return Result{DuplicateOf: identity}
		}
		return Result{DuplicateOf: c.rep.Identity, Distance: HammingDistance(fingerprint, c.rep.Fingerprint)}
	}

	rec := &Record{Identity: identity, Fingerprint: fingerprint, DiscoveredAt: discoveredAt}

	if match, distance := idx.nearest(fingerprint); match != nil && distance < idx.threshold {
		c := idx.clusters[match.Identity]
		c.members = append(c.members, rec)
		idx.records[identity] = rec
		idx.clusters[identity] = c
		return Result{DuplicateOf: c.rep.Identity, Distance: distance}
	}

	c := &cluster{rep: rec, members: []*Record{rec}}
	idx.records[identity] = rec
	idx.clusters[identity] = c
	idx.insertBuckets(rec)
	return Result{New: true}
}

// Promote records an item's composite score. Whichever scored record in the
// cluster holds the highest composite becomes the representative, regardless
// of scoring order, and the survivor's identity is returned with changed=true
// when the representative moved. This is the deferred survivor resolution for
// items scored after deduplication.
func (idx *Index) Promote(identity string, composite float64) (string, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	rec, ok := idx.records[identity]
	if !ok {
		return "", false
	}
	rec.composite = composite
	rec.scored = true

	c := idx.clusters[identity]

	if c.rep.Identity == identity {
		// The representative itself just scored; a member shelved earlier
		// may already hold a higher composite.
		best := rec
		for _, member := range c.members {
			if member.scored && member.composite > best.composite {
				best = member
			}
		}
		if best == rec {
			return identity, false
		}
		idx.removeBuckets(rec)
		c.rep = best
		idx.insertBuckets(best)
		return best.Identity, true
	}

	if !c.rep.scored || composite <= c.rep.composite {
		return c.rep.Identity, false
	}

	idx.removeBuckets(c.rep)
	c.rep = rec
	idx.insertBuckets(rec)
	return identity, true
}

// Representative returns the surviving identity for a registered item.
func (idx *Index) Representative(identity string) (string, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	c, ok := idx.clusters[identity]
	if !ok {
		return "", false
	}
	return c.rep.Identity, true
}

// Size returns the number of registered identities.
func (idx *Index) Size() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.records)
}

// ClusterCount returns the number of distinct content clusters.
func (idx *Index) ClusterCount() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	seen := make(map[*cluster]bool)
	for _, c := range idx.clusters {
		seen[c] = true
	}
	return len(seen)
}

func (idx *Index) nearest(fingerprint uint64) (*Record, int) {
	var best *Record
	bestDistance := 65

	seen := make(map[string]bool)
	for band := 0; band < bandCount; band++ {
		key := bandKey(fingerprint, band)
		for _, candidate := range idx.buckets[band][key] {
			if seen[candidate.Identity] {
				continue
			}
			seen[candidate.Identity] = true

			distance := HammingDistance(fingerprint, candidate.Fingerprint)
			if distance < bestDistance {
				best = candidate
				bestDistance = distance
			}
		}
	}

	return best, bestDistance
}

func (idx *Index) insertBuckets(rec *Record) {
	for band := 0; band < bandCount; band++ {
		key := bandKey(rec.Fingerprint, band)
		idx.buckets[band][key] = append(idx.buckets[band][key], rec)
	}
}

func (idx *Index) removeBuckets(rec *Record) {
	for band := 0; band < bandCount; band++ {
		key := bandKey(rec.Fingerprint, band)
		bucket := idx.buckets[band][key]
		for i, candidate := range bucket {
			if candidate.Identity == rec.Identity {
				idx.buckets[band][key] = append(bucket[:i], bucket[i+1:]...)
				break
			}
		}
	}
}

func bandKey(fingerprint uint64, band int) uint16 {
	return uint16(fingerprint >> (uint(band) * 16))
}
