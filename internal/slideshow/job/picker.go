package job

import (
	"math/rand/v2"
	"sync"
)

// Picker hands out transitions for slides that did not name one. It draws
// from a shuffled pool so no kind repeats until every kind has been used
// once; after that it picks uniformly.
type Picker struct {
	mu   sync.Mutex
	rng  *rand.Rand
	pool []TransitionKind
}

// NewPicker is deterministic for a given seed.
func NewPicker(seed uint64) *Picker {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	pool := Transitions()
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return &Picker{rng: rng, pool: pool}
}

func (p *Picker) Next() TransitionKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.pool); n > 0 {
		k := p.pool[n-1]
		p.pool = p.pool[:n-1]
		return k
	}
	return transitions[p.rng.IntN(len(transitions))]
}
