package rotation

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
)

const (
	PolicyRandom        = "random"
	PolicyTrustWeighted = "trust_weighted"
)

// RosterPolicy orders members into payout positions. Implementations are
// pure; they never touch storage.
type RosterPolicy interface {
	Name() string
	Order(members []uuid.UUID, trust map[uuid.UUID]int) []uuid.UUID
}

// Random is a uniform permutation. A nil Rand uses the global source.
type Random struct {
	Rand *rand.Rand
}

func (Random) Name() string { return PolicyRandom }

func (p Random) Order(members []uuid.UUID, _ map[uuid.UUID]int) []uuid.UUID {
	out := append([]uuid.UUID(nil), members...)
	shuffle(p.Rand, out)
	return out
}

// TrustWeighted puts members whose score is at or above Threshold first, in a
// random order biased toward higher scores. Everyone else follows in uniform
// random order.
type TrustWeighted struct {
	Threshold int
	Rand      *rand.Rand
}

func (TrustWeighted) Name() string { return PolicyTrustWeighted }

func (p TrustWeighted) Order(members []uuid.UUID, trust map[uuid.UUID]int) []uuid.UUID {
	type keyed struct {
		id  uuid.UUID
		key float64
	}

	var trusted []keyed
	var rest []uuid.UUID
	for _, m := range members {
		score, ok := trust[m]
		if !ok || score < p.Threshold {
			rest = append(rest, m)
			continue
		}
		weight := float64(score)
		if weight < 1 {
			weight = 1
		}
		// weighted sampling without replacement: sort by u^(1/w) descending
		u := float64Of(p.Rand)
		trusted = append(trusted, keyed{id: m, key: math.Pow(u, 1/weight)})
	}

	sort.SliceStable(trusted, func(i, j int) bool { return trusted[i].key > trusted[j].key })
	shuffle(p.Rand, rest)

	out := make([]uuid.UUID, 0, len(members))
	for _, k := range trusted {
		out = append(out, k.id)
	}
	return append(out, rest...)
}

// PolicyByName resolves the policy stored on a cycle. An empty name is the
// random policy.
func PolicyByName(name string, threshold int, r *rand.Rand) (RosterPolicy, error) {
	switch name {
	case "", PolicyRandom:
		return Random{Rand: r}, nil
	case PolicyTrustWeighted:
		return TrustWeighted{Threshold: threshold, Rand: r}, nil
	default:
		return nil, fmt.Errorf("PolicyByName: unknown roster policy %q: %w", name, domain.ErrInvalidRequest)
	}
}

func shuffle(r *rand.Rand, ids []uuid.UUID) {
	swap := func(i, j int) { ids[i], ids[j] = ids[j], ids[i] }
	if r == nil {
		rand.Shuffle(len(ids), swap)
		return
	}
	r.Shuffle(len(ids), swap)
}

func float64Of(r *rand.Rand) float64 {
	if r == nil {
		return rand.Float64()
	}
	return r.Float64()
}
