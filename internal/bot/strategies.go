package bot

import (
	"math/rand"
	"sync"

	"taskboard/internal/domain"
)

// Trusting accepts every task.
type Trusting struct{}

func (Trusting) Judge(*domain.Session, *domain.PendingTask) bool { return true }

// Skeptic accepts a task with a fixed probability.
type Skeptic struct {
	AcceptRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSkeptic seeds a skeptic so its verdicts can be replayed.
func NewSkeptic(acceptRate float64, seed int64) *Skeptic {
	return &Skeptic{AcceptRate: acceptRate, rng: rand.New(rand.NewSource(seed))}
}

func (s *Skeptic) Judge(*domain.Session, *domain.PendingTask) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.AcceptRate
}
