package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/meenmo/bondrisk/bond"
	"github.com/meenmo/bondrisk/curve"
	"github.com/meenmo/bondrisk/risk"
)

var (
	ErrNotFound  = errors.New("portfolio: instrument not found")
	ErrDuplicate = errors.New("portfolio: duplicate contract id")
)

// PricingError attributes a failure to one instrument.
type PricingError struct {
	ID  string `json:"contract_id"`
	Err error  `json:"-"`
}

func (e *PricingError) Error() string {
	return fmt.Sprintf("price %s: %v", e.ID, e.Err)
}

func (e *PricingError) Unwrap() error { return e.Err }

// MarshalText lets failures serialize as their message.
func (e *PricingError) MarshalText() ([]byte, error) {
	return []byte(e.Error()), nil
}

// Position is a holding of Quantity units of Bond. Forwards feeds floating coupons and
// is nil for fixed and zero-coupon bonds.
type Position struct {
	Bond     bond.Bond
	Quantity float64
	Forwards bond.ForwardRates
}

// ID returns the contract id of the held bond.
func (p Position) ID() string { return p.Bond.Terms().ContractID }

// PositionOption configures a Position in Add.
type PositionOption func(*Position)

// WithQuantity sets the number of units held. The default is 1.
func WithQuantity(q float64) PositionOption {
	return func(p *Position) { p.Quantity = q }
}

// WithForwards attaches projected reference rates for a floating-rate bond.
func WithForwards(f bond.ForwardRates) PositionOption {
	return func(p *Position) { p.Forwards = f }
}

// Portfolio is an ordered set of positions keyed by contract id. It is safe for
// concurrent use.
type Portfolio struct {
	mu        sync.RWMutex
	positions []Position
	index     map[string]int
	logger    *zap.Logger
}

// Option configures a Portfolio.
type Option func(*Portfolio)

// WithLogger sets the logger used for pricing failures.
func WithLogger(l *zap.Logger) Option {
	return func(p *Portfolio) {
		if l != nil {
			p.logger = l
		}
	}
}

func New(opts ...Option) *Portfolio {
	p := &Portfolio{
		index:  make(map[string]int),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Add appends a position. Contract ids must be unique within the portfolio.
func (p *Portfolio) Add(b bond.Bond, opts ...PositionOption) error {
	if b == nil {
		return fmt.Errorf("Add: nil bond")
	}
	pos := Position{Bond: b, Quantity: 1}
	for _, opt := range opts {
		opt(&pos)
	}
	if math.IsNaN(pos.Quantity) || math.IsInf(pos.Quantity, 0) {
		return fmt.Errorf("Add: %s: quantity must be finite", pos.ID())
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	id := pos.ID()
	if _, ok := p.index[id]; ok {
		return fmt.Errorf("Add: %s: %w", id, ErrDuplicate)
	}
	p.index[id] = len(p.positions)
	p.positions = append(p.positions, pos)
	return nil
}

// Remove deletes the position with id and reports whether it existed.
func (p *Portfolio) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.index[id]
	if !ok {
		return false
	}
	p.positions = append(p.positions[:i], p.positions[i+1:]...)
	delete(p.index, id)
	for j := i; j < len(p.positions); j++ {
		p.index[p.positions[j].ID()] = j
	}
	return true
}

// Get returns the position with id.
func (p *Portfolio) Get(id string) (Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i, ok := p.index[id]
	if !ok {
		return Position{}, false
	}
	return p.positions[i], true
}

// Positions returns a snapshot of the positions in insertion order.
func (p *Portfolio) Positions() []Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Position, len(p.positions))
	copy(out, p.positions)
	return out
}

func (p *Portfolio) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.positions)
}

// GetCashFlows returns the flows of id dated after valuation, or the full schedule when
// valuation is the zero time.
func (p *Portfolio) GetCashFlows(id string, valuation time.Time) ([]bond.Cashflow, error) {
	pos, ok := p.Get(id)
	if !ok {
		return nil, fmt.Errorf("GetCashFlows: %s: %w", id, ErrNotFound)
	}
	if valuation.IsZero() {
		return pos.Bond.Cashflows(pos.Forwards), nil
	}
	return pos.Bond.RemainingCashflows(valuation, pos.Forwards), nil
}

// ComputeRisk returns the per-unit metrics of id. Pricing failures come back as
// *PricingError.
func (p *Portfolio) ComputeRisk(id string, crv *curve.Curve, valuation time.Time) (risk.Metrics, error) {
	pos, ok := p.Get(id)
	if !ok {
		return risk.Metrics{}, fmt.Errorf("ComputeRisk: %s: %w", id, ErrNotFound)
	}
	m, err := price(pos, crv, valuation, false)
	if err != nil {
		return risk.Metrics{}, &PricingError{ID: id, Err: err}
	}
	return m, nil
}
