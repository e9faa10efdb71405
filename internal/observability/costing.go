package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/odyssey-costing/internal/inventory"
)

// Costing counts stock move outcomes. It implements inventory.Metrics and
// tolerates a nil receiver.
type Costing struct {
	moves        *prometheus.CounterVec
	insufficient *prometheus.CounterVec
	shortfalls   prometheus.Counter
	shortfallQty prometheus.Counter
	layers       prometheus.Counter
}

var _ inventory.Metrics = (*Costing)(nil)

// NewCosting registers the costing collectors.
func NewCosting(registerer prometheus.Registerer) *Costing {
	c := &Costing{
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_costing_moves_total",
			Help: "Posted stock moves by type and direction.",
		}, []string{"type", "direction"}),
		insufficient: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_costing_insufficient_stock_total",
			Help: "Outbound requests refused for lack of stock.",
		}, []string{"type"}),
		shortfalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odyssey_costing_negative_shortfall_total",
			Help: "Outbound moves that went negative at zero cost.",
		}),
		shortfallQty: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odyssey_costing_negative_shortfall_qty_total",
			Help: "Base-unit quantity issued beyond available layers.",
		}),
		layers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odyssey_costing_layers_consumed_total",
			Help: "Layer slices drawn by outbound moves.",
		}),
	}
	registerer.MustRegister(c.moves, c.insufficient, c.shortfalls, c.shortfallQty, c.layers)
	return c
}

func (c *Costing) MovePosted(moveType string, inbound bool) {
	if c == nil {
		return
	}
	direction := "out"
	if inbound {
		direction = "in"
	}
	c.moves.WithLabelValues(moveType, direction).Inc()
}

func (c *Costing) InsufficientStock(moveType string) {
	if c == nil {
		return
	}
	c.insufficient.WithLabelValues(moveType).Inc()
}

func (c *Costing) ShortfallAccepted(qty float64) {
	if c == nil {
		return
	}
	c.shortfalls.Inc()
	if qty > 0 {
		c.shortfallQty.Add(qty)
	}
}

func (c *Costing) LayersConsumed(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.layers.Add(float64(n))
}
