package strategy

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quantfold/backtester/internal/candle"
)

// Operand is one side of a comparison: a literal number, a price field
// (close, open, high, low, or price as an alias for close), or the alias
// of an indicator declared in the strategy.
type Operand struct {
	Name      string
	Literal   float64
	IsLiteral bool
}

// UnmarshalJSON accepts either a JSON number or a string.
func (o *Operand) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		o.Literal = num
		o.IsLiteral = true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("operand must be a number or a string: %w", err)
	}
	o.Name = s
	return nil
}

// MarshalJSON writes the operand back in its source form.
func (o Operand) MarshalJSON() ([]byte, error) {
	if o.IsLiteral {
		return json.Marshal(o.Literal)
	}
	return json.Marshal(o.Name)
}

// UnmarshalYAML accepts either a YAML number or a string.
func (o *Operand) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!int", "!!float":
		if err := value.Decode(&o.Literal); err != nil {
			return err
		}
		o.IsLiteral = true
		return nil
	default:
		return value.Decode(&o.Name)
	}
}

// Condition is a node of the strategy condition tree: an AND group, an OR
// group, or a single comparison of two operands.
type Condition struct {
	All   []*Condition `json:"all,omitempty" yaml:"all,omitempty"`
	Any   []*Condition `json:"any,omitempty" yaml:"any,omitempty"`
	Op    string       `json:"op,omitempty" yaml:"op,omitempty"`
	Left  *Operand     `json:"left,omitempty" yaml:"left,omitempty"`
	Right *Operand     `json:"right,omitempty" yaml:"right,omitempty"`
}

// Resolver maps operands to numeric values at a bar index. Series holds one
// precomputed slice per indicator alias, built once before the run.
type Resolver struct {
	Candles []candle.Candle
	Series  map[string][]float64
}

// Value resolves an operand at bar i. Unknown names, out-of-range indexes,
// and warm-up gaps all resolve to NaN, which comparisons treat as false.
func (r *Resolver) Value(op *Operand, i int) float64 {
	if op == nil {
		return math.NaN()
	}
	if op.IsLiteral {
		return op.Literal
	}
	if r == nil || i < 0 || i >= len(r.Candles) {
		return math.NaN()
	}

	switch strings.ToLower(op.Name) {
	case "close", "price":
		return r.Candles[i].Close
	case "open":
		return r.Candles[i].Open
	case "high":
		return r.Candles[i].High
	case "low":
		return r.Candles[i].Low
	}

	if series, ok := r.Series[op.Name]; ok {
		if i < len(series) {
			return series[i]
		}
	}
	return math.NaN()
}

// EvaluateCondition evaluates a condition tree at bar i. Evaluation is
// fail-closed: nil nodes, unknown operators, NaN operands, and cross
// operators on the first bar all yield false. Risk operators
// (stopLossPct, takeProfitPct, trailingStopPct) are handled outside the
// tree and also yield false here.
func EvaluateCondition(c *Condition, r *Resolver, i int) bool {
	if c == nil {
		return false
	}

	if c.All != nil {
		for _, child := range c.All {
			if !EvaluateCondition(child, r, i) {
				return false
			}
		}
		return true
	}
	if c.Any != nil {
		for _, child := range c.Any {
			if EvaluateCondition(child, r, i) {
				return true
			}
		}
		return false
	}

	switch c.Op {
	case "stopLossPct", "takeProfitPct", "trailingStopPct":
		return false
	}

	left := r.Value(c.Left, i)
	right := r.Value(c.Right, i)
	if math.IsNaN(left) || math.IsNaN(right) {
		return false
	}

	switch c.Op {
	case ">", "gt":
		return left > right
	case "<", "lt":
		return left < right
	case ">=", "gte":
		return left >= right
	case "<=", "lte":
		return left <= right
	case "==", "equals", "eq":
		return left == right
	case "crossesAbove":
		if i == 0 {
			return false
		}
		prevLeft := r.Value(c.Left, i-1)
		prevRight := r.Value(c.Right, i-1)
		if math.IsNaN(prevLeft) || math.IsNaN(prevRight) {
			return false
		}
		return prevLeft <= prevRight && left > right
	case "crossesBelow":
		if i == 0 {
			return false
		}
		prevLeft := r.Value(c.Left, i-1)
		prevRight := r.Value(c.Right, i-1)
		if math.IsNaN(prevLeft) || math.IsNaN(prevRight) {
			return false
		}
		return prevLeft >= prevRight && left < right
	}
	return false
}
