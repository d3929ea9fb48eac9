package task

import (
	"fmt"
	"strings"
)

// Condition is a comparison operator between an observed value and the
// configured threshold.
type Condition int

const (
	Eq Condition = iota
	Neq
	Gt
	Lt
)

// ParseCondition normalises the operator synonyms accepted in task files.
func ParseCondition(s string) (Condition, error) {
	switch strings.TrimSpace(s) {
	case "=", "equals":
		return Eq, nil
	case "!=", "different":
		return Neq, nil
	case ">", "greater":
		return Gt, nil
	case "<", "lower":
		return Lt, nil
	}
	return 0, fmt.Errorf("condition %q is not allowed, expected one of = equals > greater < lower != different", s)
}

func (c Condition) String() string {
	switch c {
	case Eq:
		return "="
	case Neq:
		return "!="
	case Gt:
		return ">"
	case Lt:
		return "<"
	}
	return "?"
}

// Evaluate reports whether value conforms to the condition against
// threshold. Numbers compare numerically regardless of their Go type;
// strings compare lexicographically. Ordered comparisons on mixed or
// unordered types return an error.
func (c Condition) Evaluate(value, threshold any) (bool, error) {
	if vf, vok := toFloat(value); vok {
		if tf, tok := toFloat(threshold); tok {
			return compareOrdered(c, vf, tf), nil
		}
		return false, fmt.Errorf("cannot compare number %v with threshold %v (%T)", value, threshold, threshold)
	}

	if vs, vok := value.(string); vok {
		if ts, tok := threshold.(string); tok {
			return compareOrdered(c, vs, ts), nil
		}
		return false, fmt.Errorf("cannot compare string %q with threshold %v (%T)", vs, threshold, threshold)
	}

	if vb, vok := value.(bool); vok {
		tb, tok := threshold.(bool)
		if !tok {
			return false, fmt.Errorf("cannot compare bool %v with threshold %v (%T)", vb, threshold, threshold)
		}
		switch c {
		case Eq:
			return vb == tb, nil
		case Neq:
			return vb != tb, nil
		}
		return false, fmt.Errorf("condition %s is not defined for booleans", c)
	}

	return false, fmt.Errorf("value %v (%T) is not comparable", value, value)
}

func compareOrdered[T float64 | string](c Condition, value, threshold T) bool {
	switch c {
	case Eq:
		return value == threshold
	case Neq:
		return value != threshold
	case Gt:
		return value > threshold
	case Lt:
		return value < threshold
	}
	return false
}

// toFloat widens any numeric type to float64 for comparison.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
