package listener

import (
	"errors"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/sealbridge/orchestrator/internal/domain/chain"
)

// EvaluateFilter evaluates a subscription's filter expression against an
// event. Empty filter matches everything. The event type and attributes are
// exposed as expression parameters.
func EvaluateFilter(filter string, ev chain.Event) (bool, error) {
	f := strings.TrimSpace(filter)
	if f == "" {
		return true, nil
	}
	switch strings.ToLower(f) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	params := map[string]interface{}{
		"type":     ev.Type,
		"tx_hash":  ev.TxHash,
		"sequence": float64(ev.Sequence),
	}
	for k, v := range ev.Attributes {
		params[k] = v
	}

	expr, err := govaluate.NewEvaluableExpression(f)
	if err != nil {
		return false, err
	}
	result, err := expr.Evaluate(params)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, errors.New("filter did not evaluate to boolean")
	}
	return b, nil
}
