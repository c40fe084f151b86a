package termination

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// GoalCondition wraps an arbitrary evaluator as a GOAL stop rule.
func GoalCondition(reason string, eval func(ctx context.Context, snap Snapshot) (bool, error)) Condition {
	return Condition{
		Type:      ReasonGoal,
		Reason:    reason,
		Evaluate:  eval,
		Timestamp: time.Now(),
	}
}

// VariableCondition stops once the named scope variable exists and the
// predicate accepts its value.
func VariableCondition(name string, pred func(value any) bool) Condition {
	return Condition{
		Type:   ReasonVariable,
		Reason: fmt.Sprintf("variable %s met condition", name),
		Evaluate: func(_ context.Context, snap Snapshot) (bool, error) {
			v, ok := snap.Variables[name]
			if !ok {
				return false, nil
			}
			return pred(v), nil
		},
		Timestamp: time.Now(),
	}
}

// OutputCondition stops once every named output variable has been emitted.
func OutputCondition(names ...string) Condition {
	return Condition{
		Type:   ReasonOutput,
		Reason: fmt.Sprintf("outputs emitted: %s", strings.Join(names, ", ")),
		Evaluate: func(_ context.Context, snap Snapshot) (bool, error) {
			for _, name := range names {
				if _, ok := snap.Emitted[name]; !ok {
					return false, nil
				}
			}
			return len(names) > 0, nil
		},
		Timestamp: time.Now(),
	}
}
