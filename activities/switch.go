package activities

import (
	"fmt"

	"github.com/viant/actflow/model"
	"github.com/viant/actflow/runtime/engine"
	"github.com/viant/actflow/tracking"
)

// SwitchNotMatched is the name of the custom tracking record emitted when no
// case and no default matched.
const SwitchNotMatched = "switchNotMatched"

// Case maps a key to an activity.
type Case[K comparable] struct {
	Key  K
	Body engine.Activity
}

// Switch schedules the case matching the value of Expression. A nil value
// selects NullCase. A value matches a case only when it holds a K equal to the
// case key. Without a match Default runs; without Default the switch completes
// without scheduling anything.
type Switch[K comparable] struct {
	engine.Base
	Expression model.Expression
	Cases      []*Case[K]
	NullCase   engine.Activity
	Default    engine.Activity
}

func (s *Switch[K]) Children() []engine.Activity {
	var ret []engine.Activity
	for _, c := range s.Cases {
		ret = append(ret, c.Body)
	}
	if s.NullCase != nil {
		ret = append(ret, s.NullCase)
	}
	if s.Default != nil {
		ret = append(ret, s.Default)
	}
	return ret
}

func (s *Switch[K]) Validate() error {
	if s.Expression == nil {
		return fmt.Errorf("expression was empty")
	}
	seen := map[K]bool{}
	for _, c := range s.Cases {
		if c == nil || c.Body == nil {
			return fmt.Errorf("case body was nil")
		}
		if seen[c.Key] {
			return fmt.Errorf("%w: %v", ErrDuplicateCase, c.Key)
		}
		seen[c.Key] = true
	}
	return nil
}

func (s *Switch[K]) Execute(ctx *engine.Context) error {
	value, err := ctx.Evaluate(s.Expression)
	if err != nil {
		return err
	}
	body := s.match(value)
	if body == nil {
		body = s.Default
	}
	if body == nil {
		ctx.Track(tracking.Custom(SwitchNotMatched, map[string]interface{}{"value": value}))
		return nil
	}
	_, err = ctx.ScheduleActivity(body, nil)
	return err
}

func (s *Switch[K]) match(value interface{}) engine.Activity {
	if value == nil {
		return s.NullCase
	}
	key, ok := value.(K)
	if !ok {
		return nil
	}
	for _, c := range s.Cases {
		if c.Key == key {
			return c.Body
		}
	}
	return nil
}
