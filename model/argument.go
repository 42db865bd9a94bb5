package model

import "reflect"

// Direction defines how an argument value flows between parent and child.
type Direction int

const (
	// In arguments are evaluated in the parent scope when the child is scheduled.
	In Direction = iota
	// Out arguments are copied to the parent's Target when the child closes.
	Out
)

// Argument is a declared input or output of an activity.
type Argument struct {
	Name       string       `json:"name" yaml:"name"`
	Direction  Direction    `json:"direction,omitempty" yaml:"direction,omitempty"`
	Type       reflect.Type `json:"-" yaml:"-"`
	Default    interface{}  `json:"default,omitempty" yaml:"default,omitempty"`
	Expression Expression   `json:"-" yaml:"-"`
	// Target is the parent-scope name an Out argument is written to.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
}

// InArgument creates an input argument bound to an expression.
func InArgument(name string, expr Expression) *Argument {
	return &Argument{Name: name, Direction: In, Expression: expr}
}

// OutArgument creates an output argument copied into target on completion.
func OutArgument(name, target string) *Argument {
	return &Argument{Name: name, Direction: Out, Target: target}
}

// Value computes the value bound to the argument when the child is scheduled.
func (a *Argument) Value(env Env) (interface{}, error) {
	if a.Direction == In && a.Expression != nil {
		return a.Expression(env)
	}
	return a.Default, nil
}

// Arguments is a collection of arguments
type Arguments []*Argument

// Lookup returns the argument with the supplied name
func (a Arguments) Lookup(name string) *Argument {
	for _, candidate := range a {
		if candidate.Name == name {
			return candidate
		}
	}
	return nil
}
