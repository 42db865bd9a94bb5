package model

import "reflect"

// Variable declares a named slot owned by the declaring activity instance.
// Either Default or Expression supplies the initial value; Expression wins
// when both are set.
type Variable struct {
	Name       string       `json:"name" yaml:"name"`
	Type       reflect.Type `json:"-" yaml:"-"`
	Default    interface{}  `json:"default,omitempty" yaml:"default,omitempty"`
	Expression Expression   `json:"-" yaml:"-"`
}

// NewVariable creates a variable with a static default value.
func NewVariable(name string, value interface{}) *Variable {
	ret := &Variable{Name: name, Default: value}
	if value != nil {
		ret.Type = reflect.TypeOf(value)
	}
	return ret
}

// Value computes the initial value of the variable.
func (v *Variable) Value(env Env) (interface{}, error) {
	if v.Expression != nil {
		return v.Expression(env)
	}
	return v.Default, nil
}

// Variables is a collection of variables
type Variables []*Variable

// Lookup returns the variable with the supplied name
func (v Variables) Lookup(name string) *Variable {
	for _, candidate := range v {
		if candidate.Name == name {
			return candidate
		}
	}
	return nil
}
