package model

import "fmt"

// Env resolves names declared by the enclosing scopes of an activity instance.
type Env interface {
	Get(name string) (interface{}, error)
	Set(name string, value interface{}) error
}

// Expression computes a value from the environment visible to an instance.
type Expression func(env Env) (interface{}, error)

// Literal returns an expression that always yields value.
func Literal(value interface{}) Expression {
	return func(Env) (interface{}, error) { return value, nil }
}

// Ref returns an expression reading the named variable or argument.
func Ref(name string) Expression {
	return func(env Env) (interface{}, error) {
		if env == nil {
			return nil, fmt.Errorf("unable to resolve %q: no environment", name)
		}
		return env.Get(name)
	}
}
