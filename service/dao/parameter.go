package dao

// Parameter is a named List criterion.
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter creates a parameter; more than one value matches any of them.
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}
