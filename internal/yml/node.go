// Package yml converts YAML text into plain Go values.
package yml

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type (
	Node yaml.Node
)

// Interface returns the node as string, bool, int, float64, nil,
// map[string]interface{} or []interface{}.
func (n *Node) Interface() interface{} {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil
		}
		return (*Node)(n.Content[0]).Interface()
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!bool":
			value, _ := strconv.ParseBool(n.Value)
			return value
		case "!!null":
			return nil
		case "!!float":
			value, _ := strconv.ParseFloat(n.Value, 64)
			return value
		case "!!int":
			value, err := strconv.Atoi(n.Value)
			if err != nil {
				return n.Value
			}
			return value
		default:
			return n.Value
		}
	case yaml.MappingNode:
		var aMap = make(map[string]interface{})
		for i := 0; i+1 < len(n.Content); i += 2 {
			aMap[n.Content[i].Value] = (*Node)(n.Content[i+1]).Interface()
		}
		return aMap
	case yaml.SequenceNode:
		var aSlice = make([]interface{}, 0, len(n.Content))
		for i := 0; i < len(n.Content); i++ {
			aSlice = append(aSlice, (*Node)(n.Content[i]).Interface())
		}
		return aSlice
	case yaml.AliasNode:
		if n.Alias != nil {
			return (*Node)(n.Alias).Interface()
		}
	}
	return nil
}

// Parse decodes text as a YAML value.
func Parse(text string) (interface{}, error) {
	node := &yaml.Node{}
	if err := yaml.Unmarshal([]byte(text), node); err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", text, err)
	}
	return (*Node)(node).Interface(), nil
}

// ParseAssignments parses name=value pairs; values are YAML.
func ParseAssignments(pairs []string) (map[string]interface{}, error) {
	ret := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		index := strings.Index(pair, "=")
		if index <= 0 {
			return nil, fmt.Errorf("invalid assignment %q, expected name=value", pair)
		}
		value, err := Parse(pair[index+1:])
		if err != nil {
			return nil, err
		}
		ret[strings.TrimSpace(pair[:index])] = value
	}
	return ret, nil
}
