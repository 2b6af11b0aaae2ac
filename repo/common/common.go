// Package common holds helpers for editing configs as generic JSON maps.
package common

import (
	"fmt"
	"strings"
)

// MapGetKV walks v along the dot separated key.
func MapGetKV(v map[string]interface{}, key string) (interface{}, error) {
	var cursor interface{} = v

	parts := strings.Split(key, ".")
	for i, part := range parts {
		sofar := strings.Join(parts[:i], ".")

		mcursor, ok := cursor.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s key is not a map", sofar)
		}

		cursor, ok = mcursor[part]
		if !ok {
			// Config keys are case insensitive on lookup.
			var matched bool
			for k, val := range mcursor {
				if strings.EqualFold(k, part) {
					cursor, matched = val, true
					break
				}
			}
			if !matched {
				return nil, fmt.Errorf("%s key has no attribute %s", sofar, part)
			}
		}
	}
	return cursor, nil
}

// MapSetKV sets the dot separated key in v, creating intermediate maps.
func MapSetKV(v map[string]interface{}, key string, value interface{}) error {
	var cursor interface{} = v

	parts := strings.Split(key, ".")
	for i, part := range parts {
		mcursor, ok := cursor.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%s key is not a map", strings.Join(parts[:i], "."))
		}

		for k := range mcursor {
			if k != part && strings.EqualFold(k, part) {
				part = k
				break
			}
		}

		if i == len(parts)-1 {
			mcursor[part] = value
			return nil
		}

		cursor, ok = mcursor[part]
		if !ok || cursor == nil {
			mcursor[part] = map[string]interface{}{}
			cursor = mcursor[part]
		}
	}
	return nil
}

// MapMergeDeep merges the right map into a copy of the left one. Nested maps
// are merged recursively; any other right value replaces the left one.
func MapMergeDeep(left, right map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(left))
	for k, v := range left {
		result[k] = v
	}

	for key, rightVal := range right {
		leftVal, found := result[key]
		if !found {
			result[key] = rightVal
			continue
		}

		leftMap, okLeft := leftVal.(map[string]interface{})
		rightMap, okRight := rightVal.(map[string]interface{})
		if okLeft && okRight {
			result[key] = MapMergeDeep(leftMap, rightMap)
		} else {
			result[key] = rightVal
		}
	}

	return result
}
