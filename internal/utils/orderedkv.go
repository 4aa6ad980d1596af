package utils

import (
	"bytes"
	"encoding/json"
	"sort"
)

type OrderedKV[T any] struct {
	Value T
	Order int64
}

// OrderedKVMap marshals as a JSON object whose keys follow Order, with ties
// broken by key.
type OrderedKVMap[T any] map[string]OrderedKV[T]

// Set stores value under key unless key is already present with a lower order.
func (om OrderedKVMap[T]) Set(key string, value T, order int64) {
	if cur, ok := om[key]; ok && cur.Order < order {
		cur.Value = value
		om[key] = cur
		return
	}
	om[key] = OrderedKV[T]{Value: value, Order: order}
}

func (om OrderedKVMap[T]) Keys() []string {
	keys := make([]string, 0, len(om))
	for k := range om {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := om[keys[i]], om[keys[j]]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (om OrderedKVMap[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range om.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valueBytes, err := json.Marshal(om[key].Value)
		if err != nil {
			return nil, err
		}
		buf.Write(valueBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
