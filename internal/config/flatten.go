package config

import (
	"maps"
	"strings"
)

// Dotted keys whose values are shown masked by `config list` and `config get`.
var secretKeys = map[string]bool{
	"director.token": true,
}

// IsSecretKey reports whether key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Flatten turns nested objects into dotted keys:
// {"director": {"url": "ws://h"}} becomes {"director.url": "ws://h"}.
// Empty objects contribute no keys.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if prefix != "" {
				k = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(k, child)
				continue
			}
			out[k] = v
		}
	}
	walk("", m)
	return out
}

// Unflatten is the inverse of Flatten. A scalar sitting where a later key
// needs an object is replaced by that object.
func Unflatten(flat map[string]any) map[string]any {
	root := make(map[string]any)
	for key, v := range flat {
		node := root
		for {
			head, rest, nested := strings.Cut(key, ".")
			if !nested {
				node[head] = v
				break
			}
			child, ok := node[head].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[head] = child
			}
			node, key = child, rest
		}
	}
	return root
}

// MaskSecrets returns a copy of flat with each secret reduced to "***" plus
// its last four characters. Empty and non-string secrets pass through.
func MaskSecrets(flat map[string]any) map[string]any {
	out := maps.Clone(flat)
	if out == nil {
		out = make(map[string]any)
	}
	for key := range secretKeys {
		if s, ok := out[key].(string); ok && s != "" {
			out[key] = mask(s)
		}
	}
	return out
}

func mask(s string) string {
	return "***" + s[max(len(s)-4, 0):]
}
