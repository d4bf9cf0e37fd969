package messaging

import (
	"fmt"
	"strings"
)

// MatchRoutingKey reports whether a dot-separated routing key matches a topic
// binding pattern. "*" matches exactly one word and "#" zero or more words.
func MatchRoutingKey(pattern, key string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchWords(pattern, key []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "#":
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(key); i++ {
				if matchWords(pattern[1:], key[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(key) == 0 {
				return false
			}
		default:
			if len(key) == 0 || pattern[0] != key[0] {
				return false
			}
		}
		pattern, key = pattern[1:], key[1:]
	}
	return len(key) == 0
}

// ValidateRoutingKey rejects empty words and wildcards in a publish key.
func ValidateRoutingKey(key string) error {
	if key == "" {
		return fmt.Errorf("routing key is empty")
	}
	for _, word := range strings.Split(key, ".") {
		if word == "" {
			return fmt.Errorf("routing key %q has an empty word", key)
		}
		if word == "*" || word == "#" {
			return fmt.Errorf("routing key %q contains a wildcard", key)
		}
	}
	return nil
}

func validatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("binding pattern is empty")
	}
	for _, word := range strings.Split(pattern, ".") {
		if word == "" {
			return fmt.Errorf("binding pattern %q has an empty word", pattern)
		}
	}
	return nil
}
