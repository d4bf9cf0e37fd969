package cache

import (
	"fmt"
	"net/url"
)

const (
	ScopePosts  = "posts"
	ScopeSearch = "search"
)

// Keys builds deterministic cache keys under one namespace.
//
//	<ns>:ver:<scope>                  version counter of a list scope
//	<ns>:<scope>:v<n>:<sorted query>  list or search result page
//	<ns>:<kind>:<id>                  single entity
type Keys struct {
	Namespace string
}

func NewKeys(namespace string) Keys {
	if namespace == "" {
		namespace = "socmed"
	}
	return Keys{Namespace: namespace}
}

func (k Keys) Detail(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", k.Namespace, kind, id)
}

func (k Keys) DetailPattern(kind string) string {
	return fmt.Sprintf("%s:%s:*", k.Namespace, kind)
}

func (k Keys) Version(scope string) string {
	return fmt.Sprintf("%s:ver:%s", k.Namespace, scope)
}

// List embeds the scope version, so bumping the version orphans every key
// built from the previous one. url.Values.Encode sorts by parameter name.
func (k Keys) List(scope string, version int64, params url.Values) string {
	return fmt.Sprintf("%s:%s:v%d:%s", k.Namespace, scope, version, params.Encode())
}

func (k Keys) ScopePattern(scope string) string {
	return fmt.Sprintf("%s:%s:*", k.Namespace, scope)
}
