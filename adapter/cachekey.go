package adapter

import (
	"encoding/json"
	"fmt"
)

// cacheKey builds the deterministic storage key for a cached response.
//
// The key is namespace:cache:endpoint:op[:detail] where detail is the
// canonical JSON form of the call's distinguishing argument (id, id list, or
// query params). encoding/json writes map keys in sorted order, so identical
// arguments always produce the identical key, and the endpoint segment comes
// before the operation so a whole endpoint can be dropped by prefix.
func cacheKey(namespace, endpoint string, op Operation, arg any) string {
	base := fmt.Sprintf("%s:cache:%s:%s", namespace, endpoint, op)
	if arg == nil {
		return base
	}
	detail, err := json.Marshal(arg)
	if err != nil {
		// non-serializable args cannot be cached deterministically;
		// fall back to the bare operation key
		return base
	}
	return base + ":" + string(detail)
}

// endpointPrefix is the key prefix covering every cached response for one
// endpoint within a namespace.
func endpointPrefix(namespace, endpoint string) string {
	return fmt.Sprintf("%s:cache:%s:", namespace, endpoint)
}

// namespacePrefix is the key prefix covering every cached response in a
// namespace.
func namespacePrefix(namespace string) string {
	return namespace + ":cache:"
}
