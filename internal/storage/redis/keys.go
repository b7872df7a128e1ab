package redis

import "fmt"

// Key prefix for all client state
const keyPrefix = "arena"

// stateKey returns the Redis key for a state entry in a namespace
func stateKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s:state:%s", keyPrefix, namespace, key)
}
