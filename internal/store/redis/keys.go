package redis

const (
	// KeyPrefixIdentity is the prefix for identity keys
	KeyPrefixIdentity = "checkstore:identity:"
	// KeyAllIdentities is the key for the set of all identity keys
	KeyAllIdentities = "checkstore:identities:all"
)

// IdentityKey returns the Redis key for an entity key ("host" or "host/service")
func IdentityKey(entity string) string {
	return KeyPrefixIdentity + entity
}

// AllIdentitiesKey returns the key for the set of all entity keys
func AllIdentitiesKey() string {
	return KeyAllIdentities
}

