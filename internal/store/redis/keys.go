package redis

const (
	// KeyPrefix namespaces every key and channel the gateway touches.
	KeyPrefix = "portico:"
	// ChannelRevocations carries revoked credential hashes between replicas.
	ChannelRevocations = KeyPrefix + "auth:revoked"
)

// RevocationChannel returns the pub/sub channel for revocations.
func RevocationChannel() string {
	return ChannelRevocations
}
