package dkg

// DealerRecord is the on-chain registration record of one dealer within one
// epoch. Exactly one record exists per (epoch, address) iff the address
// registered during PublicKeySubmission.
type DealerRecord struct {
	// Index is assigned monotonically in registration order, starting at 1.
	Index NodeIndex

	Address Address

	// BTEPublicKeyWithProof is the dealer's encryption key for receiving
	// shares, bundled with its proof of possession. The coordinator treats
	// it as opaque bytes; only the crypto capability set inspects it.
	BTEPublicKeyWithProof []byte

	// IdentityKey is the dealer's long-term identity public key.
	IdentityKey []byte

	// AnnounceAddress is where the dealer serves its off-chain endpoints.
	AnnounceAddress string

	RegisteredAt EpochID

	// Active is true until a complaint or mismatch proposal against the
	// dealer passes and is executed. An inactive dealer contributes no share
	// to the final key.
	Active bool
}

// Dealing records one committed dealing. At most one dealing may ever exist
// per (epoch, dealer, index).
type Dealing struct {
	Epoch  EpochID
	Dealer Address
	Index  DealingIndex

	// Commitment is opaque to the coordinator; verification happens off-chain
	// and produces evidence for the complaint book.
	Commitment []byte
}
