package operation

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// Keyspace prefixes. Each constant opens one ordered namespace; composite
// keys append big-endian fixed-width integers. Addresses are variable
// length and are framed with a big-endian length so that the keys of one
// dealer can never share a prefix with the keys of a dealer whose address
// extends it.
const (
	// contract state
	codeEpoch            = 1  // singleton current epoch
	codeNodeIndexCounter = 2  // singleton node index allocator (per epoch)
	codeDealerByAddress  = 3  // (epoch, address) -> DealerRecord
	codeDealerByIndex    = 4  // (epoch, index) -> address
	codeDealing          = 5  // (epoch, address, index) -> Dealing
	codeProposalCounter  = 6  // singleton proposal id allocator
	codeProposal         = 7  // (id) -> Proposal
	codeComplaint        = 8  // (epoch, complainant, accused, index) -> Complaint
	codeVKShare          = 9  // (epoch, address) -> VKShare
	codeMismatch         = 10 // (epoch, reporter, accused) -> MismatchReport

	// agent keystore (separate database)
	codeMyKeyPair      = 32 // (epoch) -> serialized BTE key pair
	codeMyPrivateShare = 33 // (epoch) -> serialized private share
)

func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint8:
		return []byte{i}
	case uint32:
		val := make([]byte, 4)
		binary.BigEndian.PutUint32(val, i)
		return val
	case uint64:
		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, i)
		return val
	case string:
		return framed([]byte(i))
	case dkg.Address:
		return framed([]byte(i))
	case []byte:
		return i
	default:
		panic(fmt.Sprintf("unsupported key type (%T)", v))
	}
}

// framed length-prefixes a variable-length key component, so that it can be
// followed by further key material or used as an iteration prefix without
// ambiguity.
func framed(val []byte) []byte {
	if len(val) > math.MaxUint16 {
		panic(fmt.Sprintf("key component too long (%d bytes)", len(val)))
	}
	out := make([]byte, 2, 2+len(val))
	binary.BigEndian.PutUint16(out, uint16(len(val)))
	return append(out, val...)
}
