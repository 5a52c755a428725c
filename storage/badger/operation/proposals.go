package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// InsertProposal stores a newly opened proposal under its id.
func InsertProposal(proposal *dkg.Proposal) func(*badger.Txn) error {
	return insert(makePrefix(codeProposal, proposal.ID), proposal)
}

// UpdateProposal replaces a stored proposal, e.g. after a vote or close.
func UpdateProposal(proposal *dkg.Proposal) func(*badger.Txn) error {
	return update(makePrefix(codeProposal, proposal.ID), proposal)
}

// RetrieveProposal retrieves the proposal with the given id.
func RetrieveProposal(id uint64, proposal *dkg.Proposal) func(*badger.Txn) error {
	return retrieve(makePrefix(codeProposal, id), proposal)
}

// ProposalsList collects proposals in id order, starting strictly after the
// startAfter id. A limit of 0 means no limit.
func ProposalsList(startAfter uint64, limit uint, proposals *[]*dkg.Proposal) func(*badger.Txn) error {
	prefix := makePrefix(codeProposal)

	var start []byte
	if startAfter > 0 {
		start = makePrefix(codeProposal, startAfter)
	}

	*proposals = make([]*dkg.Proposal, 0, len(*proposals))
	iteration := func() (checkFunc, createFunc, handleFunc) {
		var proposal dkg.Proposal
		create := func() interface{} {
			return &proposal
		}
		handle := func() error {
			entry := proposal
			*proposals = append(*proposals, &entry)
			if limit > 0 && uint(len(*proposals)) >= limit {
				return errStopIteration
			}
			return nil
		}
		return hasPrefix(prefix), create, handle
	}

	return traverse(prefix, start, iteration)
}
