package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/quorumsafe/dkg-coordinator/model/dkg"
)

// InsertComplaint stores a complaint. Errors with storage.ErrAlreadyExists
// when the (complainant, accused, dealing index) tuple was already reported
// this epoch.
func InsertComplaint(complaint *dkg.Complaint) func(*badger.Txn) error {
	key := makePrefix(codeComplaint, complaint.Epoch, complaint.Complainant, complaint.Accused, complaint.DealingIndex)
	return insert(key, complaint)
}

// ComplaintsForEpoch collects all complaints filed in the given epoch.
func ComplaintsForEpoch(epoch dkg.EpochID, complaints *[]*dkg.Complaint) func(*badger.Txn) error {
	prefix := makePrefix(codeComplaint, epoch)

	*complaints = make([]*dkg.Complaint, 0, len(*complaints))
	iteration := func() (checkFunc, createFunc, handleFunc) {
		var complaint dkg.Complaint
		create := func() interface{} {
			return &complaint
		}
		handle := func() error {
			entry := complaint
			*complaints = append(*complaints, &entry)
			return nil
		}
		return hasPrefix(prefix), create, handle
	}

	return traverse(prefix, nil, iteration)
}

// InsertMismatchReport stores a verification key mismatch report. Errors
// with storage.ErrAlreadyExists when the (reporter, accused) pair was
// already reported this epoch.
func InsertMismatchReport(report *dkg.MismatchReport) func(*badger.Txn) error {
	key := makePrefix(codeMismatch, report.Epoch, report.Reporter, report.Accused)
	return insert(key, report)
}

// MismatchReportsForEpoch collects all mismatch reports filed in the given
// epoch.
func MismatchReportsForEpoch(epoch dkg.EpochID, reports *[]*dkg.MismatchReport) func(*badger.Txn) error {
	prefix := makePrefix(codeMismatch, epoch)

	*reports = make([]*dkg.MismatchReport, 0, len(*reports))
	iteration := func() (checkFunc, createFunc, handleFunc) {
		var report dkg.MismatchReport
		create := func() interface{} {
			return &report
		}
		handle := func() error {
			entry := report
			*reports = append(*reports, &entry)
			return nil
		}
		return hasPrefix(prefix), create, handle
	}

	return traverse(prefix, nil, iteration)
}
