package dkg

import (
	"errors"
	"fmt"
)

var (
	// ErrTerminalState is returned by an advancement attempt on a terminal
	// epoch; only a reset exits InProgress.
	ErrTerminalState = errors.New("epoch is in terminal state")

	// ErrAlreadyExecuted is returned when executing a proposal whose effect
	// was already applied. Execution is idempotent, so an agent that already
	// completed the action may swallow this.
	ErrAlreadyExecuted = errors.New("proposal already executed")
)

// InvalidEpochStateError indicates that an operation was attempted in a
// phase that does not admit it. Agents treat this as a stale view of the
// epoch: re-sync and re-decide.
type InvalidEpochStateError struct {
	Current   EpochState
	Operation string
}

func NewInvalidEpochStateError(current EpochState, operation string) error {
	return InvalidEpochStateError{Current: current, Operation: operation}
}

func (e InvalidEpochStateError) Error() string {
	return fmt.Sprintf("operation %s is not admissible in epoch state %s", e.Operation, e.Current)
}

func IsInvalidEpochStateError(err error) bool {
	var target InvalidEpochStateError
	return errors.As(err, &target)
}

// InvalidTransitionError indicates an attempt to move the epoch state
// anywhere other than its immediate successor.
type InvalidTransitionError struct {
	From EpochState
	To   EpochState
}

func NewInvalidTransitionError(from, to EpochState) error {
	return InvalidTransitionError{From: from, To: to}
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid epoch state transition from %s to %s", e.From, e.To)
}

func IsInvalidTransitionError(err error) bool {
	var target InvalidTransitionError
	return errors.As(err, &target)
}

// PhaseNotReadyError indicates that the current phase's admission predicate
// does not hold yet, so the epoch cannot advance.
type PhaseNotReadyError struct {
	State  EpochState
	Reason string
}

func NewPhaseNotReadyErrorf(state EpochState, msg string, args ...interface{}) error {
	return PhaseNotReadyError{State: state, Reason: fmt.Sprintf(msg, args...)}
}

func (e PhaseNotReadyError) Error() string {
	return fmt.Sprintf("cannot advance out of %s: %s", e.State, e.Reason)
}

func IsPhaseNotReadyError(err error) bool {
	var target PhaseNotReadyError
	return errors.As(err, &target)
}

// DuplicateRegistrationError indicates that an address attempted to register
// twice within the same epoch.
type DuplicateRegistrationError struct {
	Address Address
}

func NewDuplicateRegistrationError(address Address) error {
	return DuplicateRegistrationError{Address: address}
}

func (e DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("dealer %s is already registered in this epoch", e.Address)
}

func IsDuplicateRegistrationError(err error) bool {
	var target DuplicateRegistrationError
	return errors.As(err, &target)
}

// AlreadySubmittedError indicates a second submission for a key that admits
// at most one, e.g. a (epoch, dealer, dealing index) tuple or a repeated
// complaint. Agents swallow it when the prior submission matches intent.
type AlreadySubmittedError struct {
	error
}

func NewAlreadySubmittedErrorf(msg string, args ...interface{}) error {
	return AlreadySubmittedError{error: fmt.Errorf(msg, args...)}
}

func (e AlreadySubmittedError) Unwrap() error {
	return e.error
}

func IsAlreadySubmittedError(err error) bool {
	var target AlreadySubmittedError
	return errors.As(err, &target)
}

// UnauthorizedDealerError indicates the caller lacks the dealer role required
// by the operation: unregistered, deactivated, or not in the voter set.
type UnauthorizedDealerError struct {
	error
}

func NewUnauthorizedDealerErrorf(msg string, args ...interface{}) error {
	return UnauthorizedDealerError{error: fmt.Errorf(msg, args...)}
}

func (e UnauthorizedDealerError) Unwrap() error {
	return e.error
}

func IsUnauthorizedDealerError(err error) bool {
	var target UnauthorizedDealerError
	return errors.As(err, &target)
}

// InvalidProofError indicates cryptographic rejection of a submitted
// artifact. Agents treat the offending artifact as unusable.
type InvalidProofError struct {
	error
}

func NewInvalidProofErrorf(msg string, args ...interface{}) error {
	return InvalidProofError{error: fmt.Errorf(msg, args...)}
}

func (e InvalidProofError) Unwrap() error {
	return e.error
}

func IsInvalidProofError(err error) bool {
	var target InvalidProofError
	return errors.As(err, &target)
}

// IndexOutOfBoundsError indicates a dealing index outside [0, D).
type IndexOutOfBoundsError struct {
	Index DealingIndex
	Max   DealingIndex
}

func NewIndexOutOfBoundsError(index, max DealingIndex) error {
	return IndexOutOfBoundsError{Index: index, Max: max}
}

func (e IndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("dealing index %d is out of bounds [0, %d)", e.Index, e.Max)
}

func IsIndexOutOfBoundsError(err error) bool {
	var target IndexOutOfBoundsError
	return errors.As(err, &target)
}

// NodeIndexRecoveryError indicates that a registration event was missing the
// node_index attribute or carried one that could not be parsed. The agent
// treats this as fatal for the registration action.
type NodeIndexRecoveryError struct {
	Reason string
}

func NewNodeIndexRecoveryError(reason string) error {
	return NodeIndexRecoveryError{Reason: reason}
}

func (e NodeIndexRecoveryError) Error() string {
	return fmt.Sprintf("could not recover node index from event: %s", e.Reason)
}

func IsNodeIndexRecoveryError(err error) bool {
	var target NodeIndexRecoveryError
	return errors.As(err, &target)
}
