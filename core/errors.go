package core

import "errors"

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// Admission errors.
var (
	ErrGameEnded       = errors.New("game has ended")
	ErrGameNotStarted  = errors.New("game has not started")
	ErrAlreadyAdmitted = errors.New("user already admitted")
	ErrNotAdmitted     = errors.New("user not admitted")
	ErrBadAdmissionSig = errors.New("admission signature invalid")
)

// Topology errors.
var (
	ErrNeighbourNotMined = errors.New("neighbour block not mined")
	ErrBlockAlreadyMined = errors.New("block already mined")
	ErrBadBlockType      = errors.New("block type not mineable")
)

// Proof errors. Batch verification failures are binary: the engine never
// reports which proof in a batch failed.
var (
	ErrDefogMismatch = errors.New("defog check failed")
	ErrPowMismatch   = errors.New("proof of work check failed")
	ErrProofInvalid  = errors.New("zk proof invalid")
	ErrFlagsMismatch = errors.New("proof flags mismatch")
	ErrBadBatchShape = errors.New("malformed batch shape")
)

// Quota errors.
var (
	ErrMustUnlockDepth    = errors.New("batch completes the depth, use mine-and-unlock")
	ErrMustNotUnlockDepth = errors.New("batch does not complete the depth")
	ErrDepthAlreadyOpen   = errors.New("depth opening block already mined")
	ErrInsufficientEnergy = errors.New("insufficient energy")
	ErrInsufficientPool   = errors.New("insufficient reward pool balance")
)

// ErrLedgerInconsistent signals a violated accounting invariant. It should
// never occur under correct operation; observing it indicates an upstream
// accounting bug, not a user error.
var ErrLedgerInconsistent = errors.New("reward ledger inconsistent")

// Access errors.
var (
	ErrPaused           = errors.New("engine is paused")
	ErrPermissionDenied = errors.New("caller lacks required capability")
)
