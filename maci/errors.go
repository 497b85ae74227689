package maci

import "errors"

// ErrReplayFailed wraps every unrecoverable state-reconstruction failure
// described in §4.1: accumulator merge mismatch, or the poll not having
// ended yet (unless the caller suppressed that check for a test chain).
// Signature or decryption failures on an individual command are not
// wrapped in this error — they are dropped silently, per §4.1.
var ErrReplayFailed = errors.New("maci: replay failed")

// ErrPollNotEnded is wrapped by ErrReplayFailed when the poll end time has
// not yet passed and the caller did not opt out of the check.
var ErrPollNotEnded = errors.New("maci: poll has not ended")

// ErrAccumulatorMismatch is wrapped by ErrReplayFailed when the on-chain
// message accumulator root does not match the tree built by merging the
// replayed messages. The signup accumulator is not checked.
var ErrAccumulatorMismatch = errors.New("maci: accumulator merge mismatch")
