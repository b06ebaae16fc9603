package fastimport

import "errors"

var (
	ErrUnknownBranch     = errors.New("fastimport: unknown branch")
	ErrDuplicateBranch   = errors.New("fastimport: duplicate branch")
	ErrInvalidBranch     = errors.New("fastimport: invalid branch declaration")
	ErrSpawnFailure      = errors.New("fastimport: could not launch import tool")
	ErrProcessTerminated = errors.New("fastimport: import tool terminated")
	ErrProcessExit       = errors.New("fastimport: import tool exited with error")
	ErrShutdownTimeout   = errors.New("fastimport: timed out waiting for import tool")
	ErrShortWrite        = errors.New("fastimport: blob content shorter than declared length")
	ErrContentOverflow   = errors.New("fastimport: blob content longer than declared length")
	ErrMarkCollision     = errors.New("fastimport: commit mark collides with blob mark")
	ErrTransactionOpen   = errors.New("fastimport: another transaction is open")
	ErrTransactionClosed = errors.New("fastimport: transaction already committed or abandoned")
	ErrRepositoryClosed  = errors.New("fastimport: repository already finalized")
)

// IsFatal reports whether err leaves a repository unusable. Only an unknown
// branch can be skipped over by the caller.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrUnknownBranch)
}
