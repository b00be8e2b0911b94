package runtime

import (
	"errors"
	"fmt"
)

var (
	// ErrGroupTooSmall is returned when n < 2t+1.
	ErrGroupTooSmall = errors.New("runtime needs n >= 2t+1")
	// ErrTransportClosed poisons every pending share when the network
	// interface reports a terminal fault. The program can no longer make
	// progress but never hangs.
	ErrTransportClosed = errors.New("transport closed")
	// ErrNoPRSS is returned by operations needing pseudo-random secret
	// sharing keys when the config carries none.
	ErrNoPRSS = errors.New("no prss key material configured")
	// ErrBroadcastUnavailable is returned by the broadcast operations when
	// the group is too small for Byzantine reliable broadcast.
	ErrBroadcastUnavailable = errors.New("reliable broadcast needs n >= 3t+1")
	// ErrFieldTooSmall is returned by bit decomposition when the modulus
	// leaves no room for the statistical mask.
	ErrFieldTooSmall = errors.New("modulus too small for masked bit decomposition")
)

// MaliciousError reports players caught deviating from the protocol, for
// example by opening a share inconsistent with its earlier commitment. The
// computation that observed the deviation fails; the accusation is attached
// so the application can exclude the players and restart.
type MaliciousError struct {
	Accused []int32
}

func (e *MaliciousError) Error() string {
	return fmt.Sprintf("players %v deviated from the protocol", e.Accused)
}
