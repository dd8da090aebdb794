package dkgtypes

import (
	"errors"
	"fmt"
)

// Fault kinds. Every error returned for a rejected message or an incomplete operation matches exactly one of them
// via errors.Is.
var (
	// ErrMalformedMessage: undecodable input, duplicates, undecryptable payloads. Never retried.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrProtocolFault: a well-formed message that proves misbehavior of the blamed player.
	ErrProtocolFault = errors.New("protocol fault")

	// ErrInsufficientQuorum: not enough input yet, the operation may succeed once more messages arrived.
	ErrInsufficientQuorum = errors.New("insufficient quorum")
)

// NoPlayer is used as player index of faults that are not attributable.
const NoPlayer = -1

// FaultError tags an error with its fault kind and the index of the offending player.
//
// Dealer is set when the fault concerns a value relayed for a dealer's polynomial and the message alone cannot tell
// whether the relaying player or the dealer misbehaved. Callers should not blacklist Player for such faults, unless
// Dealer is known to be honest.
type FaultError struct {
	Kind   error
	Player int
	Dealer int
	Err    error
}

func (e *FaultError) Error() string {
	switch {
	case e.Player == NoPlayer:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	case e.Dealer != NoPlayer:
		return fmt.Sprintf("%v (player %d or dealer %d): %v", e.Kind, e.Player, e.Dealer, e.Err)
	default:
		return fmt.Sprintf("%v (player %d): %v", e.Kind, e.Player, e.Err)
	}
}

func (e *FaultError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func newFault(kind error, player int, err error) error {
	if err == nil {
		err = kind
	}
	return &FaultError{kind, player, NoPlayer, err}
}

func MalformedMessage(player int, err error) error {
	return newFault(ErrMalformedMessage, player, err)
}

func MalformedMessagef(player int, format string, args ...any) error {
	return newFault(ErrMalformedMessage, player, fmt.Errorf(format, args...))
}

func ProtocolFault(player int, err error) error {
	return newFault(ErrProtocolFault, player, err)
}

func ProtocolFaultf(player int, format string, args ...any) error {
	return newFault(ErrProtocolFault, player, fmt.Errorf(format, args...))
}

// ValueFault is a protocol fault of a value that player relayed for dealer. Either of them misbehaved.
func ValueFault(player int, dealer int, err error) error {
	if err == nil {
		err = ErrProtocolFault
	}
	return &FaultError{ErrProtocolFault, player, dealer, err}
}

func InsufficientQuorum(err error) error {
	return newFault(ErrInsufficientQuorum, NoPlayer, err)
}

func InsufficientQuorumf(format string, args ...any) error {
	return newFault(ErrInsufficientQuorum, NoPlayer, fmt.Errorf(format, args...))
}

// FaultyPlayer returns the player blamed by err, if any.
func FaultyPlayer(err error) (int, bool) {
	var fault *FaultError
	if !errors.As(err, &fault) || fault.Player == NoPlayer {
		return NoPlayer, false
	}
	return fault.Player, true
}

// FaultyDealer returns the dealer that is blamed by err together with FaultyPlayer, if any.
func FaultyDealer(err error) (int, bool) {
	var fault *FaultError
	if !errors.As(err, &fault) || fault.Dealer == NoPlayer {
		return NoPlayer, false
	}
	return fault.Dealer, true
}

// FaultKind returns the kind of err, or nil if err is not a tagged fault.
func FaultKind(err error) error {
	var fault *FaultError
	if !errors.As(err, &fault) {
		return nil
	}
	return fault.Kind
}
