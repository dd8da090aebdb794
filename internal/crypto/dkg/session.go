package dkg

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/bftkit/thresholdcore/internal/codec"
	"github.com/bftkit/thresholdcore/internal/crypto/dkgtypes"
	"github.com/bftkit/thresholdcore/internal/crypto/ecies"
	"github.com/bftkit/thresholdcore/internal/crypto/math"
	"github.com/bftkit/thresholdcore/internal/crypto/tpke"
	"github.com/bftkit/thresholdcore/internal/crypto/tsig"
	"github.com/ethereum/go-ethereum/common"
)

// Key generation over a symmetric bivariate polynomial, with N players of which at most F < N/3 are faulty.
//
//  1. Every dealer d samples f_d(x, y) of degree F, broadcasts its commitment and sends each player j the encrypted
//     row f_d(·, j+1).
//  2. A player i that receives a row consistent with the commitment sends every player k the encrypted value
//     f_d(k+1, i+1). Each received value is checked against the commitment.
//  3. A dealer is finished once 2F+1 values were received for it. After F+1 finished dealers, the player interpolates
//     its secret share s_i = Σ_d f_d(i+1, 0) and broadcasts the derived public key material for confirmation.
//  4. The keys become active once N-F players confirmed the same public key material.
//
// A Session is not safe for concurrent use.

var (
	ErrAlreadyStarted = errors.New("key generation already started")
	ErrAborted        = errors.New("key generation aborted")
	ErrAbandoned      = errors.New("key generation abandoned")
	ErrKeygenFailed   = errors.New("key generation failed: all players confirmed, but no key material reached a quorum")
	ErrInvalidRow     = errors.New("row does not match the dealer's commitment")
	ErrInvalidValue   = errors.New("value does not match the dealer's commitment")
	ErrEquivocation   = errors.New("dealer sent different commitments to different players")
	ErrInconsistent   = errors.New("commitment halves are inconsistent")
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCommitted
	PhaseLocallyFinished
	PhaseConfirmPending
	PhaseConfirmed
	PhaseAborted
	PhaseAbandoned
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCommitted:
		return "committed"
	case PhaseLocallyFinished:
		return "locally-finished"
	case PhaseConfirmPending:
		return "confirm-pending"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseAborted:
		return "aborted"
	case PhaseAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

type Option func(*Session)

// WithFaultyDealerExclusion makes a session exclude a dealer whose row fails verification, instead of aborting the
// whole session. Values for an excluded dealer are still verified and stored, but it never counts as finished.
func WithFaultyDealerExclusion() Option {
	return func(s *Session) {
		s.excludeFaultyDealers = true
	}
}

// WithRandomness sets the source of randomness for the encryption of values. Defaults to crypto/rand.
func WithRandomness(rand io.Reader) Option {
	return func(s *Session) {
		s.rand = rand
	}
}

type confirmation struct {
	digest common.Hash
	count  int
}

type Session struct {
	iid                  dkgtypes.InstanceID
	f                    int
	publicKeys           []dkgtypes.P256PublicKey
	me                   int
	keyring              dkgtypes.P256Keyring
	excludeFaultyDealers bool
	rand                 io.Reader

	started       bool
	readyReported bool
	states        []KeyGenState
	finished      []int
	excluded      []bool
	mismatches    [][]int // senders of values that did not match the local commitment, per dealer
	abortedBy     int

	confirmSent    bool
	confirmations  []confirmation
	confirmedBy    []int   // index into confirmations per player, -1 if no confirm was received
	confirmDealers [][]int // dealer subset announced by each confirming player
	wiped          bool
	abandoned      bool

	keys   *ThresholdKeyring
	active *ThresholdKeyring
}

// NewSession sets up a key generation session between the owners of publicKeys, tolerating f faulty players. The
// keyring's public key must be among publicKeys, its position is the local player index.
func NewSession(
	iid dkgtypes.InstanceID, publicKeys []dkgtypes.P256PublicKey, f int, keyring dkgtypes.P256Keyring,
	opts ...Option,
) (*Session, error) {
	n := len(publicKeys)
	if f < 0 || n <= 3*f {
		return nil, fmt.Errorf("invalid parameters: %d players cannot tolerate %d faults, need n > 3f", n, f)
	}
	if keyring == nil {
		return nil, fmt.Errorf("keyring must not be nil")
	}
	for i, pk := range publicKeys {
		if !pk.IsValid() {
			return nil, fmt.Errorf("invalid public key of player %d", i)
		}
		if dkgtypes.IndexOf(publicKeys[:i], pk) >= 0 {
			return nil, fmt.Errorf("duplicate public key of player %d", i)
		}
	}
	me := dkgtypes.IndexOf(publicKeys, keyring.PublicKey())
	if me < 0 {
		return nil, fmt.Errorf("keyring's public key is not among the players' public keys")
	}

	s := newSession(iid, slices.Clone(publicKeys), f, me, keyring)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func newSession(
	iid dkgtypes.InstanceID, publicKeys []dkgtypes.P256PublicKey, f int, me int, keyring dkgtypes.P256Keyring,
) *Session {
	n := len(publicKeys)
	s := &Session{
		iid:            iid,
		f:              f,
		publicKeys:     publicKeys,
		me:             me,
		keyring:        keyring,
		rand:           crand.Reader,
		states:         make([]KeyGenState, n),
		excluded:       make([]bool, n),
		mismatches:     make([][]int, n),
		abortedBy:      dkgtypes.NoPlayer,
		confirmedBy:    make([]int, n),
		confirmDealers: make([][]int, n),
	}
	for i := range s.states {
		s.states[i] = newKeyGenState(n)
		s.confirmedBy[i] = -1
	}
	return s
}

func (s *Session) N() int {
	return len(s.publicKeys)
}

func (s *Session) F() int {
	return s.f
}

func (s *Session) InstanceID() dkgtypes.InstanceID {
	return s.iid
}

// PublicKeys returns the players' long-term public keys, ordered by player index.
func (s *Session) PublicKeys() []dkgtypes.P256PublicKey {
	return slices.Clone(s.publicKeys)
}

// PlayerIndex returns the local player's index.
func (s *Session) PlayerIndex() int {
	return s.me
}

// State returns the per-dealer state of the given dealer.
func (s *Session) State(dealer int) *KeyGenState {
	return &s.states[dealer]
}

// FinishedDealers returns the finished dealers in the order they finished.
func (s *Session) FinishedDealers() []int {
	return slices.Clone(s.finished)
}

func (s *Session) Excluded(dealer int) bool {
	return s.excluded[dealer]
}

// AbortedBy returns the dealer that caused the session to abort.
func (s *Session) AbortedBy() (int, bool) {
	return s.abortedBy, s.abortedBy != dkgtypes.NoPlayer
}

func (s *Session) Phase() Phase {
	switch {
	case s.abandoned:
		return PhaseAbandoned
	case s.abortedBy != dkgtypes.NoPlayer:
		return PhaseAborted
	case s.Confirmed():
		return PhaseConfirmed
	case s.confirmSent:
		return PhaseConfirmPending
	case s.Finished():
		return PhaseLocallyFinished
	case s.started:
		return PhaseCommitted
	default:
		return PhaseIdle
	}
}

func (s *Session) checkUsable() error {
	if s.abandoned {
		return ErrAbandoned
	}
	if s.abortedBy != dkgtypes.NoPlayer {
		return dkgtypes.ProtocolFault(s.abortedBy, ErrAborted)
	}
	return nil
}

func (s *Session) checkSender(sender int) error {
	if sender < 0 || sender >= s.N() {
		return dkgtypes.MalformedMessagef(dkgtypes.NoPlayer, "sender %d out of range [0, %d)", sender, s.N())
	}
	return nil
}

// StartKeygen samples the local dealer polynomial and returns the commit message to broadcast. The message must also
// be delivered to the local player via HandleCommit.
func (s *Session) StartKeygen(rand io.Reader) (*CommitMessage, error) {
	if err := s.checkUsable(); err != nil {
		return nil, err
	}
	if s.started {
		return nil, ErrAlreadyStarted
	}

	f, err := math.RandomSymmetricBivariatePolynomial(math.BLS12381G1, s.f, rand)
	if err != nil {
		return nil, fmt.Errorf("failed to sample dealer polynomial: %w", err)
	}
	defer f.Zeroize()

	rows := make([][]byte, s.N())
	for j := range rows {
		row := f.EvaluateRow(j + 1)
		rows[j], err = codec.MarshalUsing(row.MarshalWithLength)
		row.Zeroize()
		if err != nil {
			return nil, err
		}
	}
	defer func() {
		for _, row := range rows {
			clear(row)
		}
	}()

	encryptedRows, err := ecies.EncryptAll(s.publicKeys, rows, func(j int) []byte { return s.rowAD(s.me, j) }, rand)
	if err != nil {
		return nil, err
	}

	s.started = true
	return &CommitMessage{f.Commit(), encryptedRows}, nil
}

// HandleCommit processes the commit message of the given dealer. If the row encrypted for the local player matches the
// commitment, a value message is returned that must be broadcast to all players, including the local one.
func (s *Session) HandleCommit(dealer int, msg *CommitMessage) (*ValueMessage, error) {
	if err := s.checkUsable(); err != nil {
		return nil, err
	}
	if err := s.checkSender(dealer); err != nil {
		return nil, err
	}
	if s.wiped {
		return nil, nil
	}
	if msg == nil || msg.Commitment == nil {
		return nil, dkgtypes.MalformedMessagef(dkgtypes.NoPlayer, "missing commitment")
	}
	if msg.Commitment.Degree() != s.f {
		return nil, dkgtypes.MalformedMessagef(dealer, "commitment of degree %d, expected %d", msg.Commitment.Degree(), s.f)
	}
	if len(msg.EncryptedRows) != s.N() {
		return nil, dkgtypes.MalformedMessagef(dealer, "got %d encrypted rows, expected %d", len(msg.EncryptedRows), s.N())
	}

	state := &s.states[dealer]
	if state.commitment != nil {
		if state.commitment.Equal(msg.Commitment) {
			return nil, dkgtypes.MalformedMessagef(dealer, "duplicate commit message")
		}
		return nil, dkgtypes.ProtocolFaultf(dealer, "dealer sent conflicting commitments")
	}
	state.commitment = msg.Commitment

	if !msg.Commitment.VerifyConsistency() {
		return nil, s.dealerFault(dealer, ErrInconsistent)
	}

	plaintext, err := ecies.Decrypt(s.keyring, msg.EncryptedRows[s.me], s.rowAD(dealer, s.me))
	if err != nil {
		return nil, dkgtypes.MalformedMessage(dealer, fmt.Errorf("failed to decrypt row: %w", err))
	}
	defer clear(plaintext)

	row, err := codec.UnmarshalUsing(plaintext, func(source codec.Source) math.Polynomial {
		return math.UnmarshalPolynomial(source, math.BLS12381G1.GroupOrder(), s.f+1)
	})
	if err != nil {
		return nil, dkgtypes.MalformedMessage(dealer, fmt.Errorf("failed to decode row: %w", err))
	}
	defer row.Zeroize()

	if !state.commitment.EvaluateRow(s.me + 1).Verify(row) {
		return nil, s.dealerFault(dealer, ErrInvalidRow)
	}

	values := make([][]byte, s.N())
	for k := range values {
		v := row.Eval(k)
		values[k] = v.Bytes()
		v.Zeroize()
	}
	defer func() {
		for _, v := range values {
			clear(v)
		}
	}()

	encryptedValues, err := ecies.EncryptAll(
		s.publicKeys, values, func(k int) []byte { return s.valueAD(dealer, s.me, k) }, s.rand,
	)
	if err != nil {
		return nil, err
	}
	return &ValueMessage{dealer, encryptedValues}, nil
}

// dealerFault handles a dealer whose contribution failed verification. By default the session is aborted, with
// WithFaultyDealerExclusion only the dealer is excluded.
func (s *Session) dealerFault(dealer int, err error) error {
	if s.excludeFaultyDealers {
		s.excluded[dealer] = true
	} else {
		s.abortedBy = dealer
	}
	return dkgtypes.ProtocolFault(dealer, err)
}

// HandleSendValue processes a value message. It returns true exactly once, when the local player finished F+1
// dealers and may call MakeConfirm.
func (s *Session) HandleSendValue(sender int, msg *ValueMessage) (bool, error) {
	if err := s.checkUsable(); err != nil {
		return false, err
	}
	if err := s.checkSender(sender); err != nil {
		return false, err
	}
	if s.wiped {
		return false, nil
	}
	if msg == nil {
		return false, dkgtypes.MalformedMessagef(dkgtypes.NoPlayer, "missing value message")
	}
	if msg.Proposer < 0 || msg.Proposer >= s.N() {
		return false, dkgtypes.MalformedMessagef(sender, "proposer %d out of range [0, %d)", msg.Proposer, s.N())
	}
	if len(msg.EncryptedValues) != s.N() {
		return false, dkgtypes.MalformedMessagef(sender, "got %d encrypted values, expected %d", len(msg.EncryptedValues), s.N())
	}

	state := &s.states[msg.Proposer]
	if state.commitment == nil {
		return false, dkgtypes.InsufficientQuorumf("no commitment of dealer %d received yet", msg.Proposer)
	}
	if state.values[sender] != nil {
		return false, dkgtypes.MalformedMessagef(sender, "duplicate value for dealer %d", msg.Proposer)
	}

	plaintext, err := ecies.Decrypt(s.keyring, msg.EncryptedValues[s.me], s.valueAD(msg.Proposer, sender, s.me))
	if err != nil {
		return false, dkgtypes.MalformedMessage(sender, fmt.Errorf("failed to decrypt value: %w", err))
	}
	defer clear(plaintext)

	v, err := math.BLS12381G1.Scalar().SetBytes(plaintext)
	if err != nil {
		return false, dkgtypes.MalformedMessage(sender, fmt.Errorf("failed to decode value: %w", err))
	}
	if !state.commitment.Evaluate(s.me+1, sender+1).Equal(math.BLS12381G1.Point().ScalarBaseMult(v)) {
		v.Zeroize()
		return false, s.valueFault(sender, msg.Proposer)
	}
	state.values[sender] = v

	if state.ValueCount() > 2*s.f && !s.excluded[msg.Proposer] && !slices.Contains(s.finished, msg.Proposer) {
		s.finished = append(s.finished, msg.Proposer)
	}
	if s.Finished() && !s.confirmSent && !s.readyReported {
		s.readyReported = true
		return true, nil
	}
	return false, nil
}

// valueFault records that the value of sender for dealer does not match the local commitment. Up to F senders may be
// faulty. Once more than F distinct senders mismatched, the dealer must have sent different commitments to different
// players: it is excluded and blamed from then on.
func (s *Session) valueFault(sender int, dealer int) error {
	if !slices.Contains(s.mismatches[dealer], sender) {
		s.mismatches[dealer] = append(s.mismatches[dealer], sender)
	}
	if len(s.mismatches[dealer]) > s.f {
		s.excluded[dealer] = true
		return dkgtypes.ProtocolFault(dealer, ErrEquivocation)
	}
	return dkgtypes.ValueFault(sender, dealer, ErrInvalidValue)
}

// Finished reports whether at least F+1 dealers are finished.
func (s *Session) Finished() bool {
	return len(s.finished) > s.f
}

// TryGetKeys derives the local key material from the first F+1 finished dealers.
func (s *Session) TryGetKeys() (*ThresholdKeyring, error) {
	if err := s.checkUsable(); err != nil {
		return nil, err
	}
	if s.active != nil {
		return s.active, nil
	}
	if !s.Finished() {
		return nil, dkgtypes.InsufficientQuorumf("%d of %d dealers finished", len(s.finished), s.f+1)
	}
	if s.keys == nil {
		keys, err := s.keysFromDealers(s.finished[:s.f+1])
		if err != nil {
			return nil, err
		}
		s.keys = keys
	}
	return s.keys, nil
}

func (s *Session) keysFromDealers(dealers []int) (*ThresholdKeyring, error) {
	share := math.BLS12381G1.Scalar()
	var publicG1, publicG2 math.PolynomialCommitment
	for _, d := range dealers {
		state := &s.states[d]
		if state.commitment == nil || state.ValueCount() < s.f+1 {
			share.Zeroize()
			return nil, dkgtypes.InsufficientQuorumf("not enough values received for dealer %d", d)
		}
		x, err := state.InterpolateValues(s.f)
		if err != nil {
			share.Zeroize()
			return nil, err
		}
		share.Add(x)
		x.Zeroize()

		if publicG1 == nil {
			publicG1, publicG2 = state.commitment.EvaluateRow(0), state.commitment.EvaluateRowG2(0)
		} else {
			publicG1, publicG2 = publicG1.Add(state.commitment.EvaluateRow(0)), publicG2.Add(state.commitment.EvaluateRowG2(0))
		}
	}

	Z := publicG2.EvalRange(s.N())
	if !Z[s.me].Equal(math.BLS12381G2.Point().ScalarBaseMult(share)) {
		share.Zeroize()
		return nil, fmt.Errorf("derived secret share does not match the verification key")
	}

	vk := tpke.NewVerificationKey(publicG1[0], s.f, Z)
	pks := tsig.NewPublicKeySet(s.f, publicG2[0], Z)
	return newThresholdKeyring(s.me, share, vk, pks), nil
}

// MakeConfirm derives the local key material and returns the confirm message to broadcast.
func (s *Session) MakeConfirm() (*ConfirmMessage, error) {
	keys, err := s.TryGetKeys()
	if err != nil {
		return nil, err
	}
	s.confirmSent = true
	return &ConfirmMessage{
		keys.TPKEVerificationKey,
		keys.SigPublicKeySet,
		slices.Clone(s.finished[:s.f+1]),
	}, nil
}

// HandleConfirm counts the sender's vote for the confirmed key material. It returns true when N-F distinct players
// confirmed the same digest, which happens at most once per session. The keys are activated right away if possible,
// an activation fault is returned together with true. Missing values are not a fault, ActiveKeyring retries.
func (s *Session) HandleConfirm(sender int, msg *ConfirmMessage) (bool, error) {
	if err := s.checkUsable(); err != nil {
		return false, err
	}
	if err := s.checkSender(sender); err != nil {
		return false, err
	}
	if msg == nil || msg.VerificationKey == nil || msg.PublicKeySet == nil {
		return false, dkgtypes.MalformedMessagef(sender, "incomplete confirm message")
	}
	if s.confirmedBy[sender] >= 0 {
		return false, dkgtypes.MalformedMessagef(sender, "duplicate confirm message")
	}
	if err := s.validateConfirm(msg); err != nil {
		return false, dkgtypes.MalformedMessage(sender, err)
	}

	wasConfirmed := s.Confirmed()
	digest := ConfirmDigest(msg.VerificationKey, msg.PublicKeySet)
	idx := slices.IndexFunc(s.confirmations, func(c confirmation) bool { return c.digest == digest })
	if idx < 0 {
		idx = len(s.confirmations)
		s.confirmations = append(s.confirmations, confirmation{digest, 0})
	}
	s.confirmations[idx].count++
	s.confirmedBy[sender] = idx
	s.confirmDealers[sender] = slices.Clone(msg.Dealers)

	if !wasConfirmed && s.Confirmed() {
		if _, err := s.activate(); err != nil && !errors.Is(err, dkgtypes.ErrInsufficientQuorum) {
			return true, err
		}
		return true, nil
	}
	if !s.Confirmed() && s.ConfirmCount() == s.N() {
		return false, ErrKeygenFailed
	}
	return false, nil
}

func (s *Session) validateConfirm(msg *ConfirmMessage) error {
	vk, pks := msg.VerificationKey, msg.PublicKeySet
	if vk.T != s.f || vk.N() != s.N() {
		return fmt.Errorf("verification key for (t=%d, n=%d), expected (t=%d, n=%d)", vk.T, vk.N(), s.f, s.N())
	}
	if pks.T != s.f || len(pks.Keys) != s.N() {
		return fmt.Errorf("public key set for (t=%d, n=%d), expected (t=%d, n=%d)", pks.T, len(pks.Keys), s.f, s.N())
	}
	if len(msg.Dealers) != s.f+1 {
		return fmt.Errorf("%d dealers listed, expected %d", len(msg.Dealers), s.f+1)
	}
	for i, d := range msg.Dealers {
		if d < 0 || d >= s.N() || slices.Contains(msg.Dealers[:i], d) {
			return fmt.Errorf("invalid dealer list %v", msg.Dealers)
		}
	}
	return nil
}

// ConfirmCount returns the number of confirm messages received.
func (s *Session) ConfirmCount() int {
	count := 0
	for _, c := range s.confirmations {
		count += c.count
	}
	return count
}

// confirmedIndex returns the index of the confirmation that reached N-F votes, or -1.
func (s *Session) confirmedIndex() int {
	return slices.IndexFunc(s.confirmations, func(c confirmation) bool { return c.count >= s.N()-s.f })
}

// Confirmed reports whether N-F players confirmed the same key material.
func (s *Session) Confirmed() bool {
	return s.confirmedIndex() >= 0
}

// ConfirmedDigest returns the digest of the agreed key material.
func (s *Session) ConfirmedDigest() (common.Hash, bool) {
	idx := s.confirmedIndex()
	if idx < 0 {
		return common.Hash{}, false
	}
	return s.confirmations[idx].digest, true
}

// ActiveKeyring returns the agreed key material. If the local player derived different keys, they are recomputed from
// the dealer subset announced by the confirming players. Once the keys are active, all intermediate secrets of the
// session are wiped.
func (s *Session) ActiveKeyring() (*ThresholdKeyring, error) {
	if err := s.checkUsable(); err != nil {
		return nil, err
	}
	return s.activate()
}

func (s *Session) activate() (*ThresholdKeyring, error) {
	if s.active != nil {
		return s.active, nil
	}
	idx := s.confirmedIndex()
	if idx < 0 {
		best := 0
		for _, c := range s.confirmations {
			best = max(best, c.count)
		}
		return nil, dkgtypes.InsufficientQuorumf("best key material has %d of %d confirmations", best, s.N()-s.f)
	}
	if s.wiped {
		return nil, fmt.Errorf("key material is no longer held by the session")
	}
	digest := s.confirmations[idx].digest

	keys := s.keys
	if keys == nil || keys.Digest() != digest {
		var err error
		if keys, err = s.recomputeKeys(idx, digest); err != nil {
			return nil, err
		}
	}

	s.active = keys
	if s.keys != nil && s.keys != keys {
		s.keys.Zeroize()
	}
	s.keys = nil
	s.wipeIntermediates()
	return s.active, nil
}

func (s *Session) recomputeKeys(idx int, digest common.Hash) (*ThresholdKeyring, error) {
	var lastErr error
	var tried [][]int
	for player, c := range s.confirmedBy {
		dealers := s.confirmDealers[player]
		if c != idx || slices.ContainsFunc(tried, func(t []int) bool { return slices.Equal(t, dealers) }) {
			continue
		}
		tried = append(tried, dealers)

		keys, err := s.keysFromDealers(dealers)
		if err != nil {
			lastErr = err
			continue
		}
		if keys.Digest() == digest {
			return keys, nil
		}
		keys.Zeroize()
		lastErr = dkgtypes.ProtocolFaultf(player, "announced dealers do not yield the confirmed key material")
	}
	return nil, lastErr
}

func (s *Session) wipeIntermediates() {
	for i := range s.states {
		s.states[i].zeroize()
	}
	s.wiped = true
}

// Wiped reports whether the intermediate secrets were wiped, after activation or abandonment.
func (s *Session) Wiped() bool {
	return s.wiped
}

// Abandon wipes all secrets held by the session, including derived keys. The session cannot be used afterwards.
func (s *Session) Abandon() {
	s.wipeIntermediates()
	if s.keys != nil {
		s.keys.Zeroize()
		s.keys = nil
	}
	if s.active != nil {
		s.active.Zeroize()
		s.active = nil
	}
	s.abandoned = true
}

// Associated data of encrypted rows and values.

func (s *Session) rowAD(dealer int, recipient int) []byte {
	return s.ad("row", dealer, dealer, recipient)
}

func (s *Session) valueAD(dealer int, sender int, recipient int) []byte {
	return s.ad("value", dealer, sender, recipient)
}

func (s *Session) ad(kind string, dealer int, sender int, recipient int) []byte {
	ad, err := codec.MarshalUsing(func(target codec.Target) {
		target.WriteString("thresholdcore/dkg/" + kind)
		target.WriteString(string(s.iid))
		target.WriteInt(dealer)
		target.WriteInt(sender)
		target.WriteInt(recipient)
	})
	if err != nil {
		panic(err)
	}
	return ad
}
