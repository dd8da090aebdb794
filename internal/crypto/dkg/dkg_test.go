package dkg

import (
	"errors"
	"testing"

	"github.com/bftkit/thresholdcore/internal/codec"
	"github.com/bftkit/thresholdcore/internal/crypto/dkgtypes"
	"github.com/bftkit/thresholdcore/internal/crypto/ecies"
	"github.com/bftkit/thresholdcore/internal/crypto/math"
	"github.com/bftkit/thresholdcore/internal/crypto/tpke"
	"github.com/bftkit/thresholdcore/internal/crypto/tsig"
	"github.com/bftkit/thresholdcore/internal/testimplementations/testhelpers"
	"github.com/bftkit/thresholdcore/internal/testimplementations/unsaferand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const iid = dkgtypes.InstanceID("test-instance")

type testNetwork struct {
	t          *testing.T
	seed       string
	n, f       int
	keyrings   []dkgtypes.P256Keyring
	publicKeys []dkgtypes.P256PublicKey
	sessions   []*Session
	confirms   []*ConfirmMessage
}

func newTestNetwork(t *testing.T, n int, f int, seed string, opts ...Option) *testNetwork {
	keyrings, publicKeys := testhelpers.NewP256Keys(t, n, unsaferand.New(seed, "keys"))
	net := &testNetwork{t, seed, n, f, keyrings, publicKeys, make([]*Session, n), make([]*ConfirmMessage, n)}
	for i := range net.sessions {
		var err error
		sessionOpts := append([]Option{WithRandomness(unsaferand.New(seed, "values", i))}, opts...)
		net.sessions[i], err = NewSession(iid, publicKeys, f, keyrings[i], sessionOpts...)
		require.NoError(t, err)
		require.Equal(t, i, net.sessions[i].PlayerIndex())
	}
	return net
}

func (net *testNetwork) start(i int) *CommitMessage {
	msg, err := net.sessions[i].StartKeygen(unsaferand.New(net.seed, "commit", i))
	require.NoError(net.t, err)
	return msg
}

func (net *testNetwork) startAll() []*CommitMessage {
	commits := make([]*CommitMessage, net.n)
	for i := range commits {
		commits[i] = net.start(i)
	}
	return commits
}

// deliverCommits hands every commit to every player. The resulting value messages and errors are indexed by dealer
// and receiving player.
func (net *testNetwork) deliverCommits(commits []*CommitMessage) ([][]*ValueMessage, [][]error) {
	values := make([][]*ValueMessage, net.n)
	errs := make([][]error, net.n)
	for d, msg := range commits {
		values[d] = make([]*ValueMessage, net.n)
		errs[d] = make([]error, net.n)
		for j, s := range net.sessions {
			values[d][j], errs[d][j] = s.HandleCommit(d, msg)
		}
	}
	return values, errs
}

func (net *testNetwork) runCommits() [][]*ValueMessage {
	values, errs := net.deliverCommits(net.startAll())
	for d := range errs {
		for j, err := range errs[d] {
			require.NoError(net.t, err, "player %d rejected commit of dealer %d", j, d)
		}
	}
	return values
}

// deliverValue hands a value message to the recipient and records its confirm message once it became ready.
func (net *testNetwork) deliverValue(recipient int, sender int, msg *ValueMessage) {
	ready, err := net.sessions[recipient].HandleSendValue(sender, msg)
	require.NoError(net.t, err)
	if ready {
		require.Nil(net.t, net.confirms[recipient], "player %d reported readiness twice", recipient)
		net.confirms[recipient], err = net.sessions[recipient].MakeConfirm()
		require.NoError(net.t, err)
	}
}

func (net *testNetwork) deliverAllValues(values [][]*ValueMessage) {
	for d := range values {
		for sender, msg := range values[d] {
			if msg == nil {
				continue
			}
			for r := range net.sessions {
				net.deliverValue(r, sender, msg)
			}
		}
	}
}

func (net *testNetwork) deliverAllConfirms() {
	for sender, msg := range net.confirms {
		require.NotNil(net.t, msg, "player %d did not confirm", sender)
		for _, s := range net.sessions {
			_, err := s.HandleConfirm(sender, msg)
			require.NoError(net.t, err)
		}
	}
}

func (net *testNetwork) activeKeyrings() []*ThresholdKeyring {
	keys := make([]*ThresholdKeyring, net.n)
	for i, s := range net.sessions {
		var err error
		keys[i], err = s.ActiveKeyring()
		require.NoError(net.t, err)
	}
	return keys
}

func requireAgreement(t *testing.T, keys []*ThresholdKeyring) {
	for i, k := range keys {
		require.Equal(t, keys[0].Digest(), k.Digest())
		require.Equal(t, i, k.PlayerIndex())
		require.True(t, k.TPKEVerificationKey.Matches(k.TPKEPrivateKey))
		require.True(t, k.TPKEPublicKey.Equal(keys[0].TPKEPublicKey))
		require.True(t, k.SigPublicKeySet.Equal(keys[0].SigPublicKeySet))
	}
}

func TestKeygenAgreement(t *testing.T) {
	net := newTestNetwork(t, 7, 2, "agreement")
	for _, s := range net.sessions {
		require.Equal(t, PhaseIdle, s.Phase())
	}

	values := net.runCommits()
	for _, s := range net.sessions {
		require.Equal(t, PhaseCommitted, s.Phase())
		_, err := s.TryGetKeys()
		require.ErrorIs(t, err, dkgtypes.ErrInsufficientQuorum)
	}

	net.deliverAllValues(values)
	for i, s := range net.sessions {
		require.True(t, s.Finished())
		require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, s.FinishedDealers())
		require.Equal(t, PhaseConfirmPending, s.Phase())
		require.NotNil(t, net.confirms[i])

		_, err := s.ActiveKeyring()
		require.ErrorIs(t, err, dkgtypes.ErrInsufficientQuorum)
	}

	net.deliverAllConfirms()
	keys := net.activeKeyrings()
	requireAgreement(t, keys)

	for _, s := range net.sessions {
		require.Equal(t, PhaseConfirmed, s.Phase())
		digest, ok := s.ConfirmedDigest()
		require.True(t, ok)
		require.Equal(t, keys[0].Digest(), digest)
		for d := 0; d < net.n; d++ {
			require.Zero(t, s.State(d).ValueCount(), "values must be wiped after confirmation")
		}
	}
}

func TestKeygenEncryptionRoundTrip(t *testing.T) {
	keyrings, publicKeys := testhelpers.NewP256Keys(t, 7, unsaferand.New("round trip keys"))
	keys, err := SimulateForTest(iid, publicKeys, 2, keyrings)
	require.NoError(t, err)
	requireAgreement(t, keys)

	pk := keys[0].TPKEPublicKey
	vk := keys[0].TPKEVerificationKey
	c, err := pk.Encrypt(tpke.RawShare{Data: []byte("transaction payload"), ID: 9}, unsaferand.New("encrypt"))
	require.NoError(t, err)
	require.True(t, c.WellFormed())

	var parts []*tpke.PartiallyDecryptedShare
	for _, i := range []int{5, 1, 3} {
		part := keys[i].TPKEPrivateKey.PartialDecrypt(c)
		require.True(t, vk.Verify(c, part))
		parts = append(parts, part)
	}

	_, err = pk.FullDecrypt(c, parts[:2])
	require.ErrorIs(t, err, dkgtypes.ErrInsufficientQuorum)

	raw, err := pk.FullDecrypt(c, parts)
	require.NoError(t, err)
	require.Equal(t, []byte("transaction payload"), raw.Data)
	require.Equal(t, 9, raw.ID)
}

func TestKeygenSignatureRoundTrip(t *testing.T) {
	keyrings, publicKeys := testhelpers.NewP256Keys(t, 4, unsaferand.New("signature keys"))
	keys, err := SimulateForTest(iid, publicKeys, 1, keyrings)
	require.NoError(t, err)

	msg := []byte("block 42")
	pks := keys[2].SigPublicKeySet
	share0 := keys[0].SigPrivateKey.Sign(msg)
	share3 := keys[3].SigPrivateKey.Sign(msg)
	require.NoError(t, pks.VerifyShare(msg, share0))
	require.NoError(t, pks.VerifyShare(msg, share3))

	sig, err := pks.Combine([]*tsig.SignatureShare{share0, share3})
	require.NoError(t, err)
	require.True(t, pks.Verify(msg, sig))
	require.False(t, pks.Verify([]byte("block 43"), sig))
}

// badCommit returns a commit message of dealer d whose commitment does not match the encrypted rows.
func (net *testNetwork) badCommit(d int) *CommitMessage {
	good := net.start(d)
	other, err := NewSession(iid, net.publicKeys, net.f, net.keyrings[d])
	require.NoError(net.t, err)
	wrongRows, err := other.StartKeygen(unsaferand.New(net.seed, "wrong rows", d))
	require.NoError(net.t, err)
	return &CommitMessage{good.Commitment, wrongRows.EncryptedRows}
}

func TestFaultyDealersAreExcluded(t *testing.T) {
	net := newTestNetwork(t, 7, 2, "exclusion", WithFaultyDealerExclusion())
	commits := make([]*CommitMessage, net.n)
	for d := range commits {
		if d < net.f {
			commits[d] = net.badCommit(d)
		} else {
			commits[d] = net.start(d)
		}
	}

	values, errs := net.deliverCommits(commits)
	for d := range errs {
		for j, err := range errs[d] {
			if d < net.f {
				require.ErrorIs(t, err, dkgtypes.ErrProtocolFault)
				player, ok := dkgtypes.FaultyPlayer(err)
				require.True(t, ok)
				require.Equal(t, d, player)
				require.True(t, net.sessions[j].Excluded(d))
			} else {
				require.NoError(t, err)
			}
		}
	}

	net.deliverAllValues(values)
	for _, s := range net.sessions {
		require.Equal(t, []int{2, 3, 4, 5, 6}, s.FinishedDealers())
	}
	net.deliverAllConfirms()
	requireAgreement(t, net.activeKeyrings())
}

func TestFaultyDealerAbortsSession(t *testing.T) {
	net := newTestNetwork(t, 4, 1, "abort")
	commits := []*CommitMessage{net.start(0), net.badCommit(1), net.start(2), net.start(3)}

	_, err := net.sessions[2].HandleCommit(0, commits[0])
	require.NoError(t, err)

	_, err = net.sessions[2].HandleCommit(1, commits[1])
	require.ErrorIs(t, err, dkgtypes.ErrProtocolFault)
	require.ErrorIs(t, err, ErrInvalidRow)
	player, ok := dkgtypes.FaultyPlayer(err)
	require.True(t, ok)
	require.Equal(t, 1, player)

	require.Equal(t, PhaseAborted, net.sessions[2].Phase())
	aborter, ok := net.sessions[2].AbortedBy()
	require.True(t, ok)
	require.Equal(t, 1, aborter)

	_, err = net.sessions[2].HandleCommit(3, commits[3])
	require.ErrorIs(t, err, ErrAborted)
	require.ErrorIs(t, err, dkgtypes.ErrProtocolFault)
	_, err = net.sessions[2].TryGetKeys()
	require.ErrorIs(t, err, ErrAborted)
}

func TestInconsistentCommitmentIsAFault(t *testing.T) {
	net := newTestNetwork(t, 4, 1, "inconsistent", WithFaultyDealerExclusion())
	msg := net.start(0)
	other, err := math.RandomSymmetricBivariatePolynomial(math.BLS12381G1, 1, unsaferand.New("other"))
	require.NoError(t, err)

	// Splice the G2 half of an unrelated commitment into the dealer's commitment.
	data, err := codec.Marshal(msg.Commitment)
	require.NoError(t, err)
	otherData, err := codec.Marshal(other.Commit())
	require.NoError(t, err)
	g2Offset := codec.IntSize + math.TriangularSize(1)*math.BLS12381G1.PointBytes()
	spliced := append(append([]byte(nil), data[:g2Offset]...), otherData[g2Offset:]...)
	commitment, err := codec.UnmarshalUsing(spliced, func(s codec.Source) *math.BivariateCommitment {
		return math.UnmarshalBivariateCommitment(s, 1)
	})
	require.NoError(t, err)

	_, err = net.sessions[1].HandleCommit(0, &CommitMessage{commitment, msg.EncryptedRows})
	require.ErrorIs(t, err, ErrInconsistent)
	require.True(t, net.sessions[1].Excluded(0))
}

func TestValueBeforeCommit(t *testing.T) {
	net := newTestNetwork(t, 4, 1, "value before commit")
	commit := net.start(0)
	value, err := net.sessions[1].HandleCommit(0, commit)
	require.NoError(t, err)

	_, err = net.sessions[2].HandleSendValue(1, value)
	require.ErrorIs(t, err, dkgtypes.ErrInsufficientQuorum)
	_, ok := dkgtypes.FaultyPlayer(err)
	require.False(t, ok)

	_, err = net.sessions[2].HandleCommit(0, commit)
	require.NoError(t, err)
	ready, err := net.sessions[2].HandleSendValue(1, value)
	require.NoError(t, err)
	require.False(t, ready)
	require.Equal(t, 1, net.sessions[2].State(0).ValueCount())
	require.Equal(t, []bool{false, true, false, false}, net.sessions[2].State(0).Acks())
}

func TestDuplicateMessages(t *testing.T) {
	net := newTestNetwork(t, 4, 1, "duplicates")
	commit := net.start(0)
	s := net.sessions[1]

	value, err := s.HandleCommit(0, commit)
	require.NoError(t, err)
	_, err = s.HandleCommit(0, commit)
	require.ErrorIs(t, err, dkgtypes.ErrMalformedMessage)

	other, err := NewSession(iid, net.publicKeys, net.f, net.keyrings[0])
	require.NoError(t, err)
	conflicting, err := other.StartKeygen(unsaferand.New("conflicting"))
	require.NoError(t, err)
	_, err = s.HandleCommit(0, conflicting)
	require.ErrorIs(t, err, dkgtypes.ErrProtocolFault)
	player, _ := dkgtypes.FaultyPlayer(err)
	require.Equal(t, 0, player)

	_, err = s.HandleSendValue(1, value)
	require.NoError(t, err)
	_, err = s.HandleSendValue(1, value)
	require.ErrorIs(t, err, dkgtypes.ErrMalformedMessage)
	player, _ = dkgtypes.FaultyPlayer(err)
	require.Equal(t, 1, player)

	_, err = s.StartKeygen(unsaferand.New("first"))
	require.NoError(t, err)
	_, err = s.StartKeygen(unsaferand.New("second"))
	require.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestMalformedCommitAndValue(t *testing.T) {
	net := newTestNetwork(t, 4, 1, "malformed")
	commit := net.start(0)
	s := net.sessions[2]

	_, err := s.HandleCommit(0, &CommitMessage{commit.Commitment, commit.EncryptedRows[:3]})
	require.ErrorIs(t, err, dkgtypes.ErrMalformedMessage)

	_, err = s.HandleCommit(7, commit)
	require.ErrorIs(t, err, dkgtypes.ErrMalformedMessage)

	rows := append([][]byte(nil), commit.EncryptedRows...)
	rows[2] = testhelpers.FlipBit(rows[2], 8*len(rows[2])-1)
	_, err = s.HandleCommit(0, &CommitMessage{commit.Commitment, rows})
	require.ErrorIs(t, err, dkgtypes.ErrMalformedMessage)
	player, _ := dkgtypes.FaultyPlayer(err)
	require.Equal(t, 0, player)

	net2 := newTestNetwork(t, 4, 1, "malformed values")
	commit = net2.start(0)
	value, err := net2.sessions[1].HandleCommit(0, commit)
	require.NoError(t, err)
	s = net2.sessions[2]
	_, err = s.HandleCommit(0, commit)
	require.NoError(t, err)

	_, err = s.HandleSendValue(1, &ValueMessage{0, value.EncryptedValues[:2]})
	require.ErrorIs(t, err, dkgtypes.ErrMalformedMessage)
	_, err = s.HandleSendValue(1, &ValueMessage{4, value.EncryptedValues})
	require.ErrorIs(t, err, dkgtypes.ErrMalformedMessage)

	encrypted := append([][]byte(nil), value.EncryptedValues...)
	encrypted[2] = testhelpers.FlipBit(encrypted[2], 0)
	_, err = s.HandleSendValue(1, &ValueMessage{0, encrypted})
	require.ErrorIs(t, err, dkgtypes.ErrMalformedMessage)
	require.Zero(t, s.State(0).ValueCount())
}

func TestWrongValueIsAFault(t *testing.T) {
	net := newTestNetwork(t, 4, 1, "wrong value")
	commit := net.start(0)
	s := net.sessions[2]
	_, err := s.HandleCommit(0, commit)
	require.NoError(t, err)

	wrong, err := math.BLS12381G1.Scalar().SetRandom(unsaferand.New("wrong"))
	require.NoError(t, err)
	encrypted := make([][]byte, net.n)
	for k := range encrypted {
		encrypted[k], err = ecies.Encrypt(net.publicKeys[k], wrong.Bytes(), s.valueAD(0, 3, k), unsaferand.New("wrong", k))
		require.NoError(t, err)
	}

	_, err = s.HandleSendValue(3, &ValueMessage{0, encrypted})
	require.ErrorIs(t, err, dkgtypes.ErrProtocolFault)
	require.ErrorIs(t, err, ErrInvalidValue)
	player, _ := dkgtypes.FaultyPlayer(err)
	require.Equal(t, 3, player)
	dealer, ok := dkgtypes.FaultyDealer(err)
	require.True(t, ok)
	require.Equal(t, 0, dealer)
	require.Zero(t, s.State(0).ValueCount())
	require.NotEqual(t, PhaseAborted, s.Phase())
	require.False(t, s.Excluded(0))
}

func TestEquivocatingDealersAreBlamed(t *testing.T) {
	net := newTestNetwork(t, 7, 2, "equivocation")
	groupA := func(j int) bool { return j < 4 }

	// Dealers 0 and 1 send one valid commitment to players 0-3 and another valid one to players 4-6.
	commits := net.startAll()
	values := make([][]*ValueMessage, net.n)
	for d, msg := range commits {
		var other *CommitMessage
		if d < net.f {
			twin, err := NewSession(iid, net.publicKeys, net.f, net.keyrings[d])
			require.NoError(t, err)
			other, err = twin.StartKeygen(unsaferand.New(net.seed, "twin", d))
			require.NoError(t, err)
		}
		values[d] = make([]*ValueMessage, net.n)
		for j, s := range net.sessions {
			received := msg
			if other != nil && !groupA(j) {
				received = other
			}
			var err error
			values[d][j], err = s.HandleCommit(d, received)
			require.NoError(t, err, "player %d rejected commit of dealer %d", j, d)
		}
	}

	blamedAlone := make(map[int]int)
	for d := range values {
		for sender, msg := range values[d] {
			for r, s := range net.sessions {
				ready, err := s.HandleSendValue(sender, msg)
				if ready {
					net.confirms[r], err = s.MakeConfirm()
					require.NoError(t, err)
				}
				if d >= net.f || groupA(sender) == groupA(r) {
					require.NoError(t, err)
					continue
				}

				require.ErrorIs(t, err, dkgtypes.ErrProtocolFault)
				player, ok := dkgtypes.FaultyPlayer(err)
				require.True(t, ok)
				if errors.Is(err, ErrEquivocation) {
					require.Equal(t, d, player)
					_, ok = dkgtypes.FaultyDealer(err)
					require.False(t, ok)
					blamedAlone[player]++
				} else {
					require.ErrorIs(t, err, ErrInvalidValue)
					require.Equal(t, sender, player)
					dealer, ok := dkgtypes.FaultyDealer(err)
					require.True(t, ok)
					require.Equal(t, d, dealer)
				}
			}
		}
	}

	// Only the equivocating dealers are ever blamed on their own. Every player saw more than F mismatching senders.
	require.Len(t, blamedAlone, net.f)
	for _, s := range net.sessions {
		require.NotEqual(t, PhaseAborted, s.Phase())
		for d := 0; d < net.n; d++ {
			require.Equal(t, d < net.f, s.Excluded(d), "dealer %d", d)
		}
		require.Equal(t, []int{2, 3, 4, 5, 6}, s.FinishedDealers())
	}

	data, err := net.sessions[5].Bytes()
	require.NoError(t, err)
	restored, err := RestoreSession(iid, data, net.keyrings[5])
	require.NoError(t, err)
	require.Equal(t, net.sessions[5].mismatches, restored.mismatches)
	require.True(t, restored.Excluded(0))

	net.deliverAllConfirms()
	requireAgreement(t, net.activeKeyrings())
}

func TestDivergentDealerSubsetIsRecomputed(t *testing.T) {
	net := newTestNetwork(t, 4, 1, "divergent")
	values := net.runCommits()

	// Player 0 finishes dealers 2 and 3 first, everybody else finishes 0 and 1.
	deliver := func(recipient int, dealers ...int) {
		for _, d := range dealers {
			for sender, msg := range values[d] {
				net.deliverValue(recipient, sender, msg)
			}
		}
	}
	deliver(0, 2, 3)
	for r := 1; r < net.n; r++ {
		deliver(r, 0, 1)
	}

	local, err := net.sessions[0].TryGetKeys()
	require.NoError(t, err)
	localDigest := local.Digest()
	require.Equal(t, []int{2, 3}, net.confirms[0].Dealers)
	require.Equal(t, []int{0, 1}, net.confirms[1].Dealers)

	// Player 0 needs the values of the agreed dealers to recompute its keys.
	deliver(0, 0, 1)
	net.deliverAllConfirms()

	keys := net.activeKeyrings()
	requireAgreement(t, keys)
	require.NotEqual(t, localDigest, keys[0].Digest())
}

func TestActivationWaitsForValues(t *testing.T) {
	net := newTestNetwork(t, 4, 1, "activation waits")
	values := net.runCommits()
	deliver := func(recipient int, dealers ...int) {
		for _, d := range dealers {
			for sender, msg := range values[d] {
				net.deliverValue(recipient, sender, msg)
			}
		}
	}
	deliver(0, 2, 3)
	for r := 1; r < net.n; r++ {
		deliver(r, 0, 1)
	}

	confirmed := false
	for sender, msg := range net.confirms {
		ok, err := net.sessions[0].HandleConfirm(sender, msg)
		require.NoError(t, err)
		confirmed = confirmed || ok
	}
	require.True(t, confirmed)
	require.Equal(t, PhaseConfirmed, net.sessions[0].Phase())

	_, err := net.sessions[0].ActiveKeyring()
	require.ErrorIs(t, err, dkgtypes.ErrInsufficientQuorum)

	deliver(0, 0, 1)
	keys, err := net.sessions[0].ActiveKeyring()
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, net.confirms[1].Dealers)
	digest, _ := net.sessions[0].ConfirmedDigest()
	require.Equal(t, digest, keys.Digest())
}

func TestActivationFaultIsReportedOnConfirmation(t *testing.T) {
	net := newTestNetwork(t, 4, 1, "activation fault")
	values := net.runCommits()
	deliver := func(recipient int, dealers ...int) {
		for _, d := range dealers {
			for sender, msg := range values[d] {
				net.deliverValue(recipient, sender, msg)
			}
		}
	}
	deliver(0, 2, 3, 0, 1)
	for r := 1; r < net.n; r++ {
		deliver(r, 0, 1)
	}

	// The confirming players announce dealers that do not yield the key material they confirm.
	s := net.sessions[0]
	var confirmed bool
	var err error
	for sender := 1; sender < net.n; sender++ {
		msg := *net.confirms[sender]
		msg.Dealers = []int{2, 3}
		confirmed, err = s.HandleConfirm(sender, &msg)
		if sender < net.n-1 {
			require.NoError(t, err)
			require.False(t, confirmed)
		}
	}
	require.True(t, confirmed)
	require.ErrorIs(t, err, dkgtypes.ErrProtocolFault)
	player, ok := dkgtypes.FaultyPlayer(err)
	require.True(t, ok)
	require.Equal(t, 1, player)

	_, err = s.ActiveKeyring()
	require.ErrorIs(t, err, dkgtypes.ErrProtocolFault)
	require.False(t, s.Wiped())
}

func TestConfirmRules(t *testing.T) {
	net := newTestNetwork(t, 4, 1, "confirm rules")
	net.deliverAllValues(net.runCommits())
	s := net.sessions[0]

	_, err := s.HandleConfirm(1, net.confirms[1])
	require.NoError(t, err)
	_, err = s.HandleConfirm(1, net.confirms[1])
	require.ErrorIs(t, err, dkgtypes.ErrMalformedMessage)

	bad := *net.confirms[2]
	bad.Dealers = []int{1, 1}
	_, err = s.HandleConfirm(2, &bad)
	require.ErrorIs(t, err, dkgtypes.ErrMalformedMessage)

	forged := func(seed string) *ConfirmMessage {
		m := *net.confirms[2]
		x, err := math.BLS12381G1.Scalar().SetRandom(unsaferand.New(seed))
		require.NoError(t, err)
		m.VerificationKey = tpke.NewVerificationKey(
			math.BLS12381G1.Point().ScalarBaseMult(x), net.f, m.VerificationKey.Z,
		)
		return &m
	}

	confirmed, err := s.HandleConfirm(0, net.confirms[0])
	require.NoError(t, err)
	require.False(t, confirmed)
	_, err = s.HandleConfirm(2, forged("forged 2"))
	require.NoError(t, err)
	_, err = s.HandleConfirm(3, forged("forged 3"))
	require.ErrorIs(t, err, ErrKeygenFailed)
	require.False(t, s.Confirmed())
}

func TestSessionStateRoundTrip(t *testing.T) {
	net := newTestNetwork(t, 4, 1, "state", WithFaultyDealerExclusion())
	values := net.runCommits()
	for d := range values {
		for sender := 0; sender < 2; sender++ {
			for r := range net.sessions {
				net.deliverValue(r, sender, values[d][sender])
			}
		}
	}

	data, err := net.sessions[2].Bytes()
	require.NoError(t, err)
	restored, err := RestoreSession(iid, data, net.keyrings[2], WithRandomness(unsaferand.New("restored")))
	require.NoError(t, err)
	restoredData, err := restored.Bytes()
	require.NoError(t, err)
	require.Equal(t, data, restoredData)
	require.Equal(t, net.sessions[2].Phase(), restored.Phase())
	require.Equal(t, 2, restored.State(1).ValueCount())
	require.True(t, restored.excludeFaultyDealers)

	_, err = RestoreSession(iid, data, net.keyrings[2], func(s *Session) { s.excludeFaultyDealers = false })
	require.NoError(t, err)
	_, err = RestoreSession(iid, data[:len(data)-1], net.keyrings[2])
	require.Error(t, err)
	_, err = RestoreSession(iid, append(data, 0), net.keyrings[2])
	require.Error(t, err)

	otherKeyrings, _ := testhelpers.NewP256Keys(t, 1, unsaferand.New("stranger"))
	_, err = RestoreSession(iid, data, otherKeyrings[0])
	require.Error(t, err)

	net.sessions[2] = restored
	for d := range values {
		for sender := 2; sender < net.n; sender++ {
			for r := range net.sessions {
				net.deliverValue(r, sender, values[d][sender])
			}
		}
	}
	net.deliverAllConfirms()
	requireAgreement(t, net.activeKeyrings())

	data, err = restored.Bytes()
	require.NoError(t, err)
	wiped, err := RestoreSession(iid, data, net.keyrings[2])
	require.NoError(t, err)
	require.Equal(t, PhaseConfirmed, wiped.Phase())
	_, err = wiped.ActiveKeyring()
	require.Error(t, err)
}

func TestAbandonWipesSecrets(t *testing.T) {
	net := newTestNetwork(t, 4, 1, "abandon")
	net.deliverAllValues(net.runCommits())
	s := net.sessions[1]
	keys, err := s.TryGetKeys()
	require.NoError(t, err)
	require.True(t, keys.TPKEVerificationKey.Matches(keys.TPKEPrivateKey))

	s.Abandon()
	require.Equal(t, PhaseAbandoned, s.Phase())
	require.False(t, keys.TPKEVerificationKey.Matches(keys.TPKEPrivateKey))
	for d := 0; d < net.n; d++ {
		require.Zero(t, s.State(d).ValueCount())
	}

	_, err = s.TryGetKeys()
	require.ErrorIs(t, err, ErrAbandoned)
	_, err = s.HandleConfirm(0, net.confirms[0])
	require.ErrorIs(t, err, ErrAbandoned)
}

func TestNewSessionValidation(t *testing.T) {
	keyrings, publicKeys := testhelpers.NewP256Keys(t, 4, unsaferand.New("validation"))

	_, err := NewSession(iid, publicKeys[:3], 1, keyrings[0])
	require.Error(t, err, "n must exceed 3f")
	_, err = NewSession(iid, publicKeys, -1, keyrings[0])
	require.Error(t, err)
	_, err = NewSession(iid, publicKeys[1:], 0, keyrings[0])
	require.Error(t, err, "keyring must belong to a player")
	_, err = NewSession(iid, []dkgtypes.P256PublicKey{publicKeys[0], publicKeys[0]}, 0, keyrings[0])
	require.Error(t, err)
	_, err = NewSession(iid, publicKeys, 1, nil)
	require.Error(t, err)

	s, err := NewSession(iid, publicKeys, 0, keyrings[3])
	require.NoError(t, err)
	assert.Equal(t, 3, s.PlayerIndex())
	assert.Equal(t, 4, s.N())
	assert.Equal(t, 0, s.F())
}

func TestMessageEncodings(t *testing.T) {
	net := newTestNetwork(t, 4, 1, "encodings")
	values := net.runCommits()
	net.deliverAllValues(values)

	commit := net.start3Commit()
	data, err := codec.Marshal(commit)
	require.NoError(t, err)
	decoded, err := UnmarshalCommitMessage(data, 4, 1)
	require.NoError(t, err)
	require.True(t, commit.Commitment.Equal(decoded.Commitment))
	require.Equal(t, commit.EncryptedRows, decoded.EncryptedRows)
	_, err = UnmarshalCommitMessage(data, 5, 1)
	require.Error(t, err)
	_, err = UnmarshalCommitMessage(data, 4, 0)
	require.Error(t, err)

	data, err = codec.Marshal(values[1][2])
	require.NoError(t, err)
	value, err := UnmarshalValueMessage(data, 4)
	require.NoError(t, err)
	require.Equal(t, values[1][2], value)
	_, err = UnmarshalValueMessage(data[:len(data)-1], 4)
	require.Error(t, err)

	data, err = codec.Marshal(net.confirms[3])
	require.NoError(t, err)
	confirm, err := UnmarshalConfirmMessage(data, 4)
	require.NoError(t, err)
	require.True(t, confirm.VerificationKey.Equal(net.confirms[3].VerificationKey))
	require.True(t, confirm.PublicKeySet.Equal(net.confirms[3].PublicKeySet))
	require.Equal(t, net.confirms[3].Dealers, confirm.Dealers)
	require.Equal(t,
		ConfirmDigest(net.confirms[3].VerificationKey, net.confirms[3].PublicKeySet),
		ConfirmDigest(confirm.VerificationKey, confirm.PublicKeySet),
	)
}

func (net *testNetwork) start3Commit() *CommitMessage {
	s, err := NewSession(iid, net.publicKeys, net.f, net.keyrings[3])
	require.NoError(net.t, err)
	msg, err := s.StartKeygen(unsaferand.New(net.seed, "fresh commit"))
	require.NoError(net.t, err)
	return msg
}

func TestThresholdKeyringEncoding(t *testing.T) {
	keyrings, publicKeys := testhelpers.NewP256Keys(t, 4, unsaferand.New("keyring encoding"))
	keys, err := SimulateForTest(iid, publicKeys, 1, keyrings)
	require.NoError(t, err)

	data, err := keys[2].Bytes()
	require.NoError(t, err)
	decoded, err := codec.Unmarshal(data, &ThresholdKeyring{})
	require.NoError(t, err)
	require.Equal(t, keys[2].Digest(), decoded.Digest())
	require.Equal(t, 2, decoded.PlayerIndex())
	require.True(t, decoded.TPKEVerificationKey.Matches(decoded.TPKEPrivateKey))

	// A private key share of another player does not match the verification key at this index.
	other, err := keys[1].Bytes()
	require.NoError(t, err)
	mixed := append(append([]byte(nil), data[:codec.IntSize]...), other[codec.IntSize:]...)
	_, err = codec.Unmarshal(mixed, &ThresholdKeyring{})
	require.Error(t, err)
}

func TestSimulateIsDeterministic(t *testing.T) {
	keyrings, publicKeys := testhelpers.NewP256Keys(t, 4, unsaferand.New("deterministic"))
	a, err := SimulateForTest(iid, publicKeys, 1, keyrings)
	require.NoError(t, err)
	b, err := SimulateForTest(iid, publicKeys, 1, keyrings)
	require.NoError(t, err)
	require.Equal(t, a[0].Digest(), b[0].Digest())

	c, err := SimulateForTest("other-instance", publicKeys, 1, keyrings)
	require.NoError(t, err)
	require.NotEqual(t, a[0].Digest(), c[0].Digest())
}

func TestFaultErrorsAreTagged(t *testing.T) {
	net := newTestNetwork(t, 4, 1, "tagged")
	_, err := net.sessions[0].HandleSendValue(1, &ValueMessage{0, make([][]byte, 4)})
	var fault *dkgtypes.FaultError
	require.True(t, errors.As(err, &fault))
	require.Equal(t, dkgtypes.ErrInsufficientQuorum, fault.Kind)
}
