package keygen

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bftkit/thresholdcore/internal/crypto/dkg"
	"github.com/bftkit/thresholdcore/internal/crypto/dkgtypes"
	"github.com/bftkit/thresholdcore/internal/crypto/p256keyringshim"
	"github.com/bftkit/thresholdcore/internal/kv"
	"github.com/bftkit/thresholdcore/internal/logger"
	"github.com/bftkit/thresholdcore/internal/metrics"
	"github.com/bftkit/thresholdcore/keygen/keygentypes"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/smartcontractkit/libocr/commontypes"
	"github.com/smartcontractkit/libocr/offchainreporting2plus/ocr3_1types"
)

// Fault kinds of rejected messages, see dkgtypes.
var (
	ErrMalformedMessage   = dkgtypes.ErrMalformedMessage
	ErrProtocolFault      = dkgtypes.ErrProtocolFault
	ErrInsufficientQuorum = dkgtypes.ErrInsufficientQuorum

	ErrAlreadyStarted = dkg.ErrAlreadyStarted
	ErrAborted        = dkg.ErrAborted
	ErrAbandoned      = dkg.ErrAbandoned
	ErrKeygenFailed   = dkg.ErrKeygenFailed
)

// FaultyPlayer returns the participant blamed by err, if any.
func FaultyPlayer(err error) (int, bool) {
	return dkgtypes.FaultyPlayer(err)
}

// FaultyDealer returns the dealer blamed by err in addition to FaultyPlayer. If set, only one of the two misbehaved.
func FaultyDealer(err error) (int, bool) {
	return dkgtypes.FaultyDealer(err)
}

type Phase = dkg.Phase

const (
	PhaseIdle            = dkg.PhaseIdle
	PhaseCommitted       = dkg.PhaseCommitted
	PhaseLocallyFinished = dkg.PhaseLocallyFinished
	PhaseConfirmPending  = dkg.PhaseConfirmPending
	PhaseConfirmed       = dkg.PhaseConfirmed
	PhaseAborted         = dkg.PhaseAborted
	PhaseAbandoned       = dkg.PhaseAbandoned
)

// Output of a handled message.
type Output struct {
	// Messages to broadcast to all participants, including the local one.
	Messages [][]byte

	// Set by the call that activated the agreed key material, nil otherwise.
	Keyring *Keyring
}

// Session runs the key generation of one instance for the local participant. Its state is persisted to the key/value
// database after every call, so a restarted node continues where it stopped. If a call cannot store its result, it
// has no effect and may be repeated. All methods are safe for concurrent use, calls are serialized.
type Session struct {
	mu sync.Mutex

	logger    commontypes.Logger
	metrics   *metrics.Metrics
	kvDB      ocr3_1types.KeyValueDatabase
	keyringDB keygentypes.KeyringDatabase
	iid       keygentypes.InstanceID
	config    keygentypes.Config
	rand      io.Reader
	identity  dkgtypes.P256Keyring
	opts      []dkg.Option

	core    *dkg.Session
	keyring *Keyring // set once the agreed key material is activated and stored
}

// NewSession creates the session of the given instance, or restores it if the key/value database holds its state.
func NewSession(ctx context.Context, args Args) (*Session, error) {
	if err := args.Validate(); err != nil {
		return nil, fmt.Errorf("invalid key generation arguments: %w", err)
	}

	lggr := args.Logger
	if lggr == nil {
		lggr = logger.New(logrus.InfoLevel)
	}
	lggr = logger.With(lggr, commontypes.LogFields{"instanceID": args.InstanceID})

	registerer := args.MetricsRegisterer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	m, err := metrics.New(registerer, string(args.InstanceID))
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	rand := args.Rand
	if rand == nil {
		rand = crand.Reader
	}

	identity, err := p256keyringshim.New(args.Keyring)
	if err != nil {
		return nil, err
	}
	publicKeys := make([]dkgtypes.P256PublicKey, len(args.Config.ParticipantPublicKeys))
	for i, pk := range args.Config.ParticipantPublicKeys {
		if publicKeys[i], err = dkgtypes.NewP256PublicKey(pk); err != nil {
			return nil, fmt.Errorf("failed to derive participant %d public key: %w", i, err)
		}
	}

	s := &Session{
		logger:    lggr,
		metrics:   m,
		kvDB:      args.KeyValueDatabase,
		keyringDB: args.KeyringDatabase,
		iid:       args.InstanceID,
		config:    args.Config,
		rand:      rand,
		identity:  identity,
	}

	if s.keyring, err = s.loadKeyring(ctx); err != nil {
		return nil, err
	}

	iid := dkgtypes.InstanceID(args.InstanceID)
	opts := []dkg.Option{dkg.WithRandomness(rand)}
	if args.Config.ExcludeFaultyDealers {
		opts = append(opts, dkg.WithFaultyDealerExclusion())
	}
	s.opts = opts

	err = kv.View(s.kvDB, func(r ocr3_1types.KeyValueReader) error {
		var err error
		s.core, err = kv.ReadObject(r, kv.SessionStateKey(iid), dkg.NewSessionUnmarshaler(iid, identity, opts...))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	if s.core != nil {
		if err := s.checkRestored(publicKeys); err != nil {
			return nil, err
		}
		if s.keyring != nil && s.core.Phase() == PhaseConfirmed {
			// The node stopped between storing the keyring and persisting the wiped state.
			if _, err := s.core.ActiveKeyring(); err == nil {
				if err := s.persist(); err != nil {
					return nil, err
				}
			}
		}
		s.logger.Info("KeygenSession: restored session state", commontypes.LogFields{
			"phase":  s.core.Phase().String(),
			"player": s.core.PlayerIndex(),
		})
	} else {
		if s.core, err = dkg.NewSession(iid, publicKeys, args.Config.F, identity, opts...); err != nil {
			return nil, err
		}
		s.logger.Info("KeygenSession: created session", commontypes.LogFields{
			"n":      s.core.N(),
			"f":      s.core.F(),
			"player": s.core.PlayerIndex(),
		})
	}

	s.updateMetrics()
	return s, nil
}

func (s *Session) loadKeyring(ctx context.Context) (*Keyring, error) {
	stored, err := s.keyringDB.ReadKeyring(ctx, s.iid)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring from database: %w", err)
	}
	if stored == nil {
		return nil, nil
	}

	storedConfig, err := stored.Config.MarshalBinary()
	if err != nil {
		return nil, err
	}
	config, err := s.config.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(storedConfig, config) {
		return nil, fmt.Errorf("stored keyring of instance %s was generated with a different config", s.iid)
	}

	keyring, err := UnmarshalKeyring(stored.Keyring)
	if err != nil {
		return nil, err
	}
	if keyring.Digest() != stored.Digest {
		return nil, fmt.Errorf("stored keyring does not match its digest %s", stored.Digest)
	}
	return keyring, nil
}

func (s *Session) checkRestored(publicKeys []dkgtypes.P256PublicKey) error {
	restored := s.core.PublicKeys()
	if s.core.F() != s.config.F || len(restored) != len(publicKeys) {
		return fmt.Errorf(
			"restored session has (n=%d, f=%d), config has (n=%d, f=%d)",
			len(restored), s.core.F(), len(publicKeys), s.config.F,
		)
	}
	for i := range restored {
		if !restored[i].Equal(publicKeys[i]) {
			return fmt.Errorf("restored session has a different public key for participant %d", i)
		}
	}
	return nil
}

// Start samples the local contribution and returns the commit message to broadcast. If the session state cannot be
// persisted, nothing was started and Start may be called again.
func (s *Session) Start(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.core.Bytes()
	if err != nil {
		return nil, err
	}
	defer clear(snapshot)

	commit, err := s.core.StartKeygen(s.rand)
	if err != nil {
		return nil, err
	}
	data, err := encodeMessage(MessageTypeCommit, commit)
	if err == nil {
		err = s.persist()
	}
	if err != nil {
		return nil, s.rollback(snapshot, false, err)
	}

	s.logger.Info("KeygenSession: started, broadcasting commit", commontypes.LogFields{"bytes": len(data)})
	s.updateMetrics()
	return data, nil
}

// HandleMessage processes a message broadcast by the given sender. Rejected messages return an error matching one of
// the fault kinds. State changes caused by a rejected message, e.g., a recorded misbehaving dealer, are persisted
// nevertheless. If the keyring or the session state cannot be stored, the message is not processed at all and should
// be delivered again later.
func (s *Session) HandleMessage(ctx context.Context, sender int, data []byte) (Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.core.Bytes()
	if err != nil {
		return Output{}, err
	}
	defer clear(snapshot)
	hadKeyring := s.keyring != nil

	t, _ := PeekMessageType(data)
	var out Output
	switch {
	case len(data) == 0:
		err = dkgtypes.MalformedMessagef(sender, "empty message")
	case t == MessageTypeCommit:
		out, err = s.handleCommit(sender, data[1:])
	case t == MessageTypeValue:
		out, err = s.handleValue(sender, data[1:])
	case t == MessageTypeConfirm:
		out, err = s.handleConfirm(sender, data[1:])
	default:
		err = dkgtypes.MalformedMessagef(sender, "unknown message type %d", byte(t))
	}

	if err != nil {
		s.recordFault(sender, t, err)
	} else {
		s.metrics.MessagesHandled.WithLabelValues(t.String()).Inc()
	}

	// The keyring must be stored before the wiped session state replaces the previous one.
	tk, activationErr := s.activate()
	if tk != nil {
		if storeErr := s.storeKeyring(ctx, tk); storeErr != nil {
			return Output{}, s.rollback(snapshot, hadKeyring, err, storeErr)
		}
		out.Keyring = s.keyring
	}

	if persistErr := s.persist(); persistErr != nil {
		return Output{}, s.rollback(snapshot, hadKeyring, err, activationErr, persistErr)
	}
	s.updateMetrics()
	if activationErr != nil {
		return out, multierror.Append(err, activationErr)
	}
	return out, err
}

// rollback restores the core from the snapshot taken before the failed call and combines errs.
func (s *Session) rollback(snapshot []byte, hadKeyring bool, errs ...error) error {
	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}

	if s.core.Phase() == PhaseAbandoned {
		// An abandoned session holds no secrets anymore, deleting its state is retried by the next call.
		return result.ErrorOrNil()
	}
	restored, err := dkg.RestoreSession(dkgtypes.InstanceID(s.iid), snapshot, s.identity, s.opts...)
	if err != nil {
		return multierror.Append(result, fmt.Errorf("failed to roll back session state: %w", err))
	}
	s.core.Abandon()
	s.core = restored
	if !hadKeyring && s.keyring != nil {
		s.keyring.zeroize()
		s.keyring = nil
	}

	s.logger.Warn("KeygenSession: failed to store result, rolled back", commontypes.LogFields{
		"phase": s.core.Phase().String(),
		"error": fmt.Sprint(result.ErrorOrNil()),
	})
	s.updateMetrics()
	return result.ErrorOrNil()
}

func (s *Session) handleCommit(sender int, payload []byte) (Output, error) {
	msg, err := dkg.UnmarshalCommitMessage(payload, s.core.N(), s.core.F())
	if err != nil {
		return Output{}, dkgtypes.MalformedMessage(sender, err)
	}
	value, err := s.core.HandleCommit(sender, msg)
	if err != nil || value == nil {
		return Output{}, err
	}
	data, err := encodeMessage(MessageTypeValue, value)
	if err != nil {
		return Output{}, err
	}
	s.logger.Debug("KeygenSession: accepted commit", commontypes.LogFields{"dealer": sender})
	return Output{Messages: [][]byte{data}}, nil
}

func (s *Session) handleValue(sender int, payload []byte) (Output, error) {
	msg, err := dkg.UnmarshalValueMessage(payload, s.core.N())
	if err != nil {
		return Output{}, dkgtypes.MalformedMessage(sender, err)
	}
	ready, err := s.core.HandleSendValue(sender, msg)
	if err != nil || !ready {
		return Output{}, err
	}

	confirm, err := s.core.MakeConfirm()
	if err != nil {
		return Output{}, err
	}
	data, err := encodeMessage(MessageTypeConfirm, confirm)
	if err != nil {
		return Output{}, err
	}
	s.logger.Info("🚀 KeygenSession: enough dealers finished, broadcasting confirm", commontypes.LogFields{
		"dealers": confirm.Dealers,
	})
	return Output{Messages: [][]byte{data}}, nil
}

func (s *Session) handleConfirm(sender int, payload []byte) (Output, error) {
	msg, err := dkg.UnmarshalConfirmMessage(payload, s.core.N())
	if err != nil {
		return Output{}, dkgtypes.MalformedMessage(sender, err)
	}
	confirmed, err := s.core.HandleConfirm(sender, msg)
	if confirmed {
		digest, _ := s.core.ConfirmedDigest()
		s.logger.Info("🚀🚀🚀 KeygenSession: key material confirmed by a quorum", commontypes.LogFields{
			"digest": digest.Hex(),
		})
	}
	return Output{}, err
}

// activate returns the agreed key material once the session is confirmed and the keyring was not stored yet. A
// keyring stored before a restart only makes the core catch up and wipe its intermediates.
func (s *Session) activate() (*dkg.ThresholdKeyring, error) {
	if s.core.Phase() != PhaseConfirmed || (s.keyring != nil && s.core.Wiped()) {
		return nil, nil
	}
	tk, err := s.core.ActiveKeyring()
	if errors.Is(err, dkgtypes.ErrInsufficientQuorum) {
		s.logger.Debug("KeygenSession: confirmed, waiting for values of the agreed dealers", commontypes.LogFields{
			"reason": err.Error(),
		})
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to activate key material: %w", err)
	}
	if s.keyring != nil {
		if s.keyring.Digest() != tk.Digest() {
			return nil, fmt.Errorf("stored keyring %s differs from the agreed key material %s", s.keyring.Digest(), tk.Digest())
		}
		return nil, nil
	}
	return tk, nil
}

func (s *Session) storeKeyring(ctx context.Context, tk *dkg.ThresholdKeyring) error {
	data, err := tk.Bytes()
	if err != nil {
		return err
	}
	value := keygentypes.KeyringDatabaseValue{Config: s.config, Digest: tk.Digest(), Keyring: data}
	if err := s.keyringDB.WriteKeyring(ctx, s.iid, value); err != nil {
		return fmt.Errorf("failed to write keyring to database: %w", err)
	}

	// The keyring is kept independent of the core, which may be rolled back.
	if s.keyring, err = UnmarshalKeyring(data); err != nil {
		return err
	}
	s.logger.Info("🚀🚀🚀🚀🚀 KeygenSession: keyring activated", commontypes.LogFields{
		"digest": tk.Digest().Hex(),
	})
	return nil
}

func (s *Session) persist() error {
	iid := dkgtypes.InstanceID(s.iid)
	return kv.Update(s.kvDB, func(rw ocr3_1types.KeyValueReadWriter) error {
		if s.core.Phase() == dkg.PhaseAbandoned {
			return kv.DeleteObject(rw, kv.SessionStateKey(iid))
		}
		n, err := kv.WriteObject(rw, kv.SessionStateKey(iid), s.core)
		if err == nil {
			s.logger.Trace("KeygenSession: persisted session state", commontypes.LogFields{"bytes": n})
		}
		return err
	})
}

func (s *Session) recordFault(sender int, t MessageType, err error) {
	kind := "other"
	switch {
	case errors.Is(err, dkgtypes.ErrMalformedMessage):
		kind = "malformed_message"
	case errors.Is(err, dkgtypes.ErrProtocolFault):
		kind = "protocol_fault"
	case errors.Is(err, dkgtypes.ErrInsufficientQuorum):
		kind = "insufficient_quorum"
	}
	s.metrics.Faults.WithLabelValues(kind).Inc()

	fields := commontypes.LogFields{"sender": sender, "type": t.String(), "error": err.Error()}
	if player, ok := dkgtypes.FaultyPlayer(err); ok {
		fields["faultyPlayer"] = player
	}
	if dealer, ok := dkgtypes.FaultyDealer(err); ok {
		fields["faultyDealer"] = dealer
	}
	switch {
	case errors.Is(err, dkg.ErrKeygenFailed):
		s.logger.Critical("KeygenSession: all participants confirmed, no key material reached a quorum", fields)
	case errors.Is(err, dkgtypes.ErrInsufficientQuorum):
		s.logger.Debug("KeygenSession: message cannot be processed yet", fields)
	default:
		s.logger.Warn("KeygenSession: rejected message", fields)
	}

	if dealer, aborted := s.core.AbortedBy(); aborted && errors.Is(err, dkgtypes.ErrProtocolFault) {
		s.logger.Error("KeygenSession: session aborted by faulty dealer", commontypes.LogFields{"dealer": dealer})
	}
}

func (s *Session) updateMetrics() {
	s.metrics.FinishedDealers.Set(float64(len(s.core.FinishedDealers())))
	s.metrics.Confirmations.Set(float64(s.core.ConfirmCount()))
	s.metrics.Phase.Set(float64(s.Phase()))
}

// Phase returns the current phase. A session whose keyring was stored reports PhaseConfirmed, also after a restart.
func (s *Session) Phase() Phase {
	phase := s.core.Phase()
	if s.keyring != nil && phase != PhaseAbandoned {
		return PhaseConfirmed
	}
	return phase
}

// CurrentPhase is like Phase, but safe for concurrent use.
func (s *Session) CurrentPhase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Phase()
}

// PlayerIndex returns the local participant's index.
func (s *Session) PlayerIndex() int {
	return s.core.PlayerIndex()
}

// Keyring returns the activated keyring, or an error matching ErrInsufficientQuorum while key generation is still in
// progress.
func (s *Session) Keyring(ctx context.Context) (*Keyring, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keyring != nil {
		return s.keyring, nil
	}
	if s.core.Phase() == PhaseAbandoned {
		return nil, ErrAbandoned
	}
	if by, aborted := s.core.AbortedBy(); aborted {
		return nil, fmt.Errorf("%w by dealer %d", ErrAborted, by)
	}
	return nil, dkgtypes.InsufficientQuorumf("key generation in phase %s", s.core.Phase())
}

// Abandon wipes all secrets of the session and deletes its persisted state. A keyring that was already stored in the
// keyring database is kept there, but wiped in memory.
func (s *Session) Abandon(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.core.Abandon()
	if s.keyring != nil {
		s.keyring.zeroize()
		s.keyring = nil
	}
	s.updateMetrics()
	s.logger.Warn("KeygenSession: abandoned", nil)
	return s.persist()
}
