package app

import (
	"log/slog"
	"net/http"

	"github.com/itechstro/lime/internal/cryptosuite"
	domain "github.com/itechstro/lime/internal/domain"
	domaintypes "github.com/itechstro/lime/internal/domain/types"
	"github.com/itechstro/lime/internal/engine"
	"github.com/itechstro/lime/internal/relay"
	identitysvc "github.com/itechstro/lime/internal/services/identity"
	messagesvc "github.com/itechstro/lime/internal/services/message"
	prekeysvc "github.com/itechstro/lime/internal/services/prekey"
	"github.com/itechstro/lime/internal/store"
)

// Wire bundles the stores and identity/pre-key services that exist before
// any passphrase is known. Engine and Messages depend on the local
// identity, so they're built lazily by Unlock once the CLI has a
// passphrase and device id.
type Wire struct {
	Config Config
	Logger *slog.Logger

	Identity domain.IdentityStore
	Peers    domain.PeerDeviceStore
	Sessions domain.SessionStore
	Ratchets domain.RatchetStore
	PreKeys  domain.PreKeyStore
	Bundles  domain.PreKeyBundleStore
	Accounts domain.AccountStore

	IDs    domain.IdentityService
	Prekey domain.PreKeyService
}

// NewWire constructs the dependency graph from cfg. It uses the local
// passphrase-encrypted file stores for identity/pre-key/bundle/account
// material (spec.md §3: this is secret local key material, not relational
// server state). PeerDeviceStore, SessionStore, and RatchetStore are file
// stores too; internal/store/pgstore offers PostgreSQL versions of those
// three, which NewWire does not use.
func NewWire(cfg Config, logger *slog.Logger) *Wire {
	if logger == nil {
		logger = slog.Default()
	}
	identityStore := store.NewIdentityFileStore(cfg.Home)
	prekeyStore := store.NewPrekeyFileStore(cfg.Home)
	bundleStore := store.NewBundleFileStore(cfg.Home)
	peerStore := store.NewPeerDeviceFileStore(cfg.Home)
	sessionStore := store.NewSessionFileStore(cfg.Home)
	ratchetStore := store.NewRatchetFileStore(cfg.Home)
	accountStore := store.NewAccountFileStore(cfg.Home)

	return &Wire{
		Config:   cfg,
		Logger:   logger,
		Identity: identityStore,
		Peers:    peerStore,
		Sessions: sessionStore,
		Ratchets: ratchetStore,
		PreKeys:  prekeyStore,
		Bundles:  bundleStore,
		Accounts: accountStore,
		IDs:      identitysvc.New(identityStore),
		Prekey:   prekeysvc.New(identityStore, prekeyStore, bundleStore),
	}
}

// Unlock loads the local identity under passphrase and returns the App
// built around it: an engine.Service bound to that identity's suite plus a
// message service wrapping it and the relay transport.
func (w *Wire) Unlock(passphrase string, selfDeviceID domaintypes.Username) (*App, error) {
	id, err := w.IDs.LoadIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	suite, err := cryptosuite.ForCurve(id.Curve)
	if err != nil {
		return nil, err
	}

	httpClient := w.Config.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	rc := relay.NewHTTP(w.Config.RelayURL, selfDeviceID, id.Curve)
	rc.Client = httpClient

	eng := engine.New(engine.Config{
		Suite:         suite,
		SelfDeviceID:  selfDeviceID,
		Identity:      id,
		PreKeys:       w.PreKeys,
		Peers:         w.Peers,
		Sessions:      w.Sessions,
		Ratchets:      w.Ratchets,
		Relay:         rc,
		DrainingGrace: w.Config.SessionDrainingGrace,
		Logger:        w.Logger,
	})
	msgSvc := messagesvc.New(eng, rc)

	return &App{
		Identity:     id,
		SelfDeviceID: selfDeviceID,
		IDs:          w.IDs,
		Prekey:       w.Prekey,
		Engine:       eng,
		Messages:     msgSvc,
		Relay:        rc,
	}, nil
}
