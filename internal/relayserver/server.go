package relayserver

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/itechstro/lime/internal/cryptosuite"
	domaintypes "github.com/itechstro/lime/internal/domain/types"
	"github.com/itechstro/lime/internal/protocol/x3dhcodec"
)

// Server is the net/http handler speaking the x3dhcodec binary protocol
// (spec.md §6): every request and response body is one wire message.
type Server struct {
	store  *Store
	logger *slog.Logger
	mux    *http.ServeMux
}

// New returns a Server backed by store.
func New(store *Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{store: store, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("/register", s.handleRegister)
	s.mux.HandleFunc("/user/delete", s.handleDeleteUser)
	s.mux.HandleFunc("/spk", s.handlePostSPK)
	s.mux.HandleFunc("/opks", s.handlePostOPKs)
	s.mux.HandleFunc("/bundle", s.handleGetBundle)
	s.mux.HandleFunc("/messages/send", s.handleSend)
	s.mux.HandleFunc("/messages/fetch", s.handleFetch)
	s.mux.HandleFunc("/messages/ack", s.handleAck)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) fail(w http.ResponseWriter, status int, code byte, msg string) {
	w.Header().Set("Content-Type", "x3dh/octet-stream")
	w.WriteHeader(status)
	_, _ = w.Write(x3dhcodec.EncodeError(code, msg))
}

func (s *Server) respond(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "x3dh/octet-stream")
	_, _ = w.Write(body)
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

func fromHeader(r *http.Request) domaintypes.Username {
	return domaintypes.Username(r.Header.Get("From"))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	h, rest, err := x3dhcodec.PeekHeader(body)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	ik, err := x3dhcodec.DecodeRegisterUser(h, rest)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	from := fromHeader(r)
	s.store.RegisterUser(from, h.Curve, ik)
	s.logger.Info("registered device", "device", from)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	_, rest, err := x3dhcodec.PeekHeader(body)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	if err := x3dhcodec.DecodeDeleteUser(rest); err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	from := fromHeader(r)
	s.store.DeleteUser(from)
	s.logger.Info("deleted device", "device", from)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePostSPK(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	h, rest, err := x3dhcodec.PeekHeader(body)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	pub, sig, id, err := x3dhcodec.DecodePostSPK(h, rest)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	s.store.PostSignedPreKey(fromHeader(r), id, pub, sig)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePostOPKs(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	h, rest, err := x3dhcodec.PeekHeader(body)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	entries, err := x3dhcodec.DecodePostOPKs(h, rest)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	converted := make([]struct {
		ID  uint32
		Pub []byte
	}, len(entries))
	for i, e := range entries {
		converted[i] = struct {
			ID  uint32
			Pub []byte
		}{ID: e.ID, Pub: e.Public}
	}
	s.store.PostOneTimePreKeys(fromHeader(r), converted)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetBundle(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	_, rest, err := x3dhcodec.PeekHeader(body)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	deviceIDs, err := x3dhcodec.DecodeGetPeerBundle(rest)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}

	var curve cryptosuite.CurveID
	entries := make([]x3dhcodec.PeerBundleEntry, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		b := s.store.FetchBundle(domaintypes.Username(id))
		if !b.Found {
			continue
		}
		curve = b.Curve
		entries = append(entries, x3dhcodec.PeerBundleEntry{
			DeviceID: id,
			HasOPK:   b.HasOPK,
			IK:       b.IdentityKey,
			SPK:      b.SPKPub,
			SPKID:    b.SPKID,
			SPKSig:   b.SPKSig,
			OPK:      b.OPKPub,
			OPKID:    b.OPKID,
		})
	}
	if len(entries) == 0 {
		s.fail(w, http.StatusNotFound, 2, "no such device")
		return
	}
	s.respond(w, x3dhcodec.EncodePeerBundle(curve, entries))
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	_, rest, err := x3dhcodec.PeekHeader(body)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	env, err := x3dhcodec.DecodeSendEnvelope(rest)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	s.store.Enqueue(env)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	h, rest, err := x3dhcodec.PeekHeader(body)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	limit, err := x3dhcodec.DecodeFetchEnvelopes(rest)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	envs := s.store.Fetch(fromHeader(r), limit)
	s.respond(w, x3dhcodec.EncodeEnvelopeList(h.Curve, envs))
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	_, rest, err := x3dhcodec.PeekHeader(body)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	count, err := x3dhcodec.DecodeAck(rest)
	if err != nil {
		s.fail(w, http.StatusBadRequest, 1, err.Error())
		return
	}
	s.store.Ack(fromHeader(r), count)
	w.WriteHeader(http.StatusOK)
}
