// Package httpserver assembles the simulator's HTTP route table: base64
// wire decoding, the auth gate, and error-to-status translation, wired
// around internal/store, internal/adb and internal/stream.
package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/exowarexyz/simulator/internal/adb"
	"github.com/exowarexyz/simulator/internal/apierr"
	"github.com/exowarexyz/simulator/internal/auth"
	"github.com/exowarexyz/simulator/internal/store"
	"github.com/exowarexyz/simulator/internal/stream"
	"go.uber.org/zap"
)

// Credentials implements auth.CredentialProvider for the server's static
// configuration.
type Credentials struct {
	token             string
	allowPublicAccess bool
}

// NewCredentials builds a Credentials provider.
func NewCredentials(token string, allowPublicAccess bool) Credentials {
	return Credentials{token: token, allowPublicAccess: allowPublicAccess}
}

func (c Credentials) Token() string          { return c.token }
func (c Credentials) AllowPublicAccess() bool { return c.allowPublicAccess }

// Server bundles the handler groups and the auth gate into a routed
// http.Handler.
type Server struct {
	creds  auth.CredentialProvider
	store  *store.Store
	adb    *adb.Store
	stream *stream.Handler
	log    *zap.SugaredLogger
}

// New constructs the HTTP surface. creds, store, adb and streamHandler
// must be non-nil.
func New(creds auth.CredentialProvider, st *store.Store, adbStore *adb.Store, streamHandler *stream.Handler, log *zap.SugaredLogger) *Server {
	return &Server{creds: creds, store: st, adb: adbStore, stream: streamHandler, log: log}
}

// Handler returns the fully wired http.Handler, with CORS and the request
// body size ceiling applied ahead of routing, and the auth gate applied to
// every route (including the WebSocket upgrade).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /store/kv/{key}", s.withAuth(s.handleSetKV))
	mux.HandleFunc("GET /store/kv/{key}", s.withAuth(s.handleGetKV))
	mux.HandleFunc("GET /store/kv", s.withAuth(s.handleQueryKV))

	mux.HandleFunc("POST /store/adb/set_key", s.withAuth(s.handleAdbSetKey))
	mux.HandleFunc("POST /store/adb/set_node_digest", s.withAuth(s.handleAdbSetNodeDigest))
	mux.HandleFunc("GET /store/adb", s.withAuth(s.handleAdbGet))

	mux.HandleFunc("POST /stream/{name}", s.withAuth(s.handleStreamPublish))
	mux.HandleFunc("GET /stream/{name}", s.withAuth(s.handleStreamSubscribe))

	return withCORS(withBodyLimit(mux))
}

// withAuth wraps handler with the auth gate, matching every route
// (including the WebSocket upgrade, where a query-string token is the
// normal credential channel).
func (s *Server) withAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := auth.Authenticate(r, s.creds); err != nil {
			writeError(w, err)
			return
		}
		handler(w, r)
	}
}

// --- KV handlers ---

func (s *Server) handleSetKV(w http.ResponseWriter, r *http.Request) {
	key, err := decodeBase64Param(r.PathValue("key"), "key")
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apierr.New(apierr.KindInvalidBody, "failed to read request body"))
		return
	}
	if err := s.store.Set(key, body); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type getResultPayload struct {
	Value string `json:"value"`
}

func (s *Server) handleGetKV(w http.ResponseWriter, r *http.Request) {
	key, err := decodeBase64Param(r.PathValue("key"), "key")
	if err != nil {
		writeError(w, err)
		return
	}
	value, err := s.store.Get(key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, getResultPayload{Value: base64.StdEncoding.EncodeToString(value)})
}

type queryResultItemPayload struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type queryResultPayload struct {
	Results []queryResultItemPayload `json:"results"`
}

func (s *Server) handleQueryKV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := decodeOptionalBase64Param(q.Get("start"), "start")
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := decodeOptionalBase64Param(q.Get("end"), "end")
	if err != nil {
		writeError(w, err)
		return
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, apierr.New(apierr.KindInvalidParameter, "invalid limit parameter"))
			return
		}
		limit = parsed
	}

	items, err := s.store.Query(start, end, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	results := make([]queryResultItemPayload, 0, len(items))
	for _, item := range items {
		results = append(results, queryResultItemPayload{
			Key:   base64.StdEncoding.EncodeToString(item.Key),
			Value: base64.StdEncoding.EncodeToString(item.Value),
		})
	}
	writeJSON(w, http.StatusOK, queryResultPayload{Results: results})
}

// --- ADB handlers ---

func (s *Server) handleAdbSetKey(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, err := decodeBase64Param(q.Get("key"), "key")
	if err != nil {
		writeError(w, err)
		return
	}
	position, err := parseUintParam(q.Get("position"), "position")
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apierr.New(apierr.KindInvalidBody, "failed to read request body"))
		return
	}
	if err := s.adb.SetKey(key, position, body); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleAdbSetNodeDigest(w http.ResponseWriter, r *http.Request) {
	position, err := parseUintParam(r.URL.Query().Get("position"), "position")
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apierr.New(apierr.KindInvalidBody, "failed to read request body"))
		return
	}
	if err := s.adb.SetNodeDigest(position, body); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type adbGetResultPayload struct {
	Value     string `json:"value"`
	Position  uint64 `json:"position"`
	ProofData string `json:"proof_data"`
}

func (s *Server) handleAdbGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, err := decodeBase64Param(q.Get("key"), "key")
	if err != nil {
		writeError(w, err)
		return
	}
	size, err := parseUintParam(q.Get("size"), "size")
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.adb.Get(key, size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, adbGetResultPayload{
		Value:     base64.StdEncoding.EncodeToString(result.Value),
		Position:  result.Position,
		ProofData: base64.StdEncoding.EncodeToString(result.ProofData),
	})
}

// --- Stream handlers ---

func (s *Server) handleStreamPublish(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apierr.New(apierr.KindInvalidBody, "failed to read request body"))
		return
	}
	if err := s.stream.Publish(name, body); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStreamSubscribe(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.stream.Subscribe(w, r, name); err != nil {
		writeError(w, err)
		return
	}
}

// --- shared helpers ---

func decodeBase64Param(raw, name string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidParameter, "invalid base64 in "+name+" parameter")
	}
	return decoded, nil
}

func decodeOptionalBase64Param(raw, name string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}
	return decodeBase64Param(raw, name)
}

func parseUintParam(raw, name string) (uint64, error) {
	if raw == "" {
		return 0, apierr.New(apierr.KindInvalidParameter, "missing "+name+" parameter")
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apierr.New(apierr.KindInvalidParameter, "invalid "+name+" parameter")
	}
	return parsed, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), apierr.StatusCode(err))
}
