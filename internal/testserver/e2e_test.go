package testserver_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/exowarexyz/simulator/internal/testserver"
	"github.com/exowarexyz/simulator/internal/visibility"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func doReq(t *testing.T, method, url, token string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestScenarioSetThenGet(t *testing.T) {
	srv, err := testserver.Start(testserver.Options{AllowPublicAccess: true})
	require.NoError(t, err)
	defer srv.Close()

	resp := doReq(t, http.MethodPost, srv.BaseURL()+"/store/kv/"+b64("key1"), srv.Token, []byte("value1"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doReq(t, http.MethodGet, srv.BaseURL()+"/store/kv/"+b64("key1"), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var payload struct {
		Value string `json:"value"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()
	decoded, err := base64.StdEncoding.DecodeString(payload.Value)
	require.NoError(t, err)
	require.Equal(t, "value1", string(decoded))
}

func TestScenarioRangeQuery(t *testing.T) {
	srv, err := testserver.Start(testserver.Options{AllowPublicAccess: true})
	require.NoError(t, err)
	defer srv.Close()

	for k, v := range map[string]string{"a": "1", "b": "2", "c": "3"} {
		resp := doReq(t, http.MethodPost, srv.BaseURL()+"/store/kv/"+b64(k), srv.Token, []byte(v))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	url := fmt.Sprintf("%s/store/kv?start=%s&end=%s", srv.BaseURL(), b64("a"), b64("c"))
	resp := doReq(t, http.MethodGet, url, srv.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var payload struct {
		Results []struct{ Key, Value string } `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()
	require.Len(t, payload.Results, 2)
	require.Equal(t, b64("a"), payload.Results[0].Key)
	require.Equal(t, b64("b"), payload.Results[1].Key)
}

func TestScenarioConsistencyDelay(t *testing.T) {
	srv, err := testserver.Start(testserver.Options{
		AllowPublicAccess: true,
		Bounds:            visibility.Bounds{Min: 200, Max: 300},
	})
	require.NoError(t, err)
	defer srv.Close()

	resp := doReq(t, http.MethodPost, srv.BaseURL()+"/store/kv/"+b64("key"), srv.Token, []byte("value"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	time.Sleep(100 * time.Millisecond)
	resp = doReq(t, http.MethodGet, srv.BaseURL()+"/store/kv/"+b64("key"), "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	time.Sleep(300 * time.Millisecond)
	resp = doReq(t, http.MethodGet, srv.BaseURL()+"/store/kv/"+b64("key"), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestScenarioAuthRequired(t *testing.T) {
	srv, err := testserver.Start(testserver.Options{AllowPublicAccess: false})
	require.NoError(t, err)
	defer srv.Close()

	url := srv.BaseURL() + "/store/kv/" + b64("key")
	resp := doReq(t, http.MethodGet, url, "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doReq(t, http.MethodGet, url, "wrong-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doReq(t, http.MethodGet, url, srv.Token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestScenarioRateLimit(t *testing.T) {
	srv, err := testserver.Start(testserver.Options{AllowPublicAccess: true})
	require.NoError(t, err)
	defer srv.Close()

	url := srv.BaseURL() + "/store/kv/" + b64("k")
	resp := doReq(t, http.MethodPost, url, srv.Token, []byte("v1"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doReq(t, http.MethodPost, url, srv.Token, []byte("v2"))
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	resp.Body.Close()
}

func TestScenarioStreamPublishSubscribe(t *testing.T) {
	srv, err := testserver.Start(testserver.Options{AllowPublicAccess: true})
	require.NoError(t, err)
	defer srv.Close()

	wsURL := fmt.Sprintf("%s/stream/s?token=%s", srv.WSBaseURL(), srv.Token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)
	resp := doReq(t, http.MethodPost, srv.BaseURL()+"/stream/s", srv.Token, []byte("hello"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, msgType)
	require.Equal(t, "hello", string(data))
}

func TestScenarioAdbProof(t *testing.T) {
	srv, err := testserver.Start(testserver.Options{AllowPublicAccess: true})
	require.NoError(t, err)
	defer srv.Close()

	setKeyURL := fmt.Sprintf("%s/store/adb/set_key?key=%s&position=0", srv.BaseURL(), b64("k"))
	resp := doReq(t, http.MethodPost, setKeyURL, srv.Token, []byte("v"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	getURL := fmt.Sprintf("%s/store/adb?key=%s&size=1", srv.BaseURL(), b64("k"))
	resp = doReq(t, http.MethodGet, getURL, srv.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var payload struct {
		Value     string `json:"value"`
		Position  uint64 `json:"position"`
		ProofData string `json:"proof_data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()
	require.EqualValues(t, 0, payload.Position)
	require.Empty(t, payload.ProofData)

	getURL3 := fmt.Sprintf("%s/store/adb?key=%s&size=3", srv.BaseURL(), b64("k"))
	resp = doReq(t, http.MethodGet, getURL3, srv.Token, nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp.Body.Close()

	digest := bytes.Repeat([]byte{1}, 32)
	setDigestURL := fmt.Sprintf("%s/store/adb/set_node_digest?position=1", srv.BaseURL())
	resp = doReq(t, http.MethodPost, setDigestURL, srv.Token, digest)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doReq(t, http.MethodGet, getURL3, srv.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()
	proof, err := base64.StdEncoding.DecodeString(payload.ProofData)
	require.NoError(t, err)
	require.Len(t, proof, 32)
}
