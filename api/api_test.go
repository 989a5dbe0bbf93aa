package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/aragon/zkid-node/chain"
	"github.com/aragon/zkid-node/db"
	"github.com/aragon/zkid-node/gateway"
	"github.com/aragon/zkid-node/idproof"
	"github.com/aragon/zkid-node/test"
	"github.com/aragon/zkid-node/types"
	qt "github.com/frankban/quicktest"
	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"go.vocdoni.io/dvote/log"
)

func init() {
	log.Init("debug", "stdout")
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	*API
	gw    *gateway.Gateway
	gc    *idproof.GlobalContext
	chain *chain.TestClient
	id    *types.Identity
	dist  string
	sqlDB *sql.DB
}

func newTestAPI(c *qt.C) *testAPI {
	gc := test.GenGlobalContext(c)
	tc := chain.NewTestClient(gc)
	id := test.GenIdentity(c, nil)
	tc.SetAccount(test.AccountInfo(c, gc, id))

	sqlDB, err := sql.Open("sqlite3", filepath.Join(c.TempDir(), "testdb.sqlite3"))
	c.Assert(err, qt.IsNil)
	sqlite := db.NewSQLite(sqlDB)
	err = sqlite.Migrate()
	c.Assert(err, qt.IsNil)

	gw, err := gateway.New(context.Background(), gateway.Options{
		Statement: test.Statement,
		Chain:     tc,
		SQLite:    sqlite,
	})
	c.Assert(err, qt.IsNil)

	dist := c.TempDir()
	err = os.WriteFile(filepath.Join(dist, "index.html"), []byte("<html>dao</html>"), 0600)
	c.Assert(err, qt.IsNil)

	a, err := New(Options{Gateway: gw, DistDir: dist})
	c.Assert(err, qt.IsNil)
	return &testAPI{API: a, gw: gw, gc: gc, chain: tc, id: id, dist: dist, sqlDB: sqlDB}
}

func (ta *testAPI) do(c *qt.C, method, path string, body []byte) *httptest.ResponseRecorder {
	req, err := http.NewRequest(method, path, bytes.NewBuffer(body))
	c.Assert(err, qt.IsNil)
	w := httptest.NewRecorder()
	ta.r.ServeHTTP(w, req)
	return w
}

func (ta *testAPI) doGetChallenge(c *qt.C, addr types.AccountAddress) types.Challenge {
	w := ta.do(c, "GET", "/challenge?address="+addr.String(), nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)

	body, err := ioutil.ReadAll(w.Body)
	c.Assert(err, qt.IsNil)
	c.Assert(regexp.MustCompile(`^{"challenge":"[0-9a-f]{64}"}$`).Match(body), qt.IsTrue,
		qt.Commentf("body: %s", body))
	var resp types.ChallengeResponse
	err = json.Unmarshal(body, &resp)
	c.Assert(err, qt.IsNil)
	return resp.Challenge
}

func (ta *testAPI) doPostProve(c *qt.C, proof *types.ChallengedProof) *httptest.ResponseRecorder {
	jsonReq, err := json.Marshal(proof)
	c.Assert(err, qt.IsNil)
	return ta.do(c, "POST", "/prove", jsonReq)
}

func (ta *testAPI) hasChallenge(c *qt.C, ch types.Challenge) bool {
	_, ok, err := ta.gw.ChallengeStatus(ch)
	c.Assert(err, qt.IsNil)
	return ok
}

func TestGetChallenge(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	ch := ta.doGetChallenge(c, ta.id.Address)
	status, ok, err := ta.gw.ChallengeStatus(ch)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	c.Assert(status.Address, qt.Equals, ta.id.Address)

	w := ta.do(c, "GET", "/challenge", nil)
	c.Assert(w.Code, qt.Equals, http.StatusBadRequest)
	c.Assert(w.Body.String(), qt.Equals, `{"message":"missing address"}`)

	w = ta.do(c, "GET", "/challenge?address=notanaddress", nil)
	c.Assert(w.Code, qt.Equals, http.StatusBadRequest)
}

func TestConcurrentGetChallenge(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	var chs [2]types.Challenge
	var wg sync.WaitGroup
	for i := range chs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chs[i] = ta.doGetChallenge(c, ta.id.Address)
		}(i)
	}
	wg.Wait()
	c.Assert(chs[0], qt.Not(qt.Equals), chs[1])
	c.Assert(ta.hasChallenge(c, chs[0]), qt.IsTrue)
	c.Assert(ta.hasChallenge(c, chs[1]), qt.IsTrue)
}

func TestGetStatement(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	w := ta.do(c, "GET", "/statement", nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	before := w.Body.String()

	var s idproof.Statement
	c.Assert(json.Unmarshal([]byte(before), &s), qt.IsNil)
	c.Assert(s, qt.DeepEquals, test.Statement)

	ta.doGetChallenge(c, ta.id.Address)
	ta.doGetChallenge(c, ta.id.Address)

	w = ta.do(c, "GET", "/statement", nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(w.Body.String(), qt.Equals, before)
}

func TestPostProve(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	ch := ta.doGetChallenge(c, ta.id.Address)
	proof := test.GenProof(c, ta.gc, test.Statement, ta.id, ch)

	w := ta.doPostProve(c, proof)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	var token string
	c.Assert(json.Unmarshal(w.Body.Bytes(), &token), qt.IsNil)
	c.Assert(ta.hasChallenge(c, ch), qt.IsFalse)

	w = ta.do(c, "GET", "/token/"+token, nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(w.Body.String(), qt.Matches, `{"createdAt":".+"}`)

	// same body again
	w = ta.doPostProve(c, proof)
	c.Assert(w.Code, qt.Equals, http.StatusInternalServerError)
	c.Assert(w.Body.String(), qt.Contains, "UnknownSession")

	w = ta.do(c, "GET", "/token/unknown", nil)
	c.Assert(w.Code, qt.Equals, http.StatusNotFound)

	w = ta.do(c, "GET", "/verifications/"+ta.id.Address.String(), nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	var vs []types.Verification
	c.Assert(json.Unmarshal(w.Body.Bytes(), &vs), qt.IsNil)
	c.Assert(vs, qt.HasLen, 1)
	c.Assert(vs[0].Outcome, qt.Equals, types.VerificationOK)
}

func TestGetVerificationsStorageFailure(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	w := ta.do(c, "GET", "/verifications/notanaddress", nil)
	c.Assert(w.Code, qt.Equals, http.StatusBadRequest)

	c.Assert(ta.sqlDB.Close(), qt.IsNil)
	w = ta.do(c, "GET", "/verifications/"+ta.id.Address.String(), nil)
	c.Assert(w.Code, qt.Equals, http.StatusInternalServerError)
	c.Assert(w.Body.String(), qt.Equals, `{"message":"can not read verifications"}`)
}

func TestPostProveWrongCredential(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	ch := ta.doGetChallenge(c, ta.id.Address)
	proof := test.GenProof(c, ta.gc, test.Statement, ta.id, ch)
	proof.Proof.Credential[0] ^= 0xff

	w := ta.doPostProve(c, proof)
	c.Assert(w.Code, qt.Equals, http.StatusInternalServerError)
	c.Assert(w.Body.String(), qt.Contains, "Credential")
	c.Assert(ta.hasChallenge(c, ch), qt.IsTrue)
}

func TestPostProveInvalidProofs(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	ch := ta.doGetChallenge(c, ta.id.Address)
	// a valid proof of a statement that the identity satisfies, but not the
	// one of the gateway
	other := idproof.Statement{{Type: idproof.RevealAttribute, AttributeTag: "firstName"},
		{Type: idproof.RevealAttribute, AttributeTag: "lastName"},
		{Type: idproof.RevealAttribute, AttributeTag: "dob"}}
	proof := test.GenProof(c, ta.gc, other, ta.id, ch)

	w := ta.doPostProve(c, proof)
	c.Assert(w.Code, qt.Equals, http.StatusInternalServerError)
	c.Assert(w.Body.String(), qt.Contains, "InvalidProofs")
	c.Assert(ta.hasChallenge(c, ch), qt.IsTrue)

	w = ta.do(c, "GET", "/verifications/"+ta.id.Address.String(), nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(w.Body.String(), qt.Contains, `"outcome":"InvalidProofs"`)
}

func TestPostProveNotAllowed(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)
	ta.chain.SetAccount(test.InitialAccountInfo(ta.id))

	ch := ta.doGetChallenge(c, ta.id.Address)
	w := ta.doPostProve(c, test.GenProof(c, ta.gc, test.Statement, ta.id, ch))
	c.Assert(w.Code, qt.Equals, http.StatusInternalServerError)
	c.Assert(w.Body.String(), qt.Contains, "NotAllowed")
}

func TestPostProveUnknownSession(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	ch, err := types.NewChallenge()
	c.Assert(err, qt.IsNil)
	w := ta.doPostProve(c, test.GenProof(c, ta.gc, test.Statement, ta.id, ch))
	c.Assert(w.Code, qt.Equals, http.StatusInternalServerError)
	c.Assert(w.Body.String(), qt.Equals,
		"UnknownSession: proof provided for an unknown session")
}

func TestPostProveMalformed(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	w := ta.do(c, "POST", "/prove", []byte(`{"challenge":"abc"`))
	c.Assert(w.Code, qt.Equals, http.StatusBadRequest)

	w = ta.do(c, "POST", "/prove", []byte(`{"challenge":"abcd","proof":{}}`))
	c.Assert(w.Code, qt.Equals, http.StatusBadRequest)
	c.Assert(w.Body.String(), qt.Contains, "unexpected challenge length")
}

func TestStaticRoutes(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	w := ta.do(c, "GET", "/hello", nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(w.Body.String(), qt.Equals, "Hello, World!")

	w = ta.do(c, "GET", "/dashboard", nil)
	c.Assert(w.Code, qt.Equals, http.StatusPermanentRedirect)
	c.Assert(w.Header().Get("Location"), qt.Equals, "/")

	w = ta.do(c, "GET", "/", nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(w.Body.String(), qt.Equals, "<html>dao</html>")

	w = ta.do(c, "GET", "/missing.js", nil)
	c.Assert(w.Code, qt.Equals, http.StatusNotFound)

	w = ta.do(c, "DELETE", "/", nil)
	c.Assert(w.Code, qt.Equals, http.StatusNotFound)
}

func TestCORS(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	req, err := http.NewRequest("OPTIONS", "/prove", nil)
	c.Assert(err, qt.IsNil)
	req.Header.Set("Origin", "https://dao.example.org")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	ta.r.ServeHTTP(w, req)
	c.Assert(w.Code, qt.Equals, http.StatusNoContent)
	c.Assert(w.Header().Get("Access-Control-Allow-Origin"), qt.Equals, "*")
	c.Assert(w.Header().Get("Access-Control-Allow-Methods"), qt.Contains, "POST")

	req, err = http.NewRequest("GET", "/hello", nil)
	c.Assert(err, qt.IsNil)
	req.Header.Set("Origin", "https://dao.example.org")
	w = httptest.NewRecorder()
	ta.r.ServeHTTP(w, req)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(w.Header().Get("Access-Control-Allow-Origin"), qt.Equals, "*")
}
