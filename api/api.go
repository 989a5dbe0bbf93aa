// Package api implements the HTTP surface of the session gateway
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/aragon/zkid-node/gateway"
	"github.com/aragon/zkid-node/types"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.vocdoni.io/dvote/log"
)

// API allows external requests to the Gateway
type API struct {
	r  *gin.Engine
	gw *gateway.Gateway
}

// Options is used to pass the parameters to load a new API
type Options struct {
	Gateway *gateway.Gateway
	// DistDir is the directory of the static front end, served for every
	// GET that does not match an endpoint. Empty disables it.
	DistDir string
}

// New returns a new API with the endpoints, without starting to listen
func New(opts Options) (*API, error) {
	if opts.Gateway == nil {
		return nil, fmt.Errorf("Can not create the API without a Gateway")
	}

	a := API{gw: opts.Gateway}

	r := gin.New()
	r.Use(gin.Recovery(), tracing(), cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodHead, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))

	r.GET("/statement", a.getStatement)
	r.GET("/challenge", a.getChallenge)
	r.POST("/prove", a.postProve)
	r.GET("/token/:token", a.getToken)
	r.GET("/verifications/:address", a.getVerifications)
	r.GET("/hello", func(c *gin.Context) {
		c.String(http.StatusOK, "Hello, World!")
	})
	r.GET("/dashboard", func(c *gin.Context) {
		c.Redirect(http.StatusPermanentRedirect, "/")
	})

	if opts.DistDir != "" {
		fs := http.FileServer(http.Dir(opts.DistDir))
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				c.JSON(http.StatusNotFound, errorMsg{Message: "not found"})
				return
			}
			fs.ServeHTTP(c.Writer, c.Request)
		})
	}

	a.r = r

	return &a, nil
}

// Serve serves the API at the given address
func (a *API) Serve(addr string) error {
	log.Infof("API listening at %s", addr)
	return a.r.Run(addr)
}

// Handler returns the http.Handler of the API
func (a *API) Handler() http.Handler {
	return a.r
}

// tracing logs every request. Only the path is logged, queries and bodies may
// carry challenges or proofs.
func tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start))
	}
}

type errorMsg struct {
	Message string `json:"message"`
}

func returnErr(c *gin.Context, err error) {
	log.Warnw("HTTP API Bad request error", "err", err)
	c.JSON(http.StatusBadRequest, errorMsg{
		Message: err.Error(),
	})
}

// returnGatewayErr returns the message of a gateway.Error as plain text, the
// cause is not exposed
func returnGatewayErr(c *gin.Context, err error) {
	c.String(http.StatusInternalServerError, err.Error())
}

func (a *API) getStatement(c *gin.Context) {
	c.JSON(http.StatusOK, a.gw.Statement())
}

func (a *API) getChallenge(c *gin.Context) {
	addrStr, ok := c.GetQuery("address")
	if !ok {
		returnErr(c, fmt.Errorf("missing address"))
		return
	}
	addr, err := types.ParseAccountAddress(addrStr)
	if err != nil {
		returnErr(c, err)
		return
	}

	ch, err := a.gw.IssueChallenge(addr)
	if err != nil {
		returnGatewayErr(c, err)
		return
	}
	c.JSON(http.StatusOK, types.ChallengeResponse{Challenge: ch})
}

func (a *API) postProve(c *gin.Context) {
	var req types.ChallengedProof
	err := c.ShouldBindJSON(&req)
	if err != nil {
		returnErr(c, err)
		return
	}

	token, err := a.gw.Prove(c.Request.Context(), &req)
	if err != nil {
		returnGatewayErr(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

func (a *API) getToken(c *gin.Context) {
	status, ok, err := a.gw.TokenStatus(c.Param("token"))
	if err != nil {
		returnGatewayErr(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, errorMsg{Message: "unknown token"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (a *API) getVerifications(c *gin.Context) {
	addr, err := types.ParseAccountAddress(c.Param("address"))
	if err != nil {
		returnErr(c, err)
		return
	}
	vs, err := a.gw.Verifications(addr)
	if err != nil {
		log.Error(err)
		c.JSON(http.StatusInternalServerError, errorMsg{
			Message: "can not read verifications",
		})
		return
	}
	if vs == nil {
		vs = []types.Verification{}
	}
	c.JSON(http.StatusOK, vs)
}
