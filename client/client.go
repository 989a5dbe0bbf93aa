// Package client implements the http client of the session gateway, used by
// provers to get challenges and redeem them
package client

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/aragon/zkid-node/idproof"
	"github.com/aragon/zkid-node/types"
	"github.com/dghubble/sling"
)

// Client implements the gateway http client
type Client struct {
	c *http.Client
	s *sling.Sling
}

// ResponseError is returned when the gateway answers with a non 200 status
type ResponseError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *ResponseError) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.StatusCode, e.Message)
}

type errorMsg struct {
	Message string `json:"message"`
}

type challengeParams struct {
	Address string `url:"address"`
}

// New returns a new Client for the given gatewayURL
func New(gatewayURL string) *Client {
	httpClient := &http.Client{}
	return &Client{
		c: httpClient,
		s: sling.New().Base(strings.TrimSuffix(gatewayURL, "/") + "/").Client(httpClient),
	}
}

// do sends the request and decodes the JSON body of a 200 response into
// successV
func (c *Client) do(s *sling.Sling, successV interface{}) error {
	req, err := s.Request()
	if err != nil {
		return err
	}
	resp, err := c.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusOK {
		return json.Unmarshal(body, successV)
	}
	// 4xx carry an errorMsg, gateway errors are plain text
	var errMsg errorMsg
	if err := json.Unmarshal(body, &errMsg); err == nil && errMsg.Message != "" {
		return &ResponseError{StatusCode: resp.StatusCode, Message: errMsg.Message}
	}
	return &ResponseError{StatusCode: resp.StatusCode,
		Message: strings.TrimSpace(string(body))}
}

// Statement returns the statement that the gateway verifies proofs against
func (c *Client) Statement() (idproof.Statement, error) {
	var s idproof.Statement
	if err := c.do(c.s.New().Get("statement"), &s); err != nil {
		return nil, err
	}
	return s, nil
}

// Challenge requests a new challenge for the given account
func (c *Client) Challenge(addr types.AccountAddress) (types.Challenge, error) {
	var resp types.ChallengeResponse
	err := c.do(c.s.New().Get("challenge").
		QueryStruct(challengeParams{Address: addr.String()}), &resp)
	if err != nil {
		return types.Challenge{}, err
	}
	return resp.Challenge, nil
}

// Prove submits the proof and returns the granted token
func (c *Client) Prove(proof *types.ChallengedProof) (string, error) {
	var token string
	if err := c.do(c.s.New().Post("prove").BodyJSON(proof), &token); err != nil {
		return "", err
	}
	return token, nil
}

// TokenStatus returns the status of the given token, and false if the gateway
// does not know it
func (c *Client) TokenStatus(token string) (types.TokenStatus, bool, error) {
	var status types.TokenStatus
	err := c.do(c.s.New().Get("token/"+token), &status)
	if respErr, ok := err.(*ResponseError); ok && respErr.StatusCode == http.StatusNotFound {
		return types.TokenStatus{}, false, nil
	}
	if err != nil {
		return types.TokenStatus{}, false, err
	}
	return status, true, nil
}

// Verifications returns the outcomes of the proofs submitted for the account
func (c *Client) Verifications(addr types.AccountAddress) ([]types.Verification, error) {
	var vs []types.Verification
	if err := c.do(c.s.New().Get("verifications/"+addr.String()), &vs); err != nil {
		return nil, err
	}
	return vs, nil
}
