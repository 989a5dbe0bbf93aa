// Package chain implements the client used to read from the chain node the
// cryptographic parameters and the account credentials needed to verify
// identity proofs. It speaks JSON-RPC, the node must serve the
// chain_getCryptographicParameters and chain_getAccountInfo methods.
package chain

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aragon/zkid-node/idproof"
	"github.com/aragon/zkid-node/types"
	"github.com/ethereum/go-ethereum/rpc"
	"go.vocdoni.io/dvote/log"
)

// BlockIdentifier selects the block at which the chain state is read
type BlockIdentifier string

// LastFinal is the most recent finalized block. Every read done by the
// gateway uses it, so that no state from a fork is accepted.
const LastFinal BlockIdentifier = "lastFinal"

const (
	methodCryptographicParameters = "chain_getCryptographicParameters"
	methodAccountInfo             = "chain_getAccountInfo"
)

// ErrAccountNotFound is returned when the account does not exist at the
// given block
var ErrAccountNotFound = errors.New("account not found")

// Client defines the interface to read from the chain node
type Client interface {
	// CryptographicParameters returns the global context at the given block
	CryptographicParameters(ctx context.Context,
		block BlockIdentifier) (*idproof.GlobalContext, error)
	// AccountInfo returns the credentials of the account at the given block
	AccountInfo(ctx context.Context, addr types.AccountAddress,
		block BlockIdentifier) (*types.AccountInfo, error)
}

// RPCClient implements the Client interface talking JSON-RPC to the chain node
type RPCClient struct {
	client *rpc.Client
}

// Options is used to pass the parameters to load a new RPCClient
type Options struct {
	NodeURL string
	// Timeout bounds each request done to an http(s) node. Zero means no
	// timeout.
	Timeout time.Duration
}

// New dials the chain node and returns a new RPCClient
func New(opts Options) (*RPCClient, error) {
	var (
		client *rpc.Client
		err    error
	)
	if strings.HasPrefix(opts.NodeURL, "http://") ||
		strings.HasPrefix(opts.NodeURL, "https://") {
		client, err = rpc.DialHTTPWithClient(opts.NodeURL,
			&http.Client{Timeout: opts.Timeout})
	} else {
		client, err = rpc.DialContext(context.Background(), opts.NodeURL)
	}
	if err != nil {
		log.Error(err)
		return nil, err
	}
	return NewFromRPC(client), nil
}

// NewFromRPC returns a new RPCClient using the given rpc.Client
func NewFromRPC(client *rpc.Client) *RPCClient {
	return &RPCClient{client: client}
}

// Close closes the underlying connection
func (c *RPCClient) Close() {
	c.client.Close()
}

// CryptographicParameters implements the Client.CryptographicParameters
// method
func (c *RPCClient) CryptographicParameters(ctx context.Context,
	block BlockIdentifier) (*idproof.GlobalContext, error) {
	var gc idproof.GlobalContext
	if err := c.client.CallContext(ctx, &gc, methodCryptographicParameters,
		block); err != nil {
		return nil, err
	}
	if err := gc.OnChainCommitmentKey.Validate(); err != nil {
		return nil, err
	}
	return &gc, nil
}

// AccountInfo implements the Client.AccountInfo method
func (c *RPCClient) AccountInfo(ctx context.Context, addr types.AccountAddress,
	block BlockIdentifier) (*types.AccountInfo, error) {
	var info *types.AccountInfo
	if err := c.client.CallContext(ctx, &info, methodAccountInfo,
		addr, block); err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrAccountNotFound
	}
	return info, nil
}
