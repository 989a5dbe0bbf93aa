package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/aragon/zkid-node/idproof"
	"github.com/aragon/zkid-node/types"
)

// ensure that TestClient implements the chain.Client interface
var _ Client = (*TestClient)(nil)

// TestClient simulates a chain node for testing purposes
type TestClient struct {
	mu       sync.RWMutex
	gc       *idproof.GlobalContext
	accounts map[types.AccountAddress]*types.AccountInfo
	err      error
	calls    int
}

// NewTestClient returns a new TestClient with the given global context and no
// accounts
func NewTestClient(gc *idproof.GlobalContext) *TestClient {
	return &TestClient{
		gc:       gc,
		accounts: make(map[types.AccountAddress]*types.AccountInfo),
	}
}

// SetAccount stores the account info, replacing the previous one for the same
// address
func (t *TestClient) SetAccount(info *types.AccountInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accounts[info.AccountAddress] = info
}

// SetErr makes every following call fail with the given error, until it is
// called with nil
func (t *TestClient) SetErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

// AccountInfoCalls returns the number of AccountInfo calls received
func (t *TestClient) AccountInfoCalls() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.calls
}

// CryptographicParameters implements the Client.CryptographicParameters method
func (t *TestClient) CryptographicParameters(ctx context.Context,
	block BlockIdentifier) (*idproof.GlobalContext, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.err != nil {
		return nil, t.err
	}
	if block != LastFinal {
		return nil, fmt.Errorf("unsupported block %q", block)
	}
	return t.gc, nil
}

// AccountInfo implements the Client.AccountInfo method
func (t *TestClient) AccountInfo(ctx context.Context, addr types.AccountAddress,
	block BlockIdentifier) (*types.AccountInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.err != nil {
		return nil, t.err
	}
	if block != LastFinal {
		return nil, fmt.Errorf("unsupported block %q", block)
	}
	info, ok := t.accounts[addr]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return info, nil
}
