package chain

import (
	"context"
	"errors"

	"github.com/aragon/zkid-node/idproof"
	"github.com/aragon/zkid-node/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// Service exposes a Client through JSON-RPC, with the methods that RPCClient
// calls. It is used to serve a TestClient as a local development node.
type Service struct {
	backend Client
}

// NewServer returns an rpc.Server serving the given Client under the "chain"
// namespace
func NewServer(backend Client) (*rpc.Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("chain", &Service{backend: backend}); err != nil {
		return nil, err
	}
	return srv, nil
}

// GetCryptographicParameters serves chain_getCryptographicParameters
func (s *Service) GetCryptographicParameters(ctx context.Context,
	block BlockIdentifier) (*idproof.GlobalContext, error) {
	return s.backend.CryptographicParameters(ctx, block)
}

// GetAccountInfo serves chain_getAccountInfo. A missing account is served as
// null.
func (s *Service) GetAccountInfo(ctx context.Context, addr types.AccountAddress,
	block BlockIdentifier) (*types.AccountInfo, error) {
	info, err := s.backend.AccountInfo(ctx, addr, block)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, nil
	}
	return info, err
}
