// Package gateway implements the identity gated session state machine: it
// issues challenges bound to an account, verifies the identity proofs made
// for them against the policy statement and the on chain credential, and
// grants a token for each challenge that is redeemed with a valid proof.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aragon/zkid-node/chain"
	"github.com/aragon/zkid-node/db"
	"github.com/aragon/zkid-node/idproof"
	"github.com/aragon/zkid-node/store"
	"github.com/aragon/zkid-node/types"
	"github.com/google/uuid"
	"go.vocdoni.io/dvote/log"
)

// Gateway holds the shared state of the session service
type Gateway struct {
	statement  idproof.Statement
	gc         *idproof.GlobalContext
	chain      chain.Client
	sqlite     *db.SQLite
	challenges *store.Map[types.ChallengeStatus]
	tokens     *store.Map[types.TokenStatus]

	challengeTTL time.Duration
	tokenTTL     time.Duration
	now          func() time.Time
}

// Options is used to pass the parameters to load a new Gateway
type Options struct {
	Statement idproof.Statement
	Chain     chain.Client
	// SQLite is optional, when set the outcome of every proof submission
	// for a known session is stored in it
	SQLite *db.SQLite
	// ChallengeTTL and TokenTTL set the lifetime of challenges and tokens.
	// Zero means they never expire.
	ChallengeTTL time.Duration
	TokenTTL     time.Duration
}

// New loads a new Gateway, fetching the cryptographic parameters from the
// last finalized block
func New(ctx context.Context, opts Options) (*Gateway, error) {
	if err := opts.Statement.Validate(); err != nil {
		return nil, fmt.Errorf("invalid statement: %w", err)
	}
	if opts.Chain == nil {
		return nil, fmt.Errorf("no chain client")
	}
	gc, err := opts.Chain.CryptographicParameters(ctx, chain.LastFinal)
	if err != nil {
		return nil, fmt.Errorf("can not get cryptographic parameters: %w", err)
	}
	if err := gc.OnChainCommitmentKey.Validate(); err != nil {
		return nil, err
	}
	if opts.SQLite != nil {
		if err := opts.SQLite.InitMeta(gc.GenesisString); err != nil {
			return nil, err
		}
	}
	return &Gateway{
		statement:    opts.Statement,
		gc:           gc,
		chain:        opts.Chain,
		sqlite:       opts.SQLite,
		challenges:   store.New[types.ChallengeStatus](),
		tokens:       store.New[types.TokenStatus](),
		challengeTTL: opts.ChallengeTTL,
		tokenTTL:     opts.TokenTTL,
		now:          time.Now,
	}, nil
}

// Statement returns the policy statement that proofs are verified against
func (g *Gateway) Statement() idproof.Statement {
	return g.statement
}

// GlobalContext returns the cryptographic parameters fetched at startup
func (g *Gateway) GlobalContext() *idproof.GlobalContext {
	return g.gc
}

// IssueChallenge draws a fresh challenge and binds it to the given account
func (g *Gateway) IssueChallenge(addr types.AccountAddress) (types.Challenge, error) {
	ch, err := types.NewChallenge()
	if err != nil {
		return types.Challenge{}, newError(KindOther, err)
	}
	status := types.ChallengeStatus{Address: addr, CreatedAt: g.now()}
	if err := g.challenges.Insert(ch.String(), status); err != nil {
		return types.Challenge{}, newError(KindLockingError, err)
	}
	log.Debugf("challenge %s issued for %s", ch, addr)
	return ch, nil
}

// ChallengeStatus returns the status of a challenge that is pending to be
// redeemed
func (g *Gateway) ChallengeStatus(ch types.Challenge) (types.ChallengeStatus, bool, error) {
	status, ok, err := g.challenges.Get(ch.String())
	if err != nil {
		return types.ChallengeStatus{}, false, newError(KindLockingError, err)
	}
	if !ok || g.expired(status.CreatedAt, g.challengeTTL) {
		return types.ChallengeStatus{}, false, nil
	}
	return status, true, nil
}

// TokenStatus returns the status of a granted token
func (g *Gateway) TokenStatus(token string) (types.TokenStatus, bool, error) {
	status, ok, err := g.tokens.Get(token)
	if err != nil {
		return types.TokenStatus{}, false, newError(KindLockingError, err)
	}
	if !ok || g.expired(status.CreatedAt, g.tokenTTL) {
		return types.TokenStatus{}, false, nil
	}
	return status, true, nil
}

func (g *Gateway) expired(createdAt time.Time, ttl time.Duration) bool {
	return ttl > 0 && g.now().Sub(createdAt) > ttl
}

// Prove verifies the proof submitted for a pending challenge and, when it is
// valid, consumes the challenge and returns a new token. Every returned error
// is an *Error. On error, neither the challenge nor the token store are
// modified.
func (g *Gateway) Prove(ctx context.Context, req *types.ChallengedProof) (string, error) {
	key := req.Challenge.String()
	status, ok, err := g.ChallengeStatus(req.Challenge)
	if err != nil {
		return "", err
	}
	if !ok {
		log.Debugf("proof for unknown challenge %s", key)
		return "", newError(KindUnknownSession, nil)
	}

	var token string
	err = g.verify(ctx, status.Address, req)
	if err == nil {
		token, err = g.consume(key)
	}

	outcome := types.VerificationOK
	if err != nil {
		var gwErr *Error
		if errors.As(err, &gwErr) {
			outcome = gwErr.Kind.String()
		}
		log.Infof("proof rejected for account %s: %s", status.Address, outcome)
		if cause := errors.Unwrap(err); cause != nil {
			log.Debugf("proof for challenge %s rejected: %v", key, cause)
		}
	} else {
		log.Infof("proof accepted for account %s", status.Address)
	}
	g.audit(status.Address, req.Proof.Credential, outcome)
	return token, err
}

// verify checks the credential and the proof. It does not modify any store.
func (g *Gateway) verify(ctx context.Context, addr types.AccountAddress,
	req *types.ChallengedProof) error {
	info, err := g.chain.AccountInfo(ctx, addr, chain.LastFinal)
	if err != nil {
		return newError(KindOther, err)
	}

	// only the credential in slot 0 is honored
	cred, ok := info.AccountCredentials[0]
	if !ok {
		return newError(KindCredential, fmt.Errorf("account %s has no credential 0", addr))
	}
	regID, ok := cred.Value.RegistrationID()
	if !ok || regID != req.Proof.Credential {
		return newError(KindCredential, nil)
	}
	commitments, ok := cred.Value.AttributeCommitments()
	if !ok {
		return newError(KindNotAllowed, nil)
	}

	err = g.statement.Check(req.Challenge[:], g.gc, req.Proof.Credential[:],
		commitments, &req.Proof.Proof)
	if err != nil {
		return newError(KindInvalidProofs, err)
	}
	return nil
}

// consume removes the challenge and grants a token. The token store lock is
// held while the challenge is removed, so that a challenge yields at most one
// token.
func (g *Gateway) consume(key string) (string, error) {
	token := uuid.New().String()
	var (
		found     bool
		lockErr   error
		createdAt = g.now()
	)
	err := g.tokens.Do(func(tokens map[string]types.TokenStatus) {
		lockErr = g.challenges.Do(func(challenges map[string]types.ChallengeStatus) {
			_, found = challenges[key]
			delete(challenges, key)
		})
		if lockErr == nil && found {
			tokens[token] = types.TokenStatus{CreatedAt: createdAt}
		}
	})
	if err == nil {
		err = lockErr
	}
	if err != nil {
		return "", newError(KindLockingError, err)
	}
	if !found {
		// redeemed by a concurrent request since the lookup
		return "", newError(KindUnknownSession, nil)
	}
	log.Debugf("challenge %s consumed, token %s granted", key, token)
	return token, nil
}

func (g *Gateway) audit(addr types.AccountAddress, cred types.CredentialRegistrationID,
	outcome string) {
	if g.sqlite == nil {
		return
	}
	if err := g.sqlite.StoreVerification(addr.String(), cred.String(), outcome); err != nil {
		log.Warnw("can not store verification", "address", addr.String(), "err", err)
	}
}

// Verifications returns the stored proof submission outcomes of the account
func (g *Gateway) Verifications(addr types.AccountAddress) ([]types.Verification, error) {
	if g.sqlite == nil {
		return nil, nil
	}
	return g.sqlite.ReadVerificationsByAddress(addr.String())
}

// Sweep removes the challenges and tokens that expired at the given time
func (g *Gateway) Sweep(now time.Time) (nChallenges, nTokens int, err error) {
	if g.challengeTTL > 0 {
		nChallenges, err = g.challenges.DeleteFunc(
			func(_ string, s types.ChallengeStatus) bool {
				return now.Sub(s.CreatedAt) > g.challengeTTL
			})
		if err != nil {
			return 0, 0, newError(KindLockingError, err)
		}
	}
	if g.tokenTTL > 0 {
		nTokens, err = g.tokens.DeleteFunc(
			func(_ string, s types.TokenStatus) bool {
				return now.Sub(s.CreatedAt) > g.tokenTTL
			})
		if err != nil {
			return nChallenges, 0, newError(KindLockingError, err)
		}
	}
	return nChallenges, nTokens, nil
}

// DefaultSweepInterval is used by StartSweeper when the given interval is not
// positive
const DefaultSweepInterval = time.Minute

// StartSweeper runs Sweep every interval until the context is done. It
// returns immediately when no TTL is set.
func (g *Gateway) StartSweeper(ctx context.Context, interval time.Duration) {
	if g.challengeTTL <= 0 && g.tokenTTL <= 0 {
		return
	}
	if interval <= 0 {
		log.Warnw("non-positive sweep interval, using the default",
			"interval", interval.String(), "default", DefaultSweepInterval.String())
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				nc, nt, err := g.Sweep(g.now())
				if err != nil {
					log.Error(err)
					continue
				}
				if nc > 0 || nt > 0 {
					log.Debugf("swept %d challenges and %d tokens", nc, nt)
				}
			}
		}
	}()
}
