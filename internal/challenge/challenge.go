// Package challenge sniffs fetcher responses for human-verification
// interstitials and hands matches to a pluggable solver (§4.4).
package challenge

import (
	"bytes"
	"context"
	"errors"
	"time"
	"tracklift/internal/logger"
	"tracklift/internal/proxypool"

	"github.com/golang-jwt/jwt/v5"
)

// Type identifies a challenge provider.
type Type string

const (
	Cloudflare Type = "cloudflare"
	Datadome   Type = "datadome"
	Recaptcha  Type = "recaptcha"
	Hcaptcha   Type = "hcaptcha"
)

// signature is one byte-pattern this provider's interstitial is known to emit.
type signature struct {
	challengeType Type
	pattern       []byte
}

var signatures = []signature{
	{Cloudflare, []byte("Checking your browser before accessing")},
	{Cloudflare, []byte("cf-challenge")},
	{Datadome, []byte("datadome")},
	{Recaptcha, []byte("g-recaptcha")},
	{Hcaptcha, []byte("h-captcha")},
}

// ErrUnsolved is returned by the default solver: it records the attempt
// and budget consumption but cannot itself pass a human-verification check.
var ErrUnsolved = errors.New("challenge: unsolved by default solver")

// Solver exchanges a detected challenge for a token a retried request can
// present. A real backend integrates with an external verification service.
type Solver interface {
	Solve(ctx context.Context, challengeType Type, params map[string]string, timeout time.Duration) (token string, err error)
}

// Detector scans response bodies and coordinates with the proxy pool and solver.
type Detector struct {
	pool   *proxypool.Pool
	solver Solver
	log    logger.Logger
}

func New(pool *proxypool.Pool, solver Solver) *Detector {
	return &Detector{pool: pool, solver: solver, log: logger.New("challenge")}
}

// Result describes a detected challenge and, if solved, the token to
// attach when the request is resubmitted.
type Result struct {
	Detected bool
	Type     Type
	Token    string
}

// Inspect scans body for a known interstitial signature. On a match it
// marks egressAddress dirty and invokes the solver once.
func (d *Detector) Inspect(ctx context.Context, egressAddress string, body []byte) (Result, error) {
	log := d.log.Function("Inspect")

	for _, sig := range signatures {
		if bytes.Contains(body, sig.pattern) {
			log.Info("challenge detected", "type", sig.challengeType, "egress", egressAddress)
			d.pool.MarkDirty(egressAddress, string(sig.challengeType))

			token, err := d.solver.Solve(ctx, sig.challengeType, nil, 30*time.Second)
			if err != nil {
				return Result{Detected: true, Type: sig.challengeType}, log.Err(
					"challenge not solved", err, "type", sig.challengeType,
				)
			}
			return Result{Detected: true, Type: sig.challengeType, Token: token}, nil
		}
	}

	return Result{}, nil
}

// DefaultSolver is the in-tree stub: it records budget consumption (tokens
// spent probing, per challenge type) and always returns ErrUnsolved. A real
// deployment replaces this with a client against an external solver service.
type DefaultSolver struct {
	log         logger.Logger
	budgetSpent map[Type]int
}

func NewDefaultSolver() *DefaultSolver {
	return &DefaultSolver{
		log:         logger.New("challenge.DefaultSolver"),
		budgetSpent: make(map[Type]int),
	}
}

func (s *DefaultSolver) Solve(ctx context.Context, challengeType Type, params map[string]string, timeout time.Duration) (string, error) {
	log := s.log.Function("Solve")
	s.budgetSpent[challengeType]++
	log.Info("solver budget consumed", "type", challengeType, "totalSpent", s.budgetSpent[challengeType])
	return "", ErrUnsolved
}

// BudgetSpent reports how many solve attempts have been recorded per type.
func (s *DefaultSolver) BudgetSpent() map[Type]int {
	return s.budgetSpent
}

// SolverClaims is the JWT payload a real external solver backend issues to
// authenticate a solve-token exchange; the client presents it when
// resubmitting a request with a solved challenge.
type SolverClaims struct {
	jwt.RegisteredClaims
	ChallengeType Type `json:"challengeType"`
}

// ParseSolverToken validates a token returned by an external solver backend
// against secret, the shared signing key configured for that integration.
func ParseSolverToken(token string, secret []byte) (*SolverClaims, error) {
	claims := &SolverClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("challenge: solver token invalid")
	}
	return claims, nil
}
