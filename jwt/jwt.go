package jwtkit

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes interactive user tokens from long-lived API tokens
// minted for technical accounts.
type TokenType string

const (
	TokenTypeUser TokenType = "user"
	TokenTypeAPI  TokenType = "api"
)

// Signer issues asymmetric JWTs for locally minted tokens.
type Signer interface {
	// Algorithm returns the JWS algorithm (e.g., RS256).
	Algorithm() string
	// KID returns the current key id.
	KID() string
	// Sign creates a signed JWT with the provided claims.
	Sign(ctx context.Context, claims jwt.MapClaims) (token string, err error)
}

// RSASigner is an in-memory RSA signer. Production deployments load the key
// from provisioned secrets; generation is for development and tests.
type RSASigner struct {
	key *rsa.PrivateKey
	kid string
}

// NewRSASigner generates a fresh key pair. bits defaults to 2048.
func NewRSASigner(bits int, kid string) (*RSASigner, error) {
	if bits == 0 {
		bits = 2048
	}
	k, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return &RSASigner{key: k, kid: kid}, nil
}

func (s *RSASigner) Algorithm() string         { return jwt.SigningMethodRS256.Alg() }
func (s *RSASigner) KID() string               { return s.kid }
func (s *RSASigner) PublicKey() *rsa.PublicKey { return &s.key.PublicKey }

// JWKS returns the public key set for this signer.
func (s *RSASigner) JWKS() JWKS {
	return JWKS{Keys: []JWK{RSAPublicToJWK(s.PublicKey(), s.kid, s.Algorithm())}}
}

func (s *RSASigner) Sign(_ context.Context, claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.kid
	return token.SignedString(s.key)
}

// NewRSASignerFromPEM constructs an RSASigner from a PEM-encoded private key
// (PKCS#1 or PKCS#8).
func NewRSASignerFromPEM(kid string, pemBytes []byte) (*RSASigner, error) {
	if len(pemBytes) == 0 {
		return nil, errors.New("empty RSA private key pem")
	}
	blk, _ := pem.Decode(pemBytes)
	if blk == nil {
		return nil, errors.New("failed to decode RSA private key pem")
	}
	var parsed *rsa.PrivateKey
	var err error
	switch blk.Type {
	case "RSA PRIVATE KEY":
		parsed, err = x509.ParsePKCS1PrivateKey(blk.Bytes)
	default:
		var key any
		key, err = x509.ParsePKCS8PrivateKey(blk.Bytes)
		if err == nil {
			var ok bool
			if parsed, ok = key.(*rsa.PrivateKey); !ok {
				err = errors.New("pkcs8 key is not RSA private key")
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return &RSASigner{key: parsed, kid: kid}, nil
}

// MintOptions describe one locally minted access token.
type MintOptions struct {
	Subject  string
	Issuer   string
	Audience string
	Type     TokenType
	// Name labels API tokens (e.g. "PowerBI Access Token"). Optional.
	Name   string
	Scopes []string
	TTL    time.Duration
}

// Mint signs an access token for a technical or interactive account. The
// token carries a uuid jti so it can be revoked by id later.
func Mint(ctx context.Context, s Signer, opts MintOptions) (string, error) {
	if opts.Subject == "" {
		return "", errors.New("mint: subject is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"jti":   uuid.NewString(),
		"sub":   opts.Subject,
		"iat":   now.Unix(),
		"exp":   now.Add(opts.TTL).Unix(),
		"scope": strings.Join(opts.Scopes, " "),
		"type":  string(opts.Type),
	}
	if opts.Issuer != "" {
		claims["iss"] = opts.Issuer
	}
	if opts.Audience != "" {
		claims["aud"] = opts.Audience
	}
	if opts.Name != "" {
		claims["name"] = opts.Name
	}
	return s.Sign(ctx, claims)
}
