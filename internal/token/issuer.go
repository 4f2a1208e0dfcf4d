package token

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voltade/platform-engine/internal/models"
	"github.com/voltade/platform-engine/internal/repository"
	appErr "github.com/voltade/platform-engine/pkg/errors"
	"github.com/voltade/platform-engine/pkg/logger"
)

const signingAlg = "RS256"

// JWK is the public half of one signing key in RFC 7517 form.
type JWK struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is the published verification key set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// KeySetSource resolves the currently published verification keys. Verify
// consults the source on every call rather than holding a private copy, so a
// rotated key is observed on first use after rotation.
type KeySetSource interface {
	PublicKeys(ctx context.Context) (map[string]*rsa.PublicKey, error)
}

// Issuer holds the platform-wide signing keypair and mints scoped tokens.
// It is constructed once at process start and passed to every component that
// signs or verifies.
type Issuer struct {
	kid    string
	priv   *rsa.PrivateKey
	public *rsa.PublicKey
	keys   KeySetSource
}

// LoadOrGenerate loads the persisted platform keypair, generating and storing
// one if none exists yet. Concurrent first boots converge on a single stored
// keypair: the insert is unique-constrained and the loser simply reloads the
// winner.
func LoadOrGenerate(ctx context.Context, repo repository.SigningKeyRepository) (*Issuer, error) {
	var row models.SigningKey
	err := repo.GetCurrent(ctx, &row)
	if appErr.IsCode(err, appErr.CodeNotFound) {
		logger.L().Info("no signing key found, generating platform keypair")
		generated, genErr := generateKey()
		if genErr != nil {
			return nil, genErr
		}
		if insErr := repo.InsertIfAbsent(ctx, generated); insErr != nil {
			return nil, insErr
		}
		// Reload: on a lost race this picks up the winner's key.
		err = repo.GetCurrent(ctx, &row)
	}
	if err != nil {
		return nil, err
	}

	priv, parseErr := parsePrivatePEM(row.PrivateKeyPEM)
	if parseErr != nil {
		return nil, parseErr
	}

	iss := &Issuer{
		kid:    row.KID,
		priv:   priv,
		public: &priv.PublicKey,
		keys:   storeKeySet{repo: repo},
	}
	logger.L().Info("signing keypair loaded", zap.String("kid", row.KID), zap.String("alg", row.Alg))
	return iss, nil
}

func generateKey() (*models.SigningKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "generate rsa key failed")
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "marshal private key failed")
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "marshal public key failed")
	}

	return &models.SigningKey{
		KID:           uuid.NewString(),
		Alg:           signingAlg,
		PrivateKeyPEM: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})),
		PublicKeyPEM:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
	}, nil
}

func parsePrivatePEM(s string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, appErr.New(appErr.CodeInternal, "signing key PEM is invalid")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "parse private key failed")
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, appErr.New(appErr.CodeInternal, "signing key is not RSA")
	}
	return priv, nil
}

func parsePublicPEM(s string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, appErr.New(appErr.CodeInternal, "public key PEM is invalid")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "parse public key failed")
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, appErr.New(appErr.CodeInternal, "public key is not RSA")
	}
	return pub, nil
}

// storeKeySet reads verification keys straight from the signing-key store.
type storeKeySet struct {
	repo repository.SigningKeyRepository
}

func (s storeKeySet) PublicKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	var row models.SigningKey
	if err := s.repo.GetCurrent(ctx, &row); err != nil {
		return nil, err
	}
	pub, err := parsePublicPEM(row.PublicKeyPEM)
	if err != nil {
		return nil, err
	}
	return map[string]*rsa.PublicKey{row.KID: pub}, nil
}

// Sign mints a compact signed token for the given claims. The only check is
// the role enum; claim scoping is the caller's responsibility.
func (i *Issuer) Sign(claims Claims) (string, error) {
	if !claims.Role.Valid() {
		return "", appErr.New(appErr.CodeInvalid, fmt.Sprintf("unknown role %q", claims.Role))
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = i.kid
	signed, err := tok.SignedString(i.priv)
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeInternal, "sign token failed")
	}
	return signed, nil
}

// Verify parses and validates a token against the published key set and
// returns its claims. Failures are unauthorized errors distinguishing a
// malformed token, a bad signature, and an expired token.
func (i *Issuer) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	keys, err := i.keys.PublicKeys(ctx)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "load verification keys failed")
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		kid, _ := t.Header["kid"].(string)
		if pub, ok := keys[kid]; ok {
			return pub, nil
		}
		// No kid match but a single published key: accept tokens minted just
		// before a rotation was observed.
		if len(keys) == 1 {
			for _, pub := range keys {
				return pub, nil
			}
		}
		return nil, jwt.ErrSignatureInvalid
	}, jwt.WithValidMethods([]string{signingAlg}))

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, appErr.Wrap(err, appErr.CodeUnauthorized, "token expired")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, appErr.Wrap(err, appErr.CodeUnauthorized, "malformed token")
	default:
		return nil, appErr.Wrap(err, appErr.CodeUnauthorized, "invalid token signature")
	}

	if !claims.Role.Valid() {
		return nil, appErr.New(appErr.CodeUnauthorized, "token carries no known role")
	}
	return claims, nil
}

// JWKS returns the published verification key set.
func (i *Issuer) JWKS(ctx context.Context) (*JWKS, error) {
	keys, err := i.keys.PublicKeys(ctx)
	if err != nil {
		return nil, err
	}
	set := &JWKS{Keys: make([]JWK, 0, len(keys))}
	for kid, pub := range keys {
		set.Keys = append(set.Keys, JWK{
			Kty: "RSA",
			Alg: signingAlg,
			Use: "sig",
			Kid: kid,
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	return set, nil
}
