// Package attest signs and verifies manifest attestations. The pipeline
// attaches a token to each published version; eval runners verify it
// before trusting a fetched manifest.
package attest

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
	"github.com/custodia-labs/corpora-core/internal/core/ports/driven"
)

// Ensure JWTAttestor implements ManifestAttestor
var _ driven.ManifestAttestor = (*JWTAttestor)(nil)

// jwtClaims wraps domain.Attestation for JWT compatibility
type jwtClaims struct {
	VersionID   string    `json:"version_id"`
	RecordCount int       `json:"record_count"`
	CreatedAt   time.Time `json:"created_at"`
	jwt.RegisteredClaims
}

// JWTAttestor signs manifest identities with HS256.
type JWTAttestor struct {
	secret []byte
	now    func() time.Time
}

// NewJWTAttestor creates an attestor with the given signing secret.
func NewJWTAttestor(secret string) *JWTAttestor {
	return &JWTAttestor{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Attest returns a signed token over the manifest's identity.
func (a *JWTAttestor) Attest(manifest *domain.DatasetManifest) (string, error) {
	claims := jwtClaims{
		VersionID:   manifest.VersionID,
		RecordCount: manifest.RecordCount,
		CreatedAt:   manifest.CreatedAt,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  manifest.VersionID,
			IssuedAt: jwt.NewNumericDate(a.now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify checks a token's signature and returns the attested claims.
func (a *JWTAttestor) Verify(tokenString string) (*domain.Attestation, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify attestation: %w", err)
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid attestation claims")
	}

	return &domain.Attestation{
		VersionID:   claims.VersionID,
		RecordCount: claims.RecordCount,
		CreatedAt:   claims.CreatedAt,
		IssuedAt:    claims.IssuedAt.Time,
	}, nil
}
