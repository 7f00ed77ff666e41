package driven

import "github.com/custodia-labs/corpora-core/internal/core/domain"

// ManifestAttestor signs published manifests so downstream consumers can
// verify they hold the version this stage actually published.
type ManifestAttestor interface {
	// Attest returns a signed token over the manifest's identity
	Attest(manifest *domain.DatasetManifest) (string, error)

	// Verify checks a token's signature and returns the attested claims
	Verify(token string) (*domain.Attestation, error)
}
