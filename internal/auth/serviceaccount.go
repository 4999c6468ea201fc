package auth

import (
	"context"

	"golang.org/x/oauth2/google"

	"github.com/howard-nolan/gemini-client/internal/errs"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// NewVertexCredentialsFromServiceAccount builds VertexCredentials whose
// TokenSource exchanges a service-account JSON key for a bearer token on
// first use. The strategy caches that token as AccessToken and does not
// invoke TokenSource again, so an expired token is not refreshed.
//
// Grounded on CLIProxyAPI's gemini_vertex_executor.go vertexAccessToken,
// which calls google.CredentialsFromJSON(ctx, saJSON, cloud-platform scope)
// then creds.TokenSource.Token().
func NewVertexCredentialsFromServiceAccount(saJSON []byte, projectID, location string) (VertexCredentials, error) {
	creds, err := google.CredentialsFromJSON(context.Background(), saJSON, cloudPlatformScope)
	if err != nil {
		return VertexCredentials{}, errs.NewConfig("parsing vertex service account: %v", err)
	}

	return VertexCredentials{
		ProjectID: projectID,
		Location:  location,
		TokenSource: func(ctx context.Context) (string, error) {
			tok, err := creds.TokenSource.Token()
			if err != nil {
				return "", err
			}
			return tok.AccessToken, nil
		},
	}, nil
}
