package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/sirupsen/logrus"

	"github.com/fabric-gateway/agent/internal/models"
)

// Source performs the actual acquisition flow against the identity provider.
// The manager only calls it on cache miss, staleness, or invalidation.
type Source interface {
	Acquire(ctx context.Context, scope string) (models.Credential, error)
}

// EntraSource acquires tokens from Microsoft Entra ID. It tries the
// interactive browser flow first and falls back to the device code flow when
// no browser is available. The device code message goes to stderr; stdout is
// reserved for the dispatch framing.
type EntraSource struct {
	ClientID string
	TenantID string

	browser azcore.TokenCredential
	device  azcore.TokenCredential
}

func NewEntraSource(clientID, tenantID string) (*EntraSource, error) {
	if len(clientID) == 0 {
		return nil, fmt.Errorf("auth.client_id is required")
	}
	if len(tenantID) == 0 {
		tenantID = "organizations"
	}

	browser, err := azidentity.NewInteractiveBrowserCredential(&azidentity.InteractiveBrowserCredentialOptions{
		ClientID: clientID,
		TenantID: tenantID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser credential: %w", err)
	}

	device, err := azidentity.NewDeviceCodeCredential(&azidentity.DeviceCodeCredentialOptions{
		ClientID: clientID,
		TenantID: tenantID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create device code credential: %w", err)
	}

	return &EntraSource{
		ClientID: clientID,
		TenantID: tenantID,
		browser:  browser,
		device:   device,
	}, nil
}

func (s *EntraSource) Acquire(ctx context.Context, scope string) (models.Credential, error) {

	opts := policy.TokenRequestOptions{Scopes: []string{scope}}

	token, err := s.browser.GetToken(ctx, opts)
	if err != nil {
		if classified := classifyAcquireError(err); models.IsKind(classified, models.ErrAuthCancelled) {
			return models.Credential{}, classified
		}

		logrus.WithError(err).Warnln("Browser authentication failed, falling back to device code flow")

		token, err = s.device.GetToken(ctx, opts)
		if err != nil {
			return models.Credential{}, classifyAcquireError(err)
		}
	}

	return models.Credential{
		Scope:      scope,
		Token:      token.Token,
		Expiry:     token.ExpiresOn,
		AcquiredAt: time.Now().UTC(),
	}, nil
}

// classifyAcquireError folds identity-provider failures into the closed
// taxonomy. User cancellation and transport failure are the only cases the
// caller distinguishes.
func classifyAcquireError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return models.NewError(models.ErrAuthCancelled, "authentication was cancelled")
	}

	var authFailed *azidentity.AuthenticationFailedError
	if errors.As(err, &authFailed) {
		return models.NewError(models.ErrAuthUnavailable, "identity provider rejected the request: %v", err)
	}

	return models.NewError(models.ErrAuthUnavailable, "identity provider unreachable: %v", err)
}
