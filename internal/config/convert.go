package config

import (
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"github.com/giantswarm/toolgate/internal/oauth"
)

var authStyles = []string{"", "auto", "params", "header"}

// ParseAuthStyle maps the configured client authentication style onto
// oauth2.AuthStyle. "" and "params" send credentials in the form body,
// "header" uses HTTP Basic, and "auto" lets the library detect the style,
// which repeats a rejected exchange with the other style.
func ParseAuthStyle(s string) (oauth2.AuthStyle, error) {
	switch strings.ToLower(s) {
	case "auto":
		return oauth2.AuthStyleAutoDetect, nil
	case "", "params":
		return oauth2.AuthStyleInParams, nil
	case "header":
		return oauth2.AuthStyleInHeader, nil
	default:
		return oauth2.AuthStyleAutoDetect, fmt.Errorf("unknown auth style %q", s)
	}
}

// OAuthProvider converts the registration into the token provider's form.
func (p ProviderConfig) OAuthProvider() (oauth.ProviderConfig, error) {
	style, err := ParseAuthStyle(p.AuthStyle)
	return oauth.ProviderConfig{
		Name:           p.Name,
		Issuer:         p.Issuer,
		TokenURL:       p.TokenURL,
		ClientID:       p.ClientID,
		ClientSecret:   p.Secret,
		ScopePrefix:    p.ScopePrefix,
		AuthStyle:      style,
		EndpointParams: p.EndpointParams,
	}, err
}

// OAuthProviders converts every registration.
func (o OAuthConfig) OAuthProviders() ([]oauth.ProviderConfig, error) {
	out := make([]oauth.ProviderConfig, 0, len(o.Providers))
	for _, p := range o.Providers {
		converted, err := p.OAuthProvider()
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.Name, err)
		}
		out = append(out, converted)
	}
	return out, nil
}
