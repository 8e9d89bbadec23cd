package config

import (
	"fmt"
	"strings"
)

// ProviderCredential is an outbound provider key supplied through configuration.
// It is provisioned into the credential store at startup.
type ProviderCredential struct {
	Provider string
	Name     string
	Secret   string
}

// ParseProviderCredentials parses PROVIDER_CREDENTIALS.
// Format: "provider:name:secret,provider:name:secret". The secret may itself
// contain colons; only the first two separate fields.
func ParseProviderCredentials(raw string) ([]ProviderCredential, error) {
	var out []ProviderCredential
	seen := make(map[string]bool)

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("PROVIDER_CREDENTIALS: expected provider:name:secret, got %q", redact(entry))
		}
		cred := ProviderCredential{
			Provider: strings.ToLower(strings.TrimSpace(parts[0])),
			Name:     strings.TrimSpace(parts[1]),
			Secret:   strings.TrimSpace(parts[2]),
		}
		if cred.Provider == "" || cred.Name == "" || cred.Secret == "" {
			return nil, fmt.Errorf("PROVIDER_CREDENTIALS: empty field in %q", redact(entry))
		}

		key := cred.Provider + "/" + cred.Name
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, cred)
	}
	return out, nil
}

// redact keeps the provider and name of an entry but hides the secret.
func redact(entry string) string {
	parts := strings.SplitN(entry, ":", 3)
	if len(parts) < 3 {
		if len(entry) > 8 {
			return entry[:8] + "..."
		}
		return entry
	}
	return parts[0] + ":" + parts[1] + ":***"
}
