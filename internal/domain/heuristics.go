package domain

import "strings"

// IsAuthGateway reports whether location looks like a login or
// authentication-gateway page of the platform. Matching is a case-insensitive
// substring test, so a post-login page whose path happens to contain a logout
// pattern is misclassified; callers treat the result as a heuristic.
func (p Platform) IsAuthGateway(location string) bool {
	patterns := p.LogoutPatterns
	if len(patterns) == 0 {
		patterns = defaultLogoutPatterns
	}

	return containsAny(location, patterns)
}

func (p Platform) IsHomePage(location string) bool {
	return containsAny(location, p.HomePatterns)
}

// IsCompletionSignal infers that an out-of-band approval happened: the page
// navigated away from where the challenge was issued and is no longer an
// authentication gateway.
func (p Platform) IsCompletionSignal(initialLocation, currentLocation string) bool {
	if currentLocation == "" || currentLocation == initialLocation {
		return false
	}

	return !p.IsAuthGateway(currentLocation)
}

func containsAny(location string, patterns []string) bool {
	lowered := strings.ToLower(location)
	for _, pattern := range patterns {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		if strings.Contains(lowered, pattern) {
			return true
		}
	}

	return false
}
