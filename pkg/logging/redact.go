package logging

// SanitizeToken keeps the first and last four characters of a credential.
// Tokens too short to shorten meaningfully are fully masked.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
