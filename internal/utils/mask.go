package utils

// MaskSecret keeps at most the first two characters.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "*****"
	}
	return s[:2] + "*****"
}
