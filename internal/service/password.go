package service

import "unicode/utf16"

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 6

// PasswordStrength reports each password rule separately so front-ends can
// render per-rule feedback.
type PasswordStrength struct {
	HasLength    bool `json:"hasLength"`
	HasUpperCase bool `json:"hasUpperCase"`
	HasNumber    bool `json:"hasNumber"`
}

// Strong reports whether every rule holds.
func (p PasswordStrength) Strong() bool {
	return p.HasLength && p.HasUpperCase && p.HasNumber
}

// CheckPassword evaluates the password policy. Length is counted in UTF-16
// code units, the way browsers count it. Only ASCII A-Z count as uppercase and
// only ASCII 0-9 count as digits.
func CheckPassword(password string) PasswordStrength {
	var p PasswordStrength
	p.HasLength = len(utf16.Encode([]rune(password))) >= MinPasswordLength
	for i := 0; i < len(password); i++ {
		c := password[i]
		switch {
		case c >= 'A' && c <= 'Z':
			p.HasUpperCase = true
		case c >= '0' && c <= '9':
			p.HasNumber = true
		}
	}
	return p
}
