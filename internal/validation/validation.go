// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/mail"
	"regexp"
	"strings"
)

var (
	paypointCodeRe = regexp.MustCompile(`^pps[a-z]*$`)
	clientIDRe     = regexp.MustCompile(`^\d{2}-\d{6,7}[A-Za-z]\d{2}$`)
	phoneRe        = regexp.MustCompile(`^\+?\d{7,15}$`)
)

// NormalizePaypointCode приводит код точки удержания к нижнему регистру.
func NormalizePaypointCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// IsValidPaypointCode проверяет код точки удержания вида ppszesa.
// Код сравнивается после приведения к нижнему регистру.
func IsValidPaypointCode(code string) bool {
	return paypointCodeRe.MatchString(NormalizePaypointCode(code))
}

// IsValidClientID проверяет номер удостоверения личности вида 63-123456A12.
func IsValidClientID(id string) bool {
	return clientIDRe.MatchString(id)
}

// IsValidPhone проверяет номер телефона: от 7 до 15 цифр, допускается ведущий +.
func IsValidPhone(phone string) bool {
	return phoneRe.MatchString(phone)
}

// IsValidEmail проверяет адрес электронной почты.
func IsValidEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
