// redact маскирует чувствительные значения перед записью в лог.
package redact

import "strings"

// Email оставляет две первые руны локальной части и домен.
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	return prefix(parts[0]) + "@" + parts[1]
}

// Identifier маскирует идентификатор входа: email — через Email, username — по первым рунам.
func Identifier(s string) string {
	if strings.Contains(s, "@") {
		return Email(s)
	}

	return prefix(s)
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }

// prefix оставляет две первые руны, если значение длиннее двух рун.
func prefix(s string) string {
	r := []rune(s)
	if len(r) > 2 {
		return string(r[:2]) + "***"
	}

	return "***"
}
