// Package redact strips sensitive material from strings before they are
// logged. Error text in this service can carry database connection strings,
// SQL fragments from the store layer, and bearer tokens echoed back by the
// JWT library; none of those belong in log output.
package redact

import "regexp"

// Redaction placeholders
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
	RedactedSQLPlaceholder        = "[REDACTED_SQL]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
)

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

var rules = []rule{
	// Database connection strings with embedded credentials
	{regexp.MustCompile(`(?i)(postgres|postgresql)://[^@\s]+@[^\s]+`), RedactedCredentialPlaceholder},

	// Secrets assigned in key=value or key: value form
	{regexp.MustCompile(`(?i)(password|passwd|secret|jwt_secret|api[_-]?key)(['"\s:=]+)[^'"&\s]{3,}`), RedactedCredentialPlaceholder},

	// Bearer tokens in the standard three-part base64url JWT format
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), RedactedTokenPlaceholder},

	// SQL statement fragments surfaced by driver errors
	{regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE)[\s\w,*()$.=<>'"]+(?:FROM|INTO|SET)[\s\w,*()$.=<>'"]*`), RedactedSQLPlaceholder},

	// Filesystem paths from config and migration errors
	{regexp.MustCompile(`(/[\w.-]+){2,}`), RedactedPathPlaceholder},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
