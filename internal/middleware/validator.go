package middleware

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
)

// Input validation and sanitization utilities

var fileNamePattern = regexp.MustCompile(`^[A-Za-z0-9 _.-]{1,100}$`)

// ValidateDate checks a YYYY-MM-DD date. Empty is allowed.
func ValidateDate(date string) error {
	if date == "" {
		return nil
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return fmt.Errorf("invalid date: %s (expected YYYY-MM-DD)", date)
	}
	return nil
}

// ValidateDateRange requires both ends and start <= end.
func ValidateDateRange(start, end string) error {
	if start == "" || end == "" {
		return fmt.Errorf("Date range is required")
	}
	if err := ValidateDate(start); err != nil {
		return err
	}
	if err := ValidateDate(end); err != nil {
		return err
	}
	if start > end {
		return fmt.Errorf("start date %s is after end date %s", start, end)
	}
	return nil
}

// ValidateVoiceOption allows only OK and NA.
func ValidateVoiceOption(option string) error {
	if option != domain.VoiceOK && option != domain.VoiceNA {
		return fmt.Errorf("Invalid option")
	}
	return nil
}

// ValidateFileName blocks path separators and traversal in export names.
func ValidateFileName(name string) error {
	if name == "" {
		return nil // Optional field
	}
	if strings.Contains(name, "..") || !fileNamePattern.MatchString(name) {
		return fmt.Errorf("invalid file name")
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
