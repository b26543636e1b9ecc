package normalization

import (
  "strings"
)

// ParseInputString trims surrounding whitespace from user input.
func ParseInputString(s string) string {
  return strings.TrimSpace(s)
}

func ParseInputStringPtr(s *string) *string {
  if s == nil {
    return nil
  }
  v := ParseInputString(*s)
  return &v
}

// ParseEmail trims an email address and lower-cases it for comparisons.
func ParseEmail(s string) string {
  return strings.ToLower(ParseInputString(s))
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
  if n <= 0 {
    return ""
  }
  r := []rune(s)
  if len(r) <= n {
    return s
  }
  return string(r[:n])
}
