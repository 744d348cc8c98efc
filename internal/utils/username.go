package utils

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
)

var (
	nonAlnum      = regexp.MustCompile(`[^a-z0-9]+`)
	usernameShape = regexp.MustCompile(`^[a-z0-9]+(\.[a-z0-9]+)*[0-9]{3}$`)
)

// GenerateUsername generates a handle in format first.last123
func GenerateUsername(fullName string) string {
	parts := []string{}
	for _, word := range strings.Fields(strings.ToLower(fullName)) {
		word = nonAlnum.ReplaceAllString(word, "")
		if word == "" {
			continue
		}
		if len(word) > 12 {
			word = word[:12]
		}
		parts = append(parts, word)
		if len(parts) == 2 {
			break
		}
	}
	if len(parts) == 0 {
		parts = []string{"member"}
	}

	number := rand.Intn(900) + 100 // 100-999
	return fmt.Sprintf("%s%d", strings.Join(parts, "."), number)
}

// ValidateUsername validates the format of a generated handle
func ValidateUsername(username string) bool {
	return usernameShape.MatchString(username)
}
