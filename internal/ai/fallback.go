package ai

import "strings"

const defaultFallback = "I'm here to help you navigate your professional journey. How can I assist you today?"

// fallbackRule answers when the last message contains keyword.
type fallbackRule struct {
	keyword string
	reply   string
}

// First match wins.
var fallbackRules = []fallbackRule{
	{"recommend", "I can help you find relevant connections. Please ensure your profile is complete for better recommendations."},
	{"career", "Career development is a journey. Consider connecting with alumni in your field of interest for personalized advice."},
	{"mentor", "Finding the right mentor is crucial. Browse our mentorship section to find experienced professionals in your area of interest."},
}

// Fallback picks the canned reply for a conversation the provider could not
// answer.
func Fallback(messages []Message) string {
	if len(messages) == 0 {
		return defaultFallback
	}
	last := strings.ToLower(messages[len(messages)-1].Content)
	for _, rule := range fallbackRules {
		if strings.Contains(last, rule.keyword) {
			return rule.reply
		}
	}
	return defaultFallback
}
