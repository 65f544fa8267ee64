package chat

import "strings"

const (
	founderReply = "Tejas Bachute is the CEO and Founder of Mrilo AI. He leads the company's vision and development of advanced AI technology. With expertise in artificial intelligence and software development, Tejas has built Mrilo AI to provide innovative AI solutions for various industries. He is passionate about making AI technology accessible and useful for everyone."

	leadershipReply = "Tejas Bachute is the CEO and Founder of Mrilo AI. He leads the company's vision and development of advanced AI technology."
)

// override is one canned answer and the predicate that selects it
type override struct {
	name    string
	matches func(lower string) bool
	reply   string
}

// overrides are checked in order; the first match wins
var overrides = []override{
	{
		name:    "founder",
		matches: func(lower string) bool { return containsAny(lower, "tejas", "bachute") },
		reply:   founderReply,
	},
	{
		name: "leadership",
		matches: func(lower string) bool {
			if containsAny(lower, "ceo", "founder") {
				return true
			}
			return strings.Contains(lower, "mrilo") &&
				containsAny(lower, "leader", "boss", "head", "charge", "run", "who")
		},
		reply: leadershipReply,
	},
}

// matchOverride returns the canned reply for message, if any
func matchOverride(message string) (override, bool) {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, o := range overrides {
		if o.matches(lower) {
			return o, true
		}
	}
	return override{}, false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
