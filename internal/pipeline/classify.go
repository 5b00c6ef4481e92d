package pipeline

import "strings"

// DefaultKeywords mark a message as an alert when any of them occurs in
// its subject or body.
var DefaultKeywords = []string{"alert", "notification", "important", "critical", "warning"}

// Classifier decides whether a message is an alert by case-insensitive
// substring match.
type Classifier struct {
	keywords []string
}

// NewClassifier builds a classifier. Blank keywords are dropped; an empty
// list means DefaultKeywords.
func NewClassifier(keywords []string) *Classifier {
	var kws []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			kws = append(kws, kw)
		}
	}
	if len(kws) == 0 {
		kws = append(kws, DefaultKeywords...)
	}
	return &Classifier{keywords: kws}
}

// Keywords returns the lowercased keyword set.
func (c *Classifier) Keywords() []string {
	return append([]string(nil), c.keywords...)
}

// Match returns the first keyword found in the subject or body.
func (c *Classifier) Match(subject, body string) (string, bool) {
	text := strings.ToLower(subject) + " " + strings.ToLower(body)
	for _, kw := range c.keywords {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}

// IsAlert reports whether the message is an alert.
func (c *Classifier) IsAlert(subject, body string) bool {
	_, ok := c.Match(subject, body)
	return ok
}
