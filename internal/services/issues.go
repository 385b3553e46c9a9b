package services

import "regexp"

// GenericIssuePhrase stands in for specific issues when none are recognised.
const GenericIssuePhrase = "your overall experience"

// IssueExtractor turns review text into the topics a reply should address.
type IssueExtractor interface {
	Extract(text string) []string
}

type issueRule struct {
	pattern *regexp.Regexp
	topic   string
}

// KeywordIssueExtractor matches a fixed keyword table. Topics come back in
// table order, each at most once.
type KeywordIssueExtractor struct {
	rules []issueRule
}

func NewKeywordIssueExtractor() *KeywordIssueExtractor {
	return &KeywordIssueExtractor{rules: []issueRule{
		{regexp.MustCompile(`(?i)\b(wi-?fi|internet)`), "WiFi connectivity"},
		{regexp.MustCompile(`(?i)\bbreakfast`), "breakfast service"},
		{regexp.MustCompile(`(?i)\b(dirty|clean)`), "room cleanliness"},
		{regexp.MustCompile(`(?i)\b(shower|pressure)`), "shower and water pressure"},
		{regexp.MustCompile(`(?i)\b(staff|service)`), "staff service"},
		{regexp.MustCompile(`(?i)\b(noise|noisy|loud)`), "noise levels"},
	}}
}

func (e *KeywordIssueExtractor) Extract(text string) []string {
	var topics []string
	for _, rule := range e.rules {
		if rule.pattern.MatchString(text) {
			topics = append(topics, rule.topic)
		}
	}
	return topics
}
