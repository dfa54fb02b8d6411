package extract

import "strings"

// approvalPhrases are matched case-insensitively anywhere in a response.
var approvalPhrases = []string{
	"do you approve",
	"proceed to",
	"plan is validated",
	"specification is ready",
	"to begin implementation",
}

// ApprovalPhrases returns the phrases that mark the end of a phase.
func ApprovalPhrases() []string {
	out := make([]string, len(approvalPhrases))
	copy(out, approvalPhrases)
	return out
}

// DetectApproval reports whether text contains an approval-gate phrase and
// returns the first one that matched.
func DetectApproval(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, p := range approvalPhrases {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}
