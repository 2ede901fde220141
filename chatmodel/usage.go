package chatmodel

// UsageDetails accumulates token counts across one or more model calls. It
// forms a commutative monoid under Add: order never matters, and ZeroUsage
// is the identity element, so aggregating a whole run's usage is a left
// fold over every Usage content value emitted along the way.
type UsageDetails struct {
	InputTokens       int64
	OutputTokens      int64
	CachedInputTokens int64
	ReasoningTokens   int64
	TotalTokens       int64
}

// ZeroUsage is the identity element for Add.
var ZeroUsage = UsageDetails{}

// Add combines two UsageDetails values field-by-field. Add is commutative
// and associative: Add(a, b) == Add(b, a), and Add(Add(a, b), c) ==
// Add(a, Add(b, c)).
func (u UsageDetails) Add(other UsageDetails) UsageDetails {
	return UsageDetails{
		InputTokens:       u.InputTokens + other.InputTokens,
		OutputTokens:      u.OutputTokens + other.OutputTokens,
		CachedInputTokens: u.CachedInputTokens + other.CachedInputTokens,
		ReasoningTokens:   u.ReasoningTokens + other.ReasoningTokens,
		TotalTokens:       u.TotalTokens + other.TotalTokens,
	}
}

// SumUsage folds Add over a slice of UsageDetails, starting from ZeroUsage.
func SumUsage(all ...UsageDetails) UsageDetails {
	total := ZeroUsage
	for _, u := range all {
		total = total.Add(u)
	}
	return total
}
