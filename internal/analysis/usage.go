package analysis

// estimatedTokens fills in usage when the provider reported none:
// imageCount times the vendor's per-image constant for the prompt side,
// plus a four-characters-per-token estimate of the response.
func estimatedTokens(p Provider, imageCount int, responseText string) (prompt, completion int) {
	prompt = imageCount * p.TokensPerImage()
	completion = len(responseText) / 4
	return prompt, completion
}

// callCost prices a call from token counts. Estimated and exact-counted
// usage go through the same formula.
func callCost(p Provider, promptTokens, completionTokens int) float64 {
	inRate, outRate := p.Rates()
	return float64(promptTokens)/1000*inRate + float64(completionTokens)/1000*outRate
}

// accountUsage resolves the final token counts and cost for a successful
// call. imageCount is the number of images submitted (1 for single-frame,
// the frame count for multi-frame, 0 for native video where the vendor
// constant does not apply).
func accountUsage(p Provider, d Description, imageCount int) (prompt, completion int, cost float64, estimated bool) {
	prompt = d.Usage.PromptTokens
	completion = d.Usage.CompletionTokens
	estimated = !d.Usage.Reported
	if estimated {
		prompt, completion = estimatedTokens(p, imageCount, d.Text)
	}
	cost = callCost(p, prompt, completion)
	return prompt, completion, cost, estimated
}
