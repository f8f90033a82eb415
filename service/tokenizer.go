package service

import (
	"github.com/pkoukk/tiktoken-go"
)

// baselineEncoding is used whenever the model name is unrecognized.
const baselineEncoding = "cl100k_base"

// perTurnOverhead approximates the role/framing tokens the chat format adds
// around each turn.
const perTurnOverhead = 4

// EstimateTokens approximates the prompt cost of a turn list for a model.
// Only text content is counted, images are excluded; this is a budget check,
// not a billing figure. Unknown models fall back to the baseline encoding.
func EstimateTokens(turns []Turn, modelName string) int {
	enc, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		enc, err = tiktoken.GetEncoding(baselineEncoding)
		if err != nil {
			// no encoding available: rough chars/4 heuristic
			total := 0
			for _, t := range flattenText(turns) {
				total += len(t)/4 + perTurnOverhead
			}
			return total
		}
	}

	total := 0
	for _, text := range flattenText(turns) {
		total += len(enc.Encode(text, nil, nil)) + perTurnOverhead
	}
	return total
}

// flattenText collects the text-bearing content of each turn, skipping
// image-only turns.
func flattenText(turns []Turn) []string {
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		if t.Content == "" {
			continue
		}
		out = append(out, t.Content)
	}
	return out
}
