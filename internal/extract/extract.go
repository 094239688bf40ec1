// Package extract recovers structured data from chat-completion payloads.
// Provider output is untrusted text: the envelope may be malformed and the
// generated content may wrap the requested JSON in prose, so every parse is
// an ordered chain of attempts that short-circuits on first success.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// PlaceholderIngredient is returned when no ingredient list can be recovered.
// A plausible guess is deliberately preferred over an empty result.
const PlaceholderIngredient = "rice"

// firstArray matches the first bracket-delimited block, spanning newlines.
var firstArray = regexp.MustCompile(`(?s)\[.*?\]`)

// envelope is the subset of the provider reply we navigate.
type envelope struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// messageContent returns choices[0].message.content and whether the
// envelope could be navigated at all.
func messageContent(raw []byte) (string, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", false
	}
	if len(env.Choices) == 0 {
		return "", false
	}
	return env.Choices[0].Message.Content, true
}

// tryStringArray parses text as a JSON array of strings. Anything else,
// including an empty array, yields no result.
func tryStringArray(text string) []string {
	var arr []string
	if err := json.Unmarshal([]byte(text), &arr); err != nil {
		return nil
	}
	if len(arr) == 0 {
		return nil
	}
	return arr
}

// IngredientList recovers an ordered list of ingredient names from a raw
// provider payload:
//
//  1. navigate the envelope and parse the content as a JSON string array;
//  2. otherwise scan for the first [...] block and parse that;
//  3. otherwise return the single-element placeholder list.
func IngredientList(raw []byte) []string {
	content, ok := messageContent(raw)
	if ok {
		if arr := tryStringArray(content); arr != nil {
			return arr
		}
	}

	// When the envelope itself is unusable, scan the whole payload.
	text := content
	if !ok {
		text = string(raw)
	}
	if block := firstArray.FindString(text); block != "" {
		if arr := tryStringArray(block); arr != nil {
			return arr
		}
	}

	return []string{PlaceholderIngredient}
}

// DishName recovers the generated text verbatim, trimmed. An empty string
// means the envelope was missing or the model produced nothing; the caller
// must treat that as a failure.
func DishName(raw []byte) string {
	content, ok := messageContent(raw)
	if !ok {
		return ""
	}
	return strings.TrimSpace(content)
}
