package domain

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/spf13/cast"
)

const (
	minScore = 1
	maxScore = 10
)

// Letter is the structured result of a generation.
type Letter struct {
	ResponseText    string
	ComplexityScore int
}

// ParseLetter extracts a Letter from raw generator output. It tries a
// direct decode first, then strips code fences, then narrows to the outer
// braces, then escapes raw control characters and stray backslashes inside
// string literals. The score is clamped to 1..10.
func ParseLetter(raw string) (*Letter, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrEmptyOutput
	}

	candidates := []string{text}
	unfenced := stripCodeFence(text)
	if unfenced != text {
		candidates = append(candidates, unfenced)
	}
	if sliced, ok := sliceObject(unfenced); ok && sliced != unfenced {
		candidates = append(candidates, sliced)
	}

	var lastErr error = ErrUnparseable
	for _, candidate := range candidates {
		letter, err := decodeLetter(candidate)
		if err == nil {
			return letter, nil
		}
		lastErr = err
	}

	last := candidates[len(candidates)-1]
	if repaired := repairStrings(last); repaired != last {
		letter, err := decodeLetter(repaired)
		if err == nil {
			return letter, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func decodeLetter(candidate string) (*Letter, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return nil, ErrUnparseable
	}

	text, err := cast.ToStringE(fields["responseText"])
	if err != nil || strings.TrimSpace(text) == "" {
		return nil, ErrMissingField
	}
	rawScore, ok := fields["complexityScore"]
	if !ok || rawScore == nil {
		return nil, ErrMissingField
	}
	score, err := cast.ToFloat64E(rawScore)
	if err != nil || math.IsNaN(score) {
		return nil, ErrMissingField
	}

	return &Letter{
		ResponseText:    strings.TrimSpace(text),
		ComplexityScore: clampScore(score),
	}, nil
}

func clampScore(score float64) int {
	rounded := int(math.Round(score))
	if rounded < minScore {
		return minScore
	}
	if rounded > maxScore {
		return maxScore
	}
	return rounded
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := strings.TrimPrefix(text, "```")
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		// drop the language tag line
		body = body[idx+1:]
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

func sliceObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// repairStrings escapes characters JSON forbids inside string literals.
func repairStrings(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 16)

	inString := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}

		switch {
		case c == '\\':
			if i+1 < len(text) && strings.IndexByte(`"\/bfnrtu`, text[i+1]) >= 0 {
				b.WriteByte(c)
				b.WriteByte(text[i+1])
				i++
				continue
			}
			b.WriteString(`\\`)
		case c == '"':
			inString = false
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20:
			b.WriteString(`\u00`)
			b.WriteByte("0123456789abcdef"[c>>4])
			b.WriteByte("0123456789abcdef"[c&0xf])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
