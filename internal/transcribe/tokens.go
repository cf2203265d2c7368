package transcribe

import "strings"

// joinTokens merges recognizer subword tokens into words. A token opening with
// a space or the SentencePiece marker starts a new word. Timestamps are token
// offsets relative to segStart; when they are missing, word times are spread
// evenly over [segStart, segEnd).
func joinTokens(tokens []string, timestamps []float32, segStart, segEnd float64) []Word {
	type pending struct {
		text  string
		start float64
	}
	timed := len(timestamps) == len(tokens)

	var parts []pending
	for i, tok := range tokens {
		if tok == "" {
			continue
		}
		boundary := strings.HasPrefix(tok, " ") || strings.HasPrefix(tok, "▁")
		text := strings.TrimLeft(strings.ReplaceAll(tok, "▁", " "), " ")
		if text == "" && boundary {
			continue
		}
		at := 0.0
		if timed {
			at = segStart + float64(timestamps[i])
		}
		if boundary || len(parts) == 0 {
			parts = append(parts, pending{text: text, start: at})
			continue
		}
		parts[len(parts)-1].text += text
	}
	if len(parts) == 0 {
		return nil
	}

	words := make([]Word, len(parts))
	if !timed {
		step := (segEnd - segStart) / float64(len(parts))
		for i, p := range parts {
			words[i] = Word{
				Start: segStart + float64(i)*step,
				End:   segStart + float64(i+1)*step,
				Text:  p.text,
			}
		}
		return words
	}
	for i, p := range parts {
		end := segEnd
		if i+1 < len(parts) {
			end = parts[i+1].start
		}
		if end < p.start {
			end = p.start
		}
		words[i] = Word{Start: p.start, End: end, Text: p.text}
	}
	return words
}
