package coins

import "strings"

// ExtractMentionedCoins returns the symbols whose keywords appear as whole
// words in "title content", in table order and without repeats.
func ExtractMentionedCoins(title, content string, t *Table) []string {
	if t == nil {
		return nil
	}
	text := strings.ToUpper(title + " " + content)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var out []string
	for i, c := range t.coins {
		for _, re := range t.patterns[i] {
			if re.MatchString(text) {
				out = append(out, c.Symbol)
				break
			}
		}
	}
	return out
}

// Join renders a coin list in its persisted comma-separated form.
func Join(symbols []string) string {
	return strings.Join(symbols, ",")
}

// Split parses the persisted form back into symbols. Empty input yields nil.
func Split(joined string) []string {
	joined = strings.TrimSpace(joined)
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
