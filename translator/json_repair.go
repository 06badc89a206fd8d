package translator

import "unicode"

// repairJSON fixes formatting slips models make in otherwise valid JSON:
// object keys missing one or both quotes, and trailing commas.
// String contents are never touched.
func repairJSON(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in)+16)
	inString := false

	for i := 0; i < len(in); i++ {
		ch := in[i]
		if inString {
			out = append(out, ch)
			switch ch {
			case '\\':
				if i+1 < len(in) {
					i++
					out = append(out, in[i])
				}
			case '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
			out = append(out, ch)
		case ',':
			if next := skipSpace(in, i+1); next < len(in) && (in[next] == '}' || in[next] == ']') {
				continue
			}
			out = append(out, ch)
			i = copyKey(in, &out, i+1) - 1
		case '{':
			out = append(out, ch)
			i = copyKey(in, &out, i+1) - 1
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

// copyKey copies the whitespace at i and, when a bare word followed by `":`
// or `:` comes next, writes it as a quoted key. It returns the next index to read.
func copyKey(in []rune, out *[]rune, i int) int {
	j := skipSpace(in, i)
	*out = append(*out, in[i:j]...)
	if j >= len(in) || !unicode.IsLetter(in[j]) {
		return j
	}

	end := j
	for end < len(in) && (unicode.IsLetter(in[end]) || unicode.IsDigit(in[end]) || in[end] == '_') {
		end++
	}
	switch {
	case end+1 < len(in) && in[end] == '"' && in[end+1] == ':':
		*out = append(*out, '"')
		*out = append(*out, in[j:end]...)
		*out = append(*out, '"')
		return end + 1
	case end < len(in) && in[end] == ':':
		*out = append(*out, '"')
		*out = append(*out, in[j:end]...)
		*out = append(*out, '"')
		return end
	}
	return j
}

func skipSpace(in []rune, i int) int {
	for i < len(in) && (in[i] == ' ' || in[i] == '\n' || in[i] == '\t' || in[i] == '\r') {
		i++
	}
	return i
}
