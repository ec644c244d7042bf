package chunk

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var questionLinePrefixes = []string{"●", "•", "-", "Q:"}

// ExtractQAPairs は行単位の生テキストから質問と回答の組を抽出する
// 見出し行とマーカー付きの質問行を手掛かりにしたベストエフォートの抽出で、質問か回答が空の組は捨てる
func ExtractQAPairs(rawText string) []QAPair {
	var (
		pairs    []QAPair
		section  string
		question string
		answer   []string
		inPair   bool
	)

	flush := func() {
		if !inPair {
			return
		}
		a := strings.TrimSpace(strings.Join(answer, " "))
		if question != "" && a != "" {
			pairs = append(pairs, QAPair{
				Section:  section,
				Question: question,
				Answer:   a,
			})
		}
		inPair = false
		question = ""
		answer = nil
	}

	for _, line := range strings.Split(rawText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if isSectionHeader(line) {
			flush()
			section = line
			continue
		}

		if q, ok := trimQuestionMarker(line); ok {
			flush()
			question = q
			inPair = true
			continue
		}

		if inPair {
			answer = append(answer, line)
		}
	}
	flush()

	return pairs
}

func isSectionHeader(line string) bool {
	if strings.HasSuffix(line, ":") {
		return true
	}
	return utf8.RuneCountInString(line) > 3 && isAllUpper(line)
}

// isAllUpper は大文字小文字を持つ文字が1つ以上あり、そのすべてが大文字かを判定する
func isAllUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

func trimQuestionMarker(line string) (string, bool) {
	for _, p := range questionLinePrefixes {
		if strings.HasPrefix(line, p) {
			return strings.TrimSpace(strings.TrimPrefix(line, p)), true
		}
	}
	return "", false
}
