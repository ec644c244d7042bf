package chunk

import (
	"regexp"
	"strings"
	"unicode"
)

// artifactReplacements は抽出時に壊れることが分かっている文字列の置換表
// 適用順を固定するためにスライスで保持する
var artifactReplacements = []struct {
	old string
	new string
}{
	{"spor ts", "sports"},
	{"machiner y", "machinery"},
	{"furnitur e", "furniture"},
	{"transpor tation", "transportation"},
	{"electr onics", "electronics"},
	{"addr ess", "address"},
	{"pro\ufb01le", "profile"},
	{"arriv e", "arrive"},
	{"insur ed", "insured"},
	{"\u25cf", "-"},  // ●
	{"\u201c", "\""}, // “
	{"\u201d", "\""}, // ”
}

var (
	informalQuestionMarker = regexp.MustCompile(`\bQ:`)
	informalAnswerMarker   = regexp.MustCompile(`\bA:`)
)

// Normalize は抽出直後の生テキストを検索用に整形する
// 空文字列を含むすべての入力に対して定義され、冪等である
func Normalize(raw string) string {
	// 非表示文字を先に除いてから空白を畳み、置換表が畳んだ後の文字列に当たるようにする
	text := collapseWhitespace(stripNonPrintable(raw))

	for _, r := range artifactReplacements {
		text = strings.ReplaceAll(text, r.old, r.new)
	}

	// Q:/A: を正規の Question:/Answer: に揃える
	text = informalQuestionMarker.ReplaceAllString(text, QuestionMarker)
	text = informalAnswerMarker.ReplaceAllString(text, AnswerMarker)

	// 置換や除去で生じた空白の連続をもう一度畳む
	return collapseWhitespace(text)
}

// CleanDocument はチャンクを Document として登録する前の最小限の整形を行う
// 空白の圧縮と非表示文字の除去のみで、置換表やマーカー変換は適用しない
func CleanDocument(text string) string {
	return collapseWhitespace(stripNonPrintable(text))
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripNonPrintable は空白文字を残し、それ以外の非表示文字を除く
func stripNonPrintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}
