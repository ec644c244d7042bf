package chunk

import (
	"strings"
	"unicode/utf8"
)

// SplitText はテキストを size ルーン以下のチャンクに分割する
//
// separators は優先度順に試され、テキスト中に存在する最初の区切りで分割する。
// 区切りで分けた断片がまだ大きい場合は次の区切りで再分割し、"" は1ルーン単位の分割を意味する。
// 2番目以降のチャンクは直前チャンクの末尾 overlap ルーンで必ず始まる。
// overlap が size 以上の場合は size/4 に丸める。
func SplitText(text string, size, overlap int, separators []string) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}

	atoms := atomize(text, size-overlap, separators)
	return pack(atoms, size, overlap)
}

type workItem struct {
	text  string
	level int
}

// atomize はテキストを budget ルーン以下の断片列に分解する
// 再帰の代わりにスタックを使い、断片の順序は元テキストの順序を保つ
func atomize(text string, budget int, separators []string) []string {
	if budget <= 0 {
		budget = 1
	}

	var atoms []string
	stack := []workItem{{text: text, level: 0}}

	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if utf8.RuneCountInString(item.text) <= budget {
			atoms = append(atoms, item.text)
			continue
		}

		sep, next, ok := pickSeparator(item.text, item.level, separators)
		if !ok {
			// 区切りが尽きた場合はルーン単位に落とす
			sep, next = "", len(separators)
		}

		pieces := splitKeepSeparator(item.text, sep)
		for i := len(pieces) - 1; i >= 0; i-- {
			stack = append(stack, workItem{text: pieces[i], level: next})
		}
	}

	return atoms
}

// pickSeparator は level 以降でテキスト中に存在する最初の区切りを返す
func pickSeparator(text string, level int, separators []string) (string, int, bool) {
	for i := level; i < len(separators); i++ {
		sep := separators[i]
		if sep == "" || strings.Contains(text, sep) {
			return sep, i + 1, true
		}
	}
	return "", 0, false
}

// splitKeepSeparator は区切りを各断片の末尾に残したまま分割する
// 連結すると必ず元のテキストに戻る
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.SplitAfter(text, sep)
	pieces := parts[:0]
	for _, p := range parts {
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

// pack は断片を貪欲に詰めてチャンクを組み立てる
// 各断片は size-overlap 以下なので、overlap 付きのチャンクにも必ず1つは入る
func pack(atoms []string, size, overlap int) []string {
	var chunks []string
	var current []rune
	hasFresh := false

	for _, atom := range atoms {
		atomRunes := []rune(atom)
		if hasFresh && len(current)+len(atomRunes) > size {
			chunks = append(chunks, string(current))
			current = tailRunes(current, overlap)
			hasFresh = false
		}
		current = append(current, atomRunes...)
		hasFresh = true
	}

	if hasFresh {
		chunks = append(chunks, string(current))
	}

	return chunks
}

func tailRunes(rs []rune, n int) []rune {
	if n <= 0 {
		return []rune{}
	}
	if n > len(rs) {
		n = len(rs)
	}
	out := make([]rune, n)
	copy(out, rs[len(rs)-n:])
	return out
}
