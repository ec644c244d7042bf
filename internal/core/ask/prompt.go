package ask

import (
	"strings"
)

const noContextPlaceholder = "(no relevant context found)"

// BuildAskPrompt はRAG質問応答用のプロンプトを構築する
// passages は "\n\n" で連結してコンテキストとする
func BuildAskPrompt(preamble, question string, passages []string) string {
	var sb strings.Builder

	sb.WriteString(preamble)
	sb.WriteString(" Answer the following question based on the provided context.")
	sb.WriteString(" If you don't know the answer or it's not in the context, say so politely and suggest contacting Leechy support.\n\n")

	sb.WriteString("Context:\n")
	if len(passages) > 0 {
		sb.WriteString(strings.Join(passages, "\n\n"))
	} else {
		sb.WriteString(noContextPlaceholder)
	}
	sb.WriteString("\n\n")

	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\n")

	sb.WriteString("Answer:")

	return sb.String()
}

// fitPassages はトークン上限に収まる先頭からの passages を返す
// counter が nil または上限が0以下の場合は切り詰めない
func fitPassages(passages []string, counter TokenCounter, maxTokens int) []string {
	if counter == nil || maxTokens <= 0 {
		return passages
	}

	total := 0
	for i, p := range passages {
		total += counter.CountTokens(p)
		if total > maxTokens {
			return passages[:i]
		}
	}
	return passages
}
