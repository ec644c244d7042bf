package chunk

const (
	// QuestionMarker は構造化FAQチャンクの質問部の接頭辞
	QuestionMarker = "Question:"
	// AnswerMarker は構造化FAQチャンクの回答部の接頭辞
	AnswerMarker = "Answer:"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50

	DefaultWebChunkSize    = 1000
	DefaultWebChunkOverlap = 200
)

// DocumentSeparators はPDF由来テキストのフォールバック分割に使う区切り文字（優先度順）
var DocumentSeparators = []string{". ", "? ", "! ", ", ", " ", ""}

// WebSeparators はWebページ由来テキストの分割に使う区切り文字（優先度順）
var WebSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// QAPair は抽出された質問と回答の組
// 監査用のエクスポートにのみ使い、インデックスには入れない
type QAPair struct {
	Section  string `json:"section"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
