package search

const (
	// DefaultTopK は k 未指定時に返す件数
	DefaultTopK = 5
	// DefaultOverFetch は重複除外に備えて多めに取得する倍率
	DefaultOverFetch = 3
	// DefaultQABoost は構造化QAチャンクの距離に掛ける係数
	DefaultQABoost = 0.8
	// DefaultExactMatchBoost はクエリ文字列を含むチャンクの距離に掛ける係数
	DefaultExactMatchBoost = 0.8
)

// Result は検索結果1件を表す
// Score は補正後の距離で、小さいほど関連度が高い
type Result struct {
	Document string  `json:"document"`
	Score    float64 `json:"score"`
	Ordinal  int     `json:"ordinal"`
}

// Weights はスコア補正の係数
type Weights struct {
	QABoost         float64
	ExactMatchBoost float64
}

// DefaultWeights はデフォルトの補正係数を返す
func DefaultWeights() Weights {
	return Weights{
		QABoost:         DefaultQABoost,
		ExactMatchBoost: DefaultExactMatchBoost,
	}
}
