package ingestion

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ReadChunkFile はJSON配列形式のチャンクファイルを読み込む
func ReadChunkFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk file %s: %w", path, err)
	}

	var chunks []string
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("failed to parse chunk file %s: %w", path, err)
	}
	return chunks, nil
}

// WriteJSONFile は値を整形済みJSONとして書き出す
func WriteJSONFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WebContent は website_content.json の形式（URL → タイトルと本文）
func WebContent(pages []WebPage) map[string]WebPage {
	out := make(map[string]WebPage, len(pages))
	for _, p := range pages {
		out[p.URL] = p
	}
	return out
}
