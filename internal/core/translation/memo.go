package translation

import "strings"

// Memo は1回のジョブ実行内で同一チャンクの翻訳結果を再利用するキャッシュ
// キーは空白正規化済みのチャンクテキスト。ジョブをまたいで共有してはならない
type Memo struct {
	entries map[string]Result
}

// NewMemo は空のキャッシュを作成する
func NewMemo() *Memo {
	return &Memo{entries: make(map[string]Result)}
}

// Get は正規化済みキーで翻訳結果を引く
func (m *Memo) Get(chunkText string) (Result, bool) {
	result, ok := m.entries[memoKey(chunkText)]
	return result, ok
}

// Put は翻訳結果を登録する
func (m *Memo) Put(chunkText string, result Result) {
	m.entries[memoKey(chunkText)] = result
}

// Len は登録済みエントリ数を返す
func (m *Memo) Len() int {
	return len(m.entries)
}

// memoKey は空白の違いだけのチャンクが同じエントリに当たるようにキーを正規化する
func memoKey(chunkText string) string {
	return strings.Join(strings.Fields(chunkText), " ")
}
