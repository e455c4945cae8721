package tokenizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TesterSim2/Gazelle/internal/logger"
	"github.com/TesterSim2/Gazelle/internal/metrics"
)

// Special tokens. They occupy the lowest ids so a vocabulary built from
// any corpus always places them at the same positions.
const (
	PadToken = "<|pad|>"
	UnkToken = "<|unk|>"
	EOSToken = "<|eos|>"

	PadID = 0
	UnkID = 1
	EOSID = 2
)

// Tokenizer maps whitespace-separated words to integer ids and back.
type Tokenizer struct {
	tokens []string
	ids    map[string]int
}

// New builds a tokenizer from an explicit token list. The specials must
// not appear in the list; they are prepended here.
func New(tokens []string) (*Tokenizer, error) {
	all := append([]string{PadToken, UnkToken, EOSToken}, tokens...)

	t := &Tokenizer{
		tokens: all,
		ids:    make(map[string]int, len(all)),
	}
	for id, tok := range all {
		if tok == "" {
			return nil, fmt.Errorf("empty token at position %d", id)
		}
		if _, dup := t.ids[tok]; dup {
			return nil, fmt.Errorf("duplicate token: %q", tok)
		}
		t.ids[tok] = id
	}
	return t, nil
}

// Build derives a vocabulary from a corpus: unique words sorted
// lexicographically for a stable id assignment, specials first.
func Build(corpus []string) (*Tokenizer, error) {
	seen := make(map[string]struct{})
	for _, text := range corpus {
		for _, w := range strings.Fields(text) {
			seen[w] = struct{}{}
		}
	}

	words := make([]string, 0, len(seen))
	for w := range seen {
		words = append(words, w)
	}
	sort.Strings(words)

	tk, err := New(words)
	if err != nil {
		return nil, err
	}
	logger.Log.Debug("vocabulary built", "size", tk.VocabSize())
	return tk, nil
}

// VocabSize counts every token, specials included.
func (t *Tokenizer) VocabSize() int {
	return len(t.tokens)
}

// Encode tokenizes text, appends EOS, then truncates or pads to maxLen.
// Unknown words map to the unk id.
func (t *Tokenizer) Encode(text string, maxLen int) []int {
	ids := t.encodeWords(text)
	ids = append(ids, EOSID)

	if maxLen > 0 {
		if len(ids) > maxLen {
			ids = ids[:maxLen]
		}
		for len(ids) < maxLen {
			ids = append(ids, PadID)
		}
	}
	return ids
}

// EncodePrompt tokenizes text without EOS or padding, for generation.
func (t *Tokenizer) EncodePrompt(text string) []int {
	return t.encodeWords(text)
}

func (t *Tokenizer) encodeWords(text string) []int {
	words := strings.Fields(text)
	ids := make([]int, 0, len(words))
	unknown := 0
	for _, w := range words {
		id, ok := t.ids[w]
		if !ok {
			id = UnkID
			unknown++
		}
		ids = append(ids, id)
	}
	metrics.RecordTokenizerEncode(len(ids), unknown)
	return ids
}

// Decode joins tokens with spaces, skipping padding and stopping at the
// first EOS.
func (t *Tokenizer) Decode(ids []int) string {
	var parts []string
	for _, id := range ids {
		if id == EOSID {
			break
		}
		if id == PadID {
			continue
		}
		if id < 0 || id >= len(t.tokens) {
			parts = append(parts, UnkToken)
			continue
		}
		parts = append(parts, t.tokens[id])
	}
	return strings.Join(parts, " ")
}
