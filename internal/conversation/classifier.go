package conversation

import (
	"strings"
	"unicode"

	"genie-trader/internal/config"
)

// Classifier 从消息文本推断意图。
type Classifier interface {
	Classify(text string) Intent
}

// Vocabulary 基于固定词表做整词匹配，大小写不敏感。
type Vocabulary struct {
	autoTrade map[string]struct{}
	advisory  map[string]struct{}
	crypto    map[string]struct{}
}

var _ Classifier = (*Vocabulary)(nil)

// NewVocabulary 根据配置构建词表。
func NewVocabulary(cfg config.ConversationConfig) *Vocabulary {
	return &Vocabulary{
		autoTrade: wordSet(cfg.AutoTradeWords),
		advisory:  wordSet(cfg.AdvisoryWords),
		crypto:    wordSet(cfg.CryptoWords),
	}
}

// Classify 对消息分词后逐个查表。
func (v *Vocabulary) Classify(text string) Intent {
	var intent Intent
	for _, token := range Tokenize(text) {
		if _, ok := v.autoTrade[token]; ok {
			intent.AutoTrade = true
		}
		if _, ok := v.advisory[token]; ok {
			intent.Advisory = true
		}
		if _, ok := v.crypto[token]; ok {
			intent.Crypto = true
		}
	}
	return intent
}

// Tokenize 按非字母数字字符切分并转为小写。
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}
