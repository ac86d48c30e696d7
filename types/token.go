package types

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer defines the interface for token counting used to keep prompt
// renderings inside a model's context budget.
type Tokenizer interface {
	// CountTokens counts tokens in a text string.
	CountTokens(text string) int
}

// TiktokenCounter counts tokens with a tiktoken encoding. Initialization is
// lazy because the encoding data may be downloaded on first use.
type TiktokenCounter struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// NewTiktokenCounter creates a tiktoken-backed counter for the given encoding.
// An empty encoding defaults to cl100k_base.
func NewTiktokenCounter(encoding string) *TiktokenCounter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &TiktokenCounter{encoding: encoding}
}

func (t *TiktokenCounter) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// CountTokens counts tokens in text. Falls back to estimation when the
// encoding could not be initialized.
func (t *TiktokenCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if err := t.init(); err != nil {
		return estimateTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// EstimateCounter is a character-count-based token estimator for tests and
// offline environments where the tiktoken data is unavailable.
type EstimateCounter struct{}

// CountTokens estimates tokens in text.
func (EstimateCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return estimateTokens(text)
}

// estimateTokens distinguishes CJK and other characters for better accuracy
// than a naive len/4 approach.
func estimateTokens(text string) int {
	totalChars := utf8.RuneCountInString(text)
	cjkCount := 0
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FA5 {
			cjkCount++
		}
	}
	estimated := int(float64(cjkCount)/1.5 + float64(totalChars-cjkCount)/4.0)
	if estimated == 0 {
		estimated = 1
	}
	return estimated
}
