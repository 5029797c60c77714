package retrieval

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// TokenCounter measures text in model tokens.
type TokenCounter interface {
	Count(text string) int
}

var loaderOnce sync.Once

// TiktokenCounter counts tokens with the BPE encoding of a model.
// Encoding tables are embedded, so no network access is needed.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter returns a counter for model, e.g. "gpt-4".
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("token encoding for %s: %w", model, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// EstimateCounter approximates tokens as one per four characters.
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
