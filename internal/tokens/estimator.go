// Package tokens estimates how many model tokens a page read costs.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	. "github.com/roelfdiedericks/goclaw-browser/internal/logging"
)

// Encoding is the tiktoken encoding page reads are measured in.
const Encoding = "cl100k_base"

// Counter counts tokens with a tiktoken encoding. A Counter without an
// encoding (including nil) estimates one token per four bytes.
type Counter struct {
	enc *tiktoken.Tiktoken
	mu  sync.Mutex
}

// Load returns a Counter for the named encoding. tiktoken fetches the
// ranks on first use, so this can fail offline.
func Load(name string) (*Counter, error) {
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, err
	}
	return &Counter{enc: enc}, nil
}

// Exact reports whether counts come from the tokenizer.
func (c *Counter) Exact() bool { return c != nil && c.enc != nil }

func (c *Counter) Count(text string) int {
	if !c.Exact() {
		return (len(text) + 3) / 4
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.enc.Encode(text, nil, nil))
}

var shared = sync.OnceValue(func() *Counter {
	c, err := Load(Encoding)
	if err != nil {
		L_warn("tokens: encoding unavailable, estimating from length", "encoding", Encoding, "error", err)
		return &Counter{}
	}
	return c
})

// Estimate counts text with the process-wide Counter.
func Estimate(text string) int {
	return shared().Count(text)
}
