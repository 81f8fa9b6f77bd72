// internal/words/words.go
package words

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

//go:embed catalog.json
var defaultCatalog []byte

var (
	ErrEmptyCatalog = errors.New("word catalog is empty")
	ErrNoDecoy      = errors.New("no decoy word known")
)

// Provider supplies the secret words of a game.
type Provider interface {
	// PickWord returns a topic and the main secret word.
	PickWord(ctx context.Context) (topic, mainWord string, err error)
	// PickDecoy returns a word related to, but distinct from, mainWord.
	PickDecoy(ctx context.Context, mainWord string) (string, error)
}

// Entry is one secret word and the words a decoy may be drawn from.
type Entry struct {
	Word    string   `json:"word"`
	Similar []string `json:"similar"`
}

// Domain groups entries under a topic.
type Domain struct {
	Name  string  `json:"name"`
	Words []Entry `json:"words"`
}

// Catalog is a Provider backed by a fixed list of topics and words.
type Catalog struct {
	Domains []Domain `json:"domains"`

	// IntN returns a value in [0, n); defaults to math/rand/v2.
	IntN func(n int) int
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse decodes a catalog from JSON and checks that it has at least one word.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode word catalog: %w", err)
	}
	for _, d := range c.Domains {
		if len(d.Words) > 0 {
			c.IntN = rand.Intn
			return &c, nil
		}
	}
	return nil, ErrEmptyCatalog
}

func (c *Catalog) PickWord(ctx context.Context) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	var nonEmpty []Domain
	for _, d := range c.Domains {
		if len(d.Words) > 0 {
			nonEmpty = append(nonEmpty, d)
		}
	}
	if len(nonEmpty) == 0 {
		return "", "", ErrEmptyCatalog
	}
	d := nonEmpty[c.IntN(len(nonEmpty))]
	e := d.Words[c.IntN(len(d.Words))]
	return d.Name, e.Word, nil
}

func (c *Catalog) PickDecoy(ctx context.Context, mainWord string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, d := range c.Domains {
		for _, e := range d.Words {
			if !strings.EqualFold(e.Word, mainWord) {
				continue
			}
			var options []string
			for _, s := range e.Similar {
				if s != "" && !strings.EqualFold(s, mainWord) {
					options = append(options, s)
				}
			}
			if len(options) == 0 {
				break
			}
			return options[c.IntN(len(options))], nil
		}
	}
	return "", fmt.Errorf("%w for %q", ErrNoDecoy, mainWord)
}
