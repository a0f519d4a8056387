// Package identifier derives receipt and application numbers.
package identifier

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"feedesk/internal/receipt/models"
)

const (
	DefaultPrefix    = "CTC"
	DefaultSuffixLen = 6
	MinSuffixLen     = 3
	maxSuffixLen     = 32
)

// Generator builds identifiers. The zero value is not usable; call New.
type Generator struct {
	prefix    string
	suffixLen int
	random    func() string
}

type Option func(*Generator)

func WithPrefix(prefix string) Option {
	return func(g *Generator) {
		g.prefix = prefix
	}
}

// WithSuffixLength sets the random disambiguator length, clamped to [3, 32].
func WithSuffixLength(n int) Option {
	return func(g *Generator) {
		g.suffixLen = min(max(n, MinSuffixLen), maxSuffixLen)
	}
}

// WithRandomSource replaces the UUID hex source. Tests use it for stable output.
// A nil fn keeps the default, and an empty chunk falls back to UUID hex.
func WithRandomSource(fn func() string) Option {
	return func(g *Generator) {
		if fn != nil {
			g.random = fn
		}
	}
}

func New(opts ...Option) *Generator {
	g := &Generator{
		prefix:    DefaultPrefix,
		suffixLen: DefaultSuffixLen,
		random:    uuidHex,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func uuidHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Timestamp formats now in the identifier layout.
func Timestamp(now time.Time) string {
	return now.Format(models.TimestampLayout)
}

// NewReceiptNo returns prefix + timestamp + an upper-case hex suffix.
func (g *Generator) NewReceiptNo(now time.Time) string {
	var suffix string
	for len(suffix) < g.suffixLen {
		chunk := g.random()
		if chunk == "" {
			chunk = uuidHex()
		}
		suffix += chunk
	}
	return g.prefix + Timestamp(now) + strings.ToUpper(suffix[:g.suffixLen])
}

// NewApplicationNo returns timestamp + (ledgerSize+1). It is a best-effort sequence and
// can repeat across concurrent writers that observe the same ledger size.
func (g *Generator) NewApplicationNo(now time.Time, ledgerSize int) string {
	return Timestamp(now) + strconv.Itoa(ledgerSize+1)
}
