package bot

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/answerline/answerline/internal/webhook"
)

// ErrInvalidMention marks mention spans that are out of range or overlap.
// Legitimate platform input never produces these, so they must fail loudly
// instead of silently corrupting the text.
var ErrInvalidMention = errors.New("invalid mention span")

// ExtractQuestion strips all mention spans from a text message and returns
// the trimmed remainder, the literal question to forward.
//
// Mention offsets are counted in UTF-16 code units, so the text is
// re-encoded into that space before any slicing. Spans are removed in
// descending index order: removing the highest offsets first keeps the
// lower, not-yet-processed offsets valid.
//
// An empty result (a message that was nothing but mentions) is a valid
// outcome meaning "no question".
func ExtractQuestion(m *webhook.Message) (string, error) {
	if m == nil {
		return "", nil
	}
	if m.Mention == nil || len(m.Mention.Mentionees) == 0 {
		return strings.TrimSpace(m.Text), nil
	}

	units := utf16.Encode([]rune(m.Text))

	spans := make([]webhook.Mentionee, len(m.Mention.Mentionees))
	copy(spans, m.Mention.Mentionees)
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].Index > spans[j].Index
	})

	// prevStart is the start of the previously removed (higher) span;
	// any span ending past it overlaps.
	prevStart := len(units)
	for _, sp := range spans {
		if sp.Index < 0 || sp.Length < 0 {
			return "", fmt.Errorf("%w: negative index or length (%d, %d)", ErrInvalidMention, sp.Index, sp.Length)
		}
		end := sp.Index + sp.Length
		if end > len(units) {
			return "", fmt.Errorf("%w: span [%d, %d) exceeds text length %d", ErrInvalidMention, sp.Index, end, len(units))
		}
		if end > prevStart {
			return "", fmt.Errorf("%w: span [%d, %d) overlaps span starting at %d", ErrInvalidMention, sp.Index, end, prevStart)
		}
		units = append(units[:sp.Index], units[end:]...)
		prevStart = sp.Index
	}

	return strings.TrimSpace(string(utf16.Decode(units))), nil
}
