package synthesis

import (
	"strings"

	"golang.org/x/text/cases"

	"vidpipe/internal/textutil"
)

// Pacing bounds. The slowdown never goes below 75% of the base rate;
// deeper slowdowns read as playback faults rather than emphasis.
const (
	pacingRate  = "80%"
	breakBefore = "300ms"
	breakAfter  = "200ms"
)

// pacingKeywords flag sentences that read better slowed down. Matching
// is case-folded, so the English entries stay lowercase.
var pacingKeywords = []string{
	// grief
	"슬픔", "슬프", "눈물", "죽음", "사망", "비통", "애도", "세상을 떠",
	"grief", "mourning", "sorrow", "tears", "passed away", "died",
	// urgency
	"긴급", "급히", "서둘러", "위급", "촌각",
	"urgent", "hurry", "emergency", "immediately",
	// gratitude
	"감사", "고맙", "은혜",
	"thank", "grateful", "gratitude",
	// fear
	"두려움", "두렵", "공포", "무서", "겁에",
	"fear", "afraid", "terrified", "dread",
}

var foldedKeywords = func() []string {
	folder := cases.Fold()
	folded := make([]string, len(pacingKeywords))
	for i, keyword := range pacingKeywords {
		folded[i] = folder.String(keyword)
	}
	return folded
}()

// MarkupChunk renders one chunk for submission. When any sentence in the
// chunk carries a pacing keyword the whole chunk becomes an SSML document
// with the matched sentences slowed and bracketed by short breaks; the
// second return reports whether markup was applied.
func MarkupChunk(chunk []string) (string, bool) {
	matched := make([]bool, len(chunk))
	any := false
	for i, sentence := range chunk {
		if hasPacingKeyword(sentence) {
			matched[i] = true
			any = true
		}
	}
	if !any {
		return textutil.JoinChunk(chunk), false
	}

	var b strings.Builder
	b.WriteString("<speak>")
	for i, sentence := range chunk {
		if matched[i] {
			b.WriteString(`<break time="` + breakBefore + `"/>`)
			b.WriteString(`<prosody rate="` + pacingRate + `">`)
			b.WriteString(escapeSSML(sentence))
			b.WriteString(`</prosody>`)
			b.WriteString(`<break time="` + breakAfter + `"/>`)
			continue
		}
		b.WriteString(escapeSSML(sentence))
	}
	b.WriteString("</speak>")
	return b.String(), true
}

func hasPacingKeyword(sentence string) bool {
	folded := cases.Fold().String(sentence)
	for _, keyword := range foldedKeywords {
		if strings.Contains(folded, keyword) {
			return true
		}
	}
	return false
}

var ssmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeSSML(text string) string {
	return ssmlEscaper.Replace(text)
}
