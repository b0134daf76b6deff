package infrastructure

import (
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

// timedText covers both caption payload shapes served by the platform:
// <transcript><text start="1.2" dur="3.4">..</text></transcript> and the
// newer <timedtext format="3"><body><p t="1200" d="3400">..</p></body></timedtext>
type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Inner string `xml:",innerxml"`
	} `xml:"text"`
	Paragraphs []struct {
		T     string `xml:"t,attr"`
		D     string `xml:"d,attr"`
		Inner string `xml:",innerxml"`
	} `xml:"body>p"`
}

var markupPattern = regexp.MustCompile(`<[^>]*>`)

// ParseTimedText decodes a timed-text document into cues
func ParseTimedText(r io.Reader) ([]domain.Cue, error) {
	var doc timedText
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode timed text: %w", err)
	}

	cues := make([]domain.Cue, 0, len(doc.Texts)+len(doc.Paragraphs))
	for _, t := range doc.Texts {
		start, err := secondsAttr(t.Start)
		if err != nil {
			return nil, err
		}
		dur, err := secondsAttr(t.Dur)
		if err != nil {
			return nil, err
		}
		cues = append(cues, domain.Cue{Start: start, Duration: dur, Text: cueText(t.Inner)})
	}
	for _, p := range doc.Paragraphs {
		start, err := millisAttr(p.T)
		if err != nil {
			return nil, err
		}
		dur, err := millisAttr(p.D)
		if err != nil {
			return nil, err
		}
		cues = append(cues, domain.Cue{Start: start, Duration: dur, Text: cueText(p.Inner)})
	}
	return cues, nil
}

// cueText strips entity escaping and inline markup. Entities are
// sometimes escaped twice in the payload and may themselves encode markup
// such as <font>, so unescaping runs before tags are removed.
func cueText(inner string) string {
	text := html.UnescapeString(html.UnescapeString(inner))
	text = markupPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
}

func secondsAttr(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", v, err)
	}
	return time.Duration(math.Round(f*1000)) * time.Millisecond, nil
}

func millisAttr(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", v, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
