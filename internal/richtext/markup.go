package richtext

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// MaxContentBytes bounds stored letter markup.
const MaxContentBytes = 1 << 20

// ErrInvalidContent is wrapped by every ContentError.
var ErrInvalidContent = errors.New("richtext: invalid content")

// ContentError describes why markup was rejected.
type ContentError struct {
	Reason string
}

func (e *ContentError) Error() string {
	return "richtext: " + e.Reason
}

func (e *ContentError) Unwrap() error {
	return ErrInvalidContent
}

var blockedElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"iframe":   {},
	"frame":    {},
	"frameset": {},
	"object":   {},
	"embed":    {},
	"applet":   {},
	"link":     {},
	"meta":     {},
	"base":     {},
	"form":     {},
}

var urlAttributes = map[string]struct{}{
	"href":       {},
	"src":        {},
	"action":     {},
	"formaction": {},
	"xlink:href": {},
}

// ValidateContent checks that markup is storable and renderable by the editor: it must
// tokenize, stay under MaxContentBytes, and carry no executable or embedding constructs.
func ValidateContent(markup string) error {
	if len(markup) > MaxContentBytes {
		return &ContentError{Reason: fmt.Sprintf("content exceeds %d bytes", MaxContentBytes)}
	}

	tokenizer := html.NewTokenizer(strings.NewReader(markup))
	for {
		tokenType := tokenizer.Next()
		switch tokenType {
		case html.ErrorToken:
			if errors.Is(tokenizer.Err(), io.EOF) {
				return nil
			}
			return &ContentError{Reason: tokenizer.Err().Error()}
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if err := checkElement(token); err != nil {
				return err
			}
		}
	}
}

func checkElement(token html.Token) error {
	name := strings.ToLower(token.Data)
	if _, blocked := blockedElements[name]; blocked {
		return &ContentError{Reason: fmt.Sprintf("element <%s> is not allowed", name)}
	}
	for _, attribute := range token.Attr {
		key := strings.ToLower(attribute.Key)
		if strings.HasPrefix(key, "on") {
			return &ContentError{Reason: fmt.Sprintf("event attribute %s is not allowed", key)}
		}
		if _, isURL := urlAttributes[key]; isURL && unsafeURL(attribute.Val) {
			return &ContentError{Reason: fmt.Sprintf("attribute %s carries a script url", key)}
		}
	}
	return nil
}

func unsafeURL(value string) bool {
	compact := strings.Map(func(r rune) rune {
		if r <= ' ' {
			return -1
		}
		return r
	}, strings.ToLower(value))
	return strings.HasPrefix(compact, "javascript:") || strings.HasPrefix(compact, "vbscript:")
}

// PlainText strips markup and returns the text content with block boundaries as newlines.
func PlainText(markup string) string {
	var builder strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(markup))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(builder.String())
		case html.TextToken:
			builder.Write(tokenizer.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "p", "div", "br", "li":
				if builder.Len() > 0 && !strings.HasSuffix(builder.String(), "\n") {
					builder.WriteByte('\n')
				}
			}
		}
	}
}
