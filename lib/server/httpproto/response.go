package httpproto

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"
	"golang.org/x/text/encoding/unicode"
)

const (
	ContentTypeHTML = "text/html"
	ContentTypeText = "text/plain"
	ContentTypeFont = "font/ttf"
	ContentTypeIcon = "image/x-icon"
	ContentTypeJS   = "text/javascript"
	ContentTypeJSON = "application/json"
)

var contentTypes = map[string]string{
	"html": ContentTypeHTML,
	"txt":  ContentTypeText,
	"ttf":  ContentTypeFont,
	"ico":  ContentTypeIcon,
	"js":   ContentTypeJS,
	"json": ContentTypeJSON,
}

// ContentTypeFor maps a file name to its MIME type by extension. Unknown
// extensions are served as text/plain.
func ContentTypeFor(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return ContentTypeText
}

// IsText reports whether a content type carries text subject to a TextPolicy.
func IsText(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))
	return strings.HasPrefix(mediaType, "text/") || mediaType == ContentTypeJSON
}

// TextPolicy decides what happens to text bodies that are not valid UTF-8.
type TextPolicy int

const (
	// TextReplace substitutes U+FFFD for every invalid byte.
	TextReplace TextPolicy = iota
	// TextReject fails the response.
	TextReject
)

var ErrInvalidText = errors.New("response body is not valid UTF-8")

func ParseTextPolicy(s string) (TextPolicy, error) {
	switch strings.ToLower(s) {
	case "", "replace":
		return TextReplace, nil
	case "reject":
		return TextReject, nil
	default:
		return 0, oops.Errorf("unknown text policy %q", s)
	}
}

func (p TextPolicy) String() string {
	if p == TextReject {
		return "reject"
	}
	return "replace"
}

// Apply enforces the policy on body. Binary content types pass through.
func (p TextPolicy) Apply(contentType string, body []byte) ([]byte, error) {
	if !IsText(contentType) || utf8.Valid(body) {
		return body, nil
	}
	if p == TextReject {
		return nil, ServerError(oops.Wrapf(ErrInvalidText, "content type %s", contentType))
	}
	return ValidUTF8(body), nil
}

// ValidUTF8 returns b with every invalid byte replaced by U+FFFD.
func ValidUTF8(b []byte) []byte {
	if utf8.Valid(b) {
		return b
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return bytes.ToValidUTF8(b, []byte(string(utf8.RuneError)))
	}
	return out
}

// Response is what a handler produces for the writer.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
	// Location is only used by 307 responses.
	Location string
}

func OK(contentType string, body []byte) *Response {
	return &Response{Status: 200, ContentType: contentType, Body: body}
}

// Empty is a 200 JSON response with no body.
func Empty() *Response {
	return OK(ContentTypeJSON, nil)
}

func RedirectTo(target string) *Response {
	return &Response{Status: 307, Location: target}
}

// ErrorResponse renders err as a text response with the given status. With
// traces enabled the body carries the message followed by the stack trace.
// The body is always valid UTF-8.
func ErrorResponse(err error, status int, traces bool) *Response {
	he := AsHTTPError(err)
	body := he.Error() + "\n"
	if traces {
		if he.Err != nil {
			body += fmt.Sprintf("%+v", he.Err)
		} else {
			body += fmt.Sprintf("%+v", err)
		}
	}
	return &Response{Status: status, ContentType: ContentTypeText, Body: ValidUTF8([]byte(body))}
}

// Write serializes r. A 307 carries only a Location header; every other
// status carries Content-Length, Content-Type and an allow-all CORS header.
func (r *Response) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if r.Status == 307 {
		fmt.Fprintf(bw, "HTTP/1.1 307 OK\r\nLocation: %s\r\n\r\n", r.Location)
	} else {
		fmt.Fprintf(bw, "HTTP/1.1 %d OK\r\n", r.Status)
		fmt.Fprintf(bw, "Content-Length: %d\r\n", len(r.Body))
		fmt.Fprintf(bw, "Content-Type: %s\r\n", r.ContentType)
		bw.WriteString("Access-Control-Allow-Origin: *\r\n\r\n")
		bw.Write(r.Body)
	}
	if err := bw.Flush(); err != nil {
		return oops.Wrapf(err, "failed to write response")
	}
	return nil
}
