package httpproto

import (
	"bytes"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, OK(ContentTypeJSON, []byte(`"x"`)).Write(&buf))
	assert.Equal(t, "HTTP/1.1 200 OK\r\n"+
		"Content-Length: 3\r\n"+
		"Content-Type: application/json\r\n"+
		"Access-Control-Allow-Origin: *\r\n\r\n"+
		`"x"`, buf.String())
}

func TestWriteRedirectCarriesOnlyLocation(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RedirectTo("/bundle/settings").Write(&buf))
	assert.Equal(t, "HTTP/1.1 307 OK\r\nLocation: /bundle/settings\r\n\r\n", buf.String())
}

func TestWriteEmptyBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Empty().Write(&buf))
	assert.Contains(t, buf.String(), "Content-Length: 0\r\n")
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\r\n\r\n")))
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"app/index.html":    ContentTypeHTML,
		"notes.txt":         ContentTypeText,
		"font/Inter.ttf":    ContentTypeFont,
		"favicon.ico":       ContentTypeIcon,
		"lib/lib.js":        ContentTypeJS,
		"data.JSON":         ContentTypeJSON,
		"image.png":         ContentTypeText,
		"no_extension":      ContentTypeText,
		"dir.with.dots/cfg": ContentTypeText,
	}
	for name, want := range tests {
		assert.Equal(t, want, ContentTypeFor(name), name)
	}
}

func TestTextPolicy(t *testing.T) {
	invalid := []byte("ok\xffend")

	out, err := TextReplace.Apply(ContentTypeHTML, invalid)
	require.NoError(t, err)
	assert.Equal(t, "ok�end", string(out))

	_, err = TextReject.Apply(ContentTypeJSON, invalid)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidText))
	assert.Equal(t, 500, StatusOf(err))

	out, err = TextReject.Apply(ContentTypeFont, invalid)
	require.NoError(t, err)
	assert.Equal(t, invalid, out, "binary content is passed through")

	valid := []byte("héllo")
	out, err = TextReject.Apply(ContentTypeText, valid)
	require.NoError(t, err)
	assert.Equal(t, valid, out)
}

func TestParseTextPolicy(t *testing.T) {
	p, err := ParseTextPolicy("REJECT")
	require.NoError(t, err)
	assert.Equal(t, TextReject, p)
	p, err = ParseTextPolicy("")
	require.NoError(t, err)
	assert.Equal(t, TextReplace, p)
	_, err = ParseTextPolicy("drop")
	assert.Error(t, err)
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, 400, BadRequest("x").Status())
	assert.Equal(t, 404, NotFound("x").Status())
	assert.Equal(t, 307, Redirect("/").Status())
	assert.Equal(t, 500, ServerError(errors.New("x")).Status())
	assert.Equal(t, 500, StatusOf(errors.New("plain")))

	wrapped := oops.Wrapf(NotFound("bundle missing"), "serving file")
	assert.Equal(t, 404, StatusOf(wrapped))
}

func TestErrorResponseBody(t *testing.T) {
	err := Wrap(KindNotFound, oops.Errorf("no such base"), "invalid configuration base")

	resp := ErrorResponse(err, err.Status(), false)
	assert.Equal(t, 404, resp.Status)
	assert.Equal(t, ContentTypeText, resp.ContentType)
	assert.Equal(t, "invalid configuration base: no such base\n", string(resp.Body))

	traced := ErrorResponse(err, 500, true)
	assert.Equal(t, 500, traced.Status)
	assert.True(t, bytes.HasPrefix(traced.Body, []byte("invalid configuration base: no such base\n")))
	assert.Greater(t, len(traced.Body), len(resp.Body))
}

func TestErrorResponseBodyIsValidUTF8(t *testing.T) {
	err := NotFound("invalid configuration base: %s", "\xff")
	resp := ErrorResponse(err, err.Status(), false)
	assert.True(t, utf8.Valid(resp.Body))
	assert.Equal(t, "invalid configuration base: \uFFFD\n", string(resp.Body))
}
