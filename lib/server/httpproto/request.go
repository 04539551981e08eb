package httpproto

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/samber/oops"
)

const (
	// MaxFormBody caps the form body read from a single request.
	MaxFormBody = 1 << 20

	formContentType = "application/x-www-form-urlencoded"
)

type Method int

const (
	MethodGet Method = iota + 1
	MethodPost
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	default:
		return "UNKNOWN"
	}
}

// ParseMethod matches GET and POST case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(s) {
	case "GET":
		return MethodGet, nil
	case "POST":
		return MethodPost, nil
	default:
		return 0, BadRequest("invalid request method %q", s)
	}
}

// Request is one parsed HTTP request. Query and Form are nil when the request
// carried no query string or form body.
type Request struct {
	Method  Method
	Route   string
	Headers map[string]string
	Query   Params
	Form    Params
}

// Header looks up a header by name, ignoring case.
func (r *Request) Header(name string) (string, bool) {
	if v, ok := r.Headers[name]; ok {
		return v, true
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Params merges query and form parameters, form values winning.
func (r *Request) Params() Params {
	return Merge(r.Query, r.Form)
}

// Segments splits the route on '/' after the leading slash.
func (r *Request) Segments() []string {
	return strings.Split(strings.TrimPrefix(r.Route, "/"), "/")
}

// ReadRequest reads a request line, headers and an optional form body.
// Read failures are returned as is; malformed input is a BadRequest.
func ReadRequest(rd *bufio.Reader) (*Request, error) {
	line, err := readLine(rd)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to read request line")
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, BadRequest("corrupted request line")
	}
	method, err := ParseMethod(fields[0])
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method:  method,
		Route:   fields[1],
		Headers: make(map[string]string),
	}
	if err := readHeaders(rd, req.Headers); err != nil {
		return nil, err
	}

	if route, query, ok := strings.Cut(req.Route, "?"); ok {
		req.Route = route
		if req.Query, err = ParseParameters(query); err != nil {
			return nil, err
		}
	}

	if req.Form, err = readForm(rd, req); err != nil {
		return nil, err
	}
	return req, nil
}

func readHeaders(rd *bufio.Reader, headers map[string]string) error {
	for {
		line, err := readLine(rd)
		if err != nil {
			return oops.Wrapf(err, "failed to read request headers")
		}
		if line == "" {
			return nil
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers[name] = strings.TrimLeft(value, " \t")
	}
}

func readForm(rd *bufio.Reader, req *Request) (Params, error) {
	ct, ok := req.Header("Content-Type")
	if !ok {
		return nil, nil
	}
	mediaType, _, _ := strings.Cut(ct, ";")
	if !strings.EqualFold(strings.TrimSpace(mediaType), formContentType) {
		return nil, nil
	}
	cl, ok := req.Header("Content-Length")
	if !ok {
		return nil, nil
	}
	length, err := strconv.Atoi(strings.TrimSpace(cl))
	if err != nil || length <= 0 {
		return nil, nil
	}
	if length > MaxFormBody {
		return nil, BadRequest("form body of %d bytes exceeds limit", length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(rd, body); err != nil {
		return nil, oops.Wrapf(err, "failed to read form body")
	}
	return ParseParameters(string(body))
}

// readLine returns one line without its CRLF or LF terminator. A final line
// cut short by EOF is an error.
func readLine(rd *bufio.Reader) (string, error) {
	line, err := rd.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
