package server

import (
	"reflect"
	"strings"

	"github.com/Lorinet/Hypefuse/lib/configuration"
	"github.com/Lorinet/Hypefuse/lib/server/httpproto"
	"github.com/go-viper/mapstructure/v2"
	"github.com/samber/oops"
)

// ParamError lists the request parameters a handler could not accept.
type ParamError struct {
	Missing []string
	Invalid []string
	Err     error
}

func (e *ParamError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing parameters: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid parameters: "+strings.Join(e.Invalid, ", "))
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(parts) == 0 {
		return "invalid parameters"
	}
	return strings.Join(parts, "; ")
}

func (e *ParamError) Unwrap() error { return e.Err }

// Fields returns every offending parameter name.
func (e *ParamError) Fields() []string {
	return append(append([]string(nil), e.Missing...), e.Invalid...)
}

type baseParams struct {
	UUID string `mapstructure:"uuid"`
	Base string `mapstructure:"base"`
}

func (p baseParams) validate() *ParamError {
	var perr ParamError
	if configuration.ValidateName(p.UUID) != nil {
		perr.Invalid = append(perr.Invalid, "uuid")
	}
	if configuration.ValidateName(p.Base) != nil {
		perr.Invalid = append(perr.Invalid, "base")
	}
	if len(perr.Invalid) > 0 {
		return &perr
	}
	return nil
}

type keyParams struct {
	UUID string `mapstructure:"uuid"`
	Base string `mapstructure:"base"`
	Key  string `mapstructure:"key"`
}

func (p keyParams) base() baseParams { return baseParams{UUID: p.UUID, Base: p.Base} }

type setParams struct {
	UUID  string `mapstructure:"uuid"`
	Base  string `mapstructure:"base"`
	Key   string `mapstructure:"key"`
	Value string `mapstructure:"value"`
}

func (p setParams) base() baseParams { return baseParams{UUID: p.UUID, Base: p.Base} }

// paramNames lists the mapstructure names of t's fields.
func paramNames(t reflect.Type) []string {
	var names []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		names = append(names, name)
	}
	return names
}

// decodeParams fills a T from the merged query and form parameters. Every
// field of T is a required scalar; unknown parameters are ignored.
func decodeParams[T any](req *httpproto.Request) (T, error) {
	var out T
	params := req.Params()

	var perr ParamError
	for _, name := range paramNames(reflect.TypeOf(out)) {
		v, ok := params[name]
		switch {
		case !ok:
			perr.Missing = append(perr.Missing, name)
		case v.IsList():
			perr.Invalid = append(perr.Invalid, name)
		}
	}
	if len(perr.Missing) > 0 || len(perr.Invalid) > 0 {
		return out, httpproto.Wrap(httpproto.KindBadRequest, &perr, "bad parameters for %s", req.Route)
	}

	if err := mapstructure.Decode(params.Values(), &out); err != nil {
		return out, httpproto.Wrap(httpproto.KindBadRequest,
			&ParamError{Err: oops.Wrapf(err, "decode parameters")}, "bad parameters for %s", req.Route)
	}
	return out, nil
}

// checkNames rejects scope or base names that are not a single path segment.
func checkNames(route string, p baseParams) error {
	if perr := p.validate(); perr != nil {
		return httpproto.Wrap(httpproto.KindBadRequest, perr, "bad parameters for %s", route)
	}
	return nil
}
