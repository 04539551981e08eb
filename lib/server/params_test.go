package server

import (
	"errors"
	"testing"

	"github.com/Lorinet/Hypefuse/lib/server/httpproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWith(query string) *httpproto.Request {
	params, err := httpproto.ParseParameters(query)
	if err != nil {
		panic(err)
	}
	return &httpproto.Request{Method: httpproto.MethodGet, Route: "/config_set", Query: params}
}

func TestDecodeParams(t *testing.T) {
	p, err := decodeParams[setParams](requestWith("uuid=settings&base=general&key=name&value=%22x%22&extra=1"))
	require.NoError(t, err)
	assert.Equal(t, setParams{UUID: "settings", Base: "general", Key: "name", Value: `"x"`}, p)
}

func TestDecodeParamsReportsFields(t *testing.T) {
	_, err := decodeParams[setParams](requestWith("uuid=settings&base[]=a&base[]=b"))
	require.Error(t, err)
	assert.Equal(t, 400, httpproto.StatusOf(err))

	var perr *ParamError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, []string{"key", "value"}, perr.Missing)
	assert.Equal(t, []string{"base"}, perr.Invalid)
	assert.Equal(t, []string{"key", "value", "base"}, perr.Fields())
	assert.Contains(t, err.Error(), "missing parameters: key, value")
}

func TestCheckNames(t *testing.T) {
	assert.NoError(t, checkNames("/config_get", baseParams{UUID: "settings", Base: "general"}))

	err := checkNames("/config_get", baseParams{UUID: "..", Base: "a/b"})
	require.Error(t, err)
	var perr *ParamError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, []string{"uuid", "base"}, perr.Invalid)
	assert.Equal(t, 400, httpproto.StatusOf(err))
}

func TestFormWinsOverQuery(t *testing.T) {
	req := requestWith("uuid=settings&base=general&key=name")
	req.Form = httpproto.Params{"key": httpproto.Scalar("title")}
	p, err := decodeParams[keyParams](req)
	require.NoError(t, err)
	assert.Equal(t, "title", p.Key)
}
