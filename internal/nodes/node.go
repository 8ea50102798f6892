// Package nodes holds the mAI node adapters: each one turns resolved inputs
// into a remote call and the remote answer into typed outputs.
package nodes

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"mai/internal/clients/transport"
	"mai/internal/params"
	"mai/internal/recorder"
	"mai/internal/request"
	"mai/internal/video"

	"github.com/charmbracelet/log"
)

const Category = "mAI"

// Output types as the host names them.
const (
	OutString = "STRING"
	OutImage  = "IMAGE"
	OutVideo  = "VIDEO"
	OutAudio  = "AUDIO"
	OutFloat  = "FLOAT"
)

type Output struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type Node interface {
	// Invoke returns one value per declared output, in order.
	Invoke(ctx context.Context, in params.Values) ([]any, error)
}

type Definition struct {
	Class   string
	Display string
	Inputs  params.Schema
	Outputs []Output
	// Timeout bounds the whole remote exchange. Zero for local nodes.
	Timeout time.Duration
	New     func(Deps) Node
}

type Deps struct {
	Client        *http.Client
	Recorders     recorder.Source
	Demuxer       video.Demuxer
	Logger        *log.Logger
	MaxVideoBytes int64
}

func schema(specs ...[]params.Spec) params.Schema {
	var s params.Schema
	for _, group := range specs {
		s = append(s, group...)
	}
	return s
}

func inputs(specs ...params.Spec) []params.Spec { return specs }

func outputs(pairs ...string) []Output {
	out := make([]Output, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Output{Type: pairs[i], Name: pairs[i+1]})
	}
	return out
}

// remote is the shared call path of every networked node.
type remote struct {
	client *http.Client
	logger *log.Logger
}

func newRemote(d Deps, class string) remote {
	return remote{client: d.Client, logger: d.Logger.With("node", class)}
}

// post sends the request described by d to the node's url and returns the
// successful response.
func (r remote) post(ctx context.Context, v params.Values, d request.Descriptor, parts ...request.Part) (*transport.Response, error) {
	url, err := params.RequireURL(v)
	if err != nil {
		return nil, err
	}
	req, err := request.Build(d, v, parts...)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := transport.Post(*r.client, ctx, url, bytes.NewReader(req.Body), req.Headers(v.String("api_key")))
	if err != nil {
		return nil, err
	}
	r.logger.Debug("remote call finished", "status", resp.StatusCode, "bytes", len(resp.Body), "elapsed", time.Since(start))
	return resp, nil
}
