package nodes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mai/internal/recorder"
	"mai/internal/video"

	"github.com/charmbracelet/log"
)

var ErrUnknownNode = errors.New("unknown node class")

// Config overrides per-class behavior. Zero values keep the defaults.
type Config struct {
	Timeouts      map[string]time.Duration
	MaxVideoBytes int64
}

// Builtin lists every node class in display order.
func Builtin() []Definition {
	return []Definition{
		llmText(),
		llmReasoning(),
		llmVision(),
		maiImageEdit(),
		openAILLM(),
		openAIImageGenerate(),
		openAIImageEdit(),
		googleGeminiText(),
		googleGeminiImage(),
		googleImageGenerate(),
		googleVeo(),
		imageContrast(),
		imageSaturation(),
	}
}

type Registry struct {
	defs   map[string]Definition
	nodes  map[string]Node
	order  []string
	logger *log.Logger
}

func NewRegistry(cfg Config, recorders recorder.Source, demuxer video.Demuxer, logger *log.Logger) *Registry {
	if recorders == nil {
		recorders = recorder.Nop{}
	}
	r := &Registry{
		defs:   map[string]Definition{},
		nodes:  map[string]Node{},
		logger: logger.With("component", "nodes"),
	}
	for _, def := range Builtin() {
		if t, ok := cfg.Timeouts[def.Class]; ok && t > 0 {
			def.Timeout = t
		}
		deps := Deps{
			Client:        &http.Client{Timeout: def.Timeout},
			Recorders:     recorders,
			Demuxer:       demuxer,
			Logger:        r.logger,
			MaxVideoBytes: cfg.MaxVideoBytes,
		}
		r.defs[def.Class] = def
		r.nodes[def.Class] = def.New(deps)
		r.order = append(r.order, def.Class)
	}
	return r
}

func (r *Registry) List() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, class := range r.order {
		out = append(out, r.defs[class])
	}
	return out
}

func (r *Registry) Lookup(class string) (Definition, bool) {
	def, ok := r.defs[class]
	return def, ok
}

// Invoke resolves raw inputs against the class schema and runs the node.
func (r *Registry) Invoke(ctx context.Context, class string, raw map[string]any) ([]any, error) {
	def, ok := r.defs[class]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, class)
	}
	values, err := def.Inputs.Resolve(raw)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := r.nodes[class].Invoke(ctx, values)
	if err != nil {
		r.logger.Error("node failed", "class", class, "elapsed", time.Since(start), "err", err)
		return nil, err
	}
	r.logger.Debug("node finished", "class", class, "elapsed", time.Since(start))
	return out, nil
}
