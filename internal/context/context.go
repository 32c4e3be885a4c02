package context

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"ocm.software/open-component-model/bindings/go/modelarchive"
	"ocm.software/open-component-model/bindings/go/modelarchive/config/v1alpha1"
)

type ctxKey string

const key ctxKey = "ocm.software/open-component-model/bindings/go/modelarchive/internal/context"

// AnnotationNoStore marks commands that run without a model store in their Context.
const AnnotationNoStore = "modelarchive.ocm.software/no-store"

// Context carries the structures shared by all modelarchive commands.
// It is created once by the root command and only passed by pointer.
type Context struct {
	mu sync.RWMutex

	// configuration is the merged configuration of config file and flags.
	configuration *v1alpha1.Config

	// store is the model store all commands operate on.
	// It is nil for commands that do not need a store, such as inspect.
	store *modelarchive.Store

	// gatherer collects the metrics of the store for the metrics text file.
	gatherer prometheus.Gatherer
}

// WithConfiguration returns a context carrying cfg.
func WithConfiguration(ctx context.Context, cfg *v1alpha1.Config) context.Context {
	ctx, mactx := retrieveOrCreate(ctx)
	mactx.mu.Lock()
	defer mactx.mu.Unlock()
	mactx.configuration = cfg
	return ctx
}

// WithStore returns a context carrying store.
func WithStore(ctx context.Context, store *modelarchive.Store) context.Context {
	ctx, mactx := retrieveOrCreate(ctx)
	mactx.mu.Lock()
	defer mactx.mu.Unlock()
	mactx.store = store
	return ctx
}

// WithGatherer returns a context carrying the metrics gatherer.
func WithGatherer(ctx context.Context, gatherer prometheus.Gatherer) context.Context {
	ctx, mactx := retrieveOrCreate(ctx)
	mactx.mu.Lock()
	defer mactx.mu.Unlock()
	mactx.gatherer = gatherer
	return ctx
}

// Register makes sure the context of cmd holds a Context.
func Register(cmd *cobra.Command) {
	ctx, _ := retrieveOrCreate(cmd.Context())
	cmd.SetContext(ctx)
}

func (ctx *Context) Configuration() *v1alpha1.Config {
	if ctx == nil {
		return nil
	}
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.configuration
}

func (ctx *Context) Store() *modelarchive.Store {
	if ctx == nil {
		return nil
	}
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.store
}

func (ctx *Context) Gatherer() prometheus.Gatherer {
	if ctx == nil {
		return nil
	}
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.gatherer
}

// FromContext retrieves the Context from ctx, or nil if there is none.
func FromContext(ctx context.Context) *Context {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(key).(*Context); ok {
		return v
	}
	return nil
}

func retrieveOrCreate(ctx context.Context) (context.Context, *Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	mactx := FromContext(ctx)
	if mactx == nil {
		mactx = &Context{}
		ctx = context.WithValue(ctx, key, mactx)
	}
	return ctx, mactx
}
