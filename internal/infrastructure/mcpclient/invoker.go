// Package mcpclient aggregates real downstream MCP servers behind the
// domain.Invoker interface using the official MCP Go SDK.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/logging"
)

// DefaultClientName is the implementation name announced to backends.
const DefaultClientName = "mcp-gateway"

// Option configures an Invoker.
type Option func(*options)

type options struct {
	logger        *logging.Logger
	clientName    string
	clientVersion string
}

// WithLogger sets the invoker logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClientInfo overrides the name and version sent to backends during
// initialization.
func WithClientInfo(name, version string) Option {
	return func(o *options) {
		o.clientName = name
		o.clientVersion = version
	}
}

type backend struct {
	index   int
	name    string
	target  Target
	session *mcp.ClientSession
	// cancel ends the session context. Sessions outlive the dial context.
	cancel context.CancelFunc
}

// Invoker fans gateway requests out to a fixed, ordered set of backends.
// A backend's position in the set is its server index.
type Invoker struct {
	logger   *logging.Logger
	backends []*backend

	toolsChanged     domain.Emitter
	resourcesChanged domain.Emitter

	mu         sync.RWMutex
	toolIndex  map[string]int
	indexStale bool

	closeOnce sync.Once
	closeErr  error
}

var (
	_ domain.Invoker                = (*Invoker)(nil)
	_ domain.ResourceChangeNotifier = (*Invoker)(nil)
)

// Dial builds targets from configs and connects to every backend.
func Dial(ctx context.Context, configs []BackendConfig, opts ...Option) (*Invoker, error) {
	targets := make([]Target, 0, len(configs))
	for _, cfg := range configs {
		target, err := TargetFor(cfg)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return Connect(ctx, targets, opts...)
}

// Connect initializes a client session with every target in parallel. If
// any backend fails, the sessions already established are closed.
func Connect(ctx context.Context, targets []Target, opts ...Option) (*Invoker, error) {
	o := options{
		logger:        logging.NewNop(),
		clientName:    DefaultClientName,
		clientVersion: "0.1.0",
	}
	for _, opt := range opts {
		opt(&o)
	}

	inv := &Invoker{
		logger:     o.logger,
		backends:   make([]*backend, len(targets)),
		indexStale: true,
	}
	impl := &mcp.Implementation{Name: o.clientName, Version: o.clientVersion}

	g, gctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		b := &backend{index: i, name: target.Name, target: target}
		if b.name == "" {
			b.name = fmt.Sprintf("server-%d", i)
		}
		inv.backends[i] = b
		g.Go(func() error {
			session, err := inv.connect(gctx, impl, b)
			if err != nil {
				return fmt.Errorf("connect backend %s: %w", b.name, err)
			}
			b.session = session
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = inv.Close()
		return nil, err
	}

	inv.logger.Info("connected to backends", logging.Fields{"count": len(targets)})
	return inv, nil
}

func (i *Invoker) connect(ctx context.Context, impl *mcp.Implementation, b *backend) (*mcp.ClientSession, error) {
	if len(b.target.Transports) == 0 {
		return nil, errors.New("no transport configured")
	}
	logger := i.logger.With(logging.Fields{"backend": b.name, "server_index": b.index})

	clientOpts := &mcp.ClientOptions{
		ToolListChangedHandler: func(context.Context, *mcp.ToolListChangedRequest) {
			logger.Debug("backend tools changed")
			i.mu.Lock()
			i.indexStale = true
			i.mu.Unlock()
			i.toolsChanged.Fire()
		},
		ResourceListChangedHandler: func(context.Context, *mcp.ResourceListChangedRequest) {
			logger.Debug("backend resources changed")
			i.resourcesChanged.Fire()
		},
	}

	handshakeCtx, cancel := b.withTimeout(ctx)
	defer cancel()

	var errs []error
	for _, transport := range b.target.Transports {
		client := mcp.NewClient(impl, clientOpts)
		session, err := b.dial(handshakeCtx, client, transport)
		if err == nil {
			go i.monitor(logger, session)
			return session, nil
		}
		logger.Debug("transport failed", logging.Fields{"transport": fmt.Sprintf("%T", transport), "error": err})
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

type dialResult struct {
	session *mcp.ClientSession
	err     error
}

// dial connects client over transport. The go-sdk transports keep their
// streams bound to the context given to Connect, so the session runs on a
// detached context that is only cancelled by Close. handshakeCtx bounds the
// initialize exchange alone.
func (b *backend) dial(handshakeCtx context.Context, client *mcp.Client, transport mcp.Transport) (*mcp.ClientSession, error) {
	sessionCtx, cancelSession := context.WithCancel(context.WithoutCancel(handshakeCtx))

	done := make(chan dialResult, 1)
	go func() {
		session, err := client.Connect(sessionCtx, transport, nil)
		done <- dialResult{session: session, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			cancelSession()
			return nil, res.err
		}
		b.cancel = cancelSession
		return res.session, nil
	case <-handshakeCtx.Done():
		cancelSession()
		go func() {
			if res := <-done; res.session != nil {
				_ = res.session.Close()
			}
		}()
		return nil, fmt.Errorf("initialize handshake: %w", handshakeCtx.Err())
	}
}

func (i *Invoker) monitor(logger *logging.Logger, session *mcp.ClientSession) {
	if err := session.Wait(); err != nil {
		logger.Warn("backend session ended", logging.Fields{"error": err})
		return
	}
	logger.Debug("backend session ended")
}

func (b *backend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.target.Timeout > 0 {
		return context.WithTimeout(ctx, b.target.Timeout)
	}
	return ctx, func() {}
}

// Backends returns the backend names in server index order.
func (i *Invoker) Backends() []string {
	names := make([]string, len(i.backends))
	for idx, b := range i.backends {
		names[idx] = b.name
	}
	return names
}

// OnDidChangeTools registers a listener fired when any backend reports a tool
// list change.
func (i *Invoker) OnDidChangeTools(listener func()) func() {
	return i.toolsChanged.Subscribe(listener)
}

// OnDidChangeResources registers a listener fired when any backend reports a
// resource list change.
func (i *Invoker) OnDidChangeResources(listener func()) func() {
	return i.resourcesChanged.Subscribe(listener)
}

// ListTools returns the tools of every backend. When two backends expose the
// same name, the one with the lower index wins.
func (i *Invoker) ListTools(ctx context.Context) ([]shared.Tool, error) {
	perBackend := make([][]shared.Tool, len(i.backends))
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range i.backends {
		g.Go(func() error {
			tools, err := b.listTools(gctx)
			if err != nil {
				return fmt.Errorf("list tools on %s: %w", b.name, err)
			}
			perBackend[b.index] = tools
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	index := make(map[string]int)
	tools := make([]shared.Tool, 0)
	for idx, list := range perBackend {
		for _, tool := range list {
			if _, seen := index[tool.Name]; seen {
				continue
			}
			index[tool.Name] = idx
			tools = append(tools, tool)
		}
	}

	i.mu.Lock()
	i.toolIndex = index
	i.indexStale = false
	i.mu.Unlock()
	return tools, nil
}

// CallTool routes the call to the backend that exposes name.
func (i *Invoker) CallTool(ctx context.Context, name string, args map[string]interface{}) (*domain.ToolCallResult, error) {
	idx, err := i.resolveTool(ctx, name)
	if err != nil {
		return nil, err
	}
	b := i.backends[idx]

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	res, err := b.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("call tool %s on %s: %w", name, b.name, err)
	}

	var result shared.CallToolResult
	if err := convert(res, &result); err != nil {
		return nil, err
	}
	if result.Content == nil {
		result.Content = []shared.Content{}
	}
	return &domain.ToolCallResult{Result: &result, ServerIndex: idx}, nil
}

func (i *Invoker) resolveTool(ctx context.Context, name string) (int, error) {
	i.mu.RLock()
	idx, ok := i.toolIndex[name]
	stale := i.indexStale
	i.mu.RUnlock()
	if ok && !stale {
		return idx, nil
	}

	if _, err := i.ListTools(ctx); err != nil {
		return 0, err
	}
	i.mu.RLock()
	idx, ok = i.toolIndex[name]
	i.mu.RUnlock()
	if !ok {
		return 0, domain.NewToolNotFoundError(name)
	}
	return idx, nil
}

// ListResources returns one group per backend in index order.
func (i *Invoker) ListResources(ctx context.Context) ([]domain.ResourceGroup, error) {
	groups := make([]domain.ResourceGroup, len(i.backends))
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range i.backends {
		g.Go(func() error {
			resources, err := b.listResources(gctx)
			if err != nil {
				return fmt.Errorf("list resources on %s: %w", b.name, err)
			}
			groups[b.index] = domain.ResourceGroup{ServerIndex: b.index, Resources: resources}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return groups, nil
}

// ReadResource reads uri from the backend at serverIndex.
func (i *Invoker) ReadResource(ctx context.Context, serverIndex int, uri string) (*shared.ReadResourceResult, error) {
	if serverIndex < 0 || serverIndex >= len(i.backends) {
		return nil, domain.NewBackendNotFoundError(serverIndex)
	}
	b := i.backends[serverIndex]

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	res, err := b.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
	if err != nil {
		if isNotFoundError(err) {
			return nil, domain.NewResourceNotFoundError(serverIndex, uri)
		}
		return nil, fmt.Errorf("read resource %s on %s: %w", uri, b.name, err)
	}

	var result shared.ReadResourceResult
	if err := convert(res, &result); err != nil {
		return nil, err
	}
	if result.Contents == nil {
		result.Contents = []shared.ResourceContents{}
	}
	return &result, nil
}

// ListResourceTemplates returns one group per backend in index order.
func (i *Invoker) ListResourceTemplates(ctx context.Context) ([]domain.ResourceTemplateGroup, error) {
	groups := make([]domain.ResourceTemplateGroup, len(i.backends))
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range i.backends {
		g.Go(func() error {
			templates, err := b.listResourceTemplates(gctx)
			if err != nil {
				return fmt.Errorf("list resource templates on %s: %w", b.name, err)
			}
			groups[b.index] = domain.ResourceTemplateGroup{ServerIndex: b.index, Templates: templates}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return groups, nil
}

// Close closes every backend session. It is safe to call more than once.
func (i *Invoker) Close() error {
	i.closeOnce.Do(func() {
		var errs []error
		for _, b := range i.backends {
			if b == nil || b.session == nil {
				continue
			}
			if err := b.session.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close backend %s: %w", b.name, err))
			}
			if b.cancel != nil {
				b.cancel()
			}
		}
		i.closeErr = errors.Join(errs...)
	})
	return i.closeErr
}

func (b *backend) listTools(ctx context.Context) ([]shared.Tool, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	var tools []shared.Tool
	params := &mcp.ListToolsParams{}
	for {
		res, err := b.session.ListTools(ctx, params)
		if err != nil {
			if isMethodUnavailableError(err) {
				return []shared.Tool{}, nil
			}
			return nil, err
		}
		var page []shared.Tool
		if err := convert(res.Tools, &page); err != nil {
			return nil, err
		}
		tools = append(tools, page...)
		if res.NextCursor == "" {
			return tools, nil
		}
		params = &mcp.ListToolsParams{Cursor: res.NextCursor}
	}
}

func (b *backend) listResources(ctx context.Context) ([]shared.Resource, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	resources := []shared.Resource{}
	params := &mcp.ListResourcesParams{}
	for {
		res, err := b.session.ListResources(ctx, params)
		if err != nil {
			if isMethodUnavailableError(err) {
				return []shared.Resource{}, nil
			}
			return nil, err
		}
		var page []shared.Resource
		if err := convert(res.Resources, &page); err != nil {
			return nil, err
		}
		resources = append(resources, page...)
		if res.NextCursor == "" {
			return resources, nil
		}
		params = &mcp.ListResourcesParams{Cursor: res.NextCursor}
	}
}

func (b *backend) listResourceTemplates(ctx context.Context) ([]shared.ResourceTemplate, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	templates := []shared.ResourceTemplate{}
	params := &mcp.ListResourceTemplatesParams{}
	for {
		res, err := b.session.ListResourceTemplates(ctx, params)
		if err != nil {
			if isMethodUnavailableError(err) {
				return []shared.ResourceTemplate{}, nil
			}
			return nil, err
		}
		var page []shared.ResourceTemplate
		if err := convert(res.ResourceTemplates, &page); err != nil {
			return nil, err
		}
		templates = append(templates, page...)
		if res.NextCursor == "" {
			return templates, nil
		}
		params = &mcp.ListResourceTemplatesParams{Cursor: res.NextCursor}
	}
}

// convert copies an SDK value into the gateway's wire types through JSON, so
// fields the gateway does not model are dropped and the rest keep their
// protocol encoding.
func convert(src, dst interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("encode backend result: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode backend result: %w", err)
	}
	return nil
}

// isMethodUnavailableError reports whether a backend rejected a list call
// because it does not implement the capability.
func isMethodUnavailableError(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, marker := range []string{"method not found", "not implemented", "unsupported", "does not support", "unimplemented"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isNotFoundError(err error) bool {
	if err == nil || isMethodUnavailableError(err) {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}
