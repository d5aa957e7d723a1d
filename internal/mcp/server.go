package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/codectx/internal/config"
	"github.com/dshills/codectx/internal/contextcache"
	"github.com/dshills/codectx/internal/embedder"
	"github.com/dshills/codectx/internal/indexer"
	"github.com/dshills/codectx/internal/logging"
	"github.com/dshills/codectx/internal/retrieval"
	"github.com/dshills/codectx/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "codectx"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

var tracer = otel.Tracer("github.com/dshills/codectx/internal/mcp")

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	cfg       *config.Config
	cache     *contextcache.Cache
	retriever *retrieval.Orchestrator
	store     *storage.Store
	embedder  embedder.Embedder
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. MCP owns stdout, so it must write elsewhere.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithStore enables the snapshot store. The server closes it on Close.
func WithStore(st *storage.Store) Option {
	return func(s *Server) { s.store = st }
}

// NewServer creates a server from cfg. A nil cfg uses config.DefaultConfig.
// An embedder that cannot be created (for example a remote provider without
// an API key) disables semantic rerank instead of failing.
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Server{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger)

	idxOpts := []indexer.Option{indexer.WithLogger(s.logger)}
	if s.store != nil {
		idxOpts = append(idxOpts, indexer.WithSnapshotStore(s.store))
	}
	s.cache = contextcache.New(indexer.New(idxOpts...), contextcache.WithLogger(s.logger))

	var similarity retrieval.SimilarityProvider
	if cfg.Embedding.Enabled {
		emb, err := embedder.New(cfg.EmbedderConfig())
		if err != nil {
			s.logger.Warn("semantic rerank disabled", "provider", cfg.Embedding.Provider, "error", err)
		} else {
			s.embedder = emb
			similarity = embedder.NewSimilarity(emb)
		}
	}
	s.retriever = retrieval.New(s.cache, similarity,
		retrieval.WithLogger(s.logger),
		retrieval.WithSimilarityCacheSize(cfg.Retrieve.SimilarityCache))

	s.mcp = server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()
	return s, nil
}

// Cache returns the shared context cache.
func (s *Server) Cache() *contextcache.Cache {
	return s.cache
}

// Serve runs the MCP protocol on in and out until ctx is canceled or in is
// closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("mcp server listening", "name", ServerName, "version", ServerVersion)
	return stdio.Listen(ctx, in, out)
}

// Close releases the embedder and the snapshot store.
func (s *Server) Close() error {
	var firstErr error
	if s.embedder != nil {
		if err := s.embedder.Close(); err != nil {
			firstErr = err
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.instrument(ToolIndexCodebase, s.handleIndexCodebase))
	s.mcp.AddTool(retrieveContextTool(), s.instrument(ToolRetrieveContext, s.handleRetrieveContext))
	s.mcp.AddTool(traceDependenciesTool(), s.instrument(ToolTraceDependencies, s.handleTraceDependencies))
	s.mcp.AddTool(detectCyclesTool(), s.instrument(ToolDetectCycles, s.handleDetectCycles))
	s.mcp.AddTool(findDeadCodeTool(), s.instrument(ToolFindDeadCode, s.handleFindDeadCode))
	s.mcp.AddTool(blastRadiusTool(), s.instrument(ToolBlastRadius, s.handleBlastRadius))
	s.mcp.AddTool(contextStatusTool(), s.instrument(ToolContextStatus, s.handleContextStatus))
	s.mcp.AddTool(invalidateContextTool(), s.instrument(ToolInvalidateContext, s.handleInvalidateContext))
}

// instrument wraps a handler with a span and a debug log line.
func (s *Server) instrument(name string, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := tracer.Start(ctx, "mcp.tool."+name,
			trace.WithAttributes(attribute.String("tool", name)))
		defer span.End()

		start := time.Now()
		result, err := h(ctx, request)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "tool failed")
			s.logger.Warn("tool failed", "tool", name, "error", err, "duration", time.Since(start))
			return nil, err
		}
		s.logger.Debug("tool completed", "tool", name, "duration", time.Since(start))
		return result, nil
	}
}
