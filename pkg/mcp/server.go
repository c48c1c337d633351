package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"content-loader/pkg/config"
	"content-loader/pkg/content"
	"content-loader/pkg/orchestrate"
)

const (
	serverName    = "content-loader"
	serverVersion = "0.3.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
}

// Server exposes configured collections as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager

	// Built once at startup; a collection with an invalid config keeps its error
	loaders    map[string]*content.Loader
	loaderErrs map[string]error
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	s := &Server{
		mcpServer:  server.NewMCPServer(serverName, serverVersion, server.WithLogging()),
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "mcp"),
		jobManager: NewJobManager(),
		loaders:    make(map[string]*content.Loader),
		loaderErrs: make(map[string]error),
	}

	for _, key := range orchestrate.GetAllCollectionKeys(cfg.AppConfig) {
		colCfg := cfg.AppConfig.Collections[key]
		if _, err := colCfg.Validate(); err != nil {
			s.log.Warnf("Collection '%s' is unavailable: %v", key, err)
			s.loaderErrs[key] = err
			continue
		}
		loader, err := content.NewLoader(colCfg.LoaderConfig(), s.log.WithField("collection", key))
		if err != nil {
			s.log.Warnf("Collection '%s' is unavailable: %v", key, err)
			s.loaderErrs[key] = err
			continue
		}
		s.loaders[key] = loader
	}

	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	collectionParam := mcp.WithString("collection",
		mcp.Required(),
		mcp.Description("Collection key from the config file (see list_collections)"),
	)

	s.mcpServer.AddTool(mcp.NewTool("list_collections",
		mcp.WithDescription("List all configured content collections"),
	), s.handleListCollections)

	s.mcpServer.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List the slugs of all published pages in a collection"),
		collectionParam,
		mcp.WithString("dir",
			mcp.Description("Only list pages below this directory, relative to the content root"),
		),
	), s.handleListPages)

	s.mcpServer.AddTool(mcp.NewTool("get_page",
		mcp.WithDescription("Load a page by slug: front-matter, markdown body and table of contents"),
		collectionParam,
		mcp.WithString("slug",
			mcp.Required(),
			mcp.Description("Page slug, e.g. '/roadmap/merge'"),
		),
	), s.handleGetPage)

	s.mcpServer.AddTool(mcp.NewTool("get_toc",
		mcp.WithDescription("Return the table of contents of a page"),
		collectionParam,
		mcp.WithString("slug",
			mcp.Required(),
			mcp.Description("Page slug, e.g. '/roadmap/merge'"),
		),
		mcp.WithNumber("min_depth",
			mcp.Description("Shallowest heading level to include (default from config)"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Deepest heading level to include (default from config)"),
		),
		mcp.WithBoolean("flat",
			mcp.Description("Return a flat list in document order instead of a tree"),
		),
	), s.handleGetTOC)

	s.mcpServer.AddTool(mcp.NewTool("search_pages",
		mcp.WithDescription("Search published pages by title, headings and body text"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query (case-insensitive substring match)"),
		),
		mcp.WithString("collection",
			mcp.Description("Limit search to one collection (optional)"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of results to return (default: 10, max: 100)"),
		),
	), s.handleSearchPages)

	s.mcpServer.AddTool(mcp.NewTool("build_collection",
		mcp.WithDescription("Start a background export of a collection. Returns immediately with a job ID."),
		collectionParam,
		mcp.WithBoolean("incremental",
			mcp.Description("Skip pages whose content is unchanged since the last build"),
		),
	), s.handleBuildCollection)

	s.mcpServer.AddTool(mcp.NewTool("get_build_status",
		mcp.WithDescription("Get the status of a build job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by build_collection"),
		),
	), s.handleGetBuildStatus)

	s.log.Debug("Registered MCP tools")
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		return server.NewSSEServer(s.mcpServer).Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running build jobs
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return nil
}
