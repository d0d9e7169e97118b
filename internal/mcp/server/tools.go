package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/malbeclabs/mcp-dbgateway/internal/metrics"
)

const (
	ToolListDatabases  = "list_databases"
	ToolListTables     = "list_tables"
	ToolRunSelectQuery = "run_select_query"
)

type ListDatabasesInput struct{}

type ListTablesInput struct {
	Database string `json:"database" jsonschema:"name of the database to list tables from"`
	Like     string `json:"like,omitempty" jsonschema:"optional LIKE pattern to filter table names; omit or pass an empty string to list all tables"`
}

type RunSelectQueryInput struct {
	Query string `json:"query" jsonschema:"the SELECT query to run"`
}

// ToolName returns the registered name of a tool, including the configured prefix.
func (s *Server) ToolName(name string) string {
	return s.cfg.ToolPrefix + name
}

func (s *Server) registerTools() error {
	listDatabasesSchema, err := jsonschema.For[ListDatabasesInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create list databases input schema: %w", err)
	}
	listTablesSchema, err := jsonschema.For[ListTablesInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create list tables input schema: %w", err)
	}
	runSelectQuerySchema, err := jsonschema.For[RunSelectQueryInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create run select query input schema: %w", err)
	}

	desc := s.cfg.DBDescription

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        s.ToolName(ToolListDatabases),
		Description: fmt.Sprintf("List all databases in %s", desc),
		InputSchema: listDatabasesSchema,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ ListDatabasesInput) (*mcp.CallToolResult, any, error) {
		return s.observe(ToolListDatabases, func() *mcp.CallToolResult {
			return s.handleListDatabases(ctx)
		}), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: s.ToolName(ToolListTables),
		Description: fmt.Sprintf(`List all tables in %s for a given database name and their schema.
Also returns a list of columns and the CREATE TABLE query for each table.
Specify 'like' parameter to filter tables by name.
Omit the 'like' parameter or pass empty string to list all tables in the database.`, desc),
		InputSchema: listTablesSchema,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ListTablesInput) (*mcp.CallToolResult, any, error) {
		return s.observe(ToolListTables, func() *mcp.CallToolResult {
			return s.handleListTables(ctx, in)
		}), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        s.ToolName(ToolRunSelectQuery),
		Description: fmt.Sprintf("Run a SELECT query on the %s", desc),
		InputSchema: runSelectQuerySchema,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in RunSelectQueryInput) (*mcp.CallToolResult, any, error) {
		return s.observe(ToolRunSelectQuery, func() *mcp.CallToolResult {
			return s.handleRunSelectQuery(ctx, in)
		}), nil, nil
	})

	return nil
}

func (s *Server) handleListDatabases(ctx context.Context) *mcp.CallToolResult {
	s.log.Info("mcp/tool: listing all databases")
	names, err := s.cfg.Gateway.ListDatabases(ctx)
	if err != nil {
		s.log.Error("mcp/tool: error listing databases", "error", err)
		return errorResult(err.Error())
	}
	return jsonResult(names)
}

func (s *Server) handleListTables(ctx context.Context, in ListTablesInput) *mcp.CallToolResult {
	s.log.Info("mcp/tool: listing tables", "database", in.Database, "like", in.Like)
	tables, err := s.cfg.Gateway.ListTables(ctx, in.Database, in.Like)
	if err != nil {
		s.log.Error("mcp/tool: error listing tables", "database", in.Database, "error", err)
		return errorResult(err.Error())
	}
	return jsonResult(tables)
}

func (s *Server) handleRunSelectQuery(ctx context.Context, in RunSelectQueryInput) *mcp.CallToolResult {
	s.log.Debug("mcp/tool: handling query", "query", in.Query)
	rows, err := s.cfg.Gateway.RunSelectQuery(ctx, in.Query)
	if err != nil {
		s.log.Error("mcp/tool: error executing query", "error", err)
		return errorResult(fmt.Sprintf("error running query: %v", err))
	}
	return jsonResult(rows)
}

// observe runs a tool handler and records its outcome and duration.
func (s *Server) observe(tool string, fn func() *mcp.CallToolResult) *mcp.CallToolResult {
	startTime := s.clock.Now()
	res := fn()
	duration := s.clock.Since(startTime).Seconds()

	status := "success"
	if res.IsError {
		status = "error"
	}
	metrics.ToolCallsTotal.WithLabelValues(tool, status).Inc()
	metrics.ToolCallDuration.WithLabelValues(tool).Observe(duration)
	return res
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to encode result: %v", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

// errorResult is the {"error": message} payload every tool failure produces.
func errorResult(msg string) *mcp.CallToolResult {
	data, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		data = []byte(`{"error":"failed to encode error"}`)
	}
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
