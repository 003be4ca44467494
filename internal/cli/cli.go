// Package cli provides the openapi-mcp command line interface.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/mark3labs/mcp-go/server"
	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/openapi-mcp/openapi-mcp/internal/config"
	"github.com/openapi-mcp/openapi-mcp/internal/mapping"
	"github.com/openapi-mcp/openapi-mcp/internal/mcpserver"
	"github.com/openapi-mcp/openapi-mcp/internal/spec"
)

var (
	rootCmd = &cobra.Command{
		Use:   "openapi-mcp",
		Short: "Expose an OpenAPI-described REST API as an MCP server",
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Map an OpenAPI specification and serve it over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			specPath, _ := cmd.Flags().GetString("spec")
			configPath, _ := cmd.Flags().GetString("config")
			baseURL, _ := cmd.Flags().GetString("base-url")
			prefix, _ := cmd.Flags().GetString("prefix")
			useV2, _ := cmd.Flags().GetBool("v2")

			return serve(specPath, configPath, baseURL, prefix, useV2)
		},
	}

	validateCmd = &cobra.Command{
		Use:   "validate [spec]",
		Short: "Validate an OpenAPI specification and its derived mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			useV2, _ := cmd.Flags().GetBool("v2")
			return validate(args[0], useV2)
		},
	}

	inspectCmd = &cobra.Command{
		Use:   "inspect [spec]",
		Short: "Print the mapping table derived from an OpenAPI specification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dump, _ := cmd.Flags().GetBool("dump")
			useV2, _ := cmd.Flags().GetBool("v2")
			return inspect(args[0], configPath, dump, useV2)
		},
	}
)

func init() {
	serveCmd.Flags().String("spec", "", "Path or URL of the OpenAPI specification (required)")
	serveCmd.Flags().String("config", "openapi-mcp.toml", "Path to the TOML configuration file")
	serveCmd.Flags().String("base-url", "", "Upstream API base URL (overrides config and spec servers)")
	serveCmd.Flags().String("prefix", "", "Prefix for tool and resource names")
	serveCmd.Flags().Bool("v2", false, "Treat the specification as OpenAPI 2.0")
	_ = serveCmd.MarkFlagRequired("spec")

	validateCmd.Flags().Bool("v2", false, "Treat the specification as OpenAPI 2.0")

	inspectCmd.Flags().String("config", "", "Path to the TOML configuration file")
	inspectCmd.Flags().Bool("dump", false, "Dump the full mapping table structure")
	inspectCmd.Flags().Bool("v2", false, "Treat the specification as OpenAPI 2.0")

	rootCmd.AddCommand(serveCmd, validateCmd, inspectCmd)
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func serve(specPath, configPath, baseURL, prefix string, useV2 bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg.Logging.Level)

	doc, err := loadDocument(specPath, useV2)
	if err != nil {
		return err
	}
	applyOverrides(doc, cfg.Operations)

	table, err := mapping.Build(doc)
	if err != nil {
		return fmt.Errorf("mapping failed: %w", err)
	}

	opts := mcpserver.Options{
		Name:    firstNonEmpty(cfg.Server.Name, doc.Title),
		Version: firstNonEmpty(cfg.Server.Version, doc.Version),
		BaseURL: firstNonEmpty(baseURL, cfg.Server.BaseURL, firstServer(doc)),
		Prefix:  firstNonEmpty(prefix, cfg.Server.ToolPrefix),
		Auth: mcpserver.Auth{
			BearerToken:  cfg.Auth.BearerToken,
			Username:     cfg.Auth.Username,
			Password:     cfg.Auth.Password,
			APIKeyHeader: cfg.Auth.APIKeyHeader,
			APIKey:       cfg.Auth.APIKey,
		},
	}
	if opts.BaseURL == "" {
		return fmt.Errorf("no upstream base URL: the specification declares no servers, pass --base-url")
	}

	s, err := mcpserver.New(table, opts)
	if err != nil {
		return err
	}

	log.Info().Str("spec", specPath).Str("base_url", opts.BaseURL).Msg("serving over stdio")
	return server.ServeStdio(s)
}

func validate(specPath string, useV2 bool) error {
	setupLogging("warn")

	doc, err := loadDocument(specPath, useV2)
	if err != nil {
		color.Red("invalid: %v", err)
		return err
	}

	table, err := mapping.Build(doc)
	if err != nil {
		color.Red("invalid: %v", err)
		return err
	}

	color.Green("valid: %d operations map to %d tools and %d resources",
		len(doc.Operations), len(table.Tools()), len(table.Resources()))
	return nil
}

func inspect(specPath, configPath string, dump, useV2 bool) error {
	setupLogging("warn")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	doc, err := loadDocument(specPath, useV2)
	if err != nil {
		return err
	}
	applyOverrides(doc, cfg.Operations)

	table, err := mapping.Build(doc)
	if err != nil {
		return fmt.Errorf("mapping failed: %w", err)
	}

	if dump {
		spew.Dump(table)
		return nil
	}

	for _, entry := range table.Entries {
		switch e := entry.(type) {
		case *mapping.Resource:
			fmt.Printf("resource %-30s %s -> %s\n", e.Name, e.URITemplate, e.Returns)
		case *mapping.Tool:
			params := make([]string, 0, len(e.Signature))
			for _, p := range e.Signature {
				req := "optional"
				if p.Required {
					req = "required"
				}
				params = append(params, fmt.Sprintf("%s: %s (%s)", p.Name, p.Type, req))
			}
			fmt.Printf("tool     %-30s [%s] -> %s\n", e.Name, strings.Join(params, ", "), e.Returns)
		}
	}
	return nil
}

// loadDocument loads the specification from a file or URL and extracts the
// mapping input graph.
func loadDocument(specPath string, useV2 bool) (*mapping.Document, error) {
	parser := spec.NewParser()

	var err error
	switch {
	case strings.HasPrefix(specPath, "http://"), strings.HasPrefix(specPath, "https://"):
		err = parser.ParseURL(specPath)
	case useV2:
		err = parser.ParseFileV2(specPath)
	default:
		err = parser.ParseFile(specPath)
	}
	if err != nil {
		return nil, err
	}

	return parser.Document()
}

// applyOverrides folds config-file operation overrides into the document
// before the mapping run.
func applyOverrides(doc *mapping.Document, overrides map[string]config.OperationOverride) {
	if len(overrides) == 0 {
		return
	}
	for _, op := range doc.Operations {
		override, ok := overrides[op.ID]
		if !ok {
			continue
		}
		switch override.Kind {
		case "resource":
			op.Hint = mapping.HintResource
		case "tool":
			op.Hint = mapping.HintTool
		}
		if override.Name != "" {
			op.NameOverride = override.Name
		}
	}
}

// setupLogging directs structured logs to stderr; stdout is the MCP
// transport.
func setupLogging(level string) {
	log.DefaultLogger = log.Logger{
		Level:  log.ParseLevel(level),
		Writer: &log.ConsoleWriter{Writer: os.Stderr},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstServer(doc *mapping.Document) string {
	if len(doc.Servers) > 0 {
		return doc.Servers[0]
	}
	return ""
}
