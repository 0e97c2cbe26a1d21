package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/roslyn-stone/roslyn-stone/internal/compiler"
	"github.com/roslyn-stone/roslyn-stone/internal/config"
	"github.com/roslyn-stone/roslyn-stone/internal/engine"
	"github.com/roslyn-stone/roslyn-stone/internal/facade"
	"github.com/roslyn-stone/roslyn-stone/internal/logging"
	"github.com/roslyn-stone/roslyn-stone/internal/mcpserver"
	"github.com/roslyn-stone/roslyn-stone/internal/resolver"
	"github.com/roslyn-stone/roslyn-stone/internal/sandbox"
	"github.com/roslyn-stone/roslyn-stone/internal/session"
	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

var (
	serveTransport  string
	serveHTTPAddr   string
	serveDirectory  string
	serveProduction bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Roslyn-Stone MCP server",
	Long: `Start the Roslyn-Stone MCP server, exposing EvaluateCsharp, ValidateCsharp,
ResetRepl, GetReplInfo, and LoadNuGetPackage over stdio or http.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveTransport, "transport", "stdio", "Transport: stdio or http")
	serveCmd.Flags().StringVar(&serveHTTPAddr, "addr", "127.0.0.1:8084", "Listen address for http transport")
	serveCmd.Flags().StringVar(&serveDirectory, "directory", "", "Working directory for config discovery")
	serveCmd.Flags().BoolVar(&serveProduction, "production", false, "Start from ProductionPolicy instead of DevelopmentPolicy")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := getWorkDir(serveDirectory)
	if err != nil {
		return err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	runtimeCfg, err := config.Load(workDir)
	if err != nil {
		return err
	}

	basePolicy := types.DevelopmentPolicy()
	if serveProduction {
		basePolicy = types.ProductionPolicy()
	}
	policy := runtimeCfg.Policy(basePolicy)
	facade.RuntimeVersion = Version

	sessions := session.NewManager(runtimeCfg.SessionTimeout(), session.DefaultSweepInterval, policy.MaskSessionIDsInLogs)
	sessions.StartSweeping()
	defer sessions.Stop()

	comp := compiler.NewSubprocessCompiler("dotnet-script", nil, 20*time.Second)

	repo := resolver.NewHTTPRepository(runtimeCfg.PackageRepositoryURL)
	dep, err := resolver.New(repo, "net8.0", paths.PackageCachePath())
	if err != nil {
		logging.Warn().Err(err).Msg("dependency resolver unavailable; LoadNuGetPackage will fail")
		dep = nil
	}

	eng := engine.New(engine.Config{
		Sessions: sessions,
		Compiler: comp,
		Resolver: dep,
		NewSandbox: func(sessionID string) (sandbox.Sandbox, error) {
			return sandbox.NewProcessSandbox(sessionID, "dotnet-script", []string{"--interactive"})
		},
		Policy: policy,
	})

	f := facade.New(facade.Config{
		Sessions: sessions,
		Engine:   eng,
		Compiler: comp,
		Resolver: dep,
		Policy:   policy,
	})

	mcpSrv := mcpserver.NewServer(f)

	switch serveTransport {
	case "stdio":
		logging.Info().Msg("Roslyn-Stone listening on stdio")
		return server.ServeStdio(mcpSrv)
	case "http":
		return serveHTTP(mcpSrv)
	default:
		return fmt.Errorf("unknown transport %q (want stdio or http)", serveTransport)
	}
}

func serveHTTP(mcpSrv *server.MCPServer) error {
	sseServer := server.NewSSEServer(mcpSrv,
		server.WithBaseURL(fmt.Sprintf("http://%s", serveHTTPAddr)),
	)

	go func() {
		logging.Info().Str("addr", serveHTTPAddr).Msg("Roslyn-Stone listening over http")
		if err := sseServer.Start(serveHTTPAddr); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return sseServer.Shutdown(shutdownCtx)
}

func getWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
