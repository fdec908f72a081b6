// Command graphragd runs the GraphRAG service: an HTTP server for querying
// and the SSE event stream, plus one-shot index/ingest subcommands for cron
// or manual operation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	graphrag "github.com/siherrmann/graphrag"
	"github.com/siherrmann/graphrag/config"
	"github.com/siherrmann/graphrag/ingest"
	"github.com/siherrmann/graphrag/model"
	"github.com/siherrmann/graphrag/orchestrator"
)

const shutdownGrace = 10 * time.Second

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	root := &cobra.Command{
		Use:   "graphragd",
		Short: "GraphRAG ingestion and retrieval service",
	}

	root.AddCommand(serveCmd(), ingestCmd(), indexCmd())

	if err := root.Execute(); err != nil {
		color.Red("graphragd: %v", err)
		os.Exit(1)
	}
}

func loadService(ctx context.Context) (*graphrag.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return graphrag.New(ctx, cfg)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API and SSE event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := loadService(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			mux := http.NewServeMux()
			mux.HandleFunc("GET /events", func(w http.ResponseWriter, r *http.Request) {
				svc.Bus.ServeHTTP(w, r)
			})
			mux.HandleFunc("POST /query", func(w http.ResponseWriter, r *http.Request) {
				var cfg model.QueryConfig
				if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				result, err := svc.Query(r.Context(), cfg)
				if err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
					return
				}
				writeJSON(w, result)
			})
			mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			srv := &http.Server{Addr: svc.Config.HTTPAddr, Handler: accessLog(mux)}
			color.Green("graphragd listening on %s", svc.Config.HTTPAddr)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			}
		},
	}
}

func ingestCmd() *cobra.Command {
	var (
		docID     string
		namespace string
		path      string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "ingest a single document from a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if docID == "" || path == "" {
				return fmt.Errorf("--doc-id and --file are required")
			}
			text, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			svc, err := loadService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			ns := namespace
			if ns == "" {
				ns = svc.Config.DefaultNamespace
			}

			result, err := svc.IngestDocument(cmd.Context(), docID, string(text), ingest.Options{Namespace: ns, ComputeLayout: true})
			if err != nil {
				return err
			}
			writeJSON(os.Stdout, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&docID, "doc-id", "", "document ID")
	cmd.Flags().StringVar(&namespace, "namespace", "", "namespace (defaults to config's DEFAULT_NAMESPACE)")
	cmd.Flags().StringVar(&path, "file", "", "path to the document text")
	return cmd
}

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "drive the index orchestrator",
	}
	cmd.AddCommand(indexRunCmd(), indexStatusCmd())
	return cmd
}

func indexRunCmd() *cobra.Command {
	var (
		namespace string
		force     bool
		dryRun    bool
		keep      int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run one index orchestration pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			ns := namespace
			if ns == "" {
				ns = svc.Config.DefaultNamespace
			}

			result := svc.RunIndex(cmd.Context(), ns, orchestrator.Options{Force: force, DryRun: dryRun, Keep: keep})
			writeJSON(os.Stdout, result)
			if result.Status == orchestrator.StatusFailed {
				return fmt.Errorf("index run failed: %s", result.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "namespace (defaults to config's DEFAULT_NAMESPACE)")
	cmd.Flags().BoolVar(&force, "force", false, "run even if the lock is held or no documents are stale")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan the run without writing artifacts")
	cmd.Flags().IntVar(&keep, "keep", 5, "number of prior runs to retain on disk")
	return cmd
}

func indexStatusCmd() *cobra.Command {
	var namespace string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "report index staleness for a namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			ns := namespace
			if ns == "" {
				ns = svc.Config.DefaultNamespace
			}

			result := svc.RunIndex(cmd.Context(), ns, orchestrator.Options{DryRun: true})
			if result.StaleDocs > 0 {
				color.Yellow("%d/%d documents stale in %q", result.StaleDocs, result.TotalDocs, ns)
			} else {
				color.Green("namespace %q is fully indexed (%d documents)", ns, result.TotalDocs)
			}
			writeJSON(os.Stdout, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "namespace (defaults to config's DEFAULT_NAMESPACE)")
	return cmd
}

// accessLog wraps h with a zerolog request log line recording method, path,
// status, and latency, the teacher's logging idiom of favoring one
// structured line per request over ad-hoc fmt.Printf calls.
func accessLog(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(sw, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("latency", time.Since(start)).
			Msg("http request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
