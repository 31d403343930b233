package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

// serveCommand creates the serve command for previewing build outputs.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the build directory over HTTP for preview",
		Long: `Serve exposes the build directory on a local HTTP server so rendered
images, PDF documents and archives can be inspected in a browser while
iterating on models.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8473", "listen address")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string) error {
	logger := loggerFromContext(ctx)

	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	dir := filepath.Join(root, cfg.Build.Dir)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		printWarning("Build directory %s does not exist yet", cfg.Build.Dir)
		printNextStep("Build something first", "printforge build")
		return nil
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  chiLogger{logger.Debugf},
		NoColor: true,
	}))
	r.Handle("/*", http.StripPrefix("/", http.FileServer(http.Dir(dir))))

	srv := &http.Server{Addr: addr, Handler: r}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	printInfo("Serving %s", dir)
	printNextStep("Open", "http://"+addr+"/")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// chiLogger adapts the structured logger to chi's request log interface.
type chiLogger struct {
	printf func(format string, args ...any)
}

func (l chiLogger) Print(v ...any) {
	l.printf("%s", fmt.Sprint(v...))
}
