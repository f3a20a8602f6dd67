package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vectorstack/internal/adapter/emulator"
)

var (
	emulatorAddr       string
	emulatorDelay      time.Duration
	emulatorRequireKey string
)

var emulatorCmd = &cobra.Command{
	Use:   "emulator",
	Short: "Run an in-memory PreciseSearch emulator",
	Long: `Serve the PreciseSearch and embeddings APIs from memory for local
development and tests. Point the client at it with:

  api:
    base_url: http://127.0.0.1:8765/precise_search/
    embeddings_url: http://127.0.0.1:8765/embeddings

Prometheus metrics are served on /metrics.`,
	Args: cobra.NoArgs,
	RunE: runEmulator,
}

func init() {
	rootCmd.AddCommand(emulatorCmd)
	emulatorCmd.Flags().StringVar(&emulatorAddr, "addr", "", "listen address (default from config)")
	emulatorCmd.Flags().DurationVar(&emulatorDelay, "transition-delay", -1, "time an index spends initializing, optimizing or deleting (default from config)")
	emulatorCmd.Flags().StringVar(&emulatorRequireKey, "require-key", "", "reject requests without this API key")
}

func runEmulator(cmd *cobra.Command, args []string) error {
	addr := emulatorAddr
	if addr == "" {
		addr = cfg.Emulator.Addr
	}
	delay := cfg.Emulator.TransitionDelay
	if emulatorDelay >= 0 {
		delay = emulatorDelay
	}

	em := emulator.New(emulator.Options{
		TransitionDelay: delay,
		Models:          cfg.Emulator.Models,
		APIKey:          emulatorRequireKey,
		Logger:          logger,
	})
	defer em.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- em.Start(addr)
	}()
	logger.Info("emulator listening",
		zap.String("addr", addr),
		zap.Duration("transition_delay", delay),
	)
	fmt.Printf("Emulator listening on http://%s\n", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-cmd.Context().Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return em.Stop(ctx)
}
