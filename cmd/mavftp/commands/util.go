package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/patrickelectric/mavftp-cli/internal/logger"
	"github.com/patrickelectric/mavftp-cli/internal/protocol/ftp"
	"github.com/patrickelectric/mavftp-cli/pkg/config"
	"github.com/patrickelectric/mavftp-cli/pkg/transport"
)

// loadConfig loads the configuration, applies global flag overrides and
// initializes the logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if target != "" {
		cfg.Target = target
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	if verbose {
		cfg.Logging.Level = "DEBUG"
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// connect dials the vehicle link and resets any leftover session state from
// a previous, possibly desynchronized client run. The caller owns the
// returned client and must Close it.
func connect(ctx context.Context, cfg *config.Config, progress func(transferred, total uint64)) (*ftp.Client, error) {
	conn, err := transport.Dial(cfg.Target, transport.Options{
		SystemID:        cfg.SystemID,
		ComponentID:     cfg.ComponentID,
		TargetNetwork:   cfg.TargetNetwork,
		TargetSystem:    cfg.TargetSystem,
		TargetComponent: cfg.TargetComponent,
	})
	if err != nil {
		return nil, err
	}

	client := ftp.New(conn, ftp.Config{
		Timeout:           cfg.Timeout,
		MaxRetries:        cfg.MaxRetries,
		ChunkSize:         int(cfg.ChunkSize),
		BurstTimeout:      cfg.BurstTimeout,
		BurstGapTolerance: cfg.BurstGapTolerance,
		Progress:          progress,
	})

	if err := client.ResetSessions(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("vehicle did not respond on %s: %w", cfg.Target, err)
	}
	return client, nil
}

// consoleProgress renders transfer progress on stderr, overwriting the
// same line.
func consoleProgress(transferred, total uint64) {
	if total > 0 {
		fmt.Fprintf(os.Stderr, "\r%d/%d bytes (%d%%)", transferred, total, transferred*100/total)
	} else {
		fmt.Fprintf(os.Stderr, "\r%d bytes", transferred)
	}
}

// finishProgress terminates the progress line.
func finishProgress() {
	fmt.Fprintln(os.Stderr)
}
