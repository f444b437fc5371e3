package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/loykin/trailtail"
)

const bannerTitle = "CloudTrail Live Tail"

// accountSource is a tail source that can describe the account it reads.
type accountSource interface {
	trailtail.Source
	String() string
}

type sourceLoader func(ctx context.Context, opts trailtail.CloudTrailOptions) (accountSource, error)

// command carries the process wiring so tests can swap the output streams
// and the CloudTrail client.
type command struct {
	stdout     io.Writer
	stderr     io.Writer
	loadSource sourceLoader
}

func newCommand(stdout, stderr io.Writer) command {
	return command{stdout: stdout, stderr: stderr, loadSource: loadCloudTrail}
}

func loadCloudTrail(ctx context.Context, opts trailtail.CloudTrailOptions) (accountSource, error) {
	s, err := trailtail.NewCloudTrailSource(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Tail loads the configuration, wires source, archive and status server, and
// runs the loop until ctx ends. Cancellation is a clean stop.
func (c command) Tail(ctx context.Context, configPath string, fs *pflag.FlagSet) error {
	v := trailtail.NewConfigViper()
	if err := bindFlags(v, fs); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	cfg, err := trailtail.LoadConfig(v, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("apply env: %w", err)
	}

	log, closer := trailtail.SetupLogger(cfg, c.stderr)
	defer func() { _ = closer.Close() }()

	srcOpts := cfg.SourceOptions()
	srcOpts.Logger = log
	src, err := c.loadSource(ctx, srcOpts)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	dsns, err := cfg.ArchiveDSNs()
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	archive, err := trailtail.NewArchive(dsns)
	if err != nil {
		return err
	}
	defer func() {
		if err := trailtail.CloseArchive(archive); err != nil {
			log.Warn("close archive", "err", err)
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	opts := cfg.TailOptions()
	opts.Archive = archive
	opts.Logger = log
	if !cfg.Tail.NoBanner {
		opts.Title = bannerTitle
		opts.Details = []string{"Account: " + src.String()}
	}
	t := trailtail.NewTail(src, c.stdout, opts,
		trailtail.WithColumns(cfg.RenderColumns()), trailtail.WithLocation(loc))

	if cfg.Server.Listen != "" {
		if err := trailtail.RegisterMetricsDefault(); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		srv, err := trailtail.NewStatusServer(cfg.Server.Listen, "", t, log)
		if err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		defer shutdown(srv, log)
	}

	if err := t.Run(ctx); err != nil {
		return err
	}
	return t.Stopped()
}

func shutdown(srv *trailtail.StatusServer, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("status server shutdown", "err", err)
	}
}
