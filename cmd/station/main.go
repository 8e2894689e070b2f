package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/qa-scanlog/internal/config"
	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
	"github.com/bryanwahyu/qa-scanlog/internal/logging"
	"github.com/bryanwahyu/qa-scanlog/internal/station"
)

const usage = `commands:
  /undo                     remove the last scan
  /voice OK|NA              set voice recognition
  /date YYYY-MM-DD          show another day
  /export START END [NAME]  download an xlsx report into the current dir
  /theme                    toggle dark mode
  /resync                   reload the log from the server
  /cancel                   close the failure code prompt
anything else is a QR code; press Enter twice to submit`

func main() {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := station.NewClient(cfg.Station.ServerURL, cfg.Station.GetRequestTimeout())
	view := newTerminalView(os.Stdout)
	ctrl := station.NewController(client, view,
		station.WithPrefs(station.PrefsStore{Path: cfg.Station.PrefsPath}),
		station.WithLogger(log),
	)

	sub := &station.Subscriber{
		URL: client.PushURL(),
		OnScan: func(ev domain.NewScanEvent) {
			ctrl.OnPushedScan(ev.Scan)
		},
		OnConnect: func() {
			if err := ctrl.Resync(ctx); err != nil {
				log.Warn().Err(err).Msg("resync after connect")
			}
		},
		Log: log.With().Str("component", "push").Logger(),
	}
	go func() {
		if err := sub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("push feed stopped")
		}
	}()

	fmt.Println(usage)
	view.FocusInput()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			handleLine(ctx, ctrl, line, log)
		}
	}
}

// handleLine maps one terminal line onto controller events. A scanner
// types the code and the first Enter; an empty line is the confirming Enter.
func handleLine(ctx context.Context, ctrl *station.Controller, line string, log zerolog.Logger) {
	line = strings.TrimRight(line, "\r")

	if strings.HasPrefix(line, "/") {
		runCommand(ctx, ctrl, line, log)
		return
	}

	if ctrl.Pending() != nil {
		fields := strings.Fields(line)
		switch len(fields) {
		case 0:
			// prompt stays open
		case 1:
			_ = ctrl.OnFailureCodeCaptured(ctx, fields[0])
		default:
			_ = ctrl.OnFailureCodeAndResultCaptured(ctx, fields[0], strings.Join(fields[1:], " "))
		}
		return
	}

	field := ctrl.Field()
	if line != "" {
		field = line
		_, _ = ctrl.OnKeyEvent(ctx, station.KeyOther, field)
	}
	_, _ = ctrl.OnKeyEvent(ctx, station.KeyEnter, field)
}

func runCommand(ctx context.Context, ctrl *station.Controller, line string, log zerolog.Logger) {
	args := strings.Fields(line)
	var err error
	switch args[0] {
	case "/undo":
		err = ctrl.Undo(ctx)
	case "/voice":
		if len(args) < 2 {
			fmt.Println("usage: /voice OK|NA")
			return
		}
		err = ctrl.SetVoiceRecognition(ctx, strings.ToUpper(args[1]))
	case "/date":
		if len(args) < 2 {
			fmt.Println("usage: /date YYYY-MM-DD")
			return
		}
		err = ctrl.FilterDate(ctx, args[1])
	case "/export":
		if len(args) < 3 {
			fmt.Println("usage: /export START END [NAME]")
			return
		}
		name := ""
		if len(args) > 3 {
			name = args[3]
		}
		var file string
		if file, err = ctrl.DownloadExport(ctx, args[1], args[2], name, "."); err == nil {
			fmt.Println("saved", file)
		}
	case "/theme":
		err = ctrl.ToggleTheme()
	case "/resync":
		err = ctrl.Resync(ctx)
	case "/cancel":
		ctrl.CancelCapture()
	default:
		fmt.Println(usage)
	}
	if err != nil {
		log.Debug().Err(err).Str("command", args[0]).Msg("command failed")
	}
}
