// meterprobe reads the bench meters once, for checking the RS485 wiring
// without starting the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bryanwahyu/qa-scanlog/internal/config"
	"github.com/bryanwahyu/qa-scanlog/internal/infra/meter"
	"github.com/bryanwahyu/qa-scanlog/internal/logging"
)

func main() {
	path := flag.String("config", "config.yaml", "config file")
	port := flag.String("port", "", "serial port, overrides the config")
	count := flag.Int("n", 1, "number of readings")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Meter.Port = *port
		cfg.Meter.Mode = config.MeterModbus
	}
	log := logging.New(cfg.Log.Level, true)
	m := meter.New(cfg.Meter, log)

	enc := json.NewEncoder(os.Stdout)
	failed := false
	for i := 0; i < *count; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		r, err := m.Read(ctx)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("port", cfg.Meter.Port).Msg("read failed")
			failed = true
		} else {
			_ = enc.Encode(r)
		}
		if i+1 < *count {
			time.Sleep(time.Second)
		}
	}
	if failed {
		os.Exit(1)
	}
}
