// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// lithiumhome runs the device-control daemon for an observatory rig: a
// telescope mount, cameras, filter wheels and focusers, each driven through
// devicecore.Core, broadcast over the network via devicecore/broadcast and
// discoverable with cmd/lithiumhome-console.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"periph.io/x/host/v3"

	"periph.io/x/lithiumhome/internal/config"
)

// autoCancellingContext returns a global context that is canceled if SIGTERM
// / SIGINT is received or if the executable file or the config file is
// modified, so a supervisor (systemd, in install.go's case) can restart the
// process cleanly after a deploy.
func autoCancellingContext(cfg string) (context.Context, func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	chanSignal := make(chan os.Signal, 1)
	go func() {
		<-chanSignal
		cancel()
	}()
	signal.Notify(chanSignal, os.Interrupt, syscall.SIGTERM)

	exe, err := os.Executable()
	if err != nil {
		return ctx, cancel, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return ctx, cancel, err
	}

	lookup := map[string]time.Time{}
	for _, n := range []string{exe, cfg} {
		fi, err2 := os.Stat(n)
		if err2 != nil {
			_ = watcher.Close()
			return ctx, cancel, err2
		}
		if err2 = watcher.Add(n); err2 != nil {
			_ = watcher.Close()
			return ctx, cancel, err2
		}
		mod := fi.ModTime()
		lookup[n] = mod
		log.Printf("watching: %s @ %s", n, mod)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case err2 := <-watcher.Errors:
				log.Printf("got error while watching for file changes, exiting: %s", err2)
				cancel()
				return
			case e := <-watcher.Events:
				log.Printf("got file event %s", e.Name)
				if fi2, err2 := os.Stat(e.Name); err2 != nil {
					log.Printf("file %s doesn't exist anymore, ignoring", e.Name)
				} else if mod := fi2.ModTime(); !mod.Equal(lookup[e.Name]) {
					log.Printf("file %s was modified, exiting.", e.Name)
					cancel()
					return
				} else {
					log.Printf("file %s not modified", e.Name)
				}
			}
		}
	}()
	return ctx, cancel, nil
}

func mainImpl() error {
	if _, err := host.Init(); err != nil {
		return err
	}

	flag.Usage = func() {
		o := flag.CommandLine.Output()
		fmt.Fprintf(o, "usage: %s <config.yaml> <command>\n", os.Args[0])
		fmt.Fprintf(o, "\nCommands are:\n")
		fmt.Fprintf(o, "  install  Install the daemon to run on boot\n")
		fmt.Fprintf(o, "  run      Run the daemon\n")
		fmt.Fprintf(o, "\n")
		flag.PrintDefaults()
	}
	cpuprofile := flag.String("cpuprofile", "", "dump CPU profile in file")
	flag.Parse()
	if flag.NArg() != 2 {
		return errors.New("expect 2 arguments. Use -help for more information")
	}
	configFile := flag.Arg(0)
	cmd := flag.Arg(1)

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return err
		}
		if err = pprof.StartCPUProfile(f); err == nil {
			defer pprof.StopCPUProfile()
		}
	}

	configFile, err := filepath.Abs(configFile)
	if err != nil {
		return err
	}

	ctx, cancel, err := autoCancellingContext(configFile)
	defer cancel()
	if err != nil {
		return err
	}

	/* #nosec G304 */
	b, err := ioutil.ReadFile(configFile)
	if err != nil {
		return err
	}

	cfg := config.Root{}
	if err := cfg.LoadYaml(b); err != nil {
		return err
	}

	switch cmd {
	case "install":
		return install(configFile)
	case "run":
		return run(ctx, &cfg)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "lithiumhome: %s.\n", err)
		os.Exit(1)
	}
}
