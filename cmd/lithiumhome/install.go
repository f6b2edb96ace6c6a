// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"os/exec"
	"runtime"
)

func install(config string) error {
	if _, err := os.Stat("/run/systemd/system"); err == nil {
		return setupSystemd(config)
	}
	return fmt.Errorf("please send a PR to implement me on %s", runtime.GOOS)
}

const systemdConfig = `
# See https://periph.io/x/lithiumhome
[Unit]
Description=Runs lithiumhome automatically upon boot
Wants=network-online.target
After=network-online.target

[Service]
User={{.User}}
Group={{.Group}}
KillMode=mixed
Restart=always
TimeoutStopSec=20s
ExecStart={{.Command}}
Environment=GOTRACEBACK=all

[Install]
WantedBy=default.target
`

// setupSystemd installs itself as a service via systemd.
func setupSystemd(config string) error {
	t, err := template.New("").Parse(systemdConfig)
	if err != nil {
		return err
	}
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	buf := bytes.Buffer{}
	data := map[string]string{
		"User":    "pi",
		"Group":   "pi",
		"Command": exe + " " + config + " run",
	}
	if err = t.Execute(&buf, data); err != nil {
		return err
	}

	cmd := exec.Command("sudo", "tee", "/etc/systemd/system/lithiumhome.service")
	cmd.Stdin = &buf
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return err
	}
	cmd = exec.Command("sudo", "systemctl", "daemon-reload")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return err
	}
	cmd = exec.Command("sudo", "systemctl", "enable", "lithiumhome.service")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return err
	}
	fmt.Printf("Run \"sudo systemctl start lithiumhome.service\" to start the daemon or reboot.\n")
	return nil
}
