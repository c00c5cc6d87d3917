package main

import "github.com/BurntSushi/toml"

// config is the daemon configuration. Values from the file are applied
// first and any flag set on the command line wins over them.
type config struct {
	// Addr is the TCP listen address for the debug transport. An empty
	// string disables the TCP listener.
	Addr string `toml:"addr"`
	// Serial is a serial device to serve in place of, or alongside, TCP.
	Serial string `toml:"serial"`
	// Baud is the serial line rate.
	Baud int `toml:"baud"`
	// Image is the target image manifest booted for each session.
	Image string `toml:"image"`
	// Diag is the HTTP/3 diagnostics listen address. Empty disables it.
	Diag string `toml:"diag"`
	// Watch reloads the image manifest whenever the file changes. The
	// new image takes effect on the next session.
	Watch bool `toml:"watch"`
}

// loadConfig loads daemon config from a TOML file.
func loadConfig(path string) (*config, error) {
	c := &config{Addr: defaultAddr, Baud: defaultBaud}
	if path == "" {
		return c, nil
	}
	_, err := toml.DecodeFile(path, c)
	if err != nil {
		return c, err
	}
	return c, nil
}
