package config

import (
	"fmt"
	"os"
	"strings"

	ini "github.com/lars-t-hansen/ini"
)

// iniSections maps the legacy config.ini layout onto viper keys.
var iniSections = []struct {
	name string
	keys map[string]string // ini field -> viper key
}{
	{"Settings", map[string]string{
		"linuxpath":       "settings.linuxpath",
		"REREAD_ON_QUERY": "settings.reread_on_query",
		"algorithm":       "settings.algorithm",
		"watch":           "settings.watch",
		"watch_debounce":  "settings.watch_debounce",
	}},
	{"Server", map[string]string{
		"host":              "server.host",
		"port":              "server.port",
		"ssl_enabled":       "server.ssl_enabled",
		"certfile":          "server.certfile",
		"keyfile":           "server.keyfile",
		"buffer_size":       "server.buffer_size",
		"max_connections":   "server.max_connections",
		"accept_rate":       "server.accept_rate",
		"handshake_timeout": "server.handshake_timeout",
		"read_timeout":      "server.read_timeout",
		"write_timeout":     "server.write_timeout",
		"frame_gap":         "server.frame_gap",
	}},
	{"Logging", map[string]string{
		"level":       "logging.level",
		"format":      "logging.format",
		"file":        "logging.file",
		"max_size":    "logging.max_size",
		"max_backups": "logging.max_backups",
	}},
}

// readINI parses a config.ini and returns nested maps ready for
// viper.MergeConfigMap. Values stay strings; viper's weak decoding converts
// them to the field types.
func readINI(path string) (map[string]any, error) {
	p := ini.NewParser()
	fields := map[string]*ini.Field{}
	for _, sec := range iniSections {
		s := p.AddSection(sec.name)
		for name, key := range sec.keys {
			fields[key] = s.AddString(name)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	store, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	values := map[string]any{}
	for key, field := range fields {
		if !field.Present(store) {
			continue
		}
		section, name, _ := strings.Cut(key, ".")
		m, ok := values[section].(map[string]any)
		if !ok {
			m = map[string]any{}
			values[section] = m
		}
		m[name] = field.StringVal(store)
	}
	return values, nil
}
