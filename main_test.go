package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/notetaker/config"
	"github.com/otherjamesbrown/notetaker/pkg/buildinfo"
)

func TestVersionCommand(t *testing.T) {
	if versionCmd == nil {
		t.Fatal("versionCmd is nil")
	}

	if versionCmd.Use != "version" {
		t.Errorf("Unexpected Use: %s", versionCmd.Use)
	}

	if versionCmd.Short != "Print version information" {
		t.Errorf("Unexpected Short: %s", versionCmd.Short)
	}

	if versionCmd.Flags().Lookup("server") == nil {
		t.Error("--server flag not found on version command")
	}
}

func TestRootCommand_Flags(t *testing.T) {
	for _, name := range []string{"config", "output", "debug"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("--%s persistent flag not found", name)
		}
	}
	if f := rootCmd.PersistentFlags().ShorthandLookup("o"); f == nil || f.Name != "output" {
		t.Error("-o should be the shorthand for --output")
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	want := []string{"version", "serve", "attend", "status", "sweep", "schedule", "user",
		"transcribe", "notes", "db", "credentials"}

	have := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestWriteVersion(t *testing.T) {
	info := buildinfo.Get(buildinfo.ServiceName)

	var buf bytes.Buffer
	if err := writeVersion(&buf, config.OutputFormatText, info); err != nil {
		t.Fatalf("writeVersion(text) error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "notetaker version ") {
		t.Errorf("text output = %q", buf.String())
	}

	buf.Reset()
	if err := writeVersion(&buf, config.OutputFormatJSON, info); err != nil {
		t.Fatalf("writeVersion(json) error = %v", err)
	}
	var decoded buildinfo.Info
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.ServiceName != "notetaker" || decoded.Version != info.Version {
		t.Errorf("decoded = %+v", decoded)
	}

	buf.Reset()
	if err := writeVersion(&buf, config.OutputFormatYAML, info); err != nil {
		t.Fatalf("writeVersion(yaml) error = %v", err)
	}
	decoded = buildinfo.Info{}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if decoded.GoVersion != info.GoVersion {
		t.Errorf("go_version = %q, want %q", decoded.GoVersion, info.GoVersion)
	}
}

func TestFetchVersion(t *testing.T) {
	srv := httptest.NewServer(buildinfo.Handler(buildinfo.ServiceName, time.Now().Add(-time.Hour)))
	defer srv.Close()

	// httptest URLs carry the scheme; strip it to exercise host:port input too.
	for _, addr := range []string{srv.URL, strings.TrimPrefix(srv.URL, "http://")} {
		info, err := fetchVersion(addr)
		if err != nil {
			t.Fatalf("fetchVersion(%q) error = %v", addr, err)
		}
		if info.ServiceName != "notetaker" {
			t.Errorf("ServiceName = %q", info.ServiceName)
		}
		if !strings.HasPrefix(info.Uptime, "1h") {
			t.Errorf("Uptime = %q, want about an hour", info.Uptime)
		}
	}
}

func TestVersionCommand_Output(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	globals.Output = "json"
	defer func() { globals.Output = "" }()

	if err := versionCmd.RunE(versionCmd, nil); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	var info buildinfo.Info
	if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
		t.Fatalf("version -o json produced invalid JSON: %v\n%s", err, buf.String())
	}

	globals.Output = "xml"
	if err := versionCmd.RunE(versionCmd, nil); err == nil {
		t.Error("expected an error for an unknown output format")
	}
}
