package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("VOXNOTE_TEST_TOKEN", "abc123")
	path := writeFile(t, "port: 9090\ntoken: ${VOXNOTE_TEST_TOKEN}\n")

	got := sample{Name: "default", Port: 1}
	if err := Load(path, &got); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Name != "default" || got.Port != 9090 || got.Token != "abc123" {
		t.Errorf("got %+v", got)
	}
}

func TestLoad_Validates(t *testing.T) {
	path := writeFile(t, "port: 0\n")
	got := sample{Port: 1}
	err := Load(path, &got)
	if err == nil || !strings.Contains(err.Error(), "port must be positive") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var got sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &got); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadOptional(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	got := sample{Name: "default", Port: 8080}
	if err := LoadOptional(missing, &got); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if got.Name != "default" || got.Port != 8080 {
		t.Errorf("defaults changed: %+v", got)
	}

	bad := sample{}
	if err := LoadOptional(missing, &bad); err == nil {
		t.Error("invalid defaults should still fail validation")
	}

	path := writeFile(t, "name: from-file\n")
	if err := LoadOptional(path, &got); err != nil || got.Name != "from-file" {
		t.Errorf("existing file: %+v, %v", got, err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeFile(t, "port: [unclosed\n")
	got := sample{Port: 1}
	if err := Load(path, &got); err == nil {
		t.Error("expected parse error")
	}
}
