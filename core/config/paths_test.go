package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name        string
		goos        string
		home        string
		programData string
		want        string
	}{
		{name: "linux", goos: "linux", home: "/home/user", want: "/etc/stompsock/client.yaml"},
		{name: "darwin", goos: "darwin", home: "/Users/test", want: "/Users/test/Library/Application Support/stompsock/client.yaml"},
		{name: "windows", goos: "windows", programData: "C:\\ProgramData\\", want: "C:/ProgramData/stompsock/client.yaml"},
		{name: "windows default ProgramData", goos: "windows", want: "C:/ProgramData/stompsock/client.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveConfigPath(tt.goos, tt.home, tt.programData, "client.yaml")
			got = strings.ReplaceAll(filepath.ToSlash(got), "\\", "/")
			if got != tt.want {
				t.Errorf("config path: got %q want %q", got, tt.want)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("STOMPSOCK_TEST_VALUE", "")
	if got := GetEnv("STOMPSOCK_TEST_VALUE", "def"); got != "def" {
		t.Fatalf("empty variable: got %q", got)
	}
	t.Setenv("STOMPSOCK_TEST_VALUE", "set")
	if got := GetEnv("STOMPSOCK_TEST_VALUE", "def"); got != "set" {
		t.Fatalf("set variable: got %q", got)
	}
}
