package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestParseRange(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		raw     any
		want    portRange
		wantErr string
	}{
		"valid": {
			raw:  map[string]any{"base": 15000, "block-size": 10},
			want: portRange{base: 15000, blockSize: 10},
		},
		"string values": {
			raw:  map[string]any{"base": "16000", "block-size": "20"},
			want: portRange{base: 16000, blockSize: 20},
		},
		"missing block size": {
			raw:     map[string]any{"base": 15000},
			wantErr: "must be greater than 0",
		},
		"not a map": {
			raw:     "15000",
			wantErr: "expected a map",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := parseRange("db", tt.raw)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRange: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseRange = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSetupLoggingRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if err := setupLogging("loud"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

// Not parallel: uses the global viper instance.
func TestCoordinatorOptionsRejectNegativeGroup(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("agent-index", -1)
	viper.Set("stop-timeout", "10s")
	viper.Set("smtp-ready-timeout", "1m")
	viper.Set("manifest", ".config/dotnet-tools.json")
	viper.Set("dotnet", "dotnet")

	if _, err := coordinatorOptions(); err == nil || !strings.Contains(err.Error(), "negative") {
		t.Errorf("err = %v, want a negative group error", err)
	}
}

// Not parallel: runs the root command, which mutates global state.
func TestSnapshotRestoreRequiresTwoArgs(t *testing.T) {
	t.Cleanup(viper.Reset)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"snapshot", "restore", "only-one"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err == nil {
		t.Error("expected an argument count error")
	}
}
