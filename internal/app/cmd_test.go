package app

import (
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{name: "no args", args: nil, want: CommandServe},
		{name: "serve", args: []string{"serve"}, want: CommandServe},
		{name: "migrate", args: []string{"migrate"}, want: CommandMigrate},
		{name: "migrate with action", args: []string{"migrate", "down", "2"}, want: CommandMigrate},
		{name: "healthcheck", args: []string{"healthcheck"}, want: CommandHealthcheck},
		// 以前のworkerサブコマンドはserveに統合した
		{name: "removed worker command", args: []string{"worker"}, want: CommandServe},
		{name: "unknown", args: []string{"--help"}, want: CommandServe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.args); got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseMigrateAction(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		want      MigrateAction
		wantSteps int
		wantErr   bool
	}{
		{name: "default is up", args: nil, want: MigrateUp},
		{name: "explicit up", args: []string{"up"}, want: MigrateUp},
		{name: "down defaults to one step", args: []string{"down"}, want: MigrateDown, wantSteps: 1},
		{name: "down with steps", args: []string{"down", "3"}, want: MigrateDown, wantSteps: 3},
		{name: "version", args: []string{"version"}, want: MigrateVersion},
		{name: "down with zero steps", args: []string{"down", "0"}, wantErr: true},
		{name: "down with garbage", args: []string{"down", "x"}, wantErr: true},
		{name: "unknown action", args: []string{"force"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, steps, err := ParseMigrateAction(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMigrateAction(%v) expected error", tt.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMigrateAction(%v) error = %v", tt.args, err)
			}
			if got != tt.want || steps != tt.wantSteps {
				t.Errorf("ParseMigrateAction(%v) = (%q, %d), want (%q, %d)", tt.args, got, steps, tt.want, tt.wantSteps)
			}
		})
	}
}
