package app

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{name: "引数なしはsync", args: nil, want: CommandSync},
		{name: "sync", args: []string{"sync"}, want: CommandSync},
		{name: "serve", args: []string{"serve"}, want: CommandServe},
		{name: "migrate", args: []string{"migrate"}, want: CommandMigrate},
		{name: "healthcheck", args: []string{"healthcheck"}, want: CommandHealthcheck},
		{name: "未知のコマンドはsync", args: []string{"unknown"}, want: CommandSync},
		{name: "後続の引数は無視", args: []string{"serve", "--verbose"}, want: CommandServe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCommand(tt.args)
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}
