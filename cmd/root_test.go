package cmd

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/maxvaer/proxyftp/internal/config"
)

// Config file keys and env names are derived from flag names, so every key
// must exist as a flag somewhere.
func TestConfigKeysHaveFlags(t *testing.T) {
	lookup := func(name string) *pflag.Flag {
		for _, c := range []interface{ Flags() *pflag.FlagSet }{scanCmd, lsCmd, getCmd} {
			if f := c.Flags().Lookup(name); f != nil {
				return f
			}
		}
		return rootCmd.PersistentFlags().Lookup(name)
	}
	for _, key := range config.Keys() {
		if lookup(key) == nil {
			t.Errorf("config key %q has no matching flag", key)
		}
	}
}

func TestFormatFlag(t *testing.T) {
	f := scanCmd.Flags().Lookup("threads")
	got := formatFlag(f)
	if !strings.Contains(got, "-t, --threads int") {
		t.Errorf("missing name column: %q", got)
	}
	if !strings.HasSuffix(got, "(default 1)") {
		t.Errorf("missing default: %q", got)
	}

	got = formatFlag(rootCmd.PersistentFlags().Lookup("no-color"))
	if strings.Contains(got, "default") || strings.Contains(got, " bool") {
		t.Errorf("bool flags carry no type or default: %q", got)
	}
}

func TestHelpBanner(t *testing.T) {
	if got := helpBanner("1.2.0"); !strings.Contains(got, "v1.2.0") {
		t.Errorf("helpBanner = %q", got)
	}
	if got := helpBanner("dev"); !strings.Contains(got, "proxyftp dev") {
		t.Errorf("helpBanner = %q", got)
	}
}
