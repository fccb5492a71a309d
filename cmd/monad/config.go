package main

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

// applyConfigFile fills in any flag the user didn't pass on the command
// line from the file named by --config, letting operators check a run
// configuration into version control instead of repeating a long flag
// list. Flags set explicitly on the command line always win.
func applyConfigFile(ctx *cli.Context) error {
	path := ctx.String(configFlag.Name)
	if path == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	for _, f := range runFlags {
		name := flagName(f)
		if name == "" || name == configFlag.Name || ctx.IsSet(name) || !v.IsSet(name) {
			continue
		}
		if err := ctx.Set(name, fmt.Sprintf("%v", v.Get(name))); err != nil {
			return fmt.Errorf("apply config value %q: %w", name, err)
		}
	}
	return nil
}

func flagName(f cli.Flag) string {
	names := f.Names()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
