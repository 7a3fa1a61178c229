package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Opt is a single command-line option
type Opt struct {
	DestP    interface{} // pointer to the destination
	Flag     string
	Short    rune
	Default  interface{}
	Desc     string
	Required bool
}

// Program parses CLI options
type Program struct {
	// Run is invoked by cobra on execute.
	Run func() error
	// Name is the name of the program in help usage and the env var prefix.
	Name string
	// Short is the one line help of the program.
	Short string
	// Opts are the command line/env var options to the program
	Opts []Opt
}

// NewCommand creates a new cobra command to be executed that respects env
// vars and an optional config file.
//
// Uses the upper-case version of the program's name as a prefix to all
// environment variables. <NAME>_CONFIG_PATH names the config file, or a
// directory holding config.json, config.toml, config.yaml or config.yml.
func NewCommand(v *viper.Viper, p *Program) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   p.Name,
		Short: p.Short,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return p.Run()
		},
	}

	if err := InitViper(v, p.Name); err != nil {
		return nil, err
	}
	if err := BindOptions(v, cmd, p.Opts); err != nil {
		return nil, err
	}
	return cmd, nil
}

// InitViper points v at the environment variables and config file of the
// named program.
func InitViper(v *viper.Viper, name string) error {
	prefix := strings.ToUpper(name)
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	// This normalizes "-" to an underscore in env names.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	configPath := os.Getenv(prefix + "_CONFIG_PATH")
	if configPath == "" {
		return nil
	}
	file, err := configFile(configPath)
	if err != nil {
		return err
	}
	if file == "" {
		return nil
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", file, err)
	}
	return nil
}

// configFile resolves path to a config file. A directory is searched for
// config files in order of preference; finding none is not an error.
func configFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	if !info.IsDir() {
		return path, nil
	}
	for _, ext := range []string{"json", "toml", "yaml", "yml"} {
		f := filepath.Join(path, "config."+ext)
		if _, err := os.Stat(f); err == nil {
			return f, nil
		}
	}
	return "", nil
}

// BindOptions adds opts to the flags of cmd and registers them with v. A
// destination is set from the config file or environment when present,
// and from the command line when the flag is given. Required options that
// v already knows are not required on the command line.
func BindOptions(v *viper.Viper, cmd *cobra.Command, opts []Opt) error {
	fs := cmd.Flags()
	for _, o := range opts {
		// must be checked before the flag is bound
		set := v.IsSet(o.Flag)
		if err := addFlag(v, fs, o, set); err != nil {
			return err
		}
		if err := v.BindPFlag(o.Flag, fs.Lookup(o.Flag)); err != nil {
			return err
		}
		if o.Required && !set {
			if err := cmd.MarkFlagRequired(o.Flag); err != nil {
				return err
			}
		}
	}
	return nil
}

// addFlag defines the flag of o. Its default comes from the config file or
// environment when set is true.
func addFlag(v *viper.Viper, fs *pflag.FlagSet, o Opt, set bool) error {
	short := ""
	if o.Short != 0 {
		short = string(o.Short)
	}

	switch destP := o.DestP.(type) {
	case *string:
		d, _ := o.Default.(string)
		if set {
			d = v.GetString(o.Flag)
		}
		fs.StringVarP(destP, o.Flag, short, d, o.Desc)
	case *int:
		d, _ := o.Default.(int)
		if set {
			d = v.GetInt(o.Flag)
		}
		fs.IntVarP(destP, o.Flag, short, d, o.Desc)
	case *int64:
		d, _ := o.Default.(int64)
		if set {
			d = v.GetInt64(o.Flag)
		}
		fs.Int64VarP(destP, o.Flag, short, d, o.Desc)
	case *bool:
		d, _ := o.Default.(bool)
		if set {
			d = v.GetBool(o.Flag)
		}
		fs.BoolVarP(destP, o.Flag, short, d, o.Desc)
	case *float64:
		d, _ := o.Default.(float64)
		if set {
			d = v.GetFloat64(o.Flag)
		}
		fs.Float64VarP(destP, o.Flag, short, d, o.Desc)
	case *time.Duration:
		d, _ := o.Default.(time.Duration)
		if set {
			d = v.GetDuration(o.Flag)
		}
		fs.DurationVarP(destP, o.Flag, short, d, o.Desc)
	case *[]string:
		d, _ := o.Default.([]string)
		if set {
			d = v.GetStringSlice(o.Flag)
		}
		fs.StringSliceVarP(destP, o.Flag, short, d, o.Desc)
	case *zapcore.Level:
		d, _ := o.Default.(zapcore.Level)
		if set {
			if err := d.Set(v.GetString(o.Flag)); err != nil {
				return fmt.Errorf("option %s: %w", o.Flag, err)
			}
		}
		LevelVarP(fs, destP, o.Flag, short, d, o.Desc)
	case pflag.Value:
		if o.Default != nil {
			if err := destP.Set(fmt.Sprint(o.Default)); err != nil {
				return fmt.Errorf("option %s: %w", o.Flag, err)
			}
		}
		if set {
			if err := destP.Set(v.GetString(o.Flag)); err != nil {
				return fmt.Errorf("option %s: %w", o.Flag, err)
			}
		}
		fs.VarP(destP, o.Flag, short, o.Desc)
	default:
		return fmt.Errorf("unknown destination type %T for option %s", o.DestP, o.Flag)
	}
	return nil
}
