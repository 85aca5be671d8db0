// Package cli is the inspector command line. One command runs in one of
// three modes: an HTTP API, a queue worker, or a standalone analysis.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anime-shed/image-quality-engine/internal/config"
	pkgconfig "github.com/anime-shed/image-quality-engine/pkg/config"
)

// Run modes accepted by --mode.
const (
	ModeAPI        = "api"
	ModeQueue      = "queue"
	ModeStandalone = "standalone"
)

type options struct {
	v *viper.Viper

	mode       string
	configFile string
	image      string
	batch      string
	output     string
	details    bool
	histogram  bool
}

// NewRootCmd builds the inspector command with its own viper instance, so
// flags, INSPECTOR_* variables and the config file never leak between
// commands.
func NewRootCmd() *cobra.Command {
	o := &options{v: config.New()}

	cmd := &cobra.Command{
		Use:   "inspector",
		Short: "Score images for publishing quality",
		Long: `Inspector decides whether an image is good enough to publish.

It measures perceptual distortion, sharpness, exposure, resolution and
aspect ratio, grades each against a quality profile and combines them
into one verdict. Run it once on an image or a batch file, serve it over
HTTP, or feed it newline-delimited JSON tasks.`,
		Example: `  inspector --image photo.jpg --config premium --output table
  inspector --batch images.txt --output yaml
  inspector --mode api --port 8080
  inspector --mode queue --queue-file tasks.ndjson`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.mode, "mode", ModeStandalone, "run mode: api, queue or standalone")
	f.StringVar(&o.configFile, "config-file", "", "YAML file with process settings")
	f.String("config", pkgconfig.ProfileDefault, "quality profile: default, premium or bulk")
	f.StringVar(&o.image, "image", "", "analyze one image (path or URL)")
	f.StringVar(&o.batch, "batch", "", "analyze every reference listed in this file, one per line")
	f.String("host", "0.0.0.0", "API listen host")
	f.String("port", "8080", "API listen port")
	f.Bool("debug", false, "enable debug logging")
	f.StringVar(&o.output, "output", OutputJSON, "standalone output format: json, yaml or table")
	f.String("profiles", "", "YAML file overriding or adding quality profiles")
	f.String("queue-file", "", "read queue tasks from this file instead of stdin")
	f.BoolVar(&o.details, "details", false, "include detailed metrics in results")
	f.BoolVar(&o.histogram, "histogram", false, "include the luma histogram in results")

	for key, flag := range map[string]string{
		"default_profile": "config",
		"host":            "host",
		"port":            "port",
		"debug":           "debug",
		"profiles_file":   "profiles",
		"queue_file":      "queue-file",
	} {
		// Lookup cannot miss: every flag is defined above.
		_ = o.v.BindPFlag(key, f.Lookup(flag))
	}

	return cmd
}

func (o *options) validate() error {
	switch o.mode {
	case ModeAPI, ModeQueue:
	case ModeStandalone:
		if o.image == "" && o.batch == "" {
			return fmt.Errorf("standalone mode needs --image or --batch")
		}
		if o.image != "" && o.batch != "" {
			return fmt.Errorf("--image and --batch are mutually exclusive")
		}
	default:
		return fmt.Errorf("unknown mode %q (want api, queue or standalone)", o.mode)
	}
	if !validOutput(o.output) {
		return fmt.Errorf("unknown output format %q (want json, yaml or table)", o.output)
	}
	return nil
}
