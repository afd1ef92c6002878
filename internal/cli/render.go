package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jlindqvist/chorogram/pkg/errors"
	"github.com/jlindqvist/chorogram/pkg/pipeline"
	"github.com/jlindqvist/chorogram/pkg/render"
	"github.com/jlindqvist/chorogram/pkg/topo"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	config      string // TOML config file with options and bound data
	output      string // output SVG path
	dataset     string
	granularity string
	width       float64
	scheme      string
	labels      bool
	legend      bool
	noTooltip   bool
	refresh     bool // bypass the artifact cache
	baseURL     string
	cache       cacheFlags
}

// renderCommand creates the render command.
//
// The topology source comes from --dataset/--granularity or a TOML config
// file; with neither, an interactive dataset picker opens. Bound data and
// color mappings come from the config file.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a choropleth map to SVG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "TOML config file with render options and data")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default <dataset>_<granularity>.svg)")
	cmd.Flags().StringVarP(&opts.dataset, "dataset", "d", "", "dataset name (e.g. world)")
	cmd.Flags().StringVarP(&opts.granularity, "granularity", "g", "", "granularity name (e.g. countries)")
	cmd.Flags().Float64Var(&opts.width, "width", 0, "map width in pixels")
	cmd.Flags().StringVar(&opts.scheme, "scheme", "", "color scheme: qualitative (default), sequential")
	cmd.Flags().BoolVar(&opts.labels, "labels", false, "draw feature labels")
	cmd.Flags().BoolVar(&opts.legend, "legend", false, "draw a legend")
	cmd.Flags().BoolVar(&opts.noTooltip, "no-tooltip", false, "disable hover tooltips")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass the artifact cache")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "topology base URL or local directory")
	opts.cache.register(cmd)

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, opts *renderOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	mapOpts, err := buildMapOptions(opts)
	if err != nil {
		return err
	}

	if mapOpts.Dataset == "" {
		picked, err := pickSource(logger)
		if err != nil {
			return err
		}
		if picked == nil {
			printInfo("No dataset selected")
			return nil
		}
		mapOpts.Dataset = picked.Dataset
		mapOpts.Granularity = picked.Granularity
	}

	runner := c.newRunner(ctx, &opts.cache, opts.baseURL)
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s/%s...", mapOpts.Dataset, mapOpts.Granularity))
	spinner.Start()

	prog := newProgress(logger)
	result, err := runner.Execute(ctx, pipeline.Options{
		Map:     mapOpts,
		Refresh: opts.refresh,
		Logger:  logger,
	})
	if err != nil {
		if spinner.Cancelled() {
			spinner.Stop()
			return ctx.Err()
		}
		spinner.StopWithError(fmt.Sprintf("Render failed: %s", errors.UserMessage(err)))
		return err
	}

	output := opts.output
	if output == "" {
		output = fmt.Sprintf("%s_%s.svg", mapOpts.Dataset, mapOpts.Granularity)
	}
	if err := os.WriteFile(output, result.SVG, 0o644); err != nil {
		spinner.StopWithError(fmt.Sprintf("Write failed: %s", err))
		return err
	}

	spinner.StopWithSuccess(fmt.Sprintf("Rendered %s/%s", mapOpts.Dataset, mapOpts.Granularity))
	prog.done(fmt.Sprintf("Rendered %d features", result.Stats.FeatureCount))
	if len(mapOpts.Data) > 0 && result.Stats.MatchedCount == 0 {
		printWarning("No data entries matched a feature id; check the keys against the topology")
	}
	printStats(result.Stats.FeatureCount, result.Stats.MatchedCount, result.CacheInfo.RenderHit)
	printFile(output)
	return nil
}

// buildMapOptions merges the config file (when given) with flag overrides.
// Flags win over the file so a config can be tweaked per invocation.
func buildMapOptions(opts *renderOpts) (*render.Options, error) {
	mapOpts := &render.Options{}
	if opts.config != "" {
		cfg, err := loadRenderConfig(opts.config)
		if err != nil {
			return nil, err
		}
		mapOpts, err = cfg.toOptions()
		if err != nil {
			return nil, err
		}
	}

	if opts.dataset != "" {
		mapOpts.Dataset = opts.dataset
	}
	if opts.granularity != "" {
		mapOpts.Granularity = opts.granularity
	}
	if opts.width != 0 {
		mapOpts.Width = opts.width
	}
	if opts.scheme != "" {
		mapOpts.ColorScheme = opts.scheme
	}
	if opts.labels {
		mapOpts.Labels = boolPtr(true)
	}
	if opts.legend {
		mapOpts.Legend = boolPtr(true)
	}
	if opts.noTooltip {
		mapOpts.Tooltip = boolPtr(false)
	}
	return mapOpts, nil
}

// renderConfig is the TOML shape of a render configuration file.
//
//	dataset = "world"
//	granularity = "countries"
//	legend = true
//
//	[colors]
//	"1" = "#deebf7"
//	"2" = "#3182bd"
//
//	[data.840]
//	value = 2
type renderConfig struct {
	Dataset         string            `toml:"dataset"`
	Granularity     string            `toml:"granularity"`
	Width           float64           `toml:"width"`
	Height          float64           `toml:"height"`
	AspectRatio     float64           `toml:"aspect_ratio"`
	ColorScheme     string            `toml:"color_scheme"`
	Colors          map[string]string `toml:"colors"`
	ColorRange      []string          `toml:"color_range"`
	ColorDomain     []float64         `toml:"color_domain"`
	ExtraLayers     []string          `toml:"extra_layers"`
	Labels          *bool             `toml:"labels"`
	LabelsSource    string            `toml:"labels_source"`
	Legend          *bool             `toml:"legend"`
	LegendLabels    map[string]string `toml:"legend_labels"`
	Tooltip         *bool             `toml:"tooltip"`
	TooltipTemplate string            `toml:"tooltip_template"`
	Center          []float64         `toml:"center"`
	ScaleFactor     float64           `toml:"scale_factor"`

	// Data maps feature ids (TOML table keys, so strings) to property
	// records bound onto the topology.
	Data map[string]map[string]any `toml:"data"`
}

func loadRenderConfig(path string) (*renderConfig, error) {
	var cfg renderConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	return &cfg, nil
}

// toOptions converts the file shape into render options, parsing the
// string feature-id keys TOML forces on the data table.
func (cfg *renderConfig) toOptions() (*render.Options, error) {
	o := &render.Options{
		Dataset:         cfg.Dataset,
		Granularity:     cfg.Granularity,
		Width:           cfg.Width,
		Height:          cfg.Height,
		AspectRatio:     cfg.AspectRatio,
		ColorScheme:     cfg.ColorScheme,
		ColorData:       cfg.Colors,
		ExtraLayers:     cfg.ExtraLayers,
		Labels:          cfg.Labels,
		LabelsSource:    cfg.LabelsSource,
		Legend:          cfg.Legend,
		LegendLabels:    cfg.LegendLabels,
		Tooltip:         cfg.Tooltip,
		TooltipTemplate: cfg.TooltipTemplate,
		ScaleFactor:     cfg.ScaleFactor,
	}

	if len(cfg.ColorRange) == 2 {
		o.ColorRange = [2]string{cfg.ColorRange[0], cfg.ColorRange[1]}
	} else if len(cfg.ColorRange) != 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "color_range needs exactly two colors")
	}
	if len(cfg.ColorDomain) == 2 {
		o.ColorDomain = [2]float64{cfg.ColorDomain[0], cfg.ColorDomain[1]}
	} else if len(cfg.ColorDomain) != 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "color_domain needs exactly two numbers")
	}
	if len(cfg.Center) == 2 {
		o.Center = &[2]float64{cfg.Center[0], cfg.Center[1]}
	} else if len(cfg.Center) != 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "center needs exactly two fractions")
	}

	if len(cfg.Data) > 0 {
		o.Data = make(map[int]topo.Properties, len(cfg.Data))
		for key, props := range cfg.Data {
			id, err := strconv.Atoi(key)
			if err != nil {
				return nil, errors.New(errors.ErrCodeInvalidConfig, "data key %q is not a numeric feature id", key)
			}
			o.Data[id] = topo.Properties(props)
		}
	}
	return o, nil
}

func boolPtr(b bool) *bool { return &b }
