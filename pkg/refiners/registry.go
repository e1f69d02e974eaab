package refiners

import (
	"io"
	"math"
	"sort"
	"strings"

	"github.com/ajitpratap0/harvest/pkg/crops"
	"github.com/ajitpratap0/harvest/pkg/errors"
	"github.com/ajitpratap0/harvest/pkg/formats/columnar"
	"github.com/ajitpratap0/harvest/pkg/stats"
)

// GroupByConfig declares one grouping. An empty Column passes the crops
// through ungrouped; Edges switch from distinct values to intervals.
type GroupByConfig struct {
	Column string    `yaml:"column" json:"column"`
	Edges  []float64 `yaml:"edges" json:"edges"`
}

// FilterConfig declares a row filter comparing column On against Value.
// Op is one of nonzero (default), finite, ==, !=, <, <=, >, >=.
type FilterConfig struct {
	On    string  `yaml:"on" json:"on"`
	Op    string  `yaml:"op" json:"op"`
	Value float64 `yaml:"value" json:"value"`
}

// RefinerConfig declares an output refiner and the context it runs in.
type RefinerConfig struct {
	Kind string `yaml:"kind" json:"kind"`

	Name        string `yaml:"name" json:"name"`
	Title       string `yaml:"title" json:"title"`
	Contact     string `yaml:"contact" json:"contact"`
	Description string `yaml:"description" json:"description"`
	Check       string `yaml:"check" json:"check"`

	// figures of merit
	Key         string `yaml:"key" json:"key"`
	Aggregation string `yaml:"aggregation" json:"aggregation"`

	// binning
	Bins          int      `yaml:"bins" json:"bins"`
	Lower         *float64 `yaml:"lower_bound" json:"lower_bound"`
	Upper         *float64 `yaml:"upper_bound" json:"upper_bound"`
	OutlierZScore float64  `yaml:"outlier_z_score" json:"outlier_z_score"`
	AllowDiscrete bool     `yaml:"allow_discrete" json:"allow_discrete"`
	StackBy       string   `yaml:"stackby" json:"stackby"`

	// profiles and scatters
	X                []string `yaml:"x" json:"x"`
	Y                []string `yaml:"y" json:"y"`
	SkipSingleValued bool     `yaml:"skip_single_valued" json:"skip_single_valued"`

	// analyses
	PartName      string   `yaml:"part_name" json:"part_name"`
	PartNames     []string `yaml:"part_names" json:"part_names"`
	TruthName     string   `yaml:"truth_name" json:"truth_name"`
	EstimateName  string   `yaml:"estimate_name" json:"estimate_name"`
	EstimateNames []string `yaml:"estimate_names" json:"estimate_names"`
	VarianceName  string   `yaml:"variance_name" json:"variance_name"`
	QuantityName  string   `yaml:"quantity_name" json:"quantity_name"`
	AuxNames      []string `yaml:"aux_names" json:"aux_names"`
	Absolute      bool     `yaml:"absolute" json:"absolute"`
	Cut           *float64 `yaml:"cut" json:"cut"`
	CutDirection  string   `yaml:"cut_direction" json:"cut_direction"`

	// tree
	Format      string `yaml:"format" json:"format"`
	Compression string `yaml:"compression" json:"compression"`

	// context
	AboveExpertLevel      *int              `yaml:"above_expert_level" json:"above_expert_level"`
	BelowExpertLevel      *int              `yaml:"below_expert_level" json:"below_expert_level"`
	Folder                string            `yaml:"folder_name" json:"folder_name"`
	FolderGroupByAddition string            `yaml:"folder_groupby_addition" json:"folder_groupby_addition"`
	Filter                *FilterConfig     `yaml:"filter" json:"filter"`
	GroupBy               []GroupByConfig   `yaml:"groupby" json:"groupby"`
	ExcludeGroupBy        *bool             `yaml:"exclude_groupby" json:"exclude_groupby"`
	Select                []string          `yaml:"select" json:"select"`
	Rename                map[string]string `yaml:"rename" json:"rename"`
	Exclude               []string          `yaml:"exclude" json:"exclude"`
}

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	print io.Writer
}

// WithPrintTo makes figures of merit print a table to w.
func WithPrintTo(w io.Writer) BuildOption {
	return func(o *buildOptions) { o.print = w }
}

type constructor func(cfg RefinerConfig, o buildOptions) (Refiner, error)

var registry = map[string]constructor{
	"figures_of_merit":        buildFiguresOfMerit,
	"fom":                     buildFiguresOfMerit,
	"histograms":              buildHistograms,
	"profiles":                buildProfiles,
	"scatters":                buildScatters,
	"classification_analysis": buildClassification,
	"pull_analysis":           buildPull,
	"tree":                    buildTree,
}

// Kinds lists the refiner kinds Build accepts.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Build constructs the output refiner declared by cfg wrapped in its context.
func Build(cfg RefinerConfig, opts ...BuildOption) (Refiner, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	construct, ok := registry[kind]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown refiner kind %q", cfg.Kind).
			WithDetail("known", Kinds())
	}
	r, err := construct(cfg, o)
	if err != nil {
		return nil, err
	}

	c, err := cfg.context()
	if err != nil {
		return nil, err
	}
	return With(r, c), nil
}

func (cfg RefinerConfig) texts() Texts {
	return Texts{
		Name:        cfg.Name,
		Title:       cfg.Title,
		Contact:     cfg.Contact,
		Description: cfg.Description,
		Check:       cfg.Check,
	}
}

func (cfg RefinerConfig) binning() stats.Binning {
	return stats.Binning{
		Bins:          cfg.Bins,
		Lower:         cfg.Lower,
		Upper:         cfg.Upper,
		OutlierZScore: cfg.OutlierZScore,
		AllowDiscrete: cfg.AllowDiscrete,
	}
}

func (cfg RefinerConfig) pairs() Pairs {
	return Pairs{
		X:                cfg.X,
		Y:                cfg.Y,
		Binning:          cfg.binning(),
		StackBy:          cfg.StackBy,
		SkipSingleValued: cfg.SkipSingleValued,
	}
}

func (cfg RefinerConfig) context() (Context, error) {
	c := Context{
		AboveExpertLevel:      cfg.AboveExpertLevel,
		BelowExpertLevel:      cfg.BelowExpertLevel,
		Folder:                cfg.Folder,
		FolderGroupByAddition: cfg.FolderGroupByAddition,
		ExcludeGroupBy:        cfg.ExcludeGroupBy,
		Select: crops.Selection{
			Names:   cfg.Select,
			Exclude: cfg.Exclude,
		},
	}

	// rename in lexical order of the source names
	from := make([]string, 0, len(cfg.Rename))
	for k := range cfg.Rename {
		from = append(from, k)
	}
	sort.Strings(from)
	for _, k := range from {
		c.Select.Rename = append(c.Select.Rename, crops.Rename{From: k, To: cfg.Rename[k]})
	}

	for _, g := range cfg.GroupBy {
		switch {
		case g.Column == "":
			c.GroupBy = append(c.GroupBy, Ungrouped())
		case g.Edges != nil:
			c.GroupBy = append(c.GroupBy, ByEdges(g.Column, g.Edges...))
		default:
			c.GroupBy = append(c.GroupBy, ByValue(g.Column))
		}
	}

	if cfg.Filter != nil {
		pred, err := predicate(cfg.Filter.Op, cfg.Filter.Value)
		if err != nil {
			return Context{}, err
		}
		c.Filter = &FilterSpec{On: cfg.Filter.On, Predicate: pred}
	}
	return c, nil
}

// predicate builds a row predicate from a comparison operator.
func predicate(op string, value float64) (crops.Predicate, error) {
	var keep func(float64) bool
	switch strings.TrimSpace(op) {
	case "", "nonzero":
		return crops.NonZero, nil
	case "finite":
		keep = func(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
	case "==":
		keep = func(x float64) bool { return x == value }
	case "!=":
		keep = func(x float64) bool { return x != value }
	case "<":
		keep = func(x float64) bool { return x < value }
	case "<=":
		keep = func(x float64) bool { return x <= value }
	case ">":
		keep = func(x float64) bool { return x > value }
	case ">=":
		keep = func(x float64) bool { return x >= value }
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown filter op %q", op)
	}
	return func(parts []float64) []bool {
		mask := make([]bool, len(parts))
		for i, x := range parts {
			mask[i] = keep(x)
		}
		return mask
	}, nil
}

func buildFiguresOfMerit(cfg RefinerConfig, o buildOptions) (Refiner, error) {
	if _, ok := stats.Lookup(cfg.Aggregation); !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown aggregation %q", cfg.Aggregation).
			WithDetail("known", stats.AggregationNames())
	}
	return &SaveFiguresOfMerit{
		Texts:       cfg.texts(),
		Key:         cfg.Key,
		Aggregation: cfg.Aggregation,
		Print:       o.print,
	}, nil
}

func buildHistograms(cfg RefinerConfig, _ buildOptions) (Refiner, error) {
	return &SaveHistograms{Texts: cfg.texts(), Binning: cfg.binning(), StackBy: cfg.StackBy}, nil
}

func buildProfiles(cfg RefinerConfig, _ buildOptions) (Refiner, error) {
	return &SaveProfiles{Texts: cfg.texts(), Pairs: cfg.pairs()}, nil
}

func buildScatters(cfg RefinerConfig, _ buildOptions) (Refiner, error) {
	return &SaveScatters{Texts: cfg.texts(), Pairs: cfg.pairs()}, nil
}

func buildClassification(cfg RefinerConfig, _ buildOptions) (Refiner, error) {
	direction := stats.CutDirection(cfg.CutDirection)
	if direction != "" && direction != stats.Above && direction != stats.Below {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown cut direction %q", cfg.CutDirection)
	}
	estimates := cfg.EstimateNames
	if cfg.EstimateName != "" {
		estimates = append([]string{cfg.EstimateName}, estimates...)
	}
	return &SaveClassificationAnalysis{
		PartName:      cfg.PartName,
		Contact:       cfg.Contact,
		TruthName:     cfg.TruthName,
		EstimateNames: estimates,
		Cut:           cfg.Cut,
		CutDirection:  direction,
		Binning:       cfg.binning(),
	}, nil
}

func buildPull(cfg RefinerConfig, _ buildOptions) (Refiner, error) {
	partNames := append([]string(nil), cfg.PartNames...)
	if cfg.PartName != "" {
		partNames = append(partNames, cfg.PartName)
	}
	if len(partNames) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "pull analysis needs part_name or part_names")
	}
	return &SavePullAnalysis{
		Name:          cfg.Name,
		Contact:       cfg.Contact,
		PartNames:     partNames,
		TruthName:     cfg.TruthName,
		EstimateName:  cfg.EstimateName,
		VarianceName:  cfg.VarianceName,
		QuantityName:  cfg.QuantityName,
		AuxNames:      cfg.AuxNames,
		Absolute:      cfg.Absolute,
		OutlierZScore: cfg.OutlierZScore,
	}, nil
}

func buildTree(cfg RefinerConfig, _ buildOptions) (Refiner, error) {
	format, err := columnar.ParseFormat(cfg.Format)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid tree format")
	}
	return &SaveTree{
		Name:        cfg.Name,
		Title:       cfg.Title,
		Format:      format,
		Compression: cfg.Compression,
	}, nil
}
