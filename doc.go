// Package harvest collects per-event objects into flat numeric crops and
// refines them into figures of merit, histograms, profiles, scatters,
// classification and pull analyses, and columnar trees once the event
// stream is exhausted.
//
// # Architecture
//
// A run has two phases. While events arrive, a harvesting Module picks
// objects out of one collection, peels each into a crop record and pushes
// the record into a Barn. When the host terminates the module, the
// accumulated Store is handed to every registered Refiner, each wrapped in
// the decorators its configuration asks for (expert level gating, filtering,
// grouping, sub-folder selection and column selection).
//
// # Quick Start
//
// Declare a module and its refiners in YAML and run it over a JSON-lines
// event stream:
//
//	module:
//	  foreach: Tracks
//	  id: trk
//	  pick: fitted
//	  fields: [pt, eta, charge]
//	output:
//	  kind: local
//	  path: ./plots
//	refiners:
//	  - kind: figures_of_merit
//	    aggregation: mean
//	  - kind: histograms
//	    bins: 20
//	    groupby:
//	      - column: charge
//
//	harvest run -c harvest.yaml -e events.jsonl
//
// Or wire a module directly:
//
//	m, err := harvest.New(harvest.Options{Foreach: "Tracks"}, source, host.FieldPeeler("pt"),
//	    harvest.WithRefiner[host.Object]("fom", &refiners.SaveFiguresOfMerit{Aggregation: "mean"}),
//	)
//
// # Key Packages
//
//	pkg/harvest      - Per-event harvesting lifecycle
//	pkg/crops        - Crop records, the Barn accumulator and the Store
//	pkg/refiners     - Refiners, decorators and the refiner registry
//	pkg/stats        - Histograms, profiles, scatters and summary statistics
//	pkg/scope        - Output directories on local disk, memory, S3 and GCS
//	pkg/formats      - Columnar tree writers (Parquet, Avro, JSON lines)
//	pkg/config       - YAML run configuration
//	pkg/errors       - Structured error handling
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus metrics
//	internal/host    - JSON-lines event host
package harvest
