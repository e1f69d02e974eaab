package refiners

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/harvest/pkg/crops"
	"github.com/ajitpratap0/harvest/pkg/errors"
	"github.com/ajitpratap0/harvest/pkg/formats/columnar"
	"github.com/ajitpratap0/harvest/pkg/logger"
	"github.com/ajitpratap0/harvest/pkg/metrics"
	"github.com/ajitpratap0/harvest/pkg/scope"
)

// SaveTree writes the crops as one columnar file, one branch per column in
// lexical order.
type SaveTree struct {
	// Name defaults to "{module.id}_tree"
	Name string
	// Title defaults to "Tree of {module.id}" and is stored as file metadata
	Title string
	// Format defaults to Parquet
	Format      columnar.Format
	Compression string
	// ScalarName names the single branch of scalar crops
	ScalarName string
}

// Refine implements Refiner.
func (r *SaveTree) Refine(ctx context.Context, m Module, store *crops.Store, dir scope.Scope, g Group) error {
	if dir == nil {
		return nil
	}

	v := groupValues(moduleValues(m), g, false)
	name := Format(orDefault(r.Name, "{module.id}_tree"), v)
	title := Format(orDefault(r.Title, "Tree of {module.id}"), v)

	format := r.Format
	if format == "" {
		format = columnar.Parquet
	}
	info := columnar.GetFormatInfo(format)
	if info == nil {
		return errors.Newf(errors.ErrorTypeConfig, "unsupported tree format: %s", format)
	}

	key := scope.SaveName(name) + info.FileExtension
	w, err := dir.Create(key)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create tree").
			WithDetail("artifact", scope.Join(dir.Path(), key))
	}

	rows, err := columnar.Write(w, store, &columnar.WriterConfig{
		Format:      format,
		Compression: r.Compression,
		ScalarName:  r.ScalarName,
		Metadata:    map[string]string{"title": title, "name": name},
	})
	if cerr := w.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close tree")
	}
	if err != nil {
		return err
	}

	metrics.ArtifactsWritten.WithLabelValues(string(format)).Inc()
	logger.WithContext(ctx).Debug("wrote tree",
		zap.String("artifact", scope.Join(dir.Path(), key)),
		zap.Int("rows", rows))
	return nil
}
