package layers

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trailworks/trailnet/internal/model"
	"github.com/trailworks/trailnet/internal/store"
)

// Importer loads polygon layers into the store.
type Importer struct {
	store   store.Store
	fetcher *Fetcher
	log     *zap.Logger
}

func NewImporter(st store.Store, cacheDir string) *Importer {
	return &Importer{
		store:   st,
		fetcher: NewFetcher(cacheDir),
		log:     zap.L().With(zap.String("component", "layers.importer")),
	}
}

// Result reports one imported layer.
type Result struct {
	Layer model.Layer
	Areas int64
}

// Load imports every layer in the manifest. Layers download and parse in
// parallel; each layer's rows land in one transaction, so a failing layer
// leaves the others' results intact.
func (im *Importer) Load(ctx context.Context, m *Manifest) ([]Result, error) {
	results := make([]Result, len(m.Layers))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(3)

	for i := range m.Layers {
		i, src := i, m.Layers[i]
		g.Go(func() error {
			n, err := im.loadLayer(gCtx, src)
			if err != nil {
				return eris.Wrapf(err, "layers: load layer %s", src.Layer)
			}
			results[i] = Result{Layer: src.Layer, Areas: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (im *Importer) loadLayer(ctx context.Context, src LayerSource) (int64, error) {
	shpPath, err := im.fetcher.Resolve(ctx, src.Source)
	if err != nil {
		return 0, err
	}
	areas, err := ParseShapefile(shpPath, src)
	if err != nil {
		return 0, err
	}
	if len(areas) == 0 {
		return 0, eris.Errorf("layers: %s yields no areas", src.Source)
	}

	var n int64
	err = im.store.WithTx(ctx, func(tx store.Tx) error {
		n, err = tx.UpsertAreas(ctx, src.Layer, areas)
		return err
	})
	if err != nil {
		return 0, err
	}
	im.log.Info("layer loaded",
		zap.String("layer", string(src.Layer)),
		zap.Int64("areas", n),
	)
	return n, nil
}

// Status returns the stored area count per layer.
func (im *Importer) Status(ctx context.Context) (map[model.Layer]int64, error) {
	counts := make(map[model.Layer]int64, len(model.Layers()))
	for _, layer := range model.Layers() {
		n, err := im.store.CountAreas(ctx, layer)
		if err != nil {
			return nil, err
		}
		counts[layer] = n
	}
	return counts, nil
}
