// Package export writes XLSX reports of the path network.
package export

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/trailworks/trailnet/internal/store"
)

// Exporter renders store contents to spreadsheet files.
type Exporter struct {
	q   store.Queries
	log *zap.Logger
}

func NewExporter(q store.Queries) *Exporter {
	return &Exporter{q: q, log: zap.L().With(zap.String("component", "export"))}
}

// EventsReport writes one row per event-link pair (unlinked events get a row
// with blank link columns) and returns the number of events written.
func (e *Exporter) EventsReport(ctx context.Context, path string, filter store.EventFilter) (int, error) {
	events, err := e.q.ListEvents(ctx, filter)
	if err != nil {
		return 0, err
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Events")
	if err != nil {
		return 0, eris.Wrap(err, "export: add events sheet")
	}
	header(sheet, "ID", "UUID", "Kind", "State", "Label",
		"Segment", "Start", "End", "Lateral offset", "Length 3D", "Created")

	for i := range events {
		ev := &events[i]
		links, err := e.q.LinksForEvent(ctx, ev.ID)
		if err != nil {
			return 0, err
		}
		if len(links) == 0 {
			row := sheet.AddRow()
			row.AddCell().SetInt64(ev.ID)
			row.AddCell().SetString(ev.UUID.String())
			row.AddCell().SetString(string(ev.Kind))
			row.AddCell().SetString(string(ev.State))
			row.AddCell().SetString(ev.Label)
			row.AddCell()
			row.AddCell()
			row.AddCell()
			row.AddCell().SetFloat(ev.LateralOffset)
			row.AddCell().SetFloat(ev.Length3D)
			row.AddCell().SetString(ev.CreatedAt.Format("2006-01-02"))
			continue
		}
		for _, l := range links {
			row := sheet.AddRow()
			row.AddCell().SetInt64(ev.ID)
			row.AddCell().SetString(ev.UUID.String())
			row.AddCell().SetString(string(ev.Kind))
			row.AddCell().SetString(string(ev.State))
			row.AddCell().SetString(ev.Label)
			row.AddCell().SetInt64(l.SegmentID)
			row.AddCell().SetFloat(l.StartPos)
			row.AddCell().SetFloat(l.EndPos)
			row.AddCell().SetFloat(ev.LateralOffset)
			row.AddCell().SetFloat(ev.Length3D)
			row.AddCell().SetString(ev.CreatedAt.Format("2006-01-02"))
		}
	}

	if err := f.Save(path); err != nil {
		return 0, eris.Wrapf(err, "export: save %s", path)
	}
	e.log.Info("events exported", zap.Int("events", len(events)), zap.String("path", path))
	return len(events), nil
}

// SegmentsReport writes one row per segment with its elevation indicators.
func (e *Exporter) SegmentsReport(ctx context.Context, path string) (int, error) {
	segs, err := e.q.ListSegments(ctx, store.SegmentFilter{})
	if err != nil {
		return 0, err
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Segments")
	if err != nil {
		return 0, eris.Wrap(err, "export: add segments sheet")
	}
	header(sheet, "ID", "UUID", "Name", "Length 3D",
		"Elevation min", "Elevation max", "Ascent", "Descent", "Created")

	for i := range segs {
		seg := &segs[i]
		row := sheet.AddRow()
		row.AddCell().SetInt64(seg.ID)
		row.AddCell().SetString(seg.UUID.String())
		row.AddCell().SetString(seg.Name)
		row.AddCell().SetFloat(seg.Length3D)
		row.AddCell().SetInt(seg.ElevationMin)
		row.AddCell().SetInt(seg.ElevationMax)
		row.AddCell().SetInt(seg.Ascent)
		row.AddCell().SetInt(seg.Descent)
		row.AddCell().SetString(seg.CreatedAt.Format("2006-01-02"))
	}

	if err := f.Save(path); err != nil {
		return 0, eris.Wrapf(err, "export: save %s", path)
	}
	e.log.Info("segments exported", zap.Int("segments", len(segs)), zap.String("path", path))
	return len(segs), nil
}

func header(sheet *xlsx.Sheet, cols ...string) {
	row := sheet.AddRow()
	for _, col := range cols {
		row.AddCell().SetString(col)
	}
}
