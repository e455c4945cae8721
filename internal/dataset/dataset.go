package dataset

import (
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TesterSim2/Gazelle/internal/logger"
	"github.com/TesterSim2/Gazelle/internal/metrics"
)

// ErrNoTextColumn is returned when a dataset carries no "text" column.
var ErrNoTextColumn = errors.New("dataset has no text column")

const textColumn = "text"

// Schema is the Arrow schema every dataset file and Flight stream uses:
// a single utf8 column named "text", one training document per row.
func Schema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: textColumn, Type: arrow.BinaryTypes.String},
	}, nil)
}

// ReadFile loads all text rows from an Arrow IPC file.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}
	defer r.Close()

	var texts []string
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, fmt.Errorf("reading record %d: %w", i, err)
		}
		rows, err := textRows(rec)
		if err != nil {
			return nil, err
		}
		texts = append(texts, rows...)
	}

	metrics.RecordDatasetRecords("file", len(texts))
	logger.Log.Info("dataset loaded", "path", path, "rows", len(texts))
	return texts, nil
}

// WriteFile writes texts to path as a single-record Arrow IPC file.
func WriteFile(path string, texts []string) error {
	mem := memory.DefaultAllocator
	schema := Schema()

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	tb := b.Field(0).(*array.StringBuilder)
	for _, t := range texts {
		tb.Append(t)
	}

	rec := b.NewRecord()
	defer rec.Release()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dataset file: %w", err)
	}
	defer f.Close()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("creating dataset writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("writing dataset record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing dataset writer: %w", err)
	}

	logger.Log.Info("dataset written", "path", path, "rows", len(texts))
	return nil
}

// textRows extracts the text column from one record.
func textRows(rec arrow.Record) ([]string, error) {
	indices := rec.Schema().FieldIndices(textColumn)
	if len(indices) == 0 {
		return nil, ErrNoTextColumn
	}

	col, ok := rec.Column(indices[0]).(*array.String)
	if !ok {
		return nil, fmt.Errorf("text column has type %s, want utf8", rec.Column(indices[0]).DataType())
	}

	rows := make([]string, 0, col.Len())
	for j := 0; j < col.Len(); j++ {
		if col.IsNull(j) {
			continue
		}
		rows = append(rows, col.Value(j))
	}
	return rows, nil
}
