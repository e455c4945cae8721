package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.arrow")
	texts := []string{
		"the cat sat on the mat",
		"the dog chased the cat",
		"",
	}

	if err := WriteFile(path, texts); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(texts) {
		t.Fatalf("expected %d rows, got %d", len(texts), len(got))
	}
	for i := range texts {
		if got[i] != texts[i] {
			t.Errorf("row %d = %q, want %q", i, got[i], texts[i])
		}
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "absent.arrow")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadFileRejectsWrongSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wrong.arrow")

	mem := memory.DefaultAllocator
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "value", Type: arrow.PrimitiveTypes.Int64},
	}, nil)

	b := array.NewRecordBuilder(mem, schema)
	b.Field(0).(*array.Int64Builder).Append(42)
	rec := b.NewRecord()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(rec); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	rec.Release()
	b.Release()
	f.Close()

	if _, err := ReadFile(path); !errors.Is(err, ErrNoTextColumn) {
		t.Errorf("expected ErrNoTextColumn, got %v", err)
	}
}

func TestBatchSourceCycles(t *testing.T) {
	src, err := NewBatchSource([][]int{{1, 2}, {3, 4, 5}})
	if err != nil {
		t.Fatal(err)
	}

	want := [][]int{{1, 2}, {3, 4, 5}, {1, 2}}
	for i, w := range want {
		got, err := src.Next()
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(w) || got[0] != w[0] {
			t.Errorf("call %d = %v, want %v", i, got, w)
		}
	}
}

func TestBatchSourceDropsShortSequences(t *testing.T) {
	src, err := NewBatchSource([][]int{{9}, {}, {1, 2}})
	if err != nil {
		t.Fatal(err)
	}
	if src.Len() != 1 {
		t.Errorf("expected 1 usable sequence, got %d", src.Len())
	}
}

func TestBatchSourceEmpty(t *testing.T) {
	if _, err := NewBatchSource([][]int{{7}}); !errors.Is(err, ErrNoUsableSequences) {
		t.Errorf("expected ErrNoUsableSequences, got %v", err)
	}
	if _, err := NewBatchSource(nil); !errors.Is(err, ErrNoUsableSequences) {
		t.Errorf("expected ErrNoUsableSequences, got %v", err)
	}
}
