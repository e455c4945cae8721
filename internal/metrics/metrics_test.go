package metrics

import (
	"testing"
	"time"
)

func TestRecordTrainStep(t *testing.T) {
	RecordTrainStep(3.5, 100*time.Millisecond)
	RecordTrainStep(2.1, 90*time.Millisecond)
	// Counter and gauge should update - just verify no panic
}

func TestRecordGeneration(t *testing.T) {
	RecordGeneration(5, 50*time.Millisecond)
	RecordGeneration(10, 100*time.Millisecond)
}

func TestRecordGenerateStep(t *testing.T) {
	RecordGenerateStep(10 * time.Millisecond)
	RecordGenerateStep(20 * time.Millisecond)
}

func TestRecordTokenizerEncode(t *testing.T) {
	RecordTokenizerEncode(12, 0)
	RecordTokenizerEncode(48, 3)
}

func TestRecordDatasetRecords(t *testing.T) {
	RecordDatasetRecords("ipc", 128)
	RecordDatasetRecords("flight", 64)
}

func TestRecordContextLength(t *testing.T) {
	RecordContextLength(16)
	RecordContextLength(64)
	RecordContextLength(256)
}

func TestRecordValidationError(t *testing.T) {
	RecordValidationError("encode", "unknown_token")
	RecordValidationError("dataset", "missing_column")
}

func TestTotalGeneratedAtomic(t *testing.T) {
	initial := TotalGenerated()
	RecordGeneration(1, time.Millisecond)
	after := TotalGenerated()
	if after != initial+1 {
		t.Errorf("expected total generated to increment by 1, got %d -> %d", initial, after)
	}
}
