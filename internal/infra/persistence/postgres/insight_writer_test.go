package postgres

import (
	"context"
	"testing"
)

func TestWriteBatchNoopOnEmptyInput(t *testing.T) {
	w := &InsightWriter{}
	if err := w.WriteBatch(context.Background(), nil); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
}
