package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shoprec.yaml")
	yml := `
log:
  level: disabled
catalog:
  driver: memory
  fixture: ../../catalog/testdata/shop.yaml
embedding:
  provider: hashing
  dimension: 32
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunRecommend(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"-config", writeConfig(t), "recommend", "-user", "stranger", "-limit", "2"}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var items []itemView
	if err := json.Unmarshal(out.Bytes(), &items); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	if len(items) != 2 || items[0].ID != "p1" || items[0].Labels["fallback"] != "popularity" {
		t.Fatalf("items = %+v", items)
	}
}

func TestRunBatch(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"-config", writeConfig(t), "batch", "-kind", "feature_similarities"}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var st statusView
	if err := json.Unmarshal(out.Bytes(), &st); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if st.Kind != "feature_similarities" || st.Rows != 2 || st.RunID == "" {
		t.Fatalf("status = %+v", st)
	}
}

func TestRunErrors(t *testing.T) {
	cfg := writeConfig(t)
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"unknown command", []string{"-config", cfg, "explode"}, 2},
		{"unknown strategy", []string{"-config", cfg, "recommend", "-user", "u1", "-strategy", "random"}, 2},
		{"migrate needs postgres", []string{"-config", cfg, "migrate"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.args, &bytes.Buffer{})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := exitCode(err); got != tt.code {
				t.Errorf("exit code = %d, want %d (%v)", got, tt.code, err)
			}
		})
	}
	if err := run(context.Background(), []string{"-config", cfg}, &bytes.Buffer{}); err == nil {
		t.Error("missing command should fail")
	}
}
