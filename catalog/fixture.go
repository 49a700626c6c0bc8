package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ReadFixture 从 YAML 读取 fixture
func ReadFixture(r io.Reader) (Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	return f, nil
}

// LoadFixture 读取 YAML 文件并构造内存目录
func LoadFixture(path string) (*MemoryCatalog, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer fh.Close()
	f, err := ReadFixture(fh)
	if err != nil {
		return nil, err
	}
	return NewMemoryCatalog(f), nil
}
