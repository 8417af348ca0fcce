package inventory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Products []StockRecord `yaml:"products"`
}

// DefaultSeed mirrors the storefront's toy stock: products 1..3 start
// with ((id % 5) + 1) * scale units.
func DefaultSeed(scale int) []StockRecord {
	if scale <= 0 {
		scale = 1
	}
	out := make([]StockRecord, 0, 3)
	for id := int64(1); id <= 3; id++ {
		out = append(out, StockRecord{ProductID: id, Total: (id%5 + 1) * int64(scale)})
	}
	return out
}

// LoadSeed reads a YAML seed of the form
//
//	products:
//	  - productId: 1
//	    total: 20
func LoadSeed(path string) ([]StockRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	seen := make(map[int64]bool, len(f.Products))
	for _, p := range f.Products {
		if p.ProductID <= 0 {
			return nil, fmt.Errorf("seed %s: productId must be positive", path)
		}
		if p.Total < 0 {
			return nil, fmt.Errorf("seed %s: product %d has negative total", path, p.ProductID)
		}
		if seen[p.ProductID] {
			return nil, fmt.Errorf("seed %s: product %d listed twice", path, p.ProductID)
		}
		seen[p.ProductID] = true
	}
	return f.Products, nil
}
