package catalog

import "fmt"

// ProductUnavailableError reports a product that is absent or inactive.
// Callers cannot distinguish the two cases.
type ProductUnavailableError struct {
	Name string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product '%s' not found or is inactive", e.Name)
}

// InsufficientStockError reports a requested quantity exceeding live stock.
type InsufficientStockError struct {
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough inventory for product '%s'. Requested: %d, Available: %d",
		e.Name, e.Requested, e.Available)
}
