package campus

import (
	"fmt"
	"strings"
)

// Building is a campus building with a monitored tank
type Building struct {
	ID   string
	Name string
}

// Catalog is the ordered list of known buildings. Its order is the order
// buildings appear in usage reports.
type Catalog []Building

// DefaultCatalog returns the buildings the dashboard ships with
func DefaultCatalog() Catalog {
	return Catalog{
		{ID: "hostel_a", Name: "Hostel A"},
		{ID: "hostel_b", Name: "Hostel B"},
		{ID: "academic_block", Name: "Academic Block"},
		{ID: "admin_block", Name: "Admin Block"},
		{ID: "canteen", Name: "Canteen"},
	}
}

// ParseCatalog parses "id:Name,id:Name" into a catalog
func ParseCatalog(raw string) (Catalog, error) {
	var out Catalog
	seen := make(map[string]bool)

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, name, ok := strings.Cut(entry, ":")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if !ok || id == "" || name == "" {
			return nil, fmt.Errorf("invalid building entry %q, expected id:Name", entry)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate building id %q", id)
		}
		seen[id] = true
		out = append(out, Building{ID: id, Name: name})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("building catalog is empty")
	}
	return out, nil
}

// IDs returns building ids in catalog order
func (c Catalog) IDs() []string {
	ids := make([]string, len(c))
	for i, b := range c {
		ids[i] = b.ID
	}
	return ids
}

// Name returns the display name for id, or the id itself when unknown
func (c Catalog) Name(id string) string {
	for _, b := range c {
		if b.ID == id {
			return b.Name
		}
	}
	return id
}
