package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseRecipeLink parses the legacy recipe encoding used by older catalog
// exports: "{invId:qty,invId:qty,...}". An empty mapping "{}" yields no lines.
func ParseRecipeLink(link string) ([]RecipeLine, error) {
	s := strings.TrimSpace(link)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, fmt.Errorf("malformed recipe link %q: missing braces", link)
	}

	s = strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var lines []RecipeLine
	for _, pair := range strings.Split(s, ",") {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed recipe link pair %q", pair)
		}

		id, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed ingredient id in %q: %w", pair, err)
		}

		qty, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("malformed quantity in %q: %w", pair, err)
		}
		if qty <= 0 {
			return nil, fmt.Errorf("non-positive quantity in %q", pair)
		}

		lines = append(lines, RecipeLine{InventoryID: id, QuantityPerUnit: qty})
	}

	return lines, nil
}
