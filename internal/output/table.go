package output

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// CatalogTable renders modules and their sub-packages, one module per row.
type CatalogTable struct {
	rows [][]string
}

// NewCatalogTable returns an empty catalog table.
func NewCatalogTable() *CatalogTable {
	return &CatalogTable{}
}

// Add appends a module row. A module without sub-packages shows "-".
func (t *CatalogTable) Add(module string, pkgs []string) *CatalogTable {
	list := strings.Join(pkgs, ", ")
	if list == "" {
		list = "-"
	}
	t.rows = append(t.rows, []string{module, list})
	return t
}

// Len returns the number of module rows.
func (t *CatalogTable) Len() int {
	return len(t.rows)
}

// String renders the table with module names highlighted as nouns.
func (t *CatalogTable) String() string {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorDimGray)).
		Headers("MODULE", "SUB-PACKAGES").
		Rows(t.rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return StyleAction
			case col == 0:
				return StyleNoun
			default:
				return lipgloss.NewStyle()
			}
		})
	return tbl.String()
}
