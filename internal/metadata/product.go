package metadata

import (
	"encoding/xml"
	"io"
	"os"
	"strings"

	"github.com/airbusgeo/s2angles/internal/angles"
)

// productDocument is the product metadata document (MTD_MSIL2A.xml)
type productDocument struct {
	ProductURI string `xml:"General_Info>Product_Info>PRODUCT_URI"`
}

// ParseProductFile returns the scene identifier from a product metadata document
func ParseProductFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", angles.NewMissingInputError(path, "cannot open product metadata: %v", err)
	}
	defer f.Close()
	id, err := ParseProduct(f)
	if err != nil {
		return "", angles.WithPath(err, path)
	}
	return id, nil
}

// ParseProduct returns the scene identifier: the PRODUCT_URI without its .SAFE suffix
func ParseProduct(r io.Reader) (string, error) {
	var doc productDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return "", angles.NewParseError("", "malformed product metadata: %v", err)
	}
	id := strings.TrimSuffix(strings.TrimSpace(doc.ProductURI), ".SAFE")
	if id == "" {
		return "", angles.NewParseError("", "General_Info/Product_Info/PRODUCT_URI not found")
	}
	return id, nil
}
