package models

import "github.com/shopspring/decimal"

const (
	ProductFosfo       = "FOSFO"
	ProductPita        = "PITA"
	ProductPaltaOil    = "PALTA-OIL"
	ProductGuaca       = "GUACA"
	ProductSebo        = "SEBO"
	ProductHGuaca      = "H-GUACA"
	ProductNucrem      = "NUCREM"
	ProductCascarAlloy = "CASCAR-ALLOY"
	ProductGtron       = "GTRON"
)

var Products = []string{
	ProductFosfo,
	ProductPita,
	ProductPaltaOil,
	ProductGuaca,
	ProductSebo,
	ProductHGuaca,
	ProductNucrem,
	ProductCascarAlloy,
	ProductGtron,
}

// RawMaterials are what producer teams make from nothing.
var RawMaterials = []string{ProductFosfo, ProductPita, ProductSebo}

// IntermediateGoods are what refiner teams make from raw materials.
var IntermediateGoods = []string{ProductPaltaOil, ProductNucrem, ProductCascarAlloy}

// PriceRange is a plausible price band for a product.
type PriceRange struct {
	Min, Max decimal.Decimal
}

var priceRanges = map[string]PriceRange{
	ProductFosfo:       {decimal.NewFromInt(8), decimal.NewFromInt(15)},
	ProductPita:        {decimal.NewFromInt(12), decimal.NewFromInt(22)},
	ProductPaltaOil:    {decimal.NewFromInt(20), decimal.NewFromInt(35)},
	ProductGuaca:       {decimal.NewFromInt(28), decimal.NewFromInt(45)},
	ProductSebo:        {decimal.NewFromInt(5), decimal.NewFromInt(12)},
	ProductHGuaca:      {decimal.NewFromInt(40), decimal.NewFromInt(60)},
	ProductNucrem:      {decimal.NewFromInt(15), decimal.NewFromInt(30)},
	ProductCascarAlloy: {decimal.NewFromInt(25), decimal.NewFromInt(40)},
	ProductGtron:       {decimal.NewFromInt(30), decimal.NewFromInt(55)},
}

var defaultPriceRange = PriceRange{decimal.NewFromInt(5), decimal.NewFromInt(50)}

func PriceRangeOf(product string) PriceRange {
	if r, ok := priceRanges[product]; ok {
		return r
	}
	return defaultPriceRange
}
