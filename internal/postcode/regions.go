package postcode

import "github.com/galois26/tender-sync/internal/model"

// DefaultRegions returns a fresh copy of the standard postcode area table.
func DefaultRegions() map[string]model.Region {
	t := make(map[string]model.Region, 128)
	add := func(r model.Region, areas ...string) {
		for _, a := range areas {
			t[a] = r
		}
	}
	add(model.RegionWestMidlands, "B", "CV", "DY", "WS", "WV", "ST", "WR", "TF")
	add(model.RegionNorthWest, "M", "L", "WA", "WN", "BL", "OL", "PR", "FY", "BB", "SK", "CW", "CH", "LA")
	add(model.RegionYorkshire, "LS", "BD", "HX", "HD", "WF", "S", "DN", "HU", "YO", "HG")
	add(model.RegionNorthEast, "NE", "DH", "SR", "TS", "DL", "CA")
	add(model.RegionEastMidlands, "NG", "DE", "LE", "NN", "LN", "MK")
	add(model.RegionSouthWest, "BS", "BA", "EX", "PL", "TQ", "TR", "GL", "TA", "DT", "BH", "SP", "SN")
	add(model.RegionEastEngland, "CB", "CO", "IP", "NR", "PE", "CM", "SS", "AL", "SG", "LU")
	add(model.RegionSouthEast, "RG", "SL", "HP", "OX", "GU", "PO", "BN", "TN", "ME", "CT", "SO", "RH")
	add(model.RegionLondon, "SW", "SE", "NW", "N", "E", "W", "EC", "WC", "CR", "BR", "DA", "EN",
		"HA", "IG", "KT", "RM", "SM", "TW", "UB", "WD")
	add(model.RegionWales, "CF", "SA", "LL", "SY", "NP", "LD", "HR")
	add(model.RegionScotland, "G", "EH", "AB", "DD", "KY", "FK", "PA", "IV", "PH", "ML", "KA", "DG", "TD",
		"KW", "HS", "ZE")
	add(model.RegionNorthernIreland, "BT")
	return t
}
