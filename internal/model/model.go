package model

import "time"

// Notice is the intermediate shape every source adapter produces. It follows the
// OCDS release layout; sources that cannot fill a field leave it nil or empty.
type Notice struct {
	OCID    string   `json:"ocid"`
	ID      string   `json:"id"`
	Date    string   `json:"date"`
	Tag     []string `json:"tag,omitempty"`
	Parties []Party  `json:"parties,omitempty"`
	Tender  *Tender  `json:"tender,omitempty"`
}

type Party struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Roles        []string      `json:"roles,omitempty"`
	Address      *Address      `json:"address,omitempty"`
	ContactPoint *ContactPoint `json:"contactPoint,omitempty"`
}

type Address struct {
	StreetAddress string `json:"streetAddress,omitempty"`
	Locality      string `json:"locality,omitempty"`
	Region        string `json:"region,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	CountryName   string `json:"countryName,omitempty"`
}

type ContactPoint struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Telephone string `json:"telephone,omitempty"`
}

type Tender struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       string     `json:"status,omitempty"`
	Value        *Value     `json:"value,omitempty"`
	MinValue     *Value     `json:"minValue,omitempty"`
	MaxValue     *Value     `json:"maxValue,omitempty"`
	Items        []Item     `json:"items,omitempty"`
	TenderPeriod *Period    `json:"tenderPeriod,omitempty"`
	Documents    []Document `json:"documents,omitempty"`
}

type Value struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type Item struct {
	ID             string          `json:"id"`
	Description    string          `json:"description,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
}

type Classification struct {
	Scheme      string `json:"scheme"`
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
}

type Period struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

type Document struct {
	ID     string `json:"id"`
	Title  string `json:"title,omitempty"`
	URL    string `json:"url,omitempty"`
	Format string `json:"format,omitempty"`
}

// Buyer returns the first party carrying the "buyer" role, or nil.
func (n *Notice) Buyer() *Party {
	for i := range n.Parties {
		for _, r := range n.Parties[i].Roles {
			if r == "buyer" {
				return &n.Parties[i]
			}
		}
	}
	return nil
}

// Title, Description and Items are nil-safe accessors over the tender block.
func (n *Notice) Title() string {
	if n.Tender == nil {
		return ""
	}
	return n.Tender.Title
}

func (n *Notice) Description() string {
	if n.Tender == nil {
		return ""
	}
	return n.Tender.Description
}

func (n *Notice) Items() []Item {
	if n.Tender == nil {
		return nil
	}
	return n.Tender.Items
}

// Region is a UK macro-region tag.
type Region string

const (
	RegionLondon          Region = "london"
	RegionSouthEast       Region = "southeast"
	RegionSouthWest       Region = "southwest"
	RegionEastEngland     Region = "east_england"
	RegionEastMidlands    Region = "east_midlands"
	RegionWestMidlands    Region = "west_midlands"
	RegionYorkshire       Region = "yorkshire"
	RegionNorthEast       Region = "northeast"
	RegionNorthWest       Region = "northwest"
	RegionWales           Region = "wales"
	RegionScotland        Region = "scotland"
	RegionNorthernIreland Region = "northern_ireland"
	RegionUKWide          Region = "uk_wide"
)

type Sector string

const (
	SectorHealthcare     Sector = "healthcare"
	SectorHousing        Sector = "housing"
	SectorEducation      Sector = "education"
	SectorLocalAuthority Sector = "local_authority"
	SectorPublic         Sector = "public"
)

type Category string

const (
	CategoryElectrical        Category = "electrical"
	CategoryFireAlarm         Category = "fire_alarm"
	CategoryEmergencyLighting Category = "emergency_lighting"
	CategoryRewire            Category = "rewire"
	CategoryTesting           Category = "testing"
	CategoryEVCharging        Category = "ev_charging"
	CategoryLighting          Category = "lighting"
	CategorySolar             Category = "solar"
	CategoryDataCabling       Category = "data_cabling"
	CategoryMAndE             Category = "m_and_e"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type TenderDocument struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Record is the canonical tender handed to sinks, keyed by OCID.
type Record struct {
	OCID        string     `json:"ocid"`
	Source      string     `json:"source"`
	SourceURL   string     `json:"source_url"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ClientName  string     `json:"client_name"`
	CPVCodes    []string   `json:"cpv_codes"`
	Categories  []Category `json:"categories"`
	Sector      Sector     `json:"sector"`

	ValueLow   *float64 `json:"value_low"`
	ValueHigh  *float64 `json:"value_high"`
	ValueExact *float64 `json:"value_exact"`
	Currency   string   `json:"currency"`

	LocationText *string `json:"location_text"`
	Postcode     *string `json:"postcode"`
	Region       Region  `json:"region"`
	Geocode      *LatLng `json:"geocode"`

	PublishedAt string  `json:"published_at"`
	Deadline    *string `json:"deadline"`

	ContactName  *string `json:"contact_name"`
	ContactEmail *string `json:"contact_email"`
	ContactPhone *string `json:"contact_phone"`

	Documents  []TenderDocument `json:"documents"`
	Complexity string           `json:"estimated_complexity"`
	Status     string           `json:"status"`
	FetchedAt  time.Time        `json:"fetched_at"`

	Raw Notice `json:"raw_data"`
}

// DedupKey identifies one observed revision of a record: same notice, same release date.
func (r *Record) DedupKey() string {
	return r.OCID + "::" + r.Raw.Date
}
