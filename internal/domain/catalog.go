package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Catalog entity statuses. Approval always creates entities as available;
// later catalog management may move them through the remaining states.
const (
	CatalogStatusAvailable = "available"
	CatalogStatusReserved  = "reserved"
	CatalogStatusSold      = "sold"
)

// Vehicle condition values for non-salvage categories.
const (
	ConditionNew = "new"
	ConditionOld = "old"
)

// CategorySalvageVehicles is the vehicle category whose condition field holds
// free-text comments instead of the new/old enumeration.
const CategorySalvageVehicles = "salvageVehicles"

// Default categories applied when the seller omitted one.
const (
	DefaultVehicleCategory = "stockCars"
	DefaultPartCategory    = "autoParts"
)

// MakeCustom is the sentinel make value indicating the actual maker is carried
// in the CustomMaker field.
const MakeCustom = "custom"

// ErrEntityInvalid wraps catalog entity validation failures.
var ErrEntityInvalid = errors.New("catalog entity invalid")

// Vehicle is the strongly typed catalog entity for vehicle listings. Most
// specification fields stay free-text: sellers describe stock in whatever
// units and notation their market uses.
type Vehicle struct {
	RefNo      string `firestore:"refNo"`
	Title      string `firestore:"title"`
	Price      string `firestore:"price"`
	TotalPrice string `firestore:"totalPrice"`

	StockNo      string   `firestore:"stockNo"`
	Mileage      string   `firestore:"mileage"`
	Year         string   `firestore:"year"`
	Engine       string   `firestore:"engine"`
	EngineCode   string   `firestore:"engineCode"`
	ModelCode    string   `firestore:"modelCode"`
	Transmission string   `firestore:"transmission"`
	Location     string   `firestore:"location"`
	Color        string   `firestore:"color"`
	Fuel         string   `firestore:"fuel"`
	Drive        string   `firestore:"drive"`
	Seats        string   `firestore:"seats"`
	Doors        string   `firestore:"doors"`
	Features     []string `firestore:"features"`
	Condition    string   `firestore:"condition"`
	Capacity     string   `firestore:"capacity"`

	ChassisNo             string `firestore:"chassisNo"`
	Steering              string `firestore:"steering"`
	VersionClass          string `firestore:"versionClass"`
	RegistrationYearMonth string `firestore:"registrationYearMonth"`
	ManufactureYearMonth  string `firestore:"manufactureYearMonth"`
	Dimension             string `firestore:"dimension"`
	Weight                string `firestore:"weight"`
	MaxCapacity           string `firestore:"maxCapacity"`

	Images []string `firestore:"images"`
	Image  string   `firestore:"image"`
	Video  string   `firestore:"video"`

	Make        string `firestore:"make"`
	Model       string `firestore:"model"`
	FuelType    string `firestore:"fuelType"`
	Description string `firestore:"description"`

	Category     string    `firestore:"category"`
	Status       string    `firestore:"status"`
	PostedBy     string    `firestore:"postedBy"`
	PostedByRole string    `firestore:"postedByRole"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// Validate checks the invariants required before the vehicle may be persisted.
func (v Vehicle) Validate() error {
	var missing []string
	if strings.TrimSpace(v.RefNo) == "" {
		missing = append(missing, "refNo")
	}
	if strings.TrimSpace(v.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(v.Status) == "" {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: vehicle missing %s", ErrEntityInvalid, strings.Join(missing, ", "))
	}
	if v.Category != CategorySalvageVehicles && v.Condition != ConditionNew && v.Condition != ConditionOld {
		return fmt.Errorf("%w: vehicle condition %q", ErrEntityInvalid, v.Condition)
	}
	return nil
}

// Part is the strongly typed catalog entity for spare-part listings.
type Part struct {
	RefNo       string  `firestore:"refNo"`
	Name        string  `firestore:"name"`
	Brand       string  `firestore:"brand"`
	Make        string  `firestore:"make"`
	CustomMaker string  `firestore:"customMaker"`
	Category    string  `firestore:"category"`
	Price       float64 `firestore:"price"`
	Stock       int64   `firestore:"stock"`

	Images []string `firestore:"images"`
	Video  string   `firestore:"video"`

	Description        string   `firestore:"description"`
	ModelCode          string   `firestore:"modelCode"`
	Year               string   `firestore:"year"`
	Condition          string   `firestore:"condition"`
	CompatibleVehicles []string `firestore:"compatibleVehicles"`
	Comments           string   `firestore:"comments"`

	Status       string    `firestore:"status"`
	PostedBy     string    `firestore:"postedBy"`
	PostedByRole string    `firestore:"postedByRole"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// Validate checks the invariants required before the part may be persisted.
func (p Part) Validate() error {
	var missing []string
	if strings.TrimSpace(p.RefNo) == "" {
		missing = append(missing, "refNo")
	}
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: part missing %s", ErrEntityInvalid, strings.Join(missing, ", "))
	}
	if p.Condition != ConditionNew && p.Condition != ConditionOld {
		return fmt.Errorf("%w: part condition %q", ErrEntityInvalid, p.Condition)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: part price %f", ErrEntityInvalid, p.Price)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: part stock %d", ErrEntityInvalid, p.Stock)
	}
	return nil
}
