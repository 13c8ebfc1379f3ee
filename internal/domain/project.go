package domain

import (
	"strings"
	"time"
)

// TextFormatter normalises display text (capitalisation) before persistence.
// Projection treats it as opaque so the table-driven formatter stays outside
// the domain package.
type TextFormatter func(string) string

// ProjectionInput carries everything the catalog projection needs besides the
// payload itself.
type ProjectionInput struct {
	RefNo        string
	PostedBy     string
	PostedByRole string
	Now          time.Time
	Format       TextFormatter
}

// ProjectVehicle maps a reviewed request payload into a Vehicle entity.
// Title falls back through title, name; salvage vehicles carry free-text
// condition comments while every other category is coerced to new/old.
func ProjectVehicle(data map[string]any, in ProjectionInput) Vehicle {
	format := in.Format
	if format == nil {
		format = func(s string) string { return s }
	}

	category := PayloadString(data, "category")
	if category == "" {
		category = DefaultVehicleCategory
	}

	condition := ConditionOld
	if category == CategorySalvageVehicles {
		condition = PayloadString(data, "conditionComments")
	} else if c := strings.ToLower(PayloadString(data, "condition")); c == ConditionNew {
		condition = ConditionNew
	}

	title := PayloadString(data, "title", "name")
	if title == "" {
		title = "Unnamed Vehicle"
	}

	images := PayloadStrings(data, "images")
	image := PayloadString(data, "image")
	if image == "" && len(images) > 0 {
		image = images[0]
	}

	fuel := PayloadString(data, "fuel", "fuelType")

	v := Vehicle{
		RefNo:      in.RefNo,
		Title:      format(title),
		Price:      PayloadString(data, "price", "totalPrice"),
		TotalPrice: PayloadString(data, "totalPrice", "price"),

		StockNo:      format(PayloadString(data, "stockNo")),
		Mileage:      PayloadString(data, "mileage"),
		Year:         PayloadString(data, "year"),
		Engine:       format(PayloadString(data, "engine")),
		EngineCode:   format(PayloadString(data, "engineCode")),
		ModelCode:    format(PayloadString(data, "modelCode")),
		Transmission: format(PayloadString(data, "transmission")),
		Location:     format(PayloadString(data, "location")),
		Color:        format(PayloadString(data, "color")),
		Fuel:         format(fuel),
		Drive:        PayloadString(data, "drive"),
		Seats:        PayloadString(data, "seats"),
		Doors:        PayloadString(data, "doors"),
		Features:     formatAll(PayloadStrings(data, "features"), format),
		Condition:    condition,
		Capacity:     format(PayloadString(data, "capacity")),

		ChassisNo:             format(PayloadString(data, "chassisNo")),
		Steering:              format(PayloadString(data, "steering")),
		VersionClass:          format(PayloadString(data, "versionClass")),
		RegistrationYearMonth: PayloadString(data, "registrationYearMonth"),
		ManufactureYearMonth:  PayloadString(data, "manufactureYearMonth"),
		Dimension:             format(PayloadString(data, "dimension")),
		Weight:                format(PayloadString(data, "weight")),
		MaxCapacity:           format(PayloadString(data, "maxCapacity")),

		Images: images,
		Image:  image,
		Video:  PayloadString(data, "video"),

		Make:        format(PayloadString(data, "make")),
		Model:       format(PayloadString(data, "model")),
		FuelType:    format(fuel),
		Description: format(PayloadString(data, "description")),

		Category:     category,
		Status:       CatalogStatusAvailable,
		PostedBy:     in.PostedBy,
		PostedByRole: in.PostedByRole,
		CreatedAt:    in.Now,
		UpdatedAt:    in.Now,
	}

	if v.Price == "" {
		v.Price = "0"
	}
	if v.TotalPrice == "" {
		v.TotalPrice = "0"
	}
	return v
}

// ProjectPart maps a reviewed request payload into a Part entity. The
// submitted model doubles as the display name when no explicit name was
// given, "custom" makes carry the real maker in customMaker, and numeric
// fields are parsed leniently with zero defaults.
func ProjectPart(data map[string]any, in ProjectionInput) Part {
	format := in.Format
	if format == nil {
		format = func(s string) string { return s }
	}

	name := PayloadString(data, "model", "title", "name")
	if name == "" {
		name = "Unnamed Part"
	}

	category := PayloadString(data, "category")
	if category == "" {
		category = DefaultPartCategory
	}

	condition := strings.ToLower(PayloadString(data, "condition"))
	if condition != ConditionNew {
		condition = ConditionOld
	}

	return Part{
		RefNo:       in.RefNo,
		Name:        format(name),
		Brand:       format(PayloadString(data, "brand")),
		Make:        format(PayloadString(data, "make")),
		CustomMaker: format(PayloadString(data, "customMaker")),
		Category:    category,
		Price:       NumberOr(data["price"], 0),
		Stock:       int64(NumberOr(data["stock"], 0)),

		Images: PayloadStrings(data, "images"),
		Video:  PayloadString(data, "video"),

		Description:        format(PayloadString(data, "description")),
		ModelCode:          format(PayloadString(data, "modelCode")),
		Year:               PayloadString(data, "year"),
		Condition:          condition,
		CompatibleVehicles: formatAll(PayloadStrings(data, "compatibleVehicles"), format),
		Comments:           format(PayloadString(data, "comments")),

		Status:       CatalogStatusAvailable,
		PostedBy:     in.PostedBy,
		PostedByRole: in.PostedByRole,
		CreatedAt:    in.Now,
		UpdatedAt:    in.Now,
	}
}

func formatAll(values []string, format TextFormatter) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = format(v)
	}
	return out
}
