package model

import "github.com/iliyamo/resource-api/internal/schema"

var UserGroups = schema.New("UserGroup", "user_groups",
	schema.Field{Name: "name", Kind: schema.String, Unique: true,
		Rules: []schema.Rule{schema.NotEmpty()}, Example: "Finance Group"},
	schema.Field{Name: "description", Kind: schema.String, Nullable: true,
		Example: "Group responsible for financial operations"},
)

var Products = schema.New("Product", "products",
	schema.Field{Name: "name", Kind: schema.String,
		Rules: []schema.Rule{schema.NotEmpty()}, Example: "Coffee 500g"},
	schema.Field{Name: "description", Kind: schema.Text, Nullable: true,
		Example: "Medium roast, whole beans"},
	schema.Field{Name: "price", Kind: schema.Decimal,
		Rules: []schema.Rule{schema.Min(0)}, Example: 29.9},
	schema.Field{Name: "stock", Kind: schema.Integer,
		Rules: []schema.Rule{schema.Min(0)}, Example: 100},
)

// Locations holds places; coordinates are mandatory, the rest comes from
// whatever the caller knows about the place.
var Locations = schema.New("Location", "locations",
	schema.Field{Name: "name", Kind: schema.String,
		Rules: []schema.Rule{schema.NotEmpty()}, Example: "Central Market"},
	schema.Field{Name: "address", Kind: schema.String,
		Rules: []schema.Rule{schema.NotEmpty()}, Example: "Av. Paulista, 1000"},
	schema.Field{Name: "city", Kind: schema.String, Nullable: true, Example: "São Paulo"},
	schema.Field{Name: "postal_code", Kind: schema.String, Nullable: true, Example: "01310100"},
	schema.Field{Name: "state", Kind: schema.String, Nullable: true, Example: "SP"},
	schema.Field{Name: "phone", Kind: schema.String, Nullable: true, Example: "551130000000"},
	schema.Field{Name: "place_id", Kind: schema.String, Nullable: true},
	schema.Field{Name: "url", Kind: schema.String, Nullable: true},
	schema.Field{Name: "opening_hours", Kind: schema.String, Nullable: true, Example: "08:00-18:00"},
	schema.Field{Name: "rating", Kind: schema.Float, Nullable: true,
		Rules: []schema.Rule{schema.Range(0, 5)}, Example: 4.5},
	schema.Field{Name: "lat", Kind: schema.Float,
		Rules: []schema.Rule{schema.Range(-90, 90)}, Example: -23.561},
	schema.Field{Name: "lng", Kind: schema.Float,
		Rules: []schema.Rule{schema.Range(-180, 180)}, Example: -46.656},
)

// Files stores upload metadata only.
var Files = schema.New("File", "files",
	schema.Field{Name: "name", Kind: schema.String,
		Rules: []schema.Rule{schema.NotEmpty()}, Example: "report.pdf"},
	schema.Field{Name: "path", Kind: schema.String, Unique: true,
		Rules: []schema.Rule{schema.NotEmpty()}, Example: "uploads/report.pdf"},
	schema.Field{Name: "mime_type", Kind: schema.String, Nullable: true, Example: "application/pdf"},
	schema.Field{Name: "size", Kind: schema.Integer,
		Rules: []schema.Rule{schema.Min(0)}, Example: 1024},
)

// All lists every resource schema, users first.  The migrator creates
// tables in this order.
func All() []*schema.Schema {
	return []*schema.Schema{Users, UserGroups, Products, Locations, Files}
}
