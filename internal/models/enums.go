package models

// Asset categories. Changing this list is a schema migration.
const (
	CategoryElectronics        = "Electronics"
	CategoryFurniture          = "Furniture"
	CategoryKitchenAccessories = "Kitchen Accessories"
	CategoryInterior           = "Interior"
	CategoryOthers             = "Others"
)

// Categories lists every asset category in display order
var Categories = []string{
	CategoryElectronics,
	CategoryFurniture,
	CategoryKitchenAccessories,
	CategoryInterior,
	CategoryOthers,
}

// Asset statuses
const (
	AssetStatusInStock      = "in stock"
	AssetStatusIssued       = "issued"
	AssetStatusMovedOutside = "moved outside"
	AssetStatusLost         = "lost"
	AssetStatusUnderRepair  = "under repair"
)

var AssetStatuses = []string{
	AssetStatusInStock,
	AssetStatusIssued,
	AssetStatusMovedOutside,
	AssetStatusLost,
	AssetStatusUnderRepair,
}

// Invoice types
const (
	InvoiceTypeSale     = "sale"
	InvoiceTypePurchase = "purchase"
)

// Invoice stock statuses
const (
	StockStatusPending = "pending"
	StockStatusApplied = "applied"
)

// Payment methods
const (
	PaymentMethodCash    = "cash"
	PaymentMethodBank    = "bank"
	PaymentMethodDigital = "digital"
	PaymentMethodCredit  = "credit"
)

var PaymentMethods = []string{
	PaymentMethodCash,
	PaymentMethodBank,
	PaymentMethodDigital,
	PaymentMethodCredit,
}

// Movement actions
const (
	ActionAdded          = "added"
	ActionEdited         = "edited"
	ActionDeleted        = "deleted"
	ActionSold           = "sold"
	ActionPurchased      = "purchased"
	ActionStockIncreased = "stock_increased"
	ActionStockDecreased = "stock_decreased"
	ActionMovedOutside   = "moved_outside"
	ActionLost           = "lost"
	ActionReturned       = "returned"
	ActionUnderRepair    = "under_repair"
)

var MovementActions = []string{
	ActionAdded,
	ActionEdited,
	ActionDeleted,
	ActionSold,
	ActionPurchased,
	ActionStockIncreased,
	ActionStockDecreased,
	ActionMovedOutside,
	ActionLost,
	ActionReturned,
	ActionUnderRepair,
}

// Movement categories
const (
	MovementTypeSale       = "sale"
	MovementTypePurchase   = "purchase"
	MovementTypeAdjustment = "adjustment"
)

var MovementTypes = []string{
	MovementTypeSale,
	MovementTypePurchase,
	MovementTypeAdjustment,
}

// IsCategory reports whether c is a known asset category
func IsCategory(c string) bool { return contains(Categories, c) }

// IsAssetStatus reports whether s is a known asset status
func IsAssetStatus(s string) bool { return contains(AssetStatuses, s) }

// IsPaymentMethod reports whether m is a known payment method
func IsPaymentMethod(m string) bool { return contains(PaymentMethods, m) }

// IsMovementAction reports whether a is a known movement action
func IsMovementAction(a string) bool { return contains(MovementActions, a) }

// IsMovementType reports whether t is a known movement category
func IsMovementType(t string) bool { return contains(MovementTypes, t) }

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
