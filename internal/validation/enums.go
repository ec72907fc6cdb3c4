package validation

// Accepted values for enum-like request parameters.
var (
	ValidExportFormats       = []string{"csv", "xlsx", "text"}
	ValidSheetExtensions     = []string{".xlsx", ".xlsm"}
	ValidPriceListExtensions = []string{".xlsx", ".xlsm", ".csv", ".txt"}
)
