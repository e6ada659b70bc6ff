// Package constants provides shared constants for the top-planner application.
package constants

// DateLayout is the contract/reservation date format exchanged with the backend.
const DateLayout = "2006-01-02"

// DisplayDateLayout is the due date format shown in installment tables.
const DisplayDateLayout = "Jan 02, 2006"

// Percentage constants
const (
	// FullPercentage is the ceiling for the sum of down payments and installments.
	FullPercentage = 100.0

	// PercentageMultiplier is used for fraction <-> percentage conversions
	PercentageMultiplier = 100.0

	// DisplayPrecision is the number of decimals shown for floors and cumulative values
	DisplayPrecision = 1

	// InternalPrecision is the number of decimals kept for cumulative sums
	InternalPrecision = 5
)

// Pricing constants
const (
	// PriceRoundingStep is the step prices are rounded up to.
	PriceRoundingStep = 1000

	// CanonicalCurrency is the currency the backend computes in.
	CanonicalCurrency = "EGP"

	// SoldStatus marks a unit as sold in the inventory dashboard
	SoldStatus = "Contracted"
)

// Installment plan defaults
const (
	// DefaultMaxStabilizationAttempts caps the re-submissions after a scheme change
	DefaultMaxStabilizationAttempts = 3

	// DefaultStabilizationDelayMillis is the pause between stabilization submissions
	DefaultStabilizationDelayMillis = 100

	// DefaultPeriodBetweenDPs is the months between the first and second down payment
	DefaultPeriodBetweenDPs = 1

	// DefaultPeriodBetweenDPAndInstallment is the months between the last down payment and PMT 1
	DefaultPeriodBetweenDPAndInstallment = 1
)

// Dashboard defaults
const (
	// DefaultFilterDebounceMillis debounces multi-select filter changes
	DefaultFilterDebounceMillis = 1000

	// DefaultDiscountDebounceMillis debounces manual discount input
	DefaultDiscountDebounceMillis = 500

	// DefaultMaxPrice is the upper bound of the price slider
	DefaultMaxPrice = 10000000.0

	// DefaultMaxBUA is the upper bound of the built-up area slider
	DefaultMaxBUA = 1000.0

	// DefaultUnitsCacheTTLMinutes is how long a company's unit list stays cached
	DefaultUnitsCacheTTLMinutes = 10
)

// Backend endpoint paths
const (
	KPIsPath         = "/dashboard/kpis/"
	ChartsPath       = "/dashboard/charts/"
	ExportPath       = "/dashboard/export/"
	CompanyUnitsPath = "/ajax/get_company_units/"

	// DefaultSubmitPath is the installment recalculation endpoint
	DefaultSubmitPath = "/calculate_installments/"
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Export format constants
const (
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
	ExportFormatXLSX = "xlsx"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "top-planner.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix prefixes environment overrides, e.g. TOP_BACKEND_BASEURL
	EnvPrefix = "TOP"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the view API
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes is the default maximum request body size (256 KB)
	DefaultMaxBodySizeBytes int64 = 256 * 1024
)
