package errors

import "sort"

// Template is a registered error.
type Template struct {
	Category Category
	Message  string
	Detail   string
}

var registry = map[string]Template{
	// Configuration (E100-E119)
	"E100": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "billform looks for billform.yaml, billform.yml or billform.json in the working directory unless --config names a file.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The configuration file could not be parsed.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value failed validation.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid environment override",
		Detail:   "A BILLFORM_* environment variable could not be parsed.",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Unsupported configuration format",
		Detail:   "Configuration files must end in .yaml, .yml or .json.",
	},

	// Locales (E120-E139)
	"E120": {
		Category: CategoryLocale,
		Message:  "Locale directory unreadable",
		Detail:   "The locale override directory could not be read.",
	},
	"E121": {
		Category: CategoryLocale,
		Message:  "Invalid locale file",
		Detail:   "A locale file is not valid YAML or is missing required labels.",
	},

	// Export (E140-E159)
	"E140": {
		Category: CategoryExport,
		Message:  "Export store unavailable",
		Detail:   "The configured document store could not be opened.",
	},
	"E141": {
		Category: CategoryExport,
		Message:  "Export failed",
		Detail:   "The document was rendered but could not be stored.",
	},

	// CLI (E160-E179)
	"E160": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
	},
	"E161": {
		Category: CategoryCLI,
		Message:  "Cannot write output",
		Detail:   "The output file could not be created or written.",
	},

	// Runtime (E180-E199)
	"E180": {
		Category: CategoryRuntime,
		Message:  "Server failed",
		Detail:   "The HTTP server stopped with an error.",
	},
}

// Codes returns all registered codes in order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Lookup returns the template for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
