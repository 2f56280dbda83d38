package persistence

import (
	"strings"

	"github.com/erp/directdebit/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// MandateSortFields contains allowed sort fields for mandates
var MandateSortFields = map[string]bool{
	"created_at":      true,
	"updated_at":      true,
	"reference":       true,
	"partner_name":    true,
	"state":           true,
	"signature_date":  true,
	"last_debit_date": true,
}

// OrderSortFields contains allowed sort fields for payment orders
var OrderSortFields = map[string]bool{
	"created_at":     true,
	"updated_at":     true,
	"reference":      true,
	"state":          true,
	"total":          true,
	"scheduled_date": true,
	"date_sent":      true,
}

// FileSortFields contains allowed sort fields for generated files
var FileSortFields = map[string]bool{
	"created_at":      true,
	"filename":        true,
	"state":           true,
	"total_amount":    true,
	"nb_transactions": true,
	"sent_at":         true,
}

// paginate applies whitelisted ordering and the page window of a filter
func paginate(query *gorm.DB, filter shared.Filter, allowed map[string]bool) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowed, "created_at")
	query = query.Order(field + " " + ValidateSortOrder(filter.OrderDir))
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}

// searchPattern builds a case-insensitive LIKE pattern that works on
// postgres and sqlite alike
func searchPattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}
