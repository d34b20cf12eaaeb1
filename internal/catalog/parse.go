package catalog

import (
	"strconv"
	"strings"
	"time"

	"OptForge/internal/domain/models"
	errs "OptForge/internal/errors"
	"OptForge/pkg/util"
)

const (
	optionMarker = "_OPT_"
	stockMarker  = "_STK"
)

// ParseOptionTable parses a SYMBOL_OPT_DDMMMYY[_n] table name into a
// descriptor. The trailing _n variant suffix marks a physical split of the
// same logical contract table.
func ParseOptionTable(database, table string) (models.TableDescriptor, error) {
	parts := strings.Split(table, "_")
	if len(parts) < 3 || parts[1] != "OPT" {
		return models.TableDescriptor{}, &errs.TableNameError{
			Database: database, Table: table, Reason: "want SYMBOL_OPT_DDMMMYY[_n]",
		}
	}
	if len(parts) > 4 {
		return models.TableDescriptor{}, &errs.TableNameError{
			Database: database, Table: table, Reason: "too many name segments",
		}
	}
	if len(parts) == 4 {
		if _, err := strconv.Atoi(parts[3]); err != nil {
			return models.TableDescriptor{}, &errs.TableNameError{
				Database: database, Table: table, Reason: "variant suffix is not numeric",
			}
		}
	}

	expiry, err := util.ParseExpiryToken(parts[2])
	if err != nil {
		return models.TableDescriptor{}, &errs.TableNameError{
			Database: database, Table: table, Reason: err.Error(),
		}
	}

	return models.TableDescriptor{
		Database: database,
		Table:    table,
		Symbol:   parts[0],
		Expiry:   expiry,
	}, nil
}

// ParseOptionDatabase parses a SYMBOL_OPT_MMMYY[_n] database name and returns
// its contract month.
func ParseOptionDatabase(database string) (time.Time, error) {
	parts := strings.Split(database, "_")
	if len(parts) < 3 || parts[1] != "OPT" {
		return time.Time{}, &errs.TableNameError{
			Database: database, Reason: "want SYMBOL_OPT_MMMYY[_n]",
		}
	}
	month, err := util.ParseMonthToken(parts[2])
	if err != nil {
		return time.Time{}, &errs.TableNameError{Database: database, Reason: err.Error()}
	}
	return month, nil
}

// StockSymbol derives the symbol from a stock table name (SYMBOL_STK).
func StockSymbol(table string) string {
	if i := strings.Index(table, "_"); i > 0 {
		return table[:i]
	}
	return table
}
