package hasher

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lfsantos/tablesync/internal/connector"
	"github.com/lfsantos/tablesync/internal/utils"
	"github.com/lfsantos/tablesync/pkg/models"
)

// Separators between encoded cells and rows. Control characters keep
// ("a", "b,c") and ("a,b", "c") from colliding.
const (
	cellSep = "\x1f"
	rowSep  = "\x1e"
	nilMark = "\x00"
)

// TableHasher computes content digests over whole tables. The digest
// is computed client side over a canonically sorted row encoding, so
// two endpoints with identical content produce identical digests
// regardless of dialect or physical row order.
type TableHasher struct {
	DB     *connector.DatabaseConnector
	Logger *logrus.Logger
}

// NewTableHasher creates a hasher bound to one endpoint
func NewTableHasher(db *connector.DatabaseConnector, logger *logrus.Logger) *TableHasher {
	return &TableHasher{
		DB:     db,
		Logger: logger,
	}
}

// HashTable digests the full content of a table. An empty table
// returns a valid digest with RowCount zero; an unreadable table
// returns an error, and the two are never conflated.
func (th *TableHasher) HashTable(table string) (*models.TableHash, error) {
	if !utils.ValidIdentifier(table) {
		return nil, fmt.Errorf("invalid table identifier: %q", table)
	}

	rows, _, err := th.DB.QueryRows(fmt.Sprintf("SELECT * FROM %s", table))
	if err != nil {
		th.Logger.Warningf("Could not compute hash for %s on %s: %v", table, th.DB.Role, err)
		return nil, err
	}

	return digestRows(rows), nil
}

// HashColumns digests a table restricted to an explicit column
// projection. Used to verify convergence over the common columns
// after a sync.
func (th *TableHasher) HashColumns(table string, columns []string) (*models.TableHash, error) {
	if !utils.ValidIdentifier(table) {
		return nil, fmt.Errorf("invalid table identifier: %q", table)
	}
	if err := utils.ValidIdentifiers(columns); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns to hash for table %s", table)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), table)
	rows, _, err := th.DB.QueryRows(query)
	if err != nil {
		th.Logger.Warningf("Could not compute projected hash for %s on %s: %v", table, th.DB.Role, err)
		return nil, err
	}

	return digestRows(rows), nil
}

// digestRows encodes every row canonically, sorts the encodings, and
// digests the concatenation. Sorting normalizes physical storage
// order; the row separator keeps the digest sensitive to row count.
func digestRows(rows [][]interface{}) *models.TableHash {
	encoded := make([]string, len(rows))
	for i, row := range rows {
		encoded[i] = EncodeRow(row)
	}
	sort.Strings(encoded)

	sum := md5.Sum([]byte(strings.Join(encoded, rowSep)))

	return &models.TableHash{
		Digest:   hex.EncodeToString(sum[:]),
		RowCount: len(rows),
	}
}

// EncodeRow renders one row tuple as canonical text
func EncodeRow(row []interface{}) string {
	cells := make([]string, len(row))
	for i, val := range row {
		cells[i] = encodeValue(val)
	}
	return strings.Join(cells, cellSep)
}

// encodeValue renders a single cell deterministically across drivers
func encodeValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return nilMark
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v)
	}
}
