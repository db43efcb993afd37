package shipments

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateBarcode derives a shipment barcode for an order that came in
// without one. The uuid fragment keeps re-shipped orders distinct.
func GenerateBarcode(orderID string) string {
	u := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("BC-%s-%s", orderID, u[:8])
}

// pieceBarcode numbers parcels within a shipment, 1-based.
func pieceBarcode(referenceID string, index int) string {
	return fmt.Sprintf("%s_PARCA%d", referenceID, index+1)
}
