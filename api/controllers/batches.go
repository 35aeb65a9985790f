package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sparrowretail/shelfline-backend/api/responses"
	"github.com/sparrowretail/shelfline-backend/api/validators"
	"github.com/sparrowretail/shelfline-backend/internal/ledger"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
)

type batchLineRequest struct {
	ProductID      string           `json:"productId" validate:"required"`
	ProductName    string           `json:"productName"`
	Quantity       int              `json:"quantity" validate:"required,gt=0"`
	Cost           decimal.Decimal  `json:"cost"`
	SellPrice      *decimal.Decimal `json:"sellPrice,omitempty"`
	ExpirationDate *time.Time       `json:"expirationDate,omitempty"`
	Location       string           `json:"location"`
	ShareScope     []string         `json:"shareScope,omitempty"`
}

type createBatchRequest struct {
	SupplierID    string             `json:"supplierId"`
	DeliveryDate  time.Time          `json:"deliveryDate" validate:"required"`
	InvoiceNumber string             `json:"invoiceNumber" validate:"required"`
	Documents     []string           `json:"documents,omitempty"`
	LineItems     []batchLineRequest `json:"lineItems" validate:"required,min=1,dive"`
}

// CreateBatch ingests one delivery and materializes a stock entry per line.
func CreateBatch(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}

		var req createBatchRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]ledger.BatchLineInput, 0, len(req.LineItems))
		for _, line := range req.LineItems {
			lines = append(lines, ledger.BatchLineInput{
				ProductID:      line.ProductID,
				ProductName:    line.ProductName,
				Quantity:       line.Quantity,
				Cost:           line.Cost,
				SellPrice:      line.SellPrice,
				ExpirationDate: line.ExpirationDate,
				Location:       line.Location,
				ShareScope:     line.ShareScope,
			})
		}

		batch, items, err := svc.CreateFromBatch(r.Context(), tc, ledger.BatchInput{
			SupplierID:    req.SupplierID,
			DeliveryDate:  req.DeliveryDate,
			InvoiceNumber: req.InvoiceNumber,
			Documents:     req.Documents,
			LineItems:     lines,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"batch": batch,
			"items": items,
		})
	}
}
