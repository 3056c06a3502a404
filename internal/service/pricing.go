package service

import (
	"github.com/consign-next/internal/models"

	"github.com/shopspring/decimal"
)

// Charges 运单计费要素
type Charges struct {
	Rate        models.Money
	Pieces      int
	OtherAmount models.Money
	Documents   models.BookingDocuments
	Subservices models.BookingSubservices
}

// Totals 计费结果
type Totals struct {
	DocumentCharges   models.Money
	SubserviceCharges models.Money
	TotalAmount       models.Money
}

// computeTotals 唯一的总价公式：单价 × 件数 + 文件费 + 其他费用 + 附加服务费
func computeTotals(c Charges) Totals {
	pieces := c.Pieces
	if pieces < 1 {
		pieces = 1
	}
	documents := decimal.Zero
	for _, doc := range c.Documents {
		documents = documents.Add(doc.Price.Decimal)
	}
	subservices := decimal.Zero
	for _, sub := range c.Subservices {
		subservices = subservices.Add(sub.Charge.Decimal)
	}
	total := c.Rate.Decimal.Mul(decimal.NewFromInt(int64(pieces))).
		Add(documents).
		Add(c.OtherAmount.Decimal).
		Add(subservices)
	return Totals{
		DocumentCharges:   models.NewMoneyFromDecimal(documents),
		SubserviceCharges: models.NewMoneyFromDecimal(subservices),
		TotalAmount:       models.NewMoneyFromDecimal(total),
	}
}

// chargeableWeight 计费重量取实重与体积重较大者
func chargeableWeight(weight, volumetric models.Weight) models.Weight {
	return models.MaxWeight(weight, volumetric)
}
