package service

import (
	"bytes"
	"encoding/json"

	"github.com/consign-next/internal/models"

	"github.com/shopspring/decimal"
)

// Optional 区分 "未提供"、"显式 null" 与 "有值" 三种状态
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some 构造有值的 Optional
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null 构造显式 null 的 Optional
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// UnmarshalJSON 字段出现即视为已提供
func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		var zero T
		o.Null = true
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(b, &o.Value)
}

// MarshalJSON 未提供或 null 时输出 null
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// HasValue 已提供且非 null
func (o Optional[T]) HasValue() bool {
	return o.Set && !o.Null
}

// BookingPatch 运单稀疏更新，缺省字段保持不变
type BookingPatch struct {
	Service          Optional[string]                    `json:"service"`
	Product          Optional[string]                    `json:"product"`
	OriginCity       Optional[string]                    `json:"origin_city"`
	DestinationCity  Optional[string]                    `json:"destination_city"`
	Shipper          Optional[models.ContactBlock]       `json:"shipper"`
	Consignee        Optional[models.ContactBlock]       `json:"consignee"`
	Weight           Optional[decimal.Decimal]           `json:"weight"`
	VolumetricWeight Optional[decimal.Decimal]           `json:"volumetric_weight"`
	Pieces           Optional[int]                       `json:"pieces"`
	PaymentMode      Optional[string]                    `json:"payment_mode"`
	Rate             Optional[decimal.Decimal]           `json:"rate"`
	OtherAmount      Optional[decimal.Decimal]           `json:"other_amount"`
	CODAmount        Optional[decimal.Decimal]           `json:"cod_amount"`
	Subservices      Optional[models.BookingSubservices] `json:"subservices"`
	Remarks          Optional[string]                    `json:"remarks"`
}

// requireValue 非空字段不接受显式 null
func requireValue[T any](field string, o Optional[T]) error {
	if o.Set && o.Null {
		return invalid(field, "cannot be null")
	}
	return nil
}

func (p BookingPatch) validateNulls() error {
	checks := []error{
		requireValue("service", p.Service),
		requireValue("product", p.Product),
		requireValue("origin_city", p.OriginCity),
		requireValue("destination_city", p.DestinationCity),
		requireValue("shipper", p.Shipper),
		requireValue("consignee", p.Consignee),
		requireValue("weight", p.Weight),
		requireValue("volumetric_weight", p.VolumetricWeight),
		requireValue("pieces", p.Pieces),
		requireValue("payment_mode", p.PaymentMode),
		requireValue("rate", p.Rate),
		requireValue("other_amount", p.OtherAmount),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}
