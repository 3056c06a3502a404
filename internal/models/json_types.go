package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// BookingDocument 运单附带的文件（名称、费用、存储地址）
type BookingDocument struct {
	Name  string `json:"name"`
	Price Money  `json:"price"`
	URL   string `json:"url"`
	Key   string `json:"key,omitempty"`
}

// BookingDocuments 文件列表，JSON 存储
type BookingDocuments []BookingDocument

// Value 实现 driver.Valuer 接口
func (d BookingDocuments) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner 接口
func (d *BookingDocuments) Scan(value interface{}) error {
	*d = BookingDocuments{}
	return scanJSON(value, d)
}

// BookingSubservice 附加服务（如保价、上门取件）
type BookingSubservice struct {
	Name   string `json:"name"`
	Charge Money  `json:"charge"`
}

// BookingSubservices 附加服务列表，JSON 存储
type BookingSubservices []BookingSubservice

// Value 实现 driver.Valuer 接口
func (s BookingSubservices) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Equal 逐项比较名称与费用；nil 与空列表视为相同
func (s BookingSubservices) Equal(other BookingSubservices) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i].Name != other[i].Name || !s[i].Charge.Equal(other[i].Charge.Decimal) {
			return false
		}
	}
	return true
}

// Scan 实现 sql.Scanner 接口
func (s *BookingSubservices) Scan(value interface{}) error {
	*s = BookingSubservices{}
	return scanJSON(value, s)
}

func scanJSON(value interface{}, target interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, target)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), target)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
}
